package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgecomet/ubx/internal/ubx/hashing"
)

func TestFlags_Has(t *testing.T) {
	f := FlagImportant | FlagHostnameAnchor
	assert.True(t, f.Has(FlagImportant))
	assert.True(t, f.Has(FlagHostnameAnchor))
	assert.False(t, f.Has(FlagIsRegex))
}

func TestTypeMask_Has(t *testing.T) {
	m := TypeMask(1<<TypeScript | 1<<TypeImage)
	assert.True(t, m.Has(TypeScript))
	assert.True(t, m.Has(TypeImage))
	assert.False(t, m.Has(TypeMainFrame))
}

func TestRule_IsAllowAndBlockClass(t *testing.T) {
	allow := Rule{Action: ActionAllow}
	headerAllow := Rule{Action: ActionHeaderMatchAllow}
	block := Rule{Action: ActionBlock}
	headerBlock := Rule{Action: ActionHeaderMatchBlock}
	redirect := Rule{Action: ActionRedirectDirective}

	assert.True(t, allow.IsAllowClass())
	assert.True(t, headerAllow.IsAllowClass())
	assert.False(t, block.IsAllowClass())

	assert.True(t, block.IsBlockClass())
	assert.True(t, headerBlock.IsBlockClass())
	assert.False(t, redirect.IsBlockClass())
	assert.False(t, redirect.IsAllowClass())
}

func TestDomainConstraint_Satisfies(t *testing.T) {
	example := hashing.HashDomain("example.com")
	ads := hashing.HashDomain("ads.example.com")
	other := hashing.HashDomain("other.com")

	dc := DomainConstraint{Include: []hashing.Hash64{example}}
	assert.True(t, dc.Satisfies([]hashing.Hash64{ads, example}))
	assert.False(t, dc.Satisfies([]hashing.Hash64{other}))

	excl := DomainConstraint{Exclude: []hashing.Hash64{ads}}
	assert.True(t, excl.Satisfies([]hashing.Hash64{other}))
	assert.False(t, excl.Satisfies([]hashing.Hash64{ads, other}))
}

func TestDomainConstraint_EmptyConstraintSatisfiesAnything(t *testing.T) {
	var dc DomainConstraint
	assert.True(t, dc.Satisfies(nil))
}
