package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecomet/ubx/internal/ubx/format"
)

func TestCompile_SimpleBlockRule(t *testing.T) {
	res, err := Compile([]string{"||doubleclick.net^"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.RulesAfter)

	snap, err := format.Load(res.SnapshotBytes)
	require.NoError(t, err)
	assert.True(t, snap.Has(format.SectionRules))
	assert.True(t, snap.Has(format.SectionDomainSets))
}

func TestCompile_BadfilterFoldsMatchingRule(t *testing.T) {
	res, err := Compile([]string{"||ads.example.com^\n||ads.example.com^$badfilter\n||doubleclick.net^"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.RulesAfter)
	assert.Equal(t, 1, res.Stats.BadfilterRules)
	assert.Equal(t, 1, res.Stats.BadfilteredRules)
}

func TestCompile_UnknownOptionSkipsRule(t *testing.T) {
	res, err := Compile([]string{"||example.com^$totally-made-up-option"}, DefaultOptions())
	require.Error(t, err) // no surviving rules at all
	_ = res
}

func TestCompile_ExceptionAndBlockBothSurvive(t *testing.T) {
	res, err := Compile([]string{"||doubleclick.net^\n@@||news.example.com^$document"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.RulesAfter)
}

func TestCompile_DeterministicAcrossRuns(t *testing.T) {
	list := []string{"||doubleclick.net^\n@@||news.example.com^$document\n/banner.gif$domain=example.com|~shop.example.com"}
	r1, err := Compile(list, DefaultOptions())
	require.NoError(t, err)
	r2, err := Compile(list, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, r1.SnapshotBytes, r2.SnapshotBytes)
}

func TestParseNetworkRule_HostnameAnchorOnly(t *testing.T) {
	nr, reason := parseNetworkRule("||doubleclick.net^", 0)
	require.Empty(t, reason)
	assert.True(t, nr.hostAnchor)
	assert.True(t, nr.hostnameOnly)
	assert.Equal(t, "doubleclick.net", nr.hostAnchorLabel)
}

func TestParseNetworkRule_ExceptionPrefix(t *testing.T) {
	nr, reason := parseNetworkRule("@@||news.example.com^$document", 0)
	require.Empty(t, reason)
	assert.Equal(t, uint8(0), uint8(nr.action)) // ActionAllow == 0
}

func TestParseNetworkRule_DomainOption(t *testing.T) {
	nr, reason := parseNetworkRule("/banner.gif$domain=example.com|~shop.example.com", 0)
	require.Empty(t, reason)
	assert.Contains(t, nr.domainInclude, "example.com")
	assert.Contains(t, nr.domainExclude, "shop.example.com")
}

func TestParseNetworkRule_ImportantFlag(t *testing.T) {
	nr, reason := parseNetworkRule("||tracker.test^$important", 0)
	require.Empty(t, reason)
	assert.True(t, nr.flags.Has(1<<0)) // FlagImportant is bit 0
}

func TestParseNetworkRule_RedirectOption(t *testing.T) {
	nr, reason := parseNetworkRule("||googletagmanager.com/gtm.js$script,redirect=noop.js", 0)
	require.Empty(t, reason)
	assert.Equal(t, "noop.js", nr.redirectToken)
}

func TestParseNetworkRule_RemoveparamOption(t *testing.T) {
	nr, reason := parseNetworkRule("*$removeparam=gclid", 0)
	require.Empty(t, reason)
	assert.Equal(t, "gclid", nr.removeparam)
}

func TestIsSafeRegex_RejectsDeepNesting(t *testing.T) {
	assert.False(t, isSafeRegex("((((((a))))))", 512))
}

func TestIsSafeRegex_AcceptsSimple(t *testing.T) {
	assert.True(t, isSafeRegex("ads?[0-9]{1,4}", 512))
}
