package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDomain_Deterministic(t *testing.T) {
	a := HashDomain("Example.COM")
	b := HashDomain("example.com")
	assert.Equal(t, a, b, "hashing is case-insensitive")
}

func TestHashDomain_NeverSentinel(t *testing.T) {
	inputs := []string{"", "a", "example.com", "xn--80ak6aa92e.com", "localhost"}
	for _, in := range inputs {
		h := HashDomain(in)
		assert.False(t, h.IsSentinel(), "hash of %q must not be the sentinel", in)
	}
}

func TestHashToken_NeverZero(t *testing.T) {
	for _, in := range []string{"abc", "doubleclick", "gtm", "pixel"} {
		require.NotZero(t, HashToken(in))
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("doubleclick"), HashToken("doubleclick"))
	assert.NotEqual(t, HashToken("doubleclick"), HashToken("adservice"))
}

func TestFingerprintURL_Deterministic(t *testing.T) {
	u := "https://example.com/a?b=1"
	assert.Equal(t, FingerprintURL(u), FingerprintURL(u))
}
