// Package urlparse implements the fast, allocation-light URL parsing the
// matcher's hot path needs: scheme/host/path boundaries without a full
// net/url.Parse, plus the alphanumeric tokenizer that feeds candidate
// gathering. See spec.md §4.3.1 "Context derivation" and §3 "Pattern"/
// token-dictionary notes. Grounded on the teacher's index-arithmetic style
// in internal/common/urlutil/domain.go, extended to avoid net/url's
// allocation-heavy struct on the per-request path.
package urlparse

import "strings"

// MaxTokens bounds the number of candidate tokens extracted per URL so a
// pathological URL cannot blow up candidate gathering (spec.md §4.3.1).
const MaxTokens = 32

// MinTokenLen is the shortest alphanumeric substring considered a token.
const MinTokenLen = 3

// Context is the parsed, lowercase-normalized view of one request URL.
// All fields are byte offsets into the original (unmodified) URL string;
// Host/Path/Query are materialized lowercase strings for convenience,
// since the matcher needs a lowercase host repeatedly for suffix hashing
// while the raw URL is needed verbatim for case-sensitive pattern literals.
type Context struct {
	Raw        string
	SchemeEnd  int // index of ':' terminating the scheme
	HostStart  int
	HostEnd    int
	PathStart  int
	QueryStart int // -1 if no query string

	Scheme string
	Host   string // lowercased, port stripped
	Path   string
}

// Parse derives a Context from a raw absolute URL. It never returns an
// error: a URL too malformed to parse yields a Context with empty Host,
// which callers treat as "does not match any hostname-anchored rule."
func Parse(raw string) Context {
	c := Context{Raw: raw, SchemeEnd: -1, HostStart: -1, HostEnd: -1, PathStart: -1, QueryStart: -1}

	schemeSep := strings.Index(raw, "://")
	if schemeSep < 0 {
		return c
	}
	c.SchemeEnd = schemeSep
	c.Scheme = strings.ToLower(raw[:schemeSep])

	rest := raw[schemeSep+3:]
	hostStart := schemeSep + 3

	// Skip userinfo ("user:pass@").
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		if slash := strings.IndexAny(rest[:at], "/?#"); slash < 0 {
			hostStart += at + 1
			rest = raw[hostStart:]
		}
	}
	c.HostStart = hostStart

	hostEndRel := strings.IndexAny(rest, "/?#")
	var hostAndPort string
	if hostEndRel < 0 {
		hostAndPort = rest
		c.HostEnd = len(raw)
		c.PathStart = len(raw)
	} else {
		hostAndPort = rest[:hostEndRel]
		c.HostEnd = hostStart + hostEndRel
		c.PathStart = c.HostEnd
	}
	c.Host = stripPort(strings.ToLower(hostAndPort))

	if c.PathStart < len(raw) {
		tail := raw[c.PathStart:]
		if q := strings.IndexByte(tail, '?'); q >= 0 {
			c.QueryStart = c.PathStart + q
			c.Path = strings.ToLower(tail[:q])
		} else if h := strings.IndexByte(tail, '#'); h >= 0 {
			c.Path = strings.ToLower(tail[:h])
		} else {
			c.Path = strings.ToLower(tail)
		}
	}
	return c
}

func stripPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if idx := strings.IndexByte(host, ']'); idx >= 0 {
			return host[:idx+1]
		}
		return host
	}
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 && strings.Count(host, ":") == 1 {
		return host[:idx]
	}
	return host
}

// Query returns the raw query string (without the leading '?'), or "" if
// the URL has none.
func (c Context) Query() string {
	if c.QueryStart < 0 {
		return ""
	}
	tail := c.Raw[c.QueryStart+1:]
	if h := strings.IndexByte(tail, '#'); h >= 0 {
		return tail[:h]
	}
	return tail
}

func isAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Tokens extracts up to MaxTokens distinct lowercase alphanumeric
// substrings of length >= MinTokenLen from s, in order of first
// appearance, for use as TOKEN_DICT candidate lookups (spec.md §4.2 stage
// 5 "rarest long alphanumeric substring").
func Tokens(s string) []string {
	out := make([]string, 0, 8)
	n := len(s)
	i := 0
	for i < n && len(out) < MaxTokens {
		if !isAlphaNum(s[i]) {
			i++
			continue
		}
		start := i
		for i < n && isAlphaNum(s[i]) {
			i++
		}
		if i-start >= MinTokenLen {
			out = append(out, strings.ToLower(s[start:i]))
		}
	}
	return out
}
