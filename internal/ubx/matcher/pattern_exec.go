package matcher

import (
	"regexp"
	"strings"

	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/rule"
)

// execPattern walks p's opcode program against rawURL starting at cursor
// 0, per spec.md §4.3.1 bullet 2: "FIND_LIT searches forward from the
// cursor using the literal; ASSERT_* check the cursor; SKIP_ANY advances
// to the next FIND_LIT; HOST_ANCHOR verifies the cursor is within the
// host range and that the suffix-walk contains the anchor hash."
// literalOf resolves a FIND_LIT instruction's text from the caller's
// string pool; strPool is threaded through for that purpose.
func execPattern(p rule.Pattern, ctx *Context, strPool []byte, suffixHashes []hashing.Hash64) bool {
	if p.Anchor == rule.AnchorRegex {
		return execRegex(p, ctx.URL.Raw)
	}

	haystack := ctx.URL.Raw
	folded := haystack
	if !p.CaseSensitive {
		folded = strings.ToLower(haystack)
	}

	cursor := 0
	skipPending := false

	for _, instr := range p.Program {
		switch instr.Op {
		case rule.OpDone:
			return true
		case rule.OpAssertStart:
			if cursor != 0 {
				return false
			}
		case rule.OpAssertEnd:
			if cursor != len(haystack) {
				return false
			}
		case rule.OpAssertBoundary:
			if cursor < len(haystack) && !isBoundaryChar(haystack[cursor]) {
				return false
			}
		case rule.OpSkipAny:
			skipPending = true
		case rule.OpHostAnchor:
			// The compiler emits HOST_ANCHOR as the first instruction, so a
			// cursor still at 0 is moved to the start of the host before the
			// range check; on success matching continues from the end of the
			// host, where the rest of the `||host...` pattern begins.
			if ctx.URL.HostStart < 0 {
				return false
			}
			if cursor == 0 {
				cursor = ctx.URL.HostStart
			}
			if cursor < ctx.URL.HostStart || cursor > ctx.URL.HostEnd {
				return false
			}
			if !containsHash(suffixHashes, instr.AnchorHash) {
				return false
			}
			cursor = ctx.URL.HostEnd
		case rule.OpFindLit:
			lit := literalOf(strPool, instr)
			needle := lit
			hay := folded
			if p.CaseSensitive {
				hay = haystack
			} else {
				needle = strings.ToLower(lit)
			}
			idx := strings.Index(hay[cursor:], needle)
			if idx < 0 {
				return false
			}
			if !skipPending && idx != 0 {
				return false
			}
			cursor += idx + len(lit)
			skipPending = false
		}
	}
	return true
}

// isBoundaryChar reports whether c is a valid ABP `^` separator: anything
// that is not alphanumeric and not '%' counts, including end-of-string
// (handled by the caller via cursor bounds).
func isBoundaryChar(c byte) bool {
	isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	return !isAlnum && c != '%'
}

func containsHash(hs []hashing.Hash64, target hashing.Hash64) bool {
	for _, h := range hs {
		if h == target {
			return true
		}
	}
	return false
}

// execRegex evaluates a uBO `/regex/` literal pattern. Unlike the opcode
// interpreter, this path does allocate (regexp compilation and matching);
// it is reserved for the small minority of rules that use regex syntax,
// documented as a deliberate exception to the hot-path allocation ban.
func execRegex(p rule.Pattern, url string) bool {
	flags := ""
	if !p.CaseSensitive {
		flags = "(?i)"
	}
	re, err := regexp.Compile(flags + p.RegexSource)
	if err != nil {
		return false
	}
	return re.MatchString(url)
}
