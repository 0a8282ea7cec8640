package compiler

import (
	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/rule"
	"github.com/edgecomet/ubx/internal/ubx/urlparse"
)

// progInstr is the compiler's pre-serialization form of rule.Instr: it
// carries the literal text itself rather than a string-pool offset, since
// interning happens once, globally, during serialization.
type progInstr struct {
	op         rule.Opcode
	lit        string
	anchorHash hashing.Hash64
}

// compiledPattern is the compiler's pre-serialization form of rule.Pattern.
type compiledPattern struct {
	program        []progInstr
	anchor         rule.AnchorType
	caseSensitive  bool
	anchorHostHash hashing.Hash64
	regexSource    string // set only when anchor == rule.AnchorRegex
}

// literalSegment is one contiguous literal run in a pattern (used to
// prefer substrings outside wildcards when choosing the index token,
// spec.md §4.2 stage 5).
type literalSegment struct {
	text string
}

// compilePattern builds the opcode program for nr's pattern body and
// records the literal segments available for token selection.
func compilePattern(nr *networkRule) (*compiledPattern, []literalSegment) {
	p := &compiledPattern{caseSensitive: nr.flags.Has(rule.FlagMatchCase)}

	if nr.flags.Has(rule.FlagIsRegex) {
		p.anchor = rule.AnchorRegex
		p.regexSource = nr.patternText
		p.program = []progInstr{{op: rule.OpDone}}
		return p, nil
	}

	switch {
	case nr.hostAnchor:
		p.anchor = rule.AnchorHostname
		p.anchorHostHash = hashing.HashDomain(nr.hostAnchorLabel)
	case nr.anchorLeft:
		p.anchor = rule.AnchorLeft
	default:
		p.anchor = rule.AnchorNone
	}

	var segs []literalSegment
	var prog []progInstr

	if nr.hostAnchor {
		prog = append(prog, progInstr{op: rule.OpHostAnchor, anchorHash: p.anchorHostHash})
	}
	if nr.anchorLeft {
		prog = append(prog, progInstr{op: rule.OpAssertStart})
	}

	text := nr.patternText
	i := 0
	for i < len(text) {
		switch text[i] {
		case '*':
			prog = append(prog, progInstr{op: rule.OpSkipAny})
			i++
		case '^':
			prog = append(prog, progInstr{op: rule.OpAssertBoundary})
			i++
		default:
			start := i
			for i < len(text) && text[i] != '*' && text[i] != '^' {
				i++
			}
			lit := text[start:i]
			if lit != "" {
				prog = append(prog, progInstr{op: rule.OpFindLit, lit: lit})
				segs = append(segs, literalSegment{text: lit})
			}
		}
	}

	if nr.anchorRight {
		prog = append(prog, progInstr{op: rule.OpAssertEnd})
	}
	prog = append(prog, progInstr{op: rule.OpDone})

	p.program = prog
	return p, segs
}

// candidateTokens extracts every alphanumeric run of length >= MinTokenLen
// from a rule's literal segments, lowercased, as candidates for the
// rarest-token index (spec.md §4.2 stage 5: "preferring substrings
// outside wildcards" -- segs already excludes text inside '*' runs).
func candidateTokens(segs []literalSegment) []string {
	var out []string
	for _, seg := range segs {
		out = append(out, urlparse.Tokens(seg.text)...)
	}
	return out
}

// assignTokens runs the two-phase rarest-token selection across the whole
// surviving rule set: first tally global token frequency, then for each
// rule pick its least-frequent candidate (ties broken by longest, then
// first occurrence). index.go then places hostname-only rules in the
// domain sets whatever their token, and other rules with no usable token
// in the fallback bucket.
func assignTokens(rules []*networkRule) {
	freq := make(map[string]int)
	perRule := make([][]string, len(rules))

	for i, nr := range rules {
		p, segs := compilePattern(nr)
		nr.pattern = p
		cands := candidateTokens(segs)
		perRule[i] = cands
		seen := make(map[string]bool, len(cands))
		for _, t := range cands {
			if seen[t] {
				continue
			}
			seen[t] = true
			freq[t]++
		}
	}

	for i, nr := range rules {
		best := ""
		bestFreq := int(^uint(0) >> 1)
		bestLen := 0
		for _, t := range perRule[i] {
			f := freq[t]
			if best == "" || f < bestFreq || (f == bestFreq && len(t) > bestLen) {
				best = t
				bestFreq = f
				bestLen = len(t)
			}
		}
		nr.token = best
		nr.priority = priorityOf(nr)
	}
}
