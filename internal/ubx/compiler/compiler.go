// Package compiler implements the ahead-of-time filter-list compiler: it
// turns ABP/uBO-dialect filter-list text into a UBX snapshot. See
// spec.md §4.2 "Compiler" for the stage breakdown this package follows.
package compiler

import (
	"sort"
	"strings"

	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/psl"
)

// Options configures one compile run.
type Options struct {
	MaxRulesPerList int
	MaxBytesPerList int
	MaxRegexLength  int
	WithCRC32       bool
	BuildID         uint32
	PSL             *psl.Table
}

// DefaultOptions returns the safety limits spec.md §4.2 calls for absent
// host-specific tuning.
func DefaultOptions() Options {
	return Options{
		MaxRulesPerList: 500_000,
		MaxBytesPerList: 64 << 20,
		MaxRegexLength:  512,
		WithCRC32:       true,
	}
}

// SkipReason tags why a candidate rule did not survive into the snapshot.
type SkipReason string

const (
	SkipUnknownOption  SkipReason = "unknown-option"
	SkipRegexTooLong   SkipReason = "regex-too-long"
	SkipRegexUnsafe    SkipReason = "regex-unsafe"
	SkipSizeLimit      SkipReason = "size-limit-exceeded"
	SkipEmptyPattern   SkipReason = "empty-pattern"
	SkipParseError     SkipReason = "parse-error"
)

// ListStats is per-input-list line/rule accounting (spec.md §4.2 stage 1).
type ListStats struct {
	TotalLines        int
	RulesBeforeNorm   int
	RulesAfterNorm    int
}

// Stats is the full statistics object compile() returns alongside the
// snapshot bytes (spec.md §6 compile_filter_lists).
type Stats struct {
	RulesBefore      int
	RulesAfter       int
	RulesDeduped     int
	BadfilterRules   int
	BadfilteredRules int
	PerList          []ListStats
	SkippedByReason  map[SkipReason]int
}

// Result bundles the compiled snapshot bytes with their statistics.
type Result struct {
	SnapshotBytes []byte
	Stats         Stats
}

// Compile parses listTexts in order and produces a UBX snapshot. It never
// returns a partial snapshot: either SnapshotBytes is a fully validated
// UBX blob or err is non-nil (spec.md §8 "compile(inputs) either returns
// a snapshot that passes load(snapshot) or returns an error").
func Compile(listTexts []string, opts Options) (Result, error) {
	if opts.MaxRulesPerList == 0 {
		opts = DefaultOptions()
	}
	stats := Stats{SkippedByReason: make(map[SkipReason]int)}

	var parsed []*networkRule
	var cosmetics []*cosmeticRule

	for listIdx, text := range listTexts {
		if opts.MaxBytesPerList > 0 && len(text) > opts.MaxBytesPerList {
			stats.SkippedByReason[SkipSizeLimit]++
			continue
		}
		ls := ListStats{}
		lines := strings.Split(text, "\n")
		ls.TotalLines = len(lines)

		ruleCount := 0
		for _, line := range lines {
			line = strings.TrimRight(line, "\r")
			kind, body := classifyLine(line)
			switch kind {
			case lineNetwork:
				ls.RulesBeforeNorm++
				nr, reason := parseNetworkRule(body, uint16(listIdx))
				if reason != "" {
					stats.SkippedByReason[reason]++
					continue
				}
				if ruleCount >= opts.MaxRulesPerList {
					stats.SkippedByReason[SkipSizeLimit]++
					continue
				}
				normalizeNetworkRule(nr)
				parsed = append(parsed, nr)
				ruleCount++
				ls.RulesAfterNorm++
			case lineCosmetic, lineCosmeticException:
				ls.RulesBeforeNorm++
				cr, reason := parseCosmeticRule(body, kind, uint16(listIdx))
				if reason != "" {
					stats.SkippedByReason[reason]++
					continue
				}
				cosmetics = append(cosmetics, cr)
				ls.RulesAfterNorm++
			case lineHostsFormat:
				ls.RulesBeforeNorm++
				nr, reason := parseHostsFormatLine(body, uint16(listIdx))
				if reason != "" {
					stats.SkippedByReason[reason]++
					continue
				}
				normalizeNetworkRule(nr)
				parsed = append(parsed, nr)
				ls.RulesAfterNorm++
			default:
				// comment, section header, or blank line: not counted as a rule.
			}
		}
		stats.PerList = append(stats.PerList, ls)
		stats.RulesBefore += ls.RulesBeforeNorm
	}

	deduped, badfilterCount, badfilteredCount := foldBadfilter(parsed)
	stats.BadfilterRules = badfilterCount
	stats.BadfilteredRules = badfilteredCount
	stats.RulesDeduped = badfilteredCount

	assignTokens(deduped)

	stats.RulesAfter = len(deduped)
	if len(deduped) == 0 && len(cosmetics) == 0 {
		return Result{}, &CompileError{Reason: "no surviving rules"}
	}

	for i, nr := range deduped {
		nr.id = uint32(i)
	}

	snapshotBytes, err := serialize(deduped, cosmetics, opts)
	if err != nil {
		return Result{}, err
	}

	return Result{SnapshotBytes: snapshotBytes, Stats: stats}, nil
}

// CompileError reports a whole-compile failure (as opposed to a single
// skipped rule, which is merely counted in Stats).
type CompileError struct {
	Reason string
}

func (e *CompileError) Error() string { return "compile: " + e.Reason }

// badfilterKey is the canonical identity spec.md §4.2 stage 4 folds on:
// action + pattern text + options minus badfilter + domain set.
func badfilterKey(nr *networkRule) string {
	var b strings.Builder
	b.WriteByte(byte(nr.action))
	b.WriteByte('|')
	b.WriteString(nr.patternText)
	b.WriteByte('|')
	b.WriteString(boolKey(nr.anchorLeft))
	b.WriteString(boolKey(nr.anchorRight))
	b.WriteString(boolKey(nr.hostAnchor))
	b.WriteByte('|')
	b.WriteString(nr.hostAnchorLabel)
	b.WriteByte('|')
	for _, t := range sortedCopy(nr.typeTokens) {
		b.WriteString(t)
		b.WriteByte(',')
	}
	b.WriteByte('|')
	for _, d := range sortedCopy(nr.domainInclude) {
		b.WriteString(d)
		b.WriteByte(',')
	}
	for _, d := range sortedCopy(nr.domainExclude) {
		b.WriteString("~")
		b.WriteString(d)
		b.WriteByte(',')
	}
	return b.String()
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

// foldBadfilter removes every non-badfilter rule sharing a canonical key
// with a badfilter rule, and drops badfilter rules themselves from the
// surviving set (spec.md §4.2 stage 4).
func foldBadfilter(rules []*networkRule) (survivors []*networkRule, badfilterCount, badfilteredCount int) {
	badfilterKeys := make(map[string]bool)
	for _, nr := range rules {
		if nr.badfilter {
			badfilterKeys[badfilterKey(nr)] = true
			badfilterCount++
		}
	}
	for _, nr := range rules {
		if nr.badfilter {
			continue
		}
		if badfilterKeys[badfilterKey(nr)] {
			badfilteredCount++
			continue
		}
		survivors = append(survivors, nr)
	}
	return survivors, badfilterCount, badfilteredCount
}

// hashDomainList hashes a slice of domain labels with the shared Hash64
// function used for suffix-walk comparisons.
func hashDomainList(labels []string) []hashing.Hash64 {
	out := make([]hashing.Hash64, len(labels))
	for i, l := range labels {
		out[i] = hashing.HashDomain(l)
	}
	return out
}
