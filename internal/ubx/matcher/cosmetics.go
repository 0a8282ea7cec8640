package matcher

import (
	"strings"

	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/psl"
)

// ScriptletCall is one (name, args) scriptlet invocation to run in the page.
type ScriptletCall struct {
	Name string
	Args []string
}

// CosmeticResult is the outcome of MatchCosmetics: the CSS selectors to
// hide (already union-minus-exception resolved) and the scriptlets to
// inject, per spec.md §4.3.3.
type CosmeticResult struct {
	Selectors  []string
	Scriptlets []ScriptletCall
}

const genericHostHash = hashing.Hash64(0)

// MatchCosmetics resolves the cosmetic/scriptlet pipeline for host:
// suffix-walk COSMETIC_RULES, union every matching "hide" selector minus
// every matching "exception" selector, honor the elemhide/generichide
// toggles, and collect hostname-specific scriptlet calls from
// SCRIPTLET_RULES. enableGeneric selects whether generic (hostHash==0)
// hide selectors participate at all (spec.md §8 scenario 7).
func MatchCosmetics(snap *format.Snapshot, host string, enableGeneric bool) (CosmeticResult, error) {
	if snap == nil || !snap.Has(format.SectionCosmeticRules) {
		if snap != nil && snap.Has(format.SectionScriptletRules) {
			scriptlets, err := matchScriptlets(snap, host)
			if err != nil {
				return CosmeticResult{}, err
			}
			return CosmeticResult{Scriptlets: scriptlets}, nil
		}
		return CosmeticResult{}, nil
	}

	section, err := snap.Section(format.SectionCosmeticRules)
	if err != nil {
		return CosmeticResult{}, err
	}

	scope := make(map[hashing.Hash64]struct{})
	for _, h := range psl.SuffixHashes(host) {
		scope[h] = struct{}{}
	}
	scope[genericHostHash] = struct{}{}

	var strPool []byte
	if snap.Has(format.SectionSTRPOOL) {
		strPool, err = snap.Section(format.SectionSTRPOOL)
		if err != nil {
			return CosmeticResult{}, err
		}
	}

	elemhide := false
	generichide := !enableGeneric
	var hide, genericHide, except []string

	n := format.CosmeticRecordCount(section)
	for i := 0; i < n; i++ {
		rec := format.DecodeCosmeticRecord(section, i)
		if _, inScope := scope[hashing.Hash64(rec.HostHash)]; !inScope {
			continue
		}
		switch rec.Kind {
		case format.CosmeticKindElemhideToggle:
			elemhide = true
		case format.CosmeticKindGenerichideToggle:
			generichide = true
		case format.CosmeticKindHide:
			if rec.HostHash == uint64(genericHostHash) {
				genericHide = append(genericHide, cosmeticText(strPool, rec))
				continue
			}
			hide = append(hide, cosmeticText(strPool, rec))
		case format.CosmeticKindException:
			except = append(except, cosmeticText(strPool, rec))
		}
	}
	// Generic selectors are added only after every record has been seen,
	// so a generichide toggle stored after them still removes them.
	if !generichide {
		hide = append(hide, genericHide...)
	}

	result := CosmeticResult{}
	if !elemhide {
		result.Selectors = subtractSelectors(hide, except)
	}

	scriptlets, err := matchScriptlets(snap, host)
	if err != nil {
		return CosmeticResult{}, err
	}
	result.Scriptlets = scriptlets
	return result, nil
}

// matchScriptlets collects hostname-specific scriptlet calls. Generic
// (hostHash==0) scriptlet records are never emitted — spec.md §4.3.3
// restricts scriptlet injection to explicitly hostname-scoped rules.
func matchScriptlets(snap *format.Snapshot, host string) ([]ScriptletCall, error) {
	if !snap.Has(format.SectionScriptletRules) {
		return nil, nil
	}
	section, err := snap.Section(format.SectionScriptletRules)
	if err != nil {
		return nil, err
	}
	var strPool []byte
	if snap.Has(format.SectionSTRPOOL) {
		strPool, err = snap.Section(format.SectionSTRPOOL)
		if err != nil {
			return nil, err
		}
	}

	scope := make(map[hashing.Hash64]struct{})
	for _, h := range psl.SuffixHashes(host) {
		scope[h] = struct{}{}
	}

	var out []ScriptletCall
	n := format.CosmeticRecordCount(section)
	for i := 0; i < n; i++ {
		rec := format.DecodeCosmeticRecord(section, i)
		if rec.HostHash == uint64(genericHostHash) {
			continue
		}
		if _, inScope := scope[hashing.Hash64(rec.HostHash)]; !inScope {
			continue
		}
		parts := strings.Split(cosmeticText(strPool, rec), "\x00")
		call := ScriptletCall{Name: parts[0]}
		if len(parts) > 1 {
			call.Args = parts[1:]
		}
		out = append(out, call)
	}
	return out, nil
}

func cosmeticText(strPool []byte, rec format.CosmeticRecord) string {
	if strPool == nil || rec.TextLength == 0 {
		return ""
	}
	return string(strPool[rec.TextOffset : rec.TextOffset+rec.TextLength])
}

// subtractSelectors returns hide minus except, preserving hide's order and
// deduplicating.
func subtractSelectors(hide, except []string) []string {
	if len(hide) == 0 {
		return nil
	}
	excluded := make(map[string]struct{}, len(except))
	for _, e := range except {
		excluded[e] = struct{}{}
	}
	seen := make(map[string]struct{}, len(hide))
	out := make([]string, 0, len(hide))
	for _, s := range hide {
		if _, ex := excluded[s]; ex {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
