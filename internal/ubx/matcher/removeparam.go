package matcher

import (
	"strings"

	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/psl"
	"github.com/edgecomet/ubx/internal/ubx/rule"
	"github.com/edgecomet/ubx/internal/ubx/urlparse"
)

// RemoveparamResult is the outcome of ComputeRemoveparam.
type RemoveparamResult struct {
	SanitizedURL string
	Matched      bool
	RuleID       uint32
	ListID       uint16
}

// ComputeRemoveparam implements spec.md §4.3.1/§4.3.4 stage A2: gather
// $removeparam candidates, strip every query parameter any matching rule
// names (an empty spec strips every parameter), and report whether the
// URL actually changed. It is pure and stateless; the per-(tab,frame,URL)
// redirect-loop guard that decides whether a sanitized URL should
// actually be re-dispatched lives in internal/ubx/engine, which is the
// only layer with a notion of "this request has already been through
// stage A2 once."
func ComputeRemoveparam(snap *format.Snapshot, ctx *Context, req Request) (RemoveparamResult, error) {
	sections, err := loadStaticSections(snap)
	if err != nil {
		return RemoveparamResult{}, err
	}
	ids, err := gatherCandidates(snap, ctx.URL)
	if err != nil {
		return RemoveparamResult{}, err
	}
	if len(ids) == 0 {
		return RemoveparamResult{}, nil
	}

	var specs []byte
	if snap.Has(format.SectionRemoveparamSpecs) {
		if specs, err = snap.Section(format.SectionRemoveparamSpecs); err != nil {
			return RemoveparamResult{}, err
		}
	}

	reqPartyMask := requestPartyMask(ctx.IsThirdParty)
	reqSchemeMask := requestSchemeMask(ctx.URL.Scheme)
	docSuffixHashes := psl.SuffixHashes(ctx.DocumentHost())

	seen := make(map[uint32]struct{}, len(ids))
	stripAll := false
	names := map[string]struct{}{}
	var winner *rule.Rule

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		r := ruleAt(sections.rules, id)
		if r.Action != rule.ActionRemoveparam {
			continue
		}
		if !filterCommon(sections, req.Type, reqPartyMask, reqSchemeMask, docSuffixHashes, ctx, &r) {
			continue
		}
		spec := strings.ToLower(optionText(specs, sections.strPool, r.OptionID))
		if spec == "" {
			stripAll = true
		} else {
			names[spec] = struct{}{}
		}
		if winner == nil {
			winner = &r
		}
	}

	if winner == nil {
		return RemoveparamResult{}, nil
	}

	sanitized, changed := stripQueryParams(req.URL, ctx.URL, stripAll, names)
	if !changed {
		return RemoveparamResult{}, nil
	}
	return RemoveparamResult{SanitizedURL: sanitized, Matched: true, RuleID: winner.ID, ListID: winner.ListID}, nil
}

// stripQueryParams rebuilds rawURL with matching query parameters removed.
// Deliberately manual (not net/url) to stay consistent with the rest of
// the package's allocation-light hot path; query strings are small and a
// single pass over '&'-delimited pairs is enough.
func stripQueryParams(rawURL string, parsed urlparse.Context, stripAll bool, names map[string]struct{}) (string, bool) {
	query := parsed.Query()
	if query == "" {
		return rawURL, false
	}

	pairs := strings.Split(query, "&")
	kept := make([]string, 0, len(pairs))
	changed := false
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		key = strings.ToLower(key)
		if stripAll {
			changed = true
			continue
		}
		if _, drop := names[key]; drop {
			changed = true
			continue
		}
		kept = append(kept, pair)
	}
	if !changed {
		return rawURL, false
	}

	queryIdx := strings.IndexByte(rawURL, '?')
	base := rawURL
	fragment := ""
	if queryIdx >= 0 {
		base = rawURL[:queryIdx]
		rest := rawURL[queryIdx+1:]
		if h := strings.IndexByte(rest, '#'); h >= 0 {
			fragment = rest[h:]
		}
	}
	if len(kept) == 0 {
		return base + fragment, true
	}
	return base + "?" + strings.Join(kept, "&") + fragment, true
}
