package matcher

import (
	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/psl"
	"github.com/edgecomet/ubx/internal/ubx/rule"
)

// staticSections bundles the decoded byte slices one static-filtering pass
// (A3) needs, so callers fetch each section once per snapshot swap instead
// of once per request.
type staticSections struct {
	rules                []byte
	patternPool          []byte
	strPool              []byte
	domainConstraintPool []byte
}

func loadStaticSections(snap *format.Snapshot) (staticSections, error) {
	var s staticSections
	var err error
	if s.rules, err = snap.Section(format.SectionRules); err != nil {
		return s, err
	}
	if snap.Has(format.SectionPatternPool) {
		if s.patternPool, err = snap.Section(format.SectionPatternPool); err != nil {
			return s, err
		}
	}
	if snap.Has(format.SectionSTRPOOL) {
		if s.strPool, err = snap.Section(format.SectionSTRPOOL); err != nil {
			return s, err
		}
	}
	if snap.Has(format.SectionDomainConstraintPool) {
		if s.domainConstraintPool, err = snap.Section(format.SectionDomainConstraintPool); err != nil {
			return s, err
		}
	}
	return s, nil
}

// requestSchemeMask maps a Context's parsed scheme to the bit the rule
// model's SchemeMask uses.
func requestSchemeMask(scheme string) rule.SchemeMask {
	switch scheme {
	case "http":
		return rule.SchemeHTTP
	case "https":
		return rule.SchemeHTTPS
	case "ws":
		return rule.SchemeWS
	case "wss":
		return rule.SchemeWSS
	default:
		return rule.SchemeOther
	}
}

func requestPartyMask(isThirdParty bool) rule.PartyMask {
	if isThirdParty {
		return rule.PartyThird
	}
	return rule.PartyFirst
}

// filterCommon applies the type/party/scheme/domain-constraint/pattern
// checks shared by every rule-action pipeline (static network filtering,
// response headers, CSP injection, removeparam). Action-specific dispatch
// (which actions participate, and the precedence ladder over survivors) is
// the caller's job; this only answers "does r apply to this request at
// all."
func filterCommon(sections staticSections, reqType rule.ResourceType, reqPartyMask rule.PartyMask, reqSchemeMask rule.SchemeMask, docSuffixHashes []hashing.Hash64, ctx *Context, r *rule.Rule) bool {
	if r.TypeMask != rule.TypeMaskAll && !r.TypeMask.Has(reqType) {
		return false
	}
	if r.PartyMask != 0 && r.PartyMask&reqPartyMask == 0 {
		return false
	}
	if r.SchemeMask != 0 && r.SchemeMask&reqSchemeMask == 0 {
		return false
	}
	if r.DomainConstraintOffset != rule.NoDomainConstraint {
		dc := decodeDomainConstraint(sections.domainConstraintPool, r.DomainConstraintOffset)
		if dc != nil && !dc.Satisfies(docSuffixHashes) {
			return false
		}
	}
	if r.PatternID != rule.NoPattern {
		pat := decodePattern(sections.patternPool, sections.strPool, r.PatternID)
		if !execPattern(pat, ctx, sections.strPool, psl.SuffixHashes(ctx.URL.Host)) {
			return false
		}
	}
	return true
}

// matchStatic implements spec.md §4.3.1 stage A3: gather candidates,
// filter each by type/party/scheme/domain-constraint/pattern, then apply
// the precedence ladder (IMPORTANT BLOCK > ALLOW > BLOCK > default ALLOW,
// ties broken by priority then rule ID). Only ActionAllow/ActionBlock and
// ActionRedirectDirective participate here — a $redirect rule is a BLOCK
// with a redirect target attached, so it sits on the BLOCK side of the
// ladder (stage A4 resolves the redirect target afterward). Header-match
// actions are excluded entirely: they're reserved for the response-header
// pipeline (headers.go), even though they share the same precedence shape.
func matchStatic(snap *format.Snapshot, sections staticSections, reqType rule.ResourceType, ctx *Context) (*rule.Rule, error) {
	ids, err := gatherCandidates(snap, ctx.URL)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	reqPartyMask := requestPartyMask(ctx.IsThirdParty)
	reqSchemeMask := requestSchemeMask(ctx.URL.Scheme)
	docSuffixHashes := psl.SuffixHashes(ctx.DocumentHost())

	seen := make(map[uint32]struct{}, len(ids))
	var importantBlock, allow, block *rule.Rule

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		r := ruleAt(sections.rules, id)
		blockClass := r.Action == rule.ActionBlock || r.Action == rule.ActionRedirectDirective
		if r.Action != rule.ActionAllow && !blockClass {
			continue
		}
		if !filterCommon(sections, reqType, reqPartyMask, reqSchemeMask, docSuffixHashes, ctx, &r) {
			continue
		}

		switch {
		case blockClass && r.Flags.Has(rule.FlagImportant):
			importantBlock = keepBetter(importantBlock, &r)
		case r.Action == rule.ActionAllow:
			allow = keepBetter(allow, &r)
		case blockClass:
			block = keepBetter(block, &r)
		}
	}

	if importantBlock != nil {
		return importantBlock, nil
	}
	if allow != nil {
		return allow, nil
	}
	if block != nil {
		return block, nil
	}
	return nil, nil
}

// keepBetter resolves a tie within one precedence class: higher priority
// wins, then lower (earlier-assigned) rule ID.
func keepBetter(cur, candidate *rule.Rule) *rule.Rule {
	if cur == nil {
		return candidate
	}
	if candidate.Priority != cur.Priority {
		if candidate.Priority > cur.Priority {
			return candidate
		}
		return cur
	}
	if candidate.ID < cur.ID {
		return candidate
	}
	return cur
}
