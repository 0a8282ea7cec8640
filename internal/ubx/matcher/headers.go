package matcher

import (
	"strings"

	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/psl"
	"github.com/edgecomet/ubx/internal/ubx/rule"
)

// Header is one HTTP response header the host observed on a document
// response.
type Header struct {
	Name  string
	Value string
}

// ResponseHeaderResult is the outcome of MatchResponseHeaders: the
// block/allow verdict from header-match rules, the response headers the
// host should strip, and the CSP directives the host should inject
// (spec.md §4.3.2).
type ResponseHeaderResult struct {
	Decision      Decision
	RemoveHeaders []string
	InjectCSP     []string
}

// removableHeaders is the safe allowlist response-header removal may act
// on. CSP is deliberately absent: CSP is manipulated exclusively through
// $csp injection/exception semantics below, never through raw removal, so
// a $responseheader=content-security-policy rule can never silence it.
var removableHeaders = map[string]struct{}{
	"x-frame-options":          {},
	"set-cookie":               {},
	"referrer-policy":          {},
	"permissions-policy":       {},
	"strict-transport-security": {},
	"x-content-type-options":   {},
	"cross-origin-opener-policy": {},
	"cross-origin-embedder-policy": {},
}

// MatchResponseHeaders implements spec.md §4.3.2: it only inspects
// document loads (main_frame/sub_frame); every other resource type passes
// through untouched. Internal errors fail open (ALLOW, no header
// mutation), matching MatchRequest's fail-open contract (spec.md §5).
func MatchResponseHeaders(snap *format.Snapshot, table *psl.Table, req Request, headers []Header, isMainFrame bool) ResponseHeaderResult {
	res, err := matchResponseHeaders(snap, table, req, headers, isMainFrame)
	if err != nil {
		return ResponseHeaderResult{Decision: Decision{Kind: DecisionAllow}}
	}
	return res
}

func matchResponseHeaders(snap *format.Snapshot, table *psl.Table, req Request, headers []Header, isMainFrame bool) (ResponseHeaderResult, error) {
	if req.Type != rule.TypeMainFrame && req.Type != rule.TypeSubFrame {
		return ResponseHeaderResult{Decision: Decision{Kind: DecisionAllow}}, nil
	}
	if snap == nil {
		return ResponseHeaderResult{Decision: Decision{Kind: DecisionAllow}}, nil
	}

	ctx := DeriveContext(req, req.Initiator, table, isMainFrame)
	sections, err := loadStaticSections(snap)
	if err != nil {
		return ResponseHeaderResult{}, err
	}

	ids, err := gatherCandidates(snap, ctx.URL)
	if err != nil {
		return ResponseHeaderResult{}, err
	}

	var headerSpecs, cspSpecs, responseheaderRules []byte
	if snap.Has(format.SectionHeaderSpecs) {
		if headerSpecs, err = snap.Section(format.SectionHeaderSpecs); err != nil {
			return ResponseHeaderResult{}, err
		}
	}
	if snap.Has(format.SectionCSPSpecs) {
		if cspSpecs, err = snap.Section(format.SectionCSPSpecs); err != nil {
			return ResponseHeaderResult{}, err
		}
	}
	if snap.Has(format.SectionResponseheaderRules) {
		if responseheaderRules, err = snap.Section(format.SectionResponseheaderRules); err != nil {
			return ResponseHeaderResult{}, err
		}
	}

	reqPartyMask := requestPartyMask(ctx.IsThirdParty)
	reqSchemeMask := requestSchemeMask(ctx.URL.Scheme)
	docSuffixHashes := psl.SuffixHashes(ctx.DocumentHost())

	seen := make(map[uint32]struct{}, len(ids))
	var importantBlock, allow, block *rule.Rule
	var cspInject, cspExceptAll, cspExceptDirective []string
	var removeSet = map[string]struct{}{}

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		r := ruleAt(sections.rules, id)

		switch r.Action {
		case rule.ActionHeaderMatchBlock, rule.ActionHeaderMatchAllow:
			if !filterCommon(sections, req.Type, reqPartyMask, reqSchemeMask, docSuffixHashes, ctx, &r) {
				continue
			}
			spec := optionText(headerSpecs, sections.strPool, r.OptionID)
			if !headerSpecMatches(spec, headers) {
				continue
			}
			switch {
			case r.Action == rule.ActionHeaderMatchBlock && r.Flags.Has(rule.FlagImportant):
				importantBlock = keepBetter(importantBlock, &r)
			case r.Action == rule.ActionHeaderMatchAllow:
				allow = keepBetter(allow, &r)
			case r.Action == rule.ActionHeaderMatchBlock:
				block = keepBetter(block, &r)
			}

		case rule.ActionCSPInject:
			if !filterCommon(sections, req.Type, reqPartyMask, reqSchemeMask, docSuffixHashes, ctx, &r) {
				continue
			}
			directive := optionText(cspSpecs, sections.strPool, r.OptionID)
			if r.Flags.Has(rule.FlagCSPException) {
				if directive == "" {
					cspExceptAll = append(cspExceptAll, "*")
				} else {
					cspExceptDirective = append(cspExceptDirective, directive)
				}
				continue
			}
			if directive != "" {
				cspInject = append(cspInject, directive)
			}

		case rule.ActionResponseheaderRemove:
			if !filterCommon(sections, req.Type, reqPartyMask, reqSchemeMask, docSuffixHashes, ctx, &r) {
				continue
			}
			name := strings.ToLower(optionText(responseheaderRules, sections.strPool, r.OptionID))
			if _, safe := removableHeaders[name]; safe {
				removeSet[name] = struct{}{}
			}
		}
	}

	result := ResponseHeaderResult{Decision: Decision{Kind: DecisionAllow}}
	switch {
	case importantBlock != nil:
		result.Decision = Decision{Kind: DecisionBlock, RuleID: importantBlock.ID, ListID: importantBlock.ListID}
	case allow != nil:
		result.Decision = Decision{Kind: DecisionAllow, RuleID: allow.ID, ListID: allow.ListID}
	case block != nil:
		result.Decision = Decision{Kind: DecisionBlock, RuleID: block.ID, ListID: block.ListID}
	}

	if len(cspExceptAll) == 0 {
		directiveName := func(d string) string {
			name, _, _ := strings.Cut(d, " ")
			return name
		}
		excluded := make(map[string]struct{}, len(cspExceptDirective))
		for _, d := range cspExceptDirective {
			excluded[directiveName(d)] = struct{}{}
		}
		for _, d := range cspInject {
			if _, ex := excluded[directiveName(d)]; ex {
				continue
			}
			result.InjectCSP = append(result.InjectCSP, d)
		}
	}

	for name := range removeSet {
		result.RemoveHeaders = append(result.RemoveHeaders, name)
	}

	return result, nil
}

// headerSpecMatches reports whether spec ("name" or "name:substring") is
// satisfied by the observed response headers, per uBO's $header= option
// (bare name means "present"; name:value means "present and contains
// value", compared case-insensitively).
func headerSpecMatches(spec string, headers []Header) bool {
	if spec == "" {
		return false
	}
	name, value, hasValue := strings.Cut(spec, ":")
	name = strings.ToLower(strings.TrimSpace(name))
	for _, h := range headers {
		if !strings.EqualFold(h.Name, name) {
			continue
		}
		if !hasValue {
			return true
		}
		if strings.Contains(strings.ToLower(h.Value), strings.ToLower(value)) {
			return true
		}
	}
	return false
}
