package matcher

import (
	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/psl"
)

// TrustedSites is a HashSet of eTLD+1 values exempt from the entire
// static/dynamic pipeline (spec.md §4.3.1 stage A0).
type TrustedSites interface {
	Contains(etld1 string) bool
}

// RemoveparamGuard tracks, per (tab, frame, sanitized URL), whether stage
// A2 has already fired once recently. A second match within the guard's
// TTL means the host's own re-dispatch of the sanitized URL looped back
// into the matcher — CheckAndMark reports that case so the caller can let
// the request through instead of sanitizing (and thus "redirecting")
// forever. A nil guard disables loop protection (every match re-fires).
type RemoveparamGuard interface {
	CheckAndMark(tabID, frameID int64, url string) (alreadySanitized bool)
}

// Collaborators bundles the host-provided hooks MatchRequest consults
// alongside the snapshot; all are optional (nil disables that stage).
type Collaborators struct {
	Trusted          TrustedSites
	Dynamic          DynamicFilter
	RedirectCatalog  RedirectCatalog
	RemoveparamGuard RemoveparamGuard
}

// MatchRequest runs stages A0-A4 of spec.md §4.3.1 against one request and
// returns the winning Decision. Any internal error (a malformed snapshot
// section, an unexpected opcode) is swallowed and surfaced as ALLOW,
// per spec.md §5 "fail open": a matcher bug must never turn into a block.
func MatchRequest(snap *format.Snapshot, table *psl.Table, collab Collaborators, req Request, isMainFrame bool) Decision {
	d, err := matchRequest(snap, table, collab, req, isMainFrame)
	if err != nil {
		return Decision{Kind: DecisionAllow}
	}
	return d
}

func matchRequest(snap *format.Snapshot, table *psl.Table, collab Collaborators, req Request, isMainFrame bool) (Decision, error) {
	ctx := DeriveContext(req, req.Initiator, table, isMainFrame)

	// A0: trusted-site bypass short-circuits everything else.
	if collab.Trusted != nil && ctx.DocETLD1 != "" && collab.Trusted.Contains(ctx.DocETLD1) {
		return Decision{Kind: DecisionAllow}, nil
	}

	// A1: external dynamic-filtering matrix. A non-NOOP verdict wins
	// outright; it is host-provided and sits ahead of static filtering.
	if collab.Dynamic != nil {
		switch collab.Dynamic(ctx) {
		case DynamicBlock:
			return Decision{Kind: DecisionBlock}, nil
		case DynamicAllow:
			return Decision{Kind: DecisionAllow}, nil
		}
	}

	// A2: removeparam. A match here produces a terminal REMOVEPARAM
	// decision carrying the sanitized URL; the host re-dispatches it as a
	// new request, which re-enters MatchRequest from the top. The guard
	// stops that re-dispatch from sanitizing (and "redirecting") forever.
	rp, err := ComputeRemoveparam(snap, ctx, req)
	if err != nil {
		return Decision{}, err
	}
	if rp.Matched {
		looped := collab.RemoveparamGuard != nil && collab.RemoveparamGuard.CheckAndMark(req.TabID, req.FrameID, rp.SanitizedURL)
		if !looped {
			return Decision{Kind: DecisionRemoveparam, RuleID: rp.RuleID, ListID: rp.ListID, RedirectURL: rp.SanitizedURL}, nil
		}
	}

	// A3: static filtering.
	sections, err := loadStaticSections(snap)
	if err != nil {
		return Decision{}, err
	}
	winner, err := matchStatic(snap, sections, req.Type, ctx)
	if err != nil {
		return Decision{}, err
	}
	if winner == nil {
		return Decision{Kind: DecisionAllow}, nil
	}
	if winner.IsAllowClass() {
		return Decision{Kind: DecisionAllow, RuleID: winner.ID, ListID: winner.ListID}, nil
	}

	// A4: redirect semantics only apply on top of a BLOCK outcome.
	if redirectURL, ok, err := resolveRedirect(snap, sections, winner, collab.RedirectCatalog); err != nil {
		return Decision{}, err
	} else if ok {
		return Decision{Kind: DecisionRedirect, RuleID: winner.ID, ListID: winner.ListID, RedirectURL: redirectURL}, nil
	}

	return Decision{Kind: DecisionBlock, RuleID: winner.ID, ListID: winner.ListID}, nil
}
