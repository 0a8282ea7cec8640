package matcher

import (
	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/rule"
)

// RedirectCatalog resolves a compiler-emitted redirect token (e.g. "noop.js",
// "1x1.gif") to the surrogate resource body the host should serve instead
// of the blocked request. The catalog itself is host/engine-provided —
// REDIRECT_RESOURCES only carries the token name a rule referenced, never
// the resource bytes (internal/ubx/compiler's Compile() decision, see
// DESIGN.md) — so the matcher only ever consumes this interface, it never
// constructs one.
type RedirectCatalog interface {
	Resolve(token string) (dataURL string, ok bool)
}

// resolveRedirect implements spec.md §4.3.1 stage A4: look up the winning
// rule's redirect token in REDIRECT_RESOURCES, then resolve that token
// through catalog. Returns ("", false) if the winner isn't a redirect
// rule, carries no token, or the catalog doesn't recognize the token —
// any of which degrade the caller to a plain BLOCK, which is the correct
// spec.md fallback, not a silent failure.
func resolveRedirect(snap *format.Snapshot, sections staticSections, winner *rule.Rule, catalog RedirectCatalog) (string, bool, error) {
	if winner.Action != rule.ActionRedirectDirective || catalog == nil {
		return "", false, nil
	}
	if winner.OptionID == rule.NoOption {
		return "", false, nil
	}
	if !snap.Has(format.SectionRedirectResources) {
		return "", false, nil
	}
	resources, err := snap.Section(format.SectionRedirectResources)
	if err != nil {
		return "", false, err
	}
	token := optionText(resources, sections.strPool, winner.OptionID)
	if token == "" {
		return "", false, nil
	}
	dataURL, ok := catalog.Resolve(token)
	return dataURL, ok, nil
}
