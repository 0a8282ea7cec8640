package compiler

import "strings"

// cosmeticRule is a compiled cosmetic/procedural/scriptlet record, keyed
// by a hostname list ("generic" when empty) per spec.md §4.2 "Cosmetic,
// procedural, scriptlet... records are compiled analogously".
type cosmeticRule struct {
	listID   uint16
	hosts    []string // empty means generic (applies everywhere)
	negHosts []string // "~host" entries: rule does not apply there
	exception bool
	selector string // CSS selector, procedural program text, or scriptlet call

	isScriptlet  bool
	scriptletName string
	scriptletArgs []string

	isProcedural bool

	generichideToggle bool // "generichide" pseudo-selector in an exception rule
	elemhideToggle    bool
}

// parseCosmeticRule splits a classified cosmetic line on its separator and
// builds a cosmeticRule. Procedural rules (selector contains a
// procedural operator like `:has`, `:matches-css`) are flagged but kept as
// opaque program text; spec.md treats the procedural VM as a runtime
// concern, not a compiler concern beyond storage.
func parseCosmeticRule(line string, kind lineKind, listID uint16) (*cosmeticRule, SkipReason) {
	idx := cosmeticSeparatorIndex(line)
	if idx < 0 {
		return nil, SkipParseError
	}
	sep, sepLen := cosmeticSeparatorAt(line, idx)
	if sep == "" {
		return nil, SkipParseError
	}
	hostPart := line[:idx]
	body := line[idx+sepLen:]

	cr := &cosmeticRule{listID: listID, exception: kind == lineCosmeticException}

	if hostPart != "" {
		for _, h := range strings.Split(hostPart, ",") {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if strings.HasPrefix(h, "~") {
				cr.negHosts = append(cr.negHosts, h[1:])
			} else {
				cr.hosts = append(cr.hosts, h)
			}
		}
	}

	if body == "generichide" {
		cr.generichideToggle = true
		return cr, ""
	}
	if body == "elemhide" {
		cr.elemhideToggle = true
		return cr, ""
	}

	if strings.HasPrefix(body, "+js(") && strings.HasSuffix(body, ")") {
		cr.isScriptlet = true
		inner := body[4 : len(body)-1]
		parts := strings.Split(inner, ",")
		cr.scriptletName = strings.TrimSpace(parts[0])
		for _, a := range parts[1:] {
			cr.scriptletArgs = append(cr.scriptletArgs, strings.TrimSpace(a))
		}
		return cr, ""
	}

	if strings.Contains(body, ":has(") || strings.Contains(body, ":matches-css") || strings.Contains(body, ":xpath(") || strings.Contains(body, ":upward(") {
		cr.isProcedural = true
	}

	if body == "" {
		return nil, SkipEmptyPattern
	}
	cr.selector = body
	return cr, ""
}
