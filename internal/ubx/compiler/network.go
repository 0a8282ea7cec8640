package compiler

import (
	"strings"

	"golang.org/x/net/idna"

	"github.com/edgecomet/ubx/internal/ubx/rule"
)

// networkRule is the parser's in-flight representation of one network
// filter, before token selection and bytecode compilation (spec.md §4.2
// stages 2-5).
type networkRule struct {
	id     uint32
	listID uint16
	raw    string

	action rule.Action
	flags  rule.Flags

	typeMask   rule.TypeMask
	typeTokens []string // canonical option tokens, kept for badfilter key
	partyMask  rule.PartyMask
	schemeMask rule.SchemeMask

	patternText     string // the pattern body, anchors/wildcards intact
	anchorLeft      bool
	anchorRight     bool
	hostAnchor      bool
	hostAnchorLabel string // hostname text when hostAnchor is set
	hostnameOnly    bool   // pattern reduces to exactly the host anchor

	domainInclude []string
	domainExclude []string

	badfilter bool

	redirectToken string
	redirectRule  bool
	removeparam   string
	csp           string
	header        string
	responseheader string

	priority int16

	pattern *compiledPattern // filled in by compilePattern
	token   string           // chosen index token, "" if none
}

// regexMaxLength mirrors DefaultOptions().MaxRegexLength; kept as a
// constant here since the line-by-line parser does not thread Options
// through per-rule.
const regexMaxLength = 512

var typeTokenBits = map[string]rule.ResourceType{
	"script":          rule.TypeScript,
	"image":           rule.TypeImage,
	"stylesheet":      rule.TypeStylesheet,
	"xmlhttprequest":  rule.TypeXHR,
	"xhr":             rule.TypeXHR,
	"subdocument":     rule.TypeSubFrame,
	"frame":           rule.TypeSubFrame,
	"main_frame":      rule.TypeMainFrame,
	"font":            rule.TypeFont,
	"media":           rule.TypeMedia,
	"ping":            rule.TypePing,
	"websocket":       rule.TypeWebsocket,
	"other":           rule.TypeOther,
	"object":          rule.TypeObject,
}

// parseNetworkRule parses one non-blank, non-comment, non-cosmetic line
// into a networkRule, per spec.md §4.2 stage 2. An empty SkipReason means
// the rule was accepted.
func parseNetworkRule(line string, listID uint16) (*networkRule, SkipReason) {
	nr := &networkRule{raw: line, listID: listID, action: rule.ActionBlock}

	body := line
	if strings.HasPrefix(body, "@@") {
		nr.action = rule.ActionAllow
		body = body[2:]
	}

	pattern := body
	options := ""
	if idx := strings.IndexByte(body, '$'); idx >= 0 {
		pattern = body[:idx]
		options = body[idx+1:]
	}

	if pattern == "" {
		return nil, SkipEmptyPattern
	}

	if options != "" {
		if reason := applyOptions(nr, options); reason != "" {
			return nil, reason
		}
	}
	if nr.typeMask == 0 {
		nr.typeMask = rule.TypeMaskAll
	}
	if nr.partyMask == 0 {
		nr.partyMask = rule.PartyMaskAll
	}
	if nr.schemeMask == 0 {
		nr.schemeMask = rule.SchemeMaskAll
	}

	if src, isRegex := isRegexLiteral(pattern); isRegex {
		if !isSafeRegex(src, regexMaxLength) {
			return nil, SkipRegexUnsafe
		}
		nr.flags |= rule.FlagIsRegex
		nr.patternText = src
		return nr, ""
	}

	if strings.HasPrefix(pattern, "||") {
		nr.hostAnchor = true
		nr.flags |= rule.FlagHostnameAnchor
		pattern = pattern[2:]
		end := len(pattern)
		for i, c := range pattern {
			if c == '/' || c == '^' || c == '*' {
				end = i
				break
			}
		}
		nr.hostAnchorLabel = pattern[:end]
		rest := pattern[end:]
		rest = strings.TrimPrefix(rest, "^")
		if rest == "" {
			nr.hostnameOnly = true
		}
		pattern = rest
	} else {
		if strings.HasPrefix(pattern, "|") {
			nr.anchorLeft = true
			nr.flags |= rule.FlagLeftAnchor
			pattern = pattern[1:]
		}
	}
	if strings.HasSuffix(pattern, "|") && !strings.HasSuffix(pattern, "\\|") {
		nr.anchorRight = true
		nr.flags |= rule.FlagRightAnchor
		pattern = strings.TrimSuffix(pattern, "|")
	}

	nr.patternText = pattern
	return nr, ""
}

// applyOptions parses the comma-separated `$` option list (spec.md §4.2
// stage 2). Returns a non-empty SkipReason for any unrecognized option.
func applyOptions(nr *networkRule, options string) SkipReason {
	for _, opt := range splitOptions(options) {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		neg := strings.HasPrefix(opt, "~")
		key := strings.TrimPrefix(opt, "~")
		name, value, hasValue := strings.Cut(key, "=")

		switch name {
		case "important":
			nr.flags |= rule.FlagImportant
		case "match-case":
			nr.flags |= rule.FlagMatchCase
		case "third-party", "3p":
			nr.partyMask |= rule.PartyThird
			if neg {
				nr.partyMask = rule.PartyFirst
			}
		case "1p", "first-party":
			nr.partyMask |= rule.PartyFirst
		case "badfilter":
			nr.badfilter = true
		case "domain":
			if !hasValue {
				return SkipUnknownOption
			}
			for _, d := range strings.Split(value, "|") {
				d = strings.ToLower(strings.TrimSpace(d))
				if d == "" {
					continue
				}
				if strings.HasPrefix(d, "~") {
					nr.domainExclude = appendUnique(nr.domainExclude, d[1:])
				} else {
					nr.domainInclude = appendUnique(nr.domainInclude, d)
				}
			}
		case "redirect":
			if !hasValue {
				return SkipUnknownOption
			}
			nr.redirectToken = value
			nr.action = rule.ActionRedirectDirective
		case "redirect-rule":
			if !hasValue {
				nr.redirectRule = true
				nr.flags |= rule.FlagRedirectRuleException
				continue
			}
			nr.redirectToken = value
			nr.redirectRule = true
			nr.action = rule.ActionRedirectDirective
		case "removeparam":
			nr.removeparam = value
			nr.action = rule.ActionRemoveparam
		case "csp":
			nr.csp = value
			if value == "" || nr.action == rule.ActionAllow {
				nr.flags |= rule.FlagCSPException
			}
			nr.action = rule.ActionCSPInject
		case "header":
			nr.header = value
			if nr.action == rule.ActionAllow {
				nr.action = rule.ActionHeaderMatchAllow
			} else {
				nr.action = rule.ActionHeaderMatchBlock
			}
		case "responseheader":
			nr.responseheader = value
			nr.action = rule.ActionResponseheaderRemove
		default:
			if rt, ok := typeTokenBits[name]; ok {
				nr.typeTokens = appendUnique(nr.typeTokens, name)
				if neg {
					if nr.typeMask == 0 {
						nr.typeMask = rule.TypeMaskAll
					}
					nr.typeMask &^= 1 << uint(rt)
				} else {
					nr.typeMask |= 1 << uint(rt)
				}
				continue
			}
			if name == "document" {
				bit := rule.TypeMask(1<<rule.TypeMainFrame | 1<<rule.TypeSubFrame)
				nr.typeTokens = appendUnique(nr.typeTokens, name)
				if neg {
					if nr.typeMask == 0 {
						nr.typeMask = rule.TypeMaskAll
					}
					nr.typeMask &^= bit
				} else {
					nr.typeMask |= bit
				}
				continue
			}
			if name == "all" {
				nr.typeMask = rule.TypeMaskAll
				continue
			}
			return SkipUnknownOption
		}
	}
	return ""
}

func splitOptions(options string) []string {
	return strings.Split(options, ",")
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

// normalizeNetworkRule lowercases host parts and punycode-encodes the
// hostname anchor and domain set entries (spec.md §4.2 stage 3).
func normalizeNetworkRule(nr *networkRule) {
	if nr.hostAnchor {
		nr.hostAnchorLabel = punycode(strings.ToLower(nr.hostAnchorLabel))
	}
	for i, d := range nr.domainInclude {
		nr.domainInclude[i] = punycode(d)
	}
	for i, d := range nr.domainExclude {
		nr.domainExclude[i] = punycode(d)
	}
	sortInPlace(nr.domainInclude)
	sortInPlace(nr.domainExclude)
	if !nr.flags.Has(rule.FlagMatchCase) {
		nr.patternText = strings.ToLower(nr.patternText)
	}
}

func punycode(host string) string {
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}

func sortInPlace(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// parseHostsFormatLine converts a hosts-file-format entry ("0.0.0.0 host")
// into an equivalent hostname-anchored BLOCK rule.
func parseHostsFormatLine(line string, listID uint16) (*networkRule, SkipReason) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, SkipParseError
	}
	host := fields[1]
	if host == "localhost" || host == "localhost.localdomain" || host == "local" {
		return nil, SkipParseError
	}
	nr := &networkRule{
		raw:             line,
		listID:          listID,
		action:          rule.ActionBlock,
		hostAnchor:      true,
		hostnameOnly:    true,
		hostAnchorLabel: host,
		typeMask:        rule.TypeMaskAll,
		partyMask:       rule.PartyMaskAll,
		schemeMask:      rule.SchemeMaskAll,
		flags:           rule.FlagHostnameAnchor,
	}
	return nr, ""
}

// priorityOf derives a rule's redirect-ranking priority. Explicit
// $important options rank highest (1000); every other rule gets 0, so
// among those the rule id is the final tiebreak per spec.md §9 open
// question (b).
func priorityOf(nr *networkRule) int16 {
	if nr.flags.Has(rule.FlagImportant) {
		return 1000
	}
	return 0
}
