// Package matcher implements the runtime decision engine: context
// derivation, candidate gathering, pattern-bytecode evaluation, and the
// uBO precedence ladder described in spec.md §4.3. It is deliberately
// stateless with respect to snapshot lifetime — the stateful swap/cache
// wrapper lives in internal/ubx/engine, per spec.md §9 "Global state...
// should be modeled as fields of a single Engine value."
package matcher

import "github.com/edgecomet/ubx/internal/ubx/rule"

// DecisionKind is the wire-coded outcome of match_request (spec.md §6
// "Decisions are integer-coded").
type DecisionKind uint8

const (
	DecisionAllow DecisionKind = iota
	DecisionBlock
	DecisionRedirect
	DecisionRemoveparam
)

// Decision is the result of MatchRequest.
type Decision struct {
	Kind        DecisionKind
	RuleID      uint32
	ListID      uint16
	RedirectURL string
}

// Request is one network request to classify.
type Request struct {
	URL       string
	Type      rule.ResourceType
	Initiator string // empty if none
	TabID     int64
	FrameID   int64
	RequestID string
}

// TypeFromName maps a host-supplied type string to a ResourceType,
// defaulting unknown names to TypeOther (spec.md §6 "Unknown types map to
// other").
func TypeFromName(name string) rule.ResourceType {
	switch name {
	case "main_frame":
		return rule.TypeMainFrame
	case "sub_frame":
		return rule.TypeSubFrame
	case "script":
		return rule.TypeScript
	case "stylesheet":
		return rule.TypeStylesheet
	case "image":
		return rule.TypeImage
	case "xmlhttprequest":
		return rule.TypeXHR
	case "font":
		return rule.TypeFont
	case "ping":
		return rule.TypePing
	case "media":
		return rule.TypeMedia
	case "websocket":
		return rule.TypeWebsocket
	default:
		return rule.TypeOther
	}
}

// DynamicVerdict is the external dynamic-filtering matrix's answer
// (spec.md §4.3.1 A1, §9 open question (c): "BLOCK | ALLOW | NOOP").
type DynamicVerdict uint8

const (
	DynamicNoop DynamicVerdict = iota
	DynamicAllow
	DynamicBlock
)

// DynamicFilter is the host-provided collaborator consulted at stage A1.
// A nil DynamicFilter is equivalent to one that always returns DynamicNoop.
type DynamicFilter func(ctx *Context) DynamicVerdict
