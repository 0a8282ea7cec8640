// Package rule defines the shared data model serialized into (and read
// back from) a UBX snapshot: actions, flags, masks, patterns and the Rule
// record itself. See spec.md §3 "DATA MODEL".
package rule

import "github.com/edgecomet/ubx/internal/ubx/hashing"

// Action is the outcome a rule produces when it is the winning candidate.
type Action uint8

const (
	ActionAllow Action = iota
	ActionBlock
	ActionRedirectDirective
	ActionRemoveparam
	ActionCSPInject
	ActionHeaderMatchBlock
	ActionHeaderMatchAllow
	ActionResponseheaderRemove
)

// Flags is a bitset of per-rule modifiers.
type Flags uint16

const (
	FlagImportant Flags = 1 << iota
	FlagIsRegex
	FlagMatchCase
	FlagRightAnchor
	FlagHostnameAnchor
	FlagLeftAnchor
	FlagCSPException
	FlagRedirectRuleException
	FlagElemhide
	FlagGenerichide
	FlagFromRedirect
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// ResourceType enumerates the request types a TypeMask bit addresses.
// Bit position matches the order the host's type string maps onto (§6).
type ResourceType uint8

const (
	TypeMainFrame ResourceType = iota
	TypeSubFrame
	TypeScript
	TypeStylesheet
	TypeImage
	TypeXHR
	TypeFont
	TypePing
	TypeMedia
	TypeWebsocket
	TypeObject
	TypeOther
)

// TypeMask is a 16-bit bitset of ResourceType; "document" in filter-list
// syntax expands to (1<<TypeMainFrame)|(1<<TypeSubFrame) at parse time.
type TypeMask uint16

// TypeMaskAll matches every resource type (the `$all` sugar and the
// implicit mask of a rule with no type options, per spec.md §4.2 stage 2).
const TypeMaskAll TypeMask = 0xFFFF

func (m TypeMask) Has(t ResourceType) bool { return m&(1<<uint(t)) != 0 }

// PartyMask selects which party relationships (vs. the document) a rule applies to.
type PartyMask uint8

const (
	PartyFirst PartyMask = 1 << iota
	PartyThird
)

// PartyMaskAll matches both first- and third-party requests.
const PartyMaskAll PartyMask = PartyFirst | PartyThird

// SchemeMask selects which URL schemes a rule applies to.
type SchemeMask uint8

const (
	SchemeHTTP SchemeMask = 1 << iota
	SchemeHTTPS
	SchemeWS
	SchemeWSS
	SchemeOther
)

// SchemeMaskAll matches every scheme.
const SchemeMaskAll SchemeMask = SchemeHTTP | SchemeHTTPS | SchemeWS | SchemeWSS | SchemeOther

// NoPattern / NoDomainConstraint are the sentinel indices for Rule fields
// that reference pools by index (spec.md §3 invariant iii).
const (
	NoPattern          uint32 = 0xFFFFFFFF
	NoDomainConstraint uint32 = 0xFFFFFFFF
	NoOption           uint32 = 0xFFFFFFFF
)

// Rule is the decoded, in-memory form of one serialized filter. The
// on-disk layout (internal/ubx/format) stores the same fields as a
// struct-of-arrays; Rule is the row view the matcher works with.
type Rule struct {
	ID                     uint32
	Action                 Action
	Flags                  Flags
	TypeMask               TypeMask
	PartyMask              PartyMask
	SchemeMask             SchemeMask
	PatternID              uint32 // index into the pattern pool, or NoPattern
	DomainConstraintOffset uint32 // index into the domain-constraint pool, or NoDomainConstraint
	OptionID               uint32 // action-dependent: redirect/removeparam/csp/header spec index
	Priority               int16
	ListID                 uint16
}

// IsAllowClass reports whether the rule's action belongs to the ALLOW side
// of the precedence ladder (spec.md §4.3.1 "Precedence").
func (r *Rule) IsAllowClass() bool {
	return r.Action == ActionAllow || r.Action == ActionHeaderMatchAllow
}

// IsBlockClass reports whether the rule's action belongs to the BLOCK side
// of the precedence ladder.
func (r *Rule) IsBlockClass() bool {
	return r.Action == ActionBlock || r.Action == ActionHeaderMatchBlock
}

// Opcode is one instruction in a compiled Pattern program (spec.md §3 "Pattern").
type Opcode uint8

const (
	OpFindLit Opcode = iota
	OpAssertStart
	OpAssertEnd
	OpAssertBoundary
	OpSkipAny
	OpHostAnchor
	OpDone
)

// Instr is one decoded Pattern instruction. LitOffset/LitLength address the
// string pool for OpFindLit; AnchorHash is populated for OpHostAnchor.
type Instr struct {
	Op         Opcode
	LitOffset  uint32
	LitLength  uint32
	AnchorHash hashing.Hash64
}

// AnchorType classifies how a Pattern is anchored within the URL.
type AnchorType uint8

const (
	AnchorNone AnchorType = iota
	AnchorLeft
	AnchorHostname
	AnchorRegex
)

// Pattern is a compiled match program plus its anchor/case metadata.
type Pattern struct {
	Program         []Instr
	Anchor          AnchorType
	CaseSensitive   bool
	AnchorHostHash  hashing.Hash64
	RegexSource     string // only populated when Anchor == AnchorRegex
	RegexCaseFolded bool
}

// DomainConstraint represents a `$domain=` scoping record (spec.md §3
// "Domain-constraint record").
type DomainConstraint struct {
	Include []hashing.Hash64
	Exclude []hashing.Hash64
}

// Satisfies reports whether the document host's suffix-walk hash set
// satisfies this constraint: at least one include hash present (if any
// are required) and no exclude hash present.
func (dc *DomainConstraint) Satisfies(suffixHashes []hashing.Hash64) bool {
	if len(dc.Include) > 0 {
		ok := false
		for _, s := range suffixHashes {
			if containsHash(dc.Include, s) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, s := range suffixHashes {
		if containsHash(dc.Exclude, s) {
			return false
		}
	}
	return true
}

func containsHash(hs []hashing.Hash64, target hashing.Hash64) bool {
	for _, h := range hs {
		if h == target {
			return true
		}
	}
	return false
}
