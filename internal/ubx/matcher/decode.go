package matcher

import (
	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/rule"
)

// decodeRule converts one RULES-section row into the decoded rule.Rule
// shape the precedence/candidate logic works with.
func decodeRule(row format.RuleRow) rule.Rule {
	return rule.Rule{
		ID:                     row.ID,
		Action:                 rule.Action(row.Action),
		Flags:                  rule.Flags(row.Flags),
		TypeMask:               rule.TypeMask(row.TypeMask),
		PartyMask:              rule.PartyMask(row.PartyMask),
		SchemeMask:             rule.SchemeMask(row.SchemeMask),
		PatternID:              row.PatternID,
		DomainConstraintOffset: row.DomainConstraintOffset,
		OptionID:               row.OptionID,
		Priority:               row.Priority,
		ListID:                 row.ListID,
	}
}

// ruleAt decodes rule i directly out of the RULES section bytes.
func ruleAt(rulesSection []byte, id uint32) rule.Rule {
	return decodeRule(format.DecodeRuleRow(rulesSection, int(id)))
}

// decodePattern reads the rule.Pattern stored at patternID within
// patternPool, resolving FIND_LIT literal offsets/regex source against
// strPool.
func decodePattern(patternPool, strPool []byte, patternID uint32) rule.Pattern {
	ep := format.DecodePattern(patternPool, patternID)
	p := rule.Pattern{
		Anchor:         rule.AnchorType(ep.Anchor),
		CaseSensitive:  ep.CaseSensitive,
		AnchorHostHash: hashing.Hash64(ep.AnchorHostHash),
	}
	if p.Anchor == rule.AnchorRegex {
		p.RegexSource = string(strPool[ep.RegexOffset : ep.RegexOffset+ep.RegexLength])
		return p
	}
	p.Program = make([]rule.Instr, len(ep.Instrs))
	for i, in := range ep.Instrs {
		instr := rule.Instr{Op: rule.Opcode(in.Op), AnchorHash: hashing.Hash64(in.AnchorHash)}
		if instr.Op == rule.OpFindLit {
			instr.LitOffset = in.LitOffset
			instr.LitLength = in.LitLength
		}
		p.Program[i] = instr
	}
	return p
}

func literalOf(strPool []byte, instr rule.Instr) string {
	return string(strPool[instr.LitOffset : instr.LitOffset+instr.LitLength])
}

// decodeDomainConstraint reads the constraint at offset, or (nil, nil) if
// offset is the sentinel.
func decodeDomainConstraint(pool []byte, offset uint32) *rule.DomainConstraint {
	if offset == rule.NoDomainConstraint {
		return nil
	}
	inc, exc := format.DecodeDomainConstraint(pool, offset)
	dc := &rule.DomainConstraint{
		Include: make([]hashing.Hash64, len(inc)),
		Exclude: make([]hashing.Hash64, len(exc)),
	}
	for i, h := range inc {
		dc.Include[i] = hashing.Hash64(h)
	}
	for i, h := range exc {
		dc.Exclude[i] = hashing.Hash64(h)
	}
	return dc
}
