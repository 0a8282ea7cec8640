package compiler

import (
	"encoding/binary"

	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/rule"
)

// serialize implements spec.md §4.2 stage 7: write every section in a
// stable order, fill the section directory, compute CRC32 if enabled.
func serialize(rules []*networkRule, cosmetics []*cosmeticRule, opts Options) ([]byte, error) {
	strPool := newStringInterner()
	idx := buildIndexes(rules)

	var patternPool []byte
	var domainConstraintPool []byte
	var redirectResources []byte
	var removeparamSpecs []byte
	var cspSpecs []byte
	var headerSpecs []byte
	var responseheaderRules []byte
	ruleRows := make([]byte, 0, len(rules)*format.RuleRecordBytes)

	for _, nr := range rules {
		patternID := rule.NoPattern
		if nr.pattern != nil {
			instrs := make([]format.EncodedInstr, 0, len(nr.pattern.program))
			for _, in := range nr.pattern.program {
				ei := format.EncodedInstr{Op: uint8(in.op), AnchorHash: uint64(in.anchorHash)}
				if in.op == rule.OpFindLit {
					off, length := strPool.Intern(in.lit)
					ei.LitOffset, ei.LitLength = off, length
				}
				instrs = append(instrs, ei)
			}
			ep := format.EncodedPattern{
				Anchor:         uint8(nr.pattern.anchor),
				CaseSensitive:  nr.pattern.caseSensitive,
				AnchorHostHash: uint64(nr.pattern.anchorHostHash),
				Instrs:         instrs,
			}
			if nr.pattern.regexSource != "" {
				off, length := strPool.Intern(nr.pattern.regexSource)
				ep.RegexOffset, ep.RegexLength = off, length
			}
			var poff uint32
			patternPool, poff = format.AppendPattern(patternPool, ep)
			patternID = poff
		}

		dcOffset := rule.NoDomainConstraint
		if len(nr.domainInclude) > 0 || len(nr.domainExclude) > 0 {
			inc := hashList(nr.domainInclude)
			exc := hashList(nr.domainExclude)
			var off uint32
			domainConstraintPool, off = format.AppendDomainConstraint(domainConstraintPool, inc, exc)
			dcOffset = off
		}

		optionID := rule.NoOption
		switch nr.action {
		case rule.ActionRedirectDirective:
			off, length := strPool.Intern(nr.redirectToken)
			redirectResources, optionID = format.AppendOptionRow(redirectResources, off, length)
		case rule.ActionRemoveparam:
			off, length := strPool.Intern(nr.removeparam)
			removeparamSpecs, optionID = format.AppendOptionRow(removeparamSpecs, off, length)
		case rule.ActionCSPInject:
			off, length := strPool.Intern(nr.csp)
			cspSpecs, optionID = format.AppendOptionRow(cspSpecs, off, length)
		case rule.ActionHeaderMatchBlock, rule.ActionHeaderMatchAllow:
			off, length := strPool.Intern(nr.header)
			headerSpecs, optionID = format.AppendOptionRow(headerSpecs, off, length)
		case rule.ActionResponseheaderRemove:
			off, length := strPool.Intern(nr.responseheader)
			responseheaderRules, optionID = format.AppendOptionRow(responseheaderRules, off, length)
		}

		ruleRows = format.EncodeRuleRow(ruleRows, format.RuleRow{
			ID:                     nr.id,
			Action:                 uint8(nr.action),
			Flags:                  uint16(nr.flags),
			TypeMask:               uint16(nr.typeMask),
			PartyMask:              uint8(nr.partyMask),
			SchemeMask:             uint8(nr.schemeMask),
			PatternID:              patternID,
			DomainConstraintOffset: dcOffset,
			OptionID:               optionID,
			Priority:               nr.priority,
			ListID:                 nr.listID,
		})
	}

	// Cosmetic/scriptlet selectors are interned into the same pool before
	// STRPOOL is committed, so string offsets stay valid across both
	// network-rule and cosmetic sections.
	cosmeticSection, scriptletSection := buildCosmeticSections(cosmetics, strPool)

	b := format.NewBuilder(opts.BuildID)
	b.AddSection(format.SectionRules, ruleRows)
	if len(patternPool) > 0 {
		b.AddSection(format.SectionPatternPool, patternPool)
	}
	if len(domainConstraintPool) > 0 {
		b.AddSection(format.SectionDomainConstraintPool, domainConstraintPool)
	}
	if err := b.AddCompressedSection(format.SectionSTRPOOL, strPool.Bytes()); err != nil {
		return nil, err
	}

	b.AddSection(format.SectionDomainSets, buildDomainSetsSection(idx))
	dict, postings := buildTokenSections(idx)
	b.AddSection(format.SectionTokenDict, dict)
	if len(postings) > 0 {
		if err := b.AddLZ4Section(format.SectionTokenPostings, postings); err != nil {
			return nil, err
		}
	}
	if len(idx.fallback) > 0 {
		b.AddSection(format.SectionFallbackBucket, format.EncodePostings(idx.fallback))
	}
	if len(cosmeticSection) > 0 {
		if err := b.AddLZ4Section(format.SectionCosmeticRules, cosmeticSection); err != nil {
			return nil, err
		}
	}
	if len(scriptletSection) > 0 {
		if err := b.AddLZ4Section(format.SectionScriptletRules, scriptletSection); err != nil {
			return nil, err
		}
	}
	if len(redirectResources) > 0 {
		// Each row here is only the token name a $redirect rule referenced
		// (format.DecodeOptionRow against STRPOOL); the surrogate resource
		// body/mime a token resolves to is engine-held, not compiled in.
		b.AddSection(format.SectionRedirectResources, redirectResources)
	}
	if len(removeparamSpecs) > 0 {
		b.AddSection(format.SectionRemoveparamSpecs, removeparamSpecs)
	}
	if len(cspSpecs) > 0 {
		b.AddSection(format.SectionCSPSpecs, cspSpecs)
	}
	if len(headerSpecs) > 0 {
		b.AddSection(format.SectionHeaderSpecs, headerSpecs)
	}
	if len(responseheaderRules) > 0 {
		b.AddSection(format.SectionResponseheaderRules, responseheaderRules)
	}

	if opts.PSL != nil {
		// PSL sets are supplied externally (shared across compiles, rarely
		// changing); the snapshot still doesn't need to re-embed them when
		// the engine already holds a loaded Table. Nothing to serialize
		// here — see internal/ubx/engine for how PSL data is distributed.
		_ = opts.PSL
	}

	return b.Build(opts.WithCRC32), nil
}

// buildDomainSetsSection packs the ALLOW-class and BLOCK-class host-only
// hash tables plus their postings into one DOMAIN_SETS section: a 16-byte
// header of four lengths followed by the four byte blobs in order
// (spec.md §3 "Domain index. Two hash tables... one for ALLOW-class
// host-only rules, one for BLOCK-class host-only rules").
func buildDomainSetsSection(idx *indexes) []byte {
	allowTable, allowPostings := buildTable(idx.domainAllow)
	blockTable, blockPostings := buildTable(idx.domainBlock)

	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(allowTable)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(allowPostings)))
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(blockTable)))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(blockPostings)))
	out = append(out, allowTable...)
	out = append(out, allowPostings...)
	out = append(out, blockTable...)
	out = append(out, blockPostings...)
	return out
}

// buildTokenSections builds the TOKEN_DICT hash table (keyed by
// TokenHash, pointing into TOKEN_POSTINGS by offset) and the
// TOKEN_POSTINGS byte blob itself.
func buildTokenSections(idx *indexes) (dict, postings []byte) {
	return buildTable(idx.token)
}

// buildTable is the shared posting-list + hash-table assembly routine:
// sort keys and postings, delta-encode each list into a contiguous
// postings blob, and build the open-addressed directory over
// (key -> offset,count) pairs.
func buildTable(m map[uint64][]uint32) (table, postings []byte) {
	keys, lists := sortedPostings(m)
	offsets := make([]uint32, len(keys))
	counts := make([]uint32, len(keys))
	for i, ids := range lists {
		offsets[i] = uint32(len(postings))
		counts[i] = uint32(len(ids))
		postings = append(postings, format.EncodePostings(ids)...)
	}
	table = format.BuildHashTable(keys, offsets, counts)
	return table, postings
}

func hashList(labels []string) []uint64 {
	out := make([]uint64, len(labels))
	for i, l := range labels {
		out[i] = uint64(hashing.HashDomain(l))
	}
	return out
}

// hashDomainOrZero returns Hash64(0) for an empty (generic) host, the
// sentinel the cosmetic pipeline treats as "applies to every document."
func hashDomainOrZero(host string) hashing.Hash64 {
	if host == "" {
		return 0
	}
	return hashing.HashDomain(host)
}
