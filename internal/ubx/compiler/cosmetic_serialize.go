package compiler

import (
	"encoding/binary"

	"github.com/edgecomet/ubx/internal/ubx/format"
)

// buildCosmeticSections compiles the parsed cosmeticRule set into the
// COSMETIC_RULES / SCRIPTLET_RULES wire sections, interning every
// selector/scriptlet-call string into strPool. Generic (host-less) rules
// use hostHash 0, the reserved sentinel, matched by the cosmetic pipeline
// against every document (spec.md §4.3.3).
func buildCosmeticSections(cosmetics []*cosmeticRule, strPool *stringInterner) (cosmeticSection, scriptletSection []byte) {
	for _, cr := range cosmetics {
		kind := classifyCosmetic(cr)
		hosts := cr.hosts
		if len(hosts) == 0 {
			hosts = []string{""}
		}
		for _, h := range hosts {
			rec := encodeCosmeticRecord(h, kind, cr, strPool)
			if kind == format.CosmeticKindScriptlet {
				scriptletSection = append(scriptletSection, rec...)
			} else {
				cosmeticSection = append(cosmeticSection, rec...)
			}
		}

		// "~host" entries scope an exception to that host regardless of
		// the rule's own polarity, so a site-specific `~ads.example.com`
		// negation always becomes a host-scoped exception record.
		for _, h := range cr.negHosts {
			rec := encodeCosmeticRecord(h, format.CosmeticKindException, cr, strPool)
			cosmeticSection = append(cosmeticSection, rec...)
		}
	}
	return cosmeticSection, scriptletSection
}

func classifyCosmetic(cr *cosmeticRule) uint8 {
	switch {
	case cr.generichideToggle:
		return format.CosmeticKindGenerichideToggle
	case cr.elemhideToggle:
		return format.CosmeticKindElemhideToggle
	case cr.isScriptlet:
		return format.CosmeticKindScriptlet
	case cr.exception:
		return format.CosmeticKindException
	default:
		return format.CosmeticKindHide
	}
}

func encodeCosmeticRecord(host string, kind uint8, cr *cosmeticRule, strPool *stringInterner) []byte {
	text := cr.selector
	if kind == format.CosmeticKindScriptlet {
		text = encodeScriptletCall(cr)
	}
	off, length := strPool.Intern(text)

	rec := make([]byte, format.CosmeticRecordBytes)
	binary.LittleEndian.PutUint64(rec[0:8], uint64(hashDomainOrZero(host)))
	rec[8] = kind
	binary.LittleEndian.PutUint32(rec[9:13], off)
	binary.LittleEndian.PutUint32(rec[13:17], length)
	return rec
}

func encodeScriptletCall(cr *cosmeticRule) string {
	s := cr.scriptletName
	for _, a := range cr.scriptletArgs {
		s += "\x00" + a
	}
	return s
}
