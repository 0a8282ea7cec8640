package matcher

import "github.com/edgecomet/ubx/internal/ubx/format"

// optionText resolves a rule's OptionID against the action-appropriate
// option-row section, returning the interned string it addresses in
// strPool. Returns "" if optionID is the sentinel or the section is absent.
func optionText(section, strPool []byte, optionID uint32) string {
	if optionID == ^uint32(0) || section == nil {
		return ""
	}
	off, length := format.DecodeOptionRow(section, optionID)
	if length == 0 {
		return ""
	}
	return string(strPool[off : off+length])
}
