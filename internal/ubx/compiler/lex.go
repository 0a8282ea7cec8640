package compiler

import "strings"

type lineKind uint8

const (
	lineBlank lineKind = iota
	lineComment
	lineSectionHeader
	lineNetwork
	lineCosmetic
	lineCosmeticException
	lineHostsFormat
)

// classifyLine implements spec.md §4.2 stage 1: classify each non-comment,
// non-empty line into one of the recognized rule kinds. body is the line
// with any classification-only prefix left intact for the next stage to
// parse (network rules need the whole line; cosmetic lines are returned
// whole as well: the separator only determines the kind here, and
// parseCosmeticRule does the split).
func classifyLine(line string) (lineKind, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return lineBlank, ""
	}
	if strings.HasPrefix(trimmed, "!") || strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		if strings.HasPrefix(trimmed, "[") {
			return lineSectionHeader, trimmed
		}
		return lineComment, ""
	}
	if strings.HasPrefix(trimmed, "0.0.0.0 ") || strings.HasPrefix(trimmed, "127.0.0.1 ") {
		return lineHostsFormat, trimmed
	}

	if idx := cosmeticSeparatorIndex(trimmed); idx >= 0 {
		sep, sepLen := cosmeticSeparatorAt(trimmed, idx)
		if sep != "" {
			isException := strings.Contains(sep, "@")
			_ = sepLen
			return cosmeticKind(isException), trimmed
		}
	}
	return lineNetwork, trimmed
}

func cosmeticKind(exception bool) lineKind {
	if exception {
		return lineCosmeticException
	}
	return lineCosmetic
}

// cosmeticSeparatorIndex finds the position of a cosmetic separator
// ("##", "#@#", "#?#", "#@?#") in line, or -1 if none is present. Network
// rules with options (`$domain=a.com`) never contain "##"/"#@#", so this
// is an unambiguous discriminator.
func cosmeticSeparatorIndex(line string) int {
	for _, sep := range []string{"#@?#", "#?#", "#@#", "##"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			return idx
		}
	}
	return -1
}

func cosmeticSeparatorAt(line string, idx int) (string, int) {
	for _, sep := range []string{"#@?#", "#?#", "#@#", "##"} {
		if strings.HasPrefix(line[idx:], sep) {
			return sep, len(sep)
		}
	}
	return "", 0
}
