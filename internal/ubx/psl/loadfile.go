package psl

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads a public-suffix data file (one rule per line, "//"
// comments and blank lines ignored, "*." prefix for wildcard rules, "!"
// prefix for exceptions — the same three-bucket shape publicsuffix.org's
// effective_tld_names.dat uses) and builds the Table the compiler and
// matcher consult for eTLD+1 and domain-constraint walks.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open psl file: %w", err)
	}
	defer f.Close()

	var exact, wildcard, exception []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "!"):
			exception = append(exception, strings.TrimPrefix(line, "!"))
		case strings.HasPrefix(line, "*."):
			wildcard = append(wildcard, strings.TrimPrefix(line, "*."))
		default:
			exact = append(exact, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan psl file: %w", err)
	}

	return &Table{
		Exact:     NewSet(exact...),
		Wildcard:  NewSet(wildcard...),
		Exception: NewSet(exception...),
	}, nil
}
