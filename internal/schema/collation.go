package schema

import (
	"strings"

	"golang.org/x/text/cases"
)

// Collation decides how identifiers are compared.
type Collation int

const (
	// CaseSensitive compares identifiers byte for byte. It is the default,
	// matching MySQL on case-sensitive file systems (lower_case_table_names=0).
	CaseSensitive Collation = iota
	// CaseInsensitive compares identifiers after Unicode case folding.
	CaseInsensitive
)

func (c Collation) String() string {
	if c == CaseInsensitive {
		return "case-insensitive"
	}
	return "case-sensitive"
}

// Key returns the form of name used for matching and ordering.
func (c Collation) Key(name string) string {
	if c == CaseInsensitive {
		return cases.Fold().String(name)
	}
	return name
}

// Equal reports whether a and b name the same identifier.
func (c Collation) Equal(a, b string) bool {
	if c == CaseSensitive {
		return a == b
	}
	return c.Key(a) == c.Key(b)
}

// Compare orders identifiers by key, falling back to the raw names so that
// names differing only in case still sort deterministically.
func (c Collation) Compare(a, b string) int {
	if r := strings.Compare(c.Key(a), c.Key(b)); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// EqualNames compares two ordered identifier lists element by element.
func (c Collation) EqualNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !c.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
