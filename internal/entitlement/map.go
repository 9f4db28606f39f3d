// Package entitlement maps purchased variants to directory teams.
package entitlement

import (
	"fmt"
	"strconv"
	"strings"
)

// Map is built once at startup and only read afterwards, so it is safe for
// concurrent use without locking.
type Map struct {
	teams map[string]string
}

// NewMap copies variants (variant id -> team slug) into a Map.
func NewMap(variants map[string]string) (*Map, error) {
	teams := make(map[string]string, len(variants))
	for variant, slug := range variants {
		variant = strings.TrimSpace(variant)
		slug = strings.TrimSpace(slug)
		if variant == "" || slug == "" {
			return nil, fmt.Errorf("NewMap: empty entry %q -> %q", variant, slug)
		}
		if _, err := strconv.ParseInt(variant, 10, 64); err != nil {
			return nil, fmt.Errorf("NewMap: variant %q is not an integer: %w", variant, err)
		}
		teams[variant] = slug
	}
	return &Map{teams: teams}, nil
}

// TeamFor returns the team slug granted by variantID.
func (m *Map) TeamFor(variantID int64) (string, bool) {
	slug, ok := m.teams[strconv.FormatInt(variantID, 10)]
	return slug, ok
}

func (m *Map) Len() int { return len(m.teams) }
