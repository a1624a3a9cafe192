package inlinescript

import (
	"fmt"
	"strings"
)

// Placement decides where extracted files live relative to the HTML that
// referenced them.
type Placement string

const (
	// PlacementRoot writes every script at the sweep root and references it
	// with an absolute path.
	PlacementRoot Placement = "root"
	// PlacementSibling writes the script next to its HTML file and references
	// it relative to that file.
	PlacementSibling Placement = "sibling"
)

// ParsePlacement validates a configured placement. Empty means root.
func ParsePlacement(s string) (Placement, error) {
	switch Placement(strings.ToLower(strings.TrimSpace(s))) {
	case "", PlacementRoot:
		return PlacementRoot, nil
	case PlacementSibling:
		return PlacementSibling, nil
	default:
		return "", fmt.Errorf("unknown script placement %q (want root or sibling)", s)
	}
}

// Policy selects which script element is extracted.
type Policy struct {
	// Type, when set, restricts selection to script[type="<Type>"].
	Type string
	// SkipExternal moves past src-bearing scripts to the first inline one.
	// When false, a leading external script means nothing is extracted.
	SkipExternal bool
	Placement    Placement
}

// Selector is the CSS selector used to query candidate elements.
func (p Policy) Selector() string {
	if p.Type == "" {
		return "script"
	}
	return fmt.Sprintf("script[type=%q]", p.Type)
}

// Src is the reference written into the rewritten tag for fileName.
func (p Policy) Src(fileName string) string {
	if p.Placement == PlacementSibling {
		return "." + fileName
	}
	return fileName
}
