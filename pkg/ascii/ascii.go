// Package ascii draws boxed, width-aware terminal summaries.
package ascii

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Box builds a box containing the provided lines and returns it as a string.
// Lines are left-aligned with single-space padding on each side. Multi-width
// runes (emoji, CJK, etc.) are accounted for so the borders stay aligned.
func Box(lines []string) string {
	return TitledBox("", lines)
}

// TitledBox is Box with a title set into the top border.
func TitledBox(title string, lines []string) string {
	if len(lines) == 0 && title == "" {
		return ""
	}

	trimmed := make([]string, len(lines))
	maxWidth := 0
	for i, line := range lines {
		trimmed[i] = strings.TrimRight(line, " ")
		if w := StringWidth(trimmed[i]); w > maxWidth {
			maxWidth = w
		}
	}
	if title != "" {
		title = " " + title + " "
		if w := StringWidth(title) + 1; w > maxWidth+2 {
			maxWidth = w - 2
		}
	}

	innerWidth := maxWidth + 2

	var sb strings.Builder
	if title != "" {
		sb.WriteString("┌─" + title + strings.Repeat("─", innerWidth-1-StringWidth(title)) + "┐\n")
	} else {
		sb.WriteString("┌" + strings.Repeat("─", innerWidth) + "┐\n")
	}
	for _, line := range trimmed {
		fill := maxWidth - StringWidth(line)
		sb.WriteString("│ " + line + strings.Repeat(" ", fill) + " │\n")
	}
	sb.WriteString("└" + strings.Repeat("─", innerWidth) + "┘\n")
	return sb.String()
}

// KeyValues renders pairs as aligned "key  value" lines, ready for Box.
func KeyValues(pairs [][2]string) []string {
	keyWidth := 0
	for _, p := range pairs {
		if w := StringWidth(p[0]); w > keyWidth {
			keyWidth = w
		}
	}
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = p[0] + strings.Repeat(" ", keyWidth-StringWidth(p[0])) + "  " + p[1]
	}
	return lines
}

// TruncateForBox shortens value to width display cells, marking the cut with "…".
func TruncateForBox(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if StringWidth(value) <= width {
		return value
	}
	if width == 1 {
		return "…"
	}
	return runewidth.Truncate(value, width, "…")
}

// StringWidth returns the display width of s in terminal cells.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}
