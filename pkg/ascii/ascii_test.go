package ascii

import (
	"strings"
	"testing"
)

func TestBox(t *testing.T) {
	got := Box([]string{"crxprep", "ok  "})
	want := "┌─────────┐\n" +
		"│ crxprep │\n" +
		"│ ok      │\n" +
		"└─────────┘\n"
	if got != want {
		t.Errorf("Box() =\n%s\nwant\n%s", got, want)
	}
	if Box(nil) != "" {
		t.Error("Box(nil) should be empty")
	}
}

func TestBoxWideRunes(t *testing.T) {
	got := Box([]string{"日本", "abcd"})
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	width := StringWidth(lines[0])
	for _, l := range lines {
		if StringWidth(l) != width {
			t.Errorf("line %q has width %d, expected %d", l, StringWidth(l), width)
		}
	}
}

func TestTitledBox(t *testing.T) {
	got := TitledBox("Run", []string{"pages  build"})
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if !strings.HasPrefix(lines[0], "┌─ Run ─") {
		t.Errorf("title not set into border: %q", lines[0])
	}
	for _, l := range lines {
		if StringWidth(l) != StringWidth(lines[0]) {
			t.Errorf("misaligned line %q", l)
		}
	}

	long := TitledBox("A much longer title", []string{"x"})
	ls := strings.Split(strings.TrimSuffix(long, "\n"), "\n")
	for _, l := range ls {
		if StringWidth(l) != StringWidth(ls[0]) {
			t.Errorf("misaligned line %q in long-title box", l)
		}
	}
}

func TestKeyValues(t *testing.T) {
	got := KeyValues([][2]string{{"run", "abc"}, {"extracted", "3"}})
	want := []string{"run        abc", "extracted  3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("KeyValues()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTruncateForBox(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"truncate me", 6, "trunc…"},
		{"x", 0, ""},
		{"abc", 1, "…"},
	}
	for _, tt := range tests {
		if got := TruncateForBox(tt.in, tt.width); got != tt.want {
			t.Errorf("TruncateForBox(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
