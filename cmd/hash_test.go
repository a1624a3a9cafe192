package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHash(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"hash", "console.log(1)"}, "1d695zc"},
		{[]string{"hash", "const x = 1;"}, "xruzqn"},
		{[]string{"hash", "--name", "a"}, "/script-3t1g.js"},
	}
	for _, tt := range tests {
		out, err := execRoot(t, tt.args)
		if err != nil {
			t.Fatalf("%v failed: %v", tt.args, err)
		}
		if strings.TrimSpace(out) != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, strings.TrimSpace(out), tt.want)
		}
	}
}

func TestHashFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "inline.js")
	if err := os.WriteFile(p, []byte("alert(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execRoot(t, []string{"hash", "--file", p})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "rejsqj" {
		t.Errorf("hash --file = %q, want rejsqj", out)
	}
}

func TestHashStdin(t *testing.T) {
	t.Setenv("CRXPREP_HOME", t.TempDir())
	cmd := newRootCommand()
	registerSubcommands(cmd)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"--log-level", "error", "hash"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "45h" {
		t.Errorf("hash of empty stdin = %q, want 45h", out.String())
	}
}

func TestHashRejectsTextAndFile(t *testing.T) {
	if _, err := execRoot(t, []string{"hash", "--file", "x.js", "text"}); err == nil {
		t.Error("expected error when both text and --file are given")
	}
}
