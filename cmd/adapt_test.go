package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fulmenhq/crxprep/pkg/exitcode"
)

func seedProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"static/manifest.json":                              `{"manifest_version":3}`,
		".svelte-kit/output/client/_app/immutable/start.js": "start()",
		".svelte-kit/output/client/_app/manifest.json":      `{"generated":true}`,
		".svelte-kit/output/prerendered/pages/index.html":   `<html><body><script>console.log(1)</script></body></html>`,
	})
	return root
}

func TestAdapt_JSONReport(t *testing.T) {
	root := seedProject(t)

	out, err := execRoot(t, []string{"-C", root, "adapt", "--precompress", "--formats", "gz", "--report", "json"})
	if err != nil {
		t.Fatalf("adapt failed: %v\n%s", err, out)
	}

	var report struct {
		RunID  string `json:"run_id"`
		Phases []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"phases"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, out)
	}
	if report.RunID == "" {
		t.Error("expected run_id in report")
	}
	if len(report.Phases) != 4 {
		t.Fatalf("expected 4 phases, got %+v", report.Phases)
	}
	for _, p := range report.Phases {
		if p.Status != "ok" {
			t.Errorf("phase %s status = %s, want ok", p.Name, p.Status)
		}
	}

	if !strings.Contains(readFile(t, root, "build/index.html"), `src="/script-1d695zc.js"`) {
		t.Error("index.html was not rewritten")
	}
	if got := readFile(t, root, "build/script-1d695zc.js"); got != "console.log(1)" {
		t.Errorf("extracted script = %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "build", "_app", "manifest.json")); !os.IsNotExist(err) {
		t.Error("generated manifest should be removed")
	}
	if _, err := os.Stat(filepath.Join(root, "build", "index.html.gz")); err != nil {
		t.Errorf("expected gzip sibling: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "build", "index.html.br")); !os.IsNotExist(err) {
		t.Error("brotli sibling should not be written when --formats gz")
	}
}

func TestAdapt_ConfigFileAndNoOp(t *testing.T) {
	root := seedProject(t)
	writeFiles(t, root, map[string]string{
		"crxprep.yaml": "pages: dist\nscripts:\n  placement: sibling\n",
	})

	if _, err := execRoot(t, []string{"-C", root, "--no-op", "adapt"}); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "dist")); !os.IsNotExist(err) {
		t.Fatal("--no-op must not write the output directory")
	}

	if _, err := execRoot(t, []string{"-C", root, "adapt"}); err != nil {
		t.Fatalf("adapt failed: %v", err)
	}
	if !strings.Contains(readFile(t, root, "dist/index.html"), `src="./script-1d695zc.js"`) {
		t.Error("sibling placement from config file was not applied")
	}
}

func TestAdapt_RequiredManifestMissing(t *testing.T) {
	root := seedProject(t)
	if err := os.Remove(filepath.Join(root, "static", "manifest.json")); err != nil {
		t.Fatal(err)
	}

	_, err := execRoot(t, []string{"-C", root, "adapt", "--require-manifest"})
	if err == nil {
		t.Fatal("expected error when the extension manifest is missing")
	}
	if got := exitCodeFor(err); got != exitcode.ManifestMissing {
		t.Errorf("exit code = %d, want %d", got, exitcode.ManifestMissing)
	}
}

func TestAdapt_BadReportFormat(t *testing.T) {
	root := seedProject(t)
	_, err := execRoot(t, []string{"-C", root, "adapt", "--report", "xml"})
	if got := exitCodeFor(err); got != exitcode.ConfigError {
		t.Errorf("exit code = %d, want %d", got, exitcode.ConfigError)
	}
}

func TestScripts_Standalone(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"site/index.html":   `<html><body><script type="module">go()</script></body></html>`,
		"site/plain/a.html": `<html><body><script>go()</script></body></html>`,
	})

	out, err := execRoot(t, []string{"-C", root, "scripts", "site", "--script-type", "module"})
	if err != nil {
		t.Fatalf("scripts failed: %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, "index.html\t/script-") {
		t.Errorf("unexpected output: %q", out)
	}
	if strings.Contains(readFile(t, root, "site/plain/a.html"), "src=") {
		t.Error("untyped script must be left alone with --script-type module")
	}
}

func TestManifest_Standalone(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ext/manifest.jsonc":             "{\n  // comment\n  \"manifest_version\": 3,\n}\n",
		"out/_app/version-manifest.json": "{}",
	})

	_, err := execRoot(t, []string{"-C", root, "manifest", "out", "--source", "ext/manifest.jsonc", "--strip-comments"})
	if err != nil {
		t.Fatalf("manifest failed: %v", err)
	}
	if got := readFile(t, root, "out/manifest.json"); !json.Valid([]byte(got)) {
		t.Errorf("manifest was not stripped to valid JSON: %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "out", "_app", "version-manifest.json")); !os.IsNotExist(err) {
		t.Error("generated manifest should be removed")
	}
}

func TestCompress_Standalone(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"site/app.js":   strings.Repeat("console.log(1);\n", 64),
		"site/logo.png": "png",
	})

	if _, err := execRoot(t, []string{"-C", root, "compress", "site", "--formats", "br,zst", "--jobs", "1"}); err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	for _, p := range []string{"site/app.js.br", "site/app.js.zst"} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "site", "logo.png.br")); !os.IsNotExist(err) {
		t.Error("png is not in the default extension list")
	}
}
