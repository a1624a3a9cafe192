package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	loaded, err := Load(LoadOptions{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	c := loaded.Config

	if c.Pages != "build" || c.AssetsDir() != "build" {
		t.Errorf("Pages = %q, AssetsDir() = %q", c.Pages, c.AssetsDir())
	}
	if c.Manifest != "manifest.json" || !c.EmptyOutDir || c.Precompress {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.Scripts.Placement != "root" || !c.Scripts.AuditSVG {
		t.Errorf("unexpected scripts defaults: %+v", c.Scripts)
	}
	if len(c.Manifests.Generated) != 2 || c.Manifests.Generated[0] != "**/{{appDir}}/*manifest*.json" {
		t.Errorf("unexpected generated globs: %v", c.Manifests.Generated)
	}
	if strings.Join(c.Compress.Formats, ",") != "gz,br" {
		t.Errorf("unexpected formats: %v", c.Compress.Formats)
	}
	if loaded.File != "" {
		t.Errorf("no config file expected, got %q", loaded.File)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `pages: out/pages
assets: out/assets
precompress: true
scripts:
  type: module
  placement: sibling
compress:
  formats: [br, zst]
`
	if err := os.WriteFile(filepath.Join(dir, "crxprep.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(LoadOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	c := loaded.Config
	if c.Pages != "out/pages" || c.AssetsDir() != "out/assets" || !c.Precompress {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.Scripts.Type != "module" || c.Scripts.Placement != "sibling" {
		t.Errorf("scripts not applied: %+v", c.Scripts)
	}
	if strings.Join(c.Compress.Formats, ",") != "br,zst" {
		t.Errorf("formats not applied: %v", c.Compress.Formats)
	}
	if c.Manifest != "manifest.json" {
		t.Errorf("unset keys should keep defaults, got manifest %q", c.Manifest)
	}
	if filepath.Base(loaded.File) != "crxprep.yaml" {
		t.Errorf("File = %q", loaded.File)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	if err := os.WriteFile(path, []byte(`{"scripts":{"placement":"inline"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(LoadOptions{File: path}); err == nil {
		t.Error("expected schema error")
	}
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	if _, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "none.yaml")}); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadEnvironmentAndDotenv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CRXPREP_SCRIPTS_TYPE=module\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CRXPREP_PAGES", "from-env")
	t.Setenv("CRXPREP_SCRIPTS_TYPE", "")
	_ = os.Unsetenv("CRXPREP_SCRIPTS_TYPE")

	loaded, err := Load(LoadOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Config.Pages != "from-env" {
		t.Errorf("Pages = %q, expected from-env", loaded.Config.Pages)
	}
	if loaded.Config.Scripts.Type != "module" {
		t.Errorf("Scripts.Type = %q, expected module from .env", loaded.Config.Scripts.Type)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "crxprep.json"), []byte(`{"pages":"file-pages","precompress":false}`), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("pages", "build", "")
	fs.Bool("precompress", false, "")
	fs.String("placement", "root", "")
	if err := fs.Parse([]string{"--precompress", "--placement=sibling"}); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(LoadOptions{Dir: dir, Flags: fs})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	c := loaded.Config
	if c.Pages != "file-pages" {
		t.Errorf("unchanged flag must not override file: Pages = %q", c.Pages)
	}
	if !c.Precompress || c.Scripts.Placement != "sibling" {
		t.Errorf("changed flags not applied: %+v", c)
	}
}

func TestLoadStructValidation(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("placement", "root", "")
	if err := fs.Parse([]string{"--placement=nowhere"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(LoadOptions{Dir: t.TempDir(), Flags: fs}); err == nil {
		t.Error("expected validation error for bad placement flag")
	}
}

func TestDefaultIsACopy(t *testing.T) {
	a := Default()
	a.Compress.Formats[0] = "zst"
	if Default().Compress.Formats[0] != "gz" {
		t.Error("Default() must not share slices")
	}
}

func TestGetCrxprepHome(t *testing.T) {
	t.Setenv("CRXPREP_HOME", "/tmp/crxprep-home")
	home, err := GetCrxprepHome()
	if err != nil || home != "/tmp/crxprep-home" {
		t.Errorf("GetCrxprepHome() = %q, %v", home, err)
	}
}
