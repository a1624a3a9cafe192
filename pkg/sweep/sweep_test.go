package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/crxprep/pkg/contenthash"
	"github.com/fulmenhq/crxprep/pkg/inlinescript"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestSweepIsolatesMalformedFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.html":        `<html><head><script>console.log(1)</script></head><body></body></html>`,
		"nested/b.html": `<html><body><p>x</p><script type="module">go()</script></body></html>`,
		"broken.html":   `<html><body><script>var x = 1;`,
	})

	s := New(root, Options{Concurrency: 2}, logger.Nop())
	summary, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, 2, summary.Extracted)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "broken.html", summary.Failed[0].Path)
	assert.ErrorIs(t, summary.Failed[0], inlinescript.ErrUnterminatedScript)

	hash := contenthash.String("console.log(1)")
	assert.Equal(t, "1d695zc", hash)
	assert.Contains(t, readFile(t, root, "a.html"), `<script src="/script-1d695zc.js"></script>`)
	assert.Equal(t, "console.log(1)", readFile(t, root, "script-1d695zc.js"))

	nestedHash := contenthash.String("go()")
	assert.Contains(t, readFile(t, root, "nested/b.html"), `<script type="module" src="/script-`+nestedHash+`.js"></script>`)
	assert.Equal(t, "go()", readFile(t, root, "script-"+nestedHash+".js"))

	assert.Equal(t, `<html><body><script>var x = 1;`, readFile(t, root, "broken.html"), "malformed file must be untouched")
}

func TestSweepIncludesDotDirectories(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".well-known/page.html": `<script>alert(1)</script>`,
	})

	summary, err := New(root, Options{}, logger.Nop()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Extracted)
	assert.Equal(t, "alert(1)", readFile(t, root, "script-rejsqj.js"))
}

func TestSweepDeduplicatesIdenticalScripts(t *testing.T) {
	root := t.TempDir()
	body := `<html><head><script>const x = 1;</script></head></html>`
	writeFiles(t, root, map[string]string{
		"one.html":       body,
		"two.html":       body,
		"three/tri.html": body,
	})

	summary, err := New(root, Options{Concurrency: 3}, logger.Nop()).Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Scripts, 3)

	written := 0
	for _, sc := range summary.Scripts {
		assert.Equal(t, "script-xruzqn.js", sc.File)
		if sc.Written {
			written++
		}
	}
	assert.Equal(t, 1, written)
	assert.Equal(t, "const x = 1;", readFile(t, root, "script-xruzqn.js"))
}

func TestSweepSiblingPlacement(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"popup/index.html": `<script>console.log(1)</script>`,
	})

	opts := Options{Policy: inlinescript.Policy{Placement: inlinescript.PlacementSibling}}
	summary, err := New(root, opts, logger.Nop()).Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Scripts, 1)
	assert.Equal(t, "popup/script-1d695zc.js", summary.Scripts[0].File)
	assert.Equal(t, "./script-1d695zc.js", summary.Scripts[0].Src)
	assert.Contains(t, readFile(t, root, "popup/index.html"), `src="./script-1d695zc.js"`)
	assert.Equal(t, "console.log(1)", readFile(t, root, "popup/script-1d695zc.js"))
	assert.NoFileExists(t, filepath.Join(root, "script-1d695zc.js"))
}

func TestSweepSkipsPagesWithoutInlineScripts(t *testing.T) {
	root := t.TempDir()
	original := `<html><head><script src="/app.js"></script><script>late()</script></head></html>`
	writeFiles(t, root, map[string]string{
		"external.html": original,
		"plain.html":    `<p>no scripts</p>`,
	})

	summary, err := New(root, Options{}, logger.Nop()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Extracted)
	assert.Equal(t, original, readFile(t, root, "external.html"))
}

func TestSweepDryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	original := `<script>console.log(1)</script>`
	writeFiles(t, root, map[string]string{"index.html": original})

	summary, err := New(root, Options{DryRun: true}, logger.Nop()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Extracted)
	require.Len(t, summary.Scripts, 1)
	assert.False(t, summary.Scripts[0].Written)
	assert.Equal(t, original, readFile(t, root, "index.html"))
	assert.NoFileExists(t, filepath.Join(root, "script-1d695zc.js"))
}

func TestSweepHonorsIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".crxprepignore":    "vendor/\n",
		"vendor/embed.html": `<script>console.log(1)</script>`,
	})

	summary, err := New(root, Options{IgnoreFile: ".crxprepignore"}, logger.Nop()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Files)
	assert.NoFileExists(t, filepath.Join(root, "script-1d695zc.js"))
}

func TestSweepMissingRootFails(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), Options{}, logger.Nop()).Sweep(context.Background())
	require.Error(t, err)
}

func TestSweepCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"index.html": `<script>console.log(1)</script>`})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(root, Options{}, logger.Nop()).Sweep(ctx)
	require.NotNil(t, summary)
	if err != nil {
		assert.True(t, errors.Is(err, context.Canceled))
	}
	assert.Equal(t, 0, summary.Extracted)
}

func TestSweepAuditsSVG(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"img/clean.svg":  `<svg xmlns="http://www.w3.org/2000/svg"><rect/></svg>`,
		"img/active.svg": `<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script><g><script>x()</script></g></svg>`,
		"img/bad.svg":    `<svg><unclosed></svg>`,
	})

	summary, err := New(root, Options{AuditSVG: true}, logger.Nop()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Files)
	assert.Empty(t, summary.Failed)
	require.Len(t, summary.SVG, 1)
	assert.Equal(t, SVGFinding{Path: "img/active.svg", Scripts: 2}, summary.SVG[0])
}

func TestCountSVGScripts(t *testing.T) {
	n, err := CountSVGScripts([]byte(`<svg><script/></svg>`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = CountSVGScripts([]byte(`not xml <`))
	assert.Error(t, err)
}
