package compress

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
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

func decompress(t *testing.T, path string, f Format) []byte {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	var r io.Reader
	switch f {
	case FormatGzip:
		gz, err := gzip.NewReader(file)
		require.NoError(t, err)
		defer func() { _ = gz.Close() }()
		r = gz
	case FormatBrotli:
		r = brotli.NewReader(file)
	case FormatZstd:
		dec, err := zstd.NewReader(file)
		require.NoError(t, err)
		defer dec.Close()
		r = dec
	}
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestCompressTreeRoundTrip(t *testing.T) {
	root := t.TempDir()
	page := strings.Repeat("<p>hello extension</p>\n", 500)
	writeFiles(t, root, map[string]string{
		"index.html":            page,
		"_app/immutable/app.js": strings.Repeat("console.log(1);", 200),
		"styles/site.css":       "body{margin:0}",
		"image.png":             "\x89PNG",
		"empty.json":            "",
	})

	c := New(Options{Formats: []Format{FormatGzip, FormatBrotli, FormatZstd}}, logger.Nop())
	summary, err := c.CompressTree(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, 4, summary.Files)
	assert.Equal(t, 12, summary.Outputs)

	originals := map[string]string{
		"index.html":            page,
		"_app/immutable/app.js": strings.Repeat("console.log(1);", 200),
		"styles/site.css":       "body{margin:0}",
		"empty.json":            "",
	}
	for rel, want := range originals {
		for _, f := range []Format{FormatGzip, FormatBrotli, FormatZstd} {
			got := decompress(t, filepath.Join(root, filepath.FromSlash(rel))+f.Suffix(), f)
			assert.True(t, bytes.Equal([]byte(want), got), "%s%s does not round-trip", rel, f.Suffix())
		}
	}
	assert.NoFileExists(t, filepath.Join(root, "image.png.gz"))
}

func TestCompressTreeDefaultsAndIdempotence(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"index.html": "<p>x</p>"})

	c := New(Options{}, logger.Nop())
	first, err := c.CompressTree(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Outputs)

	second, err := c.CompressTree(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Files, "existing siblings must not be compressed again")
	assert.NoFileExists(t, filepath.Join(root, "index.html.gz.gz"))
}

func TestCompressTreeDryRun(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"index.html": "<p>x</p>"})

	summary, err := New(Options{DryRun: true}, logger.Nop()).CompressTree(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 0, summary.Outputs)
	assert.NoFileExists(t, filepath.Join(root, "index.html.gz"))
	assert.NoFileExists(t, filepath.Join(root, "index.html.br"))
}

func TestCompressTreeReportsPerFileFailures(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ok.html":      "<p>ok</p>",
		"blocked.html": "<p>blocked</p>",
	})
	// A directory in the sibling's place makes that one job fail.
	require.NoError(t, os.Mkdir(filepath.Join(root, "blocked.html.br"), 0o755))

	summary, err := New(Options{}, logger.Nop()).CompressTree(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "blocked.html", summary.Failed[0].Path)
	assert.Equal(t, FormatBrotli, summary.Failed[0].Format)
	assert.Equal(t, 3, summary.Outputs)
	assert.FileExists(t, filepath.Join(root, "blocked.html.gz"))
}

func TestCompressTreeMissingRoot(t *testing.T) {
	_, err := New(Options{}, logger.Nop()).CompressTree(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestCompressTreeCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.html": "a", "b.html": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}, logger.Nop()).CompressTree(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPattern(t *testing.T) {
	c := New(Options{Extensions: []string{".html", "js", " "}}, logger.Nop())
	assert.Equal(t, "**/*.{html,js}", c.Pattern())
	assert.Equal(t, "**/*.{html,js,json,css,svg,xml}", New(Options{}, logger.Nop()).Pattern())
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats(nil)
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatGzip, FormatBrotli}, got)

	got, err = ParseFormats([]string{"brotli", ".gz", "zstd", "br"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatBrotli, FormatGzip, FormatZstd}, got)

	_, err = ParseFormats([]string{"lzma"})
	assert.Error(t, err)
}

func TestWindowFor(t *testing.T) {
	tests := map[int64]int{
		0:       10,
		1000:    10,
		1008:    10,
		1009:    11,
		65536:   17,
		1 << 20: 21,
		1 << 30: 22,
	}
	for size, want := range tests {
		assert.Equal(t, want, windowFor(size), "windowFor(%d)", size)
	}
}

func TestJobTarget(t *testing.T) {
	j := Job{SourcePath: filepath.Join("build", "index.html"), Format: FormatBrotli}
	assert.Equal(t, filepath.Join("build", "index.html.br"), j.Target())
}
