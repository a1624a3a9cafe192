package compress

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format is a precompressed sibling format, named by its file suffix.
type Format string

const (
	FormatGzip   Format = "gz"
	FormatBrotli Format = "br"
	FormatZstd   Format = "zst"
)

// DefaultFormats are produced when none are configured.
var DefaultFormats = []Format{FormatGzip, FormatBrotli}

// ParseFormats validates configured format names. Empty input yields DefaultFormats.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return append([]Format(nil), DefaultFormats...), nil
	}
	seen := make(map[Format]bool, len(names))
	out := make([]Format, 0, len(names))
	for _, n := range names {
		var f Format
		switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(n), ".")) {
		case "gz", "gzip":
			f = FormatGzip
		case "br", "brotli":
			f = FormatBrotli
		case "zst", "zstd":
			f = FormatZstd
		default:
			return nil, fmt.Errorf("unknown compression format %q (want gz, br or zst)", n)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Suffix is appended to the source path to name the sibling.
func (f Format) Suffix() string {
	return "." + string(f)
}

// newWriter wraps w in the format's encoder at its strongest setting.
// size is the uncompressed length, used as the brotli size hint.
func (f Format) newWriter(w io.Writer, size int64) (io.WriteCloser, error) {
	switch f {
	case FormatGzip:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case FormatBrotli:
		return brotli.NewWriterOptions(w, brotli.WriterOptions{
			Quality: brotli.BestCompression,
			LGWin:   windowFor(size),
		}), nil
	case FormatZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	default:
		return nil, fmt.Errorf("unknown compression format %q", string(f))
	}
}

const (
	minWindow     = 10
	defaultWindow = 22
)

// windowFor returns the smallest brotli window that holds size bytes,
// clamped to [minWindow, defaultWindow].
func windowFor(size int64) int {
	w := minWindow
	for w < defaultWindow && int64(1)<<w-16 < size {
		w++
	}
	return w
}
