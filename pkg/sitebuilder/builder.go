// Package sitebuilder produces the static site tree the rest of the
// pipeline post-processes. Builder is the seam; Tree is the filesystem
// implementation backed by go-billy.
package sitebuilder

import "github.com/fulmenhq/crxprep/pkg/logger"

// PrerenderOptions controls WritePrerendered.
type PrerenderOptions struct {
	// Fallback, when set, is the page path (relative to dest) of the SPA
	// fallback page.
	Fallback string
}

// Builder is everything the adapter needs from the framework's build
// output. All paths are OS paths.
type Builder interface {
	Log() *logger.Logger
	Rimraf(dir string) error
	WriteStatic(dest string) ([]string, error)
	WriteClient(dest string) ([]string, error)
	WritePrerendered(dest string, opts PrerenderOptions) ([]string, error)
	AppDir() string
	Copy(src, dst string) error
	StaticDir() string
	ClientDir() string
}
