// Package manifest removes the manifests a site builder generates and puts
// the hand-written extension manifest in their place.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aymerick/raymond"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/fulmenhq/crxprep/pkg/safeio"
	"github.com/fulmenhq/crxprep/pkg/work"
	"github.com/tidwall/jsonc"
)

// DefaultFileName is the canonical manifest's name at the assets root.
const DefaultFileName = "manifest.json"

// ErrManifestNotFound is returned when a required canonical manifest is missing.
var ErrManifestNotFound = errors.New("canonical manifest not found")

// DefaultGenerated are the generated-manifest globs, relative to the
// assets directory. {{appDir}} is replaced with the builder's app directory.
var DefaultGenerated = []string{"**/{{appDir}}/*manifest*.json", "*manifest*.json"}

// FileCopier copies one file. Site builders satisfy it.
type FileCopier interface {
	Copy(src, dst string) error
}

type fileCopierFunc func(src, dst string) error

func (f fileCopierFunc) Copy(src, dst string) error { return f(src, dst) }

// Options configures a Relocator.
type Options struct {
	AppDir string
	// FileName overrides DefaultFileName for both source and target.
	FileName      string
	Required      bool
	StripComments bool
	DryRun        bool
	// Copier performs the plain copy; nil uses safeio.CopyFile.
	Copier FileCopier
}

// Removal records a generated manifest that was deleted, or failed to be.
type Removal struct {
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of Relocate.
type Result struct {
	Removed []Removal `json:"removed,omitempty"`
	Source  string    `json:"source,omitempty"`
	Target  string    `json:"target"`
	Copied  bool      `json:"copied"`
}

// Failed counts removals that did not succeed.
func (r *Result) Failed() int {
	n := 0
	for _, rm := range r.Removed {
		if rm.Error != "" {
			n++
		}
	}
	return n
}

// Relocator runs the manifest phase.
type Relocator struct {
	opts Options
	log  *logger.Logger
}

// New creates a Relocator.
func New(opts Options, log *logger.Logger) *Relocator {
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	if opts.Copier == nil {
		opts.Copier = fileCopierFunc(safeio.CopyFile)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Relocator{opts: opts, log: log}
}

// Relocate deletes every file under assetsDir matching the generated globs,
// then copies canonicalSource to assetsDir/<FileName>. An empty
// canonicalSource counts as missing.
func (r *Relocator) Relocate(assetsDir string, generated []string, canonicalSource string) (*Result, error) {
	removed, err := r.RemoveGenerated(assetsDir, generated)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Removed: removed,
		Source:  canonicalSource,
		Target:  filepath.Join(assetsDir, r.opts.FileName),
	}
	copied, err := r.CopyCanonical(canonicalSource, res.Target)
	res.Copied = copied
	return res, err
}

// ExpandPatterns substitutes the app directory into generated-manifest globs.
func ExpandPatterns(patterns []string, appDir string) ([]string, error) {
	ctx := map[string]string{"appDir": appDir}
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		expanded, err := raymond.Render(p, ctx)
		if err != nil {
			return nil, fmt.Errorf("expand manifest pattern %q: %w", p, err)
		}
		out = append(out, expanded)
	}
	return out, nil
}

// RemoveGenerated deletes files under root matching patterns. Discovery
// errors are fatal; a file that cannot be removed is logged and recorded.
func (r *Relocator) RemoveGenerated(root string, patterns []string) ([]Removal, error) {
	expanded, err := ExpandPatterns(patterns, r.opts.AppDir)
	if err != nil {
		return nil, err
	}

	planner := work.NewPlanner(work.PlannerConfig{
		Command:  "manifest",
		Root:     root,
		Patterns: expanded,
		Logger:   r.log,
	})
	plan, err := planner.GenerateManifest()
	if err != nil {
		return nil, fmt.Errorf("find generated manifests: %w", err)
	}

	removed := make([]Removal, 0, len(plan.WorkItems))
	for _, item := range plan.WorkItems {
		rm := Removal{Path: item.RelPath}
		if r.opts.DryRun {
			r.log.Info("would remove generated manifest", logger.String("file", item.RelPath))
		} else if err := os.Remove(item.Path); err != nil {
			rm.Error = err.Error()
			r.log.Warn("could not remove generated manifest", logger.String("file", item.RelPath), logger.Err(err))
		} else {
			r.log.Minor("removed generated manifest", logger.String("file", item.RelPath))
		}
		removed = append(removed, rm)
	}
	return removed, nil
}

// CopyCanonical copies src to dst. A missing src is logged as an error and
// reported as not copied, unless Required is set.
func (r *Relocator) CopyCanonical(src, dst string) (bool, error) {
	if src == "" || !fileExists(src) {
		if r.opts.Required {
			return false, fmt.Errorf("%w: %s", ErrManifestNotFound, src)
		}
		r.log.Error("canonical manifest not found; build will have no extension manifest", logger.String("source", src))
		return false, nil
	}

	if r.opts.DryRun {
		r.log.Info("would copy canonical manifest", logger.String("source", src), logger.String("target", dst))
		return false, nil
	}

	var err error
	if r.opts.StripComments {
		err = copyStripped(src, dst)
	} else {
		err = r.opts.Copier.Copy(src, dst)
	}
	if err != nil {
		return false, fmt.Errorf("copy manifest %s: %w", src, err)
	}

	r.log.Success("copied canonical manifest", logger.String("target", dst))
	return true, nil
}

// copyStripped writes src to dst with comments and trailing commas removed.
func copyStripped(src, dst string) error {
	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return err
	}
	out := jsonc.ToJSON(data)
	if !json.Valid(out) {
		return fmt.Errorf("%s is not valid JSON after removing comments", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return safeio.WriteFilePreservePerms(dst, out)
}

// ResolveSource picks the canonical manifest: the static directory's copy
// when present, else the client directory's.
func ResolveSource(staticDir, clientDir, name string) string {
	if name == "" {
		name = DefaultFileName
	}
	if staticDir != "" {
		if p := filepath.Join(staticDir, name); fileExists(p) {
			return p
		}
	}
	if clientDir != "" {
		return filepath.Join(clientDir, name)
	}
	return ""
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
