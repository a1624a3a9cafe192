package sitebuilder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/fulmenhq/crxprep/internal/assets"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// ErrOutsideTree is returned for paths that do not resolve under the tree base.
var ErrOutsideTree = errors.New("path is outside the project tree")

// TreeOptions locates the framework build output inside the tree.
type TreeOptions struct {
	StaticDir      string
	ClientDir      string
	PrerenderedDir string
	AppDir         string
	// FallbackTemplate is a handlebars file; empty uses the embedded default.
	FallbackTemplate string
	Title            string
	Lang             string
	Entry            string
}

// Tree implements Builder over a billy filesystem whose root is base.
type Tree struct {
	fs   billy.Filesystem
	base string
	opts TreeOptions
	log  *logger.Logger
}

// NewTree wraps fs. base is the OS path fs is rooted at; paths handed to
// the Builder methods are resolved against it.
func NewTree(fs billy.Filesystem, base string, opts TreeOptions, log *logger.Logger) *Tree {
	if opts.AppDir == "" {
		opts.AppDir = "_app"
	}
	if opts.Lang == "" {
		opts.Lang = "en"
	}
	if opts.Entry == "" {
		opts.Entry = "immutable/start.js"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Tree{fs: fs, base: filepath.Clean(base), opts: opts, log: log}
}

// NewOSTree roots a Tree at the project directory on disk.
func NewOSTree(root string, opts TreeOptions, log *logger.Logger) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return NewTree(osfs.New(abs), abs, opts, log), nil
}

func (t *Tree) Log() *logger.Logger { return t.log }

func (t *Tree) AppDir() string { return t.opts.AppDir }

func (t *Tree) StaticDir() string { return t.abs(t.opts.StaticDir) }

func (t *Tree) ClientDir() string { return t.abs(t.opts.ClientDir) }

// abs maps a configured (tree-relative) directory to an OS path.
func (t *Tree) abs(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(t.base, p)
}

// rel maps an OS path (or tree-relative path) into the billy filesystem.
func (t *Tree) rel(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(t.base, p)
	}
	r, err := filepath.Rel(t.base, p)
	if err != nil {
		return "", err
	}
	if r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideTree, p)
	}
	return filepath.ToSlash(r), nil
}

// Rimraf removes dir and everything below it. A missing dir is not an error.
func (t *Tree) Rimraf(dir string) error {
	r, err := t.rel(dir)
	if err != nil {
		return err
	}
	if r == "." {
		return fmt.Errorf("refusing to remove the project root")
	}
	t.log.Debug("removing directory", logger.String("dir", r))
	return util.RemoveAll(t.fs, r)
}

func (t *Tree) WriteStatic(dest string) ([]string, error) {
	return t.copyDir(t.StaticDir(), dest)
}

func (t *Tree) WriteClient(dest string) ([]string, error) {
	return t.copyDir(t.ClientDir(), dest)
}

// WritePrerendered copies the prerendered pages and, when opts.Fallback is
// set, renders the fallback page.
func (t *Tree) WritePrerendered(dest string, opts PrerenderOptions) ([]string, error) {
	written, err := t.copyDir(t.abs(t.opts.PrerenderedDir), dest)
	if err != nil {
		return written, err
	}
	if opts.Fallback == "" {
		return written, nil
	}

	page, err := t.renderFallback()
	if err != nil {
		return written, err
	}
	target := filepath.Join(dest, filepath.FromSlash(opts.Fallback))
	r, err := t.rel(target)
	if err != nil {
		return written, err
	}
	if err := t.mkParent(r); err != nil {
		return written, err
	}
	if err := util.WriteFile(t.fs, r, []byte(page), 0o644); err != nil {
		return written, fmt.Errorf("write fallback page: %w", err)
	}
	t.log.Minor("wrote fallback page", logger.String("file", r))
	return append(written, filepath.ToSlash(opts.Fallback)), nil
}

func (t *Tree) renderFallback() (string, error) {
	var tpl []byte
	if t.opts.FallbackTemplate != "" {
		r, err := t.rel(t.abs(t.opts.FallbackTemplate))
		if err != nil {
			return "", err
		}
		if tpl, err = util.ReadFile(t.fs, r); err != nil {
			return "", fmt.Errorf("read fallback template: %w", err)
		}
	} else {
		var ok bool
		if tpl, ok = assets.GetTemplate(assets.FallbackTemplate); !ok {
			return "", fmt.Errorf("embedded fallback template missing")
		}
	}

	out, err := raymond.Render(string(tpl), map[string]string{
		"title":  t.opts.Title,
		"lang":   t.opts.Lang,
		"appDir": t.opts.AppDir,
		"entry":  t.opts.Entry,
		"mount":  "app",
	})
	if err != nil {
		return "", fmt.Errorf("render fallback template: %w", err)
	}
	return out, nil
}

// Copy copies one file, creating dst's parent directories.
func (t *Tree) Copy(src, dst string) error {
	s, err := t.rel(src)
	if err != nil {
		return err
	}
	d, err := t.rel(dst)
	if err != nil {
		return err
	}
	return t.copyFile(s, d)
}

// copyDir mirrors src into dest and returns the dest-relative paths written.
// A missing src writes nothing.
func (t *Tree) copyDir(src, dest string) ([]string, error) {
	if src == "" {
		return nil, nil
	}
	s, err := t.rel(src)
	if err != nil {
		return nil, err
	}
	d, err := t.rel(dest)
	if err != nil {
		return nil, err
	}

	if _, err := t.fs.Stat(s); errors.Is(err, os.ErrNotExist) {
		t.log.Debug("source directory absent", logger.String("dir", s))
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var written []string
	err = util.Walk(t.fs, s, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		r, err := filepath.Rel(filepath.FromSlash(s), filepath.FromSlash(p))
		if err != nil {
			return err
		}
		r = filepath.ToSlash(r)
		if err := t.copyFile(p, t.fs.Join(d, r)); err != nil {
			return err
		}
		written = append(written, r)
		return nil
	})
	if err != nil {
		return written, fmt.Errorf("copy %s to %s: %w", s, d, err)
	}
	sort.Strings(written)
	t.log.Minor("copied directory", logger.String("from", s), logger.String("to", d), logger.Int("files", len(written)))
	return written, nil
}

func (t *Tree) copyFile(src, dst string) (err error) {
	in, err := t.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := t.mkParent(dst); err != nil {
		return err
	}
	out, err := t.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

func (t *Tree) mkParent(p string) error {
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(p)))
	if dir == "." {
		return nil
	}
	return t.fs.MkdirAll(dir, 0o755)
}
