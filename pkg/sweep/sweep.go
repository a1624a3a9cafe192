// Package sweep externalizes inline scripts across every HTML file of a
// static site tree.
package sweep

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/crxprep/pkg/inlinescript"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/fulmenhq/crxprep/pkg/safeio"
	"github.com/fulmenhq/crxprep/pkg/work"
)

// HTMLPattern selects the documents swept under a root.
const HTMLPattern = "**/*.{html}"

// SVGPattern selects the images audited for embedded scripts.
const SVGPattern = "**/*.svg"

// Options configures a Sweeper.
type Options struct {
	Policy inlinescript.Policy
	// Concurrency bounds the worker pool; zero means runtime.NumCPU().
	Concurrency    int
	DryRun         bool
	AuditSVG       bool
	IgnoreFile     string
	IgnorePatterns []string
}

// FileError is a per-file failure. It never aborts a sweep.
type FileError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("sweep %s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// Script records one extraction.
type Script struct {
	// Page is the HTML file, relative to the sweep root.
	Page string `json:"page"`
	// File is the script file, relative to the sweep root.
	File string `json:"file"`
	Hash string `json:"hash"`
	Src  string `json:"src"`
	// Written is false when an earlier page in the same sweep already wrote File.
	Written bool `json:"written"`
}

// SVGFinding reports an SVG image that embeds script elements.
type SVGFinding struct {
	Path    string `json:"path"`
	Scripts int    `json:"scripts"`
}

// Summary is the outcome of one sweep.
type Summary struct {
	Root      string        `json:"root"`
	Files     int           `json:"files"`
	Extracted int           `json:"extracted"`
	Skipped   int           `json:"skipped"`
	Failed    []FileError   `json:"failed,omitempty"`
	Scripts   []Script      `json:"scripts,omitempty"`
	SVG       []SVGFinding  `json:"svg,omitempty"`
	Cancelled int           `json:"cancelled,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Sweeper runs the extractor over one directory tree.
type Sweeper struct {
	root string
	opts Options
	log  *logger.Logger

	mu       sync.Mutex
	written  map[string]*pendingWrite
	scripts  []Script
	findings []SVGFinding
	failures map[string]error
}

type pendingWrite struct {
	once sync.Once
	err  error
}

// New creates a Sweeper rooted at root.
func New(root string, opts Options, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{root: root, opts: opts, log: log}
}

// Sweep processes every HTML file under the root. A discovery failure is
// returned as an error; per-file failures are collected in the Summary.
func (s *Sweeper) Sweep(ctx context.Context) (*Summary, error) {
	start := time.Now()
	s.reset()

	patterns := []string{HTMLPattern}
	if s.opts.AuditSVG {
		patterns = append(patterns, SVGPattern)
	}

	planner := work.NewPlanner(work.PlannerConfig{
		Command:        "scripts",
		Root:           s.root,
		Patterns:       patterns,
		IgnoreFile:     s.opts.IgnoreFile,
		IgnorePatterns: s.opts.IgnorePatterns,
		Logger:         s.log,
	})
	manifest, err := planner.GenerateManifest()
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", s.root, err)
	}

	dispatcher := work.NewDispatcher(work.DispatcherConfig{
		MaxWorkers: s.opts.Concurrency,
		DryRun:     s.opts.DryRun,
		Logger:     s.log,
	}, s)
	exec, runErr := dispatcher.ExecuteManifest(ctx, manifest)

	summary := &Summary{Root: s.root}
	for _, r := range exec.Results {
		if work.ContentTypeOf(r.Path) != "html" {
			continue
		}
		summary.Files++
		switch {
		case !r.Success:
			summary.Failed = append(summary.Failed, FileError{Path: r.Path, Err: s.failures[r.Path]})
		case r.Skipped:
			summary.Skipped++
		default:
			summary.Extracted++
		}
	}
	sort.Slice(s.scripts, func(i, j int) bool { return s.scripts[i].Page < s.scripts[j].Page })
	sort.Slice(s.findings, func(i, j int) bool { return s.findings[i].Path < s.findings[j].Path })
	summary.Scripts = s.scripts
	summary.SVG = s.findings
	summary.Cancelled = exec.Cancelled
	summary.Duration = time.Since(start)

	if runErr != nil {
		return summary, fmt.Errorf("sweep %s: %w", s.root, runErr)
	}
	return summary, nil
}

func (s *Sweeper) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = make(map[string]*pendingWrite)
	s.scripts = nil
	s.findings = nil
	s.failures = make(map[string]error)
}

// ProcessWorkItem implements work.WorkItemProcessor.
func (s *Sweeper) ProcessWorkItem(ctx context.Context, item *work.WorkItem, dryRun bool) work.ExecutionResult {
	if err := ctx.Err(); err != nil {
		return s.fail(item, err)
	}
	if item.ContentType == "svg" {
		return s.auditSVG(item)
	}
	return s.processHTML(item, dryRun)
}

func (s *Sweeper) processHTML(item *work.WorkItem, dryRun bool) work.ExecutionResult {
	data, err := safeio.ReadFileContained(s.root, item.Path)
	if err != nil {
		return s.fail(item, err)
	}

	res, err := inlinescript.ExtractString(string(data), s.opts.Policy)
	if err != nil {
		return s.fail(item, err)
	}
	if res == nil {
		s.log.Minor("no inline script", logger.String("file", item.RelPath))
		return work.ExecutionResult{Success: true, Skipped: true}
	}

	scriptPath := s.scriptPath(item, res.Script.FileName)
	scriptRel, err := filepath.Rel(s.root, scriptPath)
	if err != nil {
		return s.fail(item, err)
	}
	record := Script{
		Page: item.RelPath,
		File: filepath.ToSlash(scriptRel),
		Hash: res.Script.ContentHash,
		Src:  res.Src,
	}

	if dryRun {
		s.log.Info("would extract inline script",
			logger.String("file", item.RelPath), logger.String("script", record.File))
		s.record(record)
		return work.ExecutionResult{Success: true, Output: record.File}
	}

	first, err := s.writeScript(scriptPath, res.Script.Body)
	if err != nil {
		return s.fail(item, err)
	}
	record.Written = first

	if err := safeio.WriteFilePreservePerms(item.Path, []byte(res.HTML)); err != nil {
		return s.fail(item, err)
	}

	s.record(record)
	s.log.Success("extracted inline script",
		logger.String("file", item.RelPath), logger.String("script", record.File))
	return work.ExecutionResult{Success: true, Output: record.File}
}

// scriptPath is where the extracted file lands for item.
func (s *Sweeper) scriptPath(item *work.WorkItem, fileName string) string {
	name := filepath.FromSlash(fileName)
	if s.opts.Policy.Placement == inlinescript.PlacementSibling {
		return filepath.Join(filepath.Dir(item.Path), name)
	}
	return filepath.Join(s.root, name)
}

// writeScript writes body to path once per sweep. It reports whether this
// call performed the write.
func (s *Sweeper) writeScript(path string, body []byte) (bool, error) {
	s.mu.Lock()
	w, ok := s.written[path]
	if !ok {
		w = &pendingWrite{}
		s.written[path] = w
	}
	s.mu.Unlock()

	first := false
	w.once.Do(func() {
		first = true
		w.err = safeio.WriteFileContained(s.root, path, body)
	})
	return first, w.err
}

func (s *Sweeper) record(sc Script) {
	s.mu.Lock()
	s.scripts = append(s.scripts, sc)
	s.mu.Unlock()
}

func (s *Sweeper) fail(item *work.WorkItem, err error) work.ExecutionResult {
	s.mu.Lock()
	s.failures[item.RelPath] = err
	s.mu.Unlock()
	s.log.Error("failed to externalize inline script", logger.String("file", item.RelPath), logger.Err(err))
	return work.ExecutionResult{Success: false, Error: err.Error()}
}
