// Package compress writes precompressed siblings (.gz, .br, .zst) next to
// the text assets of a site tree.
package compress

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/crxprep/pkg/logger"
	"github.com/fulmenhq/crxprep/pkg/work"
	"golang.org/x/sync/errgroup"
)

// DefaultExtensions are the file types compressed when none are configured.
var DefaultExtensions = []string{"html", "js", "json", "css", "svg", "xml"}

// Options configures a Compressor.
type Options struct {
	Extensions []string
	Formats    []Format
	// Concurrency bounds parallel jobs; zero means runtime.NumCPU().
	Concurrency    int
	DryRun         bool
	IgnoreFile     string
	IgnorePatterns []string
}

// Job compresses one file into one format.
type Job struct {
	SourcePath string
	RelPath    string
	Size       int64
	Format     Format
}

// Target is the sibling path the job writes.
func (j Job) Target() string {
	return j.SourcePath + j.Format.Suffix()
}

// Failure is a per-file, per-format error. It never aborts the tree.
type Failure struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
	Error  string `json:"error"`
}

// Summary is the outcome of CompressTree.
type Summary struct {
	Root     string        `json:"root"`
	Files    int           `json:"files"`
	Outputs  int           `json:"outputs"`
	BytesIn  int64         `json:"bytes_in"`
	BytesOut int64         `json:"bytes_out"`
	Failed   []Failure     `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Compressor runs the compression phase.
type Compressor struct {
	opts Options
	log  *logger.Logger
}

// New creates a Compressor, filling unset options with defaults.
func New(opts Options, log *logger.Logger) *Compressor {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if len(opts.Formats) == 0 {
		opts.Formats = DefaultFormats
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Compressor{opts: opts, log: log}
}

// Pattern is the discovery glob for the configured extensions.
func (c *Compressor) Pattern() string {
	exts := make([]string, 0, len(c.opts.Extensions))
	for _, e := range c.opts.Extensions {
		if e = strings.TrimPrefix(strings.TrimSpace(e), "."); e != "" {
			exts = append(exts, e)
		}
	}
	return "**/*.{" + strings.Join(exts, ",") + "}"
}

// Plan lists the jobs for root without running them.
func (c *Compressor) Plan(root string) ([]Job, error) {
	planner := work.NewPlanner(work.PlannerConfig{
		Command:        "compress",
		Root:           root,
		Patterns:       []string{c.Pattern()},
		IgnoreFile:     c.opts.IgnoreFile,
		IgnorePatterns: c.opts.IgnorePatterns,
		Logger:         c.log,
	})
	manifest, err := planner.GenerateManifest()
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", root, err)
	}

	jobs := make([]Job, 0, len(manifest.WorkItems)*len(c.opts.Formats))
	for _, item := range manifest.WorkItems {
		for _, f := range c.opts.Formats {
			jobs = append(jobs, Job{SourcePath: item.Path, RelPath: item.RelPath, Size: item.Size, Format: f})
		}
	}
	return jobs, nil
}

// CompressTree writes a sibling per discovered file and format. Discovery
// failure is returned; per-job failures are collected in the Summary.
func (c *Compressor) CompressTree(ctx context.Context, root string) (*Summary, error) {
	start := time.Now()
	jobs, err := c.Plan(root)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Root: root}
	files := make(map[string]bool)
	for _, j := range jobs {
		files[j.RelPath] = true
	}
	summary.Files = len(files)

	if c.opts.DryRun {
		for _, j := range jobs {
			c.log.Info("would compress", logger.String("file", j.RelPath), logger.String("format", string(j.Format)))
		}
		summary.Duration = time.Since(start)
		return summary, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	var mu sync.Mutex

	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := CompressFile(job)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed = append(summary.Failed, Failure{Path: job.RelPath, Format: job.Format, Error: err.Error()})
				c.log.Warn("compression failed", logger.String("file", job.RelPath),
					logger.String("format", string(job.Format)), logger.Err(err))
				return nil
			}
			summary.Outputs++
			summary.BytesIn += job.Size
			summary.BytesOut += n
			c.log.Minor("compressed", logger.String("file", job.RelPath),
				logger.String("format", string(job.Format)), logger.Int64("bytes", n))
			return nil
		})
	}
	waitErr := g.Wait()

	sort.Slice(summary.Failed, func(i, j int) bool {
		if summary.Failed[i].Path != summary.Failed[j].Path {
			return summary.Failed[i].Path < summary.Failed[j].Path
		}
		return summary.Failed[i].Format < summary.Failed[j].Format
	})
	summary.Duration = time.Since(start)

	if waitErr != nil {
		return summary, fmt.Errorf("compress %s: %w", root, waitErr)
	}
	return summary, nil
}

// CompressFile writes job.Target() and returns its size. A partial target
// is removed on failure.
func CompressFile(job Job) (n int64, err error) {
	src, err := os.Open(job.SourcePath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	size := job.Size
	if size <= 0 {
		if st, statErr := src.Stat(); statErr == nil {
			size = st.Size()
		}
	}

	target := job.Target()
	dst, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = dst.Close()
			_ = os.Remove(target)
		}
	}()

	w, err := job.Format.newWriter(dst, size)
	if err != nil {
		return 0, err
	}
	if _, err = io.Copy(w, src); err != nil {
		return 0, err
	}
	if err = w.Close(); err != nil {
		return 0, err
	}
	if err = dst.Close(); err != nil {
		return 0, err
	}

	st, err := os.Stat(target)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}
