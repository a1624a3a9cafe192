package adapter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/crxprep/pkg/ascii"
	"github.com/fulmenhq/crxprep/pkg/compress"
	"github.com/fulmenhq/crxprep/pkg/manifest"
	"github.com/fulmenhq/crxprep/pkg/sweep"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Report formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Status is the outcome of one phase.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// PhaseReport summarizes one phase over one root.
type PhaseReport struct {
	Name      string        `json:"name" yaml:"name"`
	Root      string        `json:"root,omitempty" yaml:"root,omitempty"`
	Status    Status        `json:"status" yaml:"status"`
	Files     int           `json:"files" yaml:"files"`
	Processed int           `json:"processed" yaml:"processed"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Failed    int           `json:"failed" yaml:"failed"`
	Detail    string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Failure is a per-item problem that did not stop the run.
type Failure struct {
	Phase string `json:"phase" yaml:"phase"`
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// BuildResult counts the files the site builder wrote.
type BuildResult struct {
	Static   int    `json:"static" yaml:"static"`
	Client   int    `json:"client" yaml:"client"`
	Pages    int    `json:"pages" yaml:"pages"`
	Fallback string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Report is the outcome of one Adapt run.
type Report struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	DryRun    bool          `json:"dry_run" yaml:"dry_run"`
	Pages     string        `json:"pages" yaml:"pages"`
	Assets    string        `json:"assets" yaml:"assets"`
	Build     *BuildResult  `json:"build,omitempty" yaml:"build,omitempty"`
	Phases    []PhaseReport `json:"phases" yaml:"phases"`
	Failures  []Failure     `json:"failures,omitempty" yaml:"failures,omitempty"`

	Sweeps   []*sweep.Summary    `json:"-" yaml:"-"`
	Manifest *manifest.Result    `json:"-" yaml:"-"`
	Compress []*compress.Summary `json:"-" yaml:"-"`
}

func newReport(dryRun bool, pages, assets string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    dryRun,
		Pages:     pages,
		Assets:    assets,
	}
}

func (r *Report) finish() {
	r.Duration = time.Since(r.StartedAt)
}

func (r *Report) add(p PhaseReport) {
	r.Phases = append(r.Phases, p)
}

func (r *Report) skip(name, root, reason string) {
	r.add(PhaseReport{Name: name, Root: root, Status: StatusSkipped, Detail: reason})
}

func (r *Report) fail(name, root string, start time.Time, err error) {
	p := PhaseReport{Name: name, Root: root, Status: StatusFailed, Duration: time.Since(start)}
	if err != nil {
		p.Detail = err.Error()
	}
	r.add(p)
}

func (r *Report) addSweep(s *sweep.Summary) {
	r.Sweeps = append(r.Sweeps, s)
	p := PhaseReport{
		Name:      PhaseScripts,
		Root:      s.Root,
		Status:    StatusOK,
		Files:     s.Files,
		Processed: s.Extracted,
		Skipped:   s.Skipped,
		Failed:    len(s.Failed),
		Duration:  s.Duration,
	}
	var notes []string
	if len(s.SVG) > 0 {
		notes = append(notes, fmt.Sprintf("%d svg with scripts", len(s.SVG)))
	}
	if s.Cancelled > 0 {
		notes = append(notes, fmt.Sprintf("%d cancelled", s.Cancelled))
	}
	p.Detail = strings.Join(notes, ", ")
	if p.Failed > 0 || s.Cancelled > 0 {
		p.Status = StatusPartial
	}
	for _, f := range s.Failed {
		r.Failures = append(r.Failures, Failure{Phase: PhaseScripts, Path: f.Path, Error: errString(f.Err)})
	}
	r.add(p)
}

func (r *Report) addManifest(res *manifest.Result, d time.Duration, err error) {
	r.Manifest = res
	p := PhaseReport{
		Name:     PhaseManifest,
		Root:     r.Assets,
		Status:   StatusOK,
		Files:    len(res.Removed),
		Failed:   res.Failed(),
		Duration: d,
	}
	p.Processed = len(res.Removed) - p.Failed
	switch {
	case err != nil:
		p.Status = StatusFailed
		p.Detail = err.Error()
	case !res.Copied && !r.DryRun:
		p.Status = StatusPartial
		p.Detail = "canonical manifest not copied"
	case res.Copied:
		p.Detail = "copied " + res.Source
	}
	if p.Failed > 0 && p.Status == StatusOK {
		p.Status = StatusPartial
	}
	for _, rm := range res.Removed {
		if rm.Error != "" {
			r.Failures = append(r.Failures, Failure{Phase: PhaseManifest, Path: rm.Path, Error: rm.Error})
		}
	}
	r.add(p)
}

func (r *Report) addCompress(s *compress.Summary) {
	r.Compress = append(r.Compress, s)
	p := PhaseReport{
		Name:      PhaseCompress,
		Root:      s.Root,
		Status:    StatusOK,
		Files:     s.Files,
		Processed: s.Outputs,
		Failed:    len(s.Failed),
		Duration:  s.Duration,
	}
	if s.BytesIn > 0 {
		p.Detail = fmt.Sprintf("%d -> %d bytes", s.BytesIn, s.BytesOut)
	}
	if p.Failed > 0 {
		p.Status = StatusPartial
	}
	for _, f := range s.Failed {
		r.Failures = append(r.Failures, Failure{Phase: PhaseCompress, Path: f.Path + f.Format.Suffix(), Error: f.Error})
	}
	r.add(p)
}

// Extracted is the number of pages rewritten across every sweep.
func (r *Report) Extracted() int {
	n := 0
	for _, s := range r.Sweeps {
		n += s.Extracted
	}
	return n
}

// Phase returns the first report for name, or nil.
func (r *Report) Phase(name string) *PhaseReport {
	for i := range r.Phases {
		if r.Phases[i].Name == name {
			return &r.Phases[i]
		}
	}
	return nil
}

// Render writes the report in format (text, json or yaml).
func (r *Report) Render(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		_, err := io.WriteString(w, r.Text())
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q (want text, json or yaml)", format)
	}
}

const failureWidth = 72

// Text renders the report as a terminal box.
func (r *Report) Text() string {
	title := cases.Title(language.English)

	header := [][2]string{
		{"Run", r.RunID},
		{"Pages", r.Pages},
		{"Assets", r.Assets},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
	}
	if r.DryRun {
		header = append(header, [2]string{"Mode", "dry run"})
	}
	lines := ascii.KeyValues(header)
	lines = append(lines, "")

	phases := make([][2]string, 0, len(r.Phases))
	for _, p := range r.Phases {
		phases = append(phases, [2]string{title.String(p.Name), phaseLine(p)})
	}
	lines = append(lines, ascii.KeyValues(phases)...)

	if len(r.Failures) > 0 {
		lines = append(lines, "", fmt.Sprintf("%d failure(s):", len(r.Failures)))
		for _, f := range r.Failures {
			line := fmt.Sprintf("%s %s: %s", f.Phase, f.Path, f.Error)
			lines = append(lines, ascii.TruncateForBox(line, failureWidth))
		}
	}
	return ascii.TitledBox("crxprep", lines)
}

func phaseLine(p PhaseReport) string {
	var sb strings.Builder
	sb.WriteString(string(p.Status))
	if p.Root != "" {
		sb.WriteString(" " + p.Root)
	}
	if p.Status != StatusSkipped && p.Status != StatusFailed {
		fmt.Fprintf(&sb, " %d/%d", p.Processed, p.Files)
		if p.Skipped > 0 {
			fmt.Fprintf(&sb, " skipped %d", p.Skipped)
		}
		if p.Failed > 0 {
			fmt.Fprintf(&sb, " failed %d", p.Failed)
		}
	}
	if p.Detail != "" {
		sb.WriteString(" (" + p.Detail + ")")
	}
	return sb.String()
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
