package work

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/crxprep/pkg/ignore"
	"github.com/fulmenhq/crxprep/pkg/logger"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WorkItem represents a single file to be processed
type WorkItem struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	RelPath     string `json:"rel_path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// WorkGroup represents a logical grouping of work items
type WorkGroup struct {
	ID                         string   `json:"id"`
	Name                       string   `json:"name"`
	WorkItemIDs                []string `json:"work_item_ids"`
	RecommendedParallelization int      `json:"recommended_parallelization"`
}

// Plan describes how the manifest was produced
type Plan struct {
	Command      string    `json:"command"`
	Timestamp    time.Time `json:"timestamp"`
	Root         string    `json:"root"`
	Patterns     []string  `json:"patterns"`
	MatchedFiles int       `json:"matched_files"`
	IgnoredFiles int       `json:"ignored_files"`
}

// Statistics provides statistical information about the work plan
type Statistics struct {
	FilesByType      map[string]int `json:"files_by_type"`
	SizeDistribution SizeStats      `json:"size_distribution"`
}

// SizeStats provides file size statistics
type SizeStats struct {
	MinSize   int64   `json:"min_size"`
	MaxSize   int64   `json:"max_size"`
	AvgSize   float64 `json:"avg_size"`
	TotalSize int64   `json:"total_size"`
}

// WorkManifest represents the complete work plan
type WorkManifest struct {
	Plan       Plan        `json:"plan"`
	WorkItems  []WorkItem  `json:"work_items"`
	Groups     []WorkGroup `json:"groups"`
	Statistics Statistics  `json:"statistics"`
}

// PlannerConfig configures the work planner
type PlannerConfig struct {
	Command string
	// Root is the directory every pattern is evaluated against.
	Root string
	// Patterns are doublestar globs relative to Root, e.g. "**/*.{html}".
	Patterns []string
	// IgnoreFile names a gitignore-style file looked up at Root. Empty disables it.
	IgnoreFile     string
	IgnorePatterns []string
	Logger         *logger.Logger
}

// Planner handles work planning and manifest generation
type Planner struct {
	config        PlannerConfig
	ignoreMatcher *ignore.Matcher
	log           *logger.Logger
}

// NewPlanner creates a new work planner
func NewPlanner(config PlannerConfig) *Planner {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	planner := &Planner{config: config, log: log}

	if matcher, err := ignore.NewMatcher(config.Root, config.IgnoreFile, config.IgnorePatterns...); err != nil {
		log.Warn("Failed to initialize ignore matcher", logger.String("root", config.Root), logger.Err(err))
	} else {
		planner.ignoreMatcher = matcher
	}

	return planner
}

// GenerateManifest discovers files under Root and builds the work manifest.
// A discovery failure aborts planning; nothing is returned partially.
func (p *Planner) GenerateManifest() (*WorkManifest, error) {
	p.log.Debug("Starting work plan generation", logger.String("root", p.config.Root))

	matched, err := p.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to discover files under %s: %w", p.config.Root, err)
	}

	var kept []string
	ignored := 0
	for _, rel := range matched {
		if p.ignoreMatcher.IsIgnored(rel) {
			p.log.Debug("Skipping ignored file", logger.String("path", rel))
			ignored++
			continue
		}
		kept = append(kept, rel)
	}

	workItems, err := p.createWorkItems(kept)
	if err != nil {
		return nil, err
	}

	manifest := &WorkManifest{
		Plan: Plan{
			Command:      p.config.Command,
			Timestamp:    time.Now(),
			Root:         p.config.Root,
			Patterns:     p.config.Patterns,
			MatchedFiles: len(matched),
			IgnoredFiles: ignored,
		},
		WorkItems:  workItems,
		Groups:     p.groupByContentType(workItems),
		Statistics: p.calculateStatistics(workItems),
	}

	p.log.Debug(fmt.Sprintf("Generated work manifest with %d work items in %d groups", len(workItems), len(manifest.Groups)))
	return manifest, nil
}

// discoverFiles expands every pattern against Root. Results are
// slash-separated, de-duplicated and sorted.
func (p *Planner) discoverFiles() ([]string, error) {
	info, err := os.Stat(p.config.Root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", p.config.Root)
	}

	fsys := os.DirFS(p.config.Root)
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range p.config.Patterns {
		pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// createWorkItems creates work items from root-relative paths
func (p *Planner) createWorkItems(files []string) ([]WorkItem, error) {
	workItems := make([]WorkItem, 0, len(files))
	for _, rel := range files {
		abs := filepath.Join(p.config.Root, filepath.FromSlash(rel))
		stat, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", rel, err)
		}

		workItems = append(workItems, WorkItem{
			ID:          fmt.Sprintf("%x", sha256.Sum256([]byte(rel))),
			Path:        abs,
			RelPath:     rel,
			ContentType: ContentTypeOf(rel),
			Size:        stat.Size(),
		})
	}
	return workItems, nil
}

// ContentTypeOf classifies a path by extension.
func ContentTypeOf(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm":
		return "html"
	case ".svg":
		return "svg"
	case ".js", ".mjs":
		return "javascript"
	case ".css":
		return "css"
	case ".json":
		return "json"
	case ".xml":
		return "xml"
	default:
		return "unknown"
	}
}

// groupByContentType groups work items by content type
func (p *Planner) groupByContentType(workItems []WorkItem) []WorkGroup {
	groups := make(map[string][]string)
	for _, item := range workItems {
		groups[item.ContentType] = append(groups[item.ContentType], item.ID)
	}

	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)

	c := cases.Title(language.Und)
	result := make([]WorkGroup, 0, len(types))
	for _, contentType := range types {
		ids := groups[contentType]
		result = append(result, WorkGroup{
			ID:                         fmt.Sprintf("content_type_%s", contentType),
			Name:                       fmt.Sprintf("%s Files", c.String(contentType)),
			WorkItemIDs:                ids,
			RecommendedParallelization: calculateParallelization(len(ids)),
		})
	}
	return result
}

// calculateParallelization caps workers at the item count
func calculateParallelization(itemCount int) int {
	maxWorkers := runtime.NumCPU()
	if itemCount < maxWorkers {
		return itemCount
	}
	return maxWorkers
}

// calculateStatistics calculates statistical information
func (p *Planner) calculateStatistics(workItems []WorkItem) Statistics {
	stats := Statistics{FilesByType: make(map[string]int)}

	var totalSize int64
	var minSize, maxSize int64 = -1, 0
	for _, item := range workItems {
		stats.FilesByType[item.ContentType]++
		totalSize += item.Size
		if minSize == -1 || item.Size < minSize {
			minSize = item.Size
		}
		if item.Size > maxSize {
			maxSize = item.Size
		}
	}

	if len(workItems) > 0 {
		stats.SizeDistribution = SizeStats{
			MinSize:   minSize,
			MaxSize:   maxSize,
			AvgSize:   float64(totalSize) / float64(len(workItems)),
			TotalSize: totalSize,
		}
	}
	return stats
}
