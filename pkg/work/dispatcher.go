package work

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/crxprep/pkg/logger"
)

// ExecutionResult represents the result of processing a work item
type ExecutionResult struct {
	WorkItemID string        `json:"work_item_id"`
	Path       string        `json:"path"`
	Success    bool          `json:"success"`
	Skipped    bool          `json:"skipped,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Output     string        `json:"output,omitempty"`
}

// ExecutionSummary provides a summary of the execution
type ExecutionSummary struct {
	TotalItems    int               `json:"total_items"`
	Successful    int               `json:"successful"`
	Skipped       int               `json:"skipped"`
	Failed        int               `json:"failed"`
	Cancelled     int               `json:"cancelled"`
	TotalDuration time.Duration     `json:"total_duration"`
	Workers       int               `json:"workers"`
	Results       []ExecutionResult `json:"results"`
}

// Failures returns the failed results in path order.
func (s *ExecutionSummary) Failures() []ExecutionResult {
	var out []ExecutionResult
	for _, r := range s.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

// WorkItemProcessor defines the interface for processing work items.
// A processor reports per-item failure in the result; it never aborts the run.
type WorkItemProcessor interface {
	ProcessWorkItem(ctx context.Context, item *WorkItem, dryRun bool) ExecutionResult
}

// DispatcherConfig configures the dispatcher
type DispatcherConfig struct {
	MaxWorkers       int
	DryRun           bool
	ProgressCallback func(result ExecutionResult)
	// Timeout bounds the whole run when positive.
	Timeout time.Duration
	Logger  *logger.Logger
}

// Dispatcher handles parallel execution of work manifests
type Dispatcher struct {
	config    DispatcherConfig
	processor WorkItemProcessor
	log       *logger.Logger
}

// NewDispatcher creates a new work dispatcher
func NewDispatcher(config DispatcherConfig, processor WorkItemProcessor) *Dispatcher {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}

	return &Dispatcher{
		config:    config,
		processor: processor,
		log:       log,
	}
}

// ExecuteManifest runs every work item through the processor. Items not
// reached before ctx is done are counted as cancelled and ctx's error is
// returned alongside the partial summary.
func (d *Dispatcher) ExecuteManifest(ctx context.Context, manifest *WorkManifest) (*ExecutionSummary, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	workers := d.config.MaxWorkers
	if n := len(manifest.WorkItems); n > 0 && n < workers {
		workers = n
	}
	d.log.Debug(fmt.Sprintf("Starting execution of %d work items with %d workers", len(manifest.WorkItems), workers))

	startTime := time.Now()

	workChan := make(chan *WorkItem, len(manifest.WorkItems))
	resultChan := make(chan ExecutionResult, len(manifest.WorkItems))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go d.worker(ctx, workChan, resultChan, &wg)
	}

	go func() {
		defer close(workChan)
		for i := range manifest.WorkItems {
			select {
			case workChan <- &manifest.WorkItems[i]:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	summary := &ExecutionSummary{Workers: workers}
	for result := range resultChan {
		summary.Results = append(summary.Results, result)

		if d.config.ProgressCallback != nil {
			d.config.ProgressCallback(result)
		}

		switch {
		case !result.Success:
			summary.Failed++
		case result.Skipped:
			summary.Skipped++
		default:
			summary.Successful++
		}
	}

	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Path < summary.Results[j].Path
	})
	summary.TotalItems = len(summary.Results)
	summary.Cancelled = len(manifest.WorkItems) - summary.TotalItems
	summary.TotalDuration = time.Since(startTime)

	d.log.Debug(fmt.Sprintf("Execution completed: %d successful, %d skipped, %d failed in %v",
		summary.Successful, summary.Skipped, summary.Failed, summary.TotalDuration))

	if summary.Cancelled > 0 {
		return summary, ctx.Err()
	}
	return summary, nil
}

// worker processes work items from the work channel
func (d *Dispatcher) worker(ctx context.Context, workChan <-chan *WorkItem, resultChan chan<- ExecutionResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case item, ok := <-workChan:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}

			startTime := time.Now()
			result := d.processor.ProcessWorkItem(ctx, item, d.config.DryRun)
			result.WorkItemID = item.ID
			if result.Path == "" {
				result.Path = item.RelPath
			}
			result.Duration = time.Since(startTime)

			// resultChan is buffered to the item count, so this never blocks.
			resultChan <- result

		case <-ctx.Done():
			return
		}
	}
}
