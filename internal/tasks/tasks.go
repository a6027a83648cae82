package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// ItemOutcome is the result of processing one queue entry.
type ItemOutcome struct {
	Entry  models.QueueEntry
	Title  string
	Path   string
	Format models.FileFormat
	Status models.DeliveryStatus
	Bytes  int64
	Err    error
}

// Reason describes a failure for the ledger; empty unless the item failed.
func (o ItemOutcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func (o ItemOutcome) label() string {
	if o.Title != "" {
		return o.Title
	}
	return fmt.Sprintf("%s %s", o.Entry.Kind, o.Entry.ID)
}

// RunResult contains the counts and per-item outcomes of a run.
type RunResult struct {
	Queued     int
	Delivered  int
	Skipped    int
	Failed     int
	Bytes      int64
	Outcomes   []ItemOutcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *RunResult) add(o ItemOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case models.StatusDelivered:
		r.Delivered++
		r.Bytes += o.Bytes
	case models.StatusSkipped:
		r.Skipped++
	case models.StatusFailed:
		r.Failed++
	}
}

// Recorder persists item outcomes as they happen.
type Recorder interface {
	Record(ctx context.Context, outcome ItemOutcome) error
}

// Recorders fans an outcome out to several recorders and joins their errors.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, outcome ItemOutcome) error {
	var errs []error
	for _, r := range rs {
		if err := r.Record(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EngineOptions configures an [Engine].
type EngineOptions struct {
	OutputDir string
	Grouped   bool          // items live in per-container directories
	Interval  time.Duration // pause between items
}

// Engine runs the per-item pipeline over a queue, one item at a time.
type Engine struct {
	acquirer *Acquirer
	sink     Sink
	recorder Recorder
	opts     EngineOptions
	logger   *log.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an engine that acquires items with acquirer and hands them to sink.
func NewEngine(acquirer *Acquirer, sink Sink, opts EngineOptions, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		acquirer: acquirer,
		sink:     sink,
		opts:     opts,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// SetRecorder attaches a recorder that receives every outcome.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run processes entries in order. A failing item is logged, recorded and skipped; only cancellation of
// ctx ends the run early, in which case the partial result is returned with ctx's error.
func (e *Engine) Run(ctx context.Context, entries []models.QueueEntry, progress chan<- ProgressUpdate) (*RunResult, error) {
	total := len(entries)
	result := &RunResult{
		Queued:    total,
		Outcomes:  make([]ItemOutcome, 0, total),
		StartedAt: time.Now(),
	}
	defer func() { result.FinishedAt = time.Now() }()

	e.logger.Info("starting run", "items", total, "sink", e.sink.Name(), "output", e.opts.OutputDir)

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		step := i + 1
		outcome := e.processItem(ctx, step, total, entry, progress)
		result.add(outcome)
		e.record(ctx, outcome)

		if step == total || e.opts.Interval <= 0 {
			continue
		}
		e.sendProgress(progress, paceUpdate(step, total, e.opts.Interval))
		if err := e.sleep(ctx, e.opts.Interval); err != nil {
			return result, err
		}
	}

	e.logger.Info("run finished",
		"delivered", result.Delivered,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"size", humanize.Bytes(uint64(result.Bytes)),
	)
	return result, nil
}

func (e *Engine) processItem(ctx context.Context, step, total int, entry models.QueueEntry, progress chan<- ProgressUpdate) ItemOutcome {
	logger := shared.WithLogger(e.logger, "item", entry.ID, "kind", entry.Kind.String())
	outcome := ItemOutcome{Entry: entry}
	dir := filepath.Join(e.opts.OutputDir, entry.Group)

	fail := func(err error) ItemOutcome {
		e.pruneEmptyDirs(dir, logger)
		outcome.Status = models.StatusFailed
		outcome.Err = err
		logger.Error("item failed", "cause", Cause(err), "err", err)
		e.sendProgress(progress, failedUpdate(step, total, outcome))
		return outcome
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create item directory: %w", err))
	}

	e.sendProgress(progress, resolveUpdate(step, total, entry))
	resolved, err := e.acquirer.Resolve(ctx, entry)
	if err != nil {
		return fail(err)
	}

	path := Destination(dir, resolved.Item)
	outcome.Title = resolved.Title()
	outcome.Path = path
	outcome.Format = resolved.Format

	if Exists(path) {
		outcome.Status = models.StatusSkipped
		logger.Info("already delivered", "path", path)
		e.sendProgress(progress, skippedUpdate(step, total, outcome))
		return outcome
	}

	e.sendProgress(progress, fetchUpdate(step, total, resolved.Item))
	payload, err := e.acquirer.Fetch(ctx, resolved)
	if err != nil {
		return fail(err)
	}

	job := &DeliveryJob{Resolved: resolved, Dir: dir, Path: path, Payload: payload}
	if err := e.sink.Deliver(ctx, job); err != nil {
		return fail(err)
	}

	outcome.Status = models.StatusDelivered
	outcome.Bytes = int64(len(payload))
	logger.Info("delivered", "path", path, "format", resolved.Format, "size", humanize.Bytes(uint64(len(payload))))
	e.sendProgress(progress, deliveredUpdate(step, total, outcome))
	return outcome
}

// pruneEmptyDirs removes dir and its parents below the output directory while they are empty,
// so a failed item leaves no container directories behind in the grouped layout.
func (e *Engine) pruneEmptyDirs(dir string, logger *log.Logger) {
	if !e.opts.Grouped {
		return
	}
	root := filepath.Clean(e.opts.OutputDir)
	for dir = filepath.Clean(dir); dir != root; dir = filepath.Dir(dir) {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			logger.Debug("failed to remove empty directory", "dir", dir, "err", err)
			return
		}
	}
}

func (e *Engine) record(ctx context.Context, outcome ItemOutcome) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, outcome); err != nil {
		e.logger.Warn("failed to record outcome", "item", outcome.Entry.ID, "err", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
