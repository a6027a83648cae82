package models

import (
	"fmt"
	"time"
)

// DeliveryStatus is the recorded outcome of one queue entry.
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusSkipped   DeliveryStatus = "skipped"
	StatusFailed    DeliveryStatus = "failed"
)

// Valid reports whether s is one of the known outcomes.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusDelivered, StatusSkipped, StatusFailed:
		return true
	default:
		return false
	}
}

// Run is one invocation of the download pipeline.
type Run struct {
	id         string
	sequence   int
	mode       string
	outputDir  string
	queued     int
	delivered  int
	skipped    int
	failed     int
	startedAt  time.Time
	finishedAt *time.Time
	createdAt  time.Time
	updatedAt  time.Time
}

// NewRun creates a [Run] that started now.
func NewRun(sequence int, mode, outputDir string) *Run {
	now := time.Now()
	return &Run{
		sequence:  sequence,
		mode:      mode,
		outputDir: outputDir,
		startedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *Run) ID() string             { return r.id }
func (r *Run) CreatedAt() time.Time   { return r.createdAt }
func (r *Run) UpdatedAt() time.Time   { return r.updatedAt }
func (r *Run) Sequence() int          { return r.sequence }
func (r *Run) Mode() string           { return r.mode }
func (r *Run) OutputDir() string      { return r.outputDir }
func (r *Run) Queued() int            { return r.queued }
func (r *Run) Delivered() int         { return r.delivered }
func (r *Run) Skipped() int           { return r.skipped }
func (r *Run) Failed() int            { return r.failed }
func (r *Run) StartedAt() time.Time   { return r.startedAt }
func (r *Run) FinishedAt() *time.Time { return r.finishedAt }

func (r *Run) SetID(id string)            { r.id = id }
func (r *Run) SetSequence(seq int)        { r.sequence = seq }
func (r *Run) SetUpdatedAt(t time.Time)   { r.updatedAt = t }
func (r *Run) SetCreatedAt(t time.Time)   { r.createdAt = t }
func (r *Run) SetStartedAt(t time.Time)   { r.startedAt = t }
func (r *Run) SetFinishedAt(t *time.Time) { r.finishedAt = t }
func (r *Run) SetQueued(n int)            { r.queued = n }

// SetCounts overwrites the outcome counters.
func (r *Run) SetCounts(delivered, skipped, failed int) {
	r.delivered, r.skipped, r.failed = delivered, skipped, failed
}

// Finish stamps the run as completed with the given counts.
func (r *Run) Finish(delivered, skipped, failed int) {
	now := time.Now()
	r.SetCounts(delivered, skipped, failed)
	r.finishedAt = &now
	r.updatedAt = now
}

// Duration is the wall time of a finished run, or the time elapsed so far.
func (r *Run) Duration() time.Duration {
	if r.finishedAt == nil {
		return time.Since(r.startedAt)
	}
	return r.finishedAt.Sub(r.startedAt)
}

// Validate checks the run has a mode and output directory.
func (r *Run) Validate() error {
	if r.mode == "" {
		return fmt.Errorf("run mode is required")
	}
	if r.outputDir == "" {
		return fmt.Errorf("run output directory is required")
	}
	if r.queued < 0 || r.delivered < 0 || r.skipped < 0 || r.failed < 0 {
		return fmt.Errorf("run counts must not be negative")
	}
	return nil
}

// Delivery is the ledger row for one item outcome within a run.
type Delivery struct {
	id          string
	sequence    int
	runID       string
	itemID      ItemID
	kind        ItemKind
	group       string
	title       string
	destination string
	format      FileFormat
	status      DeliveryStatus
	reason      string
	bytes       int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewDelivery creates a [Delivery] for the entry, stamped now.
func NewDelivery(runID string, entry QueueEntry, status DeliveryStatus) *Delivery {
	now := time.Now()
	return &Delivery{
		runID:     runID,
		itemID:    entry.ID,
		kind:      entry.Kind,
		group:     entry.Group,
		status:    status,
		createdAt: now,
		updatedAt: now,
	}
}

func (d *Delivery) ID() string             { return d.id }
func (d *Delivery) CreatedAt() time.Time   { return d.createdAt }
func (d *Delivery) UpdatedAt() time.Time   { return d.updatedAt }
func (d *Delivery) Sequence() int          { return d.sequence }
func (d *Delivery) RunID() string          { return d.runID }
func (d *Delivery) ItemID() ItemID         { return d.itemID }
func (d *Delivery) Kind() ItemKind         { return d.kind }
func (d *Delivery) Group() string          { return d.group }
func (d *Delivery) Title() string          { return d.title }
func (d *Delivery) Destination() string    { return d.destination }
func (d *Delivery) Format() FileFormat     { return d.format }
func (d *Delivery) Status() DeliveryStatus { return d.status }
func (d *Delivery) Reason() string         { return d.reason }
func (d *Delivery) Bytes() int64           { return d.bytes }

// Entry rebuilds the queue entry this delivery was recorded for.
func (d *Delivery) Entry() QueueEntry {
	return QueueEntry{ID: d.itemID, Kind: d.kind, Group: d.group}
}

func (d *Delivery) SetID(id string)            { d.id = id }
func (d *Delivery) SetSequence(seq int)        { d.sequence = seq }
func (d *Delivery) SetCreatedAt(t time.Time)   { d.createdAt = t }
func (d *Delivery) SetUpdatedAt(t time.Time)   { d.updatedAt = t }
func (d *Delivery) SetTitle(title string)      { d.title = title }
func (d *Delivery) SetDestination(path string) { d.destination = path }
func (d *Delivery) SetFormat(f FileFormat)     { d.format = f }
func (d *Delivery) SetReason(reason string)    { d.reason = reason }
func (d *Delivery) SetBytes(n int64)           { d.bytes = n }

// Validate checks the row references a run and an item with a known outcome.
func (d *Delivery) Validate() error {
	if d.runID == "" {
		return fmt.Errorf("delivery run id is required")
	}
	if d.itemID == "" {
		return fmt.Errorf("delivery item id is required")
	}
	if !d.status.Valid() {
		return fmt.Errorf("invalid delivery status %q", d.status)
	}
	if d.status == StatusFailed && d.reason == "" {
		return fmt.Errorf("failed delivery requires a reason")
	}
	return nil
}
