package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/tasks"
)

// Ledger implements tasks.Recorder on top of the run and delivery repositories.
//
// A ledger records exactly one run: call [Ledger.Begin] before the engine starts and [Ledger.Finish]
// with its result.
type Ledger struct {
	runs       *RunRepository
	deliveries *DeliveryRepository
	run        *models.Run
}

// NewLedger creates a ledger writing to db.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{runs: NewRunRepository(db), deliveries: NewDeliveryRepository(db)}
}

// Begin inserts the run row.
func (l *Ledger) Begin(mode, outputDir string, queued int) (*models.Run, error) {
	run := models.NewRun(0, mode, outputDir)
	run.SetQueued(queued)
	if err := l.runs.Create(run); err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}
	l.run = run
	return run, nil
}

// Run returns the run being recorded, nil before [Ledger.Begin].
func (l *Ledger) Run() *models.Run {
	return l.run
}

// Record appends one delivery row for the outcome.
func (l *Ledger) Record(_ context.Context, outcome tasks.ItemOutcome) error {
	if l.run == nil {
		return fmt.Errorf("ledger has no active run")
	}

	d := models.NewDelivery(l.run.ID(), outcome.Entry, outcome.Status)
	d.SetTitle(outcome.Title)
	d.SetDestination(outcome.Path)
	d.SetBytes(outcome.Bytes)
	if outcome.Status == models.StatusDelivered {
		d.SetFormat(outcome.Format)
	}
	d.SetReason(outcome.Reason())

	return l.deliveries.Create(d)
}

// Finish stores the final counts of the run.
func (l *Ledger) Finish(result *tasks.RunResult) error {
	if l.run == nil {
		return fmt.Errorf("ledger has no active run")
	}
	l.run.SetQueued(result.Queued)
	l.run.Finish(result.Delivered, result.Skipped, result.Failed)
	return l.runs.Update(l.run)
}
