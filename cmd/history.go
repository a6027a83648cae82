package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotx/internal/formatter"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/repositories"
	"github.com/desertthunder/spotx/internal/shared"
)

type runJSON struct {
	ID         string     `json:"id"`
	Sequence   int        `json:"sequence"`
	Mode       string     `json:"mode"`
	OutputDir  string     `json:"output_dir"`
	Queued     int        `json:"queued"`
	Delivered  int        `json:"delivered"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// History prints the delivery ledger, or its runs with --runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	if cmd.Bool("json") && cmd.Bool("csv") {
		return fmt.Errorf("%w: --json and --csv are mutually exclusive", shared.ErrInvalidArgument)
	}

	db, err := shared.OpenLedger(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open delivery ledger: %w", err)
	}
	defer db.Close()

	limit := cmd.Int("limit")
	if cmd.Bool("runs") {
		runs, err := repositories.NewRunRepository(db).List(map[string]any{"limit": limit})
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(runsToJSON(runs), true)
		}
		return r.writePlain("%s\n", formatter.RenderRuns(runs))
	}

	var deliveries []*models.Delivery
	if cmd.Bool("failed") {
		deliveries, err = repositories.NewDeliveryRepository(db).LatestFailed()
		if limit > 0 && len(deliveries) > limit {
			deliveries = deliveries[len(deliveries)-limit:]
		}
	} else {
		deliveries, err = repositories.NewDeliveryRepository(db).List(map[string]any{"limit": limit})
	}
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("json"):
		data, err := formatter.DeliveriesToJSON(deliveries)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	case cmd.Bool("csv"):
		data, err := formatter.DeliveriesToCSV(deliveries)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	default:
		return r.writePlain("%s\n", formatter.RenderHistory(deliveries))
	}
}

func runsToJSON(runs []*models.Run) []runJSON {
	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON{
			ID:         run.ID(),
			Sequence:   run.Sequence(),
			Mode:       run.Mode(),
			OutputDir:  run.OutputDir(),
			Queued:     run.Queued(),
			Delivered:  run.Delivered(),
			Skipped:    run.Skipped(),
			Failed:     run.Failed(),
			StartedAt:  run.StartedAt(),
			FinishedAt: run.FinishedAt(),
		})
	}
	return out
}
