package tasks

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/desertthunder/spotx/internal/models"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current item number, 1-based
	Total   int    // Items in the queue
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Pipeline phase enumeration
type Phase int

const (
	Resolve Phase = iota
	Fetch
	Deliver
	Skip
	Fail
	Pace
)

func (p Phase) String() string {
	switch p {
	case Resolve:
		return "resolve"
	case Fetch:
		return "fetch"
	case Deliver:
		return "deliver"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	case Pace:
		return "pace"
	default:
		return ""
	}
}

func resolveUpdate(step, total int, entry models.QueueEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving %s %s...", step, total, entry.Kind, entry.ID),
	}
}

func fetchUpdate(step, total int, item *models.AudioItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %s...", step, total, item.Name),
		Data:    item,
	}
}

func deliveredUpdate(step, total int, outcome ItemOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Deliver,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, outcome.Title, humanize.Bytes(uint64(outcome.Bytes))),
		Data:    outcome,
	}
}

func skippedUpdate(step, total int, outcome ItemOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Skip,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] • %s already delivered", step, total, outcome.Title),
		Data:    outcome,
	}
}

func failedUpdate(step, total int, outcome ItemOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fail,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, outcome.label(), outcome.Err),
		Data:    outcome,
	}
}

func paceUpdate(step, total int, interval time.Duration) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Pace,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Waiting %s before the next item...", interval),
	}
}
