// package formatter renders run results and the delivery ledger as tables, CSV and JSON manifests
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
)

// ManifestDir is the hidden directory under the output directory that holds run manifests.
const ManifestDir = ".spotx"

// ManifestItem is one outcome in a [RunManifest].
type ManifestItem struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Group  string `json:"group,omitempty"`
	Title  string `json:"title,omitempty"`
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Bytes  int64  `json:"bytes,omitempty"`
}

// RunManifest summarizes a finished run on disk next to the files it delivered.
type RunManifest struct {
	RunID      string         `json:"run_id"`
	Sequence   int            `json:"sequence"`
	Mode       string         `json:"mode"`
	OutputDir  string         `json:"output_dir"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   string         `json:"duration"`
	Queued     int            `json:"queued"`
	Delivered  int            `json:"delivered"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Bytes      int64          `json:"bytes"`
	Items      []ManifestItem `json:"items"`
}

// NewRunManifest builds the manifest of run from the engine result.
func NewRunManifest(run *models.Run, result *tasks.RunResult) *RunManifest {
	m := &RunManifest{
		RunID:      run.ID(),
		Sequence:   run.Sequence(),
		Mode:       run.Mode(),
		OutputDir:  run.OutputDir(),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Duration:   result.Duration().Round(time.Millisecond).String(),
		Queued:     result.Queued,
		Delivered:  result.Delivered,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		Bytes:      result.Bytes,
		Items:      make([]ManifestItem, 0, len(result.Outcomes)),
	}
	for _, o := range result.Outcomes {
		m.Items = append(m.Items, ManifestItem{
			ID:     string(o.Entry.ID),
			Kind:   o.Entry.Kind.String(),
			Group:  o.Entry.Group,
			Title:  o.Title,
			Path:   o.Path,
			Format: string(o.Format),
			Status: string(o.Status),
			Reason: o.Reason(),
			Bytes:  o.Bytes,
		})
	}
	return m
}

// ManifestPath is where the manifest of runID is written under outputDir.
func ManifestPath(outputDir, runID string) string {
	return filepath.Join(outputDir, ManifestDir, "run-"+runID+".json")
}

// WriteRunManifest writes m as indented JSON under outputDir and returns the file path.
func WriteRunManifest(outputDir string, m *RunManifest) (string, error) {
	path := ManifestPath(outputDir, m.RunID)
	if err := shared.WriteJSONFile(path, m, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run manifest: %w", err)
	}
	return path, nil
}

// DeliveriesToCSV converts ledger rows to CSV with columns: Run, Item, Kind, Group, Title, Status, Reason, Format, Bytes, Recorded
func DeliveriesToCSV(deliveries []*models.Delivery) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Run", "Item", "Kind", "Group", "Title", "Status", "Reason", "Format", "Bytes", "Recorded"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, d := range deliveries {
		record := []string{
			d.RunID(),
			string(d.ItemID()),
			d.Kind().String(),
			d.Group(),
			d.Title(),
			string(d.Status()),
			d.Reason(),
			string(d.Format()),
			strconv.FormatInt(d.Bytes(), 10),
			d.CreatedAt().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// DeliveryJSON is the JSON shape of a ledger row.
type DeliveryJSON struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Item        string    `json:"item"`
	Kind        string    `json:"kind"`
	Group       string    `json:"group,omitempty"`
	Title       string    `json:"title,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Format      string    `json:"format,omitempty"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Bytes       int64     `json:"bytes"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// DeliveriesToJSON converts ledger rows to a pretty JSON array.
func DeliveriesToJSON(deliveries []*models.Delivery) ([]byte, error) {
	out := make([]DeliveryJSON, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, DeliveryJSON{
			ID:          d.ID(),
			RunID:       d.RunID(),
			Item:        string(d.ItemID()),
			Kind:        d.Kind().String(),
			Group:       d.Group(),
			Title:       d.Title(),
			Destination: d.Destination(),
			Format:      string(d.Format()),
			Status:      string(d.Status()),
			Reason:      d.Reason(),
			Bytes:       d.Bytes(),
			RecordedAt:  d.CreatedAt(),
		})
	}
	return shared.MarshalJSON(out, true)
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}
