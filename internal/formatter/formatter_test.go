package formatter

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
	th "github.com/desertthunder/spotx/internal/testing"
)

func sampleResult() *tasks.RunResult {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &tasks.RunResult{
		Queued:     2,
		Delivered:  1,
		Failed:     1,
		Bytes:      2048,
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Outcomes: []tasks.ItemOutcome{
			{
				Entry:  models.QueueEntry{ID: "t1", Kind: models.KindTrack, Group: "albums/Blue"},
				Title:  "Song One",
				Path:   "/music/albums/Blue/A - Song One.ogg",
				Format: models.OggVorbis320,
				Status: models.StatusDelivered,
				Bytes:  2048,
			},
			{
				Entry:  models.QueueEntry{ID: "e9", Kind: models.KindEpisode},
				Status: models.StatusFailed,
				Err:    shared.ErrUnavailable,
			},
		},
	}
}

func sampleDeliveries() []*models.Delivery {
	ok := models.NewDelivery("run-1", models.QueueEntry{ID: "t1", Kind: models.KindTrack}, models.StatusDelivered)
	ok.SetTitle("Song, \"One\"")
	ok.SetBytes(1500)
	ok.SetSequence(2)

	bad := models.NewDelivery("run-1", models.QueueEntry{ID: "e9", Kind: models.KindEpisode}, models.StatusFailed)
	bad.SetReason("unavailable")
	bad.SetSequence(1)
	return []*models.Delivery{ok, bad}
}

func TestRunManifest(t *testing.T) {
	run := models.NewRun(7, shared.ModeDirect, "/music")
	run.SetID("abc")

	m := NewRunManifest(run, sampleResult())
	if m.RunID != "abc" || m.Sequence != 7 || m.Duration != "1m30s" {
		t.Errorf("unexpected manifest header: %+v", m)
	}
	if len(m.Items) != 2 || m.Items[1].Reason == "" || m.Items[1].Kind != "episode" {
		t.Errorf("unexpected manifest items: %+v", m.Items)
	}

	dir := t.TempDir()
	path, err := WriteRunManifest(dir, m)
	if err != nil {
		t.Fatalf("WriteRunManifest failed: %v", err)
	}
	if path != filepath.Join(dir, ".spotx", "run-abc.json") {
		t.Errorf("unexpected manifest path %s", path)
	}

	var decoded RunManifest
	if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &decoded); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	if decoded.Delivered != 1 || decoded.Items[0].Format != "OGG_VORBIS_320" {
		t.Errorf("unexpected decoded manifest: %+v", decoded)
	}
}

func TestDeliveriesToCSV(t *testing.T) {
	data, err := DeliveriesToCSV(sampleDeliveries())
	if err != nil {
		t.Fatalf("DeliveriesToCSV failed: %v", err)
	}
	output := string(data)

	if !strings.HasPrefix(output, "Run,Item,Kind,Group,Title,Status,Reason,Format,Bytes,Recorded\n") {
		t.Errorf("CSV missing headers, got: %s", output)
	}
	if !strings.Contains(output, `"Song, ""One"""`) {
		t.Errorf("CSV should quote titles with commas and quotes, got: %s", output)
	}
	if !strings.Contains(output, "e9,episode,,,failed,unavailable") {
		t.Errorf("CSV missing failed row, got: %s", output)
	}
}

func TestDeliveriesToJSON(t *testing.T) {
	data, err := DeliveriesToJSON(sampleDeliveries())
	if err != nil {
		t.Fatalf("DeliveriesToJSON failed: %v", err)
	}
	var rows []DeliveryJSON
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(rows) != 2 || rows[1].Status != "failed" || rows[0].Kind != "track" {
		t.Errorf("unexpected rows: %+v", rows)
	}

	empty, _ := DeliveriesToJSON(nil)
	if strings.TrimSpace(string(empty)) != "[]" {
		t.Errorf("expected empty array, got %s", empty)
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(sampleResult())
	for _, want := range []string{"Delivered", "2.0 kB", "1m30s", "e9", "unavailable"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	clean := sampleResult()
	clean.Failed = 0
	if strings.Contains(RenderSummary(clean), "Cause") {
		t.Error("summary without failures should not render the failure table")
	}
}

func TestRenderHistory(t *testing.T) {
	if got := RenderHistory(nil); got != "No deliveries recorded." {
		t.Errorf("unexpected empty history: %q", got)
	}
	out := RenderHistory(sampleDeliveries())
	for _, want := range []string{"t1", "delivered", "1.5 kB", "e9", "unavailable"} {
		if !strings.Contains(out, want) {
			t.Errorf("history missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRuns(t *testing.T) {
	if got := RenderRuns(nil); got != "No runs recorded." {
		t.Errorf("unexpected empty runs: %q", got)
	}
	open := models.NewRun(2, shared.ModeHelper, "/music")
	done := models.NewRun(1, shared.ModeDirect, "/music")
	done.Finish(3, 0, 1)

	out := RenderRuns([]*models.Run{open, done})
	if !strings.Contains(out, "running") || !strings.Contains(out, "helper") {
		t.Errorf("unexpected runs table:\n%s", out)
	}
}
