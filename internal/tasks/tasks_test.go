package tasks

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	tu "github.com/desertthunder/spotx/internal/testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

type memoryRecorder struct {
	outcomes []ItemOutcome
	err      error
}

func (m *memoryRecorder) Record(_ context.Context, o ItemOutcome) error {
	m.outcomes = append(m.outcomes, o)
	return m.err
}

type failingSink struct{ calls int }

func (f *failingSink) Name() string        { return "failing" }
func (f *failingSink) RequiresCover() bool { return false }
func (f *failingSink) Deliver(context.Context, *DeliveryJob) error {
	f.calls++
	return errors.New("disk full")
}

type testEngine struct {
	*Engine
	sleeps []time.Duration
}

func newTestEngine(session *tu.MockSession, sink Sink, opts EngineOptions) *testEngine {
	logger := shared.NewLogger(io.Discard)
	acquirer := NewAcquirer(session, AcquirerOptions{KeyRetries: 1, KeyCooldown: time.Millisecond}, logger)
	te := &testEngine{Engine: NewEngine(acquirer, sink, opts, logger)}
	te.sleep = func(ctx context.Context, d time.Duration) error {
		te.sleeps = append(te.sleeps, d)
		return ctx.Err()
	}
	return te
}

func threeTracks(session *tu.MockSession) []models.QueueEntry {
	session.AddTrack("t1", "One", "Album", []string{"A"}, testHeader, []byte("one"))
	session.AddTrack("t2", "Two", "Album", []string{"A"}, testHeader, []byte("two"))
	session.AddTrack("t3", "Three", "Album", []string{"A"}, testHeader, []byte("three"))
	return []models.QueueEntry{trackEntry("t1"), trackEntry("t2"), trackEntry("t3")}
}

func TestEngine_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers in order and paces between items", func(t *testing.T) {
		out := t.TempDir()
		session := tu.NewMockSession()
		entries := threeTracks(session)
		engine := newTestEngine(session, NewDirectSink(nil), EngineOptions{OutputDir: out, Interval: 10 * time.Second})

		result, err := engine.Run(ctx, entries, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if result.Delivered != 3 || result.Failed != 0 || result.Queued != 3 {
			t.Errorf("unexpected counts: %+v", result)
		}
		if result.Bytes != int64(len("one")+len("two")+len("three")) {
			t.Errorf("unexpected bytes %d", result.Bytes)
		}
		if len(engine.sleeps) != 2 {
			t.Errorf("expected 2 pauses (none after the last item), got %d", len(engine.sleeps))
		}
		if got := tu.MustReadFile(t, filepath.Join(out, "A - Two.ogg")); got != "two" {
			t.Errorf("unexpected payload %q", got)
		}
		for i, id := range []models.ItemID{"t1", "t2", "t3"} {
			if result.Outcomes[i].Entry.ID != id {
				t.Errorf("outcome %d is %s, want %s", i, result.Outcomes[i].Entry.ID, id)
			}
		}
	})

	t.Run("isolates a failing item", func(t *testing.T) {
		out := t.TempDir()
		session := tu.NewMockSession()
		entries := threeTracks(session)
		delete(session.Tracks, "t2")
		engine := newTestEngine(session, NewDirectSink(nil), EngineOptions{OutputDir: out, Interval: time.Second})

		result, err := engine.Run(ctx, entries, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if result.Delivered != 2 || result.Failed != 1 {
			t.Fatalf("expected 2 delivered and 1 failed, got %+v", result)
		}
		if o := result.Outcomes[1]; o.Status != models.StatusFailed || !errors.Is(o.Err, shared.ErrUnavailable) {
			t.Errorf("unexpected outcome for t2: %+v", o)
		}
		if len(engine.sleeps) != 2 {
			t.Errorf("failures should still be paced, got %d pauses", len(engine.sleeps))
		}
		tu.AssertFileExists(t, filepath.Join(out, "A - One.ogg"))
		tu.AssertFileExists(t, filepath.Join(out, "A - Three.ogg"))
	})

	t.Run("second run skips delivered items", func(t *testing.T) {
		out := t.TempDir()
		session := tu.NewMockSession()
		entries := threeTracks(session)
		engine := newTestEngine(session, NewDirectSink(nil), EngineOptions{OutputDir: out})

		if _, err := engine.Run(ctx, entries, nil); err != nil {
			t.Fatal(err)
		}
		keyCalls, openCalls := session.KeyCalls, session.OpenCalls

		sink := &failingSink{}
		rerun := newTestEngine(session, sink, EngineOptions{OutputDir: out})
		result, err := rerun.Run(ctx, entries, nil)
		if err != nil {
			t.Fatal(err)
		}
		if result.Skipped != 3 || result.Delivered != 0 {
			t.Errorf("expected 3 skipped, got %+v", result)
		}
		if sink.calls != 0 || session.KeyCalls != keyCalls || session.OpenCalls != openCalls {
			t.Error("skipped items should not fetch or deliver")
		}
	})

	t.Run("prunes empty group directories after a failure", func(t *testing.T) {
		tests := []struct {
			name string
			sink Sink
			add  bool
		}{
			{"failed delivery", &failingSink{}, true},
			{"unavailable item", NewDirectSink(nil), false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				out := t.TempDir()
				session := tu.NewMockSession()
				if tt.add {
					session.AddTrack("t1", "One", "Album", []string{"A"}, testHeader, []byte("one"))
				}
				entries := []models.QueueEntry{{ID: "t1", Kind: models.KindTrack, Group: "albums/Album"}}

				engine := newTestEngine(session, tt.sink, EngineOptions{OutputDir: out, Grouped: true})
				result, _ := engine.Run(ctx, entries, nil)
				if result.Failed != 1 {
					t.Fatalf("expected failure, got %+v", result)
				}
				tu.AssertNoFile(t, filepath.Join(out, "albums", "Album"))
				tu.AssertNoFile(t, filepath.Join(out, "albums"))
				tu.AssertDirExists(t, out)
			})
		}
	})

	t.Run("keeps group directories that hold other items", func(t *testing.T) {
		out := t.TempDir()
		session := tu.NewMockSession()
		session.AddTrack("t1", "One", "Album", []string{"A"}, testHeader, []byte("one"))
		entries := []models.QueueEntry{
			{ID: "t1", Kind: models.KindTrack, Group: "albums/Album"},
			{ID: "t2", Kind: models.KindTrack, Group: "albums/Album"},
		}

		engine := newTestEngine(session, NewDirectSink(nil), EngineOptions{OutputDir: out, Grouped: true})
		result, _ := engine.Run(ctx, entries, nil)
		if result.Delivered != 1 || result.Failed != 1 {
			t.Fatalf("unexpected counts: %+v", result)
		}
		tu.AssertFileExists(t, filepath.Join(out, "albums", "Album", "A - One.ogg"))
	})

	t.Run("records every outcome", func(t *testing.T) {
		session := tu.NewMockSession()
		entries := threeTracks(session)
		delete(session.Tracks, "t3")
		recorder := &memoryRecorder{err: errors.New("db locked")}

		engine := newTestEngine(session, NewDirectSink(nil), EngineOptions{OutputDir: t.TempDir()})
		engine.SetRecorder(recorder)
		result, err := engine.Run(ctx, entries, nil)
		if err != nil {
			t.Fatalf("recorder errors must not abort the run: %v", err)
		}
		if len(recorder.outcomes) != 3 || result.Delivered != 2 {
			t.Errorf("expected 3 recorded outcomes, got %d", len(recorder.outcomes))
		}
		if recorder.outcomes[2].Reason() == "" {
			t.Error("failed outcome should carry a reason")
		}
	})

	t.Run("emits progress without blocking", func(t *testing.T) {
		session := tu.NewMockSession()
		entries := threeTracks(session)
		progress := make(chan ProgressUpdate, 64)

		engine := newTestEngine(session, NewDirectSink(nil), EngineOptions{OutputDir: t.TempDir(), Interval: time.Second})
		if _, err := engine.Run(ctx, entries, progress); err != nil {
			t.Fatal(err)
		}
		close(progress)

		phases := map[Phase]int{}
		for u := range progress {
			phases[u.Phase]++
		}
		if phases[Resolve] != 3 || phases[Deliver] != 3 || phases[Pace] != 2 {
			t.Errorf("unexpected phase counts: %v", phases)
		}

		blocked := make(chan ProgressUpdate)
		if _, err := engine.Run(ctx, entries, blocked); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		session := tu.NewMockSession()
		entries := threeTracks(session)
		cctx, cancel := context.WithCancel(ctx)

		engine := newTestEngine(session, NewDirectSink(nil), EngineOptions{OutputDir: t.TempDir(), Interval: time.Second})
		engine.sleep = func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}

		result, err := engine.Run(cctx, entries, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(result.Outcomes) != 1 {
			t.Errorf("expected one processed item, got %d", len(result.Outcomes))
		}
	})
}

func TestRecorders(t *testing.T) {
	a, b := &memoryRecorder{}, &memoryRecorder{err: errors.New("b failed")}
	err := Recorders{a, b}.Record(context.Background(), ItemOutcome{Entry: trackEntry("t1")})
	if err == nil || len(a.outcomes) != 1 || len(b.outcomes) != 1 {
		t.Errorf("expected both recorders called and b's error returned, got %v", err)
	}
}
