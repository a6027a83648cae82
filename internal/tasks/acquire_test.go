package tasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	tu "github.com/desertthunder/spotx/internal/testing"
)

var testHeader = bytes.Repeat([]byte{0xAA}, HeaderSize)

func newTestAcquirer(session *tu.MockSession, requireCover bool) *Acquirer {
	return NewAcquirer(session, AcquirerOptions{
		RequireCover: requireCover,
		KeyRetries:   3,
		KeyCooldown:  time.Millisecond,
	}, shared.NewLogger(io.Discard))
}

func trackEntry(id string) models.QueueEntry {
	return models.QueueEntry{ID: models.ItemID(id), Kind: models.KindTrack}
}

func TestAcquirer_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("available track", func(t *testing.T) {
		session := tu.NewMockSession()
		session.AddTrack("t1", "Song", "Album", []string{"A", "B"}, testHeader, []byte("ogg"))

		r, err := newTestAcquirer(session, true).Resolve(ctx, trackEntry("t1"))
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if r.Item.Group != "Album" || len(r.Item.Contributors) != 2 {
			t.Errorf("unexpected item: %+v", r.Item)
		}
		if r.Format != models.OggVorbis160 || r.File != "file-t1" {
			t.Errorf("expected OGG 160 file-t1, got %s %s", r.Format, r.File)
		}
		if r.Cover == nil || r.Cover.FileID != "ab67t1" {
			t.Errorf("expected album cover first, got %+v", r.Cover)
		}
	})

	t.Run("alternative fallback", func(t *testing.T) {
		session := tu.NewMockSession()
		orig := session.AddTrack("t1", "Song", "Album", []string{"A"}, testHeader, nil)
		orig.Available = false
		orig.Alternatives = []models.ItemID{"missing", "t2", "t3"}
		dead := session.AddTrack("t2", "Song", "Album", []string{"A"}, testHeader, nil)
		dead.Available = false
		session.AddTrack("t3", "Song (Remaster)", "Album", []string{"A"}, testHeader, nil)
		session.AddTrack("t4", "Song (Live)", "Album", []string{"A"}, testHeader, nil)

		r, err := newTestAcquirer(session, true).Resolve(ctx, trackEntry("t1"))
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if r.Item.ID != "t3" {
			t.Errorf("expected first available alternative t3, got %s", r.Item.ID)
		}
		if r.Entry.ID != "t1" {
			t.Errorf("entry should keep the queued id, got %s", r.Entry.ID)
		}
	})

	t.Run("no available alternative", func(t *testing.T) {
		session := tu.NewMockSession()
		orig := session.AddTrack("t1", "Song", "Album", nil, testHeader, nil)
		orig.Available = false

		_, err := newTestAcquirer(session, true).Resolve(ctx, trackEntry("t1"))
		if !errors.Is(err, shared.ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("missing metadata", func(t *testing.T) {
		_, err := newTestAcquirer(tu.NewMockSession(), true).Resolve(ctx, trackEntry("nope"))
		if !errors.Is(err, shared.ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("unavailable episode continues", func(t *testing.T) {
		session := tu.NewMockSession()
		session.Episodes["e1"] = &models.Episode{
			ID:    "e1",
			Name:  "Pilot",
			Show:  models.ShowRef{Name: "The Show", Publisher: "Pub", Covers: []models.Image{{FileID: "show"}}},
			Files: models.Files{models.OggVorbis96: "f-e1"},
		}

		r, err := newTestAcquirer(session, true).Resolve(ctx, models.QueueEntry{ID: "e1", Kind: models.KindEpisode})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if r.Item.Group != "The Show" || len(r.Item.Contributors) != 1 || r.Item.Contributors[0] != "Pub" {
			t.Errorf("unexpected episode item: %+v", r.Item)
		}
		if r.Cover == nil || r.Cover.FileID != "show" {
			t.Errorf("expected show cover, got %+v", r.Cover)
		}
	})

	t.Run("cover requirement", func(t *testing.T) {
		session := tu.NewMockSession()
		track := session.AddTrack("t1", "Song", "Album", nil, testHeader, nil)
		track.Album.Covers = nil

		if _, err := newTestAcquirer(session, true).Resolve(ctx, trackEntry("t1")); !errors.Is(err, shared.ErrNoCoverArt) {
			t.Errorf("expected ErrNoCoverArt, got %v", err)
		}
		r, err := newTestAcquirer(session, false).Resolve(ctx, trackEntry("t1"))
		if err != nil || r.Cover != nil {
			t.Errorf("direct mode should tolerate missing cover, got %+v, %v", r, err)
		}
	})
}

func TestPickEncoding(t *testing.T) {
	tests := []struct {
		name   string
		files  models.Files
		want   models.FileFormat
		wantOK bool
	}{
		{"prefers 320", models.Files{models.OggVorbis96: "a", models.OggVorbis320: "b", models.OggVorbis160: "c"}, models.OggVorbis320, true},
		{"160 over 96", models.Files{models.OggVorbis96: "a", models.OggVorbis160: "c"}, models.OggVorbis160, true},
		{"96 alone", models.Files{models.OggVorbis96: "a", models.MP3_320: "m"}, models.OggVorbis96, true},
		{"mp3 only", models.Files{models.MP3_320: "m", models.AAC48: "x"}, "", false},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok := pickEncoding(tt.files)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("pickEncoding() = %s, %v; want %s, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}

	t.Run("resolve reports no usable encoding", func(t *testing.T) {
		session := tu.NewMockSession()
		track := session.AddTrack("t1", "Song", "Album", nil, testHeader, nil)
		track.Files = models.Files{models.MP3_160: "m"}

		_, err := newTestAcquirer(session, false).Resolve(context.Background(), trackEntry("t1"))
		if !errors.Is(err, shared.ErrNoUsableEncoding) || !errors.Is(err, shared.ErrAcquisitionFailed) {
			t.Errorf("expected ErrNoUsableEncoding, got %v", err)
		}
	})
}

func TestAcquirer_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("strips header", func(t *testing.T) {
		session := tu.NewMockSession()
		session.AddTrack("t1", "Song", "Album", nil, testHeader, []byte("OggS-audio"))
		a := newTestAcquirer(session, false)

		r, err := a.Resolve(ctx, trackEntry("t1"))
		if err != nil {
			t.Fatal(err)
		}
		payload, err := a.Fetch(ctx, r)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(payload) != "OggS-audio" {
			t.Errorf("expected header stripped, got %q", payload)
		}
	})

	t.Run("retries audio key", func(t *testing.T) {
		session := tu.NewMockSession()
		session.AddTrack("t1", "Song", "Album", nil, testHeader, []byte("x"))
		session.KeyFailures = 2
		a := newTestAcquirer(session, false)

		r, _ := a.Resolve(ctx, trackEntry("t1"))
		if _, err := a.Fetch(ctx, r); err != nil {
			t.Fatalf("Fetch() should succeed on third attempt: %v", err)
		}
		if session.KeyCalls != 3 {
			t.Errorf("expected 3 key calls, got %d", session.KeyCalls)
		}
	})

	t.Run("gives up on audio key", func(t *testing.T) {
		session := tu.NewMockSession()
		session.AddTrack("t1", "Song", "Album", nil, testHeader, []byte("x"))
		session.KeyFailures = 10
		a := newTestAcquirer(session, false)

		r, _ := a.Resolve(ctx, trackEntry("t1"))
		if _, err := a.Fetch(ctx, r); !errors.Is(err, shared.ErrAcquisitionFailed) {
			t.Errorf("expected ErrAcquisitionFailed, got %v", err)
		}
		if session.OpenCalls != 0 {
			t.Error("stream should not be opened without a key")
		}
	})

	t.Run("short payload", func(t *testing.T) {
		session := tu.NewMockSession()
		session.AddTrack("t1", "Song", "Album", nil, testHeader[:10], nil)
		a := newTestAcquirer(session, false)

		r, _ := a.Resolve(ctx, trackEntry("t1"))
		if _, err := a.Fetch(ctx, r); !errors.Is(err, shared.ErrAcquisitionFailed) {
			t.Errorf("expected ErrAcquisitionFailed, got %v", err)
		}
	})
}

func TestStripHeader(t *testing.T) {
	exact, err := StripHeader(testHeader)
	if err != nil || len(exact) != 0 {
		t.Errorf("header-only payload should strip to empty, got %d bytes, %v", len(exact), err)
	}
	if _, err := StripHeader(testHeader[:HeaderSize-1]); err == nil {
		t.Error("expected error for short payload")
	}
}

func TestCause(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{shared.ErrUnavailable, "unavailable"},
		{errors.Join(shared.ErrAcquisitionFailed, shared.ErrNoUsableEncoding), "no_usable_encoding"},
		{errors.Join(shared.ErrAcquisitionFailed, shared.ErrNoCoverArt), "no_cover_art"},
		{shared.ErrAcquisitionFailed, "acquisition_failed"},
		{&HelperError{ExitCode: 1}, "helper_failed"},
		{errors.New("disk full"), "delivery_failed"},
	}
	for _, tt := range tests {
		if got := Cause(tt.err); got != tt.want {
			t.Errorf("Cause(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
