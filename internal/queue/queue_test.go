package queue

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

type fakeCatalog struct {
	albums    map[string]*models.Album
	playlists map[string]*models.Playlist
	shows     map[string]*models.Show
	calls     int
}

func (f *fakeCatalog) Album(_ context.Context, id string) (*models.Album, error) {
	f.calls++
	if a, ok := f.albums[id]; ok {
		return a, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeCatalog) Playlist(_ context.Context, id string) (*models.Playlist, error) {
	f.calls++
	if p, ok := f.playlists[id]; ok {
		return p, nil
	}
	return nil, shared.ErrNotFound
}

func (f *fakeCatalog) Show(_ context.Context, id string) (*models.Show, error) {
	f.calls++
	if s, ok := f.shows[id]; ok {
		return s, nil
	}
	return nil, shared.ErrNotFound
}

func ids(entries []models.QueueEntry) []models.ItemID {
	out := make([]models.ItemID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func equalIDs(a []models.ItemID, b ...models.ItemID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueue(t *testing.T) {
	t.Run("dedup keeps first position and kind", func(t *testing.T) {
		q := New()
		if !q.Insert(models.QueueEntry{ID: "a", Kind: models.KindTrack, Group: "albums/X"}) {
			t.Fatal("first insert should add")
		}
		q.Insert(models.QueueEntry{ID: "b", Kind: models.KindTrack})
		if q.Insert(models.QueueEntry{ID: "a", Kind: models.KindEpisode, Group: "shows/Y"}) {
			t.Error("duplicate insert should be a no-op")
		}

		entries := q.Entries()
		if !equalIDs(ids(entries), "a", "b") {
			t.Fatalf("unexpected order: %v", ids(entries))
		}
		if entries[0].Kind != models.KindTrack || entries[0].Group != "albums/X" {
			t.Errorf("first write should win, got %+v", entries[0])
		}
		if q.Len() != 2 || !q.Contains("b") || q.Contains("c") {
			t.Errorf("unexpected Len/Contains: %d", q.Len())
		}
	})

	t.Run("Entries returns a copy", func(t *testing.T) {
		q := New()
		q.Insert(models.QueueEntry{ID: "a"})
		entries := q.Entries()
		entries[0].ID = "z"
		if q.Entries()[0].ID != "a" {
			t.Error("mutating Entries result changed the queue")
		}
	})
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{
		albums: map[string]*models.Album{
			"alb": {ID: "alb", Name: "Kind of Blue", Tracks: []models.ItemID{"t1", "t2", "t3"}},
		},
		playlists: map[string]*models.Playlist{
			"pl": {ID: "pl", Name: "Road: Trip", Tracks: []models.ItemID{"t3", "t4"}},
		},
		shows: map[string]*models.Show{
			"sh": {ID: "sh", Name: "Daily", Episodes: []models.ItemID{"e3", "e2", "e1"}},
		},
	}
}

func TestExpander(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	t.Run("show episodes are reversed", func(t *testing.T) {
		q := New()
		x := NewExpander(q, newCatalog(), false, logger)
		added, err := x.Expand(ctx, models.Link{Kind: models.LinkShow, ID: "sh"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if added != 3 {
			t.Errorf("expected 3 added, got %d", added)
		}
		if !equalIDs(ids(q.Entries()), "e1", "e2", "e3") {
			t.Errorf("expected oldest first, got %v", ids(q.Entries()))
		}
		for _, e := range q.Entries() {
			if e.Kind != models.KindEpisode {
				t.Errorf("show entries should be episodes, got %v", e.Kind)
			}
		}
	})

	t.Run("show reversal does not mutate the record", func(t *testing.T) {
		catalog := newCatalog()
		x := NewExpander(New(), catalog, false, logger)
		_, _ = x.Expand(ctx, models.Link{Kind: models.LinkShow, ID: "sh"})
		if catalog.shows["sh"].Episodes[0] != "e3" {
			t.Error("show record was modified")
		}
	})

	t.Run("album then playlist dedups overlap", func(t *testing.T) {
		q := New()
		x := NewExpander(q, newCatalog(), false, logger)
		failed := x.ExpandAll(ctx, []models.Link{
			{Kind: models.LinkAlbum, ID: "alb"},
			{Kind: models.LinkPlaylist, ID: "pl"},
			{Kind: models.LinkTrack, ID: "t1"},
		})
		if failed != 0 {
			t.Fatalf("expected no failures, got %d", failed)
		}
		if !equalIDs(ids(q.Entries()), "t1", "t2", "t3", "t4") {
			t.Errorf("unexpected queue: %v", ids(q.Entries()))
		}
	})

	t.Run("flat layout has empty groups", func(t *testing.T) {
		q := New()
		x := NewExpander(q, newCatalog(), false, logger)
		x.ExpandAll(ctx, []models.Link{{Kind: models.LinkAlbum, ID: "alb"}, {Kind: models.LinkEpisode, ID: "ep"}})
		for _, e := range q.Entries() {
			if e.Group != "" {
				t.Errorf("expected empty group, got %q", e.Group)
			}
		}
	})

	t.Run("grouped layout labels", func(t *testing.T) {
		q := New()
		x := NewExpander(q, newCatalog(), true, logger)
		x.ExpandAll(ctx, []models.Link{
			{Kind: models.LinkPlaylist, ID: "pl"},
			{Kind: models.LinkAlbum, ID: "alb"},
			{Kind: models.LinkShow, ID: "sh"},
			{Kind: models.LinkTrack, ID: "solo"},
			{Kind: models.LinkEpisode, ID: "ep"},
		})

		want := map[models.ItemID]string{
			"t3":   "playlists/Road- Trip",
			"t4":   "playlists/Road- Trip",
			"t1":   "albums/Kind of Blue",
			"e1":   "shows/Daily",
			"solo": "tracks",
			"ep":   "episodes",
		}
		got := map[models.ItemID]string{}
		for _, e := range q.Entries() {
			got[e.ID] = e.Group
		}
		for id, group := range want {
			if got[id] != group {
				t.Errorf("%s: expected group %q, got %q", id, group, got[id])
			}
		}
	})

	t.Run("container failure is isolated", func(t *testing.T) {
		q := New()
		x := NewExpander(q, newCatalog(), false, logger)

		_, err := x.Expand(ctx, models.Link{Kind: models.LinkPlaylist, ID: "missing"})
		if !errors.Is(err, shared.ErrContainerExpansionFailed) {
			t.Errorf("expected ErrContainerExpansionFailed, got %v", err)
		}

		failed := x.ExpandAll(ctx, []models.Link{
			{Kind: models.LinkAlbum, ID: "missing"},
			{Kind: models.LinkTrack, ID: "t9"},
		})
		if failed != 1 {
			t.Errorf("expected 1 failure, got %d", failed)
		}
		if !equalIDs(ids(q.Entries()), "t9") {
			t.Errorf("other links should still expand, got %v", ids(q.Entries()))
		}
	})

	t.Run("unsupported kind", func(t *testing.T) {
		x := NewExpander(New(), newCatalog(), false, logger)
		_, err := x.Expand(ctx, models.Link{Kind: "artist", ID: "a"})
		if !errors.Is(err, shared.ErrUnsupportedLink) {
			t.Errorf("expected ErrUnsupportedLink, got %v", err)
		}
	})
}
