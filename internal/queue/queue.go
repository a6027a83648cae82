// Package queue holds the resolution queue: an insertion-ordered, deduplicated set of
// leaf items, and the [Expander] that fills it from parsed links.
package queue

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// Queue maps ItemID to its entry, preserving first-insertion order.
//
// It is not safe for concurrent use; it is filled during expansion and only read afterwards.
type Queue struct {
	order []models.ItemID
	items map[models.ItemID]models.QueueEntry
}

// New creates an empty [Queue].
func New() *Queue {
	return &Queue{items: make(map[models.ItemID]models.QueueEntry)}
}

// Insert adds the entry unless its ID is already present and reports whether it was added.
//
// An existing entry keeps its position, kind and group.
func (q *Queue) Insert(e models.QueueEntry) bool {
	if _, ok := q.items[e.ID]; ok {
		return false
	}
	q.items[e.ID] = e
	q.order = append(q.order, e.ID)
	return true
}

// Contains reports whether id is queued.
func (q *Queue) Contains(id models.ItemID) bool {
	_, ok := q.items[id]
	return ok
}

// Len returns the number of distinct items.
func (q *Queue) Len() int { return len(q.order) }

// Entries returns a copy of the entries in insertion order.
func (q *Queue) Entries() []models.QueueEntry {
	out := make([]models.QueueEntry, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.items[id])
	}
	return out
}

// Catalog is the subset of the session the expander reads container listings from.
type Catalog interface {
	Album(ctx context.Context, id string) (*models.Album, error)
	Playlist(ctx context.Context, id string) (*models.Playlist, error)
	Show(ctx context.Context, id string) (*models.Show, error)
}

// Expander resolves links into leaf entries on a [Queue].
type Expander struct {
	queue   *Queue
	catalog Catalog
	grouped bool
	logger  *log.Logger
}

// NewExpander creates an expander. With grouped set, entries carry a destination group label.
func NewExpander(q *Queue, catalog Catalog, grouped bool, logger *log.Logger) *Expander {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Expander{queue: q, catalog: catalog, grouped: grouped, logger: logger}
}

// Expand inserts the leaf items behind link and returns how many were new.
//
// Container fetch failures wrap [shared.ErrContainerExpansionFailed] and leave the queue untouched.
func (x *Expander) Expand(ctx context.Context, link models.Link) (int, error) {
	switch link.Kind {
	case models.LinkTrack:
		return x.insert([]models.ItemID{models.ItemID(link.ID)}, models.KindTrack, x.label("tracks", "")), nil
	case models.LinkEpisode:
		return x.insert([]models.ItemID{models.ItemID(link.ID)}, models.KindEpisode, x.label("episodes", "")), nil
	case models.LinkAlbum:
		album, err := x.catalog.Album(ctx, link.ID)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", shared.ErrContainerExpansionFailed, link, err)
		}
		return x.insert(album.Tracks, models.KindTrack, x.label("albums", album.Name)), nil
	case models.LinkPlaylist:
		playlist, err := x.catalog.Playlist(ctx, link.ID)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", shared.ErrContainerExpansionFailed, link, err)
		}
		return x.insert(playlist.Tracks, models.KindTrack, x.label("playlists", playlist.Name)), nil
	case models.LinkShow:
		show, err := x.catalog.Show(ctx, link.ID)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", shared.ErrContainerExpansionFailed, link, err)
		}
		// listed newest first; queue oldest first
		episodes := slices.Clone(show.Episodes)
		slices.Reverse(episodes)
		return x.insert(episodes, models.KindEpisode, x.label("shows", show.Name)), nil
	default:
		return 0, fmt.Errorf("%w: %s", shared.ErrUnsupportedLink, link.Kind)
	}
}

// ExpandAll expands each link in order, logging and skipping failures.
//
// It returns the number of links that could not be expanded.
func (x *Expander) ExpandAll(ctx context.Context, links []models.Link) int {
	failed := 0
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			x.logger.Warn("expansion cancelled", "err", err)
			return failed
		}
		added, err := x.Expand(ctx, link)
		if err != nil {
			failed++
			x.logger.Error("failed to expand link", "link", link, "err", err)
			continue
		}
		x.logger.Debug("expanded link", "link", link, "added", added, "queued", x.queue.Len())
	}
	return failed
}

func (x *Expander) insert(ids []models.ItemID, kind models.ItemKind, group string) int {
	added := 0
	for _, id := range ids {
		if x.queue.Insert(models.QueueEntry{ID: id, Kind: kind, Group: group}) {
			added++
		}
	}
	return added
}

// label builds the group label for the grouped layout; the flat layout has none.
func (x *Expander) label(bucket, name string) string {
	if !x.grouped {
		return ""
	}
	if name == "" {
		return bucket
	}
	return bucket + "/" + shared.SanitizeFileName(name)
}
