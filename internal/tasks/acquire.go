package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/services"
	"github.com/desertthunder/spotx/internal/shared"
)

// HeaderSize is the length of the proprietary header that precedes the OGG stream in a decrypted file.
const HeaderSize = 160

// EncodingPreference lists the stream formats the pipeline accepts, best first.
var EncodingPreference = []models.FileFormat{
	models.OggVorbis320,
	models.OggVorbis160,
	models.OggVorbis96,
}

// Resolved is an item ready to be fetched.
type Resolved struct {
	Entry  models.QueueEntry
	Item   *models.AudioItem // the playable record; an alternative when the original was unavailable
	Format models.FileFormat
	File   models.FileID
	Cover  *models.Image // nil when the item has no artwork
}

// Title is the display name of the resolved item.
func (r *Resolved) Title() string {
	return r.Item.Name
}

// AcquirerOptions configures an [Acquirer].
type AcquirerOptions struct {
	RequireCover bool          // reject items without artwork
	KeyRetries   int           // audio key attempts
	KeyCooldown  time.Duration // wait before the second attempt; doubles after each failure
}

// Acquirer turns queue entries into decrypted audio payloads.
type Acquirer struct {
	session      services.Session
	requireCover bool
	keyBackoff   shared.Backoff
	logger       *log.Logger
}

// NewAcquirer creates an acquirer reading from session.
func NewAcquirer(session services.Session, opts AcquirerOptions, logger *log.Logger) *Acquirer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.KeyCooldown <= 0 {
		opts.KeyCooldown = 500 * time.Millisecond
	}
	return &Acquirer{
		session:      session,
		requireCover: opts.RequireCover,
		keyBackoff:   shared.Backoff{Retries: opts.KeyRetries, Cooldown: opts.KeyCooldown, Exponent: 2},
		logger:       logger,
	}
}

// Resolve reads the item's metadata, settles availability and picks the encoding and cover.
func (a *Acquirer) Resolve(ctx context.Context, entry models.QueueEntry) (*Resolved, error) {
	var item *models.AudioItem
	var err error

	switch entry.Kind {
	case models.KindTrack:
		item, err = a.resolveTrack(ctx, entry.ID)
	case models.KindEpisode:
		item, err = a.resolveEpisode(ctx, entry.ID)
	default:
		err = fmt.Errorf("%w: unknown item kind %d", shared.ErrUnavailable, entry.Kind)
	}
	if err != nil {
		return nil, err
	}

	format, file, ok := pickEncoding(item.Files)
	if !ok {
		return nil, fmt.Errorf("%w: %w: available formats %v",
			shared.ErrAcquisitionFailed, shared.ErrNoUsableEncoding, item.Files.Formats())
	}

	r := &Resolved{Entry: entry, Item: item, Format: format, File: file}
	if len(item.Covers) > 0 {
		cover := item.Covers[0]
		r.Cover = &cover
	} else if a.requireCover {
		return nil, fmt.Errorf("%w: %w", shared.ErrAcquisitionFailed, shared.ErrNoCoverArt)
	}
	return r, nil
}

func (a *Acquirer) resolveTrack(ctx context.Context, id models.ItemID) (*models.AudioItem, error) {
	track, err := a.session.Track(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: track %s: %v", shared.ErrUnavailable, id, err)
	}
	if track.Available {
		return models.TrackItem(track), nil
	}

	for _, altID := range track.Alternatives {
		alt, err := a.session.Track(ctx, altID)
		if err != nil {
			a.logger.Debug("alternative lookup failed", "item", id, "alternative", altID, "err", err)
			continue
		}
		if alt.Available {
			a.logger.Info("using alternative", "item", id, "alternative", altID)
			return models.TrackItem(alt), nil
		}
	}
	return nil, fmt.Errorf("%w: track %s and its %d alternatives", shared.ErrUnavailable, id, len(track.Alternatives))
}

func (a *Acquirer) resolveEpisode(ctx context.Context, id models.ItemID) (*models.AudioItem, error) {
	episode, err := a.session.Episode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: episode %s: %v", shared.ErrUnavailable, id, err)
	}
	if !episode.Available {
		a.logger.Warn("episode marked unavailable, trying anyway", "item", id)
	}
	return models.EpisodeItem(episode), nil
}

func pickEncoding(files models.Files) (models.FileFormat, models.FileID, bool) {
	for _, format := range EncodingPreference {
		if id, ok := files[format]; ok && id != "" {
			return format, id, true
		}
	}
	return "", "", false
}

// Fetch requests the audio key and the encrypted stream, then decrypts it and strips the header.
func (a *Acquirer) Fetch(ctx context.Context, r *Resolved) ([]byte, error) {
	var key []byte
	err := shared.Retry(ctx, a.keyBackoff, func(ctx context.Context) error {
		k, err := a.session.AudioKey(ctx, r.Item.ID, r.File)
		if err != nil {
			a.logger.Debug("audio key request failed", "item", r.Item.ID, "err", err)
			return err
		}
		key = k
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: audio key: %w", shared.ErrAcquisitionFailed, err)
	}

	stream, err := a.session.OpenFile(ctx, r.File)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream: %w", shared.ErrAcquisitionFailed, err)
	}
	defer stream.Close()

	encrypted, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: read stream: %w", shared.ErrAcquisitionFailed, err)
	}

	data, err := a.session.Decrypt(key, encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %w", shared.ErrAcquisitionFailed, err)
	}
	return StripHeader(data)
}

// StripHeader drops the fixed-size header of a decrypted stream.
func StripHeader(data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: payload of %d bytes is shorter than the %d byte header",
			shared.ErrAcquisitionFailed, len(data), HeaderSize)
	}
	return data[HeaderSize:], nil
}

// Cause names the failure class of a per-item error for logs and summaries.
func Cause(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrHelperFailed):
		return "helper_failed"
	case errors.Is(err, shared.ErrNoUsableEncoding):
		return "no_usable_encoding"
	case errors.Is(err, shared.ErrNoCoverArt):
		return "no_cover_art"
	case errors.Is(err, shared.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, shared.ErrAcquisitionFailed):
		return "acquisition_failed"
	default:
		return "delivery_failed"
	}
}
