package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// FileExtension is appended to every delivered file name.
const FileExtension = ".ogg"

// stderrTailSize bounds the helper output kept for error reports.
const stderrTailSize = 2048

// FileName builds the on-disk name of an item: "<contributors> - <title>.ogg", sanitized.
func FileName(item *models.AudioItem) string {
	name := item.Name
	if len(item.Contributors) > 0 {
		name = strings.Join(item.Contributors, ", ") + " - " + item.Name
	}
	return shared.SanitizeFileName(name) + FileExtension
}

// Destination joins the item directory and the item's file name.
func Destination(dir string, item *models.AudioItem) string {
	return filepath.Join(dir, FileName(item))
}

// Exists reports whether a regular file is already present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// DeliveryJob is one payload ready to be written.
type DeliveryJob struct {
	Resolved *Resolved
	Dir      string // item directory
	Path     string // destination file
	Payload  []byte
}

// Sink delivers a payload to its destination.
type Sink interface {
	Name() string
	RequiresCover() bool
	Deliver(ctx context.Context, job *DeliveryJob) error
}

// DirectSink writes payloads to disk without tagging.
type DirectSink struct {
	logger *log.Logger
}

// NewDirectSink creates a [DirectSink].
func NewDirectSink(logger *log.Logger) *DirectSink {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &DirectSink{logger: logger}
}

func (s *DirectSink) Name() string        { return shared.ModeDirect }
func (s *DirectSink) RequiresCover() bool { return false }

// Deliver writes the payload to a temporary file in the item directory, syncs it and renames it into place.
func (s *DirectSink) Deliver(ctx context.Context, job *DeliveryJob) error {
	tmp, err := os.CreateTemp(job.Dir, ".spotx-*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(job.Payload); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, job.Path); err != nil {
		cleanup()
		return fmt.Errorf("failed to move payload into place: %w", err)
	}

	s.logger.Debug("wrote payload", "path", job.Path, "bytes", len(job.Payload))
	return nil
}

// HelperError reports a tagging helper that exited unsuccessfully.
type HelperError struct {
	Path     string
	ExitCode int    // -1 when the process did not exit normally
	Stderr   string // tail of the helper's stderr
}

func (e *HelperError) Error() string {
	msg := fmt.Sprintf("%v: %s exited with status %d", shared.ErrHelperFailed, e.Path, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *HelperError) Unwrap() error { return shared.ErrHelperFailed }

// HelperSink pipes payloads into an external tagging helper.
//
// The helper is invoked as:
//
//	helper <id> <title> <group> <destination> <cover> <contributor>...
//
// and reads the payload from stdin. It is responsible for writing the destination file.
type HelperSink struct {
	path   string
	covers *CoverStager // nil when covers are passed by URL
	logger *log.Logger
}

// NewHelperSink creates a sink running the executable at path. covers may be nil.
func NewHelperSink(path string, covers *CoverStager, logger *log.Logger) *HelperSink {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &HelperSink{path: path, covers: covers, logger: logger}
}

func (s *HelperSink) Name() string        { return shared.ModeHelper }
func (s *HelperSink) RequiresCover() bool { return true }

// Args builds the helper argument list for a job.
func (s *HelperSink) Args(job *DeliveryJob, cover string) []string {
	item := job.Resolved.Item
	args := []string{string(item.ID), item.Name, item.Group, job.Path, cover}
	return append(args, item.Contributors...)
}

// Deliver runs the helper, writing the payload to its stdin while it runs. Stdin is closed once the
// payload is written and the process is then always waited. A staged cover is removed afterwards.
func (s *HelperSink) Deliver(ctx context.Context, job *DeliveryJob) error {
	cover, staged := s.coverReference(ctx, job)
	if staged {
		defer s.removeCover(cover)
	}

	cmd := exec.CommandContext(ctx, s.path, s.Args(job, cover)...)
	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %v", shared.ErrHelperFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", shared.ErrHelperFailed, s.path, err)
	}

	// The writer is joined before Wait, which closes the pipe.
	var g errgroup.Group
	g.Go(func() error {
		_, err := stdin.Write(job.Payload)
		if cerr := stdin.Close(); err == nil {
			err = cerr
		}
		return err
	})
	writeErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		var exitErr *exec.ExitError
		code := -1
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &HelperError{Path: s.path, ExitCode: code, Stderr: stderr.String()}
	}
	if writeErr != nil {
		return fmt.Errorf("%w: writing payload: %v", shared.ErrHelperFailed, writeErr)
	}

	s.logger.Debug("helper finished", "item", job.Resolved.Item.ID, "path", job.Path)
	return nil
}

// coverReference returns the cover argument for the helper and whether it names a staged file.
func (s *HelperSink) coverReference(ctx context.Context, job *DeliveryJob) (string, bool) {
	cover := job.Resolved.Cover
	if cover == nil {
		return "", false
	}
	if s.covers == nil {
		return cover.Link(), false
	}

	staged, err := s.covers.Stage(ctx, cover.Link(), job.Dir)
	if err != nil {
		s.logger.Warn("cover staging failed, passing URL", "item", job.Resolved.Item.ID, "err", err)
		return cover.Link(), false
	}
	return staged, true
}

func (s *HelperSink) removeCover(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove staged cover", "path", path, "err", err)
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
