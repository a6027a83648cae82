package links

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// Sentinel is the line that ends input.
const Sentinel = "done"

// DefaultMaxErrors is how many consecutive read failures abandon a source.
const DefaultMaxErrors = 10

var linkPattern = regexp.MustCompile(`(playlist|album|track|episode|show|artist|user|genre|local|concert)[/:]([a-zA-Z0-9]+)`)

// ParseResult classifies one input line.
type ParseResult int

const (
	Parsed ParseResult = iota
	Skipped
	Unsupported
)

func (r ParseResult) String() string {
	switch r {
	case Parsed:
		return "parsed"
	case Skipped:
		return "skipped"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// ParseLine extracts the first supported link on line.
//
// When only unsupported kinds match, the first of them is returned with [Unsupported].
func ParseLine(line string) (models.Link, ParseResult) {
	matches := linkPattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return models.Link{}, Skipped
	}

	for _, m := range matches {
		kind := models.LinkKind(m[1])
		if kind.Supported() {
			return models.Link{Kind: kind, ID: m[2]}, Parsed
		}
	}
	first := matches[0]
	return models.Link{Kind: models.LinkKind(first[1]), ID: first[2]}, Unsupported
}

// Stats counts what a [Reader] saw.
type Stats struct {
	Lines       int
	Links       int
	Skipped     int
	Unsupported int
	ReadErrors  int
}

// Reader pulls links from a line-oriented source.
type Reader struct {
	src       *bufio.Reader
	logger    *log.Logger
	maxErrors int
	stats     Stats
}

// NewReader wraps r. The logger defaults to one writing to stderr.
func NewReader(r io.Reader, logger *log.Logger) *Reader {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reader{
		src:       bufio.NewReader(r),
		logger:    logger,
		maxErrors: DefaultMaxErrors,
	}
}

// SetMaxErrors changes the consecutive read failure limit.
func (r *Reader) SetMaxErrors(n int) {
	if n > 0 {
		r.maxErrors = n
	}
}

// Stats returns the counters accumulated so far.
func (r *Reader) Stats() Stats { return r.stats }

// Each calls fn for every supported link in input order until the sentinel, EOF,
// a cancelled context or too many consecutive read errors.
//
// An error from fn stops reading and is returned.
func (r *Reader) Each(ctx context.Context, fn func(models.Link) error) error {
	consecutive := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := r.src.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			r.stats.ReadErrors++
			consecutive++
			r.logger.Warn("failed to read input line", "err", err)
			if consecutive >= r.maxErrors {
				return fmt.Errorf("%w: %d consecutive read errors: %w", shared.ErrInvalidInput, consecutive, err)
			}
			continue
		}
		consecutive = 0
		eof := errors.Is(err, io.EOF)

		if eof && line == "" {
			return nil
		}

		r.stats.Lines++
		trimmed := strings.TrimSpace(line)
		if trimmed == Sentinel {
			r.logger.Debug("end of input")
			return nil
		}

		link, result := ParseLine(trimmed)
		switch result {
		case Parsed:
			r.stats.Links++
			if err := fn(link); err != nil {
				return err
			}
		case Unsupported:
			r.stats.Unsupported++
			r.logger.Warn("unsupported link kind", "kind", link.Kind, "id", link.ID)
		case Skipped:
			r.stats.Skipped++
			r.logger.Debug("no link on line", "err", shared.ErrParseSkip, "line", trimmed)
		}

		if eof {
			return nil
		}
	}
}

// ReadAll collects every supported link.
func (r *Reader) ReadAll(ctx context.Context) ([]models.Link, error) {
	var out []models.Link
	err := r.Each(ctx, func(l models.Link) error {
		out = append(out, l)
		return nil
	})
	return out, err
}
