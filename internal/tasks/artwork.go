package tasks

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/image/draw"

	"github.com/desertthunder/spotx/internal/shared"
)

// CoverFileName is the name of a staged cover in an item directory.
const CoverFileName = "cover.jpg"

// CoverStager downloads cover art and stores it next to delivered files as a bounded JPEG.
type CoverStager struct {
	client  *http.Client
	backoff shared.Backoff
	maxSize int
	logger  *log.Logger
}

// NewCoverStager creates a stager from the artwork settings. maxSize bounds both dimensions; 0 keeps
// the original size.
func NewCoverStager(cfg shared.ArtworkConfig, maxSize int, logger *log.Logger) *CoverStager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CoverStager{
		client:  &http.Client{Timeout: cfg.Timeout},
		backoff: cfg.Backoff(),
		maxSize: maxSize,
		logger:  logger,
	}
}

// SetHTTPClient replaces the download client.
func (s *CoverStager) SetHTTPClient(c *http.Client) { s.client = c }

// Stage downloads url into dir/cover.jpg and returns the written path. A cover already staged in dir
// is replaced; the caller removes the file once it is done with it.
func (s *CoverStager) Stage(ctx context.Context, url, dir string) (string, error) {
	path := filepath.Join(dir, CoverFileName)

	var data []byte
	err := shared.Retry(ctx, s.backoff, func(ctx context.Context) error {
		b, err := s.download(ctx, url)
		if err != nil {
			s.logger.Debug("cover download failed", "url", url, "err", err)
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}

	encoded, err := ResizeCover(data, s.maxSize)
	if err != nil {
		return "", fmt.Errorf("failed to convert cover: %w", err)
	}
	if err := writeCover(path, encoded); err != nil {
		return "", fmt.Errorf("failed to write cover: %w", err)
	}

	s.logger.Debug("staged cover", "path", path, "size", humanize.Bytes(uint64(len(encoded))))
	return path, nil
}

// writeCover replaces path through a temp file in the same directory.
func writeCover(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cover-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *CoverStager) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: cover request returned %s", shared.ErrAPIRequest, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// ResizeCover decodes an image, scales it to fit within maxSize x maxSize keeping the aspect ratio
// and encodes it as JPEG. Images already within bounds are only re-encoded.
func ResizeCover(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxSize > 0 && (width > maxSize || height > maxSize) {
		if width >= height {
			height = max(1, height*maxSize/width)
			width = maxSize
		} else {
			width = max(1, width*maxSize/height)
			height = maxSize
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
