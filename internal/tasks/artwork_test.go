package tasks

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/spotx/internal/shared"
	tu "github.com/desertthunder/spotx/internal/testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestResizeCover(t *testing.T) {
	tests := []struct {
		name          string
		w, h, maxSize int
		wantW, wantH  int
	}{
		{"landscape", 2000, 1000, 1000, 1000, 500},
		{"portrait", 300, 600, 100, 50, 100},
		{"within bounds", 200, 100, 1000, 200, 100},
		{"unbounded", 200, 100, 0, 200, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ResizeCover(encodePNG(t, tt.w, tt.h), tt.maxSize)
			if err != nil {
				t.Fatalf("ResizeCover() error = %v", err)
			}
			img, err := jpeg.Decode(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("output is not JPEG: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}

	if _, err := ResizeCover([]byte("not an image"), 100); err == nil {
		t.Error("expected decode error")
	}
}

func TestCoverStager(t *testing.T) {
	cfg := shared.ArtworkConfig{Retries: 3, Cooldown: time.Millisecond, Exponent: 2, Timeout: time.Second}
	logger := shared.NewLogger(io.Discard)
	ctx := context.Background()

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int32
		body := encodePNG(t, 10, 10)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write(body)
		}))
		defer srv.Close()

		dir := t.TempDir()
		path, err := NewCoverStager(cfg, 100, logger).Stage(ctx, srv.URL, dir)
		if err != nil {
			t.Fatalf("Stage() error = %v", err)
		}
		if path != filepath.Join(dir, CoverFileName) {
			t.Errorf("unexpected path %s", path)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 requests, got %d", calls.Load())
		}
	})

	t.Run("replaces a previously staged cover", func(t *testing.T) {
		body := encodePNG(t, 10, 10)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(body)
		}))
		defer srv.Close()

		dir := t.TempDir()
		existing := filepath.Join(dir, CoverFileName)
		writeFile(t, existing, "stale")

		path, err := NewCoverStager(cfg, 100, logger).Stage(ctx, srv.URL, dir)
		if err != nil || path != existing {
			t.Fatalf("Stage() = %s, %v", path, err)
		}
		if _, err := jpeg.Decode(bytes.NewReader([]byte(tu.MustReadFile(t, path)))); err != nil {
			t.Errorf("stale cover was not replaced: %v", err)
		}
		if leftovers, _ := filepath.Glob(filepath.Join(dir, ".cover-*")); len(leftovers) != 0 {
			t.Errorf("temp files left behind: %v", leftovers)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		dir := t.TempDir()
		stager := NewCoverStager(cfg, 100, logger)
		stager.SetHTTPClient(&http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("offline"))})

		if _, err := stager.Stage(ctx, "http://img.invalid/c.jpg", dir); err == nil {
			t.Error("expected error")
		}
		tu.AssertNoFile(t, filepath.Join(dir, CoverFileName))
	})

	t.Run("unreadable body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
		stager := NewCoverStager(shared.ArtworkConfig{Retries: 1}, 100, logger)
		stager.SetHTTPClient(&http.Client{Transport: tu.NewMockRoundTripper(resp, nil)})

		if _, err := stager.Stage(ctx, "http://img.invalid/c.jpg", t.TempDir()); err == nil {
			t.Error("expected read error")
		}
	})
}
