// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/services"
	"github.com/desertthunder/spotx/internal/shared"
)

// TestKey is the audio key [MockSession] hands out unless a per-file key is set.
var TestKey = []byte("0123456789abcdef")

// MockSession is a test double for [services.Session].
//
// Payloads are stored in plaintext and encrypted on OpenFile with the file's key, so the real
// decryption path is exercised.
type MockSession struct {
	mu sync.Mutex

	User      string
	Tracks    map[models.ItemID]*models.Track
	Episodes  map[models.ItemID]*models.Episode
	Albums    map[string]*models.Album
	Playlists map[string]*models.Playlist
	Shows     map[string]*models.Show
	Payloads  map[models.FileID][]byte

	// KeyFailures makes the first n AudioKey calls fail.
	KeyFailures int
	OpenErr     error

	KeyCalls  int
	OpenCalls int
}

// NewMockSession creates an empty session.
func NewMockSession() *MockSession {
	return &MockSession{
		User:      "mock",
		Tracks:    map[models.ItemID]*models.Track{},
		Episodes:  map[models.ItemID]*models.Episode{},
		Albums:    map[string]*models.Album{},
		Playlists: map[string]*models.Playlist{},
		Shows:     map[string]*models.Show{},
		Payloads:  map[models.FileID][]byte{},
	}
}

var _ services.Session = (*MockSession)(nil)

func (m *MockSession) Username() string { return m.User }

func (m *MockSession) Track(ctx context.Context, id models.ItemID) (*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.Tracks[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: track %s", shared.ErrNotFound, id)
}

func (m *MockSession) Episode(ctx context.Context, id models.ItemID) (*models.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.Episodes[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: episode %s", shared.ErrNotFound, id)
}

func (m *MockSession) Album(ctx context.Context, id string) (*models.Album, error) {
	if a, ok := m.Albums[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: album %s", shared.ErrNotFound, id)
}

func (m *MockSession) Playlist(ctx context.Context, id string) (*models.Playlist, error) {
	if p, ok := m.Playlists[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
}

func (m *MockSession) Show(ctx context.Context, id string) (*models.Show, error) {
	if s, ok := m.Shows[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: show %s", shared.ErrNotFound, id)
}

func (m *MockSession) AudioKey(ctx context.Context, item models.ItemID, file models.FileID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.KeyCalls++
	if m.KeyFailures > 0 {
		m.KeyFailures--
		return nil, fmt.Errorf("%w: audio key unavailable", shared.ErrAPIRequest)
	}
	return TestKey, nil
}

func (m *MockSession) OpenFile(ctx context.Context, file models.FileID) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls++
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	plain, ok := m.Payloads[file]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", shared.ErrNotFound, file)
	}
	encrypted, err := services.DecryptStream(TestKey, plain)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(encrypted)), nil
}

// Opened returns OpenCalls under the session lock, for tests that serve the session over HTTP.
func (m *MockSession) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.OpenCalls
}

func (m *MockSession) Decrypt(key, data []byte) ([]byte, error) {
	return services.DecryptStream(key, data)
}

// AddTrack registers an available track with one OGG file whose decrypted stream is header followed
// by audio, and returns it for further tweaking.
func (m *MockSession) AddTrack(id, name, album string, artists []string, header, audio []byte) *models.Track {
	fileID := models.FileID("file-" + id)
	track := &models.Track{
		ID:        models.ItemID(id),
		Name:      name,
		Album:     models.AlbumRef{ID: "album-" + id, Name: album, Covers: []models.Image{{FileID: "ab67" + id}}},
		Files:     models.Files{models.OggVorbis160: fileID},
		Available: true,
	}
	for _, a := range artists {
		track.Artists = append(track.Artists, models.Artist{ID: "artist-" + a, Name: a})
	}
	m.Tracks[track.ID] = track
	m.Payloads[fileID] = append(append([]byte{}, header...), audio...)
	return track
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// WriteScript writes an executable shell script into dir and returns its path.
// Tests using it are skipped on Windows.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell helpers are not supported on windows")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("Failed to write script %s: %v", path, err)
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
