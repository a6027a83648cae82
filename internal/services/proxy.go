// Session proxy implementation of [Session]
//
// The proxy owns the streaming-service protocol; this client speaks a small JSON/HTTP
// surface to it and decrypts stream files locally.
package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

const defaultProxyURL string = "http://127.0.0.1:8080"

type connectRequest struct {
	Username    string `json:"username,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	AuthData    []byte `json:"auth_data,omitempty"`
}

type connectResponse struct {
	Username string `json:"username"`
	AuthData []byte `json:"auth_data"`
	Token    string `json:"token"`
}

type audioKeyResponse struct {
	Key string `json:"key"`
}

// ProxySession implements [Session] against the session proxy.
type ProxySession struct {
	baseURL    string
	token      string
	username   string
	reusable   *Credentials
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ConnectOptions tune [Connect].
type ConnectOptions struct {
	// RequestsPerSecond bounds proxy requests; zero disables limiting.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Connect establishes a session through the proxy at baseURL.
//
// Every failure wraps [shared.ErrConnectionFailed].
func Connect(ctx context.Context, baseURL string, creds *Credentials, opts ConnectOptions) (*ProxySession, error) {
	if baseURL == "" {
		baseURL = defaultProxyURL
	}
	if creds == nil || (creds.AccessToken == "" && len(creds.AuthData) == 0) {
		return nil, fmt.Errorf("%w: %w", shared.ErrConnectionFailed, shared.ErrMissingCredentials)
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	s := &ProxySession{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    limiter,
	}

	body, err := json.Marshal(connectRequest{
		Username:    creds.Username,
		AccessToken: creds.AccessToken,
		AuthData:    creds.AuthData,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrConnectionFailed, err)
	}

	var resp connectResponse
	if err := s.doJSON(ctx, http.MethodPost, "/session/connect", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrConnectionFailed, err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: proxy returned no session token", shared.ErrConnectionFailed)
	}

	s.token = resp.Token
	s.username = resp.Username
	if resp.Username != "" && len(resp.AuthData) > 0 {
		s.reusable = &Credentials{Username: resp.Username, AuthData: resp.AuthData}
	}
	return s, nil
}

// Username returns the connected account.
func (s *ProxySession) Username() string { return s.username }

// ReusableCredentials returns the credentials to cache for the next run, or nil.
func (s *ProxySession) ReusableCredentials() *Credentials { return s.reusable }

// Track calls GET /metadata/track/{id}.
func (s *ProxySession) Track(ctx context.Context, id models.ItemID) (*models.Track, error) {
	var track models.Track
	if err := s.metadata(ctx, "track", string(id), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Episode calls GET /metadata/episode/{id}.
func (s *ProxySession) Episode(ctx context.Context, id models.ItemID) (*models.Episode, error) {
	var episode models.Episode
	if err := s.metadata(ctx, "episode", string(id), &episode); err != nil {
		return nil, err
	}
	return &episode, nil
}

// Album calls GET /metadata/album/{id}.
func (s *ProxySession) Album(ctx context.Context, id string) (*models.Album, error) {
	var album models.Album
	if err := s.metadata(ctx, "album", id, &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// Playlist calls GET /metadata/playlist/{id}.
func (s *ProxySession) Playlist(ctx context.Context, id string) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := s.metadata(ctx, "playlist", id, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// Show calls GET /metadata/show/{id}.
func (s *ProxySession) Show(ctx context.Context, id string) (*models.Show, error) {
	var show models.Show
	if err := s.metadata(ctx, "show", id, &show); err != nil {
		return nil, err
	}
	return &show, nil
}

// AudioKey calls GET /audio/key and decodes the hex key.
func (s *ProxySession) AudioKey(ctx context.Context, item models.ItemID, file models.FileID) ([]byte, error) {
	q := url.Values{}
	q.Set("item", string(item))
	q.Set("file", string(file))

	var resp audioKeyResponse
	if err := s.doJSON(ctx, http.MethodGet, "/audio/key?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	key, err := hex.DecodeString(resp.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed audio key: %w", shared.ErrAPIRequest, err)
	}
	if len(key) != AudioKeySize {
		return nil, fmt.Errorf("%w: audio key has %d bytes", shared.ErrAPIRequest, len(key))
	}
	return key, nil
}

// OpenFile calls GET /audio/file/{id} and returns the response body.
func (s *ProxySession) OpenFile(ctx context.Context, file models.FileID) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, "/audio/file/"+url.PathEscape(string(file)), nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Decrypt deciphers a stream file, see [DecryptStream].
func (s *ProxySession) Decrypt(key, data []byte) ([]byte, error) {
	return DecryptStream(key, data)
}

func (s *ProxySession) metadata(ctx context.Context, kind, id string, result any) error {
	endpoint := fmt.Sprintf("/metadata/%s/%s", kind, url.PathEscape(id))
	if err := s.doJSON(ctx, http.MethodGet, endpoint, nil, result); err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	return nil
}

func (s *ProxySession) doJSON(ctx context.Context, method, endpoint string, body []byte, result any) error {
	resp, err := s.do(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// do sends one rate-limited request and returns a 2xx response; the caller closes the body.
func (s *ProxySession) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var errResp struct {
			Detail string `json:"detail"`
		}
		kind := shared.ErrAPIRequest
		if resp.StatusCode == http.StatusNotFound {
			kind = shared.ErrNotFound
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return nil, fmt.Errorf("%w: status %d: %s", kind, resp.StatusCode, errResp.Detail)
		}
		return nil, fmt.Errorf("%w: status %d", kind, resp.StatusCode)
	}

	return resp, nil
}
