package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/spotx/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultRedirectURI is the loopback callback registered for the client.
	DefaultRedirectURI = "http://127.0.0.1:1234/login"
)

// StreamingScopes is the scope set requested for a playback session.
var StreamingScopes = []string{"streaming"}

// OAuthFlow runs an interactive PKCE login against a loopback callback server.
type OAuthFlow struct {
	config  *oauth2.Config
	addr    string
	path    string
	timeout time.Duration
	out     io.Writer
	logger  *log.Logger

	// openBrowser is swapped in tests.
	openBrowser func(string) error
}

// NewOAuthFlow builds a flow for clientID that listens on redirectURI's host and path.
func NewOAuthFlow(clientID, redirectURI string, scopes []string, out io.Writer, logger *log.Logger) (*OAuthFlow, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: session.client_id is required for login", shared.ErrMissingConfig)
	}
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, redirectURI)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &OAuthFlow{
		config: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURI,
			Scopes:      scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		addr:        u.Host,
		path:        path,
		timeout:     2 * time.Minute,
		out:         out,
		logger:      logger,
		openBrowser: shared.OpenBrowser,
	}, nil
}

// SetEndpoint overrides the authorization server.
func (f *OAuthFlow) SetEndpoint(e oauth2.Endpoint) { f.config.Endpoint = e }

// SetTimeout bounds the wait for the callback.
func (f *OAuthFlow) SetTimeout(d time.Duration) { f.timeout = d }

// Authorize serves the callback, opens the browser and waits for the token.
func (f *OAuthFlow) Authorize(ctx context.Context) (*oauth2.Token, error) {
	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()
	authURL := f.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	handler := NewOAuthHandler(f.config, f.path, state, verifier)
	router := NewRouter()
	router.Use(RequestLogger(f.logger))
	router.Handler(handler)

	listener, err := net.Listen("tcp", f.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", f.addr, err)
	}

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		f.logger.Debug("starting OAuth callback server", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			f.logger.Warn("error shutting down callback server", "err", err)
		}
	}()

	fmt.Fprintln(f.out, "→ Opening browser for login...")
	if err := f.openBrowser(authURL); err != nil {
		f.logger.Warn("failed to open browser automatically", "err", err)
		fmt.Fprintf(f.out, "Please open this URL in your browser:\n%s\n\n", authURL)
	}
	fmt.Fprintf(f.out, "→ Waiting for authorization (%s timeout)...\n", f.timeout)

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	var result OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, f.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}
	return result.Token, nil
}
