package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/spotx/internal/shared"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		if r.Form.Get("code_verifier") == "" {
			t.Error("expected PKCE code_verifier in exchange")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    "client",
		RedirectURL: "http://127.0.0.1/login",
		Endpoint:    oauth2.Endpoint{AuthURL: "http://auth.invalid/authorize", TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestRouter(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewRouter()
	router.Use(mark("first"), mark("second"))
	router.Use(RequestLogger(shared.NewLogger(io.Discard)))
	router.Handle("get", "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Body.String() != "pong" {
		t.Errorf("expected pong, got %q", rec.Body.String())
	}
	if strings.Join(order, ",") != "first,second" {
		t.Errorf("expected middleware order first,second, got %v", order)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestOAuthHandler(t *testing.T) {
	srv := tokenServer(t)

	t.Run("exchanges code", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(srv.URL), "/login", "state-1", oauth2.GenerateVerifier())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?state=state-1&code=good-code", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := <-h.Result()
		if result.Error() != nil || result.Token.AccessToken != "tok" {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("rejects bad state", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(srv.URL), "/login", "state-1", "v")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?state=evil&code=good-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected error result")
		}
	})

	t.Run("reports provider error", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(srv.URL), "/login", "s", "v")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?state=s&error=access_denied", nil))
		result := <-h.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied, got %v", result.Error())
		}
	})

	t.Run("handles one callback", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(srv.URL), "/login", "s", "v")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login?state=s&code=bad", nil))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?state=s&code=good-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("second callback should be rejected, got %d", rec.Code)
		}
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestOAuthFlow(t *testing.T) {
	srv := tokenServer(t)

	t.Run("requires client id", func(t *testing.T) {
		if _, err := NewOAuthFlow("", "", StreamingScopes, nil, nil); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("completes login through the callback", func(t *testing.T) {
		redirect := fmt.Sprintf("http://127.0.0.1:%d/login", freePort(t))
		flow, err := NewOAuthFlow("client", redirect, StreamingScopes, io.Discard, shared.NewLogger(io.Discard))
		if err != nil {
			t.Fatal(err)
		}
		flow.SetEndpoint(oauth2.Endpoint{AuthURL: "http://auth.invalid/authorize", TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams})

		flow.openBrowser = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			q := u.Query()
			if q.Get("scope") != "streaming" || q.Get("code_challenge_method") != "S256" {
				t.Errorf("unexpected auth query: %s", u.RawQuery)
			}
			go func() {
				resp, err := http.Get(redirect + "?code=good-code&state=" + url.QueryEscape(q.Get("state")))
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}

		token, err := flow.Authorize(context.Background())
		if err != nil {
			t.Fatalf("authorize failed: %v", err)
		}
		if token.AccessToken != "tok" {
			t.Errorf("expected tok, got %s", token.AccessToken)
		}
	})

	t.Run("times out", func(t *testing.T) {
		redirect := fmt.Sprintf("http://127.0.0.1:%d/login", freePort(t))
		flow, _ := NewOAuthFlow("client", redirect, StreamingScopes, io.Discard, shared.NewLogger(io.Discard))
		flow.openBrowser = func(string) error { return errors.New("no browser") }
		flow.SetTimeout(50 * time.Millisecond)

		_, err := flow.Authorize(context.Background())
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})
}
