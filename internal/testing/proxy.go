package testing

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/spotx/internal/models"
)

// Credentials accepted by [NewProxyServer].
const (
	ProxyToken        = "good-token"
	ProxyAuthData     = "blob"
	ProxySessionToken = "session-token"
)

// NewProxyServer serves the session proxy protocol backed by session.
//
// Connect accepts [ProxyToken] or [ProxyAuthData] and answers with reusable credentials for
// session.User. The server is closed when the test ends.
func NewProxyServer(t *testing.T, session *MockSession) *httptest.Server {
	t.Helper()

	writeJSON := func(w http.ResponseWriter, v any, err error) {
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(v)
	}
	authorized := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+ProxySessionToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session/connect", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccessToken string `json:"access_token"`
			AuthData    []byte `json:"auth_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.AccessToken != ProxyToken && string(req.AuthData) != ProxyAuthData {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "bad credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"username":  session.Username(),
			"auth_data": []byte(ProxyAuthData),
			"token":     ProxySessionToken,
		})
	})
	mux.HandleFunc("GET /metadata/track/{id}", authorized(func(w http.ResponseWriter, r *http.Request) {
		track, err := session.Track(r.Context(), models.ItemID(r.PathValue("id")))
		writeJSON(w, track, err)
	}))
	mux.HandleFunc("GET /metadata/episode/{id}", authorized(func(w http.ResponseWriter, r *http.Request) {
		episode, err := session.Episode(r.Context(), models.ItemID(r.PathValue("id")))
		writeJSON(w, episode, err)
	}))
	mux.HandleFunc("GET /metadata/album/{id}", authorized(func(w http.ResponseWriter, r *http.Request) {
		album, err := session.Album(r.Context(), r.PathValue("id"))
		writeJSON(w, album, err)
	}))
	mux.HandleFunc("GET /metadata/playlist/{id}", authorized(func(w http.ResponseWriter, r *http.Request) {
		playlist, err := session.Playlist(r.Context(), r.PathValue("id"))
		writeJSON(w, playlist, err)
	}))
	mux.HandleFunc("GET /metadata/show/{id}", authorized(func(w http.ResponseWriter, r *http.Request) {
		show, err := session.Show(r.Context(), r.PathValue("id"))
		writeJSON(w, show, err)
	}))
	mux.HandleFunc("GET /audio/key", authorized(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		key, err := session.AudioKey(r.Context(), models.ItemID(q.Get("item")), models.FileID(q.Get("file")))
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"key": hex.EncodeToString(key)})
	}))
	mux.HandleFunc("GET /audio/file/{id}", authorized(func(w http.ResponseWriter, r *http.Request) {
		body, err := session.OpenFile(r.Context(), models.FileID(r.PathValue("id")))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		defer body.Close()
		io.Copy(w, body)
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}
