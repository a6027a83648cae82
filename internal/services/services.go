// package services defines the [Session] used to read catalog metadata and audio streams,
// its HTTP proxy implementation, and the credential providers that open it.
package services

import (
	"context"
	"io"

	"github.com/desertthunder/spotx/internal/models"
)

// Session is an authenticated streaming-service session.
//
// A Session is shared read-only by the pipeline for the whole run.
type Session interface {
	// Username returns the account the session is connected as.
	Username() string

	// Track retrieves the metadata record of a track.
	Track(ctx context.Context, id models.ItemID) (*models.Track, error)

	// Episode retrieves the metadata record of a podcast episode.
	Episode(ctx context.Context, id models.ItemID) (*models.Episode, error)

	// Album retrieves an album and its track listing.
	Album(ctx context.Context, id string) (*models.Album, error)

	// Playlist retrieves a playlist and its track listing.
	Playlist(ctx context.Context, id string) (*models.Playlist, error)

	// Show retrieves a show and its episode listing, newest first.
	Show(ctx context.Context, id string) (*models.Show, error)

	// AudioKey requests the decryption key of one stream file of an item.
	AudioKey(ctx context.Context, item models.ItemID, file models.FileID) ([]byte, error)

	// OpenFile opens the encrypted stream file. The caller closes it.
	OpenFile(ctx context.Context, file models.FileID) (io.ReadCloser, error)

	// Decrypt deciphers an encrypted stream file with its audio key.
	Decrypt(key, data []byte) ([]byte, error)
}

// Credentials authenticate a session connect.
//
// AuthData is the reusable blob returned by a successful connect; it is stored in the
// credentials cache and preferred over AccessToken on later runs.
type Credentials struct {
	Username    string `json:"username"`
	AccessToken string `json:"access_token,omitempty"`
	AuthData    []byte `json:"auth_data,omitempty"`
}

// Reusable reports whether the credentials can connect without a fresh token.
func (c *Credentials) Reusable() bool {
	return c != nil && c.Username != "" && len(c.AuthData) > 0
}
