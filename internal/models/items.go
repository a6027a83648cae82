package models

import (
	"fmt"
	"sort"
	"strings"
)

// LinkKind is the entity kind named by an input link.
type LinkKind string

const (
	LinkPlaylist LinkKind = "playlist"
	LinkAlbum    LinkKind = "album"
	LinkTrack    LinkKind = "track"
	LinkEpisode  LinkKind = "episode"
	LinkShow     LinkKind = "show"
)

// Supported reports whether the pipeline knows how to expand links of this kind.
func (k LinkKind) Supported() bool {
	switch k {
	case LinkPlaylist, LinkAlbum, LinkTrack, LinkEpisode, LinkShow:
		return true
	default:
		return false
	}
}

// Container reports whether the kind expands into several leaf items.
func (k LinkKind) Container() bool {
	return k == LinkPlaylist || k == LinkAlbum || k == LinkShow
}

// Link is a parsed input line.
type Link struct {
	Kind LinkKind
	ID   string
}

func (l Link) String() string {
	return fmt.Sprintf("spotify:%s:%s", l.Kind, l.ID)
}

// ItemID is the canonical base62 identifier of a track or episode.
type ItemID string

// ItemKind selects the metadata and acquisition path of a leaf item.
type ItemKind int

const (
	KindTrack ItemKind = iota
	KindEpisode
)

func (k ItemKind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindEpisode:
		return "episode"
	default:
		return ""
	}
}

// ParseItemKind converts the string form produced by [ItemKind.String].
func ParseItemKind(s string) (ItemKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "track":
		return KindTrack, nil
	case "episode":
		return KindEpisode, nil
	default:
		return 0, fmt.Errorf("unknown item kind %q", s)
	}
}

// QueueEntry is one leaf item waiting in the resolution queue.
//
// Group is the destination group label (e.g. "playlists/Road Trip"); empty in the flat layout.
type QueueEntry struct {
	ID    ItemID
	Kind  ItemKind
	Group string
}

// FileFormat names an audio encoding offered by the session.
type FileFormat string

const (
	OggVorbis96  FileFormat = "OGG_VORBIS_96"
	OggVorbis160 FileFormat = "OGG_VORBIS_160"
	OggVorbis320 FileFormat = "OGG_VORBIS_320"
	MP3_96       FileFormat = "MP3_96"
	MP3_160      FileFormat = "MP3_160"
	MP3_256      FileFormat = "MP3_256"
	MP3_320      FileFormat = "MP3_320"
	AAC24        FileFormat = "AAC_24"
	AAC48        FileFormat = "AAC_48"
	FLAC         FileFormat = "FLAC_FLAC"
)

// FileID references one encrypted stream file.
type FileID string

// Files maps an encoding to the stream file carrying it.
type Files map[FileFormat]FileID

// Formats returns the formats present, sorted for stable log output.
func (f Files) Formats() []string {
	out := make([]string, 0, len(f))
	for format := range f {
		out = append(out, string(format))
	}
	sort.Strings(out)
	return out
}

const imageBaseURL = "https://i.scdn.co/image/"

// Image is an artwork reference.
type Image struct {
	FileID string `json:"file_id"`
	URL    string `json:"url,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Link returns the fetchable URL of the image, deriving it from the file id when no URL was given.
func (i Image) Link() string {
	if i.URL != "" {
		return i.URL
	}
	if i.FileID == "" {
		return ""
	}
	return imageBaseURL + strings.ToLower(i.FileID)
}

// Artist is a track contributor.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlbumRef is the album a track belongs to.
type AlbumRef struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Covers []Image `json:"covers"`
}

// Track is the session metadata record of a track.
type Track struct {
	ID           ItemID   `json:"id"`
	Name         string   `json:"name"`
	Album        AlbumRef `json:"album"`
	Artists      []Artist `json:"artists"`
	Covers       []Image  `json:"covers"`
	Files        Files    `json:"files"`
	Alternatives []ItemID `json:"alternatives"`
	Available    bool     `json:"available"`
	DurationMS   int      `json:"duration_ms"`
}

// ShowRef is the show an episode belongs to.
type ShowRef struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Publisher string  `json:"publisher"`
	Covers    []Image `json:"covers"`
}

// Episode is the session metadata record of a podcast episode.
type Episode struct {
	ID         ItemID  `json:"id"`
	Name       string  `json:"name"`
	Show       ShowRef `json:"show"`
	Covers     []Image `json:"covers"`
	Files      Files   `json:"files"`
	Available  bool    `json:"available"`
	DurationMS int     `json:"duration_ms"`
}

// Album is a container of tracks.
type Album struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Tracks []ItemID `json:"tracks"`
}

// Playlist is a container of tracks.
type Playlist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Owner  string   `json:"owner"`
	Tracks []ItemID `json:"tracks"`
}

// Show is a container of episodes, listed newest first by the session.
type Show struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Publisher string   `json:"publisher"`
	Episodes  []ItemID `json:"episodes"`
}

// AudioItem is the resolved metadata for one leaf item, owned by the acquirer for one item's processing.
type AudioItem struct {
	ID           ItemID
	Kind         ItemKind
	Name         string
	Group        string // album or show title
	Contributors []string
	Covers       []Image
	Files        Files
	Alternatives []ItemID
	Available    bool
}

// TrackItem converts a track record to an [AudioItem].
//
// Album covers take precedence over the track's own list.
func TrackItem(t *Track) *AudioItem {
	contributors := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		contributors = append(contributors, a.Name)
	}
	covers := append(append([]Image{}, t.Album.Covers...), t.Covers...)
	return &AudioItem{
		ID:           t.ID,
		Kind:         KindTrack,
		Name:         t.Name,
		Group:        t.Album.Name,
		Contributors: contributors,
		Covers:       covers,
		Files:        t.Files,
		Alternatives: t.Alternatives,
		Available:    t.Available,
	}
}

// EpisodeItem converts an episode record to an [AudioItem].
func EpisodeItem(e *Episode) *AudioItem {
	var contributors []string
	if e.Show.Publisher != "" {
		contributors = []string{e.Show.Publisher}
	}
	covers := append(append([]Image{}, e.Covers...), e.Show.Covers...)
	return &AudioItem{
		ID:           e.ID,
		Kind:         KindEpisode,
		Name:         e.Name,
		Group:        e.Show.Name,
		Contributors: contributors,
		Covers:       covers,
		Files:        e.Files,
		Available:    e.Available,
	}
}
