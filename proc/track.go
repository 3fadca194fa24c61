package proc

import (
	"encoding/json"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Tier decides which quota limits apply to a requester.
type Tier int

const (
	TierNormal Tier = iota
	TierPrivileged
)

func (t Tier) String() string {
	if t == TierPrivileged {
		return "privileged"
	}
	return "normal"
}

// Track is an immutable playable item. FilePath is set when the audio was
// downloaded; otherwise the track streams from PageURL.
type Track struct {
	VideoID       string
	Title         string
	PageURL       string
	FilePath      string
	NeedsConfirm  bool
	EstimatedSize int64
	Duration      time.Duration
	RequestedBy   snowflake.ID
}

// trackJSON stores Duration as whole seconds.
type trackJSON struct {
	VideoID       string       `json:"id"`
	Title         string       `json:"title"`
	PageURL       string       `json:"webpage_url"`
	FilePath      string       `json:"file,omitempty"`
	NeedsConfirm  bool         `json:"needs_confirm,omitempty"`
	EstimatedSize int64        `json:"filesize,omitempty"`
	Duration      int64        `json:"duration,omitempty"`
	RequestedBy   snowflake.ID `json:"requested_by,omitempty"`
}

func (t Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackJSON{
		VideoID:       t.VideoID,
		Title:         t.Title,
		PageURL:       t.PageURL,
		FilePath:      t.FilePath,
		NeedsConfirm:  t.NeedsConfirm,
		EstimatedSize: t.EstimatedSize,
		Duration:      int64(t.Duration / time.Second),
		RequestedBy:   t.RequestedBy,
	})
}

func (t *Track) UnmarshalJSON(data []byte) error {
	var j trackJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*t = Track{
		VideoID:       j.VideoID,
		Title:         j.Title,
		PageURL:       j.PageURL,
		FilePath:      j.FilePath,
		NeedsConfirm:  j.NeedsConfirm,
		EstimatedSize: j.EstimatedSize,
		Duration:      time.Duration(j.Duration) * time.Second,
		RequestedBy:   j.RequestedBy,
	}
	return nil
}

// VideoRef is what the resolver hands to the metadata stage.
type VideoRef struct {
	ID    string
	URL   string
	Title string
}

// Metadata describes a video before anything is downloaded.
type Metadata struct {
	ID          string
	Title       string
	PageURL     string
	Duration    time.Duration
	Filesize    int64
	BitrateKbps float64
}

// Requester identifies who asked for a track and at which tier.
type Requester struct {
	ID   snowflake.ID
	Name string
	Tier Tier
}

// Source is what the audio output consumes: a local file or a page URL to stream.
type Source struct {
	Path string
	URL  string
}

func (s Source) IsFile() bool { return s.Path != "" }

func (s Source) String() string {
	if s.Path != "" {
		return s.Path
	}
	return s.URL
}

// WatchURL returns the canonical page URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Metadata rebuilds what a confirmed download needs from a track that was
// held back for confirmation.
func (t Track) Metadata() Metadata {
	return Metadata{
		ID:       t.VideoID,
		Title:    t.Title,
		PageURL:  t.PageURL,
		Duration: t.Duration,
		Filesize: t.EstimatedSize,
	}
}
