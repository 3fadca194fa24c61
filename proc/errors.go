package proc

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("no video found")
	ErrStale               = errors.New("backup is too old to restore")
	ErrQueueNotEmpty       = errors.New("queue is not empty")
	ErrNoBackup            = errors.New("no queue backup available")
	ErrNotPlaying          = errors.New("nothing is playing")
	ErrNotPaused           = errors.New("playback is not paused")
	ErrAlreadyPaused       = errors.New("playback is already paused")
	ErrNoPrevious          = errors.New("no previous track")
	ErrNotConnected        = errors.New("not connected to voice")
	ErrConfirmationTimeout = errors.New("confirmation timed out")
	ErrNotRequester        = errors.New("only the requester can answer")
	ErrUnknownConfirmation = errors.New("unknown confirmation")
	ErrSchedulerClosed     = errors.New("scheduler is closed")
)

// ResolutionError reports a failure to turn a query into a playable video.
type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// QuotaError is a rejection by the quota engine.
type QuotaError struct {
	Reason string
}

func (e *QuotaError) Error() string { return "quota: " + e.Reason }

// PlaybackStartError is reported when the audio output refuses a source.
type PlaybackStartError struct {
	VideoID string
	Err     error
}

func (e *PlaybackStartError) Error() string {
	return fmt.Sprintf("start playback of %s: %v", e.VideoID, e.Err)
}

func (e *PlaybackStartError) Unwrap() error { return e.Err }

// CacheIOError wraps disk failures of the cache store. They are logged and
// never block playback.
type CacheIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }
