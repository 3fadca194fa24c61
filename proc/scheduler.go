package proc

import (
	"context"
	"fmt"
	"time"

	"github.com/leeineian/jukebox/sys"
)

// State is the playback state of the session.
type State int

const (
	StateIdle State = iota
	StateEmpty
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEmpty:
		return "empty"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Connected reports whether a voice connection is held.
func (s State) Connected() bool { return s != StateIdle }

// Active reports whether a track is loaded in the output.
func (s State) Active() bool { return s == StatePlaying || s == StatePaused }

// Position selects where Enqueue places a track.
type Position int

const (
	Back Position = iota
	Front
)

const (
	DefaultVolume = 50
	MinVolume     = 1
	MaxVolume     = 100
)

// AudioOutput plays one source at a time. The returned channel yields exactly
// one value (nil on a clean end) or is closed when playback finishes for any
// reason, including Stop.
type AudioOutput interface {
	Play(ctx context.Context, src Source) (<-chan error, error)
	Stop()
	SetPaused(paused bool)
	SetVolume(volume int)
}

// CacheHooks is the part of the cache store the scheduler needs.
type CacheHooks interface {
	Lookup(id string) (CacheEntry, bool)
	CancelEviction(id string)
	ScheduleDelayedEviction(id string, delay time.Duration) bool
}

// Notifier receives playback announcements. Calls run on the scheduler
// goroutine and must not block or call back into the scheduler.
type Notifier interface {
	NowPlaying(t Track)
	QueueEmpty()
	PlaybackFailed(t Track, err error)
}

// PlaybackEnded is posted when the output finishes a track.
type PlaybackEnded struct {
	VideoID string
	Err     error
	gen     uint64
}

// Placement tells the caller what Submit did with a track.
type Placement struct {
	Started  bool
	Position int
}

// Status is a copy of the session for read-only views.
type Status struct {
	State   State
	Current *Track
	Last    *Track
	Pending []Track
	History []Track
	Played  map[string]bool
	Volume  int
}

// session is owned by the scheduler goroutine.
type session struct {
	ctx     context.Context
	state   State
	pending []*Track
	current *Track
	last    *Track
	history []*Track
	played  map[string]struct{}
	volume  int
	gen     uint64
}

// Scheduler serializes every queue and playback mutation onto one goroutine.
type Scheduler struct {
	ops        chan func(*session)
	events     chan PlaybackEnded
	done       chan struct{}
	out        AudioOutput
	cache      CacheHooks
	notify     Notifier
	evictDelay time.Duration
	now        func() time.Time
}

func NewScheduler(out AudioOutput, cache CacheHooks, notify Notifier) *Scheduler {
	return &Scheduler{
		ops:        make(chan func(*session)),
		events:     make(chan PlaybackEnded, 8),
		done:       make(chan struct{}),
		out:        out,
		cache:      cache,
		notify:     notify,
		evictDelay: EvictionDelay,
		now:        time.Now,
	}
}

// Run owns the session until ctx is done. It must be called exactly once.
func (s *Scheduler) Run(ctx context.Context) {
	ss := &session{
		ctx:    ctx,
		played: make(map[string]struct{}),
		volume: DefaultVolume,
	}
	defer func() {
		close(s.done)
		s.out.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-s.ops:
			op(ss)
		case ev := <-s.events:
			s.onPlaybackEnded(ss, ev)
		}
	}
}

// Done is closed once Run has returned.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) do(fn func(*session) error) error {
	errc := make(chan error, 1)
	select {
	case s.ops <- func(ss *session) { errc <- fn(ss) }:
	case <-s.done:
		return ErrSchedulerClosed
	}
	return <-errc
}

// --- Connection ---

// Connect moves Idle to Empty and starts a fresh session. Pending tracks are
// kept. Connecting while already connected does nothing.
func (s *Scheduler) Connect() error {
	return s.do(func(ss *session) error {
		if ss.state != StateIdle {
			return nil
		}
		ss.state = StateEmpty
		ss.history = nil
		ss.played = make(map[string]struct{})
		ss.current = nil
		ss.last = nil
		return nil
	})
}

// Disconnect stops playback, clears the queue and returns to Idle.
func (s *Scheduler) Disconnect() error {
	return s.do(func(ss *session) error {
		s.halt(ss)
		ss.state = StateIdle
		return nil
	})
}

// Stop clears the queue and stops the current track without leaving voice.
func (s *Scheduler) Stop() error {
	return s.do(func(ss *session) error {
		if ss.state == StateIdle {
			return ErrNotConnected
		}
		s.halt(ss)
		ss.state = StateEmpty
		return nil
	})
}

func (s *Scheduler) halt(ss *session) {
	ss.pending = nil
	if ss.state.Active() {
		ss.gen++
		s.out.Stop()
	}
}

// --- Queue ---

// Enqueue adds t to the pending list and the session history and returns its
// 1-based position. The playback state is not touched.
func (s *Scheduler) Enqueue(t Track, pos Position) (int, error) {
	var n int
	err := s.do(func(ss *session) error {
		n = insert(ss, &t, pos)
		return nil
	})
	return n, err
}

// Submit plays t immediately when nothing is playing, otherwise queues it
// at pos.
func (s *Scheduler) Submit(t Track, pos Position) (Placement, error) {
	var p Placement
	err := s.do(func(ss *session) error {
		switch ss.state {
		case StateIdle:
			return ErrNotConnected
		case StateEmpty:
			insert(ss, &t, Front)
			s.dispatchNext(ss)
			p.Started = ss.state == StatePlaying && ss.current != nil && ss.current.VideoID == t.VideoID
			return nil
		}
		p.Position = insert(ss, &t, pos)
		return nil
	})
	return p, err
}

func insert(ss *session, t *Track, pos Position) int {
	addHistory(ss, t)
	if pos == Front {
		ss.pending = append([]*Track{t}, ss.pending...)
		sys.LogQueue(sys.MsgLogQueueAdded, t.Title, t.VideoID, 1)
		return 1
	}
	ss.pending = append(ss.pending, t)
	sys.LogQueue(sys.MsgLogQueueAdded, t.Title, t.VideoID, len(ss.pending))
	return len(ss.pending)
}

// Clear drains the pending list and returns what was in it.
func (s *Scheduler) Clear() ([]Track, error) {
	var drained []Track
	err := s.do(func(ss *session) error {
		drained = copyTracks(ss.pending)
		ss.pending = nil
		return nil
	})
	return drained, err
}

// --- Playback ---

// DispatchNext starts the next pending track. It only acts when connected
// and nothing is loaded; otherwise it reports whether something is playing.
func (s *Scheduler) DispatchNext() (bool, error) {
	var started bool
	err := s.do(func(ss *session) error {
		switch ss.state {
		case StateIdle:
			return ErrNotConnected
		case StateEmpty:
			s.dispatchNext(ss)
		}
		started = ss.state.Active()
		return nil
	})
	return started, err
}

func (s *Scheduler) dispatchNext(ss *session) {
	if len(ss.pending) == 0 {
		ss.state = StateEmpty
		s.notify.QueueEmpty()
		return
	}

	t := ss.pending[0]
	ss.pending = ss.pending[1:]

	src := s.sourceFor(t)
	ss.gen++
	gen := ss.gen

	ended, err := s.out.Play(ss.ctx, src)
	if err != nil {
		ss.state = StateEmpty
		perr := &PlaybackStartError{VideoID: t.VideoID, Err: err}
		sys.LogMusicError(sys.MsgLogPlaybackStart, t.VideoID, err)
		s.notify.PlaybackFailed(*t, perr)
		return
	}

	if ss.current != nil {
		ss.last = ss.current
	}
	ss.current = t
	ss.state = StatePlaying
	addHistory(ss, t)

	sys.LogMusic(sys.MsgLogPlaying, t.Title, src)
	s.notify.NowPlaying(*t)

	go s.watch(ended, t.VideoID, gen)
}

func (s *Scheduler) watch(ended <-chan error, id string, gen uint64) {
	var err error
	select {
	case err = <-ended:
	case <-s.done:
		return
	}
	select {
	case s.events <- PlaybackEnded{VideoID: id, Err: err, gen: gen}:
	case <-s.done:
	}
}

func (s *Scheduler) sourceFor(t *Track) Source {
	if e, ok := s.cache.Lookup(t.VideoID); ok {
		s.cache.CancelEviction(t.VideoID)
		return Source{Path: e.FilePath}
	}
	if fileExists(t.FilePath) {
		return Source{Path: t.FilePath}
	}
	return Source{URL: t.PageURL}
}

func (s *Scheduler) onPlaybackEnded(ss *session, ev PlaybackEnded) {
	ss.played[ev.VideoID] = struct{}{}
	if ev.Err != nil {
		sys.LogMusicError(sys.MsgLogPlaybackError, ev.VideoID, ev.Err)
	}
	s.cache.ScheduleDelayedEviction(ev.VideoID, s.evictDelay)

	if ev.gen != ss.gen || !ss.state.Active() {
		return
	}
	s.dispatchNext(ss)
}

// Skip ends the current track; the queue advances through the normal
// end-of-playback path.
func (s *Scheduler) Skip() error {
	return s.do(func(ss *session) error {
		if !ss.state.Active() {
			return ErrNotPlaying
		}
		s.out.Stop()
		return nil
	})
}

func (s *Scheduler) Pause() error {
	return s.do(func(ss *session) error {
		switch ss.state {
		case StateIdle:
			return ErrNotConnected
		case StateEmpty:
			return ErrNotPlaying
		case StatePaused:
			return ErrAlreadyPaused
		}
		s.out.SetPaused(true)
		ss.state = StatePaused
		return nil
	})
}

func (s *Scheduler) Resume() error {
	return s.do(func(ss *session) error {
		switch ss.state {
		case StateIdle:
			return ErrNotConnected
		case StateEmpty:
			return ErrNotPlaying
		case StatePlaying:
			return ErrNotPaused
		}
		s.out.SetPaused(false)
		ss.state = StatePlaying
		return nil
	})
}

// TogglePause pauses when playing and resumes when paused. It returns the
// resulting state.
func (s *Scheduler) TogglePause() (State, error) {
	var st State
	err := s.do(func(ss *session) error {
		switch ss.state {
		case StateIdle:
			return ErrNotConnected
		case StateEmpty:
			return ErrNotPlaying
		case StatePlaying:
			s.out.SetPaused(true)
			ss.state = StatePaused
		case StatePaused:
			s.out.SetPaused(false)
			ss.state = StatePlaying
		}
		st = ss.state
		return nil
	})
	return st, err
}

// PlayPrevious puts the last track back at the front and moves to it.
func (s *Scheduler) PlayPrevious() (Track, error) {
	var prev Track
	err := s.do(func(ss *session) error {
		if ss.state == StateIdle {
			return ErrNotConnected
		}
		if ss.last == nil {
			return ErrNoPrevious
		}
		t := *ss.last
		prev = t
		ss.pending = append([]*Track{&t}, ss.pending...)
		if ss.state.Active() {
			s.out.Stop()
			return nil
		}
		s.dispatchNext(ss)
		return nil
	})
	return prev, err
}

// SetVolume stores the volume and forwards it to the output.
func (s *Scheduler) SetVolume(v int) error {
	if v < MinVolume || v > MaxVolume {
		return fmt.Errorf("volume %d out of range %d-%d", v, MinVolume, MaxVolume)
	}
	return s.do(func(ss *session) error {
		ss.volume = v
		s.out.SetVolume(v)
		return nil
	})
}

// --- Views and backups ---

// Status returns a copy of the session.
func (s *Scheduler) Status() (Status, error) {
	var st Status
	err := s.do(func(ss *session) error {
		st = Status{
			State:   ss.state,
			Current: copyTrack(ss.current),
			Last:    copyTrack(ss.last),
			Pending: copyTracks(ss.pending),
			History: copyTracks(ss.history),
			Played:  make(map[string]bool, len(ss.played)),
			Volume:  ss.volume,
		}
		for id := range ss.played {
			st.Played[id] = true
		}
		return nil
	})
	return st, err
}

// Snapshot captures the pending list, and the current track when withCurrent
// is set and a track is loaded.
func (s *Scheduler) Snapshot(withCurrent bool) (Backup, error) {
	var b Backup
	err := s.do(func(ss *session) error {
		b = Backup{Queue: copyTracks(ss.pending), SavedAt: s.now()}
		if withCurrent && ss.state.Active() {
			b.Current = copyTrack(ss.current)
		}
		return nil
	})
	return b, err
}

// Restore repopulates an empty pending list from b. It does not start
// playback.
func (s *Scheduler) Restore(b Backup, now time.Time) (int, error) {
	var n int
	err := s.do(func(ss *session) error {
		if len(ss.pending) > 0 {
			return ErrQueueNotEmpty
		}
		if b.Stale(now) {
			return ErrStale
		}
		items := make([]*Track, 0, len(b.Queue)+1)
		if b.Current != nil {
			c := *b.Current
			items = append(items, &c)
		}
		for i := range b.Queue {
			t := b.Queue[i]
			items = append(items, &t)
		}
		for _, t := range items {
			addHistory(ss, t)
		}
		ss.pending = items
		n = len(items)
		return nil
	})
	return n, err
}

func addHistory(ss *session, t *Track) {
	for _, h := range ss.history {
		if h.VideoID == t.VideoID {
			return
		}
	}
	ss.history = append(ss.history, t)
}

func copyTrack(t *Track) *Track {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyTracks(ts []*Track) []Track {
	out := make([]Track, len(ts))
	for i, t := range ts {
		out[i] = *t
	}
	return out
}
