package proc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/leeineian/jukebox/sys"
)

const (
	CacheTTL      = time.Hour
	EvictionDelay = 10 * time.Minute
)

// CacheEntry is one manifest record. It is only valid while FilePath exists.
type CacheEntry struct {
	Title     string  `json:"title"`
	FilePath  string  `json:"filepath"`
	Timestamp float64 `json:"timestamp"`
}

func (e CacheEntry) Time() time.Time {
	sec := int64(e.Timestamp)
	return time.Unix(sec, int64((e.Timestamp-float64(sec))*1e9))
}

// evictionToken identifies one armed timer. A fired timer only evicts when its
// token is still the one registered for the id.
type evictionToken struct {
	timer *time.Timer
}

// Store maps video ids to downloaded files and persists the mapping as one
// JSON object.
type Store struct {
	mu       sync.Mutex
	path     string
	entries  map[string]CacheEntry
	timers   map[string]*evictionToken
	now      func() time.Time
	onDelete func(id, path string)
	writes   sync.WaitGroup
}

// OpenStore loads the manifest at path. A missing or corrupt manifest starts
// empty; corruption is logged.
func OpenStore(path string) *Store {
	s := &Store{
		path:    path,
		entries: make(map[string]CacheEntry),
		timers:  make(map[string]*evictionToken),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		sys.LogCacheError(sys.MsgLogCacheLoadFail, err)
	default:
		if err := json.Unmarshal(data, &s.entries); err != nil {
			sys.LogCacheError(sys.MsgLogCacheLoadFail, err)
			s.entries = make(map[string]CacheEntry)
		}
	}
	return s
}

// Lookup returns the entry for id. An entry whose file is gone is purged;
// the manifest rewrite happens in the background so playback dispatch never
// waits on it.
func (s *Store) Lookup(id string) (CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return CacheEntry{}, false
	}
	if !fileExists(e.FilePath) {
		delete(s.entries, id)
		s.persistAsyncLocked()
		return CacheEntry{}, false
	}
	sys.LogDebug(sys.MsgLogCacheHit, id, e.FilePath)
	return e, true
}

// Put records a downloaded file, stamped now. Any pending eviction for the
// id is cancelled.
func (s *Store) Put(id, title, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(id)
	now := s.now()
	s.entries[id] = CacheEntry{
		Title:     title,
		FilePath:  path,
		Timestamp: float64(now.UnixNano()) / 1e9,
	}
	return s.persistLocked()
}

// Evict removes the mapping and the file. Evicting an unknown id, or one whose
// file is already gone, is not an error.
func (s *Store) Evict(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.entries, id)
	s.cancelLocked(id)
	perr := s.persistLocked()
	s.mu.Unlock()

	if err := s.removeFile(id, e.FilePath); err != nil {
		return err
	}
	sys.LogCache(sys.MsgLogCacheEvicted, id, e.FilePath)
	return perr
}

// SweepExpired evicts every entry older than ttl and returns how many went.
func (s *Store) SweepExpired(ttl time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-ttl)
	var expired []string
	for id, e := range s.entries {
		if e.Time().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.mu.Lock()
		path := s.entries[id].FilePath
		s.mu.Unlock()
		if err := s.Evict(id); err != nil {
			sys.LogCacheError(sys.MsgLogCacheRemoveFail, path, err)
			continue
		}
		sys.LogCache(sys.MsgLogCacheExpired, path)
	}
	return len(expired)
}

// ScheduleDelayedEviction arms a timer that evicts id after delay. Rearming
// replaces the previous timer. Ids that are not cached are ignored and false
// is returned.
func (s *Store) ScheduleDelayedEviction(id string, delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return false
	}
	s.cancelLocked(id)

	tok := &evictionToken{}
	tok.timer = time.AfterFunc(delay, func() { s.fireEviction(id, tok) })
	s.timers[id] = tok
	sys.LogCache(sys.MsgLogEvictionArmed, id, delay)
	return true
}

func (s *Store) fireEviction(id string, tok *evictionToken) {
	s.mu.Lock()
	if s.timers[id] != tok {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.mu.Unlock()

	if err := s.Evict(id); err != nil {
		sys.LogCacheError(sys.MsgLogCacheRemoveFail, id, err)
	}
}

// CancelEviction drops a pending eviction for id, if any.
func (s *Store) CancelEviction(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelLocked(id) {
		sys.LogCache(sys.MsgLogEvictionCancel, id)
	}
}

// PendingEviction reports whether a timer is armed for id.
func (s *Store) PendingEviction(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

func (s *Store) cancelLocked(id string) bool {
	tok, ok := s.timers[id]
	if !ok {
		return false
	}
	tok.timer.Stop()
	delete(s.timers, id)
	return true
}

// TotalBytes sums the current on-disk size of every cached file.
func (s *Store) TotalBytes() int64 {
	s.mu.Lock()
	paths := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		paths = append(paths, e.FilePath)
	}
	s.mu.Unlock()

	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}

// PurgeAll evicts every entry except keep and returns how many files were
// actually deleted from disk.
func (s *Store) PurgeAll(keep string) (int, error) {
	s.mu.Lock()
	victims := make(map[string]string, len(s.entries))
	for id, e := range s.entries {
		if id == keep {
			continue
		}
		victims[id] = e.FilePath
		delete(s.entries, id)
		s.cancelLocked(id)
	}
	perr := s.persistLocked()
	s.mu.Unlock()

	count := 0
	var errs []error
	for id, path := range victims {
		if !fileExists(path) {
			continue
		}
		if err := s.removeFile(id, path); err != nil {
			errs = append(errs, err)
			continue
		}
		sys.LogDebug(sys.MsgLogCachePurged, path)
		count++
	}
	if perr != nil {
		errs = append(errs, perr)
	}
	return count, errors.Join(errs...)
}

// Len returns the number of manifest entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops every pending eviction timer and waits for background
// manifest writes.
func (s *Store) Close() {
	s.mu.Lock()
	for id := range s.timers {
		s.cancelLocked(id)
	}
	s.mu.Unlock()
	s.writes.Wait()
}

func (s *Store) removeFile(id, path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &CacheIOError{Op: "remove", Path: path, Err: err}
	}
	if s.onDelete != nil {
		s.onDelete(id, path)
	}
	return nil
}

func (s *Store) persistLocked() error {
	if err := writeJSONAtomic(s.path, s.entries); err != nil {
		cerr := &CacheIOError{Op: "save", Path: s.path, Err: err}
		sys.LogCacheError(sys.MsgLogCacheSaveFail, cerr)
		return cerr
	}
	return nil
}

func (s *Store) persistAsyncLocked() {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = s.persistLocked()
	}()
}

// writeJSONAtomic replaces path with the JSON encoding of v using a synced
// temp file and a rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer pendingFile.Cleanup()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
