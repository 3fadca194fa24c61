package proc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/leeineian/jukebox/sys"
)

// BackupMaxAge is how old a backup may be and still be restored.
const BackupMaxAge = 10 * time.Minute

// Backup is a saved pending list plus, optionally, the track that was
// playing when it was taken.
type Backup struct {
	Queue   []Track
	Current *Track
	SavedAt time.Time
}

// Stale reports whether the backup is too old to restore at now.
func (b Backup) Stale(now time.Time) bool {
	return now.Sub(b.SavedAt) > BackupMaxAge
}

// Len counts every track the backup would restore.
func (b Backup) Len() int {
	n := len(b.Queue)
	if b.Current != nil {
		n++
	}
	return n
}

type backupFile struct {
	Queue        []Track `json:"queue"`
	CurrentTrack *Track  `json:"current_track"`
}

// Restorer applies a backup to a live queue.
type Restorer interface {
	Restore(b Backup, now time.Time) (int, error)
}

// RestoreOrigin tells where a restored backup came from.
type RestoreOrigin int

const (
	FromMemory RestoreOrigin = iota
	FromFile
)

func (o RestoreOrigin) String() string {
	if o == FromFile {
		return "file"
	}
	return "memory"
}

// BackupManager keeps one backup in memory and one on disk.
type BackupManager struct {
	mu   sync.Mutex
	slot *Backup
	path string
}

func NewBackupManager(path string) *BackupManager {
	return &BackupManager{path: path}
}

// Save overwrites the memory slot.
func (m *BackupManager) Save(b Backup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot = &b
	sys.LogQueue(sys.MsgLogBackupSaved, b.Len())
}

// Memory returns the memory slot, if any.
func (m *BackupManager) Memory() (Backup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot == nil {
		return Backup{}, false
	}
	return *m.slot, true
}

func (m *BackupManager) dropMemory() {
	m.mu.Lock()
	m.slot = nil
	m.mu.Unlock()
}

// SaveFile writes b to the backup file. The file mtime becomes its clock.
func (m *BackupManager) SaveFile(b Backup) error {
	if err := writeJSONAtomic(m.path, backupFile{Queue: b.Queue, CurrentTrack: b.Current}); err != nil {
		return fmt.Errorf("save queue backup: %w", err)
	}
	sys.LogQueue(sys.MsgLogBackupSaved, b.Len())
	return nil
}

// LoadFile reads the backup file. A missing file returns ErrNoBackup.
func (m *BackupManager) LoadFile() (Backup, error) {
	info, err := os.Stat(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Backup{}, ErrNoBackup
	}
	if err != nil {
		return Backup{}, err
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Backup{}, err
	}
	var f backupFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Backup{}, fmt.Errorf("decode queue backup: %w", err)
	}
	return Backup{Queue: f.Queue, Current: f.CurrentTrack, SavedAt: info.ModTime()}, nil
}

// RemoveFile deletes the backup file. A missing file is not an error.
func (m *BackupManager) RemoveFile() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Restore tries the memory slot first, then the file. The memory slot is
// consumed on success or staleness. The file is deleted after any attempt
// that got past the empty-queue check, so it is never restored twice.
func (m *BackupManager) Restore(target Restorer, now time.Time) (RestoreOrigin, int, error) {
	staleMemory := false
	if b, ok := m.Memory(); ok {
		n, err := target.Restore(b, now)
		switch {
		case err == nil:
			m.dropMemory()
			sys.LogQueue(sys.MsgLogBackupRestored, n)
			return FromMemory, n, nil
		case errors.Is(err, ErrStale):
			m.dropMemory()
			staleMemory = true
		default:
			return FromMemory, 0, err
		}
	}

	b, err := m.LoadFile()
	if errors.Is(err, ErrNoBackup) && staleMemory {
		return FromMemory, 0, ErrStale
	}
	if err != nil {
		if !errors.Is(err, ErrNoBackup) {
			_ = m.RemoveFile()
		}
		return FromFile, 0, err
	}

	n, err := target.Restore(b, now)
	if err == nil || errors.Is(err, ErrStale) {
		if rerr := m.RemoveFile(); rerr != nil {
			sys.LogQueueError(sys.MsgLogCacheRemoveFail, m.path, rerr)
		}
	}
	if err != nil {
		return FromFile, 0, err
	}
	sys.LogQueue(sys.MsgLogBackupRestored, n)
	return FromFile, n, nil
}
