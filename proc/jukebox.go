package proc

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/leeineian/jukebox/sys"
)

// Deps wires a Jukebox. Every field is required except Pool, which defaults
// to DefaultWorkers slots.
type Deps struct {
	Resolver    *Resolver
	Prober      MetadataProber
	Downloader  Downloader
	Cache       *Store
	Scheduler   *Scheduler
	Backups     *BackupManager
	Confirms    *Confirmations
	Pool        *Pool
	DownloadDir string
	Download    bool
	Limits      *Limits
}

// Jukebox turns requests into tracks and hands them to the scheduler.
type Jukebox struct {
	resolver   *Resolver
	prober     MetadataProber
	downloader Downloader
	cache      *Store
	sched      *Scheduler
	backups    *BackupManager
	confirms   *Confirmations
	pool       *Pool
	limits     Limits
	dir        string
	download   atomic.Bool
	now        func() time.Time
}

func New(d Deps) *Jukebox {
	j := &Jukebox{
		resolver:   d.Resolver,
		prober:     d.Prober,
		downloader: d.Downloader,
		cache:      d.Cache,
		sched:      d.Scheduler,
		backups:    d.Backups,
		confirms:   d.Confirms,
		pool:       d.Pool,
		limits:     DefaultLimits,
		dir:        d.DownloadDir,
		now:        time.Now,
	}
	if j.pool == nil {
		j.pool = NewPool(DefaultWorkers)
	}
	if d.Limits != nil {
		j.limits = *d.Limits
	}
	j.download.Store(d.Download)
	return j
}

func (j *Jukebox) Scheduler() *Scheduler { return j.sched }
func (j *Jukebox) Cache() *Store { return j.cache }
func (j *Jukebox) Confirmations() *Confirmations { return j.confirms }
func (j *Jukebox) Backups() *BackupManager { return j.backups }
func (j *Jukebox) DownloadMode() bool { return j.download.Load() }
func (j *Jukebox) SetDownloadMode(on bool) { j.download.Store(on) }
func (j *Jukebox) Status() (Status, error) { return j.sched.Status() }
func (j *Jukebox) Enqueue(t Track, pos Position) (int, error) { return j.sched.Enqueue(t, pos) }

// ToggleDownloadMode flips between caching and stream-only and returns the
// new mode.
func (j *Jukebox) ToggleDownloadMode() bool {
	for {
		old := j.download.Load()
		if j.download.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Prepare resolves query, checks quotas and fetches the audio. A privileged
// request over the single-file cap comes back with NeedsConfirm set and
// nothing downloaded.
func (j *Jukebox) Prepare(ctx context.Context, query string, req Requester) (Track, error) {
	ref, err := Run(ctx, j.pool, func(ctx context.Context) (VideoRef, error) {
		return j.resolver.Resolve(ctx, query)
	})
	if err != nil {
		return Track{}, err
	}

	caching := j.DownloadMode()
	if caching {
		if e, ok := j.cache.Lookup(ref.ID); ok {
			j.cache.CancelEviction(ref.ID)
			return Track{
				VideoID:     ref.ID,
				Title:       e.Title,
				PageURL:     ref.URL,
				FilePath:    e.FilePath,
				RequestedBy: req.ID,
			}, nil
		}
	}

	meta, err := Run(ctx, j.pool, func(ctx context.Context) (Metadata, error) {
		return j.prober.Probe(ctx, ref.URL)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Track{}, ctx.Err()
		}
		return Track{}, &ResolutionError{Query: query, Err: err}
	}
	if meta.ID == "" {
		meta.ID = ref.ID
	}
	if meta.Title == "" {
		meta.Title = ref.Title
	}
	if meta.PageURL == "" {
		meta.PageURL = ref.URL
	}

	var usage int64
	if caching {
		usage = j.cache.TotalBytes()
	}

	d := j.limits.Evaluate(meta, req.Tier, usage, caching)
	switch d.Verdict {
	case Reject:
		return Track{}, d.Err()
	case AcceptNeedsConfirm:
		t := trackFrom(meta, req)
		t.NeedsConfirm = true
		t.EstimatedSize = d.Size
		return t, nil
	}

	t := trackFrom(meta, req)
	t.EstimatedSize = d.Size
	return j.fetch(ctx, t, caching)
}

// FetchConfirmed downloads a track whose size was approved by its requester.
// The single-file cap is not checked again.
func (j *Jukebox) FetchConfirmed(ctx context.Context, meta Metadata, req Requester) (Track, error) {
	t := trackFrom(meta, req)
	t.EstimatedSize = EstimateSize(meta)
	return j.fetch(ctx, t, j.DownloadMode())
}

func (j *Jukebox) fetch(ctx context.Context, t Track, caching bool) (Track, error) {
	if !caching {
		return t, nil
	}

	path, err := Run(ctx, j.pool, func(ctx context.Context) (string, error) {
		return j.downloader.Download(ctx, t.PageURL, j.dir)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Track{}, ctx.Err()
		}
		sys.LogMusicError(sys.MsgLogDownloadFail, t.VideoID, err)
		return t, nil
	}

	t.FilePath = path
	if err := j.cache.Put(t.VideoID, t.Title, path); err != nil {
		sys.LogCacheError(sys.MsgLogCacheSaveFail, err)
	}
	return t, nil
}

func trackFrom(meta Metadata, req Requester) Track {
	return Track{
		VideoID:     meta.ID,
		Title:       meta.Title,
		PageURL:     meta.PageURL,
		Duration:    meta.Duration,
		RequestedBy: req.ID,
	}
}

// Play starts t when nothing is playing, otherwise queues it at pos.
func (j *Jukebox) Play(t Track, pos Position) (Placement, error) {
	return j.sched.Submit(t, pos)
}

// ClearQueue empties the pending list and keeps it in the memory backup slot.
// An already empty queue returns nil and leaves the slot alone.
func (j *Jukebox) ClearQueue() ([]Track, error) {
	drained, err := j.sched.Clear()
	if err != nil || len(drained) == 0 {
		return nil, err
	}
	j.backups.Save(Backup{Queue: drained, SavedAt: j.now()})
	return drained, nil
}

// PurgeFiles deletes every cached file except the current track's.
func (j *Jukebox) PurgeFiles(ctx context.Context) (int, error) {
	st, err := j.sched.Status()
	if err != nil {
		return 0, err
	}
	keep := ""
	if st.Current != nil {
		keep = st.Current.VideoID
	}
	return Run(ctx, j.pool, func(context.Context) (int, error) {
		return j.cache.PurgeAll(keep)
	})
}

// RestoreQueue restores the memory backup, or the reboot file when there is
// none, and starts playback if the bot sits connected with nothing loaded.
func (j *Jukebox) RestoreQueue() (RestoreOrigin, int, error) {
	origin, n, err := j.backups.Restore(j.sched, j.now())
	if err != nil {
		return origin, 0, err
	}
	if _, derr := j.sched.DispatchNext(); derr != nil && !errors.Is(derr, ErrNotConnected) {
		return origin, n, derr
	}
	return origin, n, nil
}

// SaveForReboot writes the queue, current track included, to the backup file.
func (j *Jukebox) SaveForReboot() error {
	b, err := j.sched.Snapshot(true)
	if err != nil {
		return err
	}
	return j.backups.SaveFile(b)
}

// SweepCache drops cache entries older than CacheTTL.
func (j *Jukebox) SweepCache() int {
	return j.cache.SweepExpired(CacheTTL)
}

// Close stops pending eviction timers.
func (j *Jukebox) Close() {
	j.cache.Close()
}
