package proc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu    sync.Mutex
	meta  Metadata
	calls int
}

func (f *fakeProber) Probe(_ context.Context, pageURL string) (Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m := f.meta
	if m.ID == "" {
		m.ID, _ = ParseVideoID(pageURL)
	}
	return m, nil
}

type fakeDownloader struct {
	mu    sync.Mutex
	fail  error
	calls int
}

func (d *fakeDownloader) Download(_ context.Context, pageURL, dir string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.fail != nil {
		return "", d.fail
	}
	id, _ := ParseVideoID(pageURL)
	p := filepath.Join(dir, id+".webm")
	return p, os.WriteFile(p, []byte("audio"), 0o644)
}

type jukeboxFixture struct {
	jb     *Jukebox
	out    *fakeOutput
	notify *fakeNotifier
	prober *fakeProber
	dl     *fakeDownloader
	store  *Store
	dir    string
}

var (
	normalUser     = Requester{ID: snowflake.ID(100), Name: "listener", Tier: TierNormal}
	privilegedUser = Requester{ID: snowflake.ID(200), Name: "admin", Tier: TierPrivileged}
)

func newJukebox(t *testing.T, download bool) *jukeboxFixture {
	t.Helper()
	dir := t.TempDir()
	f := &jukeboxFixture{
		out:    &fakeOutput{},
		notify: newFakeNotifier(),
		prober: &fakeProber{meta: Metadata{Title: "Lofi Beats", Duration: 3 * time.Minute, Filesize: 3 << 20}},
		dl:     &fakeDownloader{},
		dir:    dir,
	}
	f.store = OpenStore(filepath.Join(dir, "downloads.json"))
	sched := NewScheduler(f.out, f.store, f.notify)

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	f.jb = New(Deps{
		Resolver:    NewResolver(&fakeSearcher{name: "fake", results: []SearchResult{{VideoID: "abc12345678", Title: "Lofi Beats"}}}),
		Prober:      f.prober,
		Downloader:  f.dl,
		Cache:       f.store,
		Scheduler:   sched,
		Backups:     NewBackupManager(filepath.Join(dir, "queue_backup.json")),
		Confirms:    NewConfirmations(),
		DownloadDir: dir,
		Download:    download,
	})
	t.Cleanup(func() {
		cancel()
		<-sched.Done()
		f.jb.Close()
	})
	return f
}

func TestJukeboxPlaysSearchResult(t *testing.T) {
	f := newJukebox(t, true)
	require.NoError(t, f.jb.Scheduler().Connect())

	tr, err := f.jb.Prepare(context.Background(), "lofi beats", normalUser)
	require.NoError(t, err)
	assert.Equal(t, "abc12345678", tr.VideoID)
	assert.Equal(t, "Lofi Beats", tr.Title)
	assert.Equal(t, normalUser.ID, tr.RequestedBy)
	assert.FileExists(t, tr.FilePath)

	pl, err := f.jb.Play(tr, Back)
	require.NoError(t, err)
	assert.True(t, pl.Started)
	assert.Equal(t, "playing:abc12345678", f.notify.next(t))

	st, err := f.jb.Status()
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, st.State)
	require.NotNil(t, st.Current)
	assert.Equal(t, "abc12345678", st.Current.VideoID)

	srcs := f.out.sources()
	require.Len(t, srcs, 1)
	assert.Equal(t, tr.FilePath, srcs[0].Path)
}

func TestJukeboxRejectsLongTrackForNormalTier(t *testing.T) {
	f := newJukebox(t, true)
	require.NoError(t, f.jb.Scheduler().Connect())
	f.prober.meta.Duration = 4 * time.Hour

	_, err := f.jb.Prepare(context.Background(), "lofi beats", normalUser)
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "duration exceeds normal-tier limit", qe.Reason)
	assert.Zero(t, f.dl.calls)

	st, err := f.jb.Status()
	require.NoError(t, err)
	assert.Empty(t, st.Pending)
	assert.Equal(t, StateEmpty, st.State)
}

func TestJukeboxLargeFileNeedsConfirmation(t *testing.T) {
	f := newJukebox(t, true)
	f.prober.meta.Filesize = 300 << 20

	tr, err := f.jb.Prepare(context.Background(), "lofi beats", privilegedUser)
	require.NoError(t, err)
	assert.True(t, tr.NeedsConfirm)
	assert.Equal(t, int64(300<<20), tr.EstimatedSize)
	assert.Zero(t, f.dl.calls)

	confirmed, err := f.jb.FetchConfirmed(context.Background(), tr.Metadata(), privilegedUser)
	require.NoError(t, err)
	assert.False(t, confirmed.NeedsConfirm)
	assert.FileExists(t, confirmed.FilePath)
	assert.Equal(t, 1, f.dl.calls)

	_, err = f.jb.Prepare(context.Background(), "lofi beats", normalUser)
	assert.NoError(t, err, "cached tracks skip the quota check")
}

func TestJukeboxCacheHitSkipsProbe(t *testing.T) {
	f := newJukebox(t, true)

	_, err := f.jb.Prepare(context.Background(), "lofi beats", normalUser)
	require.NoError(t, err)
	require.True(t, f.store.ScheduleDelayedEviction("abc12345678", time.Hour))

	tr, err := f.jb.Prepare(context.Background(), "https://youtu.be/abc12345678", normalUser)
	require.NoError(t, err)
	assert.Equal(t, 1, f.prober.calls)
	assert.Equal(t, 1, f.dl.calls)
	assert.Equal(t, "Lofi Beats", tr.Title)
	assert.False(t, f.store.PendingEviction("abc12345678"))
}

func TestJukeboxDownloadFailureStreams(t *testing.T) {
	f := newJukebox(t, true)
	f.dl.fail = errors.New("403")

	tr, err := f.jb.Prepare(context.Background(), "lofi beats", normalUser)
	require.NoError(t, err)
	assert.Empty(t, tr.FilePath)
	assert.Equal(t, WatchURL("abc12345678"), tr.PageURL)
	assert.Equal(t, 0, f.store.Len())
}

func TestJukeboxStreamMode(t *testing.T) {
	f := newJukebox(t, false)

	tr, err := f.jb.Prepare(context.Background(), "lofi beats", normalUser)
	require.NoError(t, err)
	assert.Empty(t, tr.FilePath)
	assert.Zero(t, f.dl.calls)

	assert.True(t, f.jb.ToggleDownloadMode())
	assert.True(t, f.jb.DownloadMode())
	assert.False(t, f.jb.ToggleDownloadMode())
}

func TestJukeboxClearAndRestore(t *testing.T) {
	f := newJukebox(t, false)
	sched := f.jb.Scheduler()
	require.NoError(t, sched.Connect())

	_, err := f.jb.Enqueue(track("aaaaaaaaaaa"), Back)
	require.NoError(t, err)
	_, err = f.jb.Enqueue(track("bbbbbbbbbbb"), Back)
	require.NoError(t, err)

	drained, err := f.jb.ClearQueue()
	require.NoError(t, err)
	assert.Len(t, drained, 2)

	drained, err = f.jb.ClearQueue()
	require.NoError(t, err)
	assert.Empty(t, drained)
	_, ok := f.jb.Backups().Memory()
	assert.True(t, ok, "clearing an empty queue keeps the previous backup")

	origin, n, err := f.jb.RestoreQueue()
	require.NoError(t, err)
	assert.Equal(t, FromMemory, origin)
	assert.Equal(t, 2, n)
	assert.Equal(t, "playing:aaaaaaaaaaa", f.notify.next(t))

	st, err := f.jb.Status()
	require.NoError(t, err)
	require.Len(t, st.Pending, 1)
	assert.Equal(t, "bbbbbbbbbbb", st.Pending[0].VideoID)
}

func TestJukeboxSaveForReboot(t *testing.T) {
	f := newJukebox(t, false)
	require.NoError(t, f.jb.Scheduler().Connect())

	_, err := f.jb.Play(track("aaaaaaaaaaa"), Back)
	require.NoError(t, err)
	f.notify.next(t)
	_, err = f.jb.Enqueue(track("bbbbbbbbbbb"), Back)
	require.NoError(t, err)

	require.NoError(t, f.jb.SaveForReboot())
	b, err := f.jb.Backups().LoadFile()
	require.NoError(t, err)
	require.NotNil(t, b.Current)
	assert.Equal(t, "aaaaaaaaaaa", b.Current.VideoID)
	require.Len(t, b.Queue, 1)
}

func TestJukeboxPurgeKeepsCurrent(t *testing.T) {
	f := newJukebox(t, true)
	require.NoError(t, f.jb.Scheduler().Connect())

	cur, err := f.jb.Prepare(context.Background(), "lofi beats", normalUser)
	require.NoError(t, err)
	_, err = f.jb.Play(cur, Back)
	require.NoError(t, err)
	f.notify.next(t)

	other := filepath.Join(f.dir, "other.webm")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, f.store.Put("zzzzzzzzzzz", "Other", other))

	n, err := f.jb.PurgeFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, cur.FilePath)
	assert.NoFileExists(t, other)
}
