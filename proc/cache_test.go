package proc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))
	return p
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := OpenStore(filepath.Join(dir, "downloads.json"))
	t.Cleanup(s.Close)
	return s, dir
}

func TestStorePutPersistsManifest(t *testing.T) {
	s, dir := newTestStore(t)
	p := writeFile(t, dir, "abc12345678.webm", 10)

	require.NoError(t, s.Put("abc12345678", "Lofi Beats", p))

	data, err := os.ReadFile(filepath.Join(dir, "downloads.json"))
	require.NoError(t, err)
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "abc12345678")
	assert.Equal(t, "Lofi Beats", raw["abc12345678"]["title"])
	assert.Equal(t, p, raw["abc12345678"]["filepath"])
	assert.IsType(t, float64(0), raw["abc12345678"]["timestamp"])

	reopened := OpenStore(filepath.Join(dir, "downloads.json"))
	e, ok := reopened.Lookup("abc12345678")
	require.True(t, ok)
	assert.Equal(t, "Lofi Beats", e.Title)
}

func TestStoreLookupPurgesMissingFile(t *testing.T) {
	s, dir := newTestStore(t)
	p := writeFile(t, dir, "gone.webm", 1)
	require.NoError(t, s.Put("goneeeeeeee", "Gone", p))
	require.NoError(t, os.Remove(p))

	_, ok := s.Lookup("goneeeeeeee")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	s.Close()
	reopened := OpenStore(filepath.Join(dir, "downloads.json"))
	assert.Equal(t, 0, reopened.Len())
}

func TestStoreCorruptManifestStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "downloads.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := OpenStore(path)
	assert.Equal(t, 0, s.Len())
}

func TestStoreEvictIsIdempotent(t *testing.T) {
	s, dir := newTestStore(t)
	p := writeFile(t, dir, "a.webm", 1)
	require.NoError(t, s.Put("aaaaaaaaaaa", "A", p))

	require.NoError(t, s.Evict("aaaaaaaaaaa"))
	assert.NoFileExists(t, p)
	require.NoError(t, s.Evict("aaaaaaaaaaa"))
	require.NoError(t, s.Evict("neverseen00"))
}

func TestStoreDelayedEviction(t *testing.T) {
	s, dir := newTestStore(t)
	p := writeFile(t, dir, "a.webm", 1)
	require.NoError(t, s.Put("aaaaaaaaaaa", "A", p))

	assert.False(t, s.ScheduleDelayedEviction("unknown0000", time.Millisecond))

	require.True(t, s.ScheduleDelayedEviction("aaaaaaaaaaa", 20*time.Millisecond))
	assert.True(t, s.PendingEviction("aaaaaaaaaaa"))

	require.Eventually(t, func() bool {
		_, err := os.Stat(p)
		return os.IsNotExist(err)
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s.PendingEviction("aaaaaaaaaaa"))
	assert.Equal(t, 0, s.Len())
}

func TestStoreEvictionCancelledOnReuse(t *testing.T) {
	s, dir := newTestStore(t)
	p := writeFile(t, dir, "a.webm", 1)
	require.NoError(t, s.Put("aaaaaaaaaaa", "A", p))

	require.True(t, s.ScheduleDelayedEviction("aaaaaaaaaaa", 30*time.Millisecond))
	s.CancelEviction("aaaaaaaaaaa")
	assert.False(t, s.PendingEviction("aaaaaaaaaaa"))

	time.Sleep(80 * time.Millisecond)
	assert.FileExists(t, p)
	_, ok := s.Lookup("aaaaaaaaaaa")
	assert.True(t, ok)
}

func TestStoreRearmReplacesTimer(t *testing.T) {
	s, dir := newTestStore(t)
	p := writeFile(t, dir, "a.webm", 1)
	require.NoError(t, s.Put("aaaaaaaaaaa", "A", p))

	require.True(t, s.ScheduleDelayedEviction("aaaaaaaaaaa", 30*time.Millisecond))
	require.True(t, s.ScheduleDelayedEviction("aaaaaaaaaaa", time.Hour))

	time.Sleep(80 * time.Millisecond)
	assert.FileExists(t, p)
	assert.True(t, s.PendingEviction("aaaaaaaaaaa"))
}

func TestStorePutCancelsEviction(t *testing.T) {
	s, dir := newTestStore(t)
	p := writeFile(t, dir, "a.webm", 1)
	require.NoError(t, s.Put("aaaaaaaaaaa", "A", p))
	require.True(t, s.ScheduleDelayedEviction("aaaaaaaaaaa", time.Hour))

	require.NoError(t, s.Put("aaaaaaaaaaa", "A", p))
	assert.False(t, s.PendingEviction("aaaaaaaaaaa"))
}

func TestStoreRecacheSurvivesOriginalDelay(t *testing.T) {
	s, dir := newTestStore(t)
	p := writeFile(t, dir, "a.webm", 1)
	require.NoError(t, s.Put("aaaaaaaaaaa", "A", p))
	require.True(t, s.ScheduleDelayedEviction("aaaaaaaaaaa", 30*time.Millisecond))

	require.NoError(t, s.Put("aaaaaaaaaaa", "A", p))

	time.Sleep(100 * time.Millisecond)
	assert.FileExists(t, p)
	_, ok := s.Lookup("aaaaaaaaaaa")
	assert.True(t, ok)
}

func TestStoreSweepExpired(t *testing.T) {
	s, dir := newTestStore(t)
	now := time.Now()

	s.now = func() time.Time { return now.Add(-2 * time.Hour) }
	old := writeFile(t, dir, "old.webm", 1)
	require.NoError(t, s.Put("oldoldoldol", "Old", old))

	s.now = func() time.Time { return now.Add(-10 * time.Minute) }
	fresh := writeFile(t, dir, "fresh.webm", 1)
	require.NoError(t, s.Put("freshfresh0", "Fresh", fresh))

	s.now = func() time.Time { return now }
	assert.Equal(t, 1, s.SweepExpired(CacheTTL))
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.Equal(t, 1, s.Len())
}

func TestStorePurgeAllKeepsCurrent(t *testing.T) {
	s, dir := newTestStore(t)
	a := writeFile(t, dir, "a.webm", 1)
	b := writeFile(t, dir, "b.webm", 1)
	c := writeFile(t, dir, "c.webm", 1)
	require.NoError(t, s.Put("aaaaaaaaaaa", "A", a))
	require.NoError(t, s.Put("bbbbbbbbbbb", "B", b))
	require.NoError(t, s.Put("ccccccccccc", "C", c))
	require.NoError(t, os.Remove(c))

	n, err := s.PurgeAll("aaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, a)
	assert.NoFileExists(t, b)
	assert.Equal(t, 1, s.Len())
}

func TestStoreTotalBytes(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, s.Put("aaaaaaaaaaa", "A", writeFile(t, dir, "a.webm", 100)))
	require.NoError(t, s.Put("bbbbbbbbbbb", "B", writeFile(t, dir, "b.webm", 250)))

	assert.Equal(t, int64(350), s.TotalBytes())
}
