package home

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
	"github.com/stretchr/testify/assert"
)

func testTrack(id, title string) proc.Track {
	return proc.Track{VideoID: id, Title: title, PageURL: proc.WatchURL(id)}
}

func TestIsPrivileged(t *testing.T) {
	cfg := &sys.Config{
		AdminRoleName: "Bottiadmin",
		AdminUserID:   snowflake.ID(42),
		AdminUsername: "boss",
		OwnerIDs:      []string{"7"},
	}

	tests := []struct {
		name     string
		id       snowflake.ID
		username string
		roles    []string
		want     bool
	}{
		{"admin id", 42, "someone", nil, true},
		{"admin username", 1, "boss", nil, true},
		{"owner", 7, "owner", nil, true},
		{"admin role", 1, "someone", []string{"DJ", "Bottiadmin"}, true},
		{"role name is case sensitive", 1, "someone", []string{"bottiadmin"}, false},
		{"normal user", 1, "someone", []string{"DJ"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPrivileged(cfg, tt.id, tt.username, tt.roles))
		})
	}

	assert.False(t, isPrivileged(nil, 42, "boss", []string{"Bottiadmin"}))
	assert.False(t, isPrivileged(&sys.Config{}, 0, "", []string{""}))
}

func TestPlacementText(t *testing.T) {
	tr := testTrack("abc12345678", "Lofi Beats")

	assert.Equal(t, fmt.Sprintf(sys.MsgMusicRequested, tr.Title, tr.PageURL),
		placementText(tr, proc.Placement{Started: true}, proc.Back, nil))
	assert.Equal(t, fmt.Sprintf(sys.MsgMusicAdded, tr.Title, tr.PageURL),
		placementText(tr, proc.Placement{Position: 3}, proc.Back, nil))
	assert.Equal(t, fmt.Sprintf(sys.MsgMusicAddedNext, tr.Title, tr.PageURL),
		placementText(tr, proc.Placement{Position: 1}, proc.Front, nil))
	assert.Equal(t, sys.MsgMusicNotConnected,
		placementText(tr, proc.Placement{}, proc.Back, proc.ErrNotConnected))
	assert.Equal(t, sys.MsgMusicPlayFailed,
		placementText(tr, proc.Placement{}, proc.Back, errors.New("boom")))
}

func TestDescribeRequestError(t *testing.T) {
	assert.Equal(t, fmt.Sprintf(sys.MsgMusicNotFound, "xyz"),
		describeRequestError("xyz", proc.ErrNotFound))
	assert.Equal(t, fmt.Sprintf(sys.MsgMusicRejected, "file too large"),
		describeRequestError("xyz", fmt.Errorf("prepare: %w", &proc.QuotaError{Reason: "file too large"})))
	assert.Equal(t, fmt.Sprintf(sys.MsgMusicResolveFailed, "xyz", "blocked"),
		describeRequestError("xyz", &proc.ResolutionError{Query: "xyz", Err: errors.New("blocked")}))
	assert.Equal(t, sys.MsgMusicNotConnected, describeRequestError("xyz", proc.ErrNotConnected))
	assert.Equal(t, sys.MsgMusicPlayFailed, describeRequestError("xyz", errors.New("other")))
}

func TestFormatPending(t *testing.T) {
	assert.Equal(t, sys.MsgQueueEmpty, formatPending(nil))

	out := formatPending([]proc.Track{testTrack("aaaaaaaaaaa", "A"), testTrack("bbbbbbbbbbb", "B")})
	lines := strings.Split(out, "\n")
	assert.Equal(t, []string{
		sys.MsgQueueHeader,
		fmt.Sprintf(sys.MsgQueueLine, 1, "A", proc.WatchURL("aaaaaaaaaaa")),
		fmt.Sprintf(sys.MsgQueueLine, 2, "B", proc.WatchURL("bbbbbbbbbbb")),
	}, lines)
}

func TestFormatPendingTruncates(t *testing.T) {
	var pending []proc.Track
	for i := range maxListLines + 5 {
		pending = append(pending, testTrack(fmt.Sprintf("id%09d", i), fmt.Sprintf("T%d", i)))
	}
	lines := strings.Split(formatPending(pending), "\n")
	assert.Len(t, lines, maxListLines+2)
	assert.Equal(t, fmt.Sprintf(sys.MsgQueueMore, 5), lines[len(lines)-1])
}

func TestHistoryStatus(t *testing.T) {
	a := testTrack("aaaaaaaaaaa", "A")
	b := testTrack("bbbbbbbbbbb", "B")
	c := testTrack("ccccccccccc", "C")
	d := testTrack("ddddddddddd", "D")
	st := proc.Status{
		State:   proc.StatePlaying,
		Current: &b,
		Pending: []proc.Track{c},
		History: []proc.Track{a, b, c, d},
		Played:  map[string]bool{"aaaaaaaaaaa": true, "bbbbbbbbbbb": true},
	}

	assert.Equal(t, "(played)", historyStatus(st, a))
	assert.Equal(t, "(playing now)", historyStatus(st, b))
	assert.Equal(t, "(queued)", historyStatus(st, c))
	assert.Equal(t, "(removed)", historyStatus(st, d))

	st.State = proc.StateEmpty
	assert.Equal(t, "(played)", historyStatus(st, b))

	out := formatHistory(st)
	assert.True(t, strings.HasPrefix(out, sys.MsgHistoryHeader))
	assert.Contains(t, out, fmt.Sprintf(sys.MsgHistoryLine, 4, "D", d.PageURL, "(removed)"))
	assert.Equal(t, sys.MsgHistoryEmpty, formatHistory(proc.Status{}))
}

func TestRestoreText(t *testing.T) {
	assert.Equal(t, sys.MsgQueueRestoredMemory, restoreText(proc.FromMemory, nil))
	assert.Equal(t, sys.MsgQueueRestoredFile, restoreText(proc.FromFile, nil))
	assert.Equal(t, sys.MsgQueueRestoreBusy, restoreText(proc.FromMemory, proc.ErrQueueNotEmpty))
	assert.Equal(t, sys.MsgQueueRestoreStale, restoreText(proc.FromFile, proc.ErrStale))
	assert.Equal(t, sys.MsgQueueRestoreNone, restoreText(proc.FromMemory, proc.ErrNoBackup))
	assert.Equal(t, sys.MsgQueueRestoreFailed, restoreText(proc.FromFile, errors.New("disk")))
}

func TestTimeoutText(t *testing.T) {
	assert.Equal(t, sys.MsgAdminRebootTimeout, timeoutText(proc.ConfirmReboot))
	assert.Equal(t, sys.MsgQueueClearedTimeout, timeoutText(proc.ConfirmDeleteFiles))
	assert.Equal(t, sys.MsgMusicConfirmTimeout, timeoutText(proc.ConfirmLargeDownload))
}

func TestControlErrorText(t *testing.T) {
	assert.Equal(t, sys.MsgMusicNoPrevious, controlErrorText(proc.ErrNoPrevious))
	assert.Equal(t, sys.MsgMusicNotConnected, controlErrorText(proc.ErrNotConnected))
	assert.Equal(t, sys.MsgMusicNothingPlaying, controlErrorText(errors.New("idle")))
}

func TestPresenceText(t *testing.T) {
	cur := testTrack("aaaaaaaaaaa", "Lofi Beats")

	assert.Equal(t, "/play", presenceText(proc.Status{State: proc.StateEmpty}))
	assert.Equal(t, "Lofi Beats", presenceText(proc.Status{State: proc.StatePlaying, Current: &cur}))
	assert.Equal(t, "Lofi Beats (+2 queued)", presenceText(proc.Status{
		State:   proc.StatePlaying,
		Current: &cur,
		Pending: []proc.Track{cur, cur},
	}))
	assert.Equal(t, "⏸ Lofi Beats", presenceText(proc.Status{State: proc.StatePaused, Current: &cur}))
}

func TestModeName(t *testing.T) {
	assert.Equal(t, sys.MsgMusicModeDownload, modeName(true))
	assert.Equal(t, sys.MsgMusicModeStream, modeName(false))
}

func TestRequestModePosition(t *testing.T) {
	assert.Equal(t, proc.Front, requestPlayTop.position())
	assert.Equal(t, proc.Back, requestPlay.position())
	assert.Equal(t, proc.Back, requestEnqueue.position())
}
