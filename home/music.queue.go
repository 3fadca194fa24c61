package home

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

// maxListLines caps queue listings so they fit one message.
const maxListLines = 30

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "clear_queue",
		Description: "Clear the song queue",
		Contexts:    guildOnly,
	}, handleQueueClear)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "purgequeue",
		Description: "Delete all downloaded song files except the current one",
		Contexts:    guildOnly,
	}, handleQueuePurge)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "restorequeue",
		Description: "Restore the last cleared or saved queue",
		Contexts:    guildOnly,
	}, handleQueueRestore)

	sys.OnClientReady(startCacheSweeper)
}

// startCacheSweeper drops expired downloads every CacheTTL.
func startCacheSweeper(_ context.Context, _ *bot.Client) {
	sys.RegisterDaemon(sys.LogCache, func(ctx context.Context) (bool, func(), func()) {
		if player == nil {
			return false, nil, nil
		}
		ctx, cancel := context.WithCancel(ctx)
		return true, func() {
			ticker := time.NewTicker(proc.CacheTTL)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := player.Jukebox.SweepCache(); n > 0 {
						sys.LogCache(sys.MsgLogCacheSwept, n)
					}
				}
			}
		}, cancel
	})
}

func handleQueueList(event *events.ApplicationCommandInteractionCreate) {
	st, err := player.Jukebox.Status()
	if err != nil {
		sys.Respond(event, sys.MsgQueueEmpty, false)
		return
	}
	sys.Respond(event, formatPending(st.Pending), false)
}

func handleQueueHistory(event *events.ApplicationCommandInteractionCreate) {
	st, err := player.Jukebox.Status()
	if err != nil {
		sys.Respond(event, sys.MsgHistoryEmpty, false)
		return
	}
	sys.Respond(event, formatHistory(st), false)
}

func formatPending(pending []proc.Track) string {
	if len(pending) == 0 {
		return sys.MsgQueueEmpty
	}
	var b strings.Builder
	b.WriteString(sys.MsgQueueHeader)
	for i, t := range pending {
		if i == maxListLines {
			b.WriteString("\n")
			fmt.Fprintf(&b, sys.MsgQueueMore, len(pending)-i)
			break
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, sys.MsgQueueLine, i+1, t.Title, t.PageURL)
	}
	return b.String()
}

// historyStatus labels one track of the session history.
func historyStatus(st proc.Status, t proc.Track) string {
	if st.State.Active() && st.Current != nil && st.Current.VideoID == t.VideoID {
		return "(playing now)"
	}
	if st.Played[t.VideoID] {
		return "(played)"
	}
	for _, p := range st.Pending {
		if p.VideoID == t.VideoID {
			return "(queued)"
		}
	}
	return "(removed)"
}

func formatHistory(st proc.Status) string {
	if len(st.History) == 0 {
		return sys.MsgHistoryEmpty
	}
	var b strings.Builder
	b.WriteString(sys.MsgHistoryHeader)
	for i, t := range st.History {
		if i == maxListLines {
			b.WriteString("\n")
			fmt.Fprintf(&b, sys.MsgQueueMore, len(st.History)-i)
			break
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, sys.MsgHistoryLine, i+1, t.Title, t.PageURL, historyStatus(st, t))
	}
	return b.String()
}

func handleQueueClear(event *events.ApplicationCommandInteractionCreate) {
	_ = event.DeferCreateMessage(false)
	reply := func(content string) {
		_ = sys.EditDeferred(event.Client(), event.ApplicationID(), event.Token(), content)
	}

	drained, err := player.Jukebox.ClearQueue()
	if err != nil || len(drained) == 0 {
		reply(sys.MsgQueueNothingToClear)
		return
	}

	req := requesterOf(event.Client(), event.GuildID(), event.User(), event.Member())
	if req.Tier != proc.TierPrivileged {
		reply(sys.MsgQueueCleared)
		return
	}

	confirms := player.Jukebox.Confirmations()
	pc := confirms.Request(proc.ConfirmDeleteFiles, req.ID, 0, nil)
	msg, err := sys.AskDeferred(event.Client(), event.ApplicationID(), event.Token(), sys.MsgQueueClearedAsk, pc.ID)
	if err != nil {
		sys.LogQueueError(sys.MsgLogNotifyFail, err)
		return
	}
	confirms.Attach(pc.ID, msg.ChannelID, msg.ID)
}

func handleQueuePurge(event *events.ApplicationCommandInteractionCreate) {
	_ = event.DeferCreateMessage(false)

	ctx, cancel := context.WithTimeout(sys.AppContext, time.Minute)
	defer cancel()
	n, err := player.Jukebox.PurgeFiles(ctx)
	if err != nil {
		sys.LogCacheError(sys.MsgLogCacheRemoveFail, "cache", err)
	}
	_ = sys.EditDeferred(event.Client(), event.ApplicationID(), event.Token(), fmt.Sprintf(sys.MsgQueuePurged, n))
}

func handleQueueRestore(event *events.ApplicationCommandInteractionCreate) {
	if _, ok := requireAdmin(event); !ok {
		return
	}
	origin, _, err := player.Jukebox.RestoreQueue()
	sys.Respond(event, restoreText(origin, err), false)
}

func restoreText(origin proc.RestoreOrigin, err error) string {
	switch {
	case err == nil && origin == proc.FromFile:
		return sys.MsgQueueRestoredFile
	case err == nil:
		return sys.MsgQueueRestoredMemory
	case errors.Is(err, proc.ErrQueueNotEmpty):
		return sys.MsgQueueRestoreBusy
	case errors.Is(err, proc.ErrStale):
		return sys.MsgQueueRestoreStale
	case errors.Is(err, proc.ErrNoBackup):
		return sys.MsgQueueRestoreNone
	}
	sys.LogQueueError(sys.MsgGenericError, err)
	return sys.MsgQueueRestoreFailed
}

// requireAdmin answers with a denial and returns false for normal-tier users.
func requireAdmin(event *events.ApplicationCommandInteractionCreate) (proc.Requester, bool) {
	req := requesterOf(event.Client(), event.GuildID(), event.User(), event.Member())
	if req.Tier != proc.TierPrivileged {
		sys.Respond(event, sys.MsgAdminDenied, true)
		return req, false
	}
	return req, true
}
