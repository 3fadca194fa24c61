package home

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

func handleConfirmAnswer(event *events.ComponentInteractionCreate) {
	id, accept, ok := sys.ParseConfirmID(event.Data.CustomID())
	if !ok {
		return
	}

	pc, err := player.Jukebox.Confirmations().Confirm(id, event.User().ID)
	switch {
	case errors.Is(err, proc.ErrNotRequester):
		sys.Respond(event, sys.MsgConfirmNotYours, true)
		return
	case errors.Is(err, proc.ErrUnknownConfirmation):
		sys.Respond(event, sys.MsgConfirmExpired, true)
		return
	case errors.Is(err, proc.ErrConfirmationTimeout):
		closeQuestion(event, id, timeoutText(pc.Kind))
		return
	}

	switch pc.Kind {
	case proc.ConfirmLargeDownload:
		p, _ := pc.Payload.(largeDownload)
		if !accept {
			closeQuestion(event, id, sys.MsgMusicDownloadCancel)
			return
		}
		closeQuestion(event, id, fmt.Sprintf(sys.MsgMusicConfirmLarge, p.Track.Title, sys.FormatMB(p.Track.EstimatedSize)))
		sendFollowup(event, finishLargeDownload(p))

	case proc.ConfirmDeleteFiles:
		if !accept {
			closeQuestion(event, id, sys.MsgQueueClearedKeep)
			return
		}
		ctx, cancel := context.WithTimeout(sys.AppContext, time.Minute)
		defer cancel()
		n, err := player.Jukebox.PurgeFiles(ctx)
		if err != nil {
			sys.LogCacheError(sys.MsgLogCacheRemoveFail, "cache", err)
		}
		closeQuestion(event, id, fmt.Sprintf(sys.MsgQueueClearedPurged, n))

	case proc.ConfirmReboot:
		if !accept {
			closeQuestion(event, id, sys.MsgAdminRebootCancelled)
			return
		}
		closeQuestion(event, id, sys.MsgAdminRebooting)
		reboot(event.User().Username, event.User().ID)
	}
}

// closeQuestion rewrites the prompt and greys out its buttons.
func closeQuestion(event *events.ComponentInteractionCreate, id, content string) {
	_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetContent(content).
		AddComponents(sys.ConfirmRow(id, true)).
		Build())
}

func timeoutText(kind proc.ConfirmKind) string {
	switch kind {
	case proc.ConfirmReboot:
		return sys.MsgAdminRebootTimeout
	case proc.ConfirmDeleteFiles:
		return sys.MsgQueueClearedTimeout
	}
	return sys.MsgMusicConfirmTimeout
}

// startConfirmationReaper closes unanswered questions once their deadline
// passes.
func startConfirmationReaper(_ context.Context, client *bot.Client) {
	sys.RegisterDaemon(sys.LogQueue, func(ctx context.Context) (bool, func(), func()) {
		if player == nil {
			return false, nil, nil
		}
		ctx, cancel := context.WithCancel(ctx)
		return true, func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					for _, pc := range player.Jukebox.Confirmations().Expire() {
						expireQuestion(client, pc)
					}
				}
			}
		}, cancel
	})
}

func expireQuestion(client *bot.Client, pc proc.PendingConfirmation) {
	if pc.MessageID == 0 {
		return
	}
	_, err := client.Rest.UpdateMessage(pc.ChannelID, pc.MessageID, discord.NewMessageUpdateBuilder().
		SetContent(timeoutText(pc.Kind)).
		AddComponents(sys.ConfirmRow(pc.ID, true)).
		Build())
	if err != nil {
		sys.LogQueueError(sys.MsgLogNotifyFail, err)
	}
}
