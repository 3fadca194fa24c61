package home

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

const presenceInterval = 15 * time.Second

func init() {
	sys.OnClientReady(func(_ context.Context, client *bot.Client) {
		sys.RegisterDaemon(sys.LogMusic, func(ctx context.Context) (bool, func(), func()) {
			if player == nil {
				return false, nil, nil
			}
			ctx, cancel := context.WithCancel(ctx)
			return true, func() { runPresence(ctx, client) }, cancel
		})
	})
}

// runPresence mirrors the player in the bot's activity line.
func runPresence(ctx context.Context, client *bot.Client) {
	last := ""
	for {
		if st, err := player.Jukebox.Status(); err == nil {
			if text := presenceText(st); text != last {
				last = text
				if err := client.SetPresence(ctx,
					gateway.WithOnlineStatus(discord.OnlineStatusOnline),
					gateway.WithListeningActivity(text),
				); err != nil {
					sys.LogMusicError("Failed to update presence: %v", err)
				}
			}
		}
		select {
		case <-time.After(presenceInterval):
		case <-ctx.Done():
			return
		}
	}
}

func presenceText(st proc.Status) string {
	switch {
	case st.State == proc.StatePaused && st.Current != nil:
		return sys.Truncate("⏸ "+st.Current.Title, 128)
	case st.State == proc.StatePlaying && st.Current != nil:
		if n := len(st.Pending); n > 0 {
			return sys.Truncate(fmt.Sprintf("%s (+%d queued)", st.Current.Title, n), 128)
		}
		return sys.Truncate(st.Current.Title, 128)
	}
	return "/play"
}
