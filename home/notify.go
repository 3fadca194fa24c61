package home

import (
	"fmt"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

// ChannelNotifier posts scheduler events to the text channel the last music
// command came from. Posts never block the scheduler.
type ChannelNotifier struct {
	client *bot.Client

	mu      sync.Mutex
	channel snowflake.ID
}

func NewChannelNotifier(client *bot.Client) *ChannelNotifier {
	return &ChannelNotifier{client: client}
}

func (n *ChannelNotifier) Bind(channelID snowflake.ID) {
	n.mu.Lock()
	n.channel = channelID
	n.mu.Unlock()
}

func (n *ChannelNotifier) Channel() snowflake.ID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channel
}

func (n *ChannelNotifier) NowPlaying(t proc.Track) {
	n.post(sys.NowPlayingMessage(fmt.Sprintf(sys.MsgMusicNowPlaying, t.Title, t.PageURL)))
}

func (n *ChannelNotifier) QueueEmpty() {
	n.post(sys.TextMessage(sys.MsgMusicQueueEnded))
}

func (n *ChannelNotifier) PlaybackFailed(proc.Track, error) {
	n.post(sys.TextMessage(sys.MsgMusicNextFailed))
}

func (n *ChannelNotifier) post(msg discord.MessageCreate) {
	channelID := n.Channel()
	if channelID == 0 || n.client == nil {
		return
	}
	sys.SafeGo(func() {
		if _, err := n.client.Rest.CreateMessage(channelID, msg); err != nil {
			sys.LogMusicError(sys.MsgLogNotifyFail, err)
		}
	})
}
