package home

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

type requestMode int

const (
	requestPlay requestMode = iota
	requestPlayTop
	requestEnqueue
)

func (m requestMode) position() proc.Position {
	if m == requestPlayTop {
		return proc.Front
	}
	return proc.Back
}

// requestTimeout bounds resolution plus download of one request.
const requestTimeout = 10 * time.Minute

var errNotInVoice = errors.New("requester is not in a voice channel")

// largeDownload is the payload of a pending ConfirmLargeDownload.
type largeDownload struct {
	Track     proc.Track
	Requester proc.Requester
	Position  proc.Position
}

func handleMusicJoin(event *events.ApplicationCommandInteractionCreate) {
	_ = event.DeferCreateMessage(false)
	player.Notify.Bind(event.Channel().ID())

	channelID, err := joinRequester(event, true)
	content := fmt.Sprintf(sys.MsgMusicJoined, channelMention(channelID))
	if err != nil {
		content = joinErrorText(channelID, err)
	}
	_ = sys.EditDeferred(event.Client(), event.ApplicationID(), event.Token(), content)
}

// joinRequester moves the bot to the caller's voice channel. Unless force is
// set, an existing connection is kept as is.
func joinRequester(event *events.ApplicationCommandInteractionCreate, force bool) (snowflake.ID, error) {
	if current := player.Voice.ChannelID(); current != 0 && !force {
		st, err := player.Jukebox.Status()
		if err == nil && st.State.Connected() {
			return current, nil
		}
	}

	if event.GuildID() == nil {
		return 0, errNotInVoice
	}
	vs, ok := event.Client().Caches.VoiceState(*event.GuildID(), event.User().ID)
	if !ok || vs.ChannelID == nil {
		return 0, errNotInVoice
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, time.Minute)
	defer cancel()
	if err := player.Voice.Join(ctx, *event.GuildID(), *vs.ChannelID); err != nil {
		return *vs.ChannelID, err
	}
	if err := player.Jukebox.Scheduler().Connect(); err != nil {
		return *vs.ChannelID, err
	}
	return *vs.ChannelID, nil
}

func joinErrorText(channelID snowflake.ID, err error) string {
	if errors.Is(err, errNotInVoice) {
		return sys.MsgMusicNotInVoice
	}
	return fmt.Sprintf(sys.MsgMusicJoinFail, channelMention(channelID))
}

func channelMention(id snowflake.ID) string {
	return fmt.Sprintf("<#%s>", id)
}

func handleMusicRequest(event *events.ApplicationCommandInteractionCreate, mode requestMode) {
	data := event.SlashCommandInteractionData()
	query, _ := data.OptString("query")

	_ = event.DeferCreateMessage(false)
	player.Notify.Bind(event.Channel().ID())

	reply := func(content string) {
		_ = sys.EditDeferred(event.Client(), event.ApplicationID(), event.Token(), content)
	}

	if mode != requestEnqueue {
		if channelID, err := joinRequester(event, false); err != nil {
			reply(joinErrorText(channelID, err))
			return
		}
	}

	req := requesterOf(event.Client(), event.GuildID(), event.User(), event.Member())
	ctx, cancel := context.WithTimeout(sys.AppContext, requestTimeout)
	defer cancel()

	t, err := player.Jukebox.Prepare(ctx, query, req)
	if err != nil {
		reply(describeRequestError(query, err))
		return
	}

	if t.NeedsConfirm {
		st, _ := player.Jukebox.Status()
		size := sys.FormatMB(t.EstimatedSize)
		switch {
		case mode == requestEnqueue:
			reply(fmt.Sprintf(sys.MsgMusicTooLargeQueue, t.Title, size))
		case mode == requestPlayTop:
			reply(fmt.Sprintf(sys.MsgMusicTooLargePlayTop, t.Title, size))
		case st.State.Active():
			reply(fmt.Sprintf(sys.MsgMusicTooLargeQueue, t.Title, size))
		default:
			askLargeDownload(event, t, req, mode.position())
		}
		return
	}

	if mode == requestEnqueue {
		if _, err := player.Jukebox.Enqueue(t, proc.Back); err != nil {
			reply(sys.MsgMusicEnqueueFailed)
			return
		}
		reply(fmt.Sprintf(sys.MsgMusicAdded, t.Title, t.PageURL))
		return
	}

	pl, err := player.Jukebox.Play(t, mode.position())
	reply(placementText(t, pl, mode.position(), err))
}

func askLargeDownload(event *events.ApplicationCommandInteractionCreate, t proc.Track, req proc.Requester, pos proc.Position) {
	confirms := player.Jukebox.Confirmations()
	pc := confirms.Request(proc.ConfirmLargeDownload, req.ID, 0, largeDownload{Track: t, Requester: req, Position: pos})

	question := fmt.Sprintf(sys.MsgMusicConfirmLarge, t.Title, sys.FormatMB(t.EstimatedSize))
	msg, err := sys.AskDeferred(event.Client(), event.ApplicationID(), event.Token(), question, pc.ID)
	if err != nil {
		sys.LogMusicError(sys.MsgLogNotifyFail, err)
		return
	}
	confirms.Attach(pc.ID, msg.ChannelID, msg.ID)
}

// finishLargeDownload runs once the requester accepted a large download.
func finishLargeDownload(p largeDownload) string {
	ctx, cancel := context.WithTimeout(sys.AppContext, requestTimeout)
	defer cancel()

	t, err := player.Jukebox.FetchConfirmed(ctx, p.Track.Metadata(), p.Requester)
	if err != nil {
		return describeRequestError(p.Track.Title, err)
	}
	pl, err := player.Jukebox.Play(t, p.Position)
	return placementText(t, pl, p.Position, err)
}

// placementText is the reply to a request that reached the scheduler.
func placementText(t proc.Track, pl proc.Placement, pos proc.Position, err error) string {
	switch {
	case errors.Is(err, proc.ErrNotConnected):
		return sys.MsgMusicNotConnected
	case err != nil:
		return sys.MsgMusicPlayFailed
	case pl.Started:
		return fmt.Sprintf(sys.MsgMusicRequested, t.Title, t.PageURL)
	case pl.Position == 0:
		return sys.MsgMusicPlayFailed
	case pos == proc.Front:
		return fmt.Sprintf(sys.MsgMusicAddedNext, t.Title, t.PageURL)
	}
	return fmt.Sprintf(sys.MsgMusicAdded, t.Title, t.PageURL)
}

func describeRequestError(query string, err error) string {
	var quota *proc.QuotaError
	var resolve *proc.ResolutionError
	switch {
	case errors.Is(err, proc.ErrNotFound):
		return fmt.Sprintf(sys.MsgMusicNotFound, query)
	case errors.As(err, &quota):
		return fmt.Sprintf(sys.MsgMusicRejected, quota.Reason)
	case errors.As(err, &resolve):
		return fmt.Sprintf(sys.MsgMusicResolveFailed, query, sys.Truncate(resolve.Err.Error(), 200))
	case errors.Is(err, proc.ErrNotConnected):
		return sys.MsgMusicNotConnected
	}
	return sys.MsgMusicPlayFailed
}

// sendFollowup posts a message under an already answered interaction.
func sendFollowup(event *events.ComponentInteractionCreate, content string) {
	_, err := event.Client().Rest.CreateFollowupMessage(event.ApplicationID(), event.Token(),
		discord.NewMessageCreateBuilder().SetContent(content).Build())
	if err != nil {
		sys.LogMusicError(sys.MsgLogNotifyFail, err)
	}
}
