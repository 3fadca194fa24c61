package home

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

func handleMusicSkip(event *events.ApplicationCommandInteractionCreate) {
	if err := player.Jukebox.Scheduler().Skip(); err != nil {
		sys.Respond(event, sys.MsgMusicNothingPlaying, true)
		return
	}
	sys.Respond(event, sys.MsgMusicSkipped, false)
}

func handleMusicStop(event *events.ApplicationCommandInteractionCreate) {
	st, err := player.Jukebox.Status()
	if err != nil || (!st.State.Connected() && player.Voice.ChannelID() == 0) {
		sys.Respond(event, sys.MsgMusicNotConnected, true)
		return
	}

	_ = player.Jukebox.Scheduler().Disconnect()
	ctx, cancel := context.WithTimeout(sys.AppContext, 10*time.Second)
	defer cancel()
	player.Voice.Leave(ctx)

	sys.Respond(event, sys.MsgMusicStopped, false)
}

func handleMusicPause(event *events.ApplicationCommandInteractionCreate) {
	err := player.Jukebox.Scheduler().Pause()
	switch {
	case err == nil:
		sys.Respond(event, sys.MsgMusicPaused, false)
	case errors.Is(err, proc.ErrAlreadyPaused):
		sys.Respond(event, sys.MsgMusicAlreadyPaused, true)
	default:
		sys.Respond(event, sys.MsgMusicPauseNothing, true)
	}
}

func handleMusicResume(event *events.ApplicationCommandInteractionCreate) {
	err := player.Jukebox.Scheduler().Resume()
	switch {
	case err == nil:
		sys.Respond(event, sys.MsgMusicResumed, false)
	case errors.Is(err, proc.ErrNotPaused):
		sys.Respond(event, sys.MsgMusicNotPaused, true)
	default:
		sys.Respond(event, sys.MsgMusicResumeNothing, true)
	}
}

func handleMusicVolume(event *events.ApplicationCommandInteractionCreate) {
	level, _ := event.SlashCommandInteractionData().OptInt("level")
	if level < proc.MinVolume || level > proc.MaxVolume {
		sys.Respond(event, sys.MsgMusicVolumeRange, true)
		return
	}
	if err := player.Jukebox.Scheduler().SetVolume(level); err != nil {
		sys.Respond(event, sys.MsgMusicVolumeRange, true)
		return
	}
	sys.Respond(event, fmt.Sprintf(sys.MsgMusicVolumeSet, level), false)
}

func handleMusicNow(event *events.ApplicationCommandInteractionCreate) {
	st, err := player.Jukebox.Status()
	if err != nil || !st.State.Active() || st.Current == nil {
		sys.Respond(event, sys.MsgMusicNoCurrent, false)
		return
	}
	sys.Respond(event, fmt.Sprintf(sys.MsgMusicCurrent, st.Current.Title, st.Current.PageURL), false)
}

// handleMusicControl serves the buttons under a now playing post.
func handleMusicControl(event *events.ComponentInteractionCreate) {
	sched := player.Jukebox.Scheduler()
	user := event.User()

	var err error
	switch event.Data.CustomID() {
	case sys.ControlPrevious:
		_, err = sched.PlayPrevious()
		if err == nil {
			sys.LogMusic(sys.MsgControlPreviousBy, user.Username)
		}
	case sys.ControlPause:
		var st proc.State
		st, err = sched.TogglePause()
		if err == nil && st == proc.StatePaused {
			sys.LogMusic(sys.MsgControlPausedBy, user.Username)
		} else if err == nil {
			sys.LogMusic(sys.MsgControlResumedBy, user.Username)
		}
	case sys.ControlSkip:
		err = sched.Skip()
		if err == nil {
			sys.LogMusic(sys.MsgControlSkippedBy, user.Username)
		}
	default:
		return
	}

	if err != nil {
		sys.Respond(event, controlErrorText(err), true)
		return
	}
	_ = event.DeferUpdateMessage()
}

func controlErrorText(err error) string {
	switch {
	case errors.Is(err, proc.ErrNoPrevious):
		return sys.MsgMusicNoPrevious
	case errors.Is(err, proc.ErrNotConnected):
		return sys.MsgMusicNotConnected
	}
	return sys.MsgMusicNothingPlaying
}

// handleBotVoiceState resets the session when the bot is removed from voice
// by someone else.
func handleBotVoiceState(event *events.GuildVoiceStateUpdate) {
	if player == nil || event.VoiceState.UserID != event.Client().ID() {
		return
	}
	if event.VoiceState.ChannelID != nil {
		return
	}
	if player.Voice.ChannelID() == 0 {
		return
	}
	_ = player.Jukebox.Scheduler().Disconnect()
	player.Voice.Forget()
}
