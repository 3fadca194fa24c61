package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

// Player is everything the command handlers drive.
type Player struct {
	Jukebox *proc.Jukebox
	Voice   *proc.VoiceOutput
	Notify  *ChannelNotifier
}

var player *Player

// Bind hands the handlers their player. Must be called before the gateway
// opens.
func Bind(p *Player) {
	player = p
}

var guildOnly = []discord.InteractionContextType{discord.InteractionContextTypeGuild}

func queryOption(description string) []discord.ApplicationCommandOption {
	return []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "query",
			Description: description,
			Required:    true,
		},
	}
}

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "join",
		Description: "Join your voice channel",
		Contexts:    guildOnly,
	}, handleMusicJoin)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "play",
		Description: "Play a song from a YouTube URL or search query",
		Contexts:    guildOnly,
		Options:     queryOption("The URL or song name to play"),
	}, func(event *events.ApplicationCommandInteractionCreate) {
		handleMusicRequest(event, requestPlay)
	})

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "playtop",
		Description: "Play a song next, ahead of the queue",
		Contexts:    guildOnly,
		Options:     queryOption("The URL or song name to play next"),
	}, func(event *events.ApplicationCommandInteractionCreate) {
		handleMusicRequest(event, requestPlayTop)
	})

	for _, name := range []string{"enqueue", "queue", "q"} {
		sys.RegisterCommand(discord.SlashCommandCreate{
			Name:        name,
			Description: "Add a song to the queue without starting playback",
			Contexts:    guildOnly,
			Options:     queryOption("The URL or song name to queue"),
		}, func(event *events.ApplicationCommandInteractionCreate) {
			handleMusicRequest(event, requestEnqueue)
		})
	}

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "skip",
		Description: "Skip the current track",
		Contexts:    guildOnly,
	}, handleMusicSkip)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "stop",
		Description: "Stop playback, clear the queue and leave",
		Contexts:    guildOnly,
	}, handleMusicStop)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "pause",
		Description: "Pause the current track",
		Contexts:    guildOnly,
	}, handleMusicPause)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "resume",
		Description: "Resume the paused track",
		Contexts:    guildOnly,
	}, handleMusicResume)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "volume",
		Description: "Set the playback volume",
		Contexts:    guildOnly,
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionInt{
				Name:        "level",
				Description: "Volume from 1 to 100",
				Required:    true,
			},
		},
	}, handleMusicVolume)

	for _, name := range []string{"now", "nytsoi"} {
		sys.RegisterCommand(discord.SlashCommandCreate{
			Name:        name,
			Description: "Show the currently playing song",
			Contexts:    guildOnly,
		}, handleMusicNow)
	}

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "queuelist",
		Description: "Show the upcoming songs",
		Contexts:    guildOnly,
	}, handleQueueList)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "getqueue",
		Description: "List every song requested this session and its status",
		Contexts:    guildOnly,
	}, handleQueueHistory)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "help",
		Description: "List the available commands",
	}, func(event *events.ApplicationCommandInteractionCreate) {
		sys.Respond(event, sys.MsgHelp, true)
	})

	sys.RegisterComponentHandler(sys.ControlPrefix, handleMusicControl)
	sys.RegisterComponentHandler(sys.ConfirmPrefix, handleConfirmAnswer)
	sys.RegisterVoiceStateUpdateHandler(handleBotVoiceState)
	sys.OnClientReady(startConfirmationReaper)
}
