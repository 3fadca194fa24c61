package home

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

func init() {
	rebootPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "togglelog",
		Description: "Toggle verbose logging",
		Contexts:    guildOnly,
	}, handleAdminToggleLog)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "toggledownload",
		Description: "Toggle between download mode and streaming mode",
		Contexts:    guildOnly,
	}, handleAdminToggleDownload)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "reboot",
		Description:              "Save the queue and restart the bot",
		Contexts:                 guildOnly,
		DefaultMemberPermissions: omit.New(&rebootPerm),
	}, handleAdminReboot)
}

func handleAdminToggleLog(event *events.ApplicationCommandInteractionCreate) {
	if _, ok := requireAdmin(event); !ok {
		return
	}
	on := !sys.IsVerbose()
	sys.SetVerbose(on)

	content := sys.MsgAdminVerboseOff
	if on {
		content = sys.MsgAdminVerboseOn
	}
	sys.LogInfo(sys.MsgAdminVerboseBy, event.User().Username, content)
	if err := sys.SetBoolSetting(context.Background(), sys.KeyVerboseLog, on); err != nil {
		sys.LogWarn(sys.MsgDatabaseSettingFail, sys.KeyVerboseLog, err)
	}
	sys.Respond(event, content, true)
}

func handleAdminToggleDownload(event *events.ApplicationCommandInteractionCreate) {
	if _, ok := requireAdmin(event); !ok {
		return
	}
	on := player.Jukebox.ToggleDownloadMode()
	mode := modeName(on)

	sys.LogInfo(sys.MsgAdminModeBy, event.User().Username, mode)
	if err := sys.SetBoolSetting(context.Background(), sys.KeyDownloadMode, on); err != nil {
		sys.LogWarn(sys.MsgDatabaseSettingFail, sys.KeyDownloadMode, err)
	}
	sys.Respond(event, fmt.Sprintf(sys.MsgAdminModeSet, mode), false)
}

func modeName(download bool) string {
	if download {
		return sys.MsgMusicModeDownload
	}
	return sys.MsgMusicModeStream
}

func handleAdminReboot(event *events.ApplicationCommandInteractionCreate) {
	req, ok := requireAdmin(event)
	if !ok {
		return
	}
	_ = event.DeferCreateMessage(false)

	confirms := player.Jukebox.Confirmations()
	pc := confirms.Request(proc.ConfirmReboot, req.ID, 0, nil)
	msg, err := sys.AskDeferred(event.Client(), event.ApplicationID(), event.Token(), sys.MsgAdminRebootAsk, pc.ID)
	if err != nil {
		sys.LogWarn(sys.MsgLogNotifyFail, err)
		return
	}
	confirms.Attach(pc.ID, msg.ChannelID, msg.ID)
}

// reboot saves the queue and signals ourselves; main re-executes the binary
// once shutdown completes.
func reboot(username string, userID fmt.Stringer) {
	sys.LogWarn(sys.MsgAdminRebootBy, username, userID)

	if err := player.Jukebox.SaveForReboot(); err != nil {
		sys.LogQueueError(sys.MsgGenericError, err)
	}
	_ = player.Jukebox.Scheduler().Stop()

	sys.RestartRequested = true

	// Give the confirmation reply time to reach Discord
	time.Sleep(1500 * time.Millisecond)

	_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
}
