package sys

import (
	"strings"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// Custom id prefixes handled by the component router.
const (
	ConfirmPrefix = "confirm:"
	ControlPrefix = "np:"

	ControlPrevious = ControlPrefix + "prev"
	ControlPause    = ControlPrefix + "pause"
	ControlSkip     = ControlPrefix + "skip"
)

// MessageResponder is implemented by every interaction event that can answer
// with a new message.
type MessageResponder interface {
	CreateMessage(messageCreate discord.MessageCreate, opts ...rest.RequestOpt) error
}

// Respond answers an interaction with a single Components V2 text block.
func Respond(event MessageResponder, content string, ephemeral bool) {
	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(content),
			),
		).
		SetEphemeral(ephemeral).
		Build())
}

// EditDeferred replaces the content of a deferred interaction response.
func EditDeferred(client *bot.Client, appID snowflake.ID, token, content string) error {
	_, err := client.Rest.UpdateInteractionResponse(appID, token, discord.NewMessageUpdateBuilder().
		SetContent(content).
		Build())
	return err
}

// AskDeferred replaces a deferred response with a question and yes/no buttons.
func AskDeferred(client *bot.Client, appID snowflake.ID, token, question, confirmID string) (*discord.Message, error) {
	return client.Rest.UpdateInteractionResponse(appID, token, discord.NewMessageUpdateBuilder().
		SetContent(question).
		AddComponents(ConfirmRow(confirmID, false)).
		Build())
}

// ConfirmRow renders the yes/no buttons of a pending confirmation.
func ConfirmRow(confirmID string, disabled bool) discord.ActionRowComponent {
	yes := discord.NewButton(discord.ButtonStyleSuccess, MsgConfirmYes, ConfirmPrefix+confirmID+":yes", "", 0)
	no := discord.NewButton(discord.ButtonStyleDanger, MsgConfirmNo, ConfirmPrefix+confirmID+":no", "", 0)
	if disabled {
		yes = yes.WithDisabled(true)
		no = no.WithDisabled(true)
	}
	return discord.NewActionRow(yes, no)
}

// ParseConfirmID splits "confirm:<id>:yes|no".
func ParseConfirmID(customID string) (id string, accept bool, ok bool) {
	tail, found := strings.CutPrefix(customID, ConfirmPrefix)
	if !found {
		return "", false, false
	}
	idx := strings.LastIndex(tail, ":")
	if idx <= 0 {
		return "", false, false
	}
	switch tail[idx+1:] {
	case "yes":
		return tail[:idx], true, true
	case "no":
		return tail[:idx], false, true
	}
	return "", false, false
}

// NowPlayingMessage builds the channel post announcing a track, carrying the
// previous / pause / skip controls.
func NowPlayingMessage(content string) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(content),
				discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true),
				discord.NewActionRow(
					discord.NewButton(discord.ButtonStyleSecondary, MsgControlPrevious, ControlPrevious, "", 0),
					discord.NewButton(discord.ButtonStylePrimary, MsgControlPause, ControlPause, "", 0),
					discord.NewButton(discord.ButtonStyleSecondary, MsgControlSkip, ControlSkip, "", 0),
				),
			),
		).
		Build()
}

// TextMessage builds a plain Components V2 channel post.
func TextMessage(content string) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(discord.NewContainer(discord.NewTextDisplay(content))).
		Build()
}

// Truncate truncates a string to the specified length with ellipsis at the end.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// FormatMB renders a byte count the way size prompts show it.
func FormatMB(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024)
}
