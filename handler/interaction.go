package handler

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pyama86/ticketbot/ticket"
)

// Source is where an interaction happened and who triggered it.
type Source struct {
	GuildID   string
	ChannelID string
	Actor     ticket.Actor
}

func (s Source) source() Source { return s }

// Interaction is one of Command, Selection, ButtonPress or LegacyMessage.
type Interaction interface {
	source() Source
}

// Command is a slash command. Options hold user ids for user options.
type Command struct {
	Source
	Name       string
	Subcommand string
	Options    map[string]string
}

// Selection is a choice on a category select menu.
type Selection struct {
	Source
	Depth int
	Value string
}

type ButtonPress struct {
	Source
	CustomID string
}

// LegacyMessage is a text command such as "-close fixed".
type LegacyMessage struct {
	Source
	Name string
	Args string
}

const legacyPrefix = "-"

var legacyCommands = map[string]bool{
	cmdNew:        true,
	cmdClose:      true,
	cmdTranscript: true,
}

// fromInteraction converts a gateway interaction. Interactions outside a
// guild are dropped.
func fromInteraction(i *discordgo.InteractionCreate) (Interaction, bool) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return nil, false
	}
	src := Source{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Actor:     ticket.Actor{ID: i.Member.User.ID, Roles: i.Member.Roles},
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		cmd := Command{Source: src, Name: data.Name, Options: map[string]string{}}
		opts := data.Options
		if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
			cmd.Subcommand = opts[0].Name
			opts = opts[0].Options
		}
		for _, o := range opts {
			cmd.Options[o.Name] = optionValue(o)
		}
		return cmd, true
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if depth, ok := ticket.ParseSelectCustomID(data.CustomID); ok {
			if len(data.Values) == 0 {
				return nil, false
			}
			return Selection{Source: src, Depth: depth, Value: data.Values[0]}, true
		}
		return ButtonPress{Source: src, CustomID: data.CustomID}, true
	}
	return nil, false
}

func optionValue(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch o.Type {
	case discordgo.ApplicationCommandOptionUser:
		return o.UserValue(nil).ID
	case discordgo.ApplicationCommandOptionString:
		return o.StringValue()
	}
	return fmt.Sprint(o.Value)
}

func parseLegacy(content string) (LegacyMessage, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, legacyPrefix) {
		return LegacyMessage{}, false
	}
	name, args, _ := strings.Cut(strings.TrimPrefix(content, legacyPrefix), " ")
	name = strings.ToLower(name)
	if !legacyCommands[name] {
		return LegacyMessage{}, false
	}
	return LegacyMessage{Name: name, Args: strings.TrimSpace(args)}, true
}
