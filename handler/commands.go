package handler

import "github.com/bwmarrin/discordgo"

const (
	cmdNew        = "new"
	cmdAdd        = "add"
	cmdRemove     = "remove"
	cmdAssign     = "assign"
	cmdClose      = "close"
	cmdAutoclose  = "autoclose"
	cmdTranscript = "transcript"

	subSet    = "set"
	subCancel = "cancel"

	optUser     = "user"
	optReason   = "reason"
	optDuration = "duration"
)

// 結果をチャンネルに公開するコマンド
var publicCommands = map[string]bool{
	cmdAdd:       true,
	cmdRemove:    true,
	cmdAssign:    true,
	cmdAutoclose: true,
}

func userOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        optUser,
		Description: description,
		Required:    required,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        optReason,
		Description: "Reason shown in the closure log",
	}
}

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        cmdNew,
		Description: "Open a new support ticket",
	},
	{
		Name:        cmdAdd,
		Description: "Give a member access to this ticket",
		Options:     []*discordgo.ApplicationCommandOption{userOption("Member to add", true)},
	},
	{
		Name:        cmdRemove,
		Description: "Remove a member from this ticket",
		Options:     []*discordgo.ApplicationCommandOption{userOption("Member to remove", true)},
	},
	{
		Name:        cmdAssign,
		Description: "Assign this ticket to a staff member",
		Options:     []*discordgo.ApplicationCommandOption{userOption("Staff member, defaults to you", false)},
	},
	{
		Name:        cmdClose,
		Description: "Close this ticket",
		Options:     []*discordgo.ApplicationCommandOption{reasonOption()},
	},
	{
		Name:        cmdAutoclose,
		Description: "Close this ticket automatically unless the creator responds",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        subSet,
				Description: "Schedule an automatic close",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        optDuration,
						Description: "e.g. 30m, 12h, 1d",
						Required:    true,
					},
					reasonOption(),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        subCancel,
				Description: "Cancel the scheduled close",
			},
		},
	},
	{
		Name:        cmdTranscript,
		Description: "Export the transcript of this ticket",
	},
}
