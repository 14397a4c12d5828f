package infra

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/pyama86/ticketbot/domain/model"
)

// Gateway is the set of chat platform operations the ticket flow needs.
type Gateway interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	// SetParent moves a channel into another category and keeps its
	// permission overwrites as they are.
	SetParent(ctx context.Context, channelID, parentID string) error
	ChannelParent(ctx context.Context, channelID string) (string, error)
	SetPermission(ctx context.Context, channelID string, ow Overwrite) error
	DeletePermission(ctx context.Context, channelID, targetID string) error
	SendMessage(ctx context.Context, channelID string, msg *Message) (string, error)
	EditMessage(ctx context.Context, channelID, messageID string, msg *Message) error
	// FetchHistory returns every message of the channel, oldest first.
	FetchHistory(ctx context.Context, channelID string) ([]model.TranscriptLine, error)
	CreatePrivateThread(ctx context.Context, channelID, name string) (string, error)
	AddThreadMember(ctx context.Context, threadID, userID string) error
	MembersWithRoles(ctx context.Context, guildID string, roleIDs []string) ([]string, error)
	SendDirectMessage(ctx context.Context, userID string, msg *Message) error
}

const (
	PermView    int64 = discordgo.PermissionViewChannel
	PermSend    int64 = discordgo.PermissionSendMessages
	PermHistory int64 = discordgo.PermissionReadMessageHistory
	PermAttach  int64 = discordgo.PermissionAttachFiles
	PermManage  int64 = discordgo.PermissionManageMessages

	PermMember = PermView | PermSend | PermHistory | PermAttach
	PermStaff  = PermMember | PermManage
)

// Overwrite is a channel permission overwrite for a role or a member.
type Overwrite struct {
	ID    string
	Role  bool
	Allow int64
	Deny  int64
}

type ChannelSpec struct {
	GuildID    string
	Name       string
	ParentID   string
	Topic      string
	Overwrites []Overwrite
}

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonDanger
	ButtonSuccess
)

type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
}

type Select struct {
	CustomID    string
	Placeholder string
	Options     []string
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	URL         string
	Color       int
	Fields      []Field
	Footer      string
}

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a platform neutral outgoing message.
type Message struct {
	Content string
	Embeds  []Embed
	Select  *Select
	Buttons []Button
	Files   []File
	// MentionRoles lists roles that may actually be pinged by Content.
	MentionRoles []string
	Ephemeral    bool
}

func TextMessage(content string) *Message {
	return &Message{Content: content}
}
