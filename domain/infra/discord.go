package infra

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pyama86/ticketbot/domain/model"
)

//go:generate mockgen -source=$GOFILE -destination=mock_discord.go -package=infra

// DiscordAPI is the part of *discordgo.Session the adapter uses.
type DiscordAPI interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(data *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ThreadStartComplex(channelID string, data *discordgo.ThreadStart, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ThreadMemberAdd(threadID, memberID string, options ...discordgo.RequestOption) error
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

const (
	historyPageSize = 100
	memberPageSize  = 1000
)

type Discord struct {
	client      DiscordAPI
	memberCache *ttlcache.Cache[string, []*discordgo.Member]
	parentCache *ttlcache.Cache[string, string]
}

func NewDiscord(client DiscordAPI) *Discord {
	d := &Discord{
		client:      client,
		memberCache: ttlcache.New(ttlcache.WithTTL[string, []*discordgo.Member](10 * time.Minute)),
		parentCache: ttlcache.New(ttlcache.WithTTL[string, string](time.Hour)),
	}
	go d.memberCache.Start()
	go d.parentCache.Start()
	return d
}

func (d *Discord) Stop() {
	d.memberCache.Stop()
	d.parentCache.Stop()
}

func (d *Discord) CreateChannel(ctx context.Context, spec ChannelSpec) (string, error) {
	ch, err := d.client.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             spec.ParentID,
		PermissionOverwrites: toOverwrites(spec.Overwrites),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("GuildChannelCreateComplex failed: %w", err)
	}
	d.parentCache.Set(ch.ID, ch.ParentID, ttlcache.DefaultTTL)
	return ch.ID, nil
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	d.parentCache.Delete(channelID)
	if _, err := d.client.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("ChannelDelete failed: %w", err)
	}
	return nil
}

// SetParent sends the current overwrites along with the new parent so that
// Discord does not sync the channel to the category permissions.
func (d *Discord) SetParent(ctx context.Context, channelID, parentID string) error {
	ch, err := d.client.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("Channel failed: %w", err)
	}
	if ch.ParentID == parentID {
		d.parentCache.Set(channelID, parentID, ttlcache.DefaultTTL)
		return nil
	}
	overwrites := ch.PermissionOverwrites
	if overwrites == nil {
		overwrites = []*discordgo.PermissionOverwrite{}
	}
	if _, err := d.client.ChannelEdit(channelID, &discordgo.ChannelEdit{
		ParentID:             parentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("ChannelEdit failed: %w", err)
	}
	d.parentCache.Set(channelID, parentID, ttlcache.DefaultTTL)
	return nil
}

func (d *Discord) ChannelParent(ctx context.Context, channelID string) (string, error) {
	if parent := d.parentCache.Get(channelID); parent != nil {
		return parent.Value(), nil
	}
	ch, err := d.client.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("Channel failed: %w", err)
	}
	d.parentCache.Set(channelID, ch.ParentID, ttlcache.DefaultTTL)
	return ch.ParentID, nil
}

func (d *Discord) SetPermission(ctx context.Context, channelID string, ow Overwrite) error {
	if err := d.client.ChannelPermissionSet(channelID, ow.ID, overwriteType(ow), ow.Allow, ow.Deny, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("ChannelPermissionSet failed: %w", err)
	}
	return nil
}

func (d *Discord) DeletePermission(ctx context.Context, channelID, targetID string) error {
	if err := d.client.ChannelPermissionDelete(channelID, targetID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("ChannelPermissionDelete failed: %w", err)
	}
	return nil
}

func (d *Discord) SendMessage(ctx context.Context, channelID string, msg *Message) (string, error) {
	m, err := d.client.ChannelMessageSendComplex(channelID, ToMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("ChannelMessageSendComplex failed: %w", err)
	}
	return m.ID, nil
}

func (d *Discord) EditMessage(ctx context.Context, channelID, messageID string, msg *Message) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	content := msg.Content
	embeds := ToEmbeds(msg)
	components := ToComponents(msg)
	edit.Content = &content
	edit.Embeds = &embeds
	edit.Components = &components
	if _, err := d.client.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("ChannelMessageEditComplex failed: %w", err)
	}
	return nil
}

func (d *Discord) FetchHistory(ctx context.Context, channelID string) ([]model.TranscriptLine, error) {
	var all []*discordgo.Message
	before := ""
	for {
		page, err := d.client.ChannelMessages(channelID, historyPageSize, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("ChannelMessages failed: %w", err)
		}
		all = append(all, page...)
		if len(page) < historyPageSize {
			break
		}
		before = page[len(page)-1].ID
	}

	// Discord は新しい順に返す
	lines := make([]model.TranscriptLine, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		lines = append(lines, toTranscriptLine(all[i]))
	}
	return lines, nil
}

func (d *Discord) CreatePrivateThread(ctx context.Context, channelID, name string) (string, error) {
	th, err := d.client.ThreadStartComplex(channelID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: 10080,
		Type:                discordgo.ChannelTypeGuildPrivateThread,
		Invitable:           false,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("ThreadStartComplex failed: %w", err)
	}
	return th.ID, nil
}

func (d *Discord) AddThreadMember(ctx context.Context, threadID, userID string) error {
	if err := d.client.ThreadMemberAdd(threadID, userID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("ThreadMemberAdd failed: %w", err)
	}
	return nil
}

func (d *Discord) MembersWithRoles(ctx context.Context, guildID string, roleIDs []string) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	members, err := d.guildMembers(ctx, guildID)
	if err != nil {
		return nil, err
	}
	wanted := map[string]bool{}
	for _, r := range roleIDs {
		wanted[r] = true
	}
	var ids []string
	for _, m := range members {
		if m.User == nil || m.User.Bot {
			continue
		}
		for _, r := range m.Roles {
			if wanted[r] {
				ids = append(ids, m.User.ID)
				break
			}
		}
	}
	return ids, nil
}

func (d *Discord) guildMembers(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	if members := d.memberCache.Get(guildID); members != nil {
		return members.Value(), nil
	}
	var all []*discordgo.Member
	after := ""
	for {
		page, err := d.client.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("GuildMembers failed: %w", err)
		}
		all = append(all, page...)
		if len(page) < memberPageSize || page[len(page)-1].User == nil {
			break
		}
		after = page[len(page)-1].User.ID
	}
	d.memberCache.Set(guildID, all, ttlcache.DefaultTTL)
	return all, nil
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID string, msg *Message) error {
	ch, err := d.client.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("UserChannelCreate failed: %w", err)
	}
	if _, err := d.client.ChannelMessageSendComplex(ch.ID, ToMessageSend(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("ChannelMessageSendComplex failed: %w", err)
	}
	return nil
}

func overwriteType(ow Overwrite) discordgo.PermissionOverwriteType {
	if ow.Role {
		return discordgo.PermissionOverwriteTypeRole
	}
	return discordgo.PermissionOverwriteTypeMember
}

func toOverwrites(ows []Overwrite) []*discordgo.PermissionOverwrite {
	ret := make([]*discordgo.PermissionOverwrite, 0, len(ows))
	for _, ow := range ows {
		ret = append(ret, &discordgo.PermissionOverwrite{
			ID:    ow.ID,
			Type:  overwriteType(ow),
			Allow: ow.Allow,
			Deny:  ow.Deny,
		})
	}
	return ret
}

func toTranscriptLine(m *discordgo.Message) model.TranscriptLine {
	line := model.TranscriptLine{
		MessageID: m.ID,
		TimeStamp: m.Timestamp,
		Text:      m.Content,
	}
	if m.Author != nil {
		line.AuthorID = m.Author.ID
		line.User = m.Author.Username
		line.Bot = m.Author.Bot
	}
	var parts []string
	if line.Text != "" {
		parts = append(parts, line.Text)
	}
	for _, e := range m.Embeds {
		if e.Title != "" {
			parts = append(parts, "**"+e.Title+"**")
		}
		if e.Description != "" {
			parts = append(parts, e.Description)
		}
		for _, f := range e.Fields {
			parts = append(parts, "**"+f.Name+"**\n"+f.Value)
		}
	}
	line.Text = strings.Join(parts, "\n\n")
	for _, a := range m.Attachments {
		line.Attachments = append(line.Attachments, a.URL)
	}
	return line
}

func ToMessageSend(msg *Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:         msg.Content,
		Embeds:          ToEmbeds(msg),
		Components:      ToComponents(msg),
		Files:           ToFiles(msg),
		AllowedMentions: ToAllowedMentions(msg),
	}
}

func ToAllowedMentions(msg *Message) *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{
		Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		Roles: msg.MentionRoles,
	}
}

func ToEmbeds(msg *Message) []*discordgo.MessageEmbed {
	embeds := make([]*discordgo.MessageEmbed, 0, len(msg.Embeds))
	for _, e := range msg.Embeds {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			URL:         e.URL,
			Color:       e.Color,
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		embeds = append(embeds, me)
	}
	return embeds
}

var buttonStyles = map[ButtonStyle]discordgo.ButtonStyle{
	ButtonPrimary:   discordgo.PrimaryButton,
	ButtonSecondary: discordgo.SecondaryButton,
	ButtonDanger:    discordgo.DangerButton,
	ButtonSuccess:   discordgo.SuccessButton,
}

// Discord allows five buttons per action row.
const buttonsPerRow = 5

func ToComponents(msg *Message) []discordgo.MessageComponent {
	components := []discordgo.MessageComponent{}
	if msg.Select != nil {
		opts := make([]discordgo.SelectMenuOption, 0, len(msg.Select.Options))
		for _, o := range msg.Select.Options {
			opts = append(opts, discordgo.SelectMenuOption{Label: o, Value: o})
		}
		components = append(components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    msg.Select.CustomID,
					Placeholder: msg.Select.Placeholder,
					Options:     opts,
				},
			},
		})
	}
	for i := 0; i < len(msg.Buttons); i += buttonsPerRow {
		end := i + buttonsPerRow
		if end > len(msg.Buttons) {
			end = len(msg.Buttons)
		}
		row := discordgo.ActionsRow{}
		for _, b := range msg.Buttons[i:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    buttonStyles[b.Style],
				CustomID: b.CustomID,
			})
		}
		components = append(components, row)
	}
	return components
}

func ToFiles(msg *Message) []*discordgo.File {
	files := make([]*discordgo.File, 0, len(msg.Files))
	for _, f := range msg.Files {
		files = append(files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return files
}
