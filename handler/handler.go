package handler

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bwmarrin/discordgo"
	"github.com/pyama86/ticketbot/clock"
	"github.com/pyama86/ticketbot/config"
	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/pyama86/ticketbot/ticket"
)

//go:generate mockgen -source=$GOFILE -destination=mock_interaction.go -package=handler

// InteractionAPI is the part of *discordgo.Session used to answer events.
type InteractionAPI interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

type Handler struct {
	session *discordgo.Session
	api     InteractionAPI
	discord *infra.Discord
	manager *ticket.Manager
	guildID string
}

func NewHandler() (*Handler, error) {
	cfg, err := config.LoadTickets(config.TicketsPath())
	if err != nil {
		return nil, fmt.Errorf("LoadTickets failed: %w", err)
	}

	ds, err := infra.NewDatastore()
	if err != nil {
		return nil, fmt.Errorf("NewDatastore failed: %w", err)
	}

	session, err := discordgo.New("Bot " + os.Getenv("DISCORD_TOKEN"))
	if err != nil {
		return nil, fmt.Errorf("discordgo.New failed: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMembers |
		discordgo.IntentMessageContent

	discord := infra.NewDiscord(session)
	pipeline := ticket.NewPipeline(discord)
	if u := infra.NewTranscriptUploader(); u != nil {
		pipeline.Uploader = u
	}
	ai, err := infra.NewOpenAI()
	if err != nil {
		return nil, fmt.Errorf("NewOpenAI failed: %w", err)
	}
	if ai != nil {
		pipeline.Summarizer = ai
	}
	if n := infra.NewSlackNotifier(); n != nil {
		pipeline.Mirror = n
	}

	h := newHandler(session, ticket.NewManager(cfg, ds, discord, pipeline, clock.Real()), os.Getenv("DISCORD_GUILD_ID"))
	h.session = session
	h.discord = discord
	return h, nil
}

func newHandler(api InteractionAPI, manager *ticket.Manager, guildID string) *Handler {
	return &Handler{
		api:     api,
		manager: manager,
		guildID: guildID,
	}
}

// Handle connects to the gateway and serves events until ctx is done.
func (h *Handler) Handle(ctx context.Context) error {
	h.session.AddHandler(h.onReady)
	h.session.AddHandler(h.onInteractionCreate)
	h.session.AddHandler(h.onMessageCreate)
	h.session.AddHandler(h.onChannelDelete)

	if err := h.session.Open(); err != nil {
		return fmt.Errorf("discord session open failed: %w", err)
	}
	defer h.close()

	if err := h.manager.Rehydrate(); err != nil {
		return fmt.Errorf("Rehydrate failed: %w", err)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func (h *Handler) close() {
	if err := h.session.Close(); err != nil {
		slog.Error("discord session close failed", slog.Any("err", err))
	}
	h.manager.Stop()
	h.discord.Stop()
}

// Reload re-reads the ticket configuration.
func (h *Handler) Reload() error {
	cfg, err := config.LoadTickets(config.TicketsPath())
	if err != nil {
		return fmt.Errorf("LoadTickets failed: %w", err)
	}
	h.manager.SetConfig(cfg)
	slog.Info("ticket config reloaded", slog.String("path", config.TicketsPath()))
	return nil
}

func (h *Handler) onReady(s *discordgo.Session, r *discordgo.Ready) {
	appID := r.User.ID
	if r.Application != nil && r.Application.ID != "" {
		appID = r.Application.ID
	}
	h.ready(appID, r.User.ID)
	slog.Info("discord session ready", slog.String("user", r.User.Username))
}

func (h *Handler) ready(appID, botUserID string) {
	h.manager.SetBotUserID(botUserID)
	if _, err := h.api.ApplicationCommandBulkOverwrite(appID, h.guildID, commands); err != nil {
		slog.Error("ApplicationCommandBulkOverwrite failed", slog.Any("err", err))
	}
}

func (h *Handler) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	in, ok := fromInteraction(i)
	if !ok {
		return
	}
	h.handleInteraction(context.Background(), i.Interaction, in)
}

func (h *Handler) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.handleMessage(context.Background(), m)
}

func (h *Handler) onChannelDelete(s *discordgo.Session, c *discordgo.ChannelDelete) {
	if c.Channel == nil {
		return
	}
	h.manager.HandleChannelDeleted(context.Background(), c.ID)
}

// handleInteraction acknowledges privately first; closing a ticket can take
// longer than the three seconds Discord waits for an answer.
func (h *Handler) handleInteraction(ctx context.Context, raw *discordgo.Interaction, in Interaction) {
	if err := h.api.InteractionRespond(raw, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx)); err != nil {
		slog.Error("InteractionRespond failed", slog.Any("err", err), slog.String("channel", in.source().ChannelID))
		return
	}

	msg, err := h.dispatch(ctx, in)
	reply := h.replyFor(in, msg, err)
	if cmd, ok := in.(Command); ok && err == nil && msg != nil && publicCommands[cmd.Name] {
		if _, err := h.api.ChannelMessageSendComplex(cmd.ChannelID, infra.ToMessageSend(msg), discordgo.WithContext(ctx)); err != nil {
			slog.Error("ChannelMessageSendComplex failed", slog.Any("err", err), slog.String("channel", cmd.ChannelID))
		} else {
			reply = infra.TextMessage("✅ Done.")
		}
	}

	if _, err := h.api.InteractionResponseEdit(raw, toWebhookEdit(reply), discordgo.WithContext(ctx)); err != nil {
		// the channel is gone after a confirmed close
		slog.Warn("InteractionResponseEdit failed", slog.Any("err", err), slog.String("channel", in.source().ChannelID))
	}
}

func (h *Handler) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}
	actor := ticket.Actor{ID: m.Author.ID}
	if m.Member != nil {
		actor.Roles = m.Member.Roles
	}

	if !m.Author.Bot {
		if legacy, ok := parseLegacy(m.Content); ok {
			legacy.Source = Source{GuildID: m.GuildID, ChannelID: m.ChannelID, Actor: actor}
			msg, err := h.dispatch(ctx, legacy)
			reply := h.replyFor(legacy, msg, err)
			if _, err := h.api.ChannelMessageSendComplex(m.ChannelID, infra.ToMessageSend(reply), discordgo.WithContext(ctx)); err != nil {
				slog.Warn("ChannelMessageSendComplex failed", slog.Any("err", err), slog.String("channel", m.ChannelID))
			}
			return
		}
	}

	ev := ticket.MessageEvent{
		ChannelID: m.ChannelID,
		Author:    actor,
		Bot:       m.Author.Bot,
		Content:   m.Content,
	}
	for _, a := range m.Attachments {
		ev.Attachments = append(ev.Attachments, a.URL)
	}
	h.manager.HandleMessage(ctx, ev)
}

func (h *Handler) dispatch(ctx context.Context, in Interaction) (*infra.Message, error) {
	switch v := in.(type) {
	case Command:
		return h.runCommand(ctx, v)
	case Selection:
		return h.manager.SelectOption(ctx, v.ChannelID, v.Actor, v.Depth, v.Value)
	case ButtonPress:
		switch v.CustomID {
		case ticket.CloseButtonID:
			return h.manager.RequestClose(ctx, v.ChannelID, v.Actor, "")
		case ticket.CloseConfirmID:
			return h.manager.ConfirmClose(ctx, v.ChannelID, v.Actor)
		case ticket.CloseCancelID:
			return h.manager.CancelClose(ctx, v.ChannelID, v.Actor)
		}
		return nil, fmt.Errorf("unknown button %q", v.CustomID)
	case LegacyMessage:
		return h.runCommand(ctx, Command{
			Source:  v.Source,
			Name:    v.Name,
			Options: map[string]string{optReason: v.Args},
		})
	}
	return nil, fmt.Errorf("unsupported interaction %T", in)
}

func (h *Handler) runCommand(ctx context.Context, c Command) (*infra.Message, error) {
	switch c.Name {
	case cmdNew:
		return h.manager.Open(ctx, c.GuildID, c.Actor)
	case cmdAdd:
		return h.manager.AddParticipant(ctx, c.ChannelID, c.Actor, c.Options[optUser])
	case cmdRemove:
		return h.manager.RemoveParticipant(ctx, c.ChannelID, c.Actor, c.Options[optUser])
	case cmdAssign:
		return h.manager.Assign(ctx, c.ChannelID, c.Actor, c.Options[optUser])
	case cmdClose:
		return h.manager.RequestClose(ctx, c.ChannelID, c.Actor, c.Options[optReason])
	case cmdAutoclose:
		switch c.Subcommand {
		case subSet:
			return h.manager.ScheduleAutoclose(ctx, c.ChannelID, c.Actor, c.Options[optDuration], c.Options[optReason])
		case subCancel:
			return h.manager.CancelAutoclose(ctx, c.ChannelID, c.Actor)
		}
	case cmdTranscript:
		return h.manager.Transcript(ctx, c.ChannelID, c.Actor)
	}
	return nil, fmt.Errorf("unknown command %q %q", c.Name, c.Subcommand)
}

// replyFor turns a result into what the actor sees. Only validation and
// permission errors are shown as they are.
func (h *Handler) replyFor(in Interaction, msg *infra.Message, err error) *infra.Message {
	if err != nil {
		if ue, ok := ticket.AsUserError(err); ok {
			return infra.TextMessage("⚠️ " + ue.Message)
		}
		src := in.source()
		slog.Error("interaction failed", slog.Any("err", err), slog.String("channel", src.ChannelID), slog.String("user", src.Actor.ID))
		return infra.TextMessage("❌ Something went wrong. Please try again later.")
	}
	if msg == nil {
		return infra.TextMessage("✅ Done.")
	}
	return msg
}

func toWebhookEdit(msg *infra.Message) *discordgo.WebhookEdit {
	content := msg.Content
	embeds := infra.ToEmbeds(msg)
	components := infra.ToComponents(msg)
	return &discordgo.WebhookEdit{
		Content:         &content,
		Embeds:          &embeds,
		Components:      &components,
		Files:           infra.ToFiles(msg),
		AllowedMentions: infra.ToAllowedMentions(msg),
	}
}
