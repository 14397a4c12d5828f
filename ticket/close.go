package ticket

import (
	"context"
	"log/slog"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pyama86/ticketbot/config"
	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/pyama86/ticketbot/domain/model"
)

func pendingKey(channelID, actorID string) string {
	return channelID + ":" + actorID
}

func (m *Manager) canClose(cfg *config.Tickets, t *model.Ticket, actor Actor) bool {
	return actor.ID == t.CreatorID || cfg.CanClose(actor.Roles)
}

// RequestClose asks the actor to confirm. The reason is kept until the
// confirmation arrives or the prompt expires.
func (m *Manager) RequestClose(ctx context.Context, channelID string, actor Actor, reason string) (*infra.Message, error) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	t, err := m.openTicket(channelID)
	if err != nil {
		return nil, err
	}
	if !m.canClose(m.Config(), t, actor) {
		return nil, NewPermissionError("Only the ticket creator or members with a closing role can close this ticket.")
	}
	m.pendingClose.Set(pendingKey(channelID, actor.ID), reason, ttlcache.DefaultTTL)
	return &infra.Message{
		Content: "Are you sure you want to close this ticket?",
		Buttons: []infra.Button{
			{CustomID: CloseConfirmID, Label: "Close", Style: infra.ButtonDanger},
			{CustomID: CloseCancelID, Label: "Cancel", Style: infra.ButtonSecondary},
		},
		Ephemeral: true,
	}, nil
}

func (m *Manager) ConfirmClose(ctx context.Context, channelID string, actor Actor) (*infra.Message, error) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	cfg := m.Config()
	t, err := m.openTicket(channelID)
	if err != nil {
		return nil, err
	}
	if !m.canClose(cfg, t, actor) {
		return nil, NewPermissionError("Only the ticket creator or members with a closing role can close this ticket.")
	}

	key := pendingKey(channelID, actor.ID)
	reason := ""
	if item := m.pendingClose.Get(key); item != nil {
		reason = item.Value()
	}
	m.pendingClose.Delete(key)

	m.closeLocked(ctx, cfg, t, actor.ID, reason)
	return infra.TextMessage("🔒 Ticket closed."), nil
}

func (m *Manager) CancelClose(ctx context.Context, channelID string, actor Actor) (*infra.Message, error) {
	m.pendingClose.Delete(pendingKey(channelID, actor.ID))
	return infra.TextMessage("Close cancelled."), nil
}

// Close closes without a confirmation step.
func (m *Manager) Close(ctx context.Context, channelID string, actor Actor, reason string) error {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	cfg := m.Config()
	t, err := m.openTicket(channelID)
	if err != nil {
		return err
	}
	if !m.canClose(cfg, t, actor) {
		return NewPermissionError("Only the ticket creator or members with a closing role can close this ticket.")
	}
	m.closeLocked(ctx, cfg, t, actor.ID, reason)
	return nil
}

// closeLocked runs the close pipeline. Nothing after the decision to close
// can stop it; every failure is logged and the next step runs.
func (m *Manager) closeLocked(ctx context.Context, cfg *config.Tickets, t *model.Ticket, actorID, reason string) {
	if err := m.scheduler.CancelAll(t.ChannelID); err != nil {
		slog.Error("cancel timers failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
	}

	now := m.clock.Now()
	record := &model.ClosureRecord{
		Number:       t.Number,
		ChannelID:    t.ChannelID,
		CreatorID:    t.CreatorID,
		CloserID:     actorID,
		Reason:       reason,
		CategoryPath: t.CategoryPath,
		OpenedAt:     t.CreatedAt,
		ClosedAt:     now,
	}
	m.pipeline.Run(ctx, cfg, t, record)

	t.Status = model.TicketClosed
	t.ClosedAt = &now
	t.ClosedBy = actorID
	t.CloseReason = reason
	t.PromptMessageID = ""
	if err := m.ds.SaveTicket(t); err != nil {
		slog.Error("SaveTicket failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
	}

	if err := m.gw.DeleteChannel(ctx, t.ChannelID); err != nil {
		slog.Warn("DeleteChannel failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
	}
	slog.Info("ticket closed", slog.String("channel", t.ChannelID), slog.String("closer", actorID), slog.String("reason", reason))
}
