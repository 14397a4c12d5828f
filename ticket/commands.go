package ticket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pyama86/ticketbot/config"
	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/pyama86/ticketbot/domain/model"
)

const defaultAutocloseReason = "No response"

// isStaff is true for the ticket's resolved staff group, global staff and
// closing roles.
func (m *Manager) isStaff(cfg *config.Tickets, t *model.Ticket, actor Actor) bool {
	if cfg.IsStaff(actor.Roles) || cfg.CanClose(actor.Roles) {
		return true
	}
	for _, want := range cfg.Tree.ResolveStaffGroup(t.CategoryPath) {
		for _, r := range actor.Roles {
			if r == want {
				return true
			}
		}
	}
	return false
}

func (m *Manager) AddParticipant(ctx context.Context, channelID string, actor Actor, userID string) (*infra.Message, error) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	cfg := m.Config()
	t, err := m.openTicket(channelID)
	if err != nil {
		return nil, err
	}
	if actor.ID != t.CreatorID && !m.isStaff(cfg, t, actor) {
		return nil, NewPermissionError("Only staff or the ticket creator can add members.")
	}
	if userID == "" {
		return nil, NewValidationError("Please specify a user.")
	}
	if userID == t.CreatorID || t.HasParticipant(userID) {
		return nil, NewValidationError("<@%s> already has access to this ticket.", userID)
	}

	if err := m.gw.SetPermission(ctx, channelID, infra.Overwrite{ID: userID, Allow: infra.PermMember}); err != nil {
		return nil, fmt.Errorf("grant access failed: %w", err)
	}
	t.Participants = append(t.Participants, userID)
	if err := m.save(t); err != nil {
		return nil, err
	}
	return infra.TextMessage(fmt.Sprintf("✅ Added <@%s> to this ticket.", userID)), nil
}

func (m *Manager) RemoveParticipant(ctx context.Context, channelID string, actor Actor, userID string) (*infra.Message, error) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	cfg := m.Config()
	t, err := m.openTicket(channelID)
	if err != nil {
		return nil, err
	}
	if !m.isStaff(cfg, t, actor) {
		return nil, NewPermissionError("Only staff can remove members.")
	}
	if userID == t.CreatorID {
		return nil, NewValidationError("The ticket creator cannot be removed.")
	}
	if !t.HasParticipant(userID) {
		return nil, NewValidationError("<@%s> was not added to this ticket.", userID)
	}

	if err := m.gw.DeletePermission(ctx, channelID, userID); err != nil {
		return nil, fmt.Errorf("revoke access failed: %w", err)
	}
	kept := model.StringList{}
	for _, p := range t.Participants {
		if p != userID {
			kept = append(kept, p)
		}
	}
	t.Participants = kept
	if err := m.save(t); err != nil {
		return nil, err
	}
	return infra.TextMessage(fmt.Sprintf("Removed <@%s> from this ticket.", userID)), nil
}

// Assign records the staff member handling the ticket. An empty userID
// assigns the actor.
func (m *Manager) Assign(ctx context.Context, channelID string, actor Actor, userID string) (*infra.Message, error) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	cfg := m.Config()
	t, err := m.openTicket(channelID)
	if err != nil {
		return nil, err
	}
	if !m.isStaff(cfg, t, actor) {
		return nil, NewPermissionError("Only staff can assign tickets.")
	}
	if userID == "" {
		userID = actor.ID
	}
	t.AssignedTo = userID
	if err := m.save(t); err != nil {
		return nil, err
	}
	m.router.Route(ctx, cfg, t, false)
	return infra.TextMessage(fmt.Sprintf("📌 Ticket assigned to <@%s>.", userID)), nil
}

// ScheduleAutoclose replaces any pending autoclose of the channel.
func (m *Manager) ScheduleAutoclose(ctx context.Context, channelID string, actor Actor, after, reason string) (*infra.Message, error) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	cfg := m.Config()
	t, err := m.openTicket(channelID)
	if err != nil {
		return nil, err
	}
	if !m.isStaff(cfg, t, actor) {
		return nil, NewPermissionError("Only staff can schedule an autoclose.")
	}
	d, err := ParseDuration(after)
	if err != nil {
		return nil, NewValidationError("Invalid duration %q. Use a value like 30m, 2h or 1d.", after)
	}
	if reason == "" {
		reason = defaultAutocloseReason
	}

	now := m.clock.Now()
	fireAt := now.Add(d)
	if err := m.scheduler.Schedule(channelID, model.TaskAutoclose, fireAt, reason, actor.ID); err != nil {
		return nil, err
	}
	slog.Info("autoclose scheduled", slog.String("channel", channelID), slog.Time("fire_at", fireAt), slog.String("actor", actor.ID))
	return infra.TextMessage(fmt.Sprintf(
		"⏳ This ticket will be closed %s unless <@%s> responds.\nReason: %s",
		relative(fireAt, now), t.CreatorID, reason,
	)), nil
}

func (m *Manager) CancelAutoclose(ctx context.Context, channelID string, actor Actor) (*infra.Message, error) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	cfg := m.Config()
	t, err := m.openTicket(channelID)
	if err != nil {
		return nil, err
	}
	if !m.isStaff(cfg, t, actor) {
		return nil, NewPermissionError("Only staff can cancel an autoclose.")
	}
	task, err := m.ds.GetAutocloseTask(channelID, model.TaskAutoclose)
	if err != nil {
		return nil, fmt.Errorf("GetAutocloseTask failed: %w", err)
	}
	if task == nil {
		return nil, NewValidationError("No autoclose is scheduled for this ticket.")
	}
	if err := m.scheduler.Cancel(channelID, model.TaskAutoclose); err != nil {
		return nil, err
	}
	return infra.TextMessage("Autoclose cancelled."), nil
}

// cancelAutocloseOnActivity is called with the channel lock held.
func (m *Manager) cancelAutocloseOnActivity(ctx context.Context, t *model.Ticket, userID string) {
	task, err := m.ds.GetAutocloseTask(t.ChannelID, model.TaskAutoclose)
	if err != nil {
		slog.Error("GetAutocloseTask failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		return
	}
	if task == nil {
		return
	}
	if err := m.scheduler.Cancel(t.ChannelID, model.TaskAutoclose); err != nil {
		slog.Error("cancel autoclose failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		return
	}
	if _, err := m.gw.SendMessage(ctx, t.ChannelID, infra.TextMessage(fmt.Sprintf("🔓 Autoclose cancelled, <@%s> responded.", userID))); err != nil {
		slog.Warn("autoclose notice failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
	}
}

// Transcript renders the channel on demand. The reply is a link when an
// uploader is configured, otherwise the file itself.
func (m *Manager) Transcript(ctx context.Context, channelID string, actor Actor) (*infra.Message, error) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	cfg := m.Config()
	t, err := m.openTicket(channelID)
	if err != nil {
		return nil, err
	}
	if actor.ID != t.CreatorID && !m.isStaff(cfg, t, actor) {
		return nil, NewPermissionError("Only staff or the ticket creator can export the transcript.")
	}
	doc, err := m.pipeline.Render(ctx, t)
	if err != nil {
		return nil, err
	}
	if url := m.pipeline.Publish(ctx, t, doc); url != "" {
		return &infra.Message{Content: fmt.Sprintf("📄 Transcript: %s", url), Ephemeral: true}, nil
	}
	return &infra.Message{
		Content:   "📄 Transcript attached.",
		Files:     []infra.File{{Name: doc.Name, ContentType: "text/html", Data: doc.HTML}},
		Ephemeral: true,
	}, nil
}
