package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pyama86/ticketbot/clock"
	"github.com/pyama86/ticketbot/config"
	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/pyama86/ticketbot/domain/model"
)

const (
	SelectPrefix   = "ticket:select:"
	CloseButtonID  = "ticket:close"
	CloseConfirmID = "ticket:close:confirm"
	CloseCancelID  = "ticket:close:cancel"

	ReasonInactivity     = "inactivity"
	ReasonChannelDeleted = "channel deleted"

	summaryFieldsPerEmbed = 5
	colorSummary          = 0x3498db
	colorWarning          = 0xf1c40f
)

func SelectCustomID(depth int) string {
	return SelectPrefix + strconv.Itoa(depth)
}

func ParseSelectCustomID(id string) (int, bool) {
	if !strings.HasPrefix(id, SelectPrefix) {
		return 0, false
	}
	depth, err := strconv.Atoi(strings.TrimPrefix(id, SelectPrefix))
	if err != nil || depth < 0 {
		return 0, false
	}
	return depth, true
}

// Actor is the member behind an event.
type Actor struct {
	ID    string
	Roles []string
}

// MessageEvent is a plain message posted in a guild text channel.
type MessageEvent struct {
	ChannelID   string
	Author      Actor
	Bot         bool
	Content     string
	Attachments []string
}

// Manager drives tickets through selection, questions, finalization and
// close. Operations on one channel are serialized; every operation re-reads
// the ticket row after taking the channel lock.
type Manager struct {
	ds           infra.Datastore
	gw           infra.Gateway
	clock        clock.Clock
	cfg          atomic.Pointer[config.Tickets]
	locks        *keyMutex
	scheduler    *Scheduler
	pipeline     *Pipeline
	router       *Router
	pendingClose *ttlcache.Cache[string, string]
	botUserID    atomic.Value
}

func NewManager(cfg *config.Tickets, ds infra.Datastore, gw infra.Gateway, pipeline *Pipeline, clk clock.Clock) *Manager {
	m := &Manager{
		ds:           ds,
		gw:           gw,
		clock:        clk,
		locks:        newKeyMutex(),
		pipeline:     pipeline,
		router:       NewRouter(gw),
		pendingClose: ttlcache.New(ttlcache.WithTTL[string, string](5 * time.Minute)),
	}
	m.cfg.Store(cfg)
	m.scheduler = NewScheduler(ds, clk, m.locks, m.onTaskFire)
	go m.pendingClose.Start()
	return m
}

func (m *Manager) Stop() {
	m.pendingClose.Stop()
}

func (m *Manager) Config() *config.Tickets {
	return m.cfg.Load()
}

// SetConfig swaps the configuration; tickets resolve their path against
// the new tree on their next event.
func (m *Manager) SetConfig(cfg *config.Tickets) {
	m.cfg.Store(cfg)
}

func (m *Manager) SetBotUserID(id string) {
	m.botUserID.Store(id)
}

func (m *Manager) Scheduler() *Scheduler {
	return m.scheduler
}

// Rehydrate re-arms every persisted timer after a restart.
func (m *Manager) Rehydrate() error {
	n, err := m.scheduler.Rehydrate()
	if err != nil {
		return err
	}
	slog.Info("rehydrated ticket timers", slog.Int("count", n))
	return nil
}

func (m *Manager) Open(ctx context.Context, guildID string, actor Actor) (*infra.Message, error) {
	cfg := m.Config()
	if cfg.MaxOpenPerUser > 0 {
		open, err := m.ds.GetOpenTickets(guildID)
		if err != nil {
			return nil, fmt.Errorf("GetOpenTickets failed: %w", err)
		}
		n := 0
		for _, t := range open {
			if t.CreatorID == actor.ID {
				n++
			}
		}
		if n >= cfg.MaxOpenPerUser {
			return nil, NewValidationError("You already have %d open ticket(s). Please use your existing ticket.", n)
		}
	}

	number, err := m.ds.NextTicketNumber(guildID)
	if err != nil {
		return nil, fmt.Errorf("NextTicketNumber failed: %w", err)
	}
	t := &model.Ticket{
		Number:       number,
		GuildID:      guildID,
		CreatorID:    actor.ID,
		Status:       model.TicketOpen,
		Phase:        model.PhaseSelecting,
		CategoryPath: model.StringList{},
		Questions:    model.StringList{},
		Answers:      model.AnswerList{},
		Participants: model.StringList{},
		CreatedAt:    m.clock.Now(),
	}

	overwrites := []infra.Overwrite{
		{ID: guildID, Role: true, Deny: infra.PermView},
		{ID: actor.ID, Allow: infra.PermMember},
	}
	if bot, _ := m.botUserID.Load().(string); bot != "" {
		overwrites = append(overwrites, infra.Overwrite{ID: bot, Allow: infra.PermStaff})
	}
	channelID, err := m.gw.CreateChannel(ctx, infra.ChannelSpec{
		GuildID:    guildID,
		Name:       t.ChannelName(),
		ParentID:   cfg.WaitingCategoryID,
		Topic:      fmt.Sprintf("Ticket #%04d opened by <@%s>", number, actor.ID),
		Overwrites: overwrites,
	})
	if err != nil {
		return nil, fmt.Errorf("create ticket channel failed: %w", err)
	}
	t.ChannelID = channelID

	unlock := m.locks.Lock(channelID)
	defer unlock()

	if err := m.ds.SaveTicket(t); err != nil {
		if derr := m.gw.DeleteChannel(ctx, channelID); derr != nil {
			slog.Error("DeleteChannel failed", slog.Any("err", derr), slog.String("channel", channelID))
		}
		return nil, fmt.Errorf("SaveTicket failed: %w", err)
	}
	m.promptSelection(ctx, t, cfg.Tree.Root())
	if err := m.save(t); err != nil {
		return nil, err
	}
	m.scheduleFlowTimeout(cfg, t, model.TaskSelect)

	slog.Info("ticket opened", slog.String("channel", channelID), slog.Uint64("number", uint64(number)), slog.String("creator", actor.ID))
	return infra.TextMessage(fmt.Sprintf("🎟 Ticket created: <#%s>", channelID)), nil
}

// SelectOption applies a category choice made on the select menu posted at
// depth. A menu from an earlier step is replaced by a fresh one; a choice the
// current tree does not know halts the flow and hands the ticket to staff.
func (m *Manager) SelectOption(ctx context.Context, channelID string, actor Actor, depth int, choice string) (*infra.Message, error) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	cfg := m.Config()
	t, err := m.openTicket(channelID)
	if err != nil {
		return nil, err
	}
	if actor.ID != t.CreatorID {
		return nil, NewPermissionError("Only the ticket creator can choose a category.")
	}
	if t.Phase != model.PhaseSelecting {
		return infra.TextMessage("This ticket has already moved past category selection."), nil
	}

	node, err := cfg.Tree.ResolveNode(t.CategoryPath)
	if err != nil {
		return m.degrade(ctx, cfg, t, err)
	}
	if depth != len(t.CategoryPath) {
		m.retirePrompt(ctx, t, "This menu has expired.")
		m.promptSelection(ctx, t, node)
		if err := m.save(t); err != nil {
			return nil, err
		}
		return infra.TextMessage("That menu is out of date. Please use the new one below."), nil
	}

	child := node.Child(choice)
	if child == nil || child.IsDeadEnd() {
		return m.degrade(ctx, cfg, t, fmt.Errorf("%w: %q is not a choice under %q", model.ErrTreeInconsistency, choice, strings.Join(t.CategoryPath, " > ")))
	}

	if err := m.scheduler.Cancel(channelID, model.TaskSelect); err != nil {
		slog.Error("cancel select timeout failed", slog.Any("err", err), slog.String("channel", channelID))
	}
	t.CategoryPath = append(t.CategoryPath, choice)
	m.retirePrompt(ctx, t, "✅ "+strings.Join(t.CategoryPath, " > "))

	if len(child.Children) > 0 {
		m.promptSelection(ctx, t, child)
		if err := m.save(t); err != nil {
			return nil, err
		}
		m.scheduleFlowTimeout(cfg, t, model.TaskSelect)
		return infra.TextMessage(fmt.Sprintf("Selected **%s**.", choice)), nil
	}

	t.Phase = model.PhaseAnswering
	t.Questions = append(model.StringList{}, child.Questions...)
	t.Answers = model.AnswerList{}
	m.askNextQuestion(ctx, t)
	if err := m.save(t); err != nil {
		return nil, err
	}
	m.scheduleFlowTimeout(cfg, t, model.TaskQuestion)
	return infra.TextMessage(fmt.Sprintf("Selected **%s**. Please answer the questions in the channel.", choice)), nil
}

// SubmitAnswer records text as the answer to the pending question.
func (m *Manager) SubmitAnswer(ctx context.Context, channelID, authorID, text string) error {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	t, err := m.openTicket(channelID)
	if err != nil {
		return err
	}
	if t.Phase != model.PhaseAnswering {
		return NewValidationError("This ticket is not waiting for an answer.")
	}
	if authorID != t.CreatorID {
		return NewPermissionError("Only the ticket creator can answer.")
	}
	return m.submitAnswerLocked(ctx, m.Config(), t, text)
}

func (m *Manager) submitAnswerLocked(ctx context.Context, cfg *config.Tickets, t *model.Ticket, text string) error {
	q, ok := t.NextQuestion()
	if !ok {
		return NewValidationError("All questions have already been answered.")
	}
	t.Answers = append(t.Answers, model.Answer{Question: q, Answer: text})

	if _, more := t.NextQuestion(); more {
		m.askNextQuestion(ctx, t)
		if err := m.save(t); err != nil {
			return err
		}
		m.scheduleFlowTimeout(cfg, t, model.TaskQuestion)
		return nil
	}

	if err := m.scheduler.Cancel(t.ChannelID, model.TaskQuestion); err != nil {
		slog.Error("cancel question timeout failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
	}
	t.PromptMessageID = ""
	if err := m.save(t); err != nil {
		return err
	}
	return m.finalizeLocked(ctx, cfg, t)
}

// Finalize hands a fully answered ticket to staff. Calling it again on a
// finalized ticket does nothing.
func (m *Manager) Finalize(ctx context.Context, channelID string) error {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	t, err := m.openTicket(channelID)
	if err != nil {
		return err
	}
	return m.finalizeLocked(ctx, m.Config(), t)
}

func (m *Manager) finalizeLocked(ctx context.Context, cfg *config.Tickets, t *model.Ticket) error {
	if t.Phase == model.PhaseFinalized || t.Phase == model.PhaseHalted {
		return nil
	}
	if t.Phase != model.PhaseAnswering {
		return NewValidationError("This ticket has not reached its questions yet.")
	}
	if len(t.Answers) < len(t.Questions) {
		return NewValidationError("This ticket still has unanswered questions.")
	}
	node, err := cfg.Tree.ResolveNode(t.CategoryPath)
	if err == nil && !node.IsLeaf() {
		err = fmt.Errorf("%w: %q is not a leaf", model.ErrTreeInconsistency, strings.Join(t.CategoryPath, " > "))
	}
	if err != nil {
		_, err = m.degrade(ctx, cfg, t, err)
		return err
	}

	staff := cfg.Tree.ResolveStaffGroup(t.CategoryPath)
	m.grantRoles(ctx, t.ChannelID, staff)

	if t.StaffThreadID == "" {
		id, err := m.gw.CreatePrivateThread(ctx, t.ChannelID, fmt.Sprintf("staff-%04d", t.Number))
		if err != nil {
			slog.Error("CreatePrivateThread failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		} else {
			t.StaffThreadID = id
			if err := m.save(t); err != nil {
				return err
			}
		}
	}
	if t.StaffThreadID != "" {
		m.inviteStaff(ctx, t, staff)
	}

	m.postSummary(ctx, t, staff)

	if node.ArchivalLocationID != "" {
		if err := m.gw.SetParent(ctx, t.ChannelID, node.ArchivalLocationID); err != nil {
			slog.Warn("move to archival category failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		}
	}

	now := m.clock.Now()
	t.Phase = model.PhaseFinalized
	t.FinalizedAt = &now
	if err := m.save(t); err != nil {
		return err
	}
	slog.Info("ticket finalized", slog.String("channel", t.ChannelID), slog.String("category", strings.Join(t.CategoryPath, " > ")))
	return nil
}

// degrade is the safe fallback for a path the tree no longer matches: staff
// get access and the automated flow stops. The actor sees no error.
func (m *Manager) degrade(ctx context.Context, cfg *config.Tickets, t *model.Ticket, cause error) (*infra.Message, error) {
	slog.Warn("category tree inconsistency, halting ticket flow", slog.Any("err", cause), slog.String("channel", t.ChannelID))

	roles := union(cfg.Tree.ResolveStaffGroup(t.CategoryPath), cfg.StaffRoleIDs)
	m.grantRoles(ctx, t.ChannelID, roles)
	for _, kind := range []model.TaskKind{model.TaskSelect, model.TaskQuestion} {
		if err := m.scheduler.Cancel(t.ChannelID, kind); err != nil {
			slog.Error("cancel flow timeout failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		}
	}
	m.retirePrompt(ctx, t, "This menu is no longer available.")

	t.Phase = model.PhaseHalted
	if err := m.save(t); err != nil {
		return nil, err
	}

	notice := &infra.Message{
		Content:      roleMentions(roles),
		MentionRoles: roles,
		Embeds: []infra.Embed{{
			Title:       "⚠️ Staff assistance needed",
			Description: "This ticket's category is no longer available, so the automated questions have stopped. Staff now have access and will help you here.",
			Color:       colorWarning,
		}},
		Buttons: []infra.Button{closeButton()},
	}
	if _, err := m.gw.SendMessage(ctx, t.ChannelID, notice); err != nil {
		slog.Error("halt notice failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
	}
	return infra.TextMessage("Staff have been given access to this ticket and will help you here."), nil
}

// HandleMessage reacts to a message in a possible ticket channel: it breaks
// a pending autoclose, collects answers and routes the channel.
func (m *Manager) HandleMessage(ctx context.Context, ev MessageEvent) {
	if ev.Bot {
		return
	}
	unlock := m.locks.Lock(ev.ChannelID)
	defer unlock()

	t, err := m.ds.GetTicket(ev.ChannelID)
	if err != nil {
		slog.Error("GetTicket failed", slog.Any("err", err), slog.String("channel", ev.ChannelID))
		return
	}
	if t == nil || !t.IsOpen() {
		return
	}
	cfg := m.Config()
	staff := m.isStaff(cfg, t, ev.Author)

	if !staff && (ev.Author.ID == t.CreatorID || t.HasParticipant(ev.Author.ID)) {
		m.cancelAutocloseOnActivity(ctx, t, ev.Author.ID)
	}

	if t.Phase == model.PhaseAnswering {
		if ev.Author.ID != t.CreatorID {
			return
		}
		text := strings.TrimSpace(ev.Content)
		if text == "" {
			text = strings.Join(ev.Attachments, "\n")
		}
		if text == "" {
			return
		}
		if err := m.submitAnswerLocked(ctx, cfg, t, text); err != nil {
			slog.Error("submit answer failed", slog.Any("err", err), slog.String("channel", ev.ChannelID))
		}
		return
	}

	m.router.Route(ctx, cfg, t, staff)
}

// HandleChannelDeleted closes the row of a channel removed outside the bot.
func (m *Manager) HandleChannelDeleted(ctx context.Context, channelID string) {
	unlock := m.locks.Lock(channelID)
	defer unlock()

	t, err := m.ds.GetTicket(channelID)
	if err != nil {
		slog.Error("GetTicket failed", slog.Any("err", err), slog.String("channel", channelID))
		return
	}
	if t == nil || !t.IsOpen() {
		return
	}
	if err := m.scheduler.CancelAll(channelID); err != nil {
		slog.Error("cancel timers failed", slog.Any("err", err), slog.String("channel", channelID))
	}
	now := m.clock.Now()
	t.Status = model.TicketClosed
	t.ClosedAt = &now
	t.CloseReason = ReasonChannelDeleted
	t.PromptMessageID = ""
	if err := m.save(t); err != nil {
		slog.Error("close deleted ticket failed", slog.Any("err", err), slog.String("channel", channelID))
		return
	}
	slog.Info("ticket channel deleted", slog.String("channel", channelID))
}

func (m *Manager) onTaskFire(ctx context.Context, task model.AutocloseTask) {
	t, err := m.ds.GetTicket(task.ChannelID)
	if err != nil {
		slog.Error("GetTicket failed", slog.Any("err", err), slog.String("channel", task.ChannelID))
		return
	}
	if t == nil || !t.IsOpen() {
		return
	}
	switch task.Kind {
	case model.TaskSelect:
		if t.Phase != model.PhaseSelecting {
			return
		}
	case model.TaskQuestion:
		if t.Phase != model.PhaseAnswering {
			return
		}
	}
	if task.Kind != model.TaskAutoclose {
		if _, err := m.gw.SendMessage(ctx, t.ChannelID, infra.TextMessage("⏱️ Ticket timed out.")); err != nil {
			slog.Warn("timeout notice failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		}
	}
	slog.Info("ticket timer fired", slog.String("channel", t.ChannelID), slog.String("kind", string(task.Kind)))
	m.closeLocked(ctx, m.Config(), t, task.ActorID, task.Reason)
}

func (m *Manager) openTicket(channelID string) (*model.Ticket, error) {
	t, err := m.ds.GetTicket(channelID)
	if err != nil {
		return nil, fmt.Errorf("GetTicket failed: %w", err)
	}
	if t == nil || !t.IsOpen() {
		return nil, errNotTicket
	}
	return t, nil
}

func (m *Manager) save(t *model.Ticket) error {
	if err := m.ds.SaveTicket(t); err != nil {
		return fmt.Errorf("SaveTicket failed: %w", err)
	}
	return nil
}

func (m *Manager) scheduleFlowTimeout(cfg *config.Tickets, t *model.Ticket, kind model.TaskKind) {
	d := cfg.SelectTimeout.Duration()
	if kind == model.TaskQuestion {
		d = cfg.QuestionTimeout.Duration()
	}
	if err := m.scheduler.Schedule(t.ChannelID, kind, m.clock.Now().Add(d), ReasonInactivity, ""); err != nil {
		slog.Error("schedule timeout failed", slog.Any("err", err), slog.String("channel", t.ChannelID), slog.String("kind", string(kind)))
	}
}

func (m *Manager) promptSelection(ctx context.Context, t *model.Ticket, node *model.CategoryNode) {
	placeholder := "Choose a category:"
	if len(t.CategoryPath) > 0 {
		placeholder = "Choose a sub-category:"
	}
	id, err := m.gw.SendMessage(ctx, t.ChannelID, &infra.Message{
		Content: fmt.Sprintf("<@%s> %s", t.CreatorID, placeholder),
		Select: &infra.Select{
			CustomID:    SelectCustomID(len(t.CategoryPath)),
			Placeholder: placeholder,
			Options:     node.ChildNames(),
		},
	})
	if err != nil {
		slog.Error("select prompt failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		return
	}
	t.PromptMessageID = id
}

// retirePrompt replaces the current menu with plain text so it cannot be
// used again.
func (m *Manager) retirePrompt(ctx context.Context, t *model.Ticket, text string) {
	if t.PromptMessageID == "" {
		return
	}
	if err := m.gw.EditMessage(ctx, t.ChannelID, t.PromptMessageID, infra.TextMessage(text)); err != nil {
		slog.Warn("EditMessage failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
	}
	t.PromptMessageID = ""
}

func (m *Manager) askNextQuestion(ctx context.Context, t *model.Ticket) {
	q, ok := t.NextQuestion()
	if !ok {
		return
	}
	id, err := m.gw.SendMessage(ctx, t.ChannelID, infra.TextMessage(
		fmt.Sprintf("<@%s> ❓ **(%d/%d)** %s", t.CreatorID, len(t.Answers)+1, len(t.Questions), q),
	))
	if err != nil {
		slog.Error("question prompt failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		return
	}
	t.PromptMessageID = id
}

// grantRoles is a set operation; repeating it changes nothing.
func (m *Manager) grantRoles(ctx context.Context, channelID string, roles []string) {
	for _, r := range roles {
		if err := m.gw.SetPermission(ctx, channelID, infra.Overwrite{ID: r, Role: true, Allow: infra.PermStaff}); err != nil {
			slog.Error("grant staff role failed", slog.Any("err", err), slog.String("channel", channelID), slog.String("role", r))
		}
	}
}

func (m *Manager) inviteStaff(ctx context.Context, t *model.Ticket, roles []string) {
	members, err := m.gw.MembersWithRoles(ctx, t.GuildID, roles)
	if err != nil {
		slog.Error("MembersWithRoles failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		return
	}
	for _, id := range members {
		if err := m.gw.AddThreadMember(ctx, t.StaffThreadID, id); err != nil {
			slog.Warn("AddThreadMember failed", slog.Any("err", err), slog.String("thread", t.StaffThreadID), slog.String("user", id))
		}
	}
}

func (m *Manager) postSummary(ctx context.Context, t *model.Ticket, staff []string) {
	embeds := summaryEmbeds(t)
	for i, e := range embeds {
		msg := &infra.Message{Embeds: []infra.Embed{e}}
		if i == 0 {
			msg.Content = roleMentions(staff)
			msg.MentionRoles = staff
		}
		if i == len(embeds)-1 {
			msg.Buttons = []infra.Button{closeButton()}
		}
		if _, err := m.gw.SendMessage(ctx, t.ChannelID, msg); err != nil {
			slog.Error("summary post failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		}
	}
}

func summaryEmbeds(t *model.Ticket) []infra.Embed {
	first := infra.Embed{
		Title:       "📝 Ticket Summary",
		Description: fmt.Sprintf("**Category:** %s\n**Opened by:** <@%s>", strings.Join(t.CategoryPath, " > "), t.CreatorID),
		Color:       colorSummary,
		Footer:      fmt.Sprintf("Ticket #%04d", t.Number),
	}
	embeds := []infra.Embed{first}
	cur := &embeds[0]
	for _, qa := range t.Answers {
		if len(cur.Fields) >= summaryFieldsPerEmbed {
			embeds = append(embeds, infra.Embed{Color: colorSummary})
			cur = &embeds[len(embeds)-1]
		}
		cur.Fields = append(cur.Fields, infra.Field{Name: truncate(qa.Question, 256), Value: truncate(qa.Answer, 1024)})
	}
	return embeds
}

func closeButton() infra.Button {
	return infra.Button{CustomID: CloseButtonID, Label: "🔒 Close", Style: infra.ButtonDanger}
}

func roleMentions(roles []string) string {
	mentions := make([]string, 0, len(roles))
	for _, r := range roles {
		mentions = append(mentions, fmt.Sprintf("<@&%s>", r))
	}
	return strings.Join(mentions, " ")
}

func union(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
