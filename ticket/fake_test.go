package ticket

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pyama86/ticketbot/clock"
	"github.com/pyama86/ticketbot/config"
	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/pyama86/ticketbot/domain/model"
	"github.com/stretchr/testify/require"
)

var errFake = errors.New("fake failure")

type fakeChannel struct {
	parent     string
	overwrites map[string]infra.Overwrite
	messages   []*infra.Message
	history    []model.TranscriptLine
	deleted    bool
}

// fakeGateway is an in-memory guild.
type fakeGateway struct {
	mu            sync.Mutex
	seq           int
	channels      map[string]*fakeChannel
	threads       map[string]string // thread id -> channel id
	threadMembers map[string][]string
	roleMembers   map[string][]string
	dms           map[string][]*infra.Message
	edits         map[string]*infra.Message
	setPerms      int
	failDM        map[string]bool
	failDelete    bool
	failHistory   bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels:      map[string]*fakeChannel{},
		threads:       map[string]string{},
		threadMembers: map[string][]string{},
		roleMembers:   map[string][]string{},
		dms:           map[string][]*infra.Message{},
		edits:         map[string]*infra.Message{},
		failDM:        map[string]bool{},
	}
}

func (g *fakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s%d", prefix, g.seq)
}

func (g *fakeGateway) channel(id string) *fakeChannel {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.channels[id]; ok {
		return c
	}
	c := &fakeChannel{overwrites: map[string]infra.Overwrite{}}
	g.channels[id] = c
	return c
}

func (g *fakeGateway) CreateChannel(ctx context.Context, spec infra.ChannelSpec) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID("chan")
	c := &fakeChannel{parent: spec.ParentID, overwrites: map[string]infra.Overwrite{}}
	for _, o := range spec.Overwrites {
		c.overwrites[o.ID] = o
	}
	g.channels[id] = c
	return id, nil
}

func (g *fakeGateway) DeleteChannel(ctx context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDelete {
		return errFake
	}
	if c, ok := g.channels[channelID]; ok {
		c.deleted = true
	}
	return nil
}

func (g *fakeGateway) SetParent(ctx context.Context, channelID, parentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.channels[channelID]
	if !ok {
		return errFake
	}
	c.parent = parentID
	return nil
}

func (g *fakeGateway) ChannelParent(ctx context.Context, channelID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.channels[channelID]
	if !ok {
		return "", errFake
	}
	return c.parent, nil
}

func (g *fakeGateway) SetPermission(ctx context.Context, channelID string, o infra.Overwrite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.channels[channelID]
	if !ok {
		return errFake
	}
	g.setPerms++
	c.overwrites[o.ID] = o
	return nil
}

func (g *fakeGateway) DeletePermission(ctx context.Context, channelID, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.channels[channelID]
	if !ok {
		return errFake
	}
	delete(c.overwrites, id)
	return nil
}

func (g *fakeGateway) SendMessage(ctx context.Context, channelID string, msg *infra.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.channels[channelID]
	if !ok {
		c = &fakeChannel{overwrites: map[string]infra.Overwrite{}}
		g.channels[channelID] = c
	}
	id := g.nextID("msg")
	c.messages = append(c.messages, msg)
	c.history = append(c.history, model.TranscriptLine{MessageID: id, User: "ticketbot", Bot: true, Text: msg.Content})
	return id, nil
}

func (g *fakeGateway) EditMessage(ctx context.Context, channelID, messageID string, msg *infra.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edits[messageID] = msg
	return nil
}

func (g *fakeGateway) FetchHistory(ctx context.Context, channelID string) ([]model.TranscriptLine, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failHistory {
		return nil, errFake
	}
	c, ok := g.channels[channelID]
	if !ok {
		return nil, errFake
	}
	return append([]model.TranscriptLine{}, c.history...), nil
}

func (g *fakeGateway) CreatePrivateThread(ctx context.Context, channelID, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID("thread")
	g.threads[id] = channelID
	return id, nil
}

func (g *fakeGateway) AddThreadMember(ctx context.Context, threadID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threadMembers[threadID] = append(g.threadMembers[threadID], userID)
	return nil
}

func (g *fakeGateway) MembersWithRoles(ctx context.Context, guildID string, roleIDs []string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, r := range roleIDs {
		for _, u := range g.roleMembers[r] {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (g *fakeGateway) SendDirectMessage(ctx context.Context, userID string, msg *infra.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDM[userID] {
		return errFake
	}
	g.dms[userID] = append(g.dms[userID], msg)
	return nil
}

// say records a member message in the channel history.
func (g *fakeGateway) say(channelID, userID, text string) {
	c := g.channel(channelID)
	g.mu.Lock()
	defer g.mu.Unlock()
	c.history = append(c.history, model.TranscriptLine{AuthorID: userID, User: "user-" + userID, Text: text})
}

func (g *fakeGateway) messages(channelID string) []*infra.Message {
	c := g.channel(channelID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*infra.Message{}, c.messages...)
}

func (g *fakeGateway) parentOf(channelID string) string {
	c := g.channel(channelID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return c.parent
}

func (g *fakeGateway) overwrite(channelID, id string) (infra.Overwrite, bool) {
	c := g.channel(channelID)
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := c.overwrites[id]
	return o, ok
}

func (g *fakeGateway) isDeleted(channelID string) bool {
	c := g.channel(channelID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return c.deleted
}

func (g *fakeGateway) threadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.threads)
}

func (g *fakeGateway) containsText(channelID, text string) bool {
	for _, m := range g.messages(channelID) {
		if strings.Contains(m.Content, text) {
			return true
		}
		for _, e := range m.Embeds {
			if strings.Contains(e.Title, text) || strings.Contains(e.Description, text) {
				return true
			}
		}
	}
	return false
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (u *fakeUploader) Upload(ctx context.Context, channelID, name string, data []byte) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return u.url + "/" + name, nil
}

const (
	testGuild       = "guild1"
	testCreator     = "creator1"
	testStaff       = "staff1"
	testOutsider    = "outsider1"
	roleGlobalStaff = "role-staff"
	roleJavaStaff   = "role-java"
	roleCloser      = "role-closer"
)

const testTickets = `
categories:
  Java:
    staff_roles: [role-java]
    children:
      Hub:
        category_id: hub-cat
        questions: ["What issue are you experiencing in Hub?"]
      Prison:
        questions: ["What is your IGN?", "What happened?"]
  Billing:
    questions: ["Order id?"]
staff_role_ids: [role-staff]
closing_role_ids: [role-closer]
waiting_category_id: waiting-cat
responded_category_id: responded-cat
assigned_category_id: assigned-cat
log_channel_id: log-chan
dm_creator: true
dm_closer: true
select_timeout: 10m
question_timeout: 30m
`

type harness struct {
	m     *Manager
	gw    *fakeGateway
	ds    *infra.DataBase
	clock *clock.FakeClock
	cfg   *config.Tickets
}

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg, err := config.ParseTickets([]byte(testTickets))
	require.NoError(t, err)
	ds, err := infra.OpenDataBase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	gw := newFakeGateway()
	gw.roleMembers[roleJavaStaff] = []string{"java-mod"}
	gw.roleMembers[roleGlobalStaff] = []string{testStaff}
	clk := clock.Fake(testStart)
	m := NewManager(cfg, ds, gw, NewPipeline(gw), clk)
	t.Cleanup(m.Stop)
	return &harness{m: m, gw: gw, ds: ds, clock: clk, cfg: cfg}
}

func (h *harness) restart(t *testing.T) {
	t.Helper()
	h.clock = clock.Fake(h.clock.Now())
	h.m = NewManager(h.cfg, h.ds, h.gw, NewPipeline(h.gw), h.clock)
	t.Cleanup(h.m.Stop)
}

var (
	creator  = Actor{ID: testCreator}
	staff    = Actor{ID: testStaff, Roles: []string{roleGlobalStaff}}
	outsider = Actor{ID: testOutsider}
	closer   = Actor{ID: "closer1", Roles: []string{roleCloser}}
)

func (h *harness) open(t *testing.T) string {
	t.Helper()
	msg, err := h.m.Open(context.Background(), testGuild, creator)
	require.NoError(t, err)
	tk, err := h.ds.GetOpenTickets(testGuild)
	require.NoError(t, err)
	require.NotEmpty(t, tk)
	channelID := tk[len(tk)-1].ChannelID
	require.Contains(t, msg.Content, "<#"+channelID+">")
	return channelID
}

func (h *harness) ticket(t *testing.T, channelID string) *model.Ticket {
	t.Helper()
	tk, err := h.ds.GetTicket(channelID)
	require.NoError(t, err)
	require.NotNil(t, tk)
	return tk
}

func (h *harness) creatorSays(channelID, text string) {
	h.gw.say(channelID, testCreator, text)
	h.m.HandleMessage(context.Background(), MessageEvent{ChannelID: channelID, Author: creator, Content: text})
}

func (h *harness) staffSays(channelID, text string) {
	h.gw.say(channelID, testStaff, text)
	h.m.HandleMessage(context.Background(), MessageEvent{ChannelID: channelID, Author: staff, Content: text})
}

// finalized opens a ticket and walks it to Java > Hub.
func (h *harness) finalized(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	id := h.open(t)
	_, err := h.m.SelectOption(ctx, id, creator, 0, "Java")
	require.NoError(t, err)
	_, err = h.m.SelectOption(ctx, id, creator, 1, "Hub")
	require.NoError(t, err)
	h.creatorSays(id, "lag")
	require.Equal(t, model.PhaseFinalized, h.ticket(t, id).Phase)
	return id
}

func (h *harness) tasks(t *testing.T, channelID string) []model.AutocloseTask {
	t.Helper()
	all, err := h.ds.GetAutocloseTasks()
	require.NoError(t, err)
	var out []model.AutocloseTask
	for _, task := range all {
		if task.ChannelID == channelID {
			out = append(out, task)
		}
	}
	return out
}
