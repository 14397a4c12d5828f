package ticket

import (
	"context"
	"testing"

	"github.com/pyama86/ticketbot/config"
	"github.com/pyama86/ticketbot/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Target(t *testing.T) {
	cfg, err := config.ParseTickets([]byte(testTickets))
	require.NoError(t, err)
	r := NewRouter(newFakeGateway())

	tests := []struct {
		name   string
		ticket model.Ticket
		staff  bool
		want   string
	}{
		{
			name:   "selecting is never moved",
			ticket: model.Ticket{Phase: model.PhaseSelecting},
			staff:  true,
			want:   "",
		},
		{
			name:   "staff reply",
			ticket: model.Ticket{Phase: model.PhaseFinalized, CategoryPath: model.StringList{"Java", "Hub"}},
			staff:  true,
			want:   "responded-cat",
		},
		{
			name:   "member reply goes to leaf category",
			ticket: model.Ticket{Phase: model.PhaseFinalized, CategoryPath: model.StringList{"Java", "Hub"}},
			want:   "hub-cat",
		},
		{
			name:   "member reply without leaf category",
			ticket: model.Ticket{Phase: model.PhaseFinalized, CategoryPath: model.StringList{"Billing"}},
			want:   "waiting-cat",
		},
		{
			name:   "assigned",
			ticket: model.Ticket{Phase: model.PhaseFinalized, CategoryPath: model.StringList{"Billing"}, AssignedTo: "s"},
			want:   "assigned-cat",
		},
		{
			name:   "halted with stale path",
			ticket: model.Ticket{Phase: model.PhaseHalted, CategoryPath: model.StringList{"Gone"}},
			want:   "waiting-cat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Target(cfg, &tt.ticket, tt.staff))
		})
	}
}

func TestRouter_Route(t *testing.T) {
	cfg, err := config.ParseTickets([]byte(testTickets))
	require.NoError(t, err)
	gw := newFakeGateway()
	r := NewRouter(gw)
	ctx := context.Background()

	gw.channel("c1").parent = "waiting-cat"
	tk := &model.Ticket{ChannelID: "c1", Phase: model.PhaseFinalized, CategoryPath: model.StringList{"Billing"}}

	r.Route(ctx, cfg, tk, true)
	assert.Equal(t, "responded-cat", gw.parentOf("c1"))
	r.Route(ctx, cfg, tk, false)
	assert.Equal(t, "waiting-cat", gw.parentOf("c1"))

	// unconfigured targets leave the channel alone
	cfg.RespondedCategoryID = ""
	r.Route(ctx, cfg, tk, true)
	assert.Equal(t, "waiting-cat", gw.parentOf("c1"))
}
