package ticket

import (
	"context"
	"log/slog"

	"github.com/pyama86/ticketbot/config"
	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/pyama86/ticketbot/domain/model"
)

// Router moves a ticket channel between the waiting, responded and
// assigned categories depending on who spoke last.
type Router struct {
	gw infra.Gateway
}

func NewRouter(gw infra.Gateway) *Router {
	return &Router{gw: gw}
}

// Target returns the category the channel belongs in, or "" to leave it.
func (r *Router) Target(cfg *config.Tickets, t *model.Ticket, staff bool) string {
	if t.Phase != model.PhaseFinalized && t.Phase != model.PhaseHalted {
		return ""
	}
	if staff {
		return cfg.RespondedCategoryID
	}
	if t.AssignedTo != "" && cfg.AssignedCategoryID != "" {
		return cfg.AssignedCategoryID
	}
	return waitingLocation(cfg, t)
}

func (r *Router) Route(ctx context.Context, cfg *config.Tickets, t *model.Ticket, staff bool) {
	target := r.Target(cfg, t, staff)
	if target == "" {
		return
	}
	current, err := r.gw.ChannelParent(ctx, t.ChannelID)
	if err != nil {
		slog.Error("ChannelParent failed", slog.Any("err", err), slog.String("channel", t.ChannelID))
		return
	}
	if current == target {
		return
	}
	if err := r.gw.SetParent(ctx, t.ChannelID, target); err != nil {
		slog.Error("SetParent failed", slog.Any("err", err), slog.String("channel", t.ChannelID), slog.String("parent", target))
	}
}

// waitingLocation is the leaf's own category when it has one.
func waitingLocation(cfg *config.Tickets, t *model.Ticket) string {
	if node, err := cfg.Tree.ResolveNode(t.CategoryPath); err == nil && node.ArchivalLocationID != "" {
		return node.ArchivalLocationID
	}
	return cfg.WaitingCategoryID
}
