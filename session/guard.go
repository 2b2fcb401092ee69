package session

import (
	"context"
	"log/slog"

	"halisaha-bot/types"
)

type Decision int

const (
	Allowed Decision = iota
	// NeedLogin: no usable session, send the chat to the login prompt.
	NeedLogin
	// Forbidden: logged in but not privileged enough, send to the landing menu.
	Forbidden
)

// Guard answers render-or-redirect questions from persisted state only. It
// never talks to the network.
type Guard struct {
	store  Store
	logger *slog.Logger
}

func NewGuard(store Store, logger *slog.Logger) *Guard {
	return &Guard{store: store, logger: logger}
}

func (g *Guard) RequireAuthenticated(ctx context.Context, chatID int64) (types.Session, bool) {
	return load(ctx, g.store, g.logger, chatID)
}

func (g *Guard) RequireRole(ctx context.Context, chatID int64, role types.Role) (types.Session, Decision) {
	sess, ok := g.RequireAuthenticated(ctx, chatID)
	if !ok {
		return types.Session{}, NeedLogin
	}
	if !sess.Profile.Role.Covers(role) {
		return sess, Forbidden
	}
	return sess, Allowed
}
