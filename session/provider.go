package session

import (
	"context"
	"fmt"
	"log/slog"

	"halisaha-bot/types"
)

// Provider is the single mutation surface for sessions. It also plugs into
// the API client: it supplies bearer tokens and handles every 401.
type Provider struct {
	store    Store
	redirect Redirector
	logger   *slog.Logger
}

func NewProvider(store Store, redirect Redirector, logger *slog.Logger) *Provider {
	return &Provider{store: store, redirect: redirect, logger: logger}
}

// Start persists a fresh session after login or registration. A session the
// guard would later discard is refused here instead.
func (p *Provider) Start(ctx context.Context, chatID int64, token string, profile types.Profile) error {
	sess := types.Session{Token: token, Profile: profile}
	if err := validate(sess); err != nil {
		return err
	}
	if err := p.store.SaveSession(ctx, chatID, sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	p.logger.Info("session started", "chat_id", chatID, "user_id", profile.ID, "role", profile.Role)
	return nil
}

// UpdateProfile replaces the stored profile and keeps the token.
func (p *Provider) UpdateProfile(ctx context.Context, chatID int64, profile types.Profile) error {
	sess, ok := load(ctx, p.store, p.logger, chatID)
	if !ok {
		return ErrIncomplete
	}
	if profile.Role == "" {
		profile.Role = sess.Profile.Role
	}
	sess.Profile = profile
	if err := validate(sess); err != nil {
		return err
	}
	if err := p.store.SaveSession(ctx, chatID, sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// End is an explicit logout.
func (p *Provider) End(ctx context.Context, chatID int64) error {
	if _, err := p.store.DeleteSession(ctx, chatID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	p.logger.Info("session ended", "chat_id", chatID)
	return nil
}

// Token implements api.Auth.
func (p *Provider) Token(ctx context.Context) (string, bool) {
	chatID, ok := ChatFrom(ctx)
	if !ok {
		return "", false
	}
	sess, ok := load(ctx, p.store, p.logger, chatID)
	if !ok {
		return "", false
	}
	return sess.Token, true
}

// Expire implements api.Auth. It clears the chat's session and redirects to
// the login prompt. Only the caller that actually removed the session
// redirects, so concurrent 401s produce a single prompt.
func (p *Provider) Expire(ctx context.Context) {
	chatID, ok := ChatFrom(ctx)
	if !ok {
		p.logger.Warn("401 without chat in context")
		return
	}

	// The request context may already be done; the cleanup must still happen.
	ctx = context.WithoutCancel(ctx)

	deleted, err := p.store.DeleteSession(ctx, chatID)
	if err != nil {
		p.logger.Error("clearing expired session", "chat_id", chatID, "error", err)
		return
	}
	if !deleted {
		return
	}

	p.logger.Info("session expired", "chat_id", chatID)
	p.redirect.ToLogin(ctx, chatID)
}
