// Package session owns the persisted login state of every chat: the guard
// consulted before protected commands and the provider that is the only code
// allowed to write it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"halisaha-bot/types"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrIncomplete   = errors.New("session: token and profile are both required")
	ErrUnknownRole  = errors.New("session: unknown role")
	ErrInvalidToken = errors.New("session: token is not a JWT")
)

type chatKey struct{}

// WithChat marks ctx as acting on behalf of chatID.
func WithChat(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, chatKey{}, chatID)
}

func ChatFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(chatKey{}).(int64)
	return id, ok
}

// Store is the persisted session storage.
type Store interface {
	SaveSession(ctx context.Context, chatID int64, sess types.Session) error
	GetSession(ctx context.Context, chatID int64) ([]byte, error)
	DeleteSession(ctx context.Context, chatID int64) (bool, error)
}

// Redirector moves a chat to the login prompt or to the landing menu.
type Redirector interface {
	ToLogin(ctx context.Context, chatID int64)
	ToLanding(ctx context.Context, chatID int64)
}

// load reads and validates the stored session. Anything unreadable counts as
// no session at all.
func load(ctx context.Context, store Store, logger *slog.Logger, chatID int64) (types.Session, bool) {
	raw, err := store.GetSession(ctx, chatID)
	if err != nil {
		logger.Error("reading session", "chat_id", chatID, "error", err)
		return types.Session{}, false
	}
	if raw == nil {
		return types.Session{}, false
	}

	sess, ok := decode(raw)
	if !ok {
		logger.Warn("discarding malformed session", "chat_id", chatID)
	}
	return sess, ok
}

func decode(raw []byte) (types.Session, bool) {
	var sess types.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return types.Session{}, false
	}
	if validate(sess) != nil {
		return types.Session{}, false
	}
	return sess, true
}

// validate is the shape every stored session must have. Signatures are the
// backend's business; only the token's structure is checked here.
func validate(sess types.Session) error {
	if !sess.Complete() {
		return ErrIncomplete
	}
	if !sess.Profile.Role.Valid() {
		return ErrUnknownRole
	}
	if _, _, err := jwt.NewParser().ParseUnverified(sess.Token, jwt.MapClaims{}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
