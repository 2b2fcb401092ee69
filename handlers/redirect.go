package handlers

import (
	"context"
	"log/slog"

	"halisaha-bot/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Redirect sends a chat to the login prompt or to the landing menu. It only
// needs the bot, so it can be built before the session provider that uses it.
type Redirect struct {
	Bot    notify.Sender
	Logger *slog.Logger
}

func NewRedirect(bot notify.Sender, logger *slog.Logger) *Redirect {
	return &Redirect{Bot: bot, Logger: logger}
}

func (r *Redirect) ToLogin(_ context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "🔐 Oturumun yok ya da süresi doldu.\n\nDevam etmek için /login ile giriş yap veya /register ile kayıt ol.")
	if _, err := r.Bot.Send(msg); err != nil {
		r.Logger.Warn("login redirect failed", "chat_id", chatID, "error", err)
	}
}

func (r *Redirect) ToLanding(_ context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "⛔ Bu sayfaya erişim yetkin yok.\n\n"+menuText)
	if _, err := r.Bot.Send(msg); err != nil {
		r.Logger.Warn("landing redirect failed", "chat_id", chatID, "error", err)
	}
}
