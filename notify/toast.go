// Package notify shows short-lived status messages ("toasts") in a chat.
package notify

import (
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DismissData is the callback data of the toast close button.
const DismissData = "toast_dismiss"

// Sender is the part of *tgbotapi.BotAPI the bot's components use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Kind int

const (
	Success Kind = iota
	Error
	Info
	Warning
)

func (k Kind) icon() string {
	switch k {
	case Success:
		return "✅"
	case Error:
		return "❌"
	case Warning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

type stopper interface {
	Stop() bool
}

type toast struct {
	messageID int
	timer     stopper
}

// Toaster keeps at most one toast per chat. A new toast replaces the
// previous one, and each toast deletes itself when its duration elapses.
type Toaster struct {
	bot      Sender
	duration time.Duration
	logger   *slog.Logger

	afterFunc func(d time.Duration, f func()) stopper

	mu     sync.Mutex
	active map[int64]toast
}

func NewToaster(bot Sender, duration time.Duration, logger *slog.Logger) *Toaster {
	return &Toaster{
		bot:      bot,
		duration: duration,
		logger:   logger,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		active: make(map[int64]toast),
	}
}

// Show sends a toast. A zero duration uses the configured default.
func (t *Toaster) Show(chatID int64, text string, kind Kind, d time.Duration) error {
	if d <= 0 {
		d = t.duration
	}

	msg := tgbotapi.NewMessage(chatID, kind.icon()+" "+text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖ Kapat", DismissData)),
	)
	sent, err := t.bot.Send(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	prev, hadPrev := t.active[chatID]
	t.active[chatID] = toast{
		messageID: sent.MessageID,
		timer:     t.afterFunc(d, func() { t.expire(chatID, sent.MessageID) }),
	}
	t.mu.Unlock()

	if hadPrev {
		prev.timer.Stop()
		t.remove(chatID, prev.messageID)
	}
	return nil
}

func (t *Toaster) Success(chatID int64, text string) error { return t.Show(chatID, text, Success, 0) }
func (t *Toaster) Error(chatID int64, text string) error   { return t.Show(chatID, text, Error, 0) }
func (t *Toaster) Info(chatID int64, text string) error    { return t.Show(chatID, text, Info, 0) }
func (t *Toaster) Warning(chatID int64, text string) error { return t.Show(chatID, text, Warning, 0) }

// Dismiss closes the chat's toast if messageID is still the current one.
// It reports whether a toast was removed.
func (t *Toaster) Dismiss(chatID int64, messageID int) bool {
	t.mu.Lock()
	cur, ok := t.active[chatID]
	if !ok || cur.messageID != messageID {
		t.mu.Unlock()
		return false
	}
	delete(t.active, chatID)
	t.mu.Unlock()

	cur.timer.Stop()
	t.remove(chatID, messageID)
	return true
}

// Active returns the message id of the chat's current toast.
func (t *Toaster) Active(chatID int64) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.active[chatID]
	return cur.messageID, ok
}

func (t *Toaster) expire(chatID int64, messageID int) {
	t.mu.Lock()
	cur, ok := t.active[chatID]
	if !ok || cur.messageID != messageID {
		t.mu.Unlock()
		return
	}
	delete(t.active, chatID)
	t.mu.Unlock()

	t.remove(chatID, messageID)
}

func (t *Toaster) remove(chatID int64, messageID int) {
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		t.logger.Debug("toast delete failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}
