package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type formKind string

const (
	formLogin         formKind = "login"
	formRegister      formKind = "register"
	formEditProfile   formKind = "edit_profile"
	formPassword      formKind = "password"
	formRatingComment formKind = "rating_comment"
)

type formStep struct {
	key    string
	prompt string
	// secret answers are deleted from the chat once read.
	secret bool
}

var formSteps = map[formKind][]formStep{
	formLogin: {
		{key: "email", prompt: "📧 E-posta adresin:"},
		{key: "password", prompt: "🔑 Şifren:", secret: true},
	},
	formRegister: {
		{key: "name", prompt: "👤 Adın soyadın:"},
		{key: "email", prompt: "📧 E-posta adresin:"},
		{key: "password", prompt: "🔑 Şifre belirle (en az 6 karakter):", secret: true},
		{key: "confirm", prompt: "🔑 Şifreyi tekrar yaz:", secret: true},
	},
	formEditProfile: {
		{key: "name", prompt: "👤 Yeni adın (değiştirmemek için -):"},
		{key: "phone", prompt: "📱 Telefon (değiştirmemek için -):"},
		{key: "city", prompt: "🏙 Şehir (değiştirmemek için -):"},
	},
	formPassword: {
		{key: "current", prompt: "🔑 Mevcut şifren:", secret: true},
		{key: "new", prompt: "🔑 Yeni şifre (en az 6 karakter):", secret: true},
		{key: "confirm", prompt: "🔑 Yeni şifreyi tekrar yaz:", secret: true},
	},
	formRatingComment: {
		{key: "comment", prompt: "💬 Yorumunu yaz:"},
	},
}

// form is a multi-step text conversation. Every answer is kept until the
// last step, then the whole form is submitted at once.
type form struct {
	kind   formKind
	step   int
	values map[string]string
}

func (f *form) done() bool {
	return f.step >= len(formSteps[f.kind])
}

// startForm replaces any form in progress and asks the first question.
func (h *Handler) startForm(chatID int64, kind formKind, intro string) {
	h.withState(chatID, func(s *chatState) {
		s.form = &form{kind: kind, values: make(map[string]string)}
	})
	text := formSteps[kind][0].prompt
	if intro != "" {
		text = intro + "\n\n" + text
	}
	h.send(chatID, text+"\n\n(/cancel ile vazgeçebilirsin)")
}

// rewindForm goes back to the step with the given key, e.g. after the two
// password answers did not match.
func (h *Handler) rewindForm(chatID int64, kind formKind, key string, values map[string]string) {
	steps := formSteps[kind]
	for i, st := range steps {
		if st.key != key {
			continue
		}
		h.withState(chatID, func(s *chatState) {
			s.form = &form{kind: kind, step: i, values: values}
		})
		h.send(chatID, st.prompt)
		return
	}
}

// handleFormInput consumes msg as the answer to the current form step. It
// reports false when the chat has no form in progress.
func (h *Handler) handleFormInput(ctx context.Context, msg *tgbotapi.Message) bool {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	var (
		active   bool
		finished *form
		next     formStep
		secret   bool
	)
	h.withState(chatID, func(s *chatState) {
		f := s.form
		if f == nil || f.done() {
			return
		}
		active = true
		step := formSteps[f.kind][f.step]
		secret = step.secret
		f.values[step.key] = text
		f.step++
		if f.done() {
			finished = &form{kind: f.kind, step: f.step, values: f.values}
			// Register still waits for the role button.
			if f.kind != formRegister {
				s.form = nil
			}
			return
		}
		next = formSteps[f.kind][f.step]
	})
	if !active {
		return false
	}

	if secret {
		if _, err := h.Bot.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
			h.Logger.Debug("deleting secret answer failed", "chat_id", chatID, "error", err)
		}
	}

	if finished == nil {
		h.send(chatID, next.prompt)
		return true
	}

	switch finished.kind {
	case formLogin:
		h.submitLogin(ctx, chatID, finished.values)
	case formRegister:
		h.askRegisterRole(chatID, finished.values)
	case formEditProfile:
		h.submitEditProfile(ctx, chatID, finished.values)
	case formPassword:
		h.submitChangePassword(ctx, chatID, finished.values)
	case formRatingComment:
		h.submitRatingComment(ctx, chatID, finished.values["comment"])
	}
	return true
}

// keep turns the "-" answer into an empty value.
func keep(v string) string {
	if v == "-" {
		return ""
	}
	return v
}
