package handlers

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"halisaha-bot/notify"
	"halisaha-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const ratingStep = 10

var ratingScores = []struct {
	key   string
	label string
	get   func(r *types.PlayerRating) *int
}{
	{"speed", "Hız", func(r *types.PlayerRating) *int { return &r.Speed }},
	{"technique", "Teknik", func(r *types.PlayerRating) *int { return &r.Technique }},
	{"passing", "Pas", func(r *types.PlayerRating) *int { return &r.Passing }},
	{"physical", "Fizik", func(r *types.PlayerRating) *int { return &r.Physical }},
}

var ratingFlags = []struct {
	key   string
	label string
	get   func(r *types.PlayerRating) *bool
}{
	{"showedUp", "Maça geldi", func(r *types.PlayerRating) *bool { return &r.ShowedUp }},
	{"causedTrouble", "Sorun çıkardı", func(r *types.PlayerRating) *bool { return &r.CausedTrouble }},
	{"wasLate", "Geç kaldı", func(r *types.PlayerRating) *bool { return &r.WasLate }},
}

// adjustRating applies one "score:+", "score:-" or flag toggle to r. Scores
// move by ratingStep and stay within 0..100.
func adjustRating(r *types.PlayerRating, change string) bool {
	key, dir, _ := strings.Cut(change, ":")
	for _, s := range ratingScores {
		if s.key != key {
			continue
		}
		v := s.get(r)
		switch dir {
		case "+":
			*v = min(*v+ratingStep, 100)
		case "-":
			*v = max(*v-ratingStep, 0)
		default:
			return false
		}
		return true
	}
	for _, f := range ratingFlags {
		if f.key == key {
			v := f.get(r)
			*v = !*v
			return true
		}
	}
	return false
}

// HandleRate opens (or resumes) the draft rating for a player. Drafts live
// in storage until /rate_submit sends all of them at once.
func (h *Handler) HandleRate(ctx context.Context, chatID int64, userID string) {
	sess, ok := h.protect(ctx, chatID, "")
	if !ok {
		return
	}
	if userID == "" {
		h.send(chatID, "Kullanım: /rate <kullanıcı-id>")
		return
	}
	if userID == sess.Profile.ID {
		h.toast(chatID, notify.Warning, "Kendini değerlendiremezsin.")
		return
	}

	draft, err := h.Store.GetRatingDraft(ctx, chatID)
	if err != nil {
		h.Logger.Error("loading rating draft", "chat_id", chatID, "error", err)
		h.toast(chatID, notify.Error, "Taslak yüklenemedi.")
		return
	}
	r, ok := draft[userID]
	if !ok {
		r = types.NewPlayerRating(userID)
		draft[userID] = r
		if err := h.Store.SaveRatingDraft(ctx, chatID, draft); err != nil {
			h.Logger.Error("saving rating draft", "chat_id", chatID, "error", err)
		}
	}

	h.withState(chatID, func(s *chatState) { s.ratingTarget = userID })
	text, kb := renderRating(r, len(draft))
	h.sendWithKeyboard(chatID, text, kb)
}

func renderRating(r types.PlayerRating, drafts int) (string, *tgbotapi.InlineKeyboardMarkup) {
	var b strings.Builder
	fmt.Fprintf(&b, "⭐ Oyuncu değerlendirmesi: %s\n\n", r.RatedUserID)
	if r.Comment != "" {
		fmt.Fprintf(&b, "💬 %s\n", r.Comment)
	}
	fmt.Fprintf(&b, "\nTaslakta %d oyuncu var. Hepsini /rate_submit ile gönder.", drafts)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, s := range ratingScores {
		v := *s.get(&r)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("➖", "rt:"+s.key+":-"),
			button(fmt.Sprintf("%s: %d", s.label, v), noopData),
			button("➕", "rt:"+s.key+":+"),
		))
	}
	var flags []tgbotapi.InlineKeyboardButton
	for _, f := range ratingFlags {
		label := "⬜ " + f.label
		if *f.get(&r) {
			label = "✅ " + f.label
		}
		flags = append(flags, button(label, "rt:"+f.key))
	}
	rows = append(rows, flags)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("💬 Yorum", "rt:comment"),
		button("📤 Gönder", "rt:submit"),
		button("🗑 Sil", "rt:discard"),
	))
	return b.String(), keyboard(rows)
}

func (h *Handler) handleRatingAdjust(ctx context.Context, cq *tgbotapi.CallbackQuery, change string) {
	chatID := cq.Message.Chat.ID

	switch change {
	case "submit":
		h.answer(cq, "")
		h.HandleRateSubmit(ctx, chatID)
		return
	case "comment":
		h.answer(cq, "")
		h.startForm(chatID, formRatingComment, "")
		return
	}

	var target string
	h.withState(chatID, func(s *chatState) { target = s.ratingTarget })
	if target == "" {
		h.answer(cq, "Önce /rate ile bir oyuncu seç")
		return
	}

	draft, err := h.Store.GetRatingDraft(ctx, chatID)
	if err != nil {
		h.Logger.Error("loading rating draft", "chat_id", chatID, "error", err)
		h.answer(cq, "Taslak yüklenemedi")
		return
	}

	if change == "discard" {
		delete(draft, target)
		if err := h.Store.SaveRatingDraft(ctx, chatID, draft); err != nil {
			h.Logger.Error("saving rating draft", "chat_id", chatID, "error", err)
		}
		h.withState(chatID, func(s *chatState) { s.ratingTarget = "" })
		h.answer(cq, "Taslak silindi")
		h.edit(chatID, cq.Message.MessageID, "🗑 Değerlendirme taslağı silindi.", nil)
		return
	}

	r, ok := draft[target]
	if !ok {
		r = types.NewPlayerRating(target)
	}
	if !adjustRating(&r, change) {
		h.answer(cq, "Bilinmeyen işlem")
		return
	}
	draft[target] = r
	if err := h.Store.SaveRatingDraft(ctx, chatID, draft); err != nil {
		h.Logger.Error("saving rating draft", "chat_id", chatID, "error", err)
		h.answer(cq, "Kaydedilemedi")
		return
	}
	h.answer(cq, "")
	text, kb := renderRating(r, len(draft))
	h.edit(chatID, cq.Message.MessageID, text, kb)
}

func (h *Handler) submitRatingComment(ctx context.Context, chatID int64, comment string) {
	var target string
	h.withState(chatID, func(s *chatState) { target = s.ratingTarget })
	if target == "" {
		return
	}
	draft, err := h.Store.GetRatingDraft(ctx, chatID)
	if err != nil {
		h.Logger.Error("loading rating draft", "chat_id", chatID, "error", err)
		return
	}
	r, ok := draft[target]
	if !ok {
		r = types.NewPlayerRating(target)
	}
	r.Comment = keep(comment)
	draft[target] = r
	if err := h.Store.SaveRatingDraft(ctx, chatID, draft); err != nil {
		h.Logger.Error("saving rating draft", "chat_id", chatID, "error", err)
		return
	}
	text, kb := renderRating(r, len(draft))
	h.sendWithKeyboard(chatID, text, kb)
}

func (h *Handler) HandleRateSubmit(ctx context.Context, chatID int64) {
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		return
	}

	draft, err := h.Store.GetRatingDraft(ctx, chatID)
	if err != nil {
		h.Logger.Error("loading rating draft", "chat_id", chatID, "error", err)
		h.toast(chatID, notify.Error, "Taslak yüklenemedi.")
		return
	}
	if len(draft) == 0 {
		h.toast(chatID, notify.Info, "Gönderilecek değerlendirme yok.")
		return
	}

	key := busyKey(chatID, "ratings")
	if !h.busy.TryAcquire(key) {
		h.toast(chatID, notify.Info, "Değerlendirmeler gönderiliyor...")
		return
	}
	defer h.busy.Release(key)

	ratings := make([]types.PlayerRating, 0, len(draft))
	for _, id := range slices.Sorted(maps.Keys(draft)) {
		ratings = append(ratings, draft[id])
	}
	if err := h.API.SubmitRatings(ctx, ratings); err != nil {
		h.fail(chatID, "submit ratings", err)
		return
	}
	if err := h.Store.DeleteRatingDraft(ctx, chatID); err != nil {
		h.Logger.Warn("clearing rating draft", "chat_id", chatID, "error", err)
	}
	h.withState(chatID, func(s *chatState) { s.ratingTarget = "" })
	h.succeed(chatID, fmt.Sprintf("%d değerlendirme gönderildi", len(ratings)))
}

func (h *Handler) HandleRatings(ctx context.Context, chatID int64, userID string) {
	sess, ok := h.protect(ctx, chatID, "")
	if !ok {
		return
	}
	if userID == "" {
		userID = sess.Profile.ID
	}

	summary, err := h.API.UserRatings(ctx, userID)
	if err != nil {
		h.fail(chatID, "user ratings", err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⭐ Değerlendirmeler: %s\n\n", userID)
	if summary.TotalRatings == 0 {
		b.WriteString("Henüz değerlendirme yok.")
		h.send(chatID, b.String())
		return
	}
	fmt.Fprintf(&b, "Ortalama: %.1f (%d değerlendirme)\n\n", summary.Average, summary.TotalRatings)
	for _, r := range summary.Ratings {
		fmt.Fprintf(&b, "• Hız %d · Teknik %d · Pas %d · Fizik %d", r.Speed, r.Technique, r.Passing, r.Physical)
		if !r.ShowedUp {
			b.WriteString(" · gelmedi")
		}
		if r.WasLate {
			b.WriteString(" · geç kaldı")
		}
		if r.Comment != "" {
			fmt.Fprintf(&b, "\n  \"%s\"", r.Comment)
		}
		b.WriteString("\n")
	}
	h.send(chatID, b.String())
}
