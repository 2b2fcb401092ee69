package handlers

import (
	"context"
	"fmt"
	"strings"

	"halisaha-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func statusLabel(s types.ReservationStatus) string {
	switch s {
	case types.ReservationPending:
		return "⏳ Beklemede"
	case types.ReservationConfirmed:
		return "✅ Onaylandı"
	case types.ReservationCancelled:
		return "❌ İptal"
	case types.ReservationCompleted:
		return "🏁 Tamamlandı"
	case types.ReservationNoShow:
		return "🚫 Gelmedi"
	}
	return string(s)
}

// HandleReservations lists the chat's own reservations. Only non-terminal
// ones get a cancel button.
func (h *Handler) HandleReservations(ctx context.Context, chatID int64, messageID int) {
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		return
	}

	reqCtx, tok := h.pages.Begin(ctx, pageKey{chatID, "reservations"})
	defer tok.Done()

	list, err := h.API.MyReservations(reqCtx)
	if !tok.Current() {
		return
	}
	if err != nil {
		h.fail(chatID, "list reservations", err)
		return
	}

	text, kb := renderReservations(list)
	h.render(chatID, messageID, text, kb)
}

func renderReservations(list []types.Reservation) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(list) == 0 {
		return "📋 Henüz rezervasyonun yok.\n\n/venues ile saha bulabilirsin.", nil
	}

	var (
		b    strings.Builder
		rows [][]tgbotapi.InlineKeyboardButton
	)
	b.WriteString("📋 Rezervasyonların\n\n")
	for i, r := range list {
		fmt.Fprintf(&b, "%d. %s · %s · %s\n", i+1, r.Label(), price(r.TotalPrice), statusLabel(r.Status))
		if !r.Status.Terminal() {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				button(fmt.Sprintf("❌ %d. rezervasyonu iptal et", i+1), "rc:"+r.ID),
			))
		}
	}
	return b.String(), keyboard(rows)
}

func (h *Handler) handleReservationCancel(ctx context.Context, cq *tgbotapi.CallbackQuery, id string) {
	chatID := cq.Message.Chat.ID

	key := busyKey(chatID, "cancel:"+id)
	if !h.busy.TryAcquire(key) {
		h.answer(cq, "İptal işleniyor...")
		return
	}
	defer h.busy.Release(key)
	h.answer(cq, "")

	if err := h.API.CancelReservation(ctx, id); err != nil {
		h.fail(chatID, "cancel reservation", err)
		return
	}
	h.succeed(chatID, "Rezervasyon iptal edildi")
	h.HandleReservations(ctx, chatID, cq.Message.MessageID)
}
