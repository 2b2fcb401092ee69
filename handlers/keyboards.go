package handlers

import (
	"strconv"

	"halisaha-bot/listing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// noopData marks a disabled button. The router refuses it.
const noopData = "noop"

func button(label, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(label, data)
}

// disabled renders a control that cannot trigger its action.
func disabled(label string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData("🚫 "+label, noopData)
}

func keyboard(rows [][]tgbotapi.InlineKeyboardButton) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// chunk lays buttons out n per row.
func chunk(buttons []tgbotapi.InlineKeyboardButton, n int) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	for len(buttons) > 0 {
		k := min(n, len(buttons))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons[:k]...))
		buttons = buttons[k:]
	}
	return rows
}

// pagerRow renders prev/next controls; an edge disables its side.
func pagerRow(prefix string, p *listing.Pager) []tgbotapi.InlineKeyboardButton {
	prev := disabled("◀️")
	if p.HasPrev() {
		prev = button("◀️", prefix+":page:prev")
	}
	next := disabled("▶️")
	if p.HasNext() {
		next = button("▶️", prefix+":page:next")
	}
	label := strconv.Itoa(p.Page) + "/" + strconv.Itoa(max(p.TotalPages, 1))
	return tgbotapi.NewInlineKeyboardRow(prev, button(label, noopData), next)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func price(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " ₺"
}
