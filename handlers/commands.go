package handlers

import (
	"context"
	"fmt"
	"strings"

	"halisaha-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const menuText = "Komutlar:\n" +
	"/venues — sahaları listele\n" +
	"/reservations — rezervasyonlarım\n" +
	"/invitations — takım davetleri\n" +
	"/proposals — maç teklifleri\n" +
	"/rate <kullanıcı> — oyuncu değerlendir\n" +
	"/profile — profilim\n" +
	"/logout — çıkış yap"

const adminMenuText = "\n\nYönetim:\n" +
	"/admin — panel\n" +
	"/admin_users — kullanıcılar\n" +
	"/admin_reservations — rezervasyonlar\n" +
	"/admin_teams — takımlar"

func (h *Handler) HandleStart(ctx context.Context, msg *tgbotapi.Message) {
	sess, ok := h.Guard.RequireAuthenticated(ctx, msg.Chat.ID)
	if !ok {
		h.send(msg.Chat.ID, "👋 Halısaha'ya hoş geldin! Saha bulup rezervasyon yapmana yardım ederim.\n\n"+
			"Başlamak için /login ile giriş yap ya da /register ile kayıt ol.")
		return
	}

	text := fmt.Sprintf("👋 Merhaba %s!\n\n%s", sess.Profile.Name, menuText)
	if sess.Profile.Role.Covers(types.RoleAdmin) {
		text += adminMenuText
	}
	h.send(msg.Chat.ID, text)
}

func (h *Handler) HandleHelp(ctx context.Context, msg *tgbotapi.Message) {
	var b strings.Builder
	b.WriteString("ℹ️ Yardım\n\n")
	b.WriteString("/login, /register — giriş ve kayıt\n")
	b.WriteString("/edit_profile, /password — profil ve şifre\n")
	b.WriteString("Profil fotoğrafı için JPEG/PNG (en fazla 5MB) bir fotoğraf gönder.\n\n")
	b.WriteString(menuText)
	if sess, ok := h.Guard.RequireAuthenticated(ctx, msg.Chat.ID); ok && sess.Profile.Role.Covers(types.RoleAdmin) {
		b.WriteString(adminMenuText)
	}
	h.send(msg.Chat.ID, b.String())
}
