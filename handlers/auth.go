package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"halisaha-bot/api"
	"halisaha-bot/notify"
	"halisaha-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const minPasswordLen = 6

func (h *Handler) HandleLogin(ctx context.Context, msg *tgbotapi.Message) {
	h.startForm(msg.Chat.ID, formLogin, "🔐 Giriş")
}

func (h *Handler) HandleRegister(ctx context.Context, msg *tgbotapi.Message) {
	h.startForm(msg.Chat.ID, formRegister, "📝 Yeni hesap")
}

func (h *Handler) submitLogin(ctx context.Context, chatID int64, values map[string]string) {
	email, password := values["email"], values["password"]
	if !strings.Contains(email, "@") || password == "" {
		h.toast(chatID, notify.Error, "Geçerli bir e-posta ve şifre gir.")
		h.startForm(chatID, formLogin, "")
		return
	}

	key := busyKey(chatID, "login")
	if !h.busy.TryAcquire(key) {
		return
	}
	defer h.busy.Release(key)

	res, err := h.API.Login(ctx, email, password)
	if err != nil {
		h.failAuth(chatID, "login", err)
		return
	}
	h.beginSession(ctx, chatID, res, "Giriş başarılı")
}

// failAuth reports login and registration failures. A 401 there means bad
// credentials, not an expired session, so its message is shown.
func (h *Handler) failAuth(chatID int64, action string, err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		text := "E-posta veya şifre hatalı."
		if msg, ok := api.ServerMessage(err); ok {
			text = msg
		}
		h.Logger.Info("credentials rejected", "chat_id", chatID, "action", action)
		h.toast(chatID, notify.Error, text)
		return
	}
	h.fail(chatID, action, err)
}

func (h *Handler) beginSession(ctx context.Context, chatID int64, res api.AuthResult, greeting string) {
	if err := h.Sessions.Start(ctx, chatID, res.Token, res.User); err != nil {
		h.Logger.Error("starting session", "chat_id", chatID, "error", err)
		h.toast(chatID, notify.Error, "Oturum başlatılamadı, lütfen tekrar dene.")
		return
	}
	h.forget(chatID)
	h.succeed(chatID, greeting)

	text := fmt.Sprintf("👋 Hoş geldin %s!\n\n%s", res.User.Name, menuText)
	if res.User.Role.Covers(types.RoleAdmin) {
		text += adminMenuText
	}
	h.send(chatID, text)
}

func (h *Handler) askRegisterRole(chatID int64, values map[string]string) {
	switch {
	case strings.TrimSpace(values["name"]) == "":
		h.toast(chatID, notify.Error, "Ad boş olamaz.")
		h.rewindForm(chatID, formRegister, "name", values)
		return
	case !strings.Contains(values["email"], "@"):
		h.toast(chatID, notify.Error, "Geçerli bir e-posta gir.")
		h.rewindForm(chatID, formRegister, "email", values)
		return
	case len([]rune(values["password"])) < minPasswordLen:
		h.toast(chatID, notify.Error, fmt.Sprintf("Şifre en az %d karakter olmalı.", minPasswordLen))
		h.rewindForm(chatID, formRegister, "password", values)
		return
	case values["password"] != values["confirm"]:
		h.toast(chatID, notify.Error, "Şifreler eşleşmiyor.")
		h.rewindForm(chatID, formRegister, "password", values)
		return
	}

	kb := keyboard([][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			button("⚽ Oyuncu", "reg_role:"+string(types.RolePlayer)),
			button("🏟 Saha sahibi", "reg_role:"+string(types.RoleVenueOwner)),
		),
	})
	h.sendWithKeyboard(chatID, "Hesap türünü seç:", kb)
}

func (h *Handler) handleRegisterRole(ctx context.Context, cq *tgbotapi.CallbackQuery, role types.Role) {
	chatID := cq.Message.Chat.ID
	if role != types.RolePlayer && role != types.RoleVenueOwner {
		h.answer(cq, "Geçersiz hesap türü")
		return
	}

	var values map[string]string
	h.withState(chatID, func(s *chatState) {
		if s.form != nil && s.form.kind == formRegister && s.form.done() {
			values = s.form.values
		}
	})
	if values == nil {
		h.answer(cq, "Kayıt formu bulunamadı, /register ile baştan başla")
		return
	}

	key := busyKey(chatID, "register")
	if !h.busy.TryAcquire(key) {
		h.answer(cq, "Kayıt gönderiliyor...")
		return
	}
	defer h.busy.Release(key)
	h.answer(cq, "")

	res, err := h.API.Register(ctx, types.Registration{
		Name:     values["name"],
		Email:    values["email"],
		Password: values["password"],
		Role:     role,
	})
	if err != nil {
		h.failAuth(chatID, "register", err)
		return
	}
	h.withState(chatID, func(s *chatState) { s.form = nil })
	h.edit(chatID, cq.Message.MessageID, "✅ Kayıt tamamlandı.", nil)
	h.beginSession(ctx, chatID, res, "Kayıt başarılı")
}

func (h *Handler) HandleLogout(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if err := h.Sessions.End(ctx, chatID); err != nil {
		h.Logger.Error("logout", "chat_id", chatID, "error", err)
		h.toast(chatID, notify.Error, "Çıkış yapılamadı, lütfen tekrar dene.")
		return
	}
	h.forget(chatID)
	h.send(chatID, "👋 Çıkış yaptın. Tekrar görüşmek üzere!\n\n/login ile yeniden giriş yapabilirsin.")
}

func (h *Handler) HandleProfile(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	sess, ok := h.protect(ctx, chatID, "")
	if !ok {
		return
	}

	profile, err := h.API.Profile(ctx)
	if err != nil {
		h.fail(chatID, "profile", err)
		if errors.Is(err, api.ErrUnauthorized) {
			return
		}
		// Fall back to what was stored at login.
		profile = sess.Profile
	} else if err := h.Sessions.UpdateProfile(ctx, chatID, profile); err != nil {
		h.Logger.Warn("refreshing stored profile", "chat_id", chatID, "error", err)
	}

	h.send(chatID, formatProfile(profile))
}

func formatProfile(p types.Profile) string {
	var b strings.Builder
	b.WriteString("👤 Profil\n\n")
	fmt.Fprintf(&b, "Ad: %s\nE-posta: %s\nRol: %s\n", p.Name, p.Email, roleLabel(p.Role))
	if p.Phone != "" {
		fmt.Fprintf(&b, "Telefon: %s\n", p.Phone)
	}
	if p.City != "" {
		fmt.Fprintf(&b, "Şehir: %s\n", p.City)
	}
	if p.EloRating > 0 {
		fmt.Fprintf(&b, "ELO: %.0f\n", p.EloRating)
	}
	if p.TrustScore > 0 {
		fmt.Fprintf(&b, "Güven puanı: %.0f\n", p.TrustScore)
	}
	if p.ProfilePicture != "" {
		b.WriteString("Fotoğraf: yüklü\n")
	}
	b.WriteString("\n/edit_profile · /password")
	return b.String()
}

func roleLabel(r types.Role) string {
	switch r {
	case types.RoleAdmin:
		return "Yönetici"
	case types.RoleVenueOwner:
		return "Saha sahibi"
	case types.RolePlayer:
		return "Oyuncu"
	}
	return string(r)
}

func (h *Handler) HandleEditProfile(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := h.protect(ctx, msg.Chat.ID, ""); !ok {
		return
	}
	h.startForm(msg.Chat.ID, formEditProfile, "✏️ Profil düzenle")
}

func (h *Handler) submitEditProfile(ctx context.Context, chatID int64, values map[string]string) {
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		return
	}
	upd := types.ProfileUpdate{
		Name:  keep(values["name"]),
		Phone: keep(values["phone"]),
		City:  keep(values["city"]),
	}
	if upd == (types.ProfileUpdate{}) {
		h.toast(chatID, notify.Info, "Değişiklik yapılmadı.")
		return
	}

	key := busyKey(chatID, "profile")
	if !h.busy.TryAcquire(key) {
		return
	}
	defer h.busy.Release(key)

	profile, err := h.API.UpdateProfile(ctx, upd)
	if err != nil {
		h.fail(chatID, "update profile", err)
		return
	}
	if err := h.Sessions.UpdateProfile(ctx, chatID, profile); err != nil {
		h.Logger.Warn("storing updated profile", "chat_id", chatID, "error", err)
	}
	h.succeed(chatID, "Profil güncellendi")
	h.send(chatID, formatProfile(profile))
}

func (h *Handler) HandleChangePassword(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := h.protect(ctx, msg.Chat.ID, ""); !ok {
		return
	}
	h.startForm(msg.Chat.ID, formPassword, "🔑 Şifre değiştir")
}

func (h *Handler) submitChangePassword(ctx context.Context, chatID int64, values map[string]string) {
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		return
	}
	switch {
	case len([]rune(values["new"])) < minPasswordLen:
		h.toast(chatID, notify.Error, fmt.Sprintf("Şifre en az %d karakter olmalı.", minPasswordLen))
		h.rewindForm(chatID, formPassword, "new", values)
		return
	case values["new"] != values["confirm"]:
		h.toast(chatID, notify.Error, "Şifreler eşleşmiyor.")
		h.rewindForm(chatID, formPassword, "new", values)
		return
	}

	key := busyKey(chatID, "password")
	if !h.busy.TryAcquire(key) {
		return
	}
	defer h.busy.Release(key)

	if err := h.API.ChangePassword(ctx, values["current"], values["new"]); err != nil {
		h.fail(chatID, "change password", err)
		return
	}
	h.succeed(chatID, "Şifre değiştirildi")
}

// HandlePhoto uploads a photo (or an image sent as a file) as the profile
// picture. Size and type are checked before anything is sent to the API.
func (h *Handler) HandlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		return
	}

	var (
		fileID   string
		fileSize int
		filename = "profile.jpg"
	)
	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		fileID, fileSize = largest.FileID, largest.FileSize
	case msg.Document != nil:
		d := msg.Document
		if d.MimeType != "image/jpeg" && d.MimeType != "image/png" {
			h.fail(chatID, "upload picture", api.ErrPictureType)
			return
		}
		fileID, fileSize = d.FileID, d.FileSize
		if d.FileName != "" {
			filename = d.FileName
		}
	}
	if fileSize > api.MaxPictureBytes {
		h.fail(chatID, "upload picture", api.ErrPictureTooLarge)
		return
	}

	key := busyKey(chatID, "picture")
	if !h.busy.TryAcquire(key) {
		h.toast(chatID, notify.Info, "Fotoğraf yükleniyor, lütfen bekle.")
		return
	}
	defer h.busy.Release(key)

	data, err := h.download(ctx, fileID)
	if err != nil {
		h.Logger.Warn("downloading photo", "chat_id", chatID, "error", err)
		h.toast(chatID, notify.Error, "Fotoğraf alınamadı, tekrar dene.")
		return
	}

	profile, err := h.API.UploadProfilePicture(ctx, filename, data)
	if err != nil {
		h.fail(chatID, "upload picture", err)
		return
	}
	if err := h.Sessions.UpdateProfile(ctx, chatID, profile); err != nil {
		h.Logger.Warn("storing profile after upload", "chat_id", chatID, "error", err)
	}
	h.succeed(chatID, "Profil fotoğrafı güncellendi")
}

// download fetches a Telegram file, reading at most one byte past the
// upload limit so oversized files are still caught.
func (h *Handler) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := h.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolving file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.Files.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, api.MaxPictureBytes+1))
}
