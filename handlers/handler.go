package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"halisaha-bot/api"
	"halisaha-bot/availability"
	"halisaha-bot/inflight"
	"halisaha-bot/listing"
	"halisaha-bot/notify"
	"halisaha-bot/session"
	"halisaha-bot/storage"
	"halisaha-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot is the part of *tgbotapi.BotAPI the handlers need.
type Bot interface {
	notify.Sender
	GetFileDirectURL(fileID string) (string, error)
}

type Handler struct {
	Bot      Bot
	API      *api.Client
	Store    *storage.Storage
	Guard    *session.Guard
	Sessions *session.Provider
	Redirect *Redirect
	Toast    *notify.Toaster
	Resolver *availability.Resolver
	Location *time.Location
	Logger   *slog.Logger
	// Files downloads photos from Telegram.
	Files *http.Client

	pages *inflight.Tracker[pageKey]
	busy  *inflight.Busy[string]

	mu     sync.Mutex
	states map[int64]*chatState
}

type Deps struct {
	Bot      Bot
	API      *api.Client
	Store    *storage.Storage
	Guard    *session.Guard
	Sessions *session.Provider
	Redirect *Redirect
	Toast    *notify.Toaster
	Resolver *availability.Resolver
	Location *time.Location
	Logger   *slog.Logger
	Files    *http.Client
}

func New(d Deps) *Handler {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	files := d.Files
	if files == nil {
		files = &http.Client{Timeout: 30 * time.Second}
	}
	return &Handler{
		Bot:      d.Bot,
		API:      d.API,
		Store:    d.Store,
		Guard:    d.Guard,
		Sessions: d.Sessions,
		Redirect: d.Redirect,
		Toast:    d.Toast,
		Resolver: d.Resolver,
		Location: loc,
		Logger:   d.Logger,
		Files:    files,
		pages:    inflight.NewTracker[pageKey](),
		busy:     inflight.NewBusy[string](),
		states:   make(map[int64]*chatState),
	}
}

// pageKey identifies one list view of one chat for stale-response tracking.
type pageKey struct {
	chatID int64
	view   string
}

// chatState is the in-memory view state of a chat. It is only touched
// through withState.
type chatState struct {
	form         *form
	venues       *venueView
	booking      *bookingView
	invitations  []types.Invitation
	proposals    []types.MatchProposal
	sent         []types.MatchProposal
	ratingTarget string
	pagers       map[string]*listing.Pager
}

func (h *Handler) withState(chatID int64, fn func(s *chatState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.states[chatID]
	if !ok {
		s = &chatState{pagers: make(map[string]*listing.Pager)}
		h.states[chatID] = s
	}
	fn(s)
}

// forget drops every view of the chat, e.g. on logout.
func (h *Handler) forget(chatID int64) {
	h.mu.Lock()
	delete(h.states, chatID)
	h.mu.Unlock()
	h.Resolver.Close(chatID)
}

// HandleUpdate routes one Telegram update. It is safe to call concurrently.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		ctx = session.WithChat(ctx, msg.Chat.ID)
		h.handleMessage(ctx, msg)
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.Message == nil {
			return
		}
		ctx = session.WithChat(ctx, cq.Message.Chat.ID)
		h.handleCallback(ctx, cq)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		// Any command abandons a half-filled form.
		h.withState(msg.Chat.ID, func(s *chatState) { s.form = nil })
		h.handleCommand(ctx, msg)
		return
	}
	if len(msg.Photo) > 0 || msg.Document != nil {
		h.HandlePhoto(ctx, msg)
		return
	}
	if h.handleFormInput(ctx, msg) {
		return
	}
	h.send(msg.Chat.ID, "Ne yapmak istediğini anlayamadım. Komutlar için /help")
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		h.HandleStart(ctx, msg)
	case "help":
		h.HandleHelp(ctx, msg)
	case "login":
		h.HandleLogin(ctx, msg)
	case "register":
		h.HandleRegister(ctx, msg)
	case "logout":
		h.HandleLogout(ctx, msg)
	case "profile":
		h.HandleProfile(ctx, msg)
	case "edit_profile":
		h.HandleEditProfile(ctx, msg)
	case "password":
		h.HandleChangePassword(ctx, msg)
	case "venues":
		h.HandleVenues(ctx, msg)
	case "venue":
		h.HandleVenue(ctx, msg.Chat.ID, 0, args)
	case "reservations":
		h.HandleReservations(ctx, msg.Chat.ID, 0)
	case "invitations":
		h.HandleInvitations(ctx, msg.Chat.ID, 0)
	case "proposals":
		h.HandleProposals(ctx, msg.Chat.ID, 0)
	case "rate":
		h.HandleRate(ctx, msg.Chat.ID, args)
	case "rate_submit":
		h.HandleRateSubmit(ctx, msg.Chat.ID)
	case "ratings":
		h.HandleRatings(ctx, msg.Chat.ID, args)
	case "admin":
		h.HandleAdminDashboard(ctx, msg.Chat.ID)
	case "admin_users":
		h.HandleAdminUsers(ctx, msg.Chat.ID, 0)
	case "admin_reservations":
		h.HandleAdminReservations(ctx, msg.Chat.ID, 0)
	case "admin_teams":
		h.HandleAdminTeams(ctx, msg.Chat.ID, 0)
	case "cancel":
		h.send(msg.Chat.ID, "İşlem iptal edildi.")
	default:
		h.send(msg.Chat.ID, "Bilinmeyen komut. /help ile komutları görebilirsin.")
	}
}

// handleCallback routes inline button presses by their "prefix:payload" data.
func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID
	prefix, payload, _ := strings.Cut(cq.Data, ":")

	switch prefix {
	case noopData:
		h.answer(cq, "Bu seçenek şu an kullanılamaz")
		return
	case notify.DismissData:
		h.Toast.Dismiss(chatID, messageID)
		h.answer(cq, "")
		return
	case "reg_role":
		h.handleRegisterRole(ctx, cq, types.Role(payload))
		return
	}

	// Everything below acts on protected views.
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		h.answer(cq, "")
		return
	}

	switch prefix {
	case "vf_city":
		h.handleVenueCity(cq, payload)
	case "vf_dist":
		h.handleVenueDistrict(cq, payload)
	case "vf_rate":
		h.handleVenueRating(cq, payload)
	case "vf_price":
		h.handleVenuePrice(cq, payload)
	case "vs":
		h.handleVenueSort(cq, payload)
	case "v":
		h.answer(cq, "")
		h.HandleVenue(ctx, chatID, 0, payload)
	case "bf":
		h.handleBookingField(cq, payload)
	case "bd":
		h.handleBookingDate(ctx, cq, payload)
	case "bs":
		h.handleBookingSlot(cq, payload)
	case "bc":
		h.handleBookingConfirm(ctx, cq, payload)
	case "bx":
		h.Resolver.Close(chatID)
		h.answer(cq, "Rezervasyon iptal edildi")
		h.edit(chatID, messageID, "Rezervasyon işlemi iptal edildi.", nil)
	case "rc":
		h.handleReservationCancel(ctx, cq, payload)
	case "ia", "ir":
		h.handleInvitationRespond(ctx, cq, payload, responseFor(prefix))
	case "pa", "pr":
		h.handleProposalRespond(ctx, cq, payload, responseFor(prefix))
	case "rt":
		h.handleRatingAdjust(ctx, cq, payload)
	case "au", "ar", "at":
		h.handleAdminCallback(ctx, cq, prefix, payload)
	default:
		h.answer(cq, "Bilinmeyen işlem")
	}
}

func responseFor(prefix string) types.Response {
	if strings.HasSuffix(prefix, "a") {
		return types.Accept
	}
	return types.Reject
}

// protect runs the session guard. An empty role only requires a login.
// On refusal the chat is redirected and false is returned.
func (h *Handler) protect(ctx context.Context, chatID int64, role types.Role) (types.Session, bool) {
	if role == "" {
		sess, ok := h.Guard.RequireAuthenticated(ctx, chatID)
		if !ok {
			h.Redirect.ToLogin(ctx, chatID)
		}
		return sess, ok
	}

	sess, decision := h.Guard.RequireRole(ctx, chatID, role)
	switch decision {
	case session.NeedLogin:
		h.Redirect.ToLogin(ctx, chatID)
		return sess, false
	case session.Forbidden:
		h.Redirect.ToLanding(ctx, chatID)
		return sess, false
	}
	return sess, true
}

const slotTakenText = "Bu saat az önce başka biri tarafından alındı."

// userMessage maps an error to the text shown to the user. An empty result
// means nothing should be shown.
func userMessage(err error) string {
	var taken *availability.TakenError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, availability.ErrStale),
		errors.Is(err, context.Canceled):
		return ""
	case errors.As(err, &taken):
		text := slotTakenText
		if taken.Message != "" {
			text += "\n" + taken.Message
		}
		return text
	}
	if msg, ok := api.ServerMessage(err); ok && msg != "" {
		return msg
	}
	switch {
	case errors.Is(err, api.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return "Sunucuya ulaşılamadı. Bağlantını kontrol edip tekrar dene."
	case errors.Is(err, api.ErrPictureTooLarge):
		return "Fotoğraf en fazla 5MB olabilir."
	case errors.Is(err, api.ErrPictureType):
		return "Sadece JPEG veya PNG fotoğraf yükleyebilirsin."
	case errors.Is(err, availability.ErrPastDate):
		return "Geçmiş bir tarih için rezervasyon yapılamaz."
	case errors.Is(err, availability.ErrInvalidDate):
		return "Geçersiz tarih."
	case errors.Is(err, availability.ErrSlotUnavailable):
		return "Bu saat müsait değil."
	case errors.Is(err, availability.ErrSubmitInProgress):
		return "Rezervasyon zaten gönderiliyor, lütfen bekle."
	case errors.Is(err, availability.ErrNoBoard):
		return "Önce bir tarih seçmelisin."
	}
	return "Beklenmeyen bir hata oluştu. Lütfen tekrar dene."
}

// toast shows a toast of the given kind. Every toast of the handlers goes
// through here so delivery failures are logged.
func (h *Handler) toast(chatID int64, kind notify.Kind, text string) {
	if err := h.Toast.Show(chatID, text, kind, 0); err != nil {
		h.Logger.Warn("toast failed", "chat_id", chatID, "error", err)
	}
}

// fail reports err to the chat as a toast, unless it maps to nothing. A lost
// slot is a warning; everything else is an error.
func (h *Handler) fail(chatID int64, action string, err error) {
	text := userMessage(err)
	if text == "" {
		h.Logger.Debug("suppressed error", "chat_id", chatID, "action", action, "error", err)
		return
	}
	h.Logger.Warn("action failed", "chat_id", chatID, "action", action, "error", err)
	kind := notify.Error
	if errors.Is(err, availability.ErrSlotTaken) {
		kind = notify.Warning
	}
	h.toast(chatID, kind, text)
}

func (h *Handler) succeed(chatID int64, text string) {
	h.toast(chatID, notify.Success, text)
}

func (h *Handler) send(chatID int64, text string) {
	h.sendWithKeyboard(chatID, text, nil)
}

func (h *Handler) sendWithKeyboard(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := h.Bot.Send(msg); err != nil {
		h.Logger.Warn("send failed", "chat_id", chatID, "error", err)
	}
}

// render shows a view: a new message when messageID is 0, otherwise the
// existing message is edited in place.
func (h *Handler) render(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if messageID == 0 {
		h.sendWithKeyboard(chatID, text, kb)
		return
	}
	h.edit(chatID, messageID, text, kb)
}

func (h *Handler) edit(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	var edit tgbotapi.EditMessageTextConfig
	if kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *kb)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := h.Bot.Send(edit); err != nil {
		h.Logger.Debug("edit failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (h *Handler) answer(cq *tgbotapi.CallbackQuery, text string) {
	if _, err := h.Bot.Request(tgbotapi.NewCallback(cq.ID, text)); err != nil {
		h.Logger.Debug("callback answer failed", "error", err)
	}
}

// busyKey scopes a disable-on-submit guard to one chat and action.
func busyKey(chatID int64, action string) string {
	return strings.Join([]string{itoa(chatID), action}, "|")
}
