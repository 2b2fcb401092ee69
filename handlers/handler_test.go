package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"halisaha-bot/api"
	"halisaha-bot/availability"
	"halisaha-bot/listing"
	"halisaha-bot/notify"
	"halisaha-bot/session"
	"halisaha-bot/storage"
	"halisaha-bot/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

type fakeBot struct {
	mu       sync.Mutex
	nextID   int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	// sendErr fails every Send when set.
	sendErr error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return tgbotapi.Message{}, b.sendErr
	}
	b.nextID++
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: 1000 + b.nextID}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	return "", errors.New("no files in tests")
}

// texts returns the text of every sent or edited message, in order.
func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (b *fakeBot) lastEdit(t *testing.T) tgbotapi.EditMessageTextConfig {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.sent) - 1; i >= 0; i-- {
		if e, ok := b.sent[i].(tgbotapi.EditMessageTextConfig); ok {
			return e
		}
	}
	t.Fatal("no message was edited")
	return tgbotapi.EditMessageTextConfig{}
}

func (b *fakeBot) answers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

func (b *fakeBot) deleted() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []int
	for _, c := range b.requests {
		if d, ok := c.(tgbotapi.DeleteMessageConfig); ok {
			out = append(out, d.MessageID)
		}
	}
	return out
}

func containsText(texts []string, sub string) bool {
	for _, t := range texts {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

// logBuffer collects log output from handler and client goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

type harness struct {
	h     *Handler
	bot   *fakeBot
	store *storage.Storage
	hits  *atomic.Int32
	logs  *logBuffer
}

func newHarness(t *testing.T, routes func(r chi.Router)) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := storage.New(rdb)

	hits := &atomic.Int32{}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			hits.Add(1)
			next.ServeHTTP(w, req)
		})
	})
	if routes != nil {
		routes(r)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	logs := &logBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	bot := &fakeBot{}
	redirect := NewRedirect(bot, logger)
	sessions := session.NewProvider(store, redirect, logger)
	client := api.New(srv.URL, 5*time.Second, sessions, logger)

	h := New(Deps{
		Bot:      bot,
		API:      client,
		Store:    store,
		Guard:    session.NewGuard(store, logger),
		Sessions: sessions,
		Redirect: redirect,
		Toast:    notify.NewToaster(bot, time.Hour, logger),
		Resolver: availability.NewResolver(client, availability.NewWindow(8, 12), 60, time.UTC),
		Location: time.UTC,
		Logger:   logger,
	})
	return &harness{h: h, bot: bot, store: store, hits: hits, logs: logs}
}

func (hs *harness) login(t *testing.T, chatID int64, role types.Role) {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "u1"}).SignedString([]byte("test"))
	if err != nil {
		t.Fatal(err)
	}
	sess := types.Session{Token: tok, Profile: types.Profile{ID: "u1", Name: "Ali", Email: "ali@example.com", Role: role}}
	if err := hs.store.SaveSession(context.Background(), chatID, sess); err != nil {
		t.Fatal(err)
	}
}

func (hs *harness) command(chatID int64, text string) {
	cmd, _, _ := strings.Cut(text, " ")
	hs.h.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}})
}

func (hs *harness) text(chatID int64, messageID int, text string) {
	hs.h.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: messageID,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
	}})
}

func (hs *harness) press(chatID int64, data string) {
	hs.h.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: chatID}},
	}})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestProtectedCommandRedirectsBeforeFetch(t *testing.T) {
	hs := newHarness(t, func(r chi.Router) {
		r.Get("/venues", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"data":[]}`)
		})
	})

	hs.command(1, "/venues")
	hs.press(1, "vs:name")

	if n := hs.hits.Load(); n != 0 {
		t.Errorf("backend called %d times without a session", n)
	}
	texts := hs.bot.texts()
	if len(texts) != 2 || !strings.Contains(texts[0], "/login") || !strings.Contains(texts[1], "/login") {
		t.Errorf("expected two login prompts, got %q", texts)
	}
}

func TestAdminViewForbiddenForPlayer(t *testing.T) {
	hs := newHarness(t, nil)
	hs.login(t, 1, types.RolePlayer)

	hs.command(1, "/admin_users")

	if n := hs.hits.Load(); n != 0 {
		t.Errorf("backend called %d times for a forbidden view", n)
	}
	if !containsText(hs.bot.texts(), "erişim yetkin yok") {
		t.Errorf("expected landing redirect, got %q", hs.bot.texts())
	}
}

func TestDisabledButtonIsRefused(t *testing.T) {
	hs := newHarness(t, nil)

	hs.press(1, noopData)

	answers := hs.bot.answers()
	if len(answers) != 1 || answers[0] != "Bu seçenek şu an kullanılamaz" {
		t.Errorf("answers = %q", answers)
	}
	if len(hs.bot.texts()) != 0 {
		t.Errorf("disabled button produced messages: %q", hs.bot.texts())
	}
}

func TestVenueFilterAndSortAreLocal(t *testing.T) {
	hs := newHarness(t, func(r chi.Router) {
		r.Get("/venues", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"data":[
				{"id":"a","name":"Alsancak Arena","city":"Izmir","district":"Konak","pricePerHour":300,"averageRating":4.0},
				{"id":"b","name":"Bornova Spor","city":"Izmir","district":"Bornova","pricePerHour":200,"averageRating":4.5},
				{"id":"c","name":"Çankaya Halı","city":"Ankara","district":"Çankaya","pricePerHour":250,"averageRating":3.5}
			]}`)
		})
	})
	hs.login(t, 1, types.RolePlayer)

	hs.command(1, "/venues")
	first := hs.bot.texts()
	if len(first) != 1 || !strings.Contains(first[0], "Çankaya Halı") {
		t.Fatalf("initial list = %q", first)
	}

	hs.press(1, "vf_city:Izmir")
	hs.press(1, "vs:"+string(listing.SortPriceAsc))

	text := hs.bot.lastEdit(t).Text
	if strings.Contains(text, "Çankaya Halı") {
		t.Errorf("city filter kept another city:\n%s", text)
	}
	b, a := strings.Index(text, "Bornova Spor"), strings.Index(text, "Alsancak Arena")
	if b < 0 || a < 0 || b > a {
		t.Errorf("expected cheaper venue first:\n%s", text)
	}
	if n := hs.hits.Load(); n != 1 {
		t.Errorf("backend called %d times, want 1", n)
	}
}

func TestBookingConflictReloadsBoard(t *testing.T) {
	var slotLoads, posts atomic.Int32
	hs := newHarness(t, func(r chi.Router) {
		r.Get("/venues/{id}", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"data":{"id":"v1","name":"Arena","city":"Izmir","pricePerHour":100,
				"fields":[{"id":"f1","venueId":"v1","name":"Saha 1","type":"7v7","surfaceType":"artificial"}]}}`)
		})
		r.Get("/reservations/available-slots", func(w http.ResponseWriter, _ *http.Request) {
			if slotLoads.Add(1) == 1 {
				writeJSON(w, http.StatusOK, `{"success":true,"data":[]}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"success":true,"data":[{"startTime":"09:00","endTime":"10:00"}]}`)
		})
		r.Post("/reservations", func(w http.ResponseWriter, _ *http.Request) {
			posts.Add(1)
			writeJSON(w, http.StatusConflict, `{"success":false,"message":"Bu saat dolu"}`)
		})
	})
	hs.login(t, 1, types.RolePlayer)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	hs.press(1, "v:v1")
	hs.press(1, "bf:f1")
	hs.press(1, "bd:"+tomorrow)
	hs.press(1, "bs:09:00")
	hs.press(1, "bc:09:00")

	if n := posts.Load(); n != 1 {
		t.Fatalf("reservation posted %d times, want 1", n)
	}
	if n := slotLoads.Load(); n != 2 {
		t.Errorf("availability loaded %d times, want 2", n)
	}
	if !containsText(hs.bot.texts(), "⚠️ "+slotTakenText+"\nBu saat dolu") {
		t.Errorf("expected slot-taken warning, got %q", hs.bot.texts())
	}

	edit := hs.bot.lastEdit(t)
	if edit.ReplyMarkup == nil {
		t.Fatal("reloaded board has no keyboard")
	}
	buttons := map[string]string{}
	for _, row := range edit.ReplyMarkup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				buttons[btn.Text] = *btn.CallbackData
			}
		}
	}
	if got := buttons["🚫 09:00"]; got != noopData {
		t.Errorf("taken slot button data = %q, want disabled", got)
	}
	if got := buttons["🟢 10:00"]; got != "bs:10:00" {
		t.Errorf("free slot button data = %q", got)
	}
	if board, ok := hs.h.Resolver.Board(1); !ok || board.FreeCount() != 3 {
		t.Errorf("board after reload = %+v, %v", board, ok)
	}
}

func TestExpiredSessionRedirectsOnce(t *testing.T) {
	hs := newHarness(t, func(r chi.Router) {
		r.Get("/reservations", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusUnauthorized, `{"success":false,"message":"jwt expired"}`)
		})
	})
	hs.login(t, 1, types.RolePlayer)

	hs.command(1, "/reservations")

	raw, err := hs.store.GetSession(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if raw != nil {
		t.Error("session survived a 401")
	}
	var prompts int
	for _, text := range hs.bot.texts() {
		if strings.Contains(text, "/login") {
			prompts++
		}
		if strings.HasPrefix(text, "❌") {
			t.Errorf("unexpected error toast %q", text)
		}
	}
	if prompts != 1 {
		t.Errorf("login prompts = %d, want 1", prompts)
	}
}

func TestRegisterMismatchStaysLocal(t *testing.T) {
	hs := newHarness(t, nil)

	hs.command(1, "/register")
	hs.text(1, 2, "Ali Veli")
	hs.text(1, 3, "ali@example.com")
	hs.text(1, 4, "secret1")
	hs.text(1, 5, "secret2")

	if n := hs.hits.Load(); n != 0 {
		t.Errorf("backend called %d times", n)
	}
	if !containsText(hs.bot.texts(), "Şifreler eşleşmiyor") {
		t.Errorf("expected mismatch toast, got %q", hs.bot.texts())
	}
	deleted := hs.bot.deleted()
	for _, id := range []int{4, 5} {
		found := false
		for _, d := range deleted {
			found = found || d == id
		}
		if !found {
			t.Errorf("password message %d was not deleted (deleted %v)", id, deleted)
		}
	}

	var step int
	var kind formKind
	hs.h.withState(1, func(s *chatState) {
		if s.form != nil {
			step, kind = s.form.step, s.form.kind
		}
	})
	if kind != formRegister || formSteps[kind][step].key != "password" {
		t.Errorf("form = %s at step %d, want register rewound to password", kind, step)
	}
}

func TestDeclinedInvitationRemovedLocally(t *testing.T) {
	var lists atomic.Int32
	var (
		mu        sync.Mutex
		responses []string
	)
	hs := newHarness(t, func(r chi.Router) {
		r.Get("/teams/my-invitations", func(w http.ResponseWriter, _ *http.Request) {
			lists.Add(1)
			writeJSON(w, http.StatusOK, `{"success":true,"data":[
				{"id":"i1","team":{"id":"t1","name":"Kartallar"},"status":"pending"},
				{"id":"i2","team":{"id":"t2","name":"Aslanlar"},"status":"pending"}
			]}`)
		})
		r.Post("/teams/invitations/{id}/respond", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]string
			json.NewDecoder(req.Body).Decode(&body)
			mu.Lock()
			responses = append(responses, chi.URLParam(req, "id")+"="+body["response"])
			mu.Unlock()
			writeJSON(w, http.StatusOK, `{"success":true}`)
		})
	})
	hs.login(t, 1, types.RolePlayer)

	hs.command(1, "/invitations")
	hs.press(1, "ir:i1")

	if got := fmt.Sprint(responses); got != "[i1=reject]" {
		t.Errorf("responses = %s", got)
	}
	if n := lists.Load(); n != 1 {
		t.Errorf("invitations fetched %d times, want 1", n)
	}
	text := hs.bot.lastEdit(t).Text
	if strings.Contains(text, "Kartallar") || !strings.Contains(text, "Aslanlar") {
		t.Errorf("list after decline:\n%s", text)
	}
	if !containsText(hs.bot.texts(), "Davet reddedildi") {
		t.Errorf("expected success toast, got %q", hs.bot.texts())
	}
}

func TestAdminUserDeleteDisabledForAdmins(t *testing.T) {
	p := listing.NewPager(adminPageSize)
	p.Apply(types.Pagination{Page: 1, Limit: adminPageSize, Total: 2, TotalPages: 1})
	users := []types.User{
		{ID: "u1", Name: "Ayşe", Role: types.RoleAdmin, IsActive: true},
		{ID: "u2", Name: "Mehmet", Role: types.RolePlayer, IsActive: false},
	}

	_, kb := renderAdminUsers(users, p)
	if kb == nil {
		t.Fatal("no keyboard")
	}

	data := map[string]bool{}
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				data[*btn.CallbackData] = true
			}
		}
	}
	if data["au:del:u1"] {
		t.Error("admin account has a live delete button")
	}
	for _, want := range []string{"au:del:u2", "au:off:u1", "au:on:u2", "au:role:all",
		"au:setrole:u2:venue_owner", "au:setrole:u2:admin", "au:setrole:u1:player"} {
		if !data[want] {
			t.Errorf("missing button %q", want)
		}
	}
	if data["au:setrole:u1:admin"] || data["au:setrole:u2:player"] {
		t.Error("offered the role the user already has")
	}
	if data["au:page:next"] || data["au:page:prev"] {
		t.Error("single page should not enable paging")
	}
}

func TestAdjustRating(t *testing.T) {
	tests := []struct {
		name   string
		start  int
		change string
		want   int
		ok     bool
	}{
		{"increase", 50, "speed:+", 60, true},
		{"decrease", 50, "speed:-", 40, true},
		{"clamped at max", 95, "speed:+", 100, true},
		{"clamped at min", 5, "speed:-", 0, true},
		{"unknown direction", 50, "speed:x", 50, false},
		{"unknown key", 50, "stamina:+", 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := types.NewPlayerRating("u2")
			r.Speed = tt.start
			if ok := adjustRating(&r, tt.change); ok != tt.ok {
				t.Errorf("ok = %v, want %v", ok, tt.ok)
			}
			if r.Speed != tt.want {
				t.Errorf("speed = %d, want %d", r.Speed, tt.want)
			}
		})
	}

	r := types.NewPlayerRating("u2")
	adjustRating(&r, "showedUp")
	if r.ShowedUp {
		t.Error("flag toggle did not flip showedUp")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"expired session", fmt.Errorf("%w: %w", api.ErrUnauthorized, &api.Error{Status: 401, Message: "jwt expired"}), ""},
		{"canceled", context.Canceled, ""},
		{"stale", availability.ErrStale, ""},
		{"taken with message", &availability.TakenError{Message: "Dolu"}, slotTakenText + "\nDolu"},
		{"taken without message", &availability.TakenError{}, slotTakenText},
		{"server message", &api.Error{Status: 400, Message: "Geçersiz alan"}, "Geçersiz alan"},
		{"transport", fmt.Errorf("%w: GET /venues", api.ErrTransport), "Sunucuya ulaşılamadı. Bağlantını kontrol edip tekrar dene."},
		{"past date", availability.ErrPastDate, "Geçmiş bir tarih için rezervasyon yapılamaz."},
		{"unknown", errors.New("boom"), "Beklenmeyen bir hata oluştu. Lütfen tekrar dene."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userMessage(tt.err); got != tt.want {
				t.Errorf("userMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBookingConflictWithoutServerMessage(t *testing.T) {
	hs := newHarness(t, func(r chi.Router) {
		r.Get("/venues/{id}", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"data":{"id":"v1","name":"Arena","pricePerHour":100,
				"fields":[{"id":"f1","venueId":"v1","name":"Saha 1"}]}}`)
		})
		r.Get("/reservations/available-slots", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"data":[]}`)
		})
		r.Post("/reservations", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusConflict, `{"success":false}`)
		})
	})
	hs.login(t, 1, types.RolePlayer)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	hs.press(1, "v:v1")
	hs.press(1, "bf:f1")
	hs.press(1, "bd:"+tomorrow)
	hs.press(1, "bc:10:00")

	var toasts []string
	for _, text := range hs.bot.texts() {
		if strings.HasPrefix(text, "⚠️") || strings.HasPrefix(text, "❌") {
			toasts = append(toasts, text)
		}
	}
	if len(toasts) != 1 || toasts[0] != "⚠️ "+slotTakenText {
		t.Errorf("toasts = %q, want only the slot-taken warning", toasts)
	}
}

func TestToastFailureIsLogged(t *testing.T) {
	hs := newHarness(t, nil)
	hs.login(t, 1, types.RolePlayer)
	hs.bot.sendErr = errors.New("telegram down")

	// Rating yourself is refused with a warning toast.
	hs.command(1, "/rate u1")

	if logs := hs.logs.String(); !strings.Contains(logs, "toast failed") || !strings.Contains(logs, "telegram down") {
		t.Errorf("toast failure not logged:\n%s", logs)
	}
}

func TestAdminChangesUserRole(t *testing.T) {
	var (
		mu      sync.Mutex
		changes []string
	)
	hs := newHarness(t, func(r chi.Router) {
		r.Get("/admin/users", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"data":{"users":[
				{"id":"u2","name":"Mehmet","email":"m@example.com","role":"player","isActive":true}
			],"pagination":{"page":1,"limit":8,"total":1,"totalPages":1}}}`)
		})
		r.Patch("/admin/users/{id}/role", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]string
			json.NewDecoder(req.Body).Decode(&body)
			mu.Lock()
			changes = append(changes, chi.URLParam(req, "id")+"="+body["role"])
			mu.Unlock()
			writeJSON(w, http.StatusOK, `{"success":true}`)
		})
	})
	hs.login(t, 1, types.RoleAdmin)

	hs.command(1, "/admin_users")
	hs.press(1, "au:setrole:u2:venue_owner")
	hs.press(1, "au:setrole:u2:superuser")

	mu.Lock()
	got := fmt.Sprint(changes)
	mu.Unlock()
	if got != "[u2=venue_owner]" {
		t.Errorf("role changes = %s", got)
	}
	if !containsText(hs.bot.texts(), "Kullanıcı rolü değiştirildi") {
		t.Errorf("expected success toast, got %q", hs.bot.texts())
	}
	if !strings.Contains(hs.logs.String(), "invalid role in callback") {
		t.Error("unknown role was not logged")
	}
}

func TestVenueDistrictRatingAndPriceFilters(t *testing.T) {
	hs := newHarness(t, func(r chi.Router) {
		r.Get("/venues", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"data":[
				{"id":"a","name":"Alsancak Arena","city":"Izmir","district":"Konak","pricePerHour":300,"averageRating":4.0},
				{"id":"b","name":"Bornova Spor","city":"Izmir","district":"Bornova","pricePerHour":200,"averageRating":4.5},
				{"id":"c","name":"Çankaya Halı","city":"Ankara","district":"Çankaya","pricePerHour":250,"averageRating":3.5}
			]}`)
		})
	})
	hs.login(t, 1, types.RolePlayer)
	hs.login(t, 2, types.RolePlayer)

	shows := func(text string) string {
		var out []string
		for _, n := range []string{"Alsancak Arena", "Bornova Spor", "Çankaya Halı"} {
			if strings.Contains(text, n) {
				out = append(out, n)
			}
		}
		return strings.Join(out, ",")
	}

	hs.command(1, "/venues")
	hs.press(1, "vf_city:Izmir")
	edit := hs.bot.lastEdit(t)
	data := map[string]bool{}
	for _, row := range edit.ReplyMarkup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				data[*btn.CallbackData] = true
			}
		}
	}
	if !data["vf_dist:Konak"] || !data["vf_dist:Bornova"] || data["vf_dist:Çankaya"] {
		t.Errorf("district buttons = %v", data)
	}

	steps := []struct {
		press string
		want  string
	}{
		{"vf_dist:Bornova", "Bornova Spor"},
		{"vf_city:", "Alsancak Arena,Bornova Spor,Çankaya Halı"},
		{"vf_rate:4", "Alsancak Arena,Bornova Spor"},
		{"vf_price:250", "Bornova Spor"},
		{"vf_rate:", "Bornova Spor,Çankaya Halı"},
		{"vf_price:junk", "Alsancak Arena,Bornova Spor,Çankaya Halı"},
	}
	for _, s := range steps {
		hs.press(1, s.press)
		if got := shows(hs.bot.lastEdit(t).Text); got != s.want {
			t.Errorf("after %s shown = %s, want %s", s.press, got, s.want)
		}
	}

	hs.command(2, "/venues arena")
	texts := hs.bot.texts()
	if got := shows(texts[len(texts)-1]); got != "Alsancak Arena" {
		t.Errorf("search shown = %s", got)
	}
}

func TestLoginWithOpaqueTokenFailsUpFront(t *testing.T) {
	hs := newHarness(t, func(r chi.Router) {
		r.Post("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":true,"data":{"token":"opaque-token",
				"user":{"id":"u1","name":"Ali","email":"ali@example.com","role":"player"}}}`)
		})
	})

	hs.command(1, "/login")
	hs.text(1, 2, "ali@example.com")
	hs.text(1, 3, "secret1")

	if raw, _ := hs.store.GetSession(context.Background(), 1); raw != nil {
		t.Errorf("non-JWT session persisted: %s", raw)
	}
	texts := hs.bot.texts()
	if !containsText(texts, "Oturum başlatılamadı") {
		t.Errorf("expected session failure toast, got %q", texts)
	}
	if containsText(texts, "Hoş geldin") {
		t.Errorf("greeted despite rejected session: %q", texts)
	}
	if !strings.Contains(hs.logs.String(), "token is not a JWT") {
		t.Error("rejected token was not logged")
	}
}
