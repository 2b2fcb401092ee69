package handlers

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"halisaha-bot/api"
	"halisaha-bot/listing"
	"halisaha-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

const (
	viewUsers        = "users"
	viewReservations = "reservations"
	viewTeams        = "teams"

	adminPageSize = 8
)

// HandleAdminDashboard fetches the summary and the detailed statistics in
// parallel; either failing fails the page.
func (h *Handler) HandleAdminDashboard(ctx context.Context, chatID int64) {
	if _, ok := h.protect(ctx, chatID, types.RoleAdmin); !ok {
		return
	}

	reqCtx, tok := h.pages.Begin(ctx, pageKey{chatID, "admin"})
	defer tok.Done()

	var (
		stats    types.AdminStats
		detailed types.DetailedStats
	)
	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() error {
		var err error
		stats, err = h.API.AdminStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		detailed, err = h.API.DetailedStats(gctx)
		return err
	})
	err := g.Wait()
	if !tok.Current() {
		return
	}
	if err != nil {
		h.fail(chatID, "admin dashboard", err)
		return
	}

	h.send(chatID, renderDashboard(stats, detailed))
}

func renderDashboard(s types.AdminStats, d types.DetailedStats) string {
	var b strings.Builder
	b.WriteString("📊 Yönetim paneli\n\n")
	fmt.Fprintf(&b, "👥 Kullanıcı: %d\n🏟 Tesis: %d\n📋 Rezervasyon: %d\n⚽ Takım: %d\n💰 Gelir: %s\n",
		s.TotalUsers, s.TotalVenues, s.TotalReservations, s.TotalTeams, price(s.TotalRevenue))

	if len(d.ReservationsByStatus) > 0 {
		b.WriteString("\nRezervasyon durumları:\n")
		for _, k := range slices.Sorted(maps.Keys(d.ReservationsByStatus)) {
			fmt.Fprintf(&b, "• %s: %d\n", statusLabel(types.ReservationStatus(k)), d.ReservationsByStatus[k])
		}
	}
	if len(d.UsersByRole) > 0 {
		b.WriteString("\nRollere göre kullanıcılar:\n")
		for _, k := range slices.Sorted(maps.Keys(d.UsersByRole)) {
			fmt.Fprintf(&b, "• %s: %d\n", roleLabel(types.Role(k)), d.UsersByRole[k])
		}
	}
	if len(d.TopVenues) > 0 {
		b.WriteString("\nEn çok rezervasyon alan tesisler:\n")
		for i, v := range d.TopVenues {
			fmt.Fprintf(&b, "%d. %s (%d)\n", i+1, v.Name, v.Reservations)
		}
	}
	b.WriteString("\n/admin_users · /admin_reservations · /admin_teams")
	return b.String()
}

// pagerQuery returns the query for a paged admin view. A fresh command
// starts over from page one with no filters.
func (h *Handler) pagerQuery(chatID int64, view string, reset bool) api.ListQuery {
	var q api.ListQuery
	h.withState(chatID, func(s *chatState) {
		p, ok := s.pagers[view]
		if !ok || reset {
			p = listing.NewPager(adminPageSize)
			s.pagers[view] = p
		}
		q = api.ListQuery{Page: p.Page, Limit: p.Limit, Filters: maps.Clone(p.Filters)}
	})
	return q
}

func (h *Handler) applyPage(chatID int64, view string, pg types.Pagination) listing.Pager {
	var out listing.Pager
	h.withState(chatID, func(s *chatState) {
		p, ok := s.pagers[view]
		if !ok {
			p = listing.NewPager(adminPageSize)
			s.pagers[view] = p
		}
		p.Apply(pg)
		out = *p
	})
	return out
}

// changePager mutates the view's pager and reports whether anything moved.
func (h *Handler) changePager(chatID int64, view string, fn func(p *listing.Pager) bool) bool {
	changed := false
	h.withState(chatID, func(s *chatState) {
		p, ok := s.pagers[view]
		if !ok {
			p = listing.NewPager(adminPageSize)
			s.pagers[view] = p
		}
		changed = fn(p)
	})
	return changed
}

// fetchPage loads the current page of a view, discarding it if a newer
// request for the same view started meanwhile.
func fetchPage[T any](ctx context.Context, h *Handler, chatID int64, view string, reset bool,
	load func(ctx context.Context, q api.ListQuery) (types.Paged[T], error),
) (types.Paged[T], listing.Pager, bool) {
	q := h.pagerQuery(chatID, view, reset)

	reqCtx, tok := h.pages.Begin(ctx, pageKey{chatID, "admin_" + view})
	defer tok.Done()

	page, err := load(reqCtx, q)
	if !tok.Current() {
		return page, listing.Pager{}, false
	}
	if err != nil {
		h.fail(chatID, "admin "+view, err)
		return page, listing.Pager{}, false
	}
	p := h.applyPage(chatID, view, page.Pagination)

	// A deletion can empty the last page; step back once.
	if len(page.Items) == 0 && p.Page > 1 && p.Page > p.TotalPages {
		h.changePager(chatID, view, func(p *listing.Pager) bool { return p.Prev() })
		return fetchPage(ctx, h, chatID, view, false, load)
	}
	return page, p, true
}

// ===== Users =====

func (h *Handler) HandleAdminUsers(ctx context.Context, chatID int64, messageID int) {
	if _, ok := h.protect(ctx, chatID, types.RoleAdmin); !ok {
		return
	}
	page, p, ok := fetchPage(ctx, h, chatID, viewUsers, messageID == 0, h.API.AdminUsers)
	if !ok {
		return
	}
	text, kb := renderAdminUsers(page.Items, &p)
	h.render(chatID, messageID, text, kb)
}

var roleFilters = []types.Role{types.RolePlayer, types.RoleVenueOwner, types.RoleAdmin}

func renderAdminUsers(users []types.User, p *listing.Pager) (string, *tgbotapi.InlineKeyboardMarkup) {
	var (
		b    strings.Builder
		rows [][]tgbotapi.InlineKeyboardButton
	)
	fmt.Fprintf(&b, "👥 Kullanıcılar (%d)", p.Total)
	if r := p.Filters["role"]; r != "" {
		fmt.Fprintf(&b, " · %s", roleLabel(types.Role(r)))
	}
	b.WriteString("\n\n")
	if len(users) == 0 {
		b.WriteString("Kullanıcı bulunamadı.\n")
	}

	offset := (p.Page - 1) * p.Limit
	for i, u := range users {
		n := fmt.Sprint(offset + i + 1)
		state := "aktif"
		if !u.IsActive {
			state = "pasif"
		}
		fmt.Fprintf(&b, "%s. %s (%s) · %s · %s\n", n, u.Name, u.Email, roleLabel(u.Role), state)

		toggle := button("⏸ "+n+" pasifleştir", "au:off:"+u.ID)
		if !u.IsActive {
			toggle = button("▶️ "+n+" aktifleştir", "au:on:"+u.ID)
		}
		// Admin accounts cannot be deleted from the list.
		del := disabled(n + " sil")
		if u.Role != types.RoleAdmin {
			del = button("🗑 "+n+" sil", "au:del:"+u.ID)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(toggle, del))

		var roles []tgbotapi.InlineKeyboardButton
		for _, r := range roleFilters {
			if r != u.Role {
				roles = append(roles, button(n+" → "+roleLabel(r), "au:setrole:"+u.ID+":"+string(r)))
			}
		}
		rows = append(rows, roles)
	}

	filters := []tgbotapi.InlineKeyboardButton{filterButton("Tümü", "au:role:all", p.Filters["role"] == "")}
	for _, r := range roleFilters {
		filters = append(filters, filterButton(roleLabel(r), "au:role:"+string(r), p.Filters["role"] == string(r)))
	}
	rows = append(rows, chunk(filters, 4)...)
	rows = append(rows, pagerRow("au", p))
	return b.String(), keyboard(rows)
}

func filterButton(label, data string, active bool) tgbotapi.InlineKeyboardButton {
	if active {
		label = "✅ " + label
	}
	return button(label, data)
}

// ===== Reservations =====

func (h *Handler) HandleAdminReservations(ctx context.Context, chatID int64, messageID int) {
	if _, ok := h.protect(ctx, chatID, types.RoleAdmin); !ok {
		return
	}
	page, p, ok := fetchPage(ctx, h, chatID, viewReservations, messageID == 0, h.API.AdminReservations)
	if !ok {
		return
	}
	text, kb := renderAdminReservations(page.Items, &p)
	h.render(chatID, messageID, text, kb)
}

// nextStatuses are the transitions offered for a reservation.
func nextStatuses(s types.ReservationStatus) []types.ReservationStatus {
	switch s {
	case types.ReservationPending:
		return []types.ReservationStatus{types.ReservationConfirmed, types.ReservationCancelled}
	case types.ReservationConfirmed:
		return []types.ReservationStatus{types.ReservationCompleted, types.ReservationNoShow, types.ReservationCancelled}
	}
	return nil
}

func renderAdminReservations(list []types.Reservation, p *listing.Pager) (string, *tgbotapi.InlineKeyboardMarkup) {
	var (
		b    strings.Builder
		rows [][]tgbotapi.InlineKeyboardButton
	)
	fmt.Fprintf(&b, "📋 Rezervasyonlar (%d)", p.Total)
	if st := p.Filters["status"]; st != "" {
		fmt.Fprintf(&b, " · %s", statusLabel(types.ReservationStatus(st)))
	}
	b.WriteString("\n\n")
	if len(list) == 0 {
		b.WriteString("Rezervasyon bulunamadı.\n")
	}

	offset := (p.Page - 1) * p.Limit
	for i, r := range list {
		n := fmt.Sprint(offset + i + 1)
		fmt.Fprintf(&b, "%s. %s · %s · %s · %s\n", n, r.Label(), r.UserName, price(r.TotalPrice), statusLabel(r.Status))

		var actions []tgbotapi.InlineKeyboardButton
		for _, next := range nextStatuses(r.Status) {
			actions = append(actions, button(n+" → "+statusLabel(next), "ar:set:"+r.ID+":"+string(next)))
		}
		actions = append(actions, button("🗑 "+n+" sil", "ar:del:"+r.ID))
		rows = append(rows, chunk(actions, 2)...)
	}

	filters := []tgbotapi.InlineKeyboardButton{filterButton("Tümü", "ar:status:all", p.Filters["status"] == "")}
	for _, st := range types.ReservationStatuses {
		filters = append(filters, filterButton(statusLabel(st), "ar:status:"+string(st), p.Filters["status"] == string(st)))
	}
	rows = append(rows, chunk(filters, 3)...)
	rows = append(rows, pagerRow("ar", p))
	return b.String(), keyboard(rows)
}

// ===== Teams =====

func (h *Handler) HandleAdminTeams(ctx context.Context, chatID int64, messageID int) {
	if _, ok := h.protect(ctx, chatID, types.RoleAdmin); !ok {
		return
	}
	page, p, ok := fetchPage(ctx, h, chatID, viewTeams, messageID == 0, h.API.AdminTeams)
	if !ok {
		return
	}
	text, kb := renderAdminTeams(page.Items, &p)
	h.render(chatID, messageID, text, kb)
}

func renderAdminTeams(teams []types.Team, p *listing.Pager) (string, *tgbotapi.InlineKeyboardMarkup) {
	var (
		b    strings.Builder
		rows [][]tgbotapi.InlineKeyboardButton
	)
	fmt.Fprintf(&b, "⚽ Takımlar (%d)\n\n", p.Total)
	if len(teams) == 0 {
		b.WriteString("Takım bulunamadı.\n")
	}
	offset := (p.Page - 1) * p.Limit
	var dels []tgbotapi.InlineKeyboardButton
	for i, t := range teams {
		n := fmt.Sprint(offset + i + 1)
		fmt.Fprintf(&b, "%s. %s · kaptan %s · %d oyuncu · ELO %.0f\n", n, t.Name, t.CaptainName, t.MemberCount, t.EloRating)
		dels = append(dels, button("🗑 "+n, "at:del:"+t.ID))
	}
	rows = append(rows, chunk(dels, 4)...)
	rows = append(rows, pagerRow("at", p))
	return b.String(), keyboard(rows)
}

// ===== Callbacks =====

var adminViews = map[string]string{"au": viewUsers, "ar": viewReservations, "at": viewTeams}

func (h *Handler) handleAdminCallback(ctx context.Context, cq *tgbotapi.CallbackQuery, prefix, payload string) {
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	if _, ok := h.protect(ctx, chatID, types.RoleAdmin); !ok {
		h.answer(cq, "")
		return
	}
	view := adminViews[prefix]
	action, arg, _ := strings.Cut(payload, ":")

	reload := func() {
		switch view {
		case viewUsers:
			h.HandleAdminUsers(ctx, chatID, messageID)
		case viewReservations:
			h.HandleAdminReservations(ctx, chatID, messageID)
		case viewTeams:
			h.HandleAdminTeams(ctx, chatID, messageID)
		}
	}

	switch action {
	case "page":
		moved := h.changePager(chatID, view, func(p *listing.Pager) bool {
			if arg == "next" {
				return p.Next()
			}
			return p.Prev()
		})
		if !moved {
			h.answer(cq, "Başka sayfa yok")
			return
		}
		h.answer(cq, "")
		reload()
		return
	case "role", "status":
		value := arg
		if value == "all" {
			value = ""
		}
		h.changePager(chatID, view, func(p *listing.Pager) bool {
			p.SetFilter(action, value)
			return true
		})
		h.answer(cq, "")
		reload()
		return
	}

	key := busyKey(chatID, prefix+":"+payload)
	if !h.busy.TryAcquire(key) {
		h.answer(cq, "İşleniyor...")
		return
	}
	defer h.busy.Release(key)
	h.answer(cq, "")

	var (
		err  error
		done string
	)
	switch prefix + ":" + action {
	case "au:on":
		done = "Kullanıcı aktifleştirildi"
		err = h.API.UpdateUserStatus(ctx, arg, true)
	case "au:off":
		done = "Kullanıcı pasifleştirildi"
		err = h.API.UpdateUserStatus(ctx, arg, false)
	case "au:del":
		done = "Kullanıcı silindi"
		err = h.API.DeleteUser(ctx, arg)
	case "au:setrole":
		id, role, _ := strings.Cut(arg, ":")
		if !types.Role(role).Valid() {
			h.Logger.Warn("invalid role in callback", "chat_id", chatID, "data", cq.Data)
			return
		}
		done = "Kullanıcı rolü değiştirildi"
		err = h.API.UpdateUserRole(ctx, id, types.Role(role))
	case "ar:set":
		id, status, _ := strings.Cut(arg, ":")
		done = "Rezervasyon güncellendi"
		err = h.API.UpdateReservationStatus(ctx, id, types.ReservationStatus(status))
	case "ar:del":
		done = "Rezervasyon silindi"
		err = h.API.DeleteReservation(ctx, arg)
	case "at:del":
		done = "Takım silindi"
		err = h.API.DeleteTeam(ctx, arg)
	default:
		h.Logger.Warn("unknown admin action", "chat_id", chatID, "data", cq.Data)
		return
	}
	if err != nil {
		h.fail(chatID, prefix+":"+action, err)
		return
	}
	h.succeed(chatID, done)
	reload()
}
