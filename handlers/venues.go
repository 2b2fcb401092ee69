package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"halisaha-bot/availability"
	"halisaha-bot/listing"
	"halisaha-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// bookingDays is how far ahead the date picker goes, today included.
const bookingDays = 7

// venueView is the fetched venue list plus the chat's local filter and sort.
type venueView struct {
	all      []types.Venue
	criteria listing.VenueCriteria
	sort     listing.VenueSort
}

type bookingView struct {
	venue types.Venue
	field types.Field
}

var sortLabels = []struct {
	key   listing.VenueSort
	label string
}{
	{listing.SortName, "🔤 Ad"},
	{listing.SortPriceAsc, "💸 Ucuz"},
	{listing.SortPriceDesc, "💰 Pahalı"},
	{listing.SortRatingDesc, "⭐ Puan"},
}

var (
	ratingSteps = []float64{3, 4, 4.5}
	priceCaps   = []float64{200, 300, 500}
)

// HandleVenues fetches the venue list once; filtering and sorting then work
// on the local copy. Command arguments become the search text.
func (h *Handler) HandleVenues(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		return
	}

	reqCtx, tok := h.pages.Begin(ctx, pageKey{chatID, "venues"})
	defer tok.Done()

	venues, err := h.API.Venues(reqCtx)
	if !tok.Current() {
		return
	}
	if err != nil {
		h.fail(chatID, "list venues", err)
		return
	}

	var view venueView
	h.withState(chatID, func(s *chatState) {
		s.venues = &venueView{
			all:      venues,
			criteria: listing.VenueCriteria{Search: strings.TrimSpace(msg.CommandArguments())},
		}
		view = *s.venues
	})
	text, kb := renderVenues(view)
	h.render(chatID, 0, text, kb)
}

func (h *Handler) handleVenueCity(cq *tgbotapi.CallbackQuery, city string) {
	h.updateVenueView(cq, func(v *venueView) {
		v.criteria.City = city
		v.criteria.District = ""
	})
}

func (h *Handler) handleVenueDistrict(cq *tgbotapi.CallbackQuery, district string) {
	h.updateVenueView(cq, func(v *venueView) { v.criteria.District = district })
}

func (h *Handler) handleVenueRating(cq *tgbotapi.CallbackQuery, bound string) {
	h.updateVenueView(cq, func(v *venueView) { v.criteria.MinRating = threshold(bound) })
}

func (h *Handler) handleVenuePrice(cq *tgbotapi.CallbackQuery, bound string) {
	h.updateVenueView(cq, func(v *venueView) { v.criteria.MaxPrice = threshold(bound) })
}

// threshold parses a filter bound; anything unparsable clears it.
func threshold(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func (h *Handler) handleVenueSort(cq *tgbotapi.CallbackQuery, key string) {
	h.updateVenueView(cq, func(v *venueView) { v.sort = listing.VenueSort(key) })
}

func (h *Handler) updateVenueView(cq *tgbotapi.CallbackQuery, change func(v *venueView)) {
	chatID := cq.Message.Chat.ID

	var (
		view  venueView
		found bool
	)
	h.withState(chatID, func(s *chatState) {
		if s.venues == nil {
			return
		}
		change(s.venues)
		view, found = *s.venues, true
	})
	if !found {
		h.answer(cq, "Liste eskidi, /venues ile yenile")
		return
	}
	h.answer(cq, "")
	text, kb := renderVenues(view)
	h.edit(chatID, cq.Message.MessageID, text, kb)
}

func renderVenues(v venueView) (string, *tgbotapi.InlineKeyboardMarkup) {
	shown := listing.Venues(v.all, v.criteria, v.sort)

	var b strings.Builder
	b.WriteString("🏟 Sahalar")
	c := v.criteria
	if c.City != "" {
		fmt.Fprintf(&b, " · %s", c.City)
	}
	if c.District != "" {
		fmt.Fprintf(&b, "/%s", c.District)
	}
	fmt.Fprintf(&b, " (%d)\n", len(shown))
	if c.Search != "" {
		fmt.Fprintf(&b, "🔍 %q\n", c.Search)
	}
	b.WriteString("\n")
	if len(shown) == 0 {
		b.WriteString("Bu kriterlere uyan saha yok.")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, venue := range shown {
		fmt.Fprintf(&b, "• %s, %s/%s · %s/saat · ⭐ %.1f\n",
			venue.Name, venue.District, venue.City, price(venue.PricePerHour), venue.AverageRating)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(venue.Name, "v:"+venue.ID)))
	}

	var cities []tgbotapi.InlineKeyboardButton
	allLabel := "Tümü"
	if v.criteria.City == "" {
		allLabel = "✅ Tümü"
	}
	cities = append(cities, button(allLabel, "vf_city:"))
	for _, city := range listing.Cities(v.all) {
		label := city
		if strings.EqualFold(city, v.criteria.City) {
			label = "✅ " + city
		}
		cities = append(cities, button(label, "vf_city:"+city))
	}
	rows = append(rows, chunk(cities, 3)...)

	if c.City != "" {
		districts := []tgbotapi.InlineKeyboardButton{filterButton("Tüm ilçeler", "vf_dist:", c.District == "")}
		for _, d := range listing.Districts(v.all, c.City) {
			districts = append(districts, filterButton(d, "vf_dist:"+d, strings.EqualFold(d, c.District)))
		}
		rows = append(rows, chunk(districts, 3)...)
	}

	ratings := []tgbotapi.InlineKeyboardButton{filterButton("⭐ Hepsi", "vf_rate:", c.MinRating == 0)}
	for _, r := range ratingSteps {
		n := strconv.FormatFloat(r, 'f', -1, 64)
		ratings = append(ratings, filterButton(n+"+", "vf_rate:"+n, c.MinRating == r))
	}
	rows = append(rows, ratings)

	prices := []tgbotapi.InlineKeyboardButton{filterButton("💰 Hepsi", "vf_price:", c.MaxPrice == 0)}
	for _, p := range priceCaps {
		n := strconv.FormatFloat(p, 'f', -1, 64)
		prices = append(prices, filterButton("≤"+n, "vf_price:"+n, c.MaxPrice == p))
	}
	rows = append(rows, prices)

	var sorts []tgbotapi.InlineKeyboardButton
	for _, s := range sortLabels {
		label := s.label
		if s.key == v.sort {
			label = "✅ " + label
		}
		sorts = append(sorts, button(label, "vs:"+string(s.key)))
	}
	rows = append(rows, sorts)

	return b.String(), keyboard(rows)
}

// HandleVenue shows a venue with its fields; picking a field starts booking.
func (h *Handler) HandleVenue(ctx context.Context, chatID int64, messageID int, id string) {
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		return
	}
	if id == "" {
		h.send(chatID, "Kullanım: /venue <saha-id>")
		return
	}

	reqCtx, tok := h.pages.Begin(ctx, pageKey{chatID, "venue"})
	defer tok.Done()

	venue, err := h.API.Venue(reqCtx, id)
	if !tok.Current() {
		return
	}
	if err != nil {
		h.fail(chatID, "venue detail", err)
		return
	}

	h.Resolver.Close(chatID)
	h.withState(chatID, func(s *chatState) { s.booking = &bookingView{venue: venue} })

	var b strings.Builder
	fmt.Fprintf(&b, "🏟 %s\n📍 %s, %s/%s\n💰 %s/saat · ⭐ %.1f (%d yorum)\n\n",
		venue.Name, venue.Address, venue.District, venue.City,
		price(venue.PricePerHour), venue.AverageRating, venue.TotalReviews)

	var rows [][]tgbotapi.InlineKeyboardButton
	if len(venue.Fields) == 0 {
		b.WriteString("Bu tesiste henüz saha yok.")
	} else {
		b.WriteString("Rezervasyon için bir saha seç:\n")
	}
	for _, f := range venue.Fields {
		fmt.Fprintf(&b, "• %s (%s, %s)%s · %s/saat\n", f.Name, f.Type, f.SurfaceType, fieldExtras(f), price(venue.HourlyPrice(f)))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⚽ "+f.Name, "bf:"+f.ID)))
	}
	h.render(chatID, messageID, b.String(), keyboard(rows))
}

func fieldExtras(f types.Field) string {
	var extras []string
	if f.HasLighting {
		extras = append(extras, "ışıklı")
	}
	if f.HasRoof {
		extras = append(extras, "kapalı")
	}
	if len(extras) == 0 {
		return ""
	}
	return " [" + strings.Join(extras, ", ") + "]"
}

func (h *Handler) handleBookingField(cq *tgbotapi.CallbackQuery, fieldID string) {
	chatID := cq.Message.Chat.ID

	var (
		venue types.Venue
		field types.Field
		ok    bool
	)
	h.withState(chatID, func(s *chatState) {
		if s.booking == nil {
			return
		}
		field, ok = s.booking.venue.FieldByID(fieldID)
		if ok {
			s.booking.field = field
			venue = s.booking.venue
		}
	})
	if !ok {
		h.answer(cq, "Saha bulunamadı, /venues ile tekrar seç")
		return
	}
	h.answer(cq, "")

	today := time.Now().In(h.Location)
	var buttons []tgbotapi.InlineKeyboardButton
	for i := range bookingDays {
		day := today.AddDate(0, 0, i)
		buttons = append(buttons, button(dayLabel(day, i), "bd:"+day.Format("2006-01-02")))
	}
	rows := chunk(buttons, 2)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("↩️ Vazgeç", "bx")))

	text := fmt.Sprintf("🏟 %s / %s\n📅 Tarih seç:", venue.Name, field.Name)
	h.edit(chatID, cq.Message.MessageID, text, keyboard(rows))
}

var weekdays = [...]string{"Pazar", "Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma", "Cumartesi"}

func dayLabel(t time.Time, offset int) string {
	switch offset {
	case 0:
		return "Bugün " + t.Format("02.01")
	case 1:
		return "Yarın " + t.Format("02.01")
	}
	return weekdays[t.Weekday()] + " " + t.Format("02.01")
}

func (h *Handler) handleBookingDate(ctx context.Context, cq *tgbotapi.CallbackQuery, date string) {
	chatID := cq.Message.Chat.ID

	var (
		bv bookingView
		ok bool
	)
	h.withState(chatID, func(s *chatState) {
		if s.booking != nil && s.booking.field.ID != "" {
			bv, ok = *s.booking, true
		}
	})
	if !ok {
		h.answer(cq, "Önce bir saha seç")
		return
	}
	h.answer(cq, "Müsaitlik yükleniyor...")

	board, err := h.Resolver.Load(ctx, chatID, bv.field.ID, bv.venue.HourlyPrice(bv.field), date)
	if err != nil {
		h.fail(chatID, "load availability", err)
		return
	}
	text, kb := renderBoard(bv, board)
	h.edit(chatID, cq.Message.MessageID, text, kb)
}

// renderBoard lists every candidate slot; booked ones are disabled buttons.
func renderBoard(bv bookingView, board *availability.Availability) (string, *tgbotapi.InlineKeyboardMarkup) {
	text := fmt.Sprintf("🏟 %s / %s\n📅 %s\n\n%d müsait saat. Bir saat seç:",
		bv.venue.Name, bv.field.Name, board.Date, board.FreeCount())
	if board.FreeCount() == 0 {
		text = fmt.Sprintf("🏟 %s / %s\n📅 %s\n\nBu gün için müsait saat kalmadı.", bv.venue.Name, bv.field.Name, board.Date)
	}

	var buttons []tgbotapi.InlineKeyboardButton
	for _, s := range board.Slots {
		if s.Available {
			buttons = append(buttons, button("🟢 "+s.Start, "bs:"+s.Start))
		} else {
			buttons = append(buttons, disabled(s.Start))
		}
	}
	rows := chunk(buttons, 4)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("📅 Başka tarih", "bf:"+bv.field.ID),
		button("↩️ Vazgeç", "bx"),
	))
	return text, keyboard(rows)
}

func (h *Handler) handleBookingSlot(cq *tgbotapi.CallbackQuery, start string) {
	chatID := cq.Message.Chat.ID

	board, ok := h.Resolver.Board(chatID)
	if !ok {
		h.answer(cq, "Önce bir tarih seç")
		return
	}
	slot, ok := board.Slot(start)
	if !ok || !slot.Available {
		h.answer(cq, "Bu saat müsait değil")
		return
	}
	var bv bookingView
	h.withState(chatID, func(s *chatState) {
		if s.booking != nil {
			bv = *s.booking
		}
	})
	h.answer(cq, "")

	total := board.PricePerHour * float64(minutesBetween(slot.Start, slot.End)) / 60
	text := fmt.Sprintf("📝 Rezervasyon özeti\n\n🏟 %s / %s\n📅 %s\n⏰ %s - %s\n💰 %s\n\nOnaylıyor musun?",
		bv.venue.Name, bv.field.Name, board.Date, slot.Start, slot.End, price(total))
	kb := keyboard([][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			button("✅ Onayla", "bc:"+slot.Start),
			button("↩️ Geri", "bd:"+board.Date),
		),
	})
	h.edit(chatID, cq.Message.MessageID, text, kb)
}

func minutesBetween(start, end string) int {
	s, err1 := availability.ParseClock(start)
	e, err2 := availability.ParseClock(end)
	if err1 != nil || err2 != nil {
		return 0
	}
	return e - s
}

func (h *Handler) handleBookingConfirm(ctx context.Context, cq *tgbotapi.CallbackQuery, start string) {
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	res, err := h.Resolver.Submit(ctx, chatID, start)
	if errors.Is(err, availability.ErrSubmitInProgress) {
		h.answer(cq, "Rezervasyon gönderiliyor, lütfen bekle")
		return
	}
	h.answer(cq, "")

	var taken *availability.TakenError
	switch {
	case errors.As(err, &taken):
		h.fail(chatID, "create reservation", err)
		if taken.ReloadErr != nil || taken.Reloaded == nil {
			h.fail(chatID, "reload availability", taken.ReloadErr)
			return
		}
		var bv bookingView
		h.withState(chatID, func(s *chatState) {
			if s.booking != nil {
				bv = *s.booking
			}
		})
		text, kb := renderBoard(bv, taken.Reloaded)
		h.edit(chatID, messageID, text, kb)
		return
	case err != nil:
		h.fail(chatID, "create reservation", err)
		return
	}

	h.Resolver.Close(chatID)
	h.succeed(chatID, "Rezervasyon oluşturuldu")
	h.edit(chatID, messageID, fmt.Sprintf("✅ Rezervasyonun alındı.\n\n%s\nDurum: %s\n\n/reservations ile rezervasyonlarını görebilirsin.",
		res.Label(), statusLabel(res.Status)), nil)
}
