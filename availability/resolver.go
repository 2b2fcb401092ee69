package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"halisaha-bot/api"
	"halisaha-bot/inflight"
	"halisaha-bot/types"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrPastDate         = errors.New("date is in the past")
	ErrStale            = errors.New("availability superseded by a newer request")
	ErrNoBoard          = errors.New("no availability loaded")
	ErrSlotUnavailable  = errors.New("slot is not available")
	ErrSubmitInProgress = errors.New("reservation already being submitted")
	ErrSlotTaken        = errors.New("slot was just taken")
)

// TakenError reports a slot lost to another booking between load and submit.
// Reloaded holds the refreshed availability when the automatic reload worked.
type TakenError struct {
	Message   string
	Reloaded  *Availability
	ReloadErr error
}

func (e *TakenError) Error() string {
	return "slot was just taken: " + e.Message
}

func (e *TakenError) Is(target error) bool {
	return target == ErrSlotTaken
}

// Availability is the last successful load for a chat.
type Availability struct {
	FieldID      string
	Date         string
	PricePerHour float64
	Slots        []Slot
}

func (a *Availability) Slot(start string) (Slot, bool) {
	for _, s := range a.Slots {
		if s.Start == start {
			return s, true
		}
	}
	return Slot{}, false
}

func (a *Availability) FreeCount() int {
	n := 0
	for _, s := range a.Slots {
		if s.Available {
			n++
		}
	}
	return n
}

// Service is the reservation backend the resolver talks to.
type Service interface {
	AvailableSlots(ctx context.Context, fieldID, date string) ([]types.BookedSlot, error)
	CreateReservation(ctx context.Context, r types.NewReservation) (types.Reservation, error)
}

type Resolver struct {
	svc         Service
	window      Window
	granularity int
	loc         *time.Location
	now         func() time.Time

	loads   *inflight.Tracker[int64]
	submits *inflight.Busy[int64]

	mu     sync.Mutex
	boards map[int64]*Availability
}

func NewResolver(svc Service, window Window, granularity int, loc *time.Location) *Resolver {
	return &Resolver{
		svc:         svc,
		window:      window,
		granularity: granularity,
		loc:         loc,
		now:         time.Now,
		loads:       inflight.NewTracker[int64](),
		submits:     inflight.NewBusy[int64](),
		boards:      make(map[int64]*Availability),
	}
}

// Load fetches booked intervals for the field and date and derives the
// chat's slot board. A failed load leaves the chat without a board rather
// than with an all-free one.
func (r *Resolver) Load(ctx context.Context, chatID int64, fieldID string, pricePerHour float64, date string) (*Availability, error) {
	day, err := time.ParseInLocation(dateLayout, date, r.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}
	now := r.now().In(r.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
	if day.Before(today) {
		return nil, ErrPastDate
	}

	ctx, tok := r.loads.Begin(ctx, chatID)
	defer tok.Done()

	booked, err := r.svc.AvailableSlots(ctx, fieldID, date)
	if !tok.Current() {
		return nil, ErrStale
	}
	if err != nil {
		r.Clear(chatID)
		return nil, fmt.Errorf("loading availability: %w", err)
	}

	slots, err := Derive(r.window, r.granularity, booked)
	if err != nil {
		r.Clear(chatID)
		return nil, fmt.Errorf("deriving availability: %w", err)
	}

	for i := range slots {
		if r.started(date, slots[i].Start) {
			slots[i].Available = false
		}
	}

	board := &Availability{
		FieldID:      fieldID,
		Date:         date,
		PricePerHour: pricePerHour,
		Slots:        slots,
	}

	r.mu.Lock()
	r.boards[chatID] = board
	r.mu.Unlock()
	return board, nil
}

func (r *Resolver) Board(chatID int64) (*Availability, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boards[chatID]
	return b, ok
}

// Clear drops the chat's board.
func (r *Resolver) Clear(chatID int64) {
	r.mu.Lock()
	delete(r.boards, chatID)
	r.mu.Unlock()
}

// Close abandons the chat's view: the load in flight is cancelled too.
func (r *Resolver) Close(chatID int64) {
	r.loads.Abandon(chatID)
	r.Clear(chatID)
}

// Submit books the slot starting at start on the chat's current board.
func (r *Resolver) Submit(ctx context.Context, chatID int64, start string) (types.Reservation, error) {
	board, ok := r.Board(chatID)
	if !ok {
		return types.Reservation{}, ErrNoBoard
	}
	slot, ok := board.Slot(start)
	if !ok || !slot.Available || r.started(board.Date, slot.Start) {
		return types.Reservation{}, ErrSlotUnavailable
	}

	if !r.submits.TryAcquire(chatID) {
		return types.Reservation{}, ErrSubmitInProgress
	}
	defer r.submits.Release(chatID)

	res, err := r.svc.CreateReservation(ctx, types.NewReservation{
		FieldID:    board.FieldID,
		Date:       board.Date,
		StartTime:  slot.Start,
		EndTime:    slot.End,
		TotalPrice: board.PricePerHour * float64(r.granularity) / 60,
	})
	if err == nil {
		return res, nil
	}

	if api.IsConflict(err) {
		msg, _ := api.ServerMessage(err)
		taken := &TakenError{Message: msg}
		taken.Reloaded, taken.ReloadErr = r.Load(ctx, chatID, board.FieldID, board.PricePerHour, board.Date)
		return types.Reservation{}, taken
	}
	return types.Reservation{}, fmt.Errorf("creating reservation: %w", err)
}

// started reports whether the slot beginning at start on date has already
// begun. Only today's slots can have started; later dates never have.
func (r *Resolver) started(date, start string) bool {
	now := r.now().In(r.loc)
	if date != now.Format(dateLayout) {
		return false
	}
	m, err := ParseClock(start)
	return err == nil && m <= now.Hour()*60+now.Minute()
}
