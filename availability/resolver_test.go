package availability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"halisaha-bot/api"
	"halisaha-bot/types"
)

type fakeService struct {
	mu      sync.Mutex
	booked  map[string][]types.BookedSlot // keyed by date
	loadErr error
	// gate, when set, blocks AvailableSlots until a value arrives or ctx ends.
	gate chan struct{}

	createErr  error
	createGate chan struct{}
	created    []types.NewReservation

	loads    atomic.Int32
	creating atomic.Int32
}

func (f *fakeService) AvailableSlots(ctx context.Context, fieldID, date string) ([]types.BookedSlot, error) {
	f.loads.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.booked[date], nil
}

func (f *fakeService) CreateReservation(ctx context.Context, r types.NewReservation) (types.Reservation, error) {
	f.creating.Add(1)
	if f.createGate != nil {
		<-f.createGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, r)
	if f.createErr != nil {
		return types.Reservation{}, f.createErr
	}
	return types.Reservation{ID: "r1", FieldID: r.FieldID, Date: r.Date, StartTime: r.StartTime, EndTime: r.EndTime, TotalPrice: r.TotalPrice, Status: types.ReservationPending}, nil
}

func (f *fakeService) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

var testNow = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

func newTestResolver(svc Service) *Resolver {
	r := NewResolver(svc, NewWindow(8, 12), 60, time.UTC)
	r.now = func() time.Time { return testNow }
	return r
}

func TestLoadRejectsPastAndInvalidDates(t *testing.T) {
	svc := &fakeService{}
	r := newTestResolver(svc)

	if _, err := r.Load(context.Background(), 1, "f1", 400, "2026-10-18"); !errors.Is(err, ErrPastDate) {
		t.Errorf("past date err = %v", err)
	}
	if _, err := r.Load(context.Background(), 1, "f1", 400, "18.10.2026"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("invalid date err = %v", err)
	}
	if svc.loads.Load() != 0 {
		t.Error("invalid dates must not reach the server")
	}

	if _, err := r.Load(context.Background(), 1, "f1", 400, "2026-10-19"); err != nil {
		t.Errorf("today rejected: %v", err)
	}
}

func TestTodayClosesStartedSlots(t *testing.T) {
	svc := &fakeService{booked: map[string][]types.BookedSlot{}}
	r := NewResolver(svc, NewWindow(12, 18), 60, time.UTC)
	r.now = func() time.Time { return testNow }

	board, err := r.Load(context.Background(), 1, "f1", 400, "2026-10-19")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"12:00": false, "13:00": false, "14:00": false, "15:00": false, "16:00": true, "17:00": true}
	for _, s := range board.Slots {
		if s.Available != want[s.Start] {
			t.Errorf("slot %s available = %v, want %v", s.Start, s.Available, want[s.Start])
		}
	}

	if _, err := r.Submit(context.Background(), 1, "14:00"); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("Submit(14:00) err = %v, want ErrSlotUnavailable", err)
	}
	if svc.createdCount() != 0 {
		t.Error("started slot reached the server")
	}

	// The board was loaded before 16:00 began; by submit time it has.
	r.now = func() time.Time { return testNow.Add(90 * time.Minute) }
	if _, err := r.Submit(context.Background(), 1, "16:00"); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("Submit(16:00) at 16:30 err = %v, want ErrSlotUnavailable", err)
	}
	if _, err := r.Submit(context.Background(), 1, "17:00"); err != nil {
		t.Errorf("Submit(17:00): %v", err)
	}
	if svc.createdCount() != 1 {
		t.Errorf("created = %d, want 1", svc.createdCount())
	}

	// Other days are unaffected by the time of day.
	board, err = r.Load(context.Background(), 1, "f1", 400, "2026-10-20")
	if err != nil {
		t.Fatal(err)
	}
	if board.FreeCount() != 6 {
		t.Errorf("tomorrow free = %d, want 6", board.FreeCount())
	}
}

func TestLoadFailureLeavesNoBoard(t *testing.T) {
	svc := &fakeService{booked: map[string][]types.BookedSlot{}}
	r := newTestResolver(svc)

	if _, err := r.Load(context.Background(), 1, "f1", 400, "2026-10-20"); err != nil {
		t.Fatal(err)
	}

	svc.loadErr = api.ErrTransport
	_, err := r.Load(context.Background(), 1, "f1", 400, "2026-10-21")
	if !errors.Is(err, api.ErrTransport) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := r.Board(1); ok {
		t.Error("failed load left a board behind")
	}
	if _, err := r.Submit(context.Background(), 1, "08:00"); !errors.Is(err, ErrNoBoard) {
		t.Errorf("Submit err = %v, want ErrNoBoard", err)
	}
}

func TestSubmitUnavailableSlotSkipsNetwork(t *testing.T) {
	svc := &fakeService{booked: map[string][]types.BookedSlot{
		"2026-10-20": {{StartTime: "10:00", EndTime: "11:00"}},
	}}
	r := newTestResolver(svc)

	board, err := r.Load(context.Background(), 1, "f1", 400, "2026-10-20")
	if err != nil {
		t.Fatal(err)
	}
	if board.FreeCount() != 3 {
		t.Errorf("free = %d, want 3", board.FreeCount())
	}

	for _, start := range []string{"10:00", "07:00", "12:00"} {
		if _, err := r.Submit(context.Background(), 1, start); !errors.Is(err, ErrSlotUnavailable) {
			t.Errorf("Submit(%s) err = %v", start, err)
		}
	}
	if svc.createdCount() != 0 {
		t.Error("unavailable slot reached the server")
	}
}

func TestSubmitBooksAvailableSlot(t *testing.T) {
	svc := &fakeService{booked: map[string][]types.BookedSlot{}}
	r := newTestResolver(svc)

	if _, err := r.Load(context.Background(), 1, "f1", 450, "2026-10-20"); err != nil {
		t.Fatal(err)
	}

	res, err := r.Submit(context.Background(), 1, "09:00")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.StartTime != "09:00" || res.EndTime != "10:00" || res.TotalPrice != 450 {
		t.Errorf("reservation = %+v", res)
	}
}

func TestSubmitConflictReloads(t *testing.T) {
	svc := &fakeService{
		booked:    map[string][]types.BookedSlot{},
		createErr: &api.Error{Status: http.StatusConflict, Message: "Bu saat az önce doldu"},
	}
	r := newTestResolver(svc)

	if _, err := r.Load(context.Background(), 1, "f1", 400, "2026-10-20"); err != nil {
		t.Fatal(err)
	}

	// Someone else books 09:00 meanwhile.
	svc.mu.Lock()
	svc.booked["2026-10-20"] = []types.BookedSlot{{StartTime: "09:00", EndTime: "10:00"}}
	svc.mu.Unlock()

	_, err := r.Submit(context.Background(), 1, "09:00")
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}

	var taken *TakenError
	if !errors.As(err, &taken) {
		t.Fatal("expected *TakenError")
	}
	if taken.Message != "Bu saat az önce doldu" {
		t.Errorf("message = %q", taken.Message)
	}
	if taken.ReloadErr != nil || taken.Reloaded == nil {
		t.Fatalf("reload = %v, %v", taken.Reloaded, taken.ReloadErr)
	}
	if s, _ := taken.Reloaded.Slot("09:00"); s.Available {
		t.Error("reloaded board still offers the taken slot")
	}
	if svc.loads.Load() != 2 {
		t.Errorf("loads = %d, want 2", svc.loads.Load())
	}
	board, _ := r.Board(1)
	if board != taken.Reloaded {
		t.Error("board not replaced by the reload")
	}
}

func TestSubmitGenericFailureIsNotTaken(t *testing.T) {
	svc := &fakeService{
		booked:    map[string][]types.BookedSlot{},
		createErr: &api.Error{Status: http.StatusBadRequest, Message: "Geçersiz saat"},
	}
	r := newTestResolver(svc)
	r.Load(context.Background(), 1, "f1", 400, "2026-10-20")

	_, err := r.Submit(context.Background(), 1, "08:00")
	if errors.Is(err, ErrSlotTaken) {
		t.Error("400 reported as slot taken")
	}
	if msg, _ := api.ServerMessage(err); msg != "Geçersiz saat" {
		t.Errorf("message = %q", msg)
	}
	if svc.loads.Load() != 1 {
		t.Error("generic failure must not auto reload")
	}
}

func TestSubmitInProgress(t *testing.T) {
	svc := &fakeService{
		booked:     map[string][]types.BookedSlot{},
		createGate: make(chan struct{}),
	}
	r := newTestResolver(svc)
	r.Load(context.Background(), 1, "f1", 400, "2026-10-20")

	done := make(chan error)
	go func() {
		_, err := r.Submit(context.Background(), 1, "08:00")
		done <- err
	}()

	// Wait until the first submit is waiting on the server.
	deadline := time.Now().Add(2 * time.Second)
	for svc.creating.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first submit never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := r.Submit(context.Background(), 1, "09:00"); !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("concurrent Submit err = %v", err)
	}

	close(svc.createGate)
	if err := <-done; err != nil {
		t.Errorf("first Submit: %v", err)
	}
	if svc.createdCount() != 1 {
		t.Errorf("created = %d, want 1", svc.createdCount())
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	svc := &fakeService{
		booked: map[string][]types.BookedSlot{
			"2026-10-20": {{StartTime: "08:00", EndTime: "09:00"}},
			"2026-10-21": {},
		},
		gate: make(chan struct{}),
	}
	r := newTestResolver(svc)

	first := make(chan error)
	go func() {
		_, err := r.Load(context.Background(), 1, "f1", 400, "2026-10-20")
		first <- err
	}()

	for svc.loads.Load() < 1 {
		time.Sleep(time.Millisecond)
	}

	second := make(chan error)
	go func() {
		_, err := r.Load(context.Background(), 1, "f1", 400, "2026-10-21")
		second <- err
	}()

	if err := <-first; !errors.Is(err, ErrStale) {
		t.Errorf("superseded load err = %v, want ErrStale", err)
	}

	svc.gate <- struct{}{}
	if err := <-second; err != nil {
		t.Fatalf("second load: %v", err)
	}

	board, ok := r.Board(1)
	if !ok || board.Date != "2026-10-21" {
		t.Errorf("board = %+v", board)
	}
}
