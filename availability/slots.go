package availability

import (
	"fmt"
	"strconv"
	"strings"

	"halisaha-bot/types"
)

const dayMinutes = 24 * 60

// Window is the bookable part of a day, in minutes since midnight.
type Window struct {
	Open  int
	Close int
}

func NewWindow(openHour, closeHour int) Window {
	return Window{Open: openHour * 60, Close: closeHour * 60}
}

// Slot is one candidate booking of fixed length.
type Slot struct {
	Start     string
	End       string
	Available bool
}

type interval struct {
	start, end int
}

// overlaps uses half-open intervals: [10:00,11:00) and [11:00,12:00) do not touch.
func (a interval) overlaps(b interval) bool {
	return a.start < b.end && a.end > b.start
}

// Derive lists every start in the window stepping by granularity minutes,
// ascending, each marked unavailable when it overlaps a booked interval.
func Derive(w Window, granularity int, booked []types.BookedSlot) ([]Slot, error) {
	if granularity <= 0 {
		return nil, fmt.Errorf("granularity must be positive, got %d", granularity)
	}

	taken := make([]interval, 0, len(booked))
	for _, b := range booked {
		iv, err := parseInterval(b)
		if err != nil {
			return nil, err
		}
		taken = append(taken, iv)
	}

	slots := make([]Slot, 0, (w.Close-w.Open)/granularity)
	for start := w.Open; start+granularity <= w.Close; start += granularity {
		cand := interval{start: start, end: start + granularity}
		free := true
		for _, t := range taken {
			if cand.overlaps(t) {
				free = false
				break
			}
		}
		slots = append(slots, Slot{
			Start:     FormatClock(cand.start),
			End:       FormatClock(cand.end),
			Available: free,
		})
	}
	return slots, nil
}

func parseInterval(b types.BookedSlot) (interval, error) {
	start, err := ParseClock(b.StartTime)
	if err != nil {
		return interval{}, fmt.Errorf("booked slot start: %w", err)
	}
	end, err := ParseClock(b.EndTime)
	if err != nil {
		return interval{}, fmt.Errorf("booked slot end: %w", err)
	}
	// A booking that ends at midnight comes back as 00:00.
	if end <= start && end == 0 {
		end = dayMinutes
	}
	if end <= start {
		return interval{}, fmt.Errorf("booked slot %s-%s ends before it starts", b.StartTime, b.EndTime)
	}
	return interval{start: start, end: end}, nil
}

// ParseClock accepts "HH:MM" or "HH:MM:SS" and returns minutes since midnight.
// "24:00" is accepted as the end of the day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	total := h*60 + m
	if h < 0 || total > dayMinutes {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return total, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
