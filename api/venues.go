package api

import (
	"context"
	"net/http"
	"net/url"

	"halisaha-bot/types"
)

// Venues returns every venue; filtering and sorting happen client-side.
func (c *Client) Venues(ctx context.Context) ([]types.Venue, error) {
	var venues []types.Venue
	err := c.get(ctx, "/venues", nil, &venues)
	return venues, err
}

func (c *Client) Venue(ctx context.Context, id string) (types.Venue, error) {
	var v types.Venue
	err := c.get(ctx, "/venues/"+url.PathEscape(id), nil, &v)
	return v, err
}

func (c *Client) MyReservations(ctx context.Context) ([]types.Reservation, error) {
	var res []types.Reservation
	err := c.get(ctx, "/reservations", nil, &res)
	return res, err
}

// AvailableSlots returns the intervals already booked on the field for date.
func (c *Client) AvailableSlots(ctx context.Context, fieldID, date string) ([]types.BookedSlot, error) {
	q := url.Values{}
	q.Set("fieldId", fieldID)
	q.Set("date", date)

	var booked []types.BookedSlot
	err := c.get(ctx, "/reservations/available-slots", q, &booked)
	return booked, err
}

func (c *Client) CreateReservation(ctx context.Context, r types.NewReservation) (types.Reservation, error) {
	var res types.Reservation
	err := c.send(ctx, http.MethodPost, "/reservations", nil, r, &res)
	return res, err
}

func (c *Client) CancelReservation(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodPatch, "/reservations/"+url.PathEscape(id)+"/cancel", nil, nil, nil)
}
