package api

import (
	"context"
	"net/http"
	"net/url"

	"halisaha-bot/types"
)

func (c *Client) AdminStats(ctx context.Context) (types.AdminStats, error) {
	var s types.AdminStats
	err := c.get(ctx, "/admin/stats", nil, &s)
	return s, err
}

func (c *Client) DetailedStats(ctx context.Context) (types.DetailedStats, error) {
	var s types.DetailedStats
	err := c.get(ctx, "/admin/statistics/detailed", nil, &s)
	return s, err
}

func (c *Client) AdminUsers(ctx context.Context, q ListQuery) (types.Paged[types.User], error) {
	return getPaged[types.User](ctx, c, "/admin/users", "users", q)
}

func (c *Client) UpdateUserStatus(ctx context.Context, id string, active bool) error {
	body := map[string]bool{"isActive": active}
	return c.send(ctx, http.MethodPatch, "/admin/users/"+url.PathEscape(id)+"/status", nil, body, nil)
}

func (c *Client) UpdateUserRole(ctx context.Context, id string, role types.Role) error {
	body := map[string]types.Role{"role": role}
	return c.send(ctx, http.MethodPatch, "/admin/users/"+url.PathEscape(id)+"/role", nil, body, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) AdminReservations(ctx context.Context, q ListQuery) (types.Paged[types.Reservation], error) {
	return getPaged[types.Reservation](ctx, c, "/admin/reservations", "reservations", q)
}

func (c *Client) UpdateReservationStatus(ctx context.Context, id string, status types.ReservationStatus) error {
	body := map[string]types.ReservationStatus{"status": status}
	return c.send(ctx, http.MethodPatch, "/admin/reservations/"+url.PathEscape(id)+"/status", nil, body, nil)
}

func (c *Client) DeleteReservation(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/admin/reservations/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) AdminTeams(ctx context.Context, q ListQuery) (types.Paged[types.Team], error) {
	return getPaged[types.Team](ctx, c, "/admin/teams", "teams", q)
}

func (c *Client) DeleteTeam(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/admin/teams/"+url.PathEscape(id), nil, nil, nil)
}
