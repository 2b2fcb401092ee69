package api

import (
	"context"
	"net/http"

	"halisaha-bot/types"
)

// AuthResult is the payload of a successful login or registration.
type AuthResult struct {
	Token string        `json:"token"`
	User  types.Profile `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{"email": email, "password": password}

	var res AuthResult
	err := c.send(ctx, http.MethodPost, "/auth/login", nil, body, &res)
	return res, err
}

func (c *Client) Register(ctx context.Context, reg types.Registration) (AuthResult, error) {
	var res AuthResult
	err := c.send(ctx, http.MethodPost, "/auth/register", nil, reg, &res)
	return res, err
}

func (c *Client) Profile(ctx context.Context) (types.Profile, error) {
	var p types.Profile
	err := c.get(ctx, "/auth/profile", nil, &p)
	return p, err
}
