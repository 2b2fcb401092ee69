package api

import (
	"context"
	"net/http"
	"net/url"

	"halisaha-bot/types"
)

func (c *Client) MyInvitations(ctx context.Context) ([]types.Invitation, error) {
	var inv []types.Invitation
	err := c.get(ctx, "/teams/my-invitations", nil, &inv)
	return inv, err
}

func (c *Client) RespondInvitation(ctx context.Context, id string, r types.Response) error {
	body := map[string]types.Response{"response": r}
	return c.send(ctx, http.MethodPost, "/teams/invitations/"+url.PathEscape(id)+"/respond", nil, body, nil)
}

func (c *Client) ReceivedProposals(ctx context.Context) ([]types.MatchProposal, error) {
	var p []types.MatchProposal
	err := c.get(ctx, "/opponent-search/proposals/received", nil, &p)
	return p, err
}

func (c *Client) SentProposals(ctx context.Context) ([]types.MatchProposal, error) {
	var p []types.MatchProposal
	err := c.get(ctx, "/opponent-search/proposals/sent", nil, &p)
	return p, err
}

func (c *Client) RespondProposal(ctx context.Context, id string, r types.Response) error {
	body := map[string]types.Response{"response": r}
	return c.send(ctx, http.MethodPost, "/opponent-search/proposals/"+url.PathEscape(id)+"/respond", nil, body, nil)
}

// SubmitRatings sends every drafted rating in one request.
func (c *Client) SubmitRatings(ctx context.Context, ratings []types.PlayerRating) error {
	body := map[string][]types.PlayerRating{"ratings": ratings}
	return c.send(ctx, http.MethodPost, "/ratings", nil, body, nil)
}

func (c *Client) UserRatings(ctx context.Context, userID string) (types.RatingSummary, error) {
	var s types.RatingSummary
	err := c.get(ctx, "/ratings/user/"+url.PathEscape(userID), nil, &s)
	return s, err
}
