// Package checker polls the backend for team invitations and match proposals
// and announces new ones to every logged-in chat.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"halisaha-bot/api"
	"halisaha-bot/notify"
	"halisaha-bot/session"
	"halisaha-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

// Source is the part of the API client the poller reads from.
type Source interface {
	MyInvitations(ctx context.Context) ([]types.Invitation, error)
	ReceivedProposals(ctx context.Context) ([]types.MatchProposal, error)
}

type Store interface {
	SessionChats(ctx context.Context) ([]int64, error)
	GetSeen(ctx context.Context, chatID int64) (map[string]bool, error)
	SaveSeen(ctx context.Context, chatID int64, ids []string) error
}

type Checker struct {
	Bot      notify.Sender
	Store    Store
	Source   Source
	Interval time.Duration
	Logger   *slog.Logger
}

func New(bot notify.Sender, store Store, source Source, interval time.Duration, logger *slog.Logger) *Checker {
	return &Checker{
		Bot:      bot,
		Store:    store,
		Source:   source,
		Interval: interval,
		Logger:   logger,
	}
}

// Run polls until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) error {
	c.Logger.Info("invitation poller started", "interval", c.Interval)

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("invitation poller stopped")
			return nil
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll runs one poll over every chat that has a session.
func (c *Checker) CheckAll(ctx context.Context) {
	chats, err := c.Store.SessionChats(ctx)
	if err != nil {
		c.Logger.Warn("listing session chats failed", "error", err)
		return
	}
	for _, chatID := range chats {
		if ctx.Err() != nil {
			return
		}
		if err := c.CheckChat(ctx, chatID); err != nil {
			c.Logger.Warn("poll failed", "chat_id", chatID, "error", err)
		}
	}
}

// item is one pending invitation or proposal, keyed so both kinds can share
// a seen set.
type item struct {
	key  string
	text string
}

// CheckChat announces pending items the chat has not been told about yet.
// The first poll of a chat only records what is pending.
func (c *Checker) CheckChat(ctx context.Context, chatID int64) error {
	ctx = session.WithChat(ctx, chatID)

	var (
		invitations []types.Invitation
		proposals   []types.MatchProposal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invitations, err = c.Source.MyInvitations(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		proposals, err = c.Source.ReceivedProposals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			// The session has already been cleared by the client.
			return nil
		}
		return fmt.Errorf("fetching pending items: %w", err)
	}

	current := pendingItems(invitations, proposals)

	seen, err := c.Store.GetSeen(ctx, chatID)
	if err != nil {
		return fmt.Errorf("loading seen set: %w", err)
	}

	if seen != nil {
		if fresh := findNew(seen, current); len(fresh) > 0 {
			if err := c.sendNotification(chatID, fresh); err != nil {
				return fmt.Errorf("sending notification: %w", err)
			}
		}
	}

	ids := make([]string, len(current))
	for i, it := range current {
		ids[i] = it.key
	}
	return c.Store.SaveSeen(ctx, chatID, ids)
}

func pendingItems(invitations []types.Invitation, proposals []types.MatchProposal) []item {
	items := make([]item, 0, len(invitations)+len(proposals))
	for _, inv := range invitations {
		if inv.Status != types.InvitationPending {
			continue
		}
		text := fmt.Sprintf("📨 Takım daveti: %s", inv.Team.Name)
		if inv.Message != "" {
			text += "\n   " + inv.Message
		}
		items = append(items, item{key: "inv:" + inv.ID, text: text})
	}
	for _, p := range proposals {
		if p.Status != types.InvitationPending {
			continue
		}
		text := fmt.Sprintf("⚽ Maç teklifi: %s", p.CounterpartyTeam.Name)
		if p.ProposedDate != "" {
			text += " (" + p.ProposedDate + ")"
		}
		items = append(items, item{key: "prop:" + p.ID, text: text})
	}
	return items
}

func findNew(seen map[string]bool, current []item) []item {
	fresh := make([]item, 0)
	for _, it := range current {
		if !seen[it.key] {
			fresh = append(fresh, it)
		}
	}
	return fresh
}

func (c *Checker) sendNotification(chatID int64, items []item) error {
	var b strings.Builder
	b.WriteString("🔔 Yeni bildirimler\n\n")
	for _, it := range items {
		b.WriteString(it.text)
		b.WriteString("\n")
	}
	b.WriteString("\n/invitations · /proposals")

	if _, err := c.Bot.Send(tgbotapi.NewMessage(chatID, b.String())); err != nil {
		return err
	}
	c.Logger.Info("notification sent", "chat_id", chatID, "items", len(items))
	return nil
}
