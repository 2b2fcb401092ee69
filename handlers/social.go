package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"halisaha-bot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

// ===== Team invitations =====

func (h *Handler) HandleInvitations(ctx context.Context, chatID int64, messageID int) {
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		return
	}

	reqCtx, tok := h.pages.Begin(ctx, pageKey{chatID, "invitations"})
	defer tok.Done()

	list, err := h.API.MyInvitations(reqCtx)
	if !tok.Current() {
		return
	}
	if err != nil {
		h.fail(chatID, "list invitations", err)
		return
	}

	h.withState(chatID, func(s *chatState) { s.invitations = list })
	text, kb := renderInvitations(list)
	h.render(chatID, messageID, text, kb)
}

func renderInvitations(list []types.Invitation) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(list) == 0 {
		return "📨 Bekleyen takım davetin yok.", nil
	}
	var (
		b    strings.Builder
		rows [][]tgbotapi.InlineKeyboardButton
	)
	b.WriteString("📨 Takım davetleri\n\n")
	for i, inv := range list {
		fmt.Fprintf(&b, "%d. %s", i+1, inv.Team.Name)
		if inv.Message != "" {
			fmt.Fprintf(&b, " · \"%s\"", inv.Message)
		}
		b.WriteString("\n")
		if inv.Status == types.InvitationPending {
			n := fmt.Sprint(i + 1)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				button("✅ "+n+". Kabul", "ia:"+inv.ID),
				button("❌ "+n+". Reddet", "ir:"+inv.ID),
			))
		}
	}
	return b.String(), keyboard(rows)
}

func (h *Handler) handleInvitationRespond(ctx context.Context, cq *tgbotapi.CallbackQuery, id string, r types.Response) {
	chatID := cq.Message.Chat.ID

	key := busyKey(chatID, "invitation:"+id)
	if !h.busy.TryAcquire(key) {
		h.answer(cq, "İşleniyor...")
		return
	}
	defer h.busy.Release(key)
	h.answer(cq, "")

	if err := h.API.RespondInvitation(ctx, id, r); err != nil {
		h.fail(chatID, "respond invitation", err)
		return
	}

	var list []types.Invitation
	h.withState(chatID, func(s *chatState) {
		s.invitations = slices.DeleteFunc(s.invitations, func(inv types.Invitation) bool { return inv.ID == id })
		list = slices.Clone(s.invitations)
	})
	h.succeed(chatID, responseText(r, "Davet"))
	text, kb := renderInvitations(list)
	h.edit(chatID, cq.Message.MessageID, text, kb)
}

func responseText(r types.Response, what string) string {
	if r == types.Accept {
		return what + " kabul edildi"
	}
	return what + " reddedildi"
}

// ===== Match proposals =====

func (h *Handler) HandleProposals(ctx context.Context, chatID int64, messageID int) {
	if _, ok := h.protect(ctx, chatID, ""); !ok {
		return
	}

	reqCtx, tok := h.pages.Begin(ctx, pageKey{chatID, "proposals"})
	defer tok.Done()

	var received, sent []types.MatchProposal
	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() error {
		var err error
		received, err = h.API.ReceivedProposals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sent, err = h.API.SentProposals(gctx)
		return err
	})
	err := g.Wait()
	if !tok.Current() {
		return
	}
	if err != nil {
		h.fail(chatID, "list proposals", err)
		return
	}

	h.withState(chatID, func(s *chatState) {
		s.proposals = received
		s.sent = sent
	})
	text, kb := renderProposals(received, sent)
	h.render(chatID, messageID, text, kb)
}

func renderProposals(received, sent []types.MatchProposal) (string, *tgbotapi.InlineKeyboardMarkup) {
	var (
		b    strings.Builder
		rows [][]tgbotapi.InlineKeyboardButton
	)
	b.WriteString("⚽ Gelen maç teklifleri\n")
	if len(received) == 0 {
		b.WriteString("Yok.\n")
	}
	for i, p := range received {
		fmt.Fprintf(&b, "%d. %s%s · %s\n", i+1, p.CounterpartyTeam.Name, proposalDate(p), proposalStatus(p.Status))
		if p.Message != "" {
			fmt.Fprintf(&b, "   \"%s\"\n", p.Message)
		}
		if p.Status == types.InvitationPending {
			n := fmt.Sprint(i + 1)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				button("✅ "+n+". Kabul", "pa:"+p.ID),
				button("❌ "+n+". Reddet", "pr:"+p.ID),
			))
		}
	}

	b.WriteString("\n📤 Gönderdiğin teklifler\n")
	if len(sent) == 0 {
		b.WriteString("Yok.\n")
	}
	for _, p := range sent {
		fmt.Fprintf(&b, "• %s%s · %s\n", p.CounterpartyTeam.Name, proposalDate(p), proposalStatus(p.Status))
	}
	return b.String(), keyboard(rows)
}

func proposalDate(p types.MatchProposal) string {
	if p.ProposedDate == "" {
		return ""
	}
	return " (" + p.ProposedDate + ")"
}

func proposalStatus(s types.InvitationStatus) string {
	switch s {
	case types.InvitationPending:
		return "⏳ bekliyor"
	case types.InvitationAccepted:
		return "✅ kabul"
	case types.InvitationRejected:
		return "❌ red"
	case types.InvitationCancelled:
		return "iptal"
	case types.InvitationExpired:
		return "süresi doldu"
	}
	return string(s)
}

func (h *Handler) handleProposalRespond(ctx context.Context, cq *tgbotapi.CallbackQuery, id string, r types.Response) {
	chatID := cq.Message.Chat.ID

	key := busyKey(chatID, "proposal:"+id)
	if !h.busy.TryAcquire(key) {
		h.answer(cq, "İşleniyor...")
		return
	}
	defer h.busy.Release(key)
	h.answer(cq, "")

	if err := h.API.RespondProposal(ctx, id, r); err != nil {
		h.fail(chatID, "respond proposal", err)
		return
	}

	var received, sent []types.MatchProposal
	h.withState(chatID, func(s *chatState) {
		s.proposals = slices.DeleteFunc(s.proposals, func(p types.MatchProposal) bool { return p.ID == id })
		received, sent = slices.Clone(s.proposals), slices.Clone(s.sent)
	})
	h.succeed(chatID, responseText(r, "Teklif"))
	text, kb := renderProposals(received, sent)
	h.edit(chatID, cq.Message.MessageID, text, kb)
}
