package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/finance"
)

// Main menu dispatch. The menu is the steady state of an active session.
func (e *Engine) menu(ctx context.Context, t *turn) error {
	switch t.text {
	case "1":
		return e.showBalance(ctx, t)
	case "2":
		e.startCreate(t)
	case "3":
		e.listWallets(t)
	case "registrar":
		if t.record != nil {
			t.say(msgAlreadyMember)
			return nil
		}
		t.say(msgAskRegistration)
		t.sess.MoveTo(domain.StepAskRegistration)
	default:
		t.say(msgBadOption)
	}
	return nil
}

func (e *Engine) showBalance(ctx context.Context, t *turn) error {
	view, err := e.finance.PersonalAndCommunityBalance(ctx, t.sess.Identity)
	if errors.Is(err, domain.ErrNotRegistered) {
		t.say(msgNoAddress)
		return nil
	}
	if err != nil {
		t.say(msgBalanceError)
		return fmt.Errorf("balance query: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Saldos para:* %s\n\n", view.Address)
	b.WriteString("👤 *Tu wallet*\n")
	fmt.Fprintf(&b, "• ETH: %s\n• HNL: %s\n\n", formatNumber(view.Personal.Native), formatNumber(view.Personal.Local))
	b.WriteString("👥 *Total comunitario (tus wallets compartidas)*\n")
	fmt.Fprintf(&b, "• ETH: %s\n• HNL: %s\n", formatNumber(view.Community.Native), formatNumber(view.Community.Local))
	if n := len(view.WalletsFailed); n > 0 {
		fmt.Fprintf(&b, "⚠️ %d de %d wallets no respondieron y no se incluyen en el total.\n", n, view.WalletsQueried)
	}
	b.WriteString("\nEscribe:\n• \"2\" para crear wallet comunitaria\n• \"3\" para ver tus comunitarias\n• \"adiós\" para salir")
	t.say(b.String())
	return nil
}

func (e *Engine) startCreate(t *turn) {
	if !t.record.HasAddress() {
		t.say(msgNeedAddress)
		return
	}
	t.sess.Set(domain.KeyDraft, domain.Draft{Creator: strings.ToLower(t.record.Address)})
	t.say(msgCreateStart)
	t.sess.MoveTo(domain.StepCreateName)
}

func (e *Engine) listWallets(t *turn) {
	var list []string
	if t.record != nil {
		list = t.record.Wallets
	}
	if len(list) == 0 {
		t.say(msgNoWallets)
		return
	}
	t.sess.Set(domain.KeyWalletList, append([]string(nil), list...))

	var b strings.Builder
	b.WriteString("Estas son tus wallets comunitarias:\n")
	for i, w := range list {
		fmt.Fprintf(&b, "%d. %s\n", i+1, w)
	}
	b.WriteString("\nEnvía el número de la wallet que quieres consultar.")
	t.say(b.String())
	t.sess.MoveTo(domain.StepSelectWallet)
}

func (e *Engine) selectWallet(ctx context.Context, t *turn) error {
	list := walletListOf(t.sess)
	idx, err := strconv.Atoi(t.text)
	if err != nil || idx < 1 || idx > len(list) {
		t.say(msgBadSelection)
		return nil
	}
	selected := list[idx-1]
	t.sess.Set(domain.KeySelectedWallet, selected)
	t.sayf("Has seleccionado:\n%s\n\nOpciones:\na) Dashboard resumido\nb) Aportes por persona\nc) Propuestas + últimas tx\n\nEscribe a, b o c.", selected)
	t.sess.MoveTo(domain.StepWalletSubmenu)
	return nil
}

func (e *Engine) walletSubmenu(ctx context.Context, t *turn) error {
	w := t.sess.GetString(domain.KeySelectedWallet)
	if w == "" {
		t.say(msgLostSelection)
		t.sess.MoveTo(domain.StepAwaitingMenu)
		return nil
	}

	switch t.text {
	case "a":
		e.showDashboard(ctx, t, w)
	case "b":
		e.showContributions(ctx, t, w)
	case "c":
		return e.showHistory(ctx, t, w)
	case "menu":
		t.sess.Delete(domain.KeySelectedWallet)
		t.sess.Delete(domain.KeyWalletList)
		t.say(msgBackToMenu)
		t.sess.MoveTo(domain.StepAwaitingMenu)
	default:
		t.say(msgSubmenuOptions)
	}
	return nil
}

func (e *Engine) showDashboard(ctx context.Context, t *turn, w string) {
	d := e.finance.Dashboard(ctx, w)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Dashboard* (%s)\n\n", w)
	if d.Balance.Ok() {
		fmt.Fprintf(&b, "💰 Saldo: %s\n", amountLine(d.Balance.Value))
	} else {
		fmt.Fprintf(&b, "💰 Saldo: %s\n", sectionNote(d.Balance.Status))
	}
	if d.Members.Ok() {
		fmt.Fprintf(&b, "👥 Miembros: %d\n", len(d.Members.Value))
	} else {
		fmt.Fprintf(&b, "👥 Miembros: %s\n", sectionNote(d.Members.Status))
	}
	if d.Proposals.Ok() {
		p := d.Proposals.Value
		fmt.Fprintf(&b, "🗳️ Propuestas: total %d • pend %d • ejec %d • exp %d", p.Total, p.Pending, p.Executed, p.Expired)
		if p.Unknown > 0 {
			fmt.Fprintf(&b, " • desconocidas %d", p.Unknown)
		}
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "🗳️ Propuestas: %s\n", sectionNote(d.Proposals.Status))
	}

	if d.TopContributors.Ok() && len(d.TopContributors.Value) > 0 {
		b.WriteString("\n🏅 Top aportes\n")
		for i, c := range d.TopContributors.Value {
			fmt.Fprintf(&b, "#%d %s • %s\n", i+1, shorten(c.Address), amountLine(c.Total))
		}
	}
	if d.Transactions.Ok() && len(d.Transactions.Value) > 0 {
		b.WriteString("\n🔁 Últimas tx\n")
		writeTransactions(&b, d.Transactions.Value)
	}

	b.WriteString("\nb) Ver aportes • c) Ver propuestas • \"menu\" para volver")
	t.say(b.String())
}

func (e *Engine) showContributions(ctx context.Context, t *turn, w string) {
	res := e.finance.Contributions(ctx, w)
	switch res.Status {
	case finance.StatusUnsupported:
		t.say(msgUnsupported)
		return
	case finance.StatusFailed:
		t.say(msgAportesError)
		return
	}
	if len(res.Value) == 0 {
		t.say(msgNoAportes)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏅 *Top aportes* (%s)\n\n", w)
	for i, c := range res.Value {
		if i == 10 {
			break
		}
		fmt.Fprintf(&b, "#%d %s • %s\n", i+1, shorten(c.Address), amountLine(c.Total))
	}
	b.WriteString("\nc) Ver propuestas • \"menu\" volver")
	t.say(b.String())
}

// historyShown bounds the proposals listed in chat, newest first.
const historyShown = 5

func (e *Engine) showHistory(ctx context.Context, t *turn, w string) error {
	h, err := e.finance.ProposalHistory(ctx, w)
	if err != nil {
		t.say(msgHistoryError)
		return fmt.Errorf("proposal history: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📑 *Propuestas* (%s)\n", w)
	if len(h.Proposals) == 0 {
		b.WriteString("—\n")
	}
	shown := 0
	for i := len(h.Proposals) - 1; i >= 0 && shown < historyShown; i-- {
		p := h.Proposals[i]
		fmt.Fprintf(&b, "#%d • %s • %s ETH • conf %d • %s\n",
			p.ID, proposalKind(p.Type), formatNumber(p.Amount.Native), p.Confirmations, proposalState(p.Status))
		shown++
	}
	if h.Total > shown {
		fmt.Fprintf(&b, "(mostrando %d de %d)\n", shown, h.Total)
	}

	b.WriteString("\n🔁 *Últimas tx*\n")
	switch {
	case !h.Transactions.Ok():
		b.WriteString(sectionNote(h.Transactions.Status) + "\n")
	case len(h.Transactions.Value) == 0:
		b.WriteString("—\n")
	default:
		writeTransactions(&b, h.Transactions.Value)
	}
	b.WriteString("\n\"menu\" para volver")
	t.say(b.String())
	return nil
}

func writeTransactions(b *strings.Builder, txs []domain.TxView) {
	for _, tx := range txs {
		fmt.Fprintf(b, "%s • %s ETH • %s • %s\n",
			strings.ToUpper(string(tx.Direction)), formatNumber(tx.Amount.Native), tx.Age, shorten(tx.Hash))
	}
}
