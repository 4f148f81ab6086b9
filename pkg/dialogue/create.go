package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/coperacha/internal/validator"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/wallet"
)

// draft loads the in-progress draft. A session without one goes back to the menu.
func (e *Engine) draft(t *turn) (domain.Draft, bool) {
	d, ok := draftOf(t.sess)
	if !ok {
		t.sess.Delete(domain.KeyDraft)
		t.say(msgDraftLost)
		t.sess.MoveTo(domain.StepAwaitingMenu)
	}
	return d, ok
}

func (e *Engine) createName(ctx context.Context, t *turn) error {
	d, ok := e.draft(t)
	if !ok {
		return nil
	}
	if t.raw == "" {
		t.say(msgBadName)
		return nil
	}
	d.Name = t.raw
	t.sess.Set(domain.KeyDraft, d)
	t.say(msgAskDesc)
	t.sess.MoveTo(domain.StepCreateDesc)
	return nil
}

func (e *Engine) createDesc(ctx context.Context, t *turn) error {
	d, ok := e.draft(t)
	if !ok {
		return nil
	}
	switch {
	case t.text == "skip":
		d.Description = ""
	case t.raw == "":
		t.say(msgBadDesc)
		return nil
	default:
		d.Description = t.raw
	}
	t.sess.Set(domain.KeyDraft, d)
	t.say(msgAskMembers)
	t.sess.MoveTo(domain.StepCreateMembers)
	return nil
}

func (e *Engine) createMembers(ctx context.Context, t *turn) error {
	d, ok := e.draft(t)
	if !ok {
		return nil
	}
	valid, invalid := validator.ParseAddressList(t.raw)
	if len(invalid) > 0 {
		t.sayf(msgBadMembers, strings.Join(invalid, "\n"))
		return nil
	}
	if len(valid) == 0 {
		t.say(msgNoMembers)
		return nil
	}
	d.Members = valid
	d.Members = wallet.Members(d)
	t.sess.Set(domain.KeyDraft, d)

	desc := d.Description
	if desc == "" {
		desc = "—"
	}
	t.sayf("✅ Revisa la configuración:\n\nNombre: %s\nDescripción: %s\nCreador: %s\nMiembros (%d):\n- %s\n\n¿Confirmas la creación? (sí / no)",
		d.Name, desc, d.Creator, len(d.Members), strings.Join(d.Members, "\n- "))
	t.sess.MoveTo(domain.StepCreateConfirm)
	return nil
}

func (e *Engine) createConfirm(ctx context.Context, t *turn) error {
	switch yesNo(t.text) {
	case answerNo:
		t.sess.Delete(domain.KeyDraft)
		t.say(msgCreateCancel)
		t.sess.MoveTo(domain.StepAwaitingMenu)
		return nil
	case answerOther:
		t.say(msgCreateYesNo)
		return nil
	}

	d, ok := e.draft(t)
	if !ok {
		return nil
	}
	// Success or not, the sub-flow ends here and the user must start over to retry.
	t.sess.Delete(domain.KeyDraft)
	t.sess.MoveTo(domain.StepAwaitingMenu)

	res, err := e.wallets.Create(ctx, d)
	if err != nil {
		t.sayf(msgCreateFailed, err.Error())
		return fmt.Errorf("create wallet: %w", err)
	}

	var b strings.Builder
	b.WriteString("🎉 *Wallet comunitaria creada con éxito*\n")
	fmt.Fprintf(&b, "• Address: %s\n• Tx: %s\n\n", res.Wallet, res.TxHash)
	fmt.Fprintf(&b, "%d miembro(s) quedaron asociados a la wallet.\n", res.Linked)
	if len(res.Unregistered) > 0 {
		fmt.Fprintf(&b, "ℹ️ Sin cuenta registrada: %s\n", strings.Join(res.Unregistered, ", "))
	}
	if len(res.Unlinked) > 0 {
		fmt.Fprintf(&b, "⚠️ No pude asociar a: %s. Avisa al admin para completar el registro.\n", strings.Join(res.Unlinked, ", "))
	}
	b.WriteString("Escribe \"3\" para ver tus comunitarias o \"1\" para ver saldo.")
	t.say(b.String())
	return nil
}
