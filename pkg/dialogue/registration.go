package dialogue

import (
	"context"
	"errors"

	"github.com/aretw0/coperacha/internal/validator"
	"github.com/aretw0/coperacha/pkg/domain"
)

func (e *Engine) askRegistration(ctx context.Context, t *turn) error {
	switch yesNo(t.text) {
	case answerYes:
		t.say(msgAskName)
		t.sess.MoveTo(domain.StepAwaitingName)
	case answerNo:
		t.say(msgLater)
		t.sess.MoveTo(domain.StepIdle)
	default:
		t.say(msgYesNo)
	}
	return nil
}

func (e *Engine) awaitingName(ctx context.Context, t *turn) error {
	if t.raw == "" {
		t.say(msgBadName)
		return nil
	}
	t.sess.Set(domain.KeyName, t.raw)
	t.say(msgAskEmail)
	t.sess.MoveTo(domain.StepAwaitingEmail)
	return nil
}

func (e *Engine) awaitingEmail(ctx context.Context, t *turn) error {
	if !validator.IsValidEmail(t.raw) {
		t.say(msgBadEmail)
		return nil
	}
	t.sess.Set(domain.KeyEmail, t.text)
	t.sayf(msgConfirmEmail, t.text)
	t.sess.MoveTo(domain.StepConfirmEmail)
	return nil
}

func (e *Engine) confirmEmail(ctx context.Context, t *turn) error {
	switch yesNo(t.text) {
	case answerYes:
		t.say(msgWalletOption)
		t.sess.MoveTo(domain.StepAskWalletOption)
	case answerNo:
		t.sess.Delete(domain.KeyEmail)
		t.say(msgRetryEmail)
		t.sess.MoveTo(domain.StepAwaitingEmail)
	default:
		t.say(msgYesNo)
	}
	return nil
}

func (e *Engine) askWalletOption(ctx context.Context, t *turn) error {
	switch t.text {
	case "1":
		t.say(msgAskAddress)
	case "2":
		t.sayf(msgSignupLink, e.registerURL)
	default:
		t.say(msgOneOrTwo)
		return nil
	}
	t.sess.MoveTo(domain.StepAwaitingWallet)
	return nil
}

func (e *Engine) awaitingWallet(ctx context.Context, t *turn) error {
	if !validator.IsValidAddress(t.raw) {
		t.say(msgBadAddress)
		return nil
	}
	t.sess.Set(domain.KeyAddress, t.raw)
	t.sayf(msgConfirmAddr, t.raw)
	t.sess.MoveTo(domain.StepConfirmWallet)
	return nil
}

func (e *Engine) confirmWallet(ctx context.Context, t *turn) error {
	switch yesNo(t.text) {
	case answerNo:
		t.sess.Delete(domain.KeyAddress)
		t.say(msgRetryAddress)
		t.sess.MoveTo(domain.StepAskWalletOption)
		return nil
	case answerOther:
		t.say(msgYesNo)
		return nil
	}

	rec := domain.Record{
		Phone:     t.sess.Identity,
		Name:      t.sess.GetString(domain.KeyName),
		Email:     t.sess.GetString(domain.KeyEmail),
		Address:   validator.NormalizeAddress(t.sess.GetString(domain.KeyAddress)),
		Wallets:   []string{},
		CreatedAt: e.now().UTC(),
	}
	if err := e.records.Insert(ctx, rec); err != nil {
		if field, ok := duplicateField(err); ok {
			t.sayf(msgDuplicate, field)
		} else {
			t.say(msgRegisterError)
		}
		t.sess.MoveTo(domain.StepIdle)
		e.logger.Error("registration failed", "identity", t.sess.Identity, "err", err)
		return &domain.WriteError{Op: "register identity", Err: err}
	}

	t.sayf(msgRegistered, rec.Name)
	t.say(msgMenu)
	t.sess.Delete(domain.KeyName)
	t.sess.Delete(domain.KeyEmail)
	t.sess.Delete(domain.KeyAddress)
	t.sess.MoveTo(domain.StepAwaitingMenu)
	return nil
}

// duplicateField names the colliding field of a uniqueness violation.
func duplicateField(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrDuplicatePhone):
		return "este número", true
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "el correo", true
	case errors.Is(err, domain.ErrDuplicateAddress):
		return "la dirección de billetera", true
	default:
		return "", false
	}
}
