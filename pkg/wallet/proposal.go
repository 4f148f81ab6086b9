package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/aretw0/coperacha/internal/validator"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
)

// ProposalDraft asks the members of a community wallet to approve an expense
// or a new member.
type ProposalDraft struct {
	Wallet   string
	Proposer string
	// Target receives the expense, or joins the wallet.
	Target      string
	Amount      *big.Int
	Description string
	Type        domain.ProposalType
}

func validateProposal(d ProposalDraft) error {
	var invalid []string
	for _, addr := range []string{d.Wallet, d.Proposer, d.Target} {
		if !validator.IsValidAddress(validator.NormalizeAddress(addr)) {
			invalid = append(invalid, addr)
		}
	}
	if len(invalid) > 0 {
		return &domain.ValidationError{Field: "address", Invalid: invalid}
	}
	if strings.TrimSpace(d.Description) == "" {
		return &domain.ValidationError{Field: "description"}
	}
	switch d.Type {
	case domain.ProposalExpense:
		if d.Amount == nil || d.Amount.Sign() <= 0 {
			return &domain.ValidationError{Field: "amount"}
		}
	case domain.ProposalMembershipChange:
	default:
		return &domain.ValidationError{Field: "type", Invalid: []string{d.Type.String()}}
	}
	return nil
}

// Propose creates the proposal on the wallet contract and returns the
// transaction hash. Membership proposals always carry a zero amount.
func (c *Creator) Propose(ctx context.Context, d ProposalDraft) (string, error) {
	if err := validateProposal(d); err != nil {
		return "", err
	}
	amount := new(big.Int)
	if d.Type == domain.ProposalExpense {
		amount.Set(d.Amount)
	}
	wallet := validator.NormalizeAddress(d.Wallet)

	receipt, err := c.ledger.Write(ctx, wallet, ports.MethodCreateProposal,
		validator.NormalizeAddress(d.Target),
		validator.NormalizeAddress(d.Proposer),
		amount,
		strings.TrimSpace(d.Description),
		d.Type == domain.ProposalExpense,
	)
	if err != nil {
		c.observe(OutcomeFailed)
		c.logger.Error("proposal creation failed", "wallet", wallet, "type", d.Type.String(), "err", err)
		return "", &domain.WriteError{Op: "create proposal", Err: err}
	}
	c.observe(OutcomeOK)
	c.logger.Info("proposal created", "wallet", wallet, "type", d.Type.String(), "tx", receipt.TxHash)
	return receipt.TxHash, nil
}

// Confirm records member's vote on proposal id. A vote on an expired
// proposal fails with domain.ErrProposalExpired.
func (c *Creator) Confirm(ctx context.Context, wallet string, id int, member string) (string, error) {
	wallet = validator.NormalizeAddress(wallet)
	member = validator.NormalizeAddress(member)
	var invalid []string
	for _, addr := range []string{wallet, member} {
		if !validator.IsValidAddress(addr) {
			invalid = append(invalid, addr)
		}
	}
	if len(invalid) > 0 {
		return "", &domain.ValidationError{Field: "address", Invalid: invalid}
	}
	if id < 0 {
		return "", &domain.ValidationError{Field: "proposal id", Invalid: []string{fmt.Sprint(id)}}
	}

	receipt, err := c.ledger.Write(ctx, wallet, ports.MethodConfirmProposal, id, member)
	if err != nil {
		c.observe(OutcomeFailed)
		if isExpired(err) {
			err = fmt.Errorf("%w: %w", domain.ErrProposalExpired, err)
		}
		c.logger.Warn("proposal confirmation failed", "wallet", wallet, "id", id, "err", err)
		return "", &domain.WriteError{Op: "confirm proposal", Err: err}
	}
	c.observe(OutcomeOK)
	return receipt.TxHash, nil
}

// isExpired recognises the wallet contract's revert reason for a vote past
// the deadline.
func isExpired(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "propuesta ha expirado")
}

// Wallets lists every community wallet the factory has created.
func (c *Creator) Wallets(ctx context.Context) ([]string, error) {
	out, err := c.ledger.Read(ctx, c.factory, ports.MethodAllWallets)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("list wallets: %s returned no values", ports.MethodAllWallets)
	}
	wallets, ok := out[0].([]string)
	if !ok {
		return nil, fmt.Errorf("list wallets: unexpected %T", out[0])
	}
	return wallets, nil
}
