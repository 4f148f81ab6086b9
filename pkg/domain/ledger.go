package domain

import (
	"math/big"
	"time"
)

// ProposalType is the kind of action a proposal performs.
// The numeric encoding mirrors the wallet contract's uint8 field.
type ProposalType uint8

const (
	ProposalExpense          ProposalType = 0
	ProposalMembershipChange ProposalType = 1
)

func (t ProposalType) String() string {
	switch t {
	case ProposalExpense:
		return "expense"
	case ProposalMembershipChange:
		return "membership-change"
	default:
		return "unknown"
	}
}

// ProposalStatus is the lifecycle position of a proposal.
type ProposalStatus uint8

const (
	ProposalPending  ProposalStatus = 0
	ProposalExecuted ProposalStatus = 1
	ProposalExpired  ProposalStatus = 2
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalPending:
		return "pending"
	case ProposalExecuted:
		return "executed"
	case ProposalExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Proposal is a pending or settled action against a community wallet.
type Proposal struct {
	ID            int
	Recipient     string
	Amount        *big.Int
	Description   string
	Deadline      time.Time
	Confirmations int
	Type          ProposalType
	Status        ProposalStatus
}

// Transfer is a native-currency movement reported by the ledger index.
type Transfer struct {
	From  string
	To    string
	Value *big.Int
}

// Transaction is a ledger transaction touching an address.
type Transaction struct {
	Hash      string
	From      string
	To        string
	Value     *big.Int
	Timestamp time.Time
}
