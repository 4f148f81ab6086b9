package domain

import "time"

// Direction tells whether a transaction entered or left a wallet.
type Direction string

const (
	DirectionIn  Direction = "ingreso"
	DirectionOut Direction = "salida"
)

// Amount is a ledger quantity with its display conversions.
// Wei is the smallest unit as a decimal string; Native and Local are rounded for display.
type Amount struct {
	Wei    string  `json:"wei"`
	Native float64 `json:"eth"`
	Local  float64 `json:"hnl"`
}

// BalanceView answers the personal + community balance query.
type BalanceView struct {
	Address        string   `json:"address"`
	Personal       Amount   `json:"personal"`
	Community      Amount   `json:"community"`
	WalletsQueried int      `json:"wallets_queried"`
	WalletsFailed  []string `json:"wallets_failed,omitempty"`
}

// Contribution is the total a single source address sent to a wallet.
type Contribution struct {
	Address string `json:"address"`
	Total   Amount `json:"total"`
}

// TxView is a display-ready transaction.
type TxView struct {
	Hash      string    `json:"hash"`
	Direction Direction `json:"direction"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    Amount    `json:"amount"`
	Age       string    `json:"age"`
	Timestamp time.Time `json:"timestamp"`
}

// ProposalView is a display-ready proposal.
type ProposalView struct {
	ID            int            `json:"id"`
	Type          ProposalType   `json:"type"`
	Status        ProposalStatus `json:"status"`
	Recipient     string         `json:"recipient"`
	Description   string         `json:"description"`
	Amount        Amount         `json:"amount"`
	Confirmations int            `json:"confirmations"`
	Deadline      time.Time      `json:"deadline"`
}

// ProposalCounts groups proposals by status. Unknown counts statuses outside
// the contract's encoding.
type ProposalCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Executed int `json:"executed"`
	Expired  int `json:"expired"`
	Unknown  int `json:"unknown,omitempty"`
}

// Member is a record-store identity that belongs to a wallet.
type Member struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}
