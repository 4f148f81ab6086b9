package domain

import "time"

// Record is an identity record held by the external record store.
// Phone, Email and Address are each globally unique.
type Record struct {
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Wallets   []string  `json:"wallets"`
	CreatedAt time.Time `json:"created_at"`
}

// HasAddress reports whether the record carries a primary address.
func (r *Record) HasAddress() bool {
	return r != nil && r.Address != ""
}

// Draft is a community wallet being assembled over several turns.
type Draft struct {
	Creator     string   `mapstructure:"creator" json:"creator"`
	Name        string   `mapstructure:"name" json:"name"`
	Description string   `mapstructure:"description" json:"description"`
	Members     []string `mapstructure:"members" json:"members"`
}

// Message is one inbound text from the transport gateway.
type Message struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Event is a decoded ledger log entry.
type Event struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Receipt is the outcome of a mined ledger write.
type Receipt struct {
	TxHash string  `json:"tx_hash"`
	Events []Event `json:"events,omitempty"`
}

// Find returns the first event named name.
func (r Receipt) Find(name string) (Event, bool) {
	for _, e := range r.Events {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}
