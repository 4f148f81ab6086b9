package domain

import "time"

// Step is the position of a conversation in the dialogue state machine.
type Step string

const (
	StepIdle            Step = "IDLE"
	StepAskRegistration Step = "ASK_REGISTRATION"
	StepAwaitingName    Step = "AWAITING_NAME"
	StepAwaitingEmail   Step = "AWAITING_EMAIL"
	StepConfirmEmail    Step = "CONFIRM_EMAIL"
	StepAskWalletOption Step = "ASK_WALLET_OPTION"
	StepAwaitingWallet  Step = "AWAITING_WALLET"
	StepConfirmWallet   Step = "CONFIRM_WALLET"
	StepAwaitingMenu    Step = "AWAITING_MENU_OPTION"
	StepCreateName      Step = "CREATE_NAME"
	StepCreateDesc      Step = "CREATE_DESC"
	StepCreateMembers   Step = "CREATE_MEMBERS"
	StepCreateConfirm   Step = "CREATE_CONFIRM"
	StepSelectWallet    Step = "SELECT_WALLET"
	StepWalletSubmenu   Step = "WALLET_SUBMENU"
)

// Steps lists every Step. Tests use it to check the transition table is exhaustive.
var Steps = []Step{
	StepIdle,
	StepAskRegistration,
	StepAwaitingName,
	StepAwaitingEmail,
	StepConfirmEmail,
	StepAskWalletOption,
	StepAwaitingWallet,
	StepConfirmWallet,
	StepAwaitingMenu,
	StepCreateName,
	StepCreateDesc,
	StepCreateMembers,
	StepCreateConfirm,
	StepSelectWallet,
	StepWalletSubmenu,
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	for _, known := range Steps {
		if s == known {
			return true
		}
	}
	return false
}

// Session is the conversation snapshot of one identity.
type Session struct {
	Identity string `json:"identity"`
	Step     Step   `json:"step"`

	// TempData holds workflow-scoped values (see Key* constants).
	// It is empty whenever Step is StepIdle.
	TempData map[string]any `json:"temp_data"`

	UpdatedAt time.Time `json:"updated_at"`

	closed bool
}

// NewSession creates an idle session for identity.
func NewSession(identity string) *Session {
	return &Session{
		Identity: identity,
		Step:     StepIdle,
		TempData: make(map[string]any),
	}
}

// Reset returns the session to StepIdle and drops all workflow data.
func (s *Session) Reset() {
	s.Step = StepIdle
	s.TempData = make(map[string]any)
}

// Close resets the session and marks it for removal once the current turn ends.
func (s *Session) Close() {
	s.Reset()
	s.closed = true
}

// Closed reports whether Close was called during this turn.
func (s *Session) Closed() bool {
	return s.closed
}

// MoveTo sets the next step. Moving to StepIdle clears TempData.
func (s *Session) MoveTo(step Step) {
	if step == StepIdle {
		s.Reset()
		return
	}
	s.Step = step
}

// Set stores a workflow value.
func (s *Session) Set(key string, value any) {
	if s.TempData == nil {
		s.TempData = make(map[string]any)
	}
	s.TempData[key] = value
}

// Get returns a workflow value.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.TempData[key]
	return v, ok
}

// GetString returns a string workflow value or "".
func (s *Session) GetString(key string) string {
	v, _ := s.TempData[key].(string)
	return v
}

// Delete drops a workflow value.
func (s *Session) Delete(key string) {
	delete(s.TempData, key)
}

// Snapshot returns a copy safe to hand to another goroutine.
func (s *Session) Snapshot() *Session {
	cp := *s
	cp.TempData = make(map[string]any, len(s.TempData))
	for k, v := range s.TempData {
		cp.TempData[k] = v
	}
	return &cp
}
