package dialogue

import "github.com/aretw0/coperacha/pkg/domain"

// Edge is one transition the engine can take between two steps.
type Edge struct {
	From domain.Step
	To   domain.Step
	On   string
}

// Flow groups steps for display.
const (
	FlowStart        = "inicio"
	FlowRegistration = "registro"
	FlowMenu         = "menu"
	FlowCreate       = "crear"
	FlowBrowse       = "consulta"
)

// Edges lists the declared transitions. An exit phrase additionally moves
// any step to IDLE.
var Edges = []Edge{
	{domain.StepIdle, domain.StepAskRegistration, "sin registro"},
	{domain.StepIdle, domain.StepAwaitingMenu, "registrado"},

	{domain.StepAskRegistration, domain.StepAwaitingName, "sí"},
	{domain.StepAskRegistration, domain.StepIdle, "no"},
	{domain.StepAwaitingName, domain.StepAwaitingEmail, "nombre"},
	{domain.StepAwaitingEmail, domain.StepConfirmEmail, "correo válido"},
	{domain.StepConfirmEmail, domain.StepAskWalletOption, "sí"},
	{domain.StepConfirmEmail, domain.StepAwaitingEmail, "no"},
	{domain.StepAskWalletOption, domain.StepAwaitingWallet, "1 o 2"},
	{domain.StepAwaitingWallet, domain.StepConfirmWallet, "dirección válida"},
	{domain.StepConfirmWallet, domain.StepAskWalletOption, "no"},
	{domain.StepConfirmWallet, domain.StepAwaitingMenu, "sí"},
	{domain.StepConfirmWallet, domain.StepIdle, "duplicado"},

	{domain.StepAwaitingMenu, domain.StepAskRegistration, "registrar"},
	{domain.StepAwaitingMenu, domain.StepCreateName, "2"},
	{domain.StepAwaitingMenu, domain.StepSelectWallet, "3"},

	{domain.StepCreateName, domain.StepCreateDesc, "nombre"},
	{domain.StepCreateName, domain.StepAwaitingMenu, "sin borrador"},
	{domain.StepCreateDesc, domain.StepCreateMembers, "descripción"},
	{domain.StepCreateDesc, domain.StepAwaitingMenu, "sin borrador"},
	{domain.StepCreateMembers, domain.StepCreateConfirm, "miembros"},
	{domain.StepCreateMembers, domain.StepAwaitingMenu, "sin borrador"},
	{domain.StepCreateConfirm, domain.StepAwaitingMenu, "sí o no"},

	{domain.StepSelectWallet, domain.StepWalletSubmenu, "número"},
	{domain.StepWalletSubmenu, domain.StepAwaitingMenu, "menu"},
}

// Declared reports whether from → to is a declared transition or an exit.
func Declared(from, to domain.Step) bool {
	if to == domain.StepIdle {
		return true
	}
	for _, e := range Edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// FlowOf returns the display group of step.
func FlowOf(step domain.Step) string {
	switch step {
	case domain.StepIdle:
		return FlowStart
	case domain.StepAskRegistration, domain.StepAwaitingName, domain.StepAwaitingEmail,
		domain.StepConfirmEmail, domain.StepAskWalletOption, domain.StepAwaitingWallet,
		domain.StepConfirmWallet:
		return FlowRegistration
	case domain.StepCreateName, domain.StepCreateDesc, domain.StepCreateMembers, domain.StepCreateConfirm:
		return FlowCreate
	case domain.StepSelectWallet, domain.StepWalletSubmenu:
		return FlowBrowse
	default:
		return FlowMenu
	}
}

// FreeText reports whether step expects free-form input rather than a choice.
func FreeText(step domain.Step) bool {
	switch step {
	case domain.StepAwaitingName, domain.StepAwaitingEmail, domain.StepAwaitingWallet,
		domain.StepCreateName, domain.StepCreateDesc, domain.StepCreateMembers:
		return true
	}
	return false
}
