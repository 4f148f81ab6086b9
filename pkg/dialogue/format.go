package dialogue

import (
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/finance"
)

// formatNumber renders n with comma thousands separators and at most 6 decimals.
func formatNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	s := strconv.FormatFloat(math.Round(n*1e6)/1e6, 'f', -1, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := sign + b.String()
	if hasFrac {
		out += "." + frac
	}
	if out == "-0" {
		return "0"
	}
	return out
}

// shorten keeps the first 10 characters of an address or hash.
func shorten(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:10] + "…"
}

func amountLine(a domain.Amount) string {
	return formatNumber(a.Native) + " ETH (" + formatNumber(a.Local) + " HNL)"
}

func proposalKind(t domain.ProposalType) string {
	if t == domain.ProposalExpense {
		return "GASTO"
	}
	return "MIEMBRO"
}

func proposalState(s domain.ProposalStatus) string {
	switch s {
	case domain.ProposalPending:
		return "Pendiente"
	case domain.ProposalExecuted:
		return "Ejecutada"
	default:
		return "Expirada"
	}
}

// sectionNote explains a degraded aggregation section.
func sectionNote(status finance.Status) string {
	if status == finance.StatusUnsupported {
		return "no habilitado en el nodo"
	}
	return msgSectionFailed
}
