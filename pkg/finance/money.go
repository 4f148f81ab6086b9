package finance

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
)

// WeiPerNative is the number of smallest units in one native coin.
var WeiPerNative = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ToNative converts a smallest-unit amount to native coins.
func ToNative(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(wei, WeiPerNative).Float64()
	return f
}

// ToLocal converts a smallest-unit amount to local currency at rate, rounded to 2 decimals.
func ToLocal(wei *big.Int, rate float64) float64 {
	if wei == nil {
		return 0
	}
	r := new(big.Rat).SetFrac(wei, WeiPerNative)
	rr := new(big.Rat)
	if rr.SetFloat64(rate) == nil {
		return 0
	}
	r.Mul(r, rr)
	f, _ := strconv.ParseFloat(r.FloatString(2), 64)
	return f
}

// LocalToWei converts a local-currency amount back to smallest units at rate.
// The result is truncated towards zero.
func LocalToWei(local, rate float64) (*big.Int, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("exchange rate must be positive, got %v", rate)
	}
	l := new(big.Rat)
	if l.SetFloat64(local) == nil {
		return nil, fmt.Errorf("invalid local amount %v", local)
	}
	r := new(big.Rat).SetFloat64(rate)
	l.Quo(l, r)
	l.Mul(l, new(big.Rat).SetInt(WeiPerNative))
	return new(big.Int).Quo(l.Num(), l.Denom()), nil
}

// NativeToWei converts a decimal native-coin string ("0.5") to smallest units.
func NativeToWei(s string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(WeiPerNative))
	return new(big.Int).Quo(r.Num(), r.Denom()), nil
}

// NewAmount builds the display triple for wei at rate.
func NewAmount(wei *big.Int, rate float64) domain.Amount {
	if wei == nil {
		wei = new(big.Int)
	}
	return domain.Amount{
		Wei:    wei.String(),
		Native: ToNative(wei),
		Local:  ToLocal(wei, rate),
	}
}

// TimeAgo renders the time elapsed from ts to now using the largest nonzero unit.
func TimeAgo(now, ts time.Time) string {
	s := int64(now.Sub(ts) / time.Second)
	if s < 0 {
		s = 0
	}
	m := s / 60
	h := m / 60
	d := h / 24
	switch {
	case d > 0:
		return "hace " + plural(d, "día", "días")
	case h > 0:
		return "hace " + plural(h, "hora", "horas")
	case m > 0:
		return "hace " + plural(m, "minuto", "minutos")
	default:
		return "hace " + plural(s, "segundo", "segundos")
	}
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.FormatInt(n, 10) + " " + many
}
