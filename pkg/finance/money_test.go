package finance

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return n
}

func TestToLocal_RoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 80000.0, ToLocal(wei("1000000000000000000"), 80000))
	assert.Equal(t, 0.08, ToLocal(wei("1000000000000"), 80000))
	// 0.0000001234 * 80000 = 0.009872 -> 0.01
	assert.Equal(t, 0.01, ToLocal(wei("123400000000"), 80000))
	assert.Equal(t, 0.0, ToLocal(nil, 80000))
	assert.Equal(t, 0.0, ToLocal(wei("5"), 0))
}

func TestToNative(t *testing.T) {
	assert.Equal(t, 1.5, ToNative(wei("1500000000000000000")))
	assert.Equal(t, 0.0, ToNative(nil))
}

func TestConversion_RoundTripWithinTolerance(t *testing.T) {
	amounts := []string{
		"0", "1", "999999999", "1000000000000000000", "1234567890123456789",
		"50000000000000000000000", "314159265358979323",
	}
	rates := []float64{80000, 1, 0.37, 65432.1}
	for _, a := range amounts {
		for _, rate := range rates {
			local := ToLocal(wei(a), rate)
			back, err := LocalToWei(local, rate)
			require.NoError(t, err)
			assert.InDelta(t, local, ToLocal(back, rate), 0.01, "amount %s rate %v", a, rate)
		}
	}
}

func TestLocalToWei_RejectsBadRate(t *testing.T) {
	_, err := LocalToWei(10, 0)
	assert.Error(t, err)
}

func TestNativeToWei(t *testing.T) {
	n, err := NativeToWei("0.5")
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", n.String())

	_, err = NativeToWei("abc")
	assert.Error(t, err)
}

func TestNewAmount(t *testing.T) {
	a := NewAmount(wei("2500000000000000000"), 100)
	assert.Equal(t, "2500000000000000000", a.Wei)
	assert.Equal(t, 2.5, a.Native)
	assert.Equal(t, 250.0, a.Local)

	assert.Equal(t, "0", NewAmount(nil, 100).Wei)
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "hace 0 segundos"},
		{1 * time.Second, "hace 1 segundo"},
		{59 * time.Second, "hace 59 segundos"},
		{61 * time.Second, "hace 1 minuto"},
		{45 * time.Minute, "hace 45 minutos"},
		{90 * time.Minute, "hace 1 hora"},
		{23 * time.Hour, "hace 23 horas"},
		{25 * time.Hour, "hace 1 día"},
		{72 * time.Hour, "hace 3 días"},
		{-time.Minute, "hace 0 segundos"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimeAgo(now, now.Add(-tt.ago)), "ago %v", tt.ago)
	}
}
