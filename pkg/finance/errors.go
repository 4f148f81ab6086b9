package finance

import "errors"

// ErrNoRateStore is returned by Rates.Set when no store is configured.
var ErrNoRateStore = errors.New("no rate store configured")
