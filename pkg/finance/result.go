package finance

import (
	"errors"

	"github.com/aretw0/coperacha/pkg/domain"
)

// Status is the outcome of one aggregation sub-query.
type Status string

const (
	StatusOK          Status = "ok"
	StatusFailed      Status = "failed"
	StatusUnsupported Status = "unsupported"
)

// Result carries the value of a best-effort sub-query. Value holds the zero value
// of T unless Status is StatusOK.
type Result[T any] struct {
	Status Status `json:"status"`
	Value  T      `json:"value"`
	Err    error  `json:"-"`
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Status: StatusOK, Value: v}
}

// Settle classifies err: nil is ok, domain.ErrUnsupported is unsupported and
// anything else failed.
func Settle[T any](v T, err error) Result[T] {
	switch {
	case err == nil:
		return OK(v)
	case errors.Is(err, domain.ErrUnsupported):
		var zero T
		return Result[T]{Status: StatusUnsupported, Value: zero, Err: err}
	default:
		var zero T
		return Result[T]{Status: StatusFailed, Value: zero, Err: err}
	}
}

// Ok reports whether the sub-query succeeded.
func (r Result[T]) Ok() bool {
	return r.Status == StatusOK
}
