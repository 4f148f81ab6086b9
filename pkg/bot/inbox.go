package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/coperacha/pkg/domain"
)

// DefaultInboxSize is the queue length used when NewInbox gets no size.
const DefaultInboxSize = 256

var (
	// ErrQueueFull is returned by Submit when every slot is taken.
	ErrQueueFull = errors.New("inbound queue full")
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("inbound queue closed")
)

// Inbox is the bounded queue feeding Run. Submit never blocks, so a caller
// holding a network request can answer at once.
type Inbox struct {
	mu     sync.RWMutex
	ch     chan domain.Message
	closed bool
}

// NewInbox creates an Inbox holding up to size messages.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{ch: make(chan domain.Message, size)}
}

// Submit queues msg. The message is processed later under a context that
// does not depend on ctx.
func (q *Inbox) Submit(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Messages is the channel Run consumes.
func (q *Inbox) Messages() <-chan domain.Message {
	return q.ch
}

// Len reports how many messages wait to be dispatched.
func (q *Inbox) Len() int {
	return len(q.ch)
}

// Close stops accepting messages. Queued ones are still delivered, after
// which Run returns.
func (q *Inbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
