package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/coperacha/pkg/domain"
)

// Run consumes in until it is closed or ctx is done. Each identity gets its own
// mailbox goroutine; a mailbox idle for longer than the configured window is
// released and recreated on the next message.
func (s *Service) Run(ctx context.Context, in <-chan domain.Message) error {
	var wg sync.WaitGroup
	boxes := make(map[string]chan domain.Message)
	idle := make(chan string)

	defer func() {
		for _, box := range boxes {
			close(box)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case id := <-idle:
			// Only the dispatcher sends to boxes, so an empty box stays empty here.
			if box, ok := boxes[id]; ok && len(box) == 0 {
				delete(boxes, id)
				close(box)
			}

		case msg, ok := <-in:
			if !ok {
				return nil
			}
			msg.From = strings.TrimSpace(msg.From)
			if msg.From == "" {
				s.logger.Warn("message without sender dropped")
				continue
			}
			box, exists := boxes[msg.From]
			if !exists {
				box = make(chan domain.Message, s.mailboxSize)
				boxes[msg.From] = box
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					s.mailbox(ctx, id, box, idle)
				}(msg.From)
			}
			if !s.enqueue(ctx, box, msg, idle, boxes) {
				return ctx.Err()
			}
		}
	}
}

// enqueue blocks until msg fits in box. Idle reports from other mailboxes are
// served meanwhile so their goroutines never wait on a blocked dispatcher.
func (s *Service) enqueue(ctx context.Context, box chan domain.Message, msg domain.Message, idle <-chan string, boxes map[string]chan domain.Message) bool {
	for {
		select {
		case box <- msg:
			return true
		case <-ctx.Done():
			return false
		case id := <-idle:
			if other, ok := boxes[id]; ok && other != box && len(other) == 0 {
				delete(boxes, id)
				close(other)
			}
		}
	}
}

func (s *Service) mailbox(ctx context.Context, id string, box <-chan domain.Message, idle chan<- string) {
	timer := time.NewTimer(s.idleAfter)
	defer timer.Stop()

	handle := func(msg domain.Message) {
		switch err := s.Handle(ctx, msg); {
		case err == nil, errors.Is(err, ErrThrottled):
		case errors.Is(err, ErrUnavailable):
			s.logger.Error("message dropped", "identity", id, "err", err)
		default:
			s.logger.Debug("message handled with error", "identity", id, "err", err)
		}
		timer.Reset(s.idleAfter)
	}

	for {
		select {
		case msg, ok := <-box:
			if !ok {
				return
			}
			handle(msg)
		case <-timer.C:
			select {
			case idle <- id:
				timer.Reset(s.idleAfter)
			case msg, ok := <-box:
				if !ok {
					return
				}
				handle(msg)
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
