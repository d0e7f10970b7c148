package app

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

const feedBuffer = 8

// Feed is an in-process EventPublisher that fans attempt events out to
// per-quiz subscribers.
type Feed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.AttemptEvent]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[string]map[chan domain.AttemptEvent]struct{})}
}

// Publish never blocks: a subscriber whose buffer is full loses its oldest
// pending event.
func (f *Feed) Publish(_ context.Context, evt domain.AttemptEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[evt.QuizID] {
		select {
		case ch <- evt:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- evt
		}
	}
	return nil
}

// Subscribe returns a channel of events for quizID.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(quizID string) (<-chan domain.AttemptEvent, func()) {
	ch := make(chan domain.AttemptEvent, feedBuffer)

	f.mu.Lock()
	subs, ok := f.subscribers[quizID]
	if !ok {
		subs = make(map[chan domain.AttemptEvent]struct{})
		f.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[quizID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, quizID)
		}
	}
	return ch, cancel
}

// Subscribers reports how many listeners a quiz has.
func (f *Feed) Subscribers(quizID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[quizID])
}
