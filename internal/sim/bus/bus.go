// Package bus fans frames out from the animation driver to independent
// presenters.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalsfoundry/impact-simulator/internal/logging"
)

// Subscriber receives every published frame. HandleFrame runs on the
// publishing goroutine and must not block.
type Subscriber interface {
	HandleFrame(ctx context.Context, f Frame)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, f Frame)

// HandleFrame calls fn.
func (fn SubscriberFunc) HandleFrame(ctx context.Context, f Frame) { fn(ctx, f) }

type subscription struct {
	id   uint64
	name string
	sub  Subscriber
}

// Bus delivers frames synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	log    logging.Logger
}

// New constructs an empty bus.
func New(log logging.Logger) *Bus {
	if log == nil {
		log = logging.Noop()
	}
	return &Bus{log: log}
}

// Subscribe registers s under name and returns a function that removes it.
func (b *Bus) Subscribe(name string, s Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, sub: s})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Len reports the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish hands f to every subscriber. A panicking subscriber is logged and
// skipped; the remaining subscribers still receive the frame.
func (b *Bus) Publish(ctx context.Context, f Frame) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, f)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, f Frame) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(ctx, "frame subscriber panicked",
				logging.String("subscriber", s.name),
				logging.Uint64("seq", f.Seq),
				logging.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	s.sub.HandleFrame(ctx, f)
}
