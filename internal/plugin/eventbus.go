package plugin

import "sync"

// eventBus is the in-process pub/sub bus backing HostAPI.Emit/Subscribe
// (spec §4.3 "Events"). It is shared across every registered plugin so
// plugins can observe each other's events, the same way the teacher's
// internal/calendar expansion step fans a single ICS source out to many
// consumers.
type eventBus struct {
	mu   sync.Mutex
	subs map[string][]*subscription
	seq  int
}

type subscription struct {
	id int
	cb func(payload any)
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[string][]*subscription)}
}

func (b *eventBus) emit(name string, payload any) {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[name]...)
	b.mu.Unlock()

	for _, s := range subs {
		s.cb(payload)
	}
}

func (b *eventBus) subscribe(name string, cb func(payload any)) func() {
	b.mu.Lock()
	b.seq++
	id := b.seq
	sub := &subscription{id: id, cb: cb}
	b.subs[name] = append(b.subs[name], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[name]
		for i, s := range list {
			if s.id == id {
				b.subs[name] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}
