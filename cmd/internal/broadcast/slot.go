package broadcast

import "sync"

type slotValue[T any] struct {
	v  T
	ok bool
}

// Slot is the single-slot specialization of Store: it holds one value or nothing.
type Slot[T any] struct {
	clone func(T) T

	pub sync.Mutex

	mu  sync.RWMutex
	cur slotValue[T]

	subs fanout[slotValue[T]]
}

// NewSlot constructs an empty Slot. A nil clone copies by value.
func NewSlot[T any](clone func(T) T, opts ...Option) *Slot[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Slot[T]{
		clone: clone,
		subs:  fanout[slotValue[T]]{opts: buildOptions(opts)},
	}
}

// Load returns a copy of the current value and whether one is present.
func (s *Slot[T]) Load() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cur.ok {
		var zero T
		return zero, false
	}
	return s.clone(s.cur.v), true
}

// Subscribe attaches fn; ok is false when the published state is "nothing".
func (s *Slot[T]) Subscribe(fn func(v T, ok bool)) *Subscription {
	if fn == nil {
		return &Subscription{}
	}
	return s.subs.add(func(sv slotValue[T]) { fn(sv.v, sv.ok) })
}

// Subscribers returns the number of attached observers.
func (s *Slot[T]) Subscribers() int { return s.subs.count() }

// Store replaces the value and publishes it.
func (s *Slot[T]) Store(v T) {
	s.publish(slotValue[T]{v: s.clone(v), ok: true})
}

// Clear empties the slot and publishes "nothing".
func (s *Slot[T]) Clear() {
	s.publish(slotValue[T]{})
}

func (s *Slot[T]) publish(next slotValue[T]) {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	s.cur = next
	subs := s.subs.list()
	snaps := make([]slotValue[T], len(subs))
	for i := range subs {
		snaps[i] = next
		if next.ok {
			snaps[i].v = s.clone(next.v)
		}
	}
	s.mu.Unlock()

	for i, sub := range subs {
		sub.fn(snaps[i])
	}
	s.subs.published(len(subs))
}
