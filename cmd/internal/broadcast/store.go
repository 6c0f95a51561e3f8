package broadcast

import "sync"

// Store is the authoritative owner of one ordered collection.
//
// Items are addressed by position. Update and Delete target whatever item occupies the
// index at the time of the call; there is no staleness check.
type Store[T any] struct {
	clone func(T) T

	// pub serializes mutation + fan-out so publications never interleave.
	pub sync.Mutex

	mu    sync.RWMutex
	items []T

	subs fanout[[]T]
}

// New constructs a Store seeded with copies of initial. A nil clone copies items by value,
// which is only correct for item types without reference fields.
func New[T any](clone func(T) T, initial []T, opts ...Option) *Store[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	s := &Store[T]{
		clone: clone,
		subs:  fanout[[]T]{opts: buildOptions(opts)},
	}
	s.items = s.copyOf(initial)
	return s
}

// Name returns the label set with WithName.
func (s *Store[T]) Name() string { return s.subs.opts.name }

// Get returns a copy of the current sequence. It never returns nil.
func (s *Store[T]) Get() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(s.items)
}

// At returns a copy of the item at index i.
func (s *Store[T]) At(i int) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if i < 0 || i >= len(s.items) {
		return zero, ErrIndexOutOfRange
	}
	return s.clone(s.items[i]), nil
}

// Len returns the current number of items.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subscribers returns the number of attached observers.
func (s *Store[T]) Subscribers() int { return s.subs.count() }

// Subscribe attaches fn. It receives only snapshots published after this call returns.
func (s *Store[T]) Subscribe(fn func([]T)) *Subscription {
	if fn == nil {
		return &Subscription{}
	}
	return s.subs.add(fn)
}

// Set replaces the whole sequence atomically.
func (s *Store[T]) Set(items []T) {
	next := s.copyOf(items)
	_ = s.mutate(func([]T) ([]T, error) { return next, nil })
}

// Add appends one item.
func (s *Store[T]) Add(item T) {
	v := s.clone(item)
	_ = s.mutate(func(cur []T) ([]T, error) { return append(cur, v), nil })
}

// AddMany appends items in order with a single publication.
func (s *Store[T]) AddMany(items ...T) {
	if len(items) == 0 {
		return
	}
	vs := s.copyOf(items)
	_ = s.mutate(func(cur []T) ([]T, error) { return append(cur, vs...), nil })
}

// Update replaces the item at index i.
func (s *Store[T]) Update(i int, item T) error {
	v := s.clone(item)
	return s.mutate(func(cur []T) ([]T, error) {
		if i < 0 || i >= len(cur) {
			return nil, ErrIndexOutOfRange
		}
		cur[i] = v
		return cur, nil
	})
}

// Delete removes the item at index i.
func (s *Store[T]) Delete(i int) error {
	return s.mutate(func(cur []T) ([]T, error) {
		if i < 0 || i >= len(cur) {
			return nil, ErrIndexOutOfRange
		}
		return append(cur[:i], cur[i+1:]...), nil
	})
}

func (s *Store[T]) mutate(apply func([]T) ([]T, error)) error {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	next, err := apply(s.items)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = next

	subs := s.subs.list()
	snaps := make([][]T, len(subs))
	for i := range subs {
		snaps[i] = s.copyOf(s.items)
	}
	s.mu.Unlock()

	for i, sub := range subs {
		sub.fn(snaps[i])
	}
	s.subs.published(len(subs))
	return nil
}

func (s *Store[T]) copyOf(in []T) []T {
	out := make([]T, len(in))
	for i := range in {
		out[i] = s.clone(in[i])
	}
	return out
}
