package broadcast

import "sync"

// PublishHook is called after every completed publication with the holder name and the
// number of subscribers that were notified.
type PublishHook func(name string, subscribers int)

// SubscribeHook is called whenever the subscriber count of a holder changes.
type SubscribeHook func(name string, subscribers int)

// Option configures a Store or Slot.
type Option func(*options)

type options struct {
	name      string
	onPublish PublishHook
	onCount   SubscribeHook
}

// WithName labels the holder in hooks and logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithPublishHook installs a hook invoked after each publication.
func WithPublishHook(h PublishHook) Option {
	return func(o *options) { o.onPublish = h }
}

// WithSubscriberHook installs a hook invoked when subscribers attach or detach.
func WithSubscriberHook(h SubscribeHook) Option {
	return func(o *options) { o.onCount = h }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	return o
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe detaches the observer. It is idempotent and safe on a nil handle.
// An observer detached while a publication is in flight may still receive that publication.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

type subscriber[S any] struct {
	id uint64
	fn func(S)
}

// fanout keeps observers in attach order.
type fanout[S any] struct {
	opts options

	mu   sync.Mutex
	next uint64
	subs []subscriber[S]
}

func (f *fanout[S]) add(fn func(S)) *Subscription {
	f.mu.Lock()
	f.next++
	id := f.next
	f.subs = append(f.subs, subscriber[S]{id: id, fn: fn})
	n := len(f.subs)
	f.mu.Unlock()

	f.countChanged(n)

	return &Subscription{cancel: func() { f.remove(id) }}
}

func (f *fanout[S]) remove(id uint64) {
	f.mu.Lock()
	removed := false
	for i, s := range f.subs {
		if s.id == id {
			f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
			removed = true
			break
		}
	}
	n := len(f.subs)
	f.mu.Unlock()

	if removed {
		f.countChanged(n)
	}
}

// list returns the observers attached right now; later subscribers miss the publication in progress.
func (f *fanout[S]) list() []subscriber[S] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]subscriber[S](nil), f.subs...)
}

func (f *fanout[S]) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fanout[S]) countChanged(n int) {
	if f.opts.onCount != nil {
		f.opts.onCount(f.opts.name, n)
	}
}

func (f *fanout[S]) published(n int) {
	if f.opts.onPublish != nil {
		f.opts.onPublish(f.opts.name, n)
	}
}
