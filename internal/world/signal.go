package world

// Subscription is returned by every Subscribe call. Disconnect removes the
// handler; calling it more than once is harmless.
type Subscription struct {
	disconnect func()
}

// Disconnect removes the handler.
func (s *Subscription) Disconnect() {
	if s == nil || s.disconnect == nil {
		return
	}
	s.disconnect()
	s.disconnect = nil
}

type handler[T any] struct {
	id uint64
	fn func(T)
}

// Signal is an ordered list of observers. Like the rest of the world it is
// only touched from the world goroutine.
type Signal[T any] struct {
	next     uint64
	handlers []handler[T]
}

// Subscribe registers fn and returns a handle that removes it.
func (s *Signal[T]) Subscribe(fn func(T)) *Subscription {
	s.next++
	id := s.next
	s.handlers = append(s.handlers, handler[T]{id: id, fn: fn})
	return &Subscription{disconnect: func() { s.remove(id) }}
}

func (s *Signal[T]) remove(id uint64) {
	for i, h := range s.handlers {
		if h.id == id {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return
		}
	}
}

// Emit calls every handler in subscription order. Handlers added or removed
// during Emit take effect on the next call.
func (s *Signal[T]) Emit(v T) {
	if len(s.handlers) == 0 {
		return
	}
	snapshot := append([]handler[T](nil), s.handlers...)
	for _, h := range snapshot {
		h.fn(v)
	}
}

// Len returns the number of handlers.
func (s *Signal[T]) Len() int {
	return len(s.handlers)
}

// Clear removes every handler.
func (s *Signal[T]) Clear() {
	s.handlers = nil
}
