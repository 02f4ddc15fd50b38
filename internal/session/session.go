package session

import (
	"destored/internal/model"
	"github.com/google/uuid"
	"sync"
)

type EventType string

const (
	EventStarted   EventType = "session.started"
	EventRefreshed EventType = "session.refreshed"
	EventEnded     EventType = "session.ended"
)

type Event struct {
	Type   EventType
	Reason string
	// Generation of the session after the change.
	Generation uint64
}

// Holder owns the in-memory session. Every Set and Clear bumps the generation,
// so work started against an older generation can detect it was superseded.
type Holder struct {
	mu      sync.Mutex
	current model.Session
	gen     uint64

	subMu       sync.RWMutex
	subscribers map[string]chan Event
}

func NewHolder() *Holder {
	return &Holder{subscribers: make(map[string]chan Event)}
}

// Snapshot returns a copy of the session and its generation.
func (h *Holder) Snapshot() (model.Session, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return clone(h.current), h.gen
}

// Set replaces the session. persist, if not nil, runs under the lock first;
// when it fails the session is left untouched.
func (h *Holder) Set(s model.Session, persist func() error) (uint64, error) {
	h.mu.Lock()
	if persist != nil {
		if err := persist(); err != nil {
			h.mu.Unlock()
			return 0, err
		}
	}
	h.current = clone(s)
	h.gen++
	gen := h.gen
	h.publish(Event{Type: EventStarted, Generation: gen})
	h.mu.Unlock()

	return gen, nil
}

// Clear empties the session unconditionally. persist runs under the lock and its
// error is returned, but does not prevent the in-memory teardown.
func (h *Holder) Clear(reason string, persist func() error) error {
	h.mu.Lock()
	var err error
	if persist != nil {
		err = persist()
	}
	wasEmpty := h.current.Empty()
	h.current = model.Session{}
	h.gen++
	if !wasEmpty {
		h.publish(Event{Type: EventEnded, Reason: reason, Generation: h.gen})
	}
	h.mu.Unlock()

	return err
}

// ClearIf clears the session only if it is still at generation gen.
func (h *Holder) ClearIf(gen uint64, reason string, persist func() error) (bool, error) {
	h.mu.Lock()
	if h.gen != gen {
		h.mu.Unlock()
		return false, nil
	}
	var err error
	if persist != nil {
		err = persist()
	}
	h.current = model.Session{}
	h.gen++
	h.publish(Event{Type: EventEnded, Reason: reason, Generation: h.gen})
	h.mu.Unlock()

	return true, err
}

// Update applies fn to the session if it is still at generation gen. fn runs under the
// lock, so side effects in it (persisting tokens) cannot interleave with Set or Clear.
// The generation is unchanged by an update.
func (h *Holder) Update(gen uint64, fn func(s *model.Session) error) (bool, error) {
	h.mu.Lock()
	if h.gen != gen || h.current.Empty() {
		h.mu.Unlock()
		return false, nil
	}

	next := clone(h.current)
	if err := fn(&next); err != nil {
		h.mu.Unlock()
		return true, err
	}
	h.current = next
	h.publish(Event{Type: EventRefreshed, Generation: gen})
	h.mu.Unlock()

	return true, nil
}

// Subscribe returns a channel of session events and a func to stop receiving them.
// Slow subscribers miss events instead of blocking the holder.
func (h *Holder) Subscribe() (<-chan Event, func()) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, 16)
	h.subscribers[id] = ch

	return ch, func() {
		h.subMu.Lock()
		defer h.subMu.Unlock()
		if ch, ok := h.subscribers[id]; ok {
			close(ch)
			delete(h.subscribers, id)
		}
	}
}

// publish is called with mu held, so events leave in generation order.
// Sends never block.
func (h *Holder) publish(e Event) {
	h.subMu.RLock()
	defer h.subMu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func clone(s model.Session) model.Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
