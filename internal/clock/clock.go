package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time to the faucet service.
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Monotonic never reports a time earlier than one it has already returned,
// even if the wrapped clock steps backwards.
type Monotonic struct {
	mu   sync.Mutex
	src  Clock
	last time.Time
}

func NewMonotonic(src Clock) *Monotonic {
	return &Monotonic{src: src}
}

func (m *Monotonic) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.src.Now()
	if now.Before(m.last) {
		return m.last
	}
	m.last = now
	return now
}

// Manual is a settable clock for tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
