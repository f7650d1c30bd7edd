package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call without trying it.
var ErrOpen = errors.New("circuit open")

// State is the breaker's position.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Settings tunes a Breaker. Zero values get sensible defaults.
type Settings struct {
	// FailureThreshold is how many consecutive failures trip the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	return s
}

// Breaker fails fast against an endpoint that keeps refusing. Closed
// passes calls through; enough consecutive failures open it; after the
// cooldown a single probe is allowed, and its outcome decides between
// reclosing and another cooldown.
type Breaker struct {
	settings Settings

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probeBusy bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(settings Settings) *Breaker {
	return &Breaker{settings: settings.withDefaults()}
}

// State reports the breaker's position, accounting for an elapsed
// cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Do runs fn when the breaker allows it. While open it returns ErrOpen
// without calling fn; in half-open exactly one probe runs at a time.
func (b *Breaker) Do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err == nil)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current() {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probeBusy {
			return ErrOpen
		}
		b.probeBusy = true
	}
	return nil
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeBusy = false
	if success {
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.settings.FailureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		b.failures = 0
	}
}

// current must be called with b.mu held.
func (b *Breaker) current() State {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.settings.Cooldown {
		b.state = StateHalfOpen
	}
	return b.state
}

// BreakerSet keeps one breaker per key, created on first use.
type BreakerSet struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerSet creates an empty set sharing one Settings.
func NewBreakerSet(settings Settings) *BreakerSet {
	return &BreakerSet{
		settings: settings.withDefaults(),
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it if needed.
func (s *BreakerSet) Get(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[key]
	if !ok {
		b = NewBreaker(s.settings)
		s.breakers[key] = b
	}
	return b
}
