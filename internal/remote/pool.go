package remote

import (
	"context"
	"sync"
	"time"

	"github.com/commandx/backend/internal/infrastructure/config"
	"github.com/commandx/backend/internal/infrastructure/logging"
	"github.com/commandx/backend/internal/infrastructure/monitoring"
	"github.com/commandx/backend/internal/shared/types"
	"go.uber.org/zap"
)

type poolEntry struct {
	session   *Session
	transport Transport
}

func (e *poolEntry) close() {
	e.session.Close()
	_ = e.transport.Close()
}

// Pool keeps at most one session per target and reconnects when a
// session goes stale or its transport breaks. The mutex guards only the
// map; dialing and command execution happen outside it.
type Pool struct {
	dialer  Dialer
	log     *logging.Logger
	metrics *monitoring.Metrics

	maxAge         time.Duration
	connectBackoff time.Duration
	retryBackoff   time.Duration

	mu       sync.Mutex
	sessions map[int64]*poolEntry
}

// NewPool creates a session pool. metrics may be nil.
func NewPool(dialer Dialer, cfg config.PoolConfig, log *logging.Logger, metrics *monitoring.Metrics) *Pool {
	return &Pool{
		dialer:         dialer,
		log:            log,
		metrics:        metrics,
		maxAge:         cfg.MaxSessionAge,
		connectBackoff: cfg.ConnectBackoff,
		retryBackoff:   cfg.RetryBackoff,
		sessions:       make(map[int64]*poolEntry),
	}
}

// Get returns a live session for the target, reusing the pooled one
// when it is valid and younger than the max age, and reconnecting
// otherwise.
func (p *Pool) Get(ctx context.Context, creds Credentials) (*Session, error) {
	key := creds.TargetID

	p.mu.Lock()
	if entry, ok := p.sessions[key]; ok {
		if p.usable(entry.session) {
			entry.session.touch()
			p.mu.Unlock()
			return entry.session, nil
		}
		delete(p.sessions, key)
		p.mu.Unlock()
		p.evict(entry, creds)
	} else {
		p.mu.Unlock()
	}

	transport, err := p.dial(ctx, creds)
	if err != nil {
		return nil, err
	}
	session := newSession(creds, transport, p.log)

	p.mu.Lock()
	if existing, ok := p.sessions[key]; ok && p.usable(existing.session) {
		// A concurrent caller connected first; keep theirs.
		p.mu.Unlock()
		session.Close()
		_ = transport.Close()
		return existing.session, nil
	} else if ok {
		delete(p.sessions, key)
		defer p.evict(existing, creds)
	}
	p.sessions[key] = &poolEntry{session: session, transport: transport}
	active := len(p.sessions)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.SessionsActive.Set(float64(active))
	}
	p.log.Info("ssh session established",
		zap.Int64("target_id", creds.TargetID),
		zap.String("host", creds.Host))
	return session, nil
}

// usable is called with p.mu held.
func (p *Pool) usable(s *Session) bool {
	return s.IsValid() && (p.maxAge <= 0 || s.Age() < p.maxAge)
}

func (p *Pool) evict(entry *poolEntry, creds Credentials) {
	reason := "broken"
	if entry.session.IsValid() {
		reason = "stale"
	}
	entry.close()
	if p.metrics != nil {
		p.metrics.SessionEvicted.WithLabelValues(reason).Inc()
	}
	p.log.Debug("ssh session evicted",
		zap.Int64("target_id", creds.TargetID),
		zap.String("reason", reason))
}

// dial connects, retrying once after a short backoff.
func (p *Pool) dial(ctx context.Context, creds Credentials) (Transport, error) {
	if p.metrics != nil {
		p.metrics.Reconnects.Inc()
	}
	transport, err := p.dialer.Dial(ctx, creds)
	if err == nil {
		return transport, nil
	}

	p.log.Warn("ssh dial failed, retrying",
		zap.String("host", creds.Host),
		zap.Error(err))
	select {
	case <-ctx.Done():
		return nil, &ConnError{Host: creds.Host, Err: ctx.Err()}
	case <-time.After(p.connectBackoff):
	}

	if p.metrics != nil {
		p.metrics.Reconnects.Inc()
	}
	transport, err = p.dialer.Dial(ctx, creds)
	if err != nil {
		if IsConnError(err) {
			return nil, err
		}
		return nil, &ConnError{Host: creds.Host, Err: err}
	}
	return transport, nil
}

// ExecuteWithRetry runs command on the target's session, retrying once
// on a fresh connection when the transport fails mid-command. Command
// failures (non-zero exit) are results, not errors, and do not retry.
func (p *Pool) ExecuteWithRetry(ctx context.Context, creds Credentials, command string, timeout time.Duration) (types.ExecResult, error) {
	const attempts = 2

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		session, err := p.Get(ctx, creds)
		if err != nil {
			lastErr = err
			break
		}

		res, err := session.Execute(ctx, command, timeout)
		if err == nil {
			p.record("ok", start)
			return res, nil
		}
		lastErr = err
		p.CloseSession(creds.TargetID)
		if attempt < attempts {
			p.log.Warn("remote execution failed, reconnecting",
				zap.Int64("target_id", creds.TargetID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-ctx.Done():
				lastErr = &ConnError{Host: creds.Host, Err: ctx.Err()}
				attempt = attempts
			case <-time.After(p.retryBackoff):
			}
		}
	}
	p.record("error", start)
	return types.ExecResult{}, lastErr
}

func (p *Pool) record(outcome string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordCommand("remote", outcome, time.Since(start))
	}
}

// CloseSession drops the target's pooled session, if any.
func (p *Pool) CloseSession(targetID int64) {
	p.mu.Lock()
	entry, ok := p.sessions[targetID]
	if ok {
		delete(p.sessions, targetID)
	}
	active := len(p.sessions)
	p.mu.Unlock()

	if !ok {
		return
	}
	entry.close()
	if p.metrics != nil {
		p.metrics.SessionsActive.Set(float64(active))
		p.metrics.SessionEvicted.WithLabelValues("closed").Inc()
	}
}

// CloseAll drops every pooled session. Called on shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	entries := p.sessions
	p.sessions = make(map[int64]*poolEntry)
	p.mu.Unlock()

	for _, entry := range entries {
		entry.close()
	}
	if p.metrics != nil {
		p.metrics.SessionsActive.Set(0)
	}
	if len(entries) > 0 {
		p.log.Info("closed all ssh sessions", zap.Int("count", len(entries)))
	}
}

// CleanupInactive evicts sessions idle longer than maxIdle and returns
// how many were dropped. Runs off the request path on a cron schedule.
func (p *Pool) CleanupInactive(maxIdle time.Duration) int {
	p.mu.Lock()
	var idle []*poolEntry
	for key, entry := range p.sessions {
		if entry.session.IdleFor() > maxIdle || !entry.session.IsValid() {
			idle = append(idle, entry)
			delete(p.sessions, key)
		}
	}
	active := len(p.sessions)
	p.mu.Unlock()

	for _, entry := range idle {
		entry.close()
	}
	if p.metrics != nil && len(idle) > 0 {
		p.metrics.SessionsActive.Set(float64(active))
		p.metrics.SessionEvicted.WithLabelValues("idle").Add(float64(len(idle)))
	}
	if len(idle) > 0 {
		p.log.Info("evicted idle ssh sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// TestConnection dials the target and reports reachability. The probe
// transport is closed immediately and never pooled.
func (p *Pool) TestConnection(ctx context.Context, creds Credentials) (bool, string) {
	transport, err := p.dialer.Dial(ctx, creds)
	if err != nil {
		return false, err.Error()
	}
	_ = transport.Close()
	return true, "connection successful"
}
