package session

import (
	"context"
	"time"

	"github.com/openscrutiny/tallyx/pkg/utils"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Registry holds the live sessions, keyed by operator username.
type Registry struct {
	Logger *zap.Logger

	sessions *xsync.MapOf[string, *Session]
	ttl      time.Duration
}

// NewRegistry builds a registry. SESSION_TTL bounds how long an untouched
// session survives before pruning; it defaults to a counting shift.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		Logger:   logger,
		sessions: xsync.NewMapOf[string, *Session](),
		ttl:      utils.EnvDuration("SESSION_TTL", 8*time.Hour),
	}
}

// Get returns the operator's session, creating it on first use.
func (r *Registry) Get(operator string) *Session {
	s, _ := r.sessions.LoadOrStore(operator, newSession(operator))
	return s
}

// Peek returns the operator's session without creating one.
func (r *Registry) Peek(operator string) (*Session, bool) {
	return r.sessions.Load(operator)
}

// Remove drops the operator's session outright, e.g. on logout.
func (r *Registry) Remove(operator string) {
	r.sessions.Delete(operator)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Size()
}

// Prune drops sessions untouched for longer than the TTL and returns how
// many were removed.
func (r *Registry) Prune(now time.Time) int {
	cutoff := now.Add(-r.ttl)
	pruned := 0
	r.sessions.Range(func(operator string, s *Session) bool {
		if s.LastActive().Before(cutoff) {
			r.sessions.Delete(operator)
			pruned++
		}
		return true
	})
	if pruned > 0 {
		r.Logger.Debug("Pruned stale sessions", zap.Int("count", pruned))
	}
	return pruned
}

// StartPruning prunes on an interval until ctx is done. Runs in its own
// goroutine; callers fire and forget.
func (r *Registry) StartPruning(ctx context.Context) {
	go func() {
		interval := r.ttl / 4
		if interval < time.Minute {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Prune(now)
			}
		}
	}()
}
