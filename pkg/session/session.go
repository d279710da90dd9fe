// Package session tracks per-operator posting state: which candidate boxes
// are currently checked between ballots. Sessions live in memory only; the
// ballot ledger is the durable record, a lost session loses at most one
// uncommitted selection.
package session

import (
	"sort"
	"sync"
	"time"
)

// State of one operator's posting cycle.
type State string

const (
	// StateIdle means no candidates are checked.
	StateIdle State = "idle"
	// StateSelecting means the operator is composing a ballot.
	StateSelecting State = "selecting"
)

// Session is one operator's checked-candidate set. All methods are safe for
// concurrent use. The set survives a failed posting untouched so the
// operator can retry without re-entering the ballot.
type Session struct {
	mu       sync.Mutex
	operator string
	checked  map[int64]struct{}
	touched  time.Time
}

func newSession(operator string) *Session {
	return &Session{
		operator: operator,
		checked:  make(map[int64]struct{}, 8),
		touched:  time.Now(),
	}
}

// Operator returns the owning username.
func (s *Session) Operator() string {
	return s.operator
}

// State derives the cycle state from the checked set.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.checked) == 0 {
		return StateIdle
	}
	return StateSelecting
}

// Check marks a candidate.
func (s *Session) Check(candidateID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked[candidateID] = struct{}{}
	s.touched = time.Now()
}

// Uncheck unmarks a candidate. Unknown ids are ignored.
func (s *Session) Uncheck(candidateID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checked, candidateID)
	s.touched = time.Now()
}

// Toggle flips a candidate's mark and reports the new checked state.
func (s *Session) Toggle(candidateID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	if _, ok := s.checked[candidateID]; ok {
		delete(s.checked, candidateID)
		return false
	}
	s.checked[candidateID] = struct{}{}
	return true
}

// Checked returns a snapshot of the checked set in the shape the posting
// fan-out consumes.
func (s *Session) Checked() map[int64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]bool, len(s.checked))
	for id := range s.checked {
		out[id] = true
	}
	return out
}

// CheckedIDs returns the checked candidate ids in ascending order.
func (s *Session) CheckedIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.checked))
	for id := range s.checked {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear empties the checked set, returning the session to idle. Called after
// a successful posting and by the reset action; never called on failure.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = make(map[int64]struct{}, 8)
	s.touched = time.Now()
}

// LastActive reports the time of the last operation on this session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}
