package roster

import (
	"time"
)

// Operator roles.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// List is a named slate of candidates contesting together.
// ListOrder drives display ordering of lists on every scoreboard.
type List struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ListOrder int32  `json:"list_order"`
}

// Voter is one person on the voter roll. Candidates reference a voter for
// their display name; Eligible feeds the turnout denominator.
type Voter struct {
	ID         int64     `json:"id"`
	FullName   string    `json:"full_name"`
	NationalID string    `json:"national_id"`
	Eligible   bool      `json:"eligible"`
	CreatedAt  time.Time `json:"created_at"`
}

// Candidate is a voter standing on a list. ScoreFromFemale and ScoreFromMale
// are denormalized running totals mutated by the posting path; the ballot
// ledger stays authoritative and the reconciler repairs any drift.
type Candidate struct {
	ID             int64 `json:"id"`
	VoterID        int64 `json:"voter_id"`
	ListID         int64 `json:"list_id"`
	CandidateOrder int32 `json:"candidate_order"`

	// Joined from voters / lists for display.
	FullName string `json:"full_name"`
	ListName string `json:"list_name"`

	ScoreFromFemale int64 `json:"score_from_female"`
	ScoreFromMale   int64 `json:"score_from_male"`
}

// CombinedScore is the live-score projection total for one candidate.
func (c *Candidate) CombinedScore() int64 {
	return c.ScoreFromFemale + c.ScoreFromMale
}

// Score is one candidate's denormalized counter pair, detached from the
// rest of the candidate row for score reads and reconciliation writes.
type Score struct {
	FromFemale int64 `json:"from_female"`
	FromMale   int64 `json:"from_male"`
}

// Combined sums both sources.
func (s Score) Combined() int64 {
	return s.FromFemale + s.FromMale
}

// Operator is a counting-station or back-office account.
// PasswordHash is bcrypt and never serialized.
type Operator struct {
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// CountingRight is an operator's assigned permission: which source their
// postings are attributed to and which physical station they sit at. It is
// always passed explicitly into the posting operation, never read from
// ambient session state.
type CountingRight struct {
	Operator  string    `json:"operator"`
	Source    string    `json:"source"` // "male" or "female"
	StationID uint16    `json:"station_id"`
	GrantedAt time.Time `json:"granted_at"`
}
