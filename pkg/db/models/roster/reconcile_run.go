package roster

import (
	"time"

	"github.com/google/uuid"
)

// Reconcile run triggers.
const (
	TriggerCron   = "cron"
	TriggerStream = "stream"
	TriggerManual = "manual"
)

// DriftEntry records one candidate/source counter that disagreed with the
// ledger replay at reconciliation time.
type DriftEntry struct {
	CandidateID int64  `json:"candidate_id"`
	Source      string `json:"source"`
	Counter     int64  `json:"counter"` // denormalized score before repair
	Ledger      int64  `json:"ledger"`  // sum(vote) replayed from the ballot ledger
}

// Delta is the signed difference the repair applied.
func (d DriftEntry) Delta() int64 {
	return d.Ledger - d.Counter
}

// ReconcileRun is the audit record of one reconciliation pass.
type ReconcileRun struct {
	ID                 uuid.UUID    `json:"id"`
	Trigger            string       `json:"trigger"`
	StartedAt          time.Time    `json:"started_at"`
	FinishedAt         time.Time    `json:"finished_at"`
	BallotsReplayed    uint64       `json:"ballots_replayed"`
	CandidatesChecked  int64        `json:"candidates_checked"`
	CandidatesRepaired int64        `json:"candidates_repaired"`
	Drift              []DriftEntry `json:"drift,omitempty"`
}
