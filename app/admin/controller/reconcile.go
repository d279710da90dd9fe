package controller

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
)

// HandleReconcile replays the ballot ledger and repairs any drifted score
// counters, synchronously. The run record comes back to the caller.
func (c *Controller) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	run, err := c.App.Reconciler.Run(r.Context(), roster.TriggerManual)
	if err != nil {
		c.App.Logger.Error("Manual reconciliation failed", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	c.App.Logger.Info("Manual reconciliation finished",
		zap.Int64("repaired", run.CandidatesRepaired),
		zap.String("by", c.currentUser(r)))
	c.writeJSON(w, http.StatusOK, run)
}

// HandleReconcileRuns returns recent reconciliation audit records, newest
// first.
func (c *Controller) HandleReconcileRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := c.App.RosterDB.ListReconcileRuns(r.Context(), limit)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	c.writeJSON(w, http.StatusOK, runs)
}
