package controller

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/tally"
)

// HandleScores renders the full scoreboard: every list with its candidates
// ranked by combined female + male score.
func (c *Controller) HandleScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lists, err := c.App.RosterDB.ListLists(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}
	candidates, err := c.App.RosterDB.ListCandidates(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}

	c.writeJSON(w, http.StatusOK, tally.Scoreboard(lists, candidates))
}

// HandleListScores renders one list's ranked candidates.
func (c *Controller) HandleListScores(w http.ResponseWriter, r *http.Request) {
	listID, err := strconv.ParseInt(mux.Vars(r)["list_id"], 10, 64)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid list id")
		return
	}

	ctx := r.Context()

	list, err := c.App.RosterDB.GetList(ctx, listID)
	if err != nil {
		c.writeError(w, http.StatusNotFound, "list not found")
		return
	}
	candidates, err := c.App.RosterDB.ListCandidatesByList(ctx, listID)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}

	board := tally.Scoreboard([]roster.List{*list}, candidates)
	c.writeJSON(w, http.StatusOK, board[0])
}

// HandleCounters returns the three status buckets split by counting source.
// The buckets are disjoint and their totals sum to the distinct ballots in
// the ledger.
func (c *Controller) HandleCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := c.App.LedgerDB.Counters(r.Context())
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	c.writeJSON(w, http.StatusOK, counters)
}

// HandleTurnout relates distinct ballots cast to the eligible voter roll.
func (c *Controller) HandleTurnout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eligible, err := c.App.RosterDB.CountEligibleVoters(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}
	counters, err := c.App.LedgerDB.Counters(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}

	c.writeJSON(w, http.StatusOK, tally.ComputeTurnout(eligible, counters))
}
