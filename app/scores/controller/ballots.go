package controller

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/openscrutiny/tallyx/pkg/tally"
)

type pagedResponse[T any] struct {
	Data       []T     `json:"data"`
	Limit      int     `json:"limit"`
	NextCursor *uint64 `json:"next_cursor,omitempty"`
}

// HandleBallots pages through classified ballots, newest first. Each ballot
// comes back with its status label and one cell per roster candidate; cells
// without a ledger line render as "no data" (null), never as zero.
func (c *Controller) HandleBallots(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageSpec(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()

	candidates, err := c.App.RosterDB.ListCandidates(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}

	// Query one extra ballot to detect whether there are more pages.
	lines, err := c.App.LedgerDB.ListBallotLines(ctx, page.Cursor, page.Limit+1)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}

	views := tally.BuildBallotViews(lines, candidates)

	nextCursor := (*uint64)(nil)
	if len(views) > page.Limit {
		views = views[:page.Limit]
		cursor := views[len(views)-1].BallotID
		nextCursor = &cursor
	}

	c.writeJSON(w, http.StatusOK, pagedResponse[tally.BallotView]{
		Data:       views,
		Limit:      page.Limit,
		NextCursor: nextCursor,
	})
}

// HandleBallot returns one classified ballot by id.
func (c *Controller) HandleBallot(w http.ResponseWriter, r *http.Request) {
	ballotID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid ballot id")
		return
	}

	ctx := r.Context()

	lines, err := c.App.LedgerDB.GetBallotLines(ctx, ballotID)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	if len(lines) == 0 {
		c.writeError(w, http.StatusNotFound, "ballot not found")
		return
	}

	candidates, err := c.App.RosterDB.ListCandidates(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}

	views := tally.BuildBallotViews(lines, candidates)
	c.writeJSON(w, http.StatusOK, views[0])
}
