package controller

import (
	"net/http"
)

// HandleCandidates returns the full candidate roster in ballot order so the
// station can render the posting grid.
func (c *Controller) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := c.App.RosterDB.ListCandidates(r.Context())
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}
	c.writeJSON(w, http.StatusOK, candidates)
}

// HandleCountingRight returns the caller's counting right: which source it
// counts for and at which station. Operators without one cannot post.
func (c *Controller) HandleCountingRight(w http.ResponseWriter, r *http.Request) {
	right, err := c.App.RosterDB.GetCountingRight(r.Context(), c.operatorFrom(r))
	if err != nil {
		c.writeError(w, http.StatusNotFound, "no counting right")
		return
	}
	c.writeJSON(w, http.StatusOK, right)
}
