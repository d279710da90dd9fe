package controller

import "net/http"

// HandleHealth reports connectivity to both backing stores.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.LedgerDB.Health(ctx); err != nil {
		c.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "errored",
			"error":  "ledger connection error",
		})
		return
	}
	if err := c.App.RosterDB.Health(ctx); err != nil {
		c.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "errored",
			"error":  "roster connection error",
		})
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
