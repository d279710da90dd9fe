package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/openscrutiny/tallyx/pkg/ballotid"
	"go.uber.org/zap"
)

// HandleRightsList returns every granted counting right.
func (c *Controller) HandleRightsList(w http.ResponseWriter, r *http.Request) {
	rights, err := c.App.RosterDB.ListCountingRights(r.Context())
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	c.writeJSON(w, http.StatusOK, rights)
}

// HandleRightGrant assigns an operator its counting source and station. An
// operator holds at most one right; granting again replaces it.
func (c *Controller) HandleRightGrant(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Operator  string `json:"operator"`
		Source    string `json:"source"`
		StationID uint16 `json:"station_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.Operator == "" {
		c.writeError(w, http.StatusBadRequest, "operator is required")
		return
	}
	if in.StationID > ballotid.MaxStationID {
		c.writeError(w, http.StatusBadRequest, "station id out of range")
		return
	}

	ctx := r.Context()

	// The account must exist; rights are not self-registering.
	if _, err := c.App.RosterDB.GetOperator(ctx, in.Operator); err != nil {
		c.writeError(w, http.StatusNotFound, "operator not found")
		return
	}

	right, err := c.App.RosterDB.GrantCountingRight(ctx, in.Operator, in.Source, in.StationID)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c.App.Logger.Info("Counting right granted",
		zap.String("operator", right.Operator),
		zap.String("source", right.Source),
		zap.Uint16("station_id", right.StationID),
		zap.String("by", c.currentUser(r)))
	c.writeJSON(w, http.StatusCreated, right)
}

// HandleRightRevoke removes an operator's counting right.
func (c *Controller) HandleRightRevoke(w http.ResponseWriter, r *http.Request) {
	operator := mux.Vars(r)["operator"]

	if err := c.App.RosterDB.RevokeCountingRight(r.Context(), operator); err != nil {
		c.writeError(w, http.StatusNotFound, "counting right not found")
		return
	}

	c.App.Logger.Info("Counting right revoked",
		zap.String("operator", operator),
		zap.String("by", c.currentUser(r)))
	w.WriteHeader(http.StatusNoContent)
}
