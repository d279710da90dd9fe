package controller

import (
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/openscrutiny/tallyx/pkg/session"
)

// sessionState is the wire shape of one operator's selection session.
type sessionState struct {
	Operator   string        `json:"operator"`
	State      session.State `json:"state"`
	CheckedIDs []int64       `json:"checked_ids"`
	LastActive time.Time     `json:"last_active"`
}

func (c *Controller) stateOf(s *session.Session) sessionState {
	return sessionState{
		Operator:   s.Operator(),
		State:      s.State(),
		CheckedIDs: s.CheckedIDs(),
		LastActive: s.LastActive(),
	}
}

// HandleSessionState returns the caller's current selection session.
func (c *Controller) HandleSessionState(w http.ResponseWriter, r *http.Request) {
	sess := c.App.Sessions.Get(c.operatorFrom(r))
	c.writeJSON(w, http.StatusOK, c.stateOf(sess))
}

type checkRequest struct {
	CandidateID int64 `json:"candidate_id"`
}

// parseCheck decodes the candidate id and verifies it exists in the roster.
func (c *Controller) parseCheck(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var in checkRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return 0, false
	}
	if _, err := c.App.RosterDB.GetCandidate(r.Context(), in.CandidateID); err != nil {
		c.writeError(w, http.StatusNotFound, "candidate not found")
		return 0, false
	}
	return in.CandidateID, true
}

// HandleCheck marks a candidate as selected in the caller's session.
func (c *Controller) HandleCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := c.parseCheck(w, r)
	if !ok {
		return
	}
	sess := c.App.Sessions.Get(c.operatorFrom(r))
	sess.Check(id)
	c.writeJSON(w, http.StatusOK, c.stateOf(sess))
}

// HandleUncheck clears a candidate from the caller's session. Unchecking the
// last candidate drops the session back to idle.
func (c *Controller) HandleUncheck(w http.ResponseWriter, r *http.Request) {
	id, ok := c.parseCheck(w, r)
	if !ok {
		return
	}
	sess := c.App.Sessions.Get(c.operatorFrom(r))
	sess.Uncheck(id)
	c.writeJSON(w, http.StatusOK, c.stateOf(sess))
}

// HandleToggle flips a candidate's checked state and reports the new value.
func (c *Controller) HandleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := c.parseCheck(w, r)
	if !ok {
		return
	}
	sess := c.App.Sessions.Get(c.operatorFrom(r))
	checked := sess.Toggle(id)
	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidate_id": id,
		"checked":      checked,
		"state":        sess.State(),
	})
}

// HandleReset discards the selection without posting anything.
func (c *Controller) HandleReset(w http.ResponseWriter, r *http.Request) {
	sess := c.App.Sessions.Get(c.operatorFrom(r))
	sess.Clear()
	c.writeJSON(w, http.StatusOK, c.stateOf(sess))
}
