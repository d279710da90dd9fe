package controller

import (
	"net/http"
	"strconv"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

// --- Candidate lists ---

// HandleListsList returns all candidate lists in display order.
func (c *Controller) HandleListsList(w http.ResponseWriter, r *http.Request) {
	lists, err := c.App.RosterDB.ListLists(r.Context())
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	c.writeJSON(w, http.StatusOK, lists)
}

// HandleListCreate creates a candidate list.
func (c *Controller) HandleListCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name      string `json:"name"`
		ListOrder int32  `json:"list_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		c.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	list, err := c.App.RosterDB.CreateList(r.Context(), in.Name, in.ListOrder)
	if err != nil {
		c.writeError(w, http.StatusConflict, "list already exists")
		return
	}

	c.App.Logger.Info("List created", zap.String("name", list.Name), zap.String("by", c.currentUser(r)))
	c.writeJSON(w, http.StatusCreated, list)
}

// HandleListPatch renames or reorders a candidate list.
func (c *Controller) HandleListPatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		c.writeError(w, http.StatusBadRequest, "invalid list id")
		return
	}

	ctx := r.Context()

	list, err := c.App.RosterDB.GetList(ctx, id)
	if err != nil {
		c.writeError(w, http.StatusNotFound, "list not found")
		return
	}

	var in struct {
		Name      *string `json:"name"`
		ListOrder *int32  `json:"list_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.Name != nil {
		list.Name = *in.Name
	}
	if in.ListOrder != nil {
		list.ListOrder = *in.ListOrder
	}

	if err := c.App.RosterDB.UpdateList(ctx, list); err != nil {
		c.writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	c.writeJSON(w, http.StatusOK, list)
}

// HandleListDelete removes a candidate list.
func (c *Controller) HandleListDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		c.writeError(w, http.StatusBadRequest, "invalid list id")
		return
	}
	if err := c.App.RosterDB.DeleteList(r.Context(), id); err != nil {
		c.writeError(w, http.StatusConflict, "list not found or still has candidates")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Voter roll ---

// HandleVotersList returns a page of the voter roll.
func (c *Controller) HandleVotersList(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	offset, _ := strconv.Atoi(qs.Get("offset"))
	limit, _ := strconv.Atoi(qs.Get("limit"))

	voters, err := c.App.RosterDB.ListVoters(r.Context(), offset, limit)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	c.writeJSON(w, http.StatusOK, voters)
}

// HandleVoterCreate adds a voter to the roll.
func (c *Controller) HandleVoterCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FullName   string `json:"full_name"`
		NationalID string `json:"national_id"`
		Eligible   *bool  `json:"eligible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.FullName == "" || in.NationalID == "" {
		c.writeError(w, http.StatusBadRequest, "full_name and national_id are required")
		return
	}
	eligible := true
	if in.Eligible != nil {
		eligible = *in.Eligible
	}

	voter, err := c.App.RosterDB.CreateVoter(r.Context(), in.FullName, in.NationalID, eligible)
	if err != nil {
		c.writeError(w, http.StatusConflict, "national id already registered")
		return
	}
	c.writeJSON(w, http.StatusCreated, voter)
}

// HandleVoterDetail returns one voter.
func (c *Controller) HandleVoterDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		c.writeError(w, http.StatusBadRequest, "invalid voter id")
		return
	}
	voter, err := c.App.RosterDB.GetVoter(r.Context(), id)
	if err != nil {
		c.writeError(w, http.StatusNotFound, "voter not found")
		return
	}
	c.writeJSON(w, http.StatusOK, voter)
}

// HandleVoterPatch updates a voter's name or eligibility.
func (c *Controller) HandleVoterPatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		c.writeError(w, http.StatusBadRequest, "invalid voter id")
		return
	}

	ctx := r.Context()

	voter, err := c.App.RosterDB.GetVoter(ctx, id)
	if err != nil {
		c.writeError(w, http.StatusNotFound, "voter not found")
		return
	}

	var in struct {
		FullName *string `json:"full_name"`
		Eligible *bool   `json:"eligible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.FullName != nil {
		voter.FullName = *in.FullName
	}
	if in.Eligible != nil {
		voter.Eligible = *in.Eligible
	}

	if err := c.App.RosterDB.UpdateVoter(ctx, voter); err != nil {
		c.writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	c.writeJSON(w, http.StatusOK, voter)
}

// HandleVoterDelete removes a voter from the roll.
func (c *Controller) HandleVoterDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		c.writeError(w, http.StatusBadRequest, "invalid voter id")
		return
	}
	if err := c.App.RosterDB.DeleteVoter(r.Context(), id); err != nil {
		c.writeError(w, http.StatusConflict, "voter not found or is a candidate")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Candidates ---

// HandleCandidatesList returns the full candidate roster in ballot order.
func (c *Controller) HandleCandidatesList(w http.ResponseWriter, r *http.Request) {
	candidates, err := c.App.RosterDB.ListCandidates(r.Context())
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	c.writeJSON(w, http.StatusOK, candidates)
}

// HandleCandidateCreate puts a voter on a list as a candidate.
func (c *Controller) HandleCandidateCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		VoterID        int64 `json:"voter_id"`
		ListID         int64 `json:"list_id"`
		CandidateOrder int32 `json:"candidate_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	candidate, err := c.App.RosterDB.CreateCandidate(r.Context(), in.VoterID, in.ListID, in.CandidateOrder)
	if err != nil {
		c.writeError(w, http.StatusConflict, "voter or list not found, or voter already a candidate")
		return
	}

	c.App.Logger.Info("Candidate created",
		zap.Int64("candidate_id", candidate.ID),
		zap.String("full_name", candidate.FullName),
		zap.String("by", c.currentUser(r)))
	c.writeJSON(w, http.StatusCreated, candidate)
}

// HandleCandidateDelete removes a candidate. Ledger lines referencing the
// candidate stay in the ledger; the ballot record is append-only.
func (c *Controller) HandleCandidateDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		c.writeError(w, http.StatusBadRequest, "invalid candidate id")
		return
	}
	if err := c.App.RosterDB.DeleteCandidate(r.Context(), id); err != nil {
		c.writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
