package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/utils"
	"go.uber.org/zap"
)

// HandleOperatorsList returns every operator account.
func (c *Controller) HandleOperatorsList(w http.ResponseWriter, r *http.Request) {
	ops, err := c.App.RosterDB.ListOperators(r.Context())
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	c.writeJSON(w, http.StatusOK, ops)
}

// HandleOperatorCreate creates an operator account. The password is bcrypt
// hashed before it is stored; the plaintext never leaves this handler.
func (c *Controller) HandleOperatorCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.Username == "" || in.Password == "" {
		c.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if in.Role == "" {
		in.Role = roster.RoleOperator
	}
	if in.Role != roster.RoleOperator && in.Role != roster.RoleAdmin {
		c.writeError(w, http.StatusBadRequest, "unknown role: "+in.Role)
		return
	}

	phash, err := utils.HashOrRead(in.Password)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "hash failed")
		return
	}

	op, err := c.App.RosterDB.CreateOperator(r.Context(), in.Username, phash, in.Role)
	if err != nil {
		c.writeError(w, http.StatusConflict, "operator already exists")
		return
	}

	c.App.Logger.Info("Operator created",
		zap.String("username", op.Username),
		zap.String("role", op.Role),
		zap.String("by", c.currentUser(r)))
	c.writeJSON(w, http.StatusCreated, op)
}

// HandleOperatorPassword replaces an operator's password.
func (c *Controller) HandleOperatorPassword(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var in struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Password == "" {
		c.writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	phash, err := utils.HashOrRead(in.Password)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "hash failed")
		return
	}

	if err := c.App.RosterDB.UpdateOperatorPassword(r.Context(), username, phash); err != nil {
		c.writeError(w, http.StatusNotFound, "operator not found")
		return
	}

	c.App.Logger.Info("Operator password changed",
		zap.String("username", username),
		zap.String("by", c.currentUser(r)))
	c.writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// HandleOperatorDelete removes an operator account. The counting right, if
// any, goes with it.
func (c *Controller) HandleOperatorDelete(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if username == c.currentUser(r) {
		c.writeError(w, http.StatusConflict, "cannot delete your own account")
		return
	}

	if err := c.App.RosterDB.DeleteOperator(r.Context(), username); err != nil {
		c.writeError(w, http.StatusNotFound, "operator not found")
		return
	}

	c.App.Logger.Info("Operator deleted",
		zap.String("username", username),
		zap.String("by", c.currentUser(r)))
	w.WriteHeader(http.StatusNoContent)
}
