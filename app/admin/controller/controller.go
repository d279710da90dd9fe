package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/openscrutiny/tallyx/app/admin/types"
	"github.com/openscrutiny/tallyx/pkg/utils"
)

type Controller struct {
	App        *types.App
	AdminToken string
	JWTSecret  []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:        app,
		AdminToken: utils.Env("ADMIN_TOKEN", "devtoken"),
		JWTSecret:  []byte(utils.Env("SESSION_SECRET", "change-me-please")),
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Development: Echo back the origin to allow credentials with any origin
		// TODO: Restrict this in production to specific domains
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodPatch+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
// Reads need any authenticated account; mutations need the admin role.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	// basically it's ok, could even be a public endpoint
	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	// Admin API - Login/Logout
	r.HandleFunc("/api/auth/login", c.HandleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleAdminLogout).Methods(http.MethodPost)

	// Operator accounts
	r.Handle("/api/operators", c.RequireAuth(http.HandlerFunc(c.HandleOperatorsList))).Methods(http.MethodGet)
	r.Handle("/api/operators", c.RequireAdmin(http.HandlerFunc(c.HandleOperatorCreate))).Methods(http.MethodPost)
	r.Handle("/api/operators/{username}/password", c.RequireAdmin(http.HandlerFunc(c.HandleOperatorPassword))).Methods(http.MethodPatch)
	r.Handle("/api/operators/{username}", c.RequireAdmin(http.HandlerFunc(c.HandleOperatorDelete))).Methods(http.MethodDelete)

	// Counting rights
	r.Handle("/api/rights", c.RequireAuth(http.HandlerFunc(c.HandleRightsList))).Methods(http.MethodGet)
	r.Handle("/api/rights", c.RequireAdmin(http.HandlerFunc(c.HandleRightGrant))).Methods(http.MethodPost)
	r.Handle("/api/rights/{operator}", c.RequireAdmin(http.HandlerFunc(c.HandleRightRevoke))).Methods(http.MethodDelete)

	// Candidate lists
	r.Handle("/api/lists", c.RequireAuth(http.HandlerFunc(c.HandleListsList))).Methods(http.MethodGet)
	r.Handle("/api/lists", c.RequireAdmin(http.HandlerFunc(c.HandleListCreate))).Methods(http.MethodPost)
	r.Handle("/api/lists/{id}", c.RequireAdmin(http.HandlerFunc(c.HandleListPatch))).Methods(http.MethodPatch)
	r.Handle("/api/lists/{id}", c.RequireAdmin(http.HandlerFunc(c.HandleListDelete))).Methods(http.MethodDelete)

	// Voter roll
	r.Handle("/api/voters", c.RequireAuth(http.HandlerFunc(c.HandleVotersList))).Methods(http.MethodGet)
	r.Handle("/api/voters", c.RequireAdmin(http.HandlerFunc(c.HandleVoterCreate))).Methods(http.MethodPost)
	r.Handle("/api/voters/{id}", c.RequireAuth(http.HandlerFunc(c.HandleVoterDetail))).Methods(http.MethodGet)
	r.Handle("/api/voters/{id}", c.RequireAdmin(http.HandlerFunc(c.HandleVoterPatch))).Methods(http.MethodPatch)
	r.Handle("/api/voters/{id}", c.RequireAdmin(http.HandlerFunc(c.HandleVoterDelete))).Methods(http.MethodDelete)

	// Candidates
	r.Handle("/api/candidates", c.RequireAuth(http.HandlerFunc(c.HandleCandidatesList))).Methods(http.MethodGet)
	r.Handle("/api/candidates", c.RequireAdmin(http.HandlerFunc(c.HandleCandidateCreate))).Methods(http.MethodPost)
	r.Handle("/api/candidates/{id}", c.RequireAdmin(http.HandlerFunc(c.HandleCandidateDelete))).Methods(http.MethodDelete)

	// Result exports
	r.Handle("/api/exports/scores.xlsx", c.RequireAuth(http.HandlerFunc(c.HandleExportScores))).Methods(http.MethodGet)
	r.Handle("/api/exports/ballots.csv", c.RequireAuth(http.HandlerFunc(c.HandleExportBallots))).Methods(http.MethodGet)

	// Reconciliation
	r.Handle("/api/reconcile", c.RequireAdmin(http.HandlerFunc(c.HandleReconcile))).Methods(http.MethodPost)
	r.Handle("/api/reconcile/runs", c.RequireAuth(http.HandlerFunc(c.HandleReconcileRuns))).Methods(http.MethodGet)

	return r, nil
}

// writeJSON writes a JSON response
func (c *Controller) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (c *Controller) writeError(w http.ResponseWriter, statusCode int, message string) {
	c.writeJSON(w, statusCode, map[string]string{"error": message})
}
