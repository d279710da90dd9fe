package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/openscrutiny/tallyx/app/station/types"
	"github.com/openscrutiny/tallyx/pkg/utils"
)

type Controller struct {
	App       *types.App
	JWTSecret []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:       app,
		JWTSecret: []byte(utils.Env("SESSION_SECRET", "change-me-please")),
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
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/login", c.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleLogout).Methods(http.MethodPost)

	// Roster context for the posting grid
	r.Handle("/api/candidates", c.RequireOperator(http.HandlerFunc(c.HandleCandidates))).Methods(http.MethodGet)
	r.Handle("/api/right", c.RequireOperator(http.HandlerFunc(c.HandleCountingRight))).Methods(http.MethodGet)

	// Selection session
	r.Handle("/api/session", c.RequireOperator(http.HandlerFunc(c.HandleSessionState))).Methods(http.MethodGet)
	r.Handle("/api/session/check", c.RequireOperator(http.HandlerFunc(c.HandleCheck))).Methods(http.MethodPost)
	r.Handle("/api/session/uncheck", c.RequireOperator(http.HandlerFunc(c.HandleUncheck))).Methods(http.MethodPost)
	r.Handle("/api/session/toggle", c.RequireOperator(http.HandlerFunc(c.HandleToggle))).Methods(http.MethodPost)
	r.Handle("/api/session/reset", c.RequireOperator(http.HandlerFunc(c.HandleReset))).Methods(http.MethodPost)

	// Ballot posting: plain, blank or invalid
	r.Handle("/api/ballots/{kind}", c.RequireOperator(http.HandlerFunc(c.HandlePostBallot))).Methods(http.MethodPost)

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
