package admin_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openscrutiny/tallyx/app/admin/controller"
	"github.com/openscrutiny/tallyx/app/admin/types"
	"github.com/openscrutiny/tallyx/pkg/ballotid"
	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/reconcile"
	"github.com/openscrutiny/tallyx/pkg/tally"
	"github.com/openscrutiny/tallyx/pkg/utils"
	"github.com/openscrutiny/tallyx/tests/unit/fakes"
)

func newAdmin(t *testing.T, ledgerStore *fakes.LedgerStore, rosterStore *fakes.RosterStore) (*controller.Controller, *mux.Router) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	app := &types.App{
		LedgerDB:   ledgerStore,
		RosterDB:   rosterStore,
		Reconciler: reconcile.New(logger, ledgerStore, rosterStore, nil),
		Logger:     logger,
	}

	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	require.NoError(t, err)
	return ctler, router
}

// asCookie authenticates a request with a signed session cookie, the way a
// browser client would after login.
func asCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

// asToken authenticates a request with the static API token.
func asToken(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func sessionCookie(ctler *controller.Controller, username, role string) *http.Cookie {
	rec := httptest.NewRecorder()
	ctler.IssueSession(rec, username, role)
	return rec.Result().Cookies()[0]
}

func request(router *mux.Router, method, target string, body any, authorize func(*http.Request)) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if authorize != nil {
		authorize(req)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func mustHash(t *testing.T, password string) []byte {
	t.Helper()
	hash, err := utils.HashOrRead(password)
	require.NoError(t, err)
	return hash
}

var errTest = errors.New("connection refused")

// TestAuthMatrix walks the middleware combinations: reads accept any
// authenticated caller, mutations demand the admin role or the API token.
func TestAuthMatrix(t *testing.T) {
	ctler, router := newAdmin(t, &fakes.LedgerStore{}, &fakes.RosterStore{})

	admin := asCookie(sessionCookie(ctler, "root", roster.RoleAdmin))
	operator := asCookie(sessionCookie(ctler, "op1", roster.RoleOperator))

	cases := []struct {
		name      string
		method    string
		target    string
		authorize func(*http.Request)
		want      int
	}{
		{"read anonymous", http.MethodGet, "/api/operators", nil, http.StatusUnauthorized},
		{"read operator cookie", http.MethodGet, "/api/operators", operator, http.StatusOK},
		{"read admin cookie", http.MethodGet, "/api/operators", admin, http.StatusOK},
		{"read api token", http.MethodGet, "/api/operators", asToken("devtoken"), http.StatusOK},
		{"read wrong token", http.MethodGet, "/api/operators", asToken("nope"), http.StatusUnauthorized},
		{"write anonymous", http.MethodPost, "/api/reconcile", nil, http.StatusUnauthorized},
		{"write operator cookie", http.MethodPost, "/api/reconcile", operator, http.StatusForbidden},
		{"write admin cookie", http.MethodPost, "/api/reconcile", admin, http.StatusOK},
		{"write api token", http.MethodPost, "/api/reconcile", asToken("devtoken"), http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := request(router, tc.method, tc.target, nil, tc.authorize)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

// TestRequireAdminErrorBodies checks that an unauthenticated caller gets 401
// while a valid non-admin session gets 403, with distinct error bodies.
func TestRequireAdminErrorBodies(t *testing.T) {
	ctler, router := newAdmin(t, &fakes.LedgerStore{}, &fakes.RosterStore{})

	rec := request(router, http.MethodPost, "/api/reconcile", nil,
		asCookie(&http.Cookie{Name: "tx_session", Value: "garbage"}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", decode[map[string]string](t, rec)["error"])

	rec = request(router, http.MethodPost, "/api/reconcile", nil,
		asCookie(sessionCookie(ctler, "op1", roster.RoleOperator)))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", decode[map[string]string](t, rec)["error"])
}

func TestOperatorLifecycle(t *testing.T) {
	rosterStore := &fakes.RosterStore{}
	ctler, router := newAdmin(t, &fakes.LedgerStore{}, rosterStore)
	admin := asCookie(sessionCookie(ctler, "root", roster.RoleAdmin))

	// Create defaults to the operator role and never echoes the hash.
	rec := request(router, http.MethodPost, "/api/operators",
		map[string]string{"username": "op1", "password": "hunter2"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotContains(t, rec.Body.String(), "password")
	op := decode[roster.Operator](t, rec)
	require.Equal(t, "op1", op.Username)
	require.Equal(t, roster.RoleOperator, op.Role)

	rec = request(router, http.MethodPost, "/api/operators",
		map[string]string{"username": "op1", "password": "other"}, admin)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "operator already exists", decode[map[string]string](t, rec)["error"])

	rec = request(router, http.MethodPatch, "/api/operators/op1/password",
		map[string]string{"password": "rotated"}, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	var stored *roster.Operator
	for i := range rosterStore.Operators {
		if rosterStore.Operators[i].Username == "op1" {
			stored = &rosterStore.Operators[i]
		}
	}
	require.NotNil(t, stored)
	require.True(t, utils.CheckPassword(stored.PasswordHash, "rotated"))
	require.False(t, utils.CheckPassword(stored.PasswordHash, "hunter2"))

	rec = request(router, http.MethodPatch, "/api/operators/ghost/password",
		map[string]string{"password": "x"}, admin)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = request(router, http.MethodDelete, "/api/operators/op1", nil, admin)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = request(router, http.MethodDelete, "/api/operators/op1", nil, admin)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperatorCreateValidation(t *testing.T) {
	ctler, router := newAdmin(t, &fakes.LedgerStore{}, &fakes.RosterStore{})
	admin := asCookie(sessionCookie(ctler, "root", roster.RoleAdmin))

	rec := request(router, http.MethodPost, "/api/operators",
		map[string]string{"username": "op1"}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "username and password are required", decode[map[string]string](t, rec)["error"])

	rec = request(router, http.MethodPost, "/api/operators",
		map[string]string{"username": "op1", "password": "x", "role": "superuser"}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unknown role: superuser", decode[map[string]string](t, rec)["error"])
}

// TestOperatorCannotDeleteSelf guards against an admin locking everyone out
// by removing the account their own session belongs to.
func TestOperatorCannotDeleteSelf(t *testing.T) {
	rosterStore := &fakes.RosterStore{
		Operators: []roster.Operator{{Username: "root", Role: roster.RoleAdmin}},
	}
	ctler, router := newAdmin(t, &fakes.LedgerStore{}, rosterStore)

	rec := request(router, http.MethodDelete, "/api/operators/root", nil,
		asCookie(sessionCookie(ctler, "root", roster.RoleAdmin)))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "cannot delete your own account", decode[map[string]string](t, rec)["error"])
	require.Len(t, rosterStore.Operators, 1)
}

func TestAdminLoginFlow(t *testing.T) {
	rosterStore := &fakes.RosterStore{
		Operators: []roster.Operator{
			{Username: "dalia", PasswordHash: mustHash(t, "hunter2"), Role: roster.RoleAdmin},
		},
	}
	_, router := newAdmin(t, &fakes.LedgerStore{}, rosterStore)

	rec := request(router, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "dalia", "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid credentials", decode[map[string]string](t, rec)["error"])

	rec = request(router, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "ghost", "password": "hunter2"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(router, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "dalia", "password": "hunter2"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "tx_session", cookies[0].Name)

	// The minted session carries the admin role.
	rec = request(router, http.MethodPost, "/api/operators",
		map[string]string{"username": "op9", "password": "x"}, asCookie(cookies[0]))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = request(router, http.MethodPost, "/api/auth/logout", nil, asCookie(cookies[0]))
	require.Equal(t, http.StatusNoContent, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Negative(t, cleared[0].MaxAge)
}

func TestRightGrantAndRevoke(t *testing.T) {
	rosterStore := &fakes.RosterStore{
		Operators: []roster.Operator{{Username: "op1", Role: roster.RoleOperator}},
	}
	ctler, router := newAdmin(t, &fakes.LedgerStore{}, rosterStore)
	admin := asCookie(sessionCookie(ctler, "root", roster.RoleAdmin))

	rec := request(router, http.MethodPost, "/api/rights",
		map[string]any{"operator": "op1", "source": ledger.SourceFemale, "station_id": 7}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	right := decode[roster.CountingRight](t, rec)
	require.Equal(t, ledger.SourceFemale, right.Source)
	require.Equal(t, uint16(7), right.StationID)

	// Granting again replaces the existing assignment.
	rec = request(router, http.MethodPost, "/api/rights",
		map[string]any{"operator": "op1", "source": ledger.SourceMale, "station_id": 9}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = request(router, http.MethodGet, "/api/rights", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	rights := decode[[]roster.CountingRight](t, rec)
	require.Len(t, rights, 1)
	require.Equal(t, ledger.SourceMale, rights[0].Source)
	require.Equal(t, uint16(9), rights[0].StationID)

	rec = request(router, http.MethodDelete, "/api/rights/op1", nil, admin)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = request(router, http.MethodDelete, "/api/rights/op1", nil, admin)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "counting right not found", decode[map[string]string](t, rec)["error"])
}

func TestRightGrantValidation(t *testing.T) {
	rosterStore := &fakes.RosterStore{
		Operators: []roster.Operator{{Username: "op1", Role: roster.RoleOperator}},
	}
	ctler, router := newAdmin(t, &fakes.LedgerStore{}, rosterStore)
	admin := asCookie(sessionCookie(ctler, "root", roster.RoleAdmin))

	rec := request(router, http.MethodPost, "/api/rights",
		map[string]any{"source": ledger.SourceFemale, "station_id": 7}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "operator is required", decode[map[string]string](t, rec)["error"])

	rec = request(router, http.MethodPost, "/api/rights",
		map[string]any{"operator": "ghost", "source": ledger.SourceFemale, "station_id": 7}, admin)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "operator not found", decode[map[string]string](t, rec)["error"])

	rec = request(router, http.MethodPost, "/api/rights",
		map[string]any{"operator": "op1", "source": ledger.SourceFemale, "station_id": ballotid.MaxStationID + 1}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "station id out of range", decode[map[string]string](t, rec)["error"])

	rec = request(router, http.MethodPost, "/api/rights",
		map[string]any{"operator": "op1", "source": "council", "station_id": 7}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[map[string]string](t, rec)["error"], "unknown counting source")
}

// TestRosterManagement drives a list, voter and candidate through their
// lifecycle, including the guards that keep referenced rows around.
func TestRosterManagement(t *testing.T) {
	rosterStore := &fakes.RosterStore{}
	ctler, router := newAdmin(t, &fakes.LedgerStore{}, rosterStore)
	admin := asCookie(sessionCookie(ctler, "root", roster.RoleAdmin))

	rec := request(router, http.MethodPost, "/api/lists",
		map[string]any{"name": "Unity", "list_order": 1}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	list := decode[roster.List](t, rec)
	require.NotZero(t, list.ID)

	rec = request(router, http.MethodPost, "/api/lists", map[string]any{"name": "Unity"}, admin)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = request(router, http.MethodPost, "/api/voters",
		map[string]any{"full_name": "Amal Haddad", "national_id": "A100"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	voter := decode[roster.Voter](t, rec)
	require.True(t, voter.Eligible, "eligibility defaults to true")

	rec = request(router, http.MethodPost, "/api/voters",
		map[string]any{"full_name": "Someone Else", "national_id": "A100"}, admin)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "national id already registered", decode[map[string]string](t, rec)["error"])

	rec = request(router, http.MethodPost, "/api/candidates",
		map[string]any{"voter_id": voter.ID, "list_id": list.ID, "candidate_order": 1}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	candidate := decode[roster.Candidate](t, rec)
	require.Equal(t, "Amal Haddad", candidate.FullName)
	require.Equal(t, "Unity", candidate.ListName)

	rec = request(router, http.MethodPost, "/api/candidates",
		map[string]any{"voter_id": int64(999), "list_id": list.ID}, admin)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Candidacy pins both the voter row and the list.
	rec = request(router, http.MethodDelete, "/api/voters/"+strconv.FormatInt(voter.ID, 10), nil, admin)
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = request(router, http.MethodDelete, "/api/lists/"+strconv.FormatInt(list.ID, 10), nil, admin)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = request(router, http.MethodPatch, "/api/voters/"+strconv.FormatInt(voter.ID, 10),
		map[string]any{"eligible": false}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decode[roster.Voter](t, rec).Eligible)

	rec = request(router, http.MethodPatch, "/api/lists/"+strconv.FormatInt(list.ID, 10),
		map[string]any{"list_order": 5}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(5), decode[roster.List](t, rec).ListOrder)

	rec = request(router, http.MethodDelete, "/api/candidates/"+strconv.FormatInt(candidate.ID, 10), nil, admin)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = request(router, http.MethodDelete, "/api/lists/"+strconv.FormatInt(list.ID, 10), nil, admin)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = request(router, http.MethodGet, "/api/voters/"+strconv.FormatInt(voter.ID, 10), nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = request(router, http.MethodGet, "/api/voters/999", nil, admin)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = request(router, http.MethodPatch, "/api/lists/abc", map[string]any{"list_order": 2}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualReconcile(t *testing.T) {
	ledgerStore := &fakes.LedgerStore{
		ReplayValue:  map[int64]tally.SourceCount{1: {Male: 3, Female: 2}},
		ValidBallots: 5,
	}
	rosterStore := &fakes.RosterStore{
		Candidates: []roster.Candidate{
			{ID: 1, VoterID: 10, ListID: 100, CandidateOrder: 1, FullName: "Amal Haddad", ListName: "Unity"},
		},
		Scores: map[int64]roster.Score{1: {FromMale: 3, FromFemale: 1}},
	}
	ctler, router := newAdmin(t, ledgerStore, rosterStore)
	admin := asCookie(sessionCookie(ctler, "root", roster.RoleAdmin))

	rec := request(router, http.MethodPost, "/api/reconcile", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[roster.ReconcileRun](t, rec)
	require.Equal(t, roster.TriggerManual, run.Trigger)
	require.Equal(t, int64(1), run.CandidatesRepaired)
	require.Equal(t, roster.Score{FromMale: 3, FromFemale: 2}, rosterStore.Scores[1])

	rec = request(router, http.MethodGet, "/api/reconcile/runs", nil,
		asCookie(sessionCookie(ctler, "op1", roster.RoleOperator)))
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]roster.ReconcileRun](t, rec)
	require.Len(t, runs, 1)
	require.Equal(t, run.ID, runs[0].ID)

	rec = request(router, http.MethodGet, "/api/reconcile/runs?limit=0", nil, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid limit", decode[map[string]string](t, rec)["error"])
	rec = request(router, http.MethodGet, "/api/reconcile/runs?limit=abc", nil, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualReconcileFailure(t *testing.T) {
	ledgerStore := &fakes.LedgerStore{ReplayErr: errTest}
	rosterStore := &fakes.RosterStore{}
	ctler, router := newAdmin(t, ledgerStore, rosterStore)

	rec := request(router, http.MethodPost, "/api/reconcile", nil,
		asCookie(sessionCookie(ctler, "root", roster.RoleAdmin)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "reconciliation failed", decode[map[string]string](t, rec)["error"])
	require.Empty(t, rosterStore.Runs, "failed pass leaves no audit row")
}

func TestExportBallotsCSV(t *testing.T) {
	postDate := time.Date(2026, 5, 17, 10, 30, 0, 0, time.UTC)
	ledgerStore := &fakes.LedgerStore{
		Lines: []ledger.BallotLine{{
			BallotID:     42,
			CandidateID:  1,
			Vote:         1,
			BallotType:   ledger.BallotTypeValid,
			BallotSource: ledger.SourceFemale,
			StationID:    7,
			Operator:     "op1",
			PostDate:     postDate,
		}},
	}
	_, router := newAdmin(t, ledgerStore, &fakes.RosterStore{})

	rec := request(router, http.MethodGet, "/api/exports/ballots.csv", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(router, http.MethodGet, "/api/exports/ballots.csv", nil, asToken("devtoken"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="ballots-`)

	rows := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, rows, 2)
	require.Equal(t, "ballot_id,candidate_id,vote,ballot_type,ballot_source,station_id,operator,post_date", rows[0])
	require.Equal(t, "42,1,1,valid,female,7,op1,2026-05-17T10:30:00Z", rows[1])
}

func TestExportScoresWorkbook(t *testing.T) {
	rosterStore := &fakes.RosterStore{
		Lists: []roster.List{{ID: 100, Name: "Unity", ListOrder: 1}},
		Candidates: []roster.Candidate{
			{ID: 1, VoterID: 10, ListID: 100, CandidateOrder: 1, FullName: "Amal Haddad", ListName: "Unity"},
		},
		Eligible: 10,
	}
	_, router := newAdmin(t, &fakes.LedgerStore{}, rosterStore)

	rec := request(router, http.MethodGet, "/api/exports/scores.xlsx", nil, asToken("devtoken"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="scores-`)
	require.NotZero(t, rec.Body.Len())
}

func TestAdminHealth(t *testing.T) {
	ledgerStore := &fakes.LedgerStore{}
	rosterStore := &fakes.RosterStore{}
	_, router := newAdmin(t, ledgerStore, rosterStore)

	rec := request(router, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	rosterStore.HealthErr = errTest
	rec = request(router, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "errored", decode[map[string]string](t, rec)["status"])
}
