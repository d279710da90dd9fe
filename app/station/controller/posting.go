package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/redis"
	"github.com/openscrutiny/tallyx/pkg/retry"
	"github.com/openscrutiny/tallyx/pkg/tally"
	"github.com/openscrutiny/tallyx/pkg/utils"
	"go.uber.org/zap"
)

// postKinds maps the posting operation to the ballot type it records. A
// "plain" posting is the only one that counts votes; blank and invalid
// ballots are recorded in the ledger but never move a score.
var postKinds = map[string]string{
	"plain":   ledger.BallotTypeValid,
	"blank":   ledger.BallotTypeBlank,
	"invalid": ledger.BallotTypeInvalid,
}

type postRequest struct {
	// CheckedIDs optionally replaces the server-side selection before
	// posting, for clients that track checks locally.
	CheckedIDs []int64 `json:"checked_ids"`
}

type postResponse struct {
	BallotID   uint64 `json:"ballot_id"`
	BallotType string `json:"ballot_type"`
	Source     string `json:"ballot_source"`
	StationID  uint16 `json:"station_id"`
	Lines      int    `json:"lines"`
	ScoreDrift bool   `json:"score_drift,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

// HandlePostBallot appends one ballot to the ledger and, for plain postings,
// bumps the per-source score counters of the checked candidates.
//
// The ledger append is all-or-nothing: when it fails the operator's checked
// set is left intact so the posting can be retried. A score-increment
// failure after a successful append is non-fatal; the ledger already holds
// the truth and the reconciler repairs the counters, so the session still
// resets and the response only carries a drift warning.
func (c *Controller) HandlePostBallot(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	ballotType, ok := postKinds[kind]
	if !ok {
		c.writeError(w, http.StatusBadRequest, "unknown ballot kind: "+kind)
		return
	}

	ctx := r.Context()
	operator := c.operatorFrom(r)

	right, err := c.App.RosterDB.GetCountingRight(ctx, operator)
	if err != nil {
		c.writeError(w, http.StatusForbidden, "no counting right")
		return
	}

	sess := c.App.Sessions.Get(operator)

	// The body is optional; an empty read posts whatever is checked.
	var in postRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if len(in.CheckedIDs) > 0 {
		sess.Clear()
		for _, id := range utils.DedupInt64(in.CheckedIDs) {
			sess.Check(id)
		}
	}

	candidates, err := c.App.RosterDB.ListCandidates(ctx)
	if err != nil {
		c.App.Logger.Error("Failed to load candidate roster", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}
	if len(candidates) == 0 {
		c.writeError(w, http.StatusConflict, "candidate roster is empty")
		return
	}

	ballotID, err := c.App.IDGen.Next()
	if err != nil {
		c.App.Logger.Error("Failed to mint ballot id", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "ballot id generation failed")
		return
	}

	postDate := time.Now().UTC()
	lines := tally.BuildBallotLines(ballotID, candidates, sess.Checked(), ballotType, *right, postDate)

	batch := make([]*ledger.BallotLine, len(lines))
	for i := range lines {
		batch[i] = &lines[i]
	}

	if err := c.App.LedgerDB.InsertBallotLines(ctx, batch); err != nil {
		// Nothing was written; the checked set stays for retry.
		c.App.Logger.Error("Ballot append failed",
			zap.Uint64("ballot_id", ballotID),
			zap.String("ballot_type", ballotType),
			zap.String("operator", operator),
			zap.Error(err))
		c.writeError(w, http.StatusBadGateway, "ledger append failed")
		return
	}

	resp := postResponse{
		BallotID:   ballotID,
		BallotType: ballotType,
		Source:     right.Source,
		StationID:  right.StationID,
		Lines:      len(lines),
	}

	if increments := tally.ScoreIncrements(lines); len(increments) > 0 {
		incErr := retry.WithBackoff(ctx, retry.QuickConfig(), c.App.Logger, "increment scores", func() error {
			return c.App.RosterDB.IncrementScores(ctx, right.Source, increments)
		})
		if incErr != nil {
			// The ballot is already in the ledger; counters drift until
			// the reconciler replays them.
			c.App.Logger.Warn("Score increments not applied",
				zap.Uint64("ballot_id", ballotID),
				zap.Int64s("candidate_ids", increments),
				zap.Error(incErr))
			resp.ScoreDrift = true
			resp.Warning = "score counters not updated; reconciliation will repair them"
		} else {
			c.publishScoresUpdated(ctx, len(increments))
		}
	}

	sess.Clear()

	c.App.Logger.Info("Ballot posted",
		zap.Uint64("ballot_id", ballotID),
		zap.String("ballot_type", ballotType),
		zap.String("ballot_source", right.Source),
		zap.Uint16("station_id", right.StationID),
		zap.Int("lines", len(lines)))

	c.publishBallotPosted(ctx, right, ballotID, ballotType, len(lines))

	c.writeJSON(w, http.StatusCreated, resp)
}

// publishBallotPosted emits the posting event on Pub/Sub for live dashboards
// and appends it to the ballots stream the reconciler consumes. Best-effort
// on both legs.
func (c *Controller) publishBallotPosted(ctx context.Context, right *roster.CountingRight, ballotID uint64, ballotType string, lineCount int) {
	if c.App.RedisClient == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"ballot_id":     strconv.FormatUint(ballotID, 10),
		"ballot_type":   ballotType,
		"ballot_source": right.Source,
		"station_id":    right.StationID,
		"lines":         lineCount,
		"posted_at":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		c.App.Logger.Warn("Failed to marshal posting event", zap.Error(err))
		return
	}

	c.App.RedisClient.Publish(ctx, redis.ChannelBallotPosted, payload)
	c.App.RedisClient.XAdd(ctx, redis.StreamBallots, map[string]interface{}{
		"ballot_id":     strconv.FormatUint(ballotID, 10),
		"ballot_type":   ballotType,
		"ballot_source": right.Source,
		"station_id":    strconv.Itoa(int(right.StationID)),
		"operator":      right.Operator,
	})
}

// publishScoresUpdated tells the read side that counters moved.
func (c *Controller) publishScoresUpdated(ctx context.Context, incremented int) {
	if c.App.RedisClient == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"incremented": incremented,
		"at":          time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	c.App.RedisClient.Publish(ctx, redis.ChannelScoresUpdated, payload)
}
