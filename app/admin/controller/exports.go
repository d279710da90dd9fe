package controller

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/export"
	"github.com/openscrutiny/tallyx/pkg/tally"
)

// HandleExportScores streams the scoreboard, counters and turnout as a
// spreadsheet snapshot.
func (c *Controller) HandleExportScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lists, err := c.App.RosterDB.ListLists(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	candidates, err := c.App.RosterDB.ListCandidates(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	counters, err := c.App.LedgerDB.Counters(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "ledger query failed")
		return
	}
	eligible, err := c.App.RosterDB.CountEligibleVoters(ctx)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	board := tally.Scoreboard(lists, candidates)
	turnout := tally.ComputeTurnout(eligible, counters)

	f, err := export.ScoresWorkbook(board, counters, turnout)
	if err != nil {
		c.App.Logger.Error("Failed to build scores workbook", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("scores-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if _, err := f.WriteTo(w); err != nil {
		// Headers are already gone; nothing left to do but log.
		c.App.Logger.Error("Failed to stream scores workbook", zap.Error(err))
		return
	}

	c.App.Logger.Info("Scores exported", zap.String("by", c.currentUser(r)))
}

// HandleExportBallots streams the entire ballot ledger as CSV, one row per
// ballot line.
func (c *Controller) HandleExportBallots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := fmt.Sprintf("ballots-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	err := export.WriteBallotLinesCSV(w, func(fn func(ledger.BallotLine) error) error {
		return c.App.LedgerDB.StreamBallotLines(ctx, fn)
	})
	if err != nil {
		c.App.Logger.Error("Failed to stream ballot ledger", zap.Error(err))
		return
	}

	c.App.Logger.Info("Ballot ledger exported", zap.String("by", c.currentUser(r)))
}
