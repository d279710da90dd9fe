package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
)

var csvHeader = []string{
	"ballot_id", "candidate_id", "vote", "ballot_type", "ballot_source",
	"station_id", "operator", "post_date",
}

// LineStreamer walks ballot lines in ledger order, invoking the callback per
// line. The ClickHouse store's StreamBallotLines satisfies it.
type LineStreamer func(fn func(ledger.BallotLine) error) error

// WriteBallotLinesCSV streams the full ledger as CSV. Rows pass through one
// at a time, so the export stays flat in memory regardless of ledger size.
func WriteBallotLinesCSV(w io.Writer, stream LineStreamer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	err := stream(func(line ledger.BallotLine) error {
		return cw.Write([]string{
			strconv.FormatUint(line.BallotID, 10),
			strconv.FormatInt(line.CandidateID, 10),
			strconv.Itoa(int(line.Vote)),
			line.BallotType,
			line.BallotSource,
			strconv.Itoa(int(line.StationID)),
			line.Operator,
			line.PostDate.UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
