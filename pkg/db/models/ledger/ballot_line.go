package ledger

import (
	"time"
)

const BallotLinesTableName = "ballot_lines"

// Ballot type values, constant across all lines of one ballot.
const (
	BallotTypeValid   = "valid"
	BallotTypeBlank   = "blank"
	BallotTypeInvalid = "invalid"
)

// Ballot sources, i.e. which counting station produced the ballot.
const (
	SourceMale   = "male"
	SourceFemale = "female"
)

// BallotLineColumns defines the schema for the ballot_lines table.
// Codecs: Delta for the mostly-increasing ids, DoubleDelta for the shared
// post_date, plain ZSTD for the low-cardinality rest.
var BallotLineColumns = []ColumnDef{
	{Name: "ballot_id", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "candidate_id", Type: "Int64", Codec: "Delta, ZSTD(1)"},
	{Name: "vote", Type: "UInt8", Codec: "ZSTD(1)"},
	{Name: "ballot_type", Type: "LowCardinality(String)", Codec: "ZSTD(1)"},
	{Name: "ballot_source", Type: "LowCardinality(String)", Codec: "ZSTD(1)"},
	{Name: "station_id", Type: "UInt16", Codec: "ZSTD(1)"},
	{Name: "operator", Type: "String", Codec: "ZSTD(1)"},
	{Name: "post_date", Type: "DateTime", Codec: "DoubleDelta, LZ4"},
}

// BallotLine is one row of the append-only ballot ledger: a single
// (ballot, candidate) vote-mark record. A physical ballot is fanned out into
// one line per roster candidate, all sharing ballot_id, ballot_type,
// ballot_source, station_id, operator and post_date. Rows are never updated
// or deleted.
//
// Query patterns:
//   - One ballot: SELECT * FROM ballot_lines WHERE ballot_id = ? ORDER BY candidate_id
//   - Counters: SELECT ... count(DISTINCT ballot_id) ... GROUP BY ballot_source
//   - Score replay: SELECT candidate_id, ballot_source, sum(vote) WHERE ballot_type = 'valid' GROUP BY ...
type BallotLine struct {
	BallotID     uint64    `ch:"ballot_id" json:"ballot_id"`
	CandidateID  int64     `ch:"candidate_id" json:"candidate_id"`
	Vote         uint8     `ch:"vote" json:"vote"`
	BallotType   string    `ch:"ballot_type" json:"ballot_type"`
	BallotSource string    `ch:"ballot_source" json:"ballot_source"`
	StationID    uint16    `ch:"station_id" json:"station_id"`
	Operator     string    `ch:"operator" json:"operator"`
	PostDate     time.Time `ch:"post_date" json:"post_date"`
}

// ValidType reports whether t is one of the three ballot types.
func ValidType(t string) bool {
	return t == BallotTypeValid || t == BallotTypeBlank || t == BallotTypeInvalid
}

// ValidSource reports whether s is a known counting source.
func ValidSource(s string) bool {
	return s == SourceMale || s == SourceFemale
}
