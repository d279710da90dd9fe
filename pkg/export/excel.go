// Package export renders tally results into the file formats the back
// office hands out: an Excel workbook of ranked scores and counters, and a
// CSV dump of the raw ballot ledger.
package export

import (
	"fmt"

	"github.com/openscrutiny/tallyx/pkg/tally"
	"github.com/xuri/excelize/v2"
)

const (
	sheetScores   = "Scores"
	sheetCounters = "Counters"
)

var scoreHeaders = []string{"List", "Rank", "Candidate", "From Female", "From Male", "Combined"}

// ScoresWorkbook builds the results workbook: one Scores sheet with every
// list's ranked candidates and one Counters sheet with the ballot buckets
// and turnout. The caller owns the file and should Close it after writing.
func ScoresWorkbook(board []tally.ListScores, counters tally.Counters, turnout tally.Turnout) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetScores); err != nil {
		return nil, fmt.Errorf("rename scores sheet: %w", err)
	}
	if err := writeScores(f, board); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(sheetCounters); err != nil {
		return nil, fmt.Errorf("create counters sheet: %w", err)
	}
	if err := writeCounters(f, counters, turnout); err != nil {
		return nil, err
	}

	return f, nil
}

func writeScores(f *excelize.File, board []tally.ListScores) error {
	for col, header := range scoreHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetScores, cell, header); err != nil {
			return err
		}
	}

	row := 2
	for _, list := range board {
		for _, c := range list.Candidates {
			values := []interface{}{
				list.ListName,
				c.Rank,
				c.FullName,
				c.ScoreFromFemale,
				c.ScoreFromMale,
				c.Combined,
			}
			for col, v := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheetScores, cell, v); err != nil {
					return err
				}
			}
			row++
		}
	}

	if err := f.SetColWidth(sheetScores, "A", "A", 24); err != nil {
		return err
	}
	return f.SetColWidth(sheetScores, "C", "C", 32)
}

func writeCounters(f *excelize.File, counters tally.Counters, turnout tally.Turnout) error {
	rows := [][]interface{}{
		{"Bucket", "Male", "Female", "Total"},
		{"Valid", counters.Valid.Male, counters.Valid.Female, counters.Valid.Total()},
		{"Invalid", counters.Invalid.Male, counters.Invalid.Female, counters.Invalid.Total()},
		{"Blank", counters.Blank.Male, counters.Blank.Female, counters.Blank.Total()},
		{"Distinct ballots", nil, nil, counters.DistinctBallots},
		{},
		{"Eligible voters", nil, nil, turnout.Eligible},
		{"Ballots cast", turnout.CastMale, turnout.CastFemale, turnout.Cast},
		{"Turnout rate", nil, nil, turnout.Rate},
	}

	for r, rowValues := range rows {
		for c, v := range rowValues {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetCounters, cell, v); err != nil {
				return err
			}
		}
	}

	return f.SetColWidth(sheetCounters, "A", "A", 20)
}
