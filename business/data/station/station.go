// Package station provides the relational store for station metadata and
// dwell ranks, plus the in-process dwell cache the position solver reads.
package station

import "fmt"

// Record is a row of the stations table.
type Record struct {
	Id            string   `db:"id"`
	LineId        string   `db:"line_id"`
	NameLocalized *string  `db:"name_localized"`
	NameLatin     *string  `db:"name_latin"`
	Longitude     *float64 `db:"longitude"`
	Latitude      *float64 `db:"latitude"`
}

// DwellRank is a row of the station_ranks table.
type DwellRank struct {
	StationId    string `db:"station_id"`
	Rank         string `db:"rank"`
	DwellSeconds int    `db:"dwell_seconds"`
}

// Dwell seconds per rank. Rank B is the default for unranked stations.
const (
	RankS = "S"
	RankA = "A"
	RankB = "B"

	DwellSecondsRankS   = 50
	DwellSecondsRankA   = 35
	DwellSecondsRankB   = 20
	DefaultDwellSeconds = DwellSecondsRankB
)

// DefaultDwellForRank returns the default dwell seconds of a rank.
func DefaultDwellForRank(rank string) (int, error) {
	switch rank {
	case RankS:
		return DwellSecondsRankS, nil
	case RankA:
		return DwellSecondsRankA, nil
	case RankB:
		return DwellSecondsRankB, nil
	}
	return 0, fmt.Errorf("unknown station rank %q", rank)
}

// ValidateRank checks an upsert payload. Rank must be S, A or B and dwell
// must not be negative.
func ValidateRank(rank string, dwellSeconds int) error {
	if _, err := DefaultDwellForRank(rank); err != nil {
		return err
	}
	if dwellSeconds < 0 {
		return fmt.Errorf("dwell seconds must not be negative, got %d", dwellSeconds)
	}
	return nil
}
