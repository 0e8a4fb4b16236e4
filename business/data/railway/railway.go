// Package railway loads the static railway, station and coordinate files and
// builds the merged track polylines trains are snapped to.
package railway

import (
	"encoding/json"
	"fmt"
)

// Geographic bounding box stations must fall into. Records outside it are
// dropped at load time.
const (
	minLongitude = 122.0
	maxLongitude = 154.0
	minLatitude  = 20.0
	maxLatitude  = 46.0
)

// Title carries the localized and latin names of a record.
type Title struct {
	Ja string `json:"ja"`
	En string `json:"en"`
}

// Railway is one record of railways.json.
type Railway struct {
	Id             string   `json:"id"`
	Title          Title    `json:"title"`
	Stations       []string `json:"stations"`
	Ascending      string   `json:"ascending"`
	Descending     string   `json:"descending"`
	Color          string   `json:"color"`
	CarComposition int      `json:"carComposition"`
	Loop           bool     `json:"loop"`
}

// Operator returns the operator prefix of the railway identifier.
func (r *Railway) Operator() string {
	for i, c := range r.Id {
		if c == '.' {
			return r.Id[:i]
		}
	}
	return ""
}

// Station is one record of stations.json. The railway field of the source
// may be a single identifier or a list; membership is kept as a list and the
// first entry is treated as the home line.
type Station struct {
	Id       string     `json:"id"`
	Railways stringList `json:"railway"`
	Title    Title      `json:"title"`
	Coord    []float64  `json:"coord"`
}

// HomeLine returns the station's first line membership.
func (s *Station) HomeLine() string {
	if len(s.Railways) == 0 {
		return ""
	}
	return s.Railways[0]
}

// Lon and Lat assume the coordinate passed load-time bounding-box
// validation.
func (s *Station) Lon() float64 { return s.Coord[0] }
func (s *Station) Lat() float64 { return s.Coord[1] }

// stringList accepts both a JSON string and a JSON array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = stringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("railway field is neither string nor list: %w", err)
	}
	*l = stringList(many)
	return nil
}

// SubLine is a fragment of a line's polyline. Type "main" fragments carry
// their own coordinates; type "sub" fragments reference a range of another
// line's polyline between two anchor points.
type SubLine struct {
	Type    string      `json:"type"`
	Railway string      `json:"railway"`
	Coords  [][]float64 `json:"coords"`
	Start   []float64   `json:"start"`
	End     []float64   `json:"end"`
}

// railwayShape is one record of the coordinates file.
type railwayShape struct {
	Id       string    `json:"id"`
	Color    string    `json:"color"`
	Loop     bool      `json:"loop"`
	Sublines []SubLine `json:"sublines"`
}

// coordinatesFile is the top level of coordinates.json.
type coordinatesFile struct {
	Railways []railwayShape `json:"railways"`
}
