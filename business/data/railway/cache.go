package railway

import (
	"encoding/json"
	"fmt"
	logger "log"
	"os"
	"path/filepath"
	"strings"
)

// Cache holds the static railway corpus. It is built once at startup and
// read-only for the process lifetime, so readers take no lock.
type Cache struct {
	railways       []Railway
	railwayById    map[string]*Railway
	stations       []Station
	stationById    map[string]*Station
	stationsByLine map[string][]*Station
	polylines      map[string][][]float64
	stationVertex  map[string]int
	loopLines      map[string]bool
}

// Load reads railways.json, stations.json and coordinates.json from dataDir,
// merges every line's sublines and indexes stations against the merged
// polylines. Lines whose merge comes up empty are skipped; Load fails only
// when no configured line has a merged polyline.
func Load(log *logger.Logger, dataDir string) (*Cache, error) {
	c := &Cache{
		railwayById:    make(map[string]*Railway),
		stationById:    make(map[string]*Station),
		stationsByLine: make(map[string][]*Station),
		polylines:      make(map[string][][]float64),
		stationVertex:  make(map[string]int),
		loopLines:      make(map[string]bool),
	}

	if err := loadJSONFile(filepath.Join(dataDir, "railways.json"), &c.railways); err != nil {
		return nil, err
	}
	for i := range c.railways {
		r := &c.railways[i]
		c.railwayById[r.Id] = r
		if r.Loop {
			c.loopLines[r.Id] = true
		}
	}

	var rawStations []Station
	if err := loadJSONFile(filepath.Join(dataDir, "stations.json"), &rawStations); err != nil {
		return nil, err
	}
	dropped := 0
	for i := range rawStations {
		s := rawStations[i]
		if !validCoord(s.Coord) {
			log.Printf("railway: dropping station %s: coordinate missing or out of bounds", s.Id)
			dropped++
			continue
		}
		c.stations = append(c.stations, s)
	}
	for i := range c.stations {
		s := &c.stations[i]
		c.stationById[s.Id] = s
		for _, line := range s.Railways {
			c.stationsByLine[line] = append(c.stationsByLine[line], s)
		}
	}
	log.Printf("railway: loaded %d railways, %d stations (%d dropped)",
		len(c.railways), len(c.stations), dropped)

	var coords coordinatesFile
	if err := loadJSONFile(filepath.Join(dataDir, "coordinates.json"), &coords); err != nil {
		return nil, err
	}
	for i := range coords.Railways {
		if coords.Railways[i].Loop {
			c.loopLines[coords.Railways[i].Id] = true
		}
	}

	m := newMerger(log, coords.Railways)
	for _, shape := range coords.Railways {
		merged := m.polyline(shape.Id)
		if len(merged) == 0 {
			log.Printf("railway: line %s merged to an empty polyline", shape.Id)
			continue
		}
		c.polylines[shape.Id] = merged
	}

	configuredWithShape := 0
	for key, cfg := range Lines {
		if len(c.polylines[cfg.PolylineId]) == 0 {
			log.Printf("railway: configured line %s has no merged polyline", key)
			continue
		}
		configuredWithShape++
	}
	if configuredWithShape == 0 {
		return nil, fmt.Errorf("no configured line has a merged polyline")
	}

	c.buildStationVertexIndex()
	return c, nil
}

// buildStationVertexIndex records, for every station on a line with a merged
// polyline, the polyline vertex nearest to the station's coordinate.
func (c *Cache) buildStationVertexIndex() {
	for i := range c.stations {
		s := &c.stations[i]
		polyline := c.polylines[s.HomeLine()]
		if len(polyline) == 0 {
			continue
		}
		c.stationVertex[s.Id] = nearestVertex(polyline, s.Coord)
	}
}

func loadJSONFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading data file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing data file %s: %w", path, err)
	}
	return nil
}

func validCoord(coord []float64) bool {
	if len(coord) < 2 {
		return false
	}
	lon, lat := coord[0], coord[1]
	return lon >= minLongitude && lon <= maxLongitude &&
		lat >= minLatitude && lat <= maxLatitude
}

// Railways returns all railway records in file order.
func (c *Cache) Railways() []Railway {
	return c.railways
}

// RailwayById returns the railway record for id.
func (c *Cache) RailwayById(id string) (*Railway, bool) {
	r, ok := c.railwayById[id]
	return r, ok
}

// StationById returns the station record for id.
func (c *Cache) StationById(id string) (*Station, bool) {
	s, ok := c.stationById[id]
	return s, ok
}

// StationsOfLine returns the stations belonging to the line, in file order.
func (c *Cache) StationsOfLine(lineId string) []*Station {
	return c.stationsByLine[lineId]
}

// StationCoord returns the (lon, lat) of a station.
func (c *Cache) StationCoord(stationId string) (float64, float64, bool) {
	s, ok := c.stationById[stationId]
	if !ok {
		return 0, 0, false
	}
	return s.Lon(), s.Lat(), true
}

// Polyline returns the merged polyline of a line.
func (c *Cache) Polyline(lineId string) ([][]float64, bool) {
	p, ok := c.polylines[lineId]
	return p, ok
}

// StationVertexIndex returns the polyline vertex index nearest the station.
func (c *Cache) StationVertexIndex(stationId string) (int, bool) {
	idx, ok := c.stationVertex[stationId]
	return idx, ok
}

// IsLoop reports whether the line is flagged as a loop.
func (c *Cache) IsLoop(lineId string) bool {
	return c.loopLines[lineId]
}

// SearchStations performs a case-insensitive substring match across the
// localized and latin station names. Exact matches rank first.
func (c *Cache) SearchStations(query string, limit int) []*Station {
	if query == "" || limit <= 0 {
		return nil
	}
	needle := strings.ToLower(query)

	var exact, partial []*Station
	for i := range c.stations {
		s := &c.stations[i]
		ja := strings.ToLower(s.Title.Ja)
		en := strings.ToLower(s.Title.En)
		switch {
		case ja == needle || en == needle:
			exact = append(exact, s)
		case strings.Contains(ja, needle) || strings.Contains(en, needle):
			partial = append(partial, s)
		}
	}

	results := append(exact, partial...)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
