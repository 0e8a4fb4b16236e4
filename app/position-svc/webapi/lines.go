package webapi

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/nowtrain/backend/business/data/railway"
)

type titleJSON struct {
	Ja string `json:"ja"`
	En string `json:"en"`
}

type lineSummary struct {
	Id             string    `json:"id"`
	InternalId     string    `json:"internal_id"`
	Name           titleJSON `json:"name"`
	Color          string    `json:"color"`
	Loop           bool      `json:"loop"`
	Ascending      string    `json:"ascending,omitempty"`
	Descending     string    `json:"descending,omitempty"`
	CarComposition int       `json:"car_composition,omitempty"`
	StationCount   int       `json:"station_count"`
}

func (s *webService) lineSummaryFor(key string, cfg railway.LineConfig) lineSummary {
	summary := lineSummary{
		Id:           key,
		InternalId:   cfg.PolylineId,
		Name:         titleJSON{Ja: cfg.Name},
		Loop:         s.railways.IsLoop(cfg.PolylineId),
		StationCount: len(s.railways.StationsOfLine(cfg.PolylineId)),
	}
	if r, ok := s.railways.RailwayById(cfg.PolylineId); ok {
		summary.Name = titleJSON{Ja: r.Title.Ja, En: r.Title.En}
		summary.Color = r.Color
		summary.Ascending = r.Ascending
		summary.Descending = r.Descending
		summary.CarComposition = r.CarComposition
	}
	return summary
}

func (s *webService) handleLines(w http.ResponseWriter, r *http.Request) {
	operator := r.URL.Query().Get("operator")

	var lines []lineSummary
	for key, cfg := range railway.Lines {
		if operator != "" {
			rw, ok := s.railways.RailwayById(cfg.PolylineId)
			if !ok || rw.Operator() != operator {
				continue
			}
		}
		lines = append(lines, s.lineSummaryFor(key, cfg))
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Id < lines[j].Id })

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"lines": lines,
		"total": len(lines),
	})
}

func (s *webService) handleLine(w http.ResponseWriter, r *http.Request) {
	id := muxVar(r, "line_id")
	key, cfg, ok := railway.LineConfigFor(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown line %q", id)
		return
	}
	s.respondJSON(w, http.StatusOK, s.lineSummaryFor(key, cfg))
}

type stationSummary struct {
	Id           string    `json:"id"`
	Name         titleJSON `json:"name"`
	Longitude    float64   `json:"longitude"`
	Latitude     float64   `json:"latitude"`
	Lines        []string  `json:"lines"`
	Rank         string    `json:"rank,omitempty"`
	DwellSeconds int       `json:"dwell_seconds"`
}

func (s *webService) stationSummaryFor(st *railway.Station) stationSummary {
	summary := stationSummary{
		Id:           st.Id,
		Name:         titleJSON{Ja: st.Title.Ja, En: st.Title.En},
		Longitude:    st.Lon(),
		Latitude:     st.Lat(),
		Lines:        st.Railways,
		DwellSeconds: s.dwell.DwellSeconds(st.Id),
	}
	if rank, ok := s.dwell.Rank(st.Id); ok {
		summary.Rank = rank.Rank
	}
	return summary
}

func (s *webService) handleStations(w http.ResponseWriter, r *http.Request) {
	lineId := r.URL.Query().Get("lineId")
	if lineId == "" {
		s.respondError(w, http.StatusBadRequest, "lineId query parameter is required")
		return
	}
	key, cfg, ok := railway.LineConfigFor(lineId)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown line %q", lineId)
		return
	}

	stations := s.railways.StationsOfLine(cfg.PolylineId)
	out := make([]stationSummary, 0, len(stations))
	for _, st := range stations {
		out = append(out, s.stationSummaryFor(st))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"line_id":  key,
		"stations": out,
		"total":    len(out),
	})
}

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

func (s *webService) handleStationSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	matches := s.railways.SearchStations(query, limit)
	out := make([]stationSummary, 0, len(matches))
	for _, st := range matches {
		out = append(out, s.stationSummaryFor(st))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":    query,
		"stations": out,
		"total":    len(out),
	})
}

// handleShape serves the merged polyline of a line as a GeoJSON
// FeatureCollection with a single LineString feature.
func (s *webService) handleShape(w http.ResponseWriter, r *http.Request) {
	lineId := r.URL.Query().Get("lineId")
	if lineId == "" {
		s.respondError(w, http.StatusBadRequest, "lineId query parameter is required")
		return
	}
	key, cfg, ok := railway.LineConfigFor(lineId)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown line %q", lineId)
		return
	}
	polyline, ok := s.railways.Polyline(cfg.PolylineId)
	if !ok {
		s.respondError(w, http.StatusNotFound, "line %q has no shape", lineId)
		return
	}

	properties := map[string]interface{}{
		"line_id": key,
		"name":    cfg.Name,
	}
	if rw, ok := s.railways.RailwayById(cfg.PolylineId); ok {
		properties["color"] = rw.Color
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"type": "FeatureCollection",
		"features": []map[string]interface{}{
			{
				"type":       "Feature",
				"properties": properties,
				"geometry": map[string]interface{}{
					"type":        "LineString",
					"coordinates": polyline,
				},
			},
		},
	})
}
