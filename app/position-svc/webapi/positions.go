package webapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nowtrain/backend/business/data/station"
	"github.com/nowtrain/backend/business/tracker"
)

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// handlePositions runs the position pipeline for one line. Feed trouble is
// reported inside the payload, so the handler itself only fails on an
// unknown line.
func (s *webService) handlePositions(w http.ResponseWriter, r *http.Request) {
	lineId := muxVar(r, "line_id")

	response, err := s.tracker.TrainPositions(r.Context(), lineId)
	if err != nil {
		if errors.Is(err, tracker.ErrUnknownLine) {
			s.respondError(w, http.StatusNotFound, "unknown line %q", lineId)
			return
		}
		s.log.Printf("webapi: positions for %s: %v", lineId, err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type rankUpsertRequest struct {
	Rank      string `json:"rank"`
	DwellTime *int   `json:"dwell_time"`
}

// handleRankUpsert persists a station's dwell rank and refreshes the cache.
func (s *webService) handleRankUpsert(w http.ResponseWriter, r *http.Request) {
	stationId := muxVar(r, "station_id")
	if _, ok := s.railways.StationById(stationId); !ok {
		s.respondError(w, http.StatusNotFound, "unknown station %q", stationId)
		return
	}

	var req rankUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed body: %v", err)
		return
	}

	dwellSeconds := 0
	if req.DwellTime != nil {
		dwellSeconds = *req.DwellTime
	} else {
		var err error
		dwellSeconds, err = station.DefaultDwellForRank(req.Rank)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "%v", err)
			return
		}
	}

	rank := station.DwellRank{
		StationId:    stationId,
		Rank:         req.Rank,
		DwellSeconds: dwellSeconds,
	}
	if err := station.ValidateRank(rank.Rank, rank.DwellSeconds); err != nil {
		s.respondError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := s.ranks.Upsert(r.Context(), rank); err != nil {
		s.log.Printf("webapi: rank upsert for %s: %v", stationId, err)
		s.respondError(w, http.StatusInternalServerError, "failed to save rank")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"station_id":    rank.StationId,
		"rank":          rank.Rank,
		"dwell_seconds": rank.DwellSeconds,
	})
}
