package tracker

import (
	"context"
	"errors"
	logger "log"
	"math"
	"sort"
	"time"

	"github.com/nowtrain/backend/business/data/railway"
)

// ErrUnknownLine reports a line identifier outside the configured set.
var ErrUnknownLine = errors.New("unknown line")

// Response statuses. A feed failure degrades to StatusError with an empty
// position list rather than surfacing an error to the client.
const (
	ResponseSuccess = "success"
	ResponseNoData  = "no_data"
	ResponseError   = "error"
)

const responseSource = "odpt-gtfs-rt"

// PositionsResponse is the payload of one position query.
type PositionsResponse struct {
	Source      string          `json:"source"`
	LineId      string          `json:"line_id"`
	LineName    string          `json:"line_name"`
	Status      string          `json:"status"`
	Timestamp   int64           `json:"timestamp"`
	TotalTrains int             `json:"total_trains"`
	Positions   []TrainPosition `json:"positions"`
}

// TrainPosition is one train of a position response.
type TrainPosition struct {
	TripId      string        `json:"trip_id"`
	TrainNumber string        `json:"train_number"`
	Direction   string        `json:"direction"`
	Status      string        `json:"status"`
	Progress    *float64      `json:"progress"`
	Delay       int           `json:"delay"`
	Location    *LocationJSON `json:"location,omitempty"`
	Segment     SegmentJSON   `json:"segment"`
	Times       TimesJSON     `json:"times"`
	Debug       DebugJSON     `json:"debug"`
}

// LocationJSON carries the snapped coordinate, rounded for transport.
type LocationJSON struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Bearing   *float64 `json:"bearing,omitempty"`
}

// SegmentJSON names the stops bracketing the train.
type SegmentJSON struct {
	PrevSeq       int    `json:"prev_seq"`
	NextSeq       int    `json:"next_seq"`
	PrevStationId string `json:"prev_station_id"`
	NextStationId string `json:"next_station_id"`
}

// TimesJSON carries the instants the progress was computed against.
type TimesJSON struct {
	NowTs       int64  `json:"now_ts"`
	T0Departure *int64 `json:"t0_departure"`
	T1Arrival   *int64 `json:"t1_arrival"`
}

// DebugJSON carries feed-level diagnostics.
type DebugJSON struct {
	FeedTimestamp int64 `json:"feed_timestamp"`
}

// Tracker runs the full position pipeline for one request: fetch, normalize,
// solve, snap.
type Tracker struct {
	log        *logger.Logger
	feed       FeedSource
	normalizer *Normalizer
	solver     *Solver
	snapper    *Snapper
	now        func() time.Time
}

// New wires the pipeline stages together.
func New(log *logger.Logger, feed FeedSource, normalizer *Normalizer, solver *Solver, snapper *Snapper) *Tracker {
	return &Tracker{
		log:        log,
		feed:       feed,
		normalizer: normalizer,
		solver:     solver,
		snapper:    snapper,
		now:        time.Now,
	}
}

// TrainPositions computes the live positions of every active train on the
// line. Feed failures yield a degraded response, never an error; the only
// error returned is ErrUnknownLine.
func (t *Tracker) TrainPositions(ctx context.Context, lineId string) (*PositionsResponse, error) {
	lineKey, cfg, ok := railway.LineConfigFor(lineId)
	if !ok {
		return nil, ErrUnknownLine
	}

	response := &PositionsResponse{
		Source:    responseSource,
		LineId:    lineKey,
		LineName:  cfg.Name,
		Positions: []TrainPosition{},
	}

	at := t.now()
	response.Timestamp = at.Unix()

	feed, err := t.feed.FetchTripUpdates(ctx)
	if err != nil {
		t.log.Printf("tracker: feed fetch for %s failed: %v", lineKey, err)
		response.Status = ResponseError
		return response, nil
	}

	schedules := t.normalizer.Normalize(feed, Target{Route: cfg, LineKey: lineKey}, at)
	if len(schedules) == 0 {
		response.Status = ResponseNoData
		return response, nil
	}

	// One shared instant for the whole response, never behind the feed's own
	// clock.
	now := at.Unix()
	if ts := int64(feed.GetHeader().GetTimestamp()); ts > now {
		now = ts
	}

	for _, sched := range schedules {
		progress := t.solver.Compute(sched, now)
		if progress.Status == StatusInvalid {
			continue
		}
		position := TrainPosition{
			TripId:      progress.TripId,
			TrainNumber: progress.TrainNumber,
			Direction:   progress.Direction,
			Status:      string(progress.Status),
			Delay:       progress.DelaySeconds,
			Segment: SegmentJSON{
				PrevSeq:       progress.PrevSeq,
				NextSeq:       progress.NextSeq,
				PrevStationId: progress.PrevStationId,
				NextStationId: progress.NextStationId,
			},
			Times: TimesJSON{
				NowTs:       progress.NowTs,
				T0Departure: progress.T0Departure,
				T1Arrival:   progress.T1Arrival,
			},
			Debug: DebugJSON{FeedTimestamp: progress.FeedTimestamp},
		}
		if progress.Progress != nil {
			rounded := roundTo(*progress.Progress, 4)
			position.Progress = &rounded
		}
		if loc, ok := t.snapper.Locate(&progress, cfg.PolylineId); ok {
			position.Location = &LocationJSON{
				Latitude:  roundTo(loc.Latitude, 6),
				Longitude: roundTo(loc.Longitude, 6),
				Bearing:   loc.Bearing,
			}
		}
		response.Positions = append(response.Positions, position)
	}

	sort.Slice(response.Positions, func(i, j int) bool {
		a, b := response.Positions[i], response.Positions[j]
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.TrainNumber < b.TrainNumber
	})

	response.TotalTrains = len(response.Positions)
	if response.TotalTrains == 0 {
		response.Status = ResponseNoData
	} else {
		response.Status = ResponseSuccess
	}
	return response, nil
}

// WithNow overrides the clock, for tests.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
