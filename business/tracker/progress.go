package tracker

import (
	"github.com/nowtrain/backend/business/data/station"
)

// Acceleration and deceleration phase lengths of the speed profile, seconds.
const (
	accelSeconds = 30.0
	decelSeconds = 25.0
)

// Solver decides where a trip is between its realtime stops at an instant.
type Solver struct {
	dwell *station.DwellCache
}

// NewSolver binds the solver to the dwell cache it synthesizes departures
// from.
func NewSolver(dwell *station.DwellCache) *Solver {
	return &Solver{dwell: dwell}
}

// Compute evaluates one trip at the instant now. The caller is expected to
// have clamped now against the feed header timestamp.
func (s *Solver) Compute(sched *TrainSchedule, now int64) SegmentProgress {
	result := SegmentProgress{
		TripId:        sched.TripId,
		TrainNumber:   sched.TrainNumber,
		Direction:     sched.Direction,
		NowTs:         now,
		Status:        StatusInvalid,
		FeedTimestamp: sched.FeedTimestamp,
	}
	if len(sched.OrderedSeqs) < 2 {
		return result
	}

	stops := make([]*RealtimeStationSchedule, 0, len(sched.OrderedSeqs))
	for _, seq := range sched.OrderedSeqs {
		stops = append(stops, sched.SchedulesBySeq[seq])
	}
	segmentCount := len(stops) - 1

	// A train sitting at a station wins over any surrounding interval.
	for _, stop := range stops {
		if stop.ArrivalTime == nil {
			continue
		}
		depart := s.effectiveDeparture(stop)
		if depart == nil {
			continue
		}
		if *stop.ArrivalTime <= now && now <= *depart {
			zero := 0.0
			result.Status = StatusStopped
			result.PrevStationId = stop.StationId
			result.NextStationId = stop.StationId
			result.PrevSeq = stop.StopSequence
			result.NextSeq = stop.StopSequence
			result.T0Departure = stop.DepartureTime
			result.T1Arrival = stop.ArrivalTime
			result.Progress = &zero
			result.DelaySeconds = stop.DelaySeconds
			result.SegmentCount = segmentCount
			return result
		}
	}

	validIntervals := 0
	for i := 0; i+1 < len(stops); i++ {
		prev, next := stops[i], stops[i+1]
		t0 := s.effectiveDeparture(prev)
		t1 := next.ArrivalTime
		if t1 == nil {
			t1 = next.DepartureTime
		}
		if t0 == nil || t1 == nil || *t1 <= *t0 {
			continue
		}
		validIntervals++
		if now < *t0 || now > *t1 {
			continue
		}

		progress := trapezoidProgress(float64(now-*t0), float64(*t1-*t0))
		result.Status = StatusRunning
		result.PrevStationId = prev.StationId
		result.NextStationId = next.StationId
		result.PrevSeq = prev.StopSequence
		result.NextSeq = next.StopSequence
		result.T0Departure = t0
		result.T1Arrival = t1
		result.Progress = &progress
		result.DelaySeconds = next.DelaySeconds
		result.SegmentCount = segmentCount
		return result
	}

	if validIntervals == 0 {
		return result
	}

	// Before the first stop or past the last: position unknown, but keep the
	// trip's endpoints so clients can still label it.
	first, last := stops[0], stops[len(stops)-1]
	result.Status = StatusUnknown
	result.PrevStationId = first.StationId
	result.NextStationId = last.StationId
	result.PrevSeq = first.StopSequence
	result.NextSeq = last.StopSequence
	result.T0Departure = firstOf(first.ArrivalTime, first.DepartureTime)
	result.T1Arrival = firstOf(last.DepartureTime, last.ArrivalTime)
	result.SegmentCount = segmentCount
	return result
}

func firstOf(a, b *int64) *int64 {
	if a != nil {
		return a
	}
	return b
}

// effectiveDeparture synthesizes the departure time of a stop. Feeds that
// republish single-time static timetables set arrival equal to departure, so
// an equal pair (or a missing departure) gets the station's dwell added.
func (s *Solver) effectiveDeparture(stop *RealtimeStationSchedule) *int64 {
	dwell := int64(s.dwell.DwellSeconds(stop.StationId))
	switch {
	case stop.ArrivalTime != nil && stop.DepartureTime != nil && *stop.ArrivalTime == *stop.DepartureTime:
		t := *stop.ArrivalTime + dwell
		return &t
	case stop.DepartureTime != nil:
		return stop.DepartureTime
	case stop.ArrivalTime != nil:
		t := *stop.ArrivalTime + dwell
		return &t
	}
	return nil
}

// trapezoidProgress maps elapsed seconds within a segment of the given
// duration onto [0,1] using a trapezoidal speed profile: accelerate, cruise,
// decelerate. Short segments shrink both ramps proportionally.
func trapezoidProgress(elapsed, duration float64) float64 {
	if duration <= 0 {
		return 1.0
	}
	if elapsed <= 0 {
		return 0.0
	}
	if elapsed >= duration {
		return 1.0
	}

	tAcc, tDec := accelSeconds, decelSeconds
	if duration < tAcc+tDec {
		scale := duration / (tAcc + tDec)
		tAcc *= scale
		tDec *= scale
	}
	tConst := duration - tAcc - tDec
	vPeak := 1.0 / (0.5*tAcc + tConst + 0.5*tDec)

	switch {
	case elapsed < tAcc:
		return 0.5 * (vPeak / tAcc) * elapsed * elapsed
	case elapsed < tAcc+tConst:
		return 0.5*vPeak*tAcc + vPeak*(elapsed-tAcc)
	default:
		remaining := duration - elapsed
		return 1.0 - 0.5*(vPeak/tDec)*remaining*remaining
	}
}
