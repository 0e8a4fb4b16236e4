// Package tracker turns the GTFS-RT TripUpdate feed into live map positions:
// it normalizes the feed into per-trip realtime timetables, solves each
// trip's segment and progress, and snaps progress onto the track polyline.
package tracker

import "fmt"

// RealtimeStationSchedule is one stop of a trip's realtime timetable. Times
// are unix seconds. StationId is empty when no resolution strategy worked;
// such stops still participate in time ordering.
type RealtimeStationSchedule struct {
	StopSequence  int
	StationId     string
	RawStopId     string
	ArrivalTime   *int64
	DepartureTime *int64
	DelaySeconds  int
	Resolved      bool
}

// TrainSchedule is the canonical realtime timetable of one active trip.
// OrderedSequences is the ascending sort of the kept stop sequences and
// always has at least two entries.
type TrainSchedule struct {
	TripId         string
	TrainNumber    string
	ServiceDate    string
	Direction      string
	FeedTimestamp  int64
	SchedulesBySeq map[int]*RealtimeStationSchedule
	OrderedSeqs    []int
}

func (s *TrainSchedule) String() string {
	return fmt.Sprintf("TrainSchedule{%s %s %s stops:%d}",
		s.TripId, s.TrainNumber, s.Direction, len(s.OrderedSeqs))
}

// Status describes what the solver determined about a trip.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusUnknown Status = "unknown"
	StatusInvalid Status = "invalid"
)

// SegmentProgress is the solver's verdict for one trip at one instant.
// When Status is StatusStopped, PrevStationId equals NextStationId and
// Progress is 0. Progress is nil when no segment matched.
type SegmentProgress struct {
	TripId      string
	TrainNumber string
	Direction   string

	PrevStationId string
	NextStationId string
	PrevSeq       int
	NextSeq       int

	NowTs       int64
	T0Departure *int64
	T1Arrival   *int64
	Progress    *float64
	Status      Status

	DelaySeconds  int
	FeedTimestamp int64
	SegmentCount  int
}
