// Package timetable loads static timetable files into typed train records
// and builds the lookup indices the realtime pipeline resolves against.
package timetable

import (
	"fmt"

	"github.com/nowtrain/backend/business/data/servicecal"
)

// StopTime is one station call of a train. Times are seconds from 00:00 of
// the service day, already corrected for midnight rollover, and nil when the
// source file omits them.
type StopTime struct {
	StationId    string
	ArrivalSec   *int
	DepartureSec *int
}

// RepresentativeSec returns the time used for ordering checks, preferring
// departure over arrival. The second value is false when the stop has
// neither time.
func (s StopTime) RepresentativeSec() (int, bool) {
	if s.DepartureSec != nil {
		return *s.DepartureSec, true
	}
	if s.ArrivalSec != nil {
		return *s.ArrivalSec, true
	}
	return 0, false
}

// TimetableTrain is one train of the static corpus.
type TimetableTrain struct {
	// BaseId is the source identifier with any service-type suffix removed,
	// e.g. "JR-East.Yamanote.400G".
	BaseId      string
	ServiceType servicecal.ServiceType
	LineId      string
	Number      string
	TrainClass  string
	Direction   string

	OriginStations      []string
	DestinationStations []string

	Stops []StopTime
}

func (t *TimetableTrain) String() string {
	return fmt.Sprintf("TimetableTrain{%s %s %s stops:%d}",
		t.BaseId, t.ServiceType, t.Direction, len(t.Stops))
}

// TrainKey identifies a train in the corpus indices.
type TrainKey struct {
	Number      string
	ServiceType servicecal.ServiceType
	Direction   string
}

// Corpus is the loaded static timetable with its indices. Built once at
// startup and read-only afterwards.
type Corpus struct {
	Trains []*TimetableTrain

	byKey        map[TrainKey]*TimetableTrain
	seqStations  map[TrainKey]map[int]string
	numbersIndex map[string][]*TimetableTrain
}

// NewCorpus indexes an already built train list. LoadDir is the usual entry
// point; this exists for callers assembling trains in memory.
func NewCorpus(trains []*TimetableTrain) *Corpus {
	return buildIndices(trains)
}

// buildIndices numbers each train's stops from 1 and registers the train
// under its key. Duplicate keys keep the first train seen.
func buildIndices(trains []*TimetableTrain) *Corpus {
	c := &Corpus{
		Trains:       trains,
		byKey:        make(map[TrainKey]*TimetableTrain),
		seqStations:  make(map[TrainKey]map[int]string),
		numbersIndex: make(map[string][]*TimetableTrain),
	}
	for _, t := range trains {
		key := TrainKey{Number: t.Number, ServiceType: t.ServiceType, Direction: t.Direction}
		if _, exists := c.byKey[key]; exists {
			continue
		}
		c.byKey[key] = t

		seqMap := make(map[int]string, len(t.Stops))
		for i, stop := range t.Stops {
			seqMap[i+1] = stop.StationId
		}
		c.seqStations[key] = seqMap
		c.numbersIndex[t.Number] = append(c.numbersIndex[t.Number], t)
	}
	return c
}

// GetStaticTrain looks up a train by the exact key, relaxing service type and
// then direction when the exact triple is absent.
func (c *Corpus) GetStaticTrain(number string, serviceType servicecal.ServiceType, direction string) *TimetableTrain {
	if t, ok := c.byKey[TrainKey{Number: number, ServiceType: serviceType, Direction: direction}]; ok {
		return t
	}
	candidates := c.numbersIndex[number]
	for _, t := range candidates {
		if t.Direction == direction {
			return t
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return nil
}

// SequenceStations returns the stop-sequence to station map for a train,
// using the same relaxed lookup policy as GetStaticTrain.
func (c *Corpus) SequenceStations(number string, serviceType servicecal.ServiceType, direction string) map[int]string {
	t := c.GetStaticTrain(number, serviceType, direction)
	if t == nil {
		return nil
	}
	return c.seqStations[TrainKey{Number: t.Number, ServiceType: t.ServiceType, Direction: t.Direction}]
}
