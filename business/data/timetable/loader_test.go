package timetable

import (
	"io"
	logger "log"
	"testing"

	"github.com/matryer/is"
	"github.com/nowtrain/backend/business/data/servicecal"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, "", 0)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantNil bool
		wantOk  bool
	}{
		{name: "HH:MM", value: "05:00", want: 18000, wantOk: true},
		{name: "HH:MM:SS", value: "05:03:30", want: 18210, wantOk: true},
		{name: "empty is nil", value: "", wantNil: true, wantOk: true},
		{name: "24:00 rejected", value: "24:00", wantOk: false},
		{name: "25:10 rejected", value: "25:10", wantOk: false},
		{name: "garbage rejected", value: "5am", wantOk: false},
		{name: "negative minute rejected", value: "05:-1", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got, ok := parseClock(tt.value)
			is.Equal(ok, tt.wantOk)
			if !tt.wantOk {
				return
			}
			if tt.wantNil {
				is.Equal(got, (*int)(nil))
				return
			}
			is.Equal(*got, tt.want)
		})
	}
}

func TestBuildTrainRolloverCorrection(t *testing.T) {
	is := is.New(t)
	raw := &rawTrain{
		Id:        "JR-East.Yamanote.2300G.Weekday",
		Railway:   "JR-East.Yamanote",
		Number:    "2300G",
		Direction: "InnerLoop",
		TimetableEntries: []rawStop{
			{Station: "A", Arrival: "05:00", Departure: "05:00"},
			{Station: "B", Arrival: "05:03", Departure: "05:03"},
			{Station: "C", Arrival: "04:58", Departure: "04:58"},
		},
	}

	train := buildTrain(testLogger(), raw)
	is.True(train != nil)
	is.Equal(len(train.Stops), 3)
	is.Equal(*train.Stops[0].ArrivalSec, 18000)
	is.Equal(*train.Stops[0].DepartureSec, 18000)
	is.Equal(*train.Stops[1].ArrivalSec, 18180)
	is.Equal(*train.Stops[1].DepartureSec, 18180)
	is.Equal(*train.Stops[2].ArrivalSec, 104280)
	is.Equal(*train.Stops[2].DepartureSec, 104280)

	// Representative times are non-decreasing after correction.
	prev := -1
	for _, stop := range train.Stops {
		rep, ok := stop.RepresentativeSec()
		is.True(ok)
		is.True(rep >= prev)
		prev = rep
	}
}

func TestBuildTrainDropsBadStops(t *testing.T) {
	is := is.New(t)
	raw := &rawTrain{
		Id:      "JR-East.Yamanote.401G.Weekday",
		Railway: "JR-East.Yamanote",
		Number:  "401G",
		TimetableEntries: []rawStop{
			{Station: "A", Departure: "24:00"},
			{Station: "B", Arrival: "05:10", Departure: "05:11"},
			{Station: "C", Arrival: "05:14"},
		},
	}

	train := buildTrain(testLogger(), raw)
	is.True(train != nil)
	// The 24:00 stop is dropped, the train survives.
	is.Equal(len(train.Stops), 2)
	is.Equal(train.Stops[0].StationId, "B")

	// Destination falls back to the last stop when ds is absent.
	is.Equal(train.DestinationStations, []string{"C"})
}

func TestBuildTrainAllStopsLost(t *testing.T) {
	is := is.New(t)
	raw := &rawTrain{
		Id:               "JR-East.Yamanote.402G.Weekday",
		Number:           "402G",
		TimetableEntries: []rawStop{{Station: "A", Departure: "24:30"}},
	}
	is.Equal(buildTrain(testLogger(), raw), (*TimetableTrain)(nil))
}

func TestInferServiceType(t *testing.T) {
	tests := []struct {
		id       string
		wantType servicecal.ServiceType
		wantBase string
	}{
		{"JR-East.Yamanote.400G.Weekday", servicecal.Weekday, "JR-East.Yamanote.400G"},
		{"JR-East.Yamanote.400G.SaturdayHoliday", servicecal.SaturdayHoliday, "JR-East.Yamanote.400G"},
		{"JR-East.Yamanote.400G.Special", servicecal.UnknownService, "JR-East.Yamanote.400G.Special"},
		{"nodots", servicecal.UnknownService, "nodots"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			is := is.New(t)
			serviceType, base := inferServiceType(tt.id)
			is.Equal(serviceType, tt.wantType)
			is.Equal(base, tt.wantBase)
		})
	}
}

func TestCorpusLookupPolicy(t *testing.T) {
	is := is.New(t)
	arr := func(v int) *int { return &v }

	weekday := &TimetableTrain{
		BaseId:      "JR-East.Yamanote.301G",
		ServiceType: servicecal.Weekday,
		Number:      "301G",
		Direction:   "OuterLoop",
		Stops: []StopTime{
			{StationId: "JR-East.Yamanote.Osaki", DepartureSec: arr(18000)},
			{StationId: "JR-East.Yamanote.Shinagawa", ArrivalSec: arr(18180)},
		},
	}
	duplicate := &TimetableTrain{
		BaseId:      "JR-East.Yamanote.301G.dup",
		ServiceType: servicecal.Weekday,
		Number:      "301G",
		Direction:   "OuterLoop",
		Stops:       weekday.Stops,
	}

	corpus := buildIndices([]*TimetableTrain{weekday, duplicate})

	// First-wins on duplicate keys.
	is.Equal(corpus.GetStaticTrain("301G", servicecal.Weekday, "OuterLoop"), weekday)

	// Service type relaxes on miss.
	is.Equal(corpus.GetStaticTrain("301G", servicecal.SaturdayHoliday, "OuterLoop"), weekday)

	// Direction relaxes last.
	is.Equal(corpus.GetStaticTrain("301G", servicecal.SaturdayHoliday, "InnerLoop"), weekday)

	// Unknown number misses.
	is.Equal(corpus.GetStaticTrain("999X", servicecal.Weekday, "OuterLoop"), (*TimetableTrain)(nil))

	// Sequence map numbers stops from 1.
	seqMap := corpus.SequenceStations("301G", servicecal.Weekday, "OuterLoop")
	is.Equal(seqMap[1], "JR-East.Yamanote.Osaki")
	is.Equal(seqMap[2], "JR-East.Yamanote.Shinagawa")
}

func TestLoadDir(t *testing.T) {
	is := is.New(t)
	corpus, err := LoadDir(testLogger(), "testdata/timetables")
	is.NoErr(err)
	is.True(len(corpus.Trains) >= 2)

	train := corpus.GetStaticTrain("301G", servicecal.Weekday, "OuterLoop")
	is.True(train != nil)
	is.Equal(train.LineId, "JR-East.Yamanote")
	is.Equal(train.TrainClass, "JR-East.Local")
}
