package timetable

import (
	"encoding/json"
	"fmt"
	logger "log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nowtrain/backend/business/data/servicecal"
)

const secondsPerDay = 86400

// rawTrain mirrors one timetable file entry. The short field names follow
// the published timetable format.
type rawTrain struct {
	Id                  string    `json:"id"`
	Railway             string    `json:"r"`
	Number              string    `json:"n"`
	TrainClass          string    `json:"y"`
	Direction           string    `json:"d"`
	OriginStations      []string  `json:"os"`
	DestinationStations []string  `json:"ds"`
	TimetableEntries    []rawStop `json:"tt"`
}

type rawStop struct {
	Station   string `json:"s"`
	Arrival   string `json:"a"`
	Departure string `json:"d"`
}

// LoadDir reads every .json timetable file in dir and returns the indexed
// corpus. A directory with no usable trains is an error.
func LoadDir(log *logger.Logger, dir string) (*Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading timetable directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var trains []*TimetableTrain
	for _, name := range names {
		path := filepath.Join(dir, name)
		fileTrains, err := loadFile(log, path)
		if err != nil {
			return nil, err
		}
		trains = append(trains, fileTrains...)
	}

	if len(trains) == 0 {
		return nil, fmt.Errorf("no trains loaded from %s", dir)
	}
	log.Printf("timetable: loaded %d trains from %d files", len(trains), len(names))
	return buildIndices(trains), nil
}

func loadFile(log *logger.Logger, path string) ([]*TimetableTrain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading timetable file %s: %w", path, err)
	}

	var raws []rawTrain
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parsing timetable file %s: %w", path, err)
	}

	var trains []*TimetableTrain
	for i := range raws {
		train := buildTrain(log, &raws[i])
		if train != nil {
			trains = append(trains, train)
		}
	}
	return trains, nil
}

// buildTrain converts a raw entry into a TimetableTrain, applying rollover
// correction and validation. Returns nil when the train loses all stops.
func buildTrain(log *logger.Logger, raw *rawTrain) *TimetableTrain {
	serviceType, baseId := inferServiceType(raw.Id)

	train := &TimetableTrain{
		BaseId:         baseId,
		ServiceType:    serviceType,
		LineId:         raw.Railway,
		Number:         raw.Number,
		TrainClass:     raw.TrainClass,
		Direction:      raw.Direction,
		OriginStations: raw.OriginStations,
	}

	if serviceType == servicecal.UnknownService {
		log.Printf("timetable: train %s has unrecognized service type suffix", raw.Id)
	}

	rolloverOffset := 0
	prevRep := -1
	for _, rawStop := range raw.TimetableEntries {
		arrival, arrOk := parseClock(rawStop.Arrival)
		departure, depOk := parseClock(rawStop.Departure)
		if !arrOk || !depOk {
			log.Printf("timetable: dropping stop %s of %s: bad time %q/%q",
				rawStop.Station, raw.Id, rawStop.Arrival, rawStop.Departure)
			continue
		}

		stop := StopTime{StationId: rawStop.Station}
		rep := departure
		if rep == nil {
			rep = arrival
		}
		if rep != nil {
			if prevRep >= 0 && *rep < prevRep {
				rolloverOffset += secondsPerDay
			}
			prevRep = *rep
		}
		if arrival != nil {
			v := *arrival + rolloverOffset
			stop.ArrivalSec = &v
		}
		if departure != nil {
			v := *departure + rolloverOffset
			stop.DepartureSec = &v
		}
		train.Stops = append(train.Stops, stop)
	}

	if len(train.Stops) == 0 {
		log.Printf("timetable: dropping train %s: no usable stops", raw.Id)
		return nil
	}
	if len(train.Stops) < 2 {
		log.Printf("timetable: train %s has fewer than two stops", raw.Id)
	}

	if len(raw.DestinationStations) > 0 {
		train.DestinationStations = raw.DestinationStations
	} else {
		last := train.Stops[len(train.Stops)-1]
		train.DestinationStations = []string{last.StationId}
	}

	validateTrain(log, raw.Id, train)
	return train
}

// validateTrain reports ordering and origin problems. Violators are kept.
func validateTrain(log *logger.Logger, sourceId string, train *TimetableTrain) {
	prev := -1
	for _, stop := range train.Stops {
		rep, ok := stop.RepresentativeSec()
		if !ok {
			continue
		}
		if prev >= 0 && rep < prev {
			log.Printf("timetable: train %s has non-monotonic stop times at %s",
				sourceId, stop.StationId)
		}
		prev = rep
	}

	if len(train.OriginStations) > 0 {
		first := train.Stops[0].StationId
		found := false
		for _, origin := range train.OriginStations {
			if origin == first {
				found = true
				break
			}
		}
		if !found {
			log.Printf("timetable: train %s first stop %s not in declared origins",
				sourceId, first)
		}
	}
}

// inferServiceType reads the trailing segment of the source identifier.
// "JR-East.Yamanote.400G.Weekday" yields (Weekday, "JR-East.Yamanote.400G").
func inferServiceType(id string) (servicecal.ServiceType, string) {
	idx := strings.LastIndex(id, ".")
	if idx < 0 {
		return servicecal.UnknownService, id
	}
	serviceType := servicecal.ParseServiceType(id[idx+1:])
	if serviceType == servicecal.UnknownService {
		return servicecal.UnknownService, id
	}
	return serviceType, id[:idx]
}

// parseClock converts "HH:MM" or "HH:MM:SS" to seconds from 00:00. Empty
// strings are valid and produce a nil value; malformed strings and hours
// outside 0-23 report false.
func parseClock(value string) (*int, bool) {
	if value == "" {
		return nil, true
	}
	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return nil, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return nil, false
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return nil, false
		}
	}
	total := hour*3600 + minute*60 + second
	return &total, true
}
