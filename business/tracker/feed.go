package tracker

import (
	"context"
	"fmt"
	logger "log"
	"net/url"
	"sort"
	"strings"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/nowtrain/backend/business/data/railway"
	"github.com/nowtrain/backend/business/data/servicecal"
	"github.com/nowtrain/backend/business/data/timetable"
	"github.com/nowtrain/backend/foundation/httpclient"
)

const operatorStopPrefix = "JR-East."

// FeedSource retrieves the current TripUpdate feed.
type FeedSource interface {
	FetchTripUpdates(ctx context.Context) (*gtfsproto.FeedMessage, error)
}

// ODPTFeed fetches the GTFS-RT TripUpdate feed from the ODPT endpoint,
// authenticating with the consumer key as a query parameter.
type ODPTFeed struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
}

// NewODPTFeed builds a feed source over the shared http client.
func NewODPTFeed(client *httpclient.Client, endpoint, apiKey string) *ODPTFeed {
	return &ODPTFeed{client: client, endpoint: endpoint, apiKey: apiKey}
}

// FetchTripUpdates downloads and decodes the feed. Any HTTP, network or
// protobuf failure is returned as an error for the caller to degrade on.
func (f *ODPTFeed) FetchTripUpdates(ctx context.Context) (*gtfsproto.FeedMessage, error) {
	query := url.Values{}
	query.Set("acl:consumerKey", f.apiKey)
	requestURL := f.endpoint + "?" + query.Encode()

	body, err := f.client.GetBytes(ctx, requestURL)
	if err != nil {
		return nil, fmt.Errorf("fetching trip updates: %w", err)
	}

	feed := &gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("decoding trip updates: %w", err)
	}
	return feed, nil
}

// Target identifies the line a normalization pass filters for.
type Target struct {
	Route railway.LineConfig
	// LineKey is the short identifier of the line.
	LineKey string
}

// Normalizer converts the raw feed into per-trip TrainSchedule records,
// resolving feed stop ids to station ids against the static corpus.
type Normalizer struct {
	log      *logger.Logger
	corpus   *timetable.Corpus
	railways *railway.Cache
	calendar *servicecal.Calendar
}

// NewNormalizer wires the normalizer to the static corpora.
func NewNormalizer(log *logger.Logger, corpus *timetable.Corpus, railways *railway.Cache, calendar *servicecal.Calendar) *Normalizer {
	return &Normalizer{log: log, corpus: corpus, railways: railways, calendar: calendar}
}

// Normalize filters the feed down to trips of the target route and builds one
// TrainSchedule per surviving trip. Trips with fewer than two usable stops
// are discarded.
func (n *Normalizer) Normalize(feed *gtfsproto.FeedMessage, target Target, at time.Time) map[string]*TrainSchedule {
	if feed == nil {
		return nil
	}

	serviceType := n.calendar.ServiceType(at)
	serviceDate := n.calendar.ServiceDate(at).Format("20060102")
	feedTimestamp := int64(feed.GetHeader().GetTimestamp())

	schedules := make(map[string]*TrainSchedule)
	for _, entity := range feed.GetEntity() {
		update := entity.GetTripUpdate()
		if update == nil {
			continue
		}
		trip := update.GetTrip()
		if trip.GetScheduleRelationship() == gtfsproto.TripDescriptor_CANCELED {
			continue
		}
		tripId := trip.GetTripId()
		if !RouteMatches(tripId, trip.GetRouteId(), target.Route.GtfsRouteId) {
			continue
		}

		sched := n.buildSchedule(update, target, serviceType, serviceDate, feedTimestamp)
		if sched == nil {
			continue
		}
		if _, exists := schedules[sched.TripId]; exists {
			continue
		}
		schedules[sched.TripId] = sched
	}
	return schedules
}

func (n *Normalizer) buildSchedule(update *gtfsproto.TripUpdate, target Target, serviceType servicecal.ServiceType, serviceDate string, feedTimestamp int64) *TrainSchedule {
	trip := update.GetTrip()
	tripId := trip.GetTripId()
	trainNumber := TrainNumber(tripId)
	direction := n.directionOf(tripId, trainNumber, target.Route.GtfsRouteId, serviceType)

	if d := trip.GetStartDate(); d != "" {
		serviceDate = d
	}

	sched := &TrainSchedule{
		TripId:         tripId,
		TrainNumber:    trainNumber,
		ServiceDate:    serviceDate,
		Direction:      direction,
		FeedTimestamp:  feedTimestamp,
		SchedulesBySeq: make(map[int]*RealtimeStationSchedule),
	}

	for _, stu := range update.GetStopTimeUpdate() {
		if stu.GetScheduleRelationship() == gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED {
			continue
		}
		stop := n.buildStop(stu, target, trainNumber, serviceType, direction)
		if stop == nil {
			continue
		}
		if _, exists := sched.SchedulesBySeq[stop.StopSequence]; exists {
			continue
		}
		sched.SchedulesBySeq[stop.StopSequence] = stop
		sched.OrderedSeqs = append(sched.OrderedSeqs, stop.StopSequence)
	}

	if len(sched.OrderedSeqs) < 2 {
		return nil
	}
	sort.Ints(sched.OrderedSeqs)
	return sched
}

func (n *Normalizer) buildStop(stu *gtfsproto.TripUpdate_StopTimeUpdate, target Target, trainNumber string, serviceType servicecal.ServiceType, direction string) *RealtimeStationSchedule {
	arrival, arrivalOk := stopEventTime(stu.GetArrival())
	departure, departureOk := stopEventTime(stu.GetDeparture())
	if !arrivalOk && !departureOk {
		return nil
	}

	delay := 0
	switch {
	case stu.GetArrival() != nil && stu.GetArrival().Delay != nil:
		delay = int(stu.GetArrival().GetDelay())
	case stu.GetDeparture() != nil && stu.GetDeparture().Delay != nil:
		delay = int(stu.GetDeparture().GetDelay())
	}

	seq := int(stu.GetStopSequence())
	stop := &RealtimeStationSchedule{
		StopSequence: seq,
		RawStopId:    stu.GetStopId(),
		DelaySeconds: delay,
	}
	if arrivalOk {
		stop.ArrivalTime = &arrival
	}
	if departureOk {
		stop.DepartureTime = &departure
	}

	stop.StationId, stop.Resolved = n.resolveStop(stu.GetStopId(), seq, target, trainNumber, serviceType, direction)
	if !stop.Resolved {
		n.log.Printf("tracker: unresolved stop id %q seq %d on %s", stu.GetStopId(), seq, target.Route.GtfsRouteId)
	}
	return stop
}

// resolveStop maps a feed stop to a station id, trying the strategies in
// priority order: verbatim operator-prefixed ids, the configured line prefix,
// the static sequence map, then positional lookup in the line's station list.
func (n *Normalizer) resolveStop(rawStopId string, seq int, target Target, trainNumber string, serviceType servicecal.ServiceType, direction string) (string, bool) {
	if strings.HasPrefix(rawStopId, operatorStopPrefix) {
		return rawStopId, true
	}
	if target.Route.StopIdPrefix != "" && rawStopId != "" {
		return target.Route.StopIdPrefix + "." + rawStopId, true
	}
	if seqMap := n.corpus.SequenceStations(trainNumber, serviceType, direction); seqMap != nil {
		if stationId, ok := seqMap[seq]; ok {
			return stationId, true
		}
	}
	stations := n.railways.StationsOfLine(target.Route.PolylineId)
	if len(stations) > 0 && seq >= 1 {
		idx := seq - 1
		if !IsAscending(target.Route.GtfsRouteId, direction) {
			idx = len(stations) - seq
		}
		if idx >= 0 && idx < len(stations) {
			return stations[idx].Id, true
		}
	}
	return "", false
}

// directionOf prefers the static train's recorded direction, falling back to
// derivation from the trip identifier.
func (n *Normalizer) directionOf(tripId, trainNumber string, routeId string, serviceType servicecal.ServiceType) string {
	derived := DirectionForTrip(tripId, routeId)
	if static := n.corpus.GetStaticTrain(trainNumber, serviceType, derived); static != nil && static.Direction != "" {
		return static.Direction
	}
	return derived
}

func stopEventTime(event *gtfsproto.TripUpdate_StopTimeEvent) (int64, bool) {
	if event == nil || event.Time == nil {
		return 0, false
	}
	return event.GetTime(), true
}
