package webapi

import (
	"context"
	"encoding/json"
	logger "log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/matryer/is"
	"google.golang.org/protobuf/proto"

	"github.com/nowtrain/backend/business/data/railway"
	"github.com/nowtrain/backend/business/data/servicecal"
	"github.com/nowtrain/backend/business/data/station"
	"github.com/nowtrain/backend/business/data/timetable"
	"github.com/nowtrain/backend/business/tracker"
)

var testAt = time.Date(2025, 6, 2, 12, 0, 0, 0, time.FixedZone("JST", 9*60*60))

type stubFeed struct {
	feed *gtfsproto.FeedMessage
	err  error
}

func (s *stubFeed) FetchTripUpdates(ctx context.Context) (*gtfsproto.FeedMessage, error) {
	return s.feed, s.err
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// fixtureRailways builds a cache with a five-station loop whose stations sit
// exactly on the shape vertices.
func fixtureRailways(t *testing.T) *railway.Cache {
	t.Helper()
	dir := t.TempDir()

	const n = 5
	type pt struct{ lon, lat float64 }
	ring := make([]pt, 0, n)
	for k := 0; k < n; k++ {
		angle := 2 * math.Pi * float64(k) / n
		ring = append(ring, pt{139.7 + 0.01*math.Cos(angle), 35.68 + 0.01*math.Sin(angle)})
	}

	var coords, stations, ids []string
	for k, p := range ring {
		lonLat, _ := json.Marshal([]float64{p.lon, p.lat})
		coords = append(coords, string(lonLat))
		id := "JR-East.Yamanote.L" + string(rune('0'+k))
		ids = append(ids, `"`+id+`"`)
		stations = append(stations, `{"id":"`+id+`","railway":"JR-East.Yamanote","title":{"ja":"駅`+
			string(rune('0'+k))+`","en":"Loop `+string(rune('0'+k))+`"},"coord":`+string(lonLat)+`}`)
	}

	writeFixture(t, filepath.Join(dir, "railways.json"),
		`[{"id":"JR-East.Yamanote","title":{"ja":"山手線","en":"Yamanote Line"},"stations":[`+
			strings.Join(ids, ",")+`],"ascending":"OuterLoop","descending":"InnerLoop","color":"#9ACD32","loop":true}]`)
	writeFixture(t, filepath.Join(dir, "stations.json"), "["+strings.Join(stations, ",")+"]")
	writeFixture(t, filepath.Join(dir, "coordinates.json"),
		`{"railways":[{"id":"JR-East.Yamanote","loop":true,"sublines":[{"type":"main","coords":[`+
			strings.Join(coords, ",")+`]}]}]}`)

	cache, err := railway.Load(logger.New(os.Stderr, "", 0), dir)
	if err != nil {
		t.Fatal(err)
	}
	return cache
}

func fixtureHandler(t *testing.T, feed tracker.FeedSource) http.Handler {
	t.Helper()
	log := logger.New(os.Stderr, "", 0)
	railways := fixtureRailways(t)
	calendar := servicecal.NewCalendar(nil)
	corpus := timetable.NewCorpus([]*timetable.TimetableTrain{
		{
			BaseId:      "JR-East.Yamanote.301G",
			ServiceType: servicecal.Weekday,
			Number:      "301G",
			Direction:   "OuterLoop",
			Stops: []timetable.StopTime{
				{StationId: "JR-East.Yamanote.L0"},
				{StationId: "JR-East.Yamanote.L1"},
			},
		},
	})
	dwell := station.NewDwellCache([]station.DwellRank{
		{StationId: "JR-East.Yamanote.L0", Rank: station.RankS, DwellSeconds: 50},
	})
	normalizer := tracker.NewNormalizer(log, corpus, railways, calendar)
	trk := tracker.New(log, feed, normalizer, tracker.NewSolver(dwell), tracker.NewSnapper(railways)).
		WithNow(func() time.Time { return testAt })
	return NewHandler(log, railways, trk, dwell, nil, "test", nil)
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	decoded := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response is not json: %v: %s", err, rec.Body.String())
		}
	}
	return rec, decoded
}

func TestHealthEndpoint(t *testing.T) {
	is := is.New(t)
	h := fixtureHandler(t, &stubFeed{})

	rec, body := doRequest(t, h, http.MethodGet, "/api/health", "")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(body["status"], "ok")
	is.Equal(body["version"], "test")
}

func TestLinesEndpoints(t *testing.T) {
	is := is.New(t)
	h := fixtureHandler(t, &stubFeed{})

	rec, body := doRequest(t, h, http.MethodGet, "/api/lines", "")
	is.Equal(rec.Code, http.StatusOK)
	lines := body["lines"].([]interface{})
	is.Equal(len(lines), len(railway.Lines))

	rec, body = doRequest(t, h, http.MethodGet, "/api/lines/yamanote", "")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(body["id"], "yamanote")
	is.Equal(body["internal_id"], "JR-East.Yamanote")
	is.Equal(body["loop"], true)
	is.Equal(body["station_count"], float64(5))

	// The internal identifier resolves to the same line.
	rec, body = doRequest(t, h, http.MethodGet, "/api/lines/JR-East.Yamanote", "")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(body["id"], "yamanote")

	rec, _ = doRequest(t, h, http.MethodGet, "/api/lines/tozai", "")
	is.Equal(rec.Code, http.StatusNotFound)

	rec, body = doRequest(t, h, http.MethodGet, "/api/lines?operator=TokyoMetro", "")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(body["total"], float64(0))
}

func TestStationsEndpoints(t *testing.T) {
	is := is.New(t)
	h := fixtureHandler(t, &stubFeed{})

	rec, body := doRequest(t, h, http.MethodGet, "/api/stations?lineId=yamanote", "")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(body["total"], float64(5))
	stations := body["stations"].([]interface{})
	first := stations[0].(map[string]interface{})
	is.Equal(first["id"], "JR-East.Yamanote.L0")
	is.Equal(first["rank"], "S")
	is.Equal(first["dwell_seconds"], float64(50))
	second := stations[1].(map[string]interface{})
	is.Equal(second["dwell_seconds"], float64(20))

	rec, _ = doRequest(t, h, http.MethodGet, "/api/stations", "")
	is.Equal(rec.Code, http.StatusBadRequest)

	rec, body = doRequest(t, h, http.MethodGet, "/api/stations/search?q=Loop+1", "")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(body["total"], float64(1))

	rec, _ = doRequest(t, h, http.MethodGet, "/api/stations/search?q=", "")
	is.Equal(rec.Code, http.StatusBadRequest)

	rec, _ = doRequest(t, h, http.MethodGet, "/api/stations/search?q=Loop&limit=zero", "")
	is.Equal(rec.Code, http.StatusBadRequest)
}

func TestShapeEndpoint(t *testing.T) {
	is := is.New(t)
	h := fixtureHandler(t, &stubFeed{})

	rec, body := doRequest(t, h, http.MethodGet, "/api/shapes?lineId=yamanote", "")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(body["type"], "FeatureCollection")
	features := body["features"].([]interface{})
	is.Equal(len(features), 1)
	feature := features[0].(map[string]interface{})
	geometry := feature["geometry"].(map[string]interface{})
	is.Equal(geometry["type"], "LineString")
	is.Equal(len(geometry["coordinates"].([]interface{})), 5)

	rec, _ = doRequest(t, h, http.MethodGet, "/api/shapes?lineId=tozai", "")
	is.Equal(rec.Code, http.StatusNotFound)
}

func TestPositionsEndpoint(t *testing.T) {
	is := is.New(t)
	now := testAt.Unix()

	feed := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(now)),
		},
		Entity: []*gtfsproto.FeedEntity{
			{
				Id: proto.String("e1"),
				TripUpdate: &gtfsproto.TripUpdate{
					Trip: &gtfsproto.TripDescriptor{TripId: proto.String("4201301G")},
					StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{
						{
							StopSequence: proto.Uint32(1),
							StopId:       proto.String("JR-East.Yamanote.L0"),
							Arrival:      &gtfsproto.TripUpdate_StopTimeEvent{Time: proto.Int64(now - 10)},
							Departure:    &gtfsproto.TripUpdate_StopTimeEvent{Time: proto.Int64(now - 10)},
						},
						{
							StopSequence: proto.Uint32(2),
							StopId:       proto.String("JR-East.Yamanote.L1"),
							Arrival:      &gtfsproto.TripUpdate_StopTimeEvent{Time: proto.Int64(now + 120)},
							Departure:    &gtfsproto.TripUpdate_StopTimeEvent{Time: proto.Int64(now + 120)},
						},
					},
				},
			},
		},
	}

	h := fixtureHandler(t, &stubFeed{feed: feed})
	rec, body := doRequest(t, h, http.MethodGet, "/api/trains/yamanote/positions/v4", "")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(body["status"], "success")
	is.Equal(body["line_id"], "yamanote")
	is.Equal(body["total_trains"], float64(1))
	positions := body["positions"].([]interface{})
	position := positions[0].(map[string]interface{})
	is.Equal(position["train_number"], "301G")
	is.Equal(position["status"], "stopped")
	is.True(position["location"] != nil)

	t.Run("unknown line", func(t *testing.T) {
		is := is.New(t)
		rec, _ := doRequest(t, h, http.MethodGet, "/api/trains/tozai/positions/v4", "")
		is.Equal(rec.Code, http.StatusNotFound)
	})

	t.Run("feed failure degrades", func(t *testing.T) {
		is := is.New(t)
		h := fixtureHandler(t, &stubFeed{err: context.DeadlineExceeded})
		rec, body := doRequest(t, h, http.MethodGet, "/api/trains/yamanote/positions/v4", "")
		is.Equal(rec.Code, http.StatusOK)
		is.Equal(body["status"], "error")
		is.Equal(body["total_trains"], float64(0))
	})
}

func TestRankUpsertValidation(t *testing.T) {
	is := is.New(t)
	h := fixtureHandler(t, &stubFeed{})

	rec, _ := doRequest(t, h, http.MethodPut, "/api/stations/JR-East.Yamanote.Nowhere/rank", `{"rank":"S"}`)
	is.Equal(rec.Code, http.StatusNotFound)

	rec, _ = doRequest(t, h, http.MethodPut, "/api/stations/JR-East.Yamanote.L0/rank", `{"rank":"Z"}`)
	is.Equal(rec.Code, http.StatusBadRequest)

	rec, _ = doRequest(t, h, http.MethodPut, "/api/stations/JR-East.Yamanote.L0/rank", `{"rank":"A","dwell_time":-5}`)
	is.Equal(rec.Code, http.StatusBadRequest)

	rec, _ = doRequest(t, h, http.MethodPut, "/api/stations/JR-East.Yamanote.L0/rank", `not json`)
	is.Equal(rec.Code, http.StatusBadRequest)
}
