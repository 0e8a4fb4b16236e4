package tracker

import (
	"encoding/json"
	logger "log"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"github.com/nowtrain/backend/business/data/railway"
)

// ringVertices is a 9-vertex circle around central Tokyo, standing in for the
// loop line's merged polyline. Loop stations sit exactly on the vertices.
func ringVertices() [][]float64 {
	const n = 9
	vertices := make([][]float64, 0, n)
	for k := 0; k < n; k++ {
		angle := 2 * math.Pi * float64(k) / n
		vertices = append(vertices, []float64{
			139.7 + 0.01*math.Cos(angle),
			35.68 + 0.01*math.Sin(angle),
		})
	}
	return vertices
}

// chuoVertices is a straight west-to-east test shape with equal spacing.
func chuoVertices() [][]float64 {
	vertices := make([][]float64, 0, 5)
	for k := 0; k < 5; k++ {
		vertices = append(vertices, []float64{139.0 + 0.005*float64(k), 35.6})
	}
	return vertices
}

type fixtureStation struct {
	Id      string    `json:"id"`
	Railway string    `json:"railway"`
	Title   testTitle `json:"title"`
	Coord   []float64 `json:"coord"`
}

type testTitle struct {
	Ja string `json:"ja"`
	En string `json:"en"`
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// snapFixture builds a railway cache with a loop line on ringVertices and a
// radial line on chuoVertices. One radial station sits kilometers off the
// shape to exercise the distance guard.
func snapFixture(t *testing.T) *railway.Cache {
	t.Helper()
	dir := t.TempDir()
	ring := ringVertices()
	chuo := chuoVertices()

	loopStations := make([]fixtureStation, 0, len(ring))
	loopStationIds := make([]string, 0, len(ring))
	for k, v := range ring {
		id := "JR-East.Yamanote.S" + string(rune('0'+k))
		loopStationIds = append(loopStationIds, id)
		loopStations = append(loopStations, fixtureStation{
			Id:      id,
			Railway: "JR-East.Yamanote",
			Title:   testTitle{Ja: "駅" + string(rune('0'+k)), En: "Station " + string(rune('0'+k))},
			Coord:   []float64{v[0], v[1]},
		})
	}

	stations := append(loopStations,
		fixtureStation{Id: "JR-East.ChuoRapid.West", Railway: "JR-East.ChuoRapid", Title: testTitle{En: "West"}, Coord: []float64{chuo[0][0], chuo[0][1]}},
		fixtureStation{Id: "JR-East.ChuoRapid.Mid", Railway: "JR-East.ChuoRapid", Title: testTitle{En: "Mid"}, Coord: []float64{chuo[2][0], chuo[2][1]}},
		fixtureStation{Id: "JR-East.ChuoRapid.East", Railway: "JR-East.ChuoRapid", Title: testTitle{En: "East"}, Coord: []float64{chuo[4][0], chuo[4][1]}},
		fixtureStation{Id: "JR-East.ChuoRapid.Far", Railway: "JR-East.ChuoRapid", Title: testTitle{En: "Far"}, Coord: []float64{139.0, 36.5}},
	)

	writeJSON(t, filepath.Join(dir, "railways.json"), []map[string]interface{}{
		{
			"id":         "JR-East.Yamanote",
			"title":      testTitle{Ja: "山手線", En: "Yamanote Line"},
			"stations":   loopStationIds,
			"ascending":  "OuterLoop",
			"descending": "InnerLoop",
			"loop":       true,
		},
		{
			"id":         "JR-East.ChuoRapid",
			"title":      testTitle{Ja: "中央線快速", En: "Chuo Rapid Line"},
			"stations":   []string{"JR-East.ChuoRapid.West", "JR-East.ChuoRapid.Mid", "JR-East.ChuoRapid.East"},
			"ascending":  "Outbound",
			"descending": "Inbound",
		},
	})
	writeJSON(t, filepath.Join(dir, "stations.json"), stations)
	writeJSON(t, filepath.Join(dir, "coordinates.json"), map[string]interface{}{
		"railways": []map[string]interface{}{
			{
				"id":   "JR-East.Yamanote",
				"loop": true,
				"sublines": []map[string]interface{}{
					{"type": "main", "coords": ring},
				},
			},
			{
				"id": "JR-East.ChuoRapid",
				"sublines": []map[string]interface{}{
					{"type": "main", "coords": chuo},
				},
			},
		},
	})

	cache, err := railway.Load(logger.New(os.Stderr, "", 0), dir)
	if err != nil {
		t.Fatal(err)
	}
	return cache
}

func running(prev, next string, progress float64) *SegmentProgress {
	return &SegmentProgress{
		Status:        StatusRunning,
		PrevStationId: prev,
		NextStationId: next,
		Progress:      &progress,
	}
}

func TestSnapperStopped(t *testing.T) {
	is := is.New(t)
	sn := NewSnapper(snapFixture(t))

	zero := 0.0
	loc, ok := sn.Locate(&SegmentProgress{
		Status:        StatusStopped,
		PrevStationId: "JR-East.ChuoRapid.Mid",
		NextStationId: "JR-East.ChuoRapid.Mid",
		Progress:      &zero,
	}, "JR-East.ChuoRapid")
	is.True(ok)
	is.True(math.Abs(loc.Longitude-139.010) < 1e-9)
	is.True(math.Abs(loc.Latitude-35.6) < 1e-9)
	is.Equal(loc.Bearing, nil)
}

func TestSnapperRunningAlongShape(t *testing.T) {
	is := is.New(t)
	sn := NewSnapper(snapFixture(t))
	chuo := chuoVertices()

	// Halfway between the end stations lands exactly on the middle vertex.
	loc, ok := sn.Locate(running("JR-East.ChuoRapid.West", "JR-East.ChuoRapid.East", 0.5), "JR-East.ChuoRapid")
	is.True(ok)
	is.True(math.Abs(loc.Longitude-chuo[2][0]) < 1e-6)
	is.True(math.Abs(loc.Latitude-chuo[2][1]) < 1e-6)
	is.True(loc.Bearing != nil)

	// Opposite direction traverses the reversed slice.
	loc, ok = sn.Locate(running("JR-East.ChuoRapid.East", "JR-East.ChuoRapid.West", 0.25), "JR-East.ChuoRapid")
	is.True(ok)
	is.True(math.Abs(loc.Longitude-chuo[3][0]) < 1e-6)
	// Heading west.
	is.True(*loc.Bearing > 180)
}

func TestSnapperLoopWrap(t *testing.T) {
	is := is.New(t)
	sn := NewSnapper(snapFixture(t))
	ring := ringVertices()

	// Vertex 8 to vertex 0 must wrap through the seam, not traverse the whole
	// ring backwards.
	loc, ok := sn.Locate(running("JR-East.Yamanote.S8", "JR-East.Yamanote.S0", 0.5), "JR-East.Yamanote")
	is.True(ok)
	wantLon := (ring[8][0] + ring[0][0]) / 2
	wantLat := (ring[8][1] + ring[0][1]) / 2
	is.True(math.Abs(loc.Longitude-wantLon) < 1e-6)
	is.True(math.Abs(loc.Latitude-wantLat) < 1e-6)
}

func TestSnapperFallbacks(t *testing.T) {
	is := is.New(t)
	sn := NewSnapper(snapFixture(t))
	chuo := chuoVertices()

	// The far station exceeds the distance guard, so the snap degrades to a
	// straight line between the station coordinates.
	loc, ok := sn.Locate(running("JR-East.ChuoRapid.Far", "JR-East.ChuoRapid.East", 0.5), "JR-East.ChuoRapid")
	is.True(ok)
	is.True(math.Abs(loc.Longitude-(139.0+chuo[4][0])/2) < 1e-6)
	is.True(math.Abs(loc.Latitude-(36.5+chuo[4][1])/2) < 1e-6)

	// Unknown status has no position.
	_, ok = sn.Locate(&SegmentProgress{Status: StatusUnknown}, "JR-East.ChuoRapid")
	is.True(!ok)

	// Unresolved stations have no position either.
	_, ok = sn.Locate(running("", "JR-East.ChuoRapid.East", 0.5), "JR-East.ChuoRapid")
	is.True(!ok)
}
