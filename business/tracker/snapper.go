package tracker

import (
	"math"

	"github.com/nowtrain/backend/business/data/railway"
)

// A station further than this from its nearest polyline vertex is considered
// off-shape and forces straight-line interpolation.
const maxSnapDistanceMeters = 500.0

const earthRadiusMeters = 6371000.0

// Location is a snapped position. Bearing is degrees clockwise from north
// and nil when the train is stopped.
type Location struct {
	Latitude  float64
	Longitude float64
	Bearing   *float64
}

// Snapper maps a segment progress onto the physical track of a line.
type Snapper struct {
	railways *railway.Cache
}

// NewSnapper binds the snapper to the railway cache.
func NewSnapper(railways *railway.Cache) *Snapper {
	return &Snapper{railways: railways}
}

// Locate returns the position of a trip on lineId. It reports false when the
// progress carries no usable position, which is the case for unknown and
// invalid statuses and for stations without coordinates.
func (sn *Snapper) Locate(p *SegmentProgress, lineId string) (*Location, bool) {
	if p.Status == StatusStopped {
		if lon, lat, ok := sn.railways.StationCoord(p.PrevStationId); ok {
			return &Location{Latitude: lat, Longitude: lon}, true
		}
		if lon, lat, ok := sn.railways.StationCoord(p.NextStationId); ok {
			return &Location{Latitude: lat, Longitude: lon}, true
		}
		return nil, false
	}
	if p.Status != StatusRunning || p.Progress == nil {
		return nil, false
	}

	prevLon, prevLat, prevOk := sn.railways.StationCoord(p.PrevStationId)
	nextLon, nextLat, nextOk := sn.railways.StationCoord(p.NextStationId)
	if !prevOk || !nextOk {
		return nil, false
	}

	if path, ok := sn.subPath(p, lineId, prevLon, prevLat, nextLon, nextLat); ok {
		return locateAlong(path, *p.Progress), true
	}

	// Straight line between the stations when the shape cannot serve.
	return locateAlong([][]float64{{prevLon, prevLat}, {nextLon, nextLat}}, *p.Progress), true
}

// subPath extracts the polyline slice from the previous to the next station.
// On loop lines the traversal wraps through index zero when that arc is the
// shorter one.
func (sn *Snapper) subPath(p *SegmentProgress, lineId string, prevLon, prevLat, nextLon, nextLat float64) ([][]float64, bool) {
	polyline, ok := sn.railways.Polyline(lineId)
	if !ok || len(polyline) < 2 {
		return nil, false
	}
	s, sOk := sn.railways.StationVertexIndex(p.PrevStationId)
	e, eOk := sn.railways.StationVertexIndex(p.NextStationId)
	if !sOk || !eOk || s == e {
		return nil, false
	}
	if haversineMeters(prevLat, prevLon, polyline[s][1], polyline[s][0]) > maxSnapDistanceMeters {
		return nil, false
	}
	if haversineMeters(nextLat, nextLon, polyline[e][1], polyline[e][0]) > maxSnapDistanceMeters {
		return nil, false
	}

	if sn.railways.IsLoop(lineId) {
		n := len(polyline)
		forward := (e - s + n) % n
		backward := (s - e + n) % n
		if forward <= backward {
			return wrapSlice(polyline, s, forward), true
		}
		return reversePath(wrapSlice(polyline, e, backward)), true
	}

	if s < e {
		return polyline[s : e+1], true
	}
	return reversePath(polyline[e : s+1]), true
}

// wrapSlice returns steps+1 vertices starting at index from, wrapping past
// the end of the polyline.
func wrapSlice(polyline [][]float64, from, steps int) [][]float64 {
	n := len(polyline)
	out := make([][]float64, 0, steps+1)
	for i := 0; i <= steps; i++ {
		out = append(out, polyline[(from+i)%n])
	}
	return out
}

func reversePath(path [][]float64) [][]float64 {
	out := make([][]float64, len(path))
	for i, v := range path {
		out[len(path)-1-i] = v
	}
	return out
}

// locateAlong walks the path to the point at progress of its total
// great-circle length and interpolates within the containing sub-segment.
func locateAlong(path [][]float64, progress float64) *Location {
	if len(path) == 1 {
		return &Location{Latitude: path[0][1], Longitude: path[0][0]}
	}

	total := 0.0
	lengths := make([]float64, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		lengths[i] = haversineMeters(path[i][1], path[i][0], path[i+1][1], path[i+1][0])
		total += lengths[i]
	}
	if total <= 0 {
		return &Location{Latitude: path[0][1], Longitude: path[0][0]}
	}

	target := progress * total
	walked := 0.0
	for i, segLen := range lengths {
		if walked+segLen < target && i+1 < len(lengths) {
			walked += segLen
			continue
		}
		frac := 0.0
		if segLen > 0 {
			frac = (target - walked) / segLen
		}
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		a, b := path[i], path[i+1]
		bearing := initialBearing(a[1], a[0], b[1], b[0])
		return &Location{
			Latitude:  a[1] + (b[1]-a[1])*frac,
			Longitude: a[0] + (b[0]-a[0])*frac,
			Bearing:   &bearing,
		}
	}
	last := path[len(path)-1]
	return &Location{Latitude: last[1], Longitude: last[0]}
}

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// initialBearing is the azimuth from the first coordinate toward the second,
// degrees in [0, 360).
func initialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	theta := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(theta+360, 360)
}
