package tracker

import (
	"regexp"
	"strconv"
	"strings"
)

// Canonical direction names. Radial lines use Outbound/Inbound or a compass
// pair; the loop line uses OuterLoop/InnerLoop.
const (
	DirectionOuterLoop = "OuterLoop"
	DirectionInnerLoop = "InnerLoop"
	DirectionOutbound  = "Outbound"
	DirectionInbound   = "Inbound"
)

const loopRouteId = "JR-East.Yamanote"

// Trip identifiers on the loop line carry a numeric prefix designating the
// running direction.
const (
	outerLoopPrefix = "4201"
	innerLoopPrefix = "4211"
)

// routeCandidatesBySuffix maps the last character of a trip identifier to the
// routes that character is used for. The feed frequently omits route_id, so
// this table is the membership fallback.
var routeCandidatesBySuffix = map[byte][]string{
	'G': {"JR-East.Yamanote"},
	'T': {"JR-East.ChuoRapid"},
	'A': {"JR-East.KeihinTohokuNegishi"},
	'B': {"JR-East.ChuoSobuLocal"},
	'S': {"JR-East.Yokosuka", "JR-East.SobuRapid"},
	'F': {"JR-East.ShonanShinjuku"},
	'K': {"JR-East.SaikyoKawagoe"},
	'M': {"JR-East.Utsunomiya", "JR-East.Takasaki"},
	'H': {"JR-East.JobanRapid", "JR-East.Tokaido"},
	'Y': {"JR-East.Keiyo"},
	'E': {"JR-East.Musashino"},
	'N': {"JR-East.Nambu"},
	'X': {"JR-East.Yokohama"},
}

// directionPair holds a line's two canonical direction names. Ascending is
// the orientation matching the station file order of the line.
type directionPair struct {
	Ascending  string
	Descending string
}

var directionsByRoute = map[string]directionPair{
	"JR-East.Yamanote":            {Ascending: DirectionOuterLoop, Descending: DirectionInnerLoop},
	"JR-East.ChuoRapid":           {Ascending: DirectionOutbound, Descending: DirectionInbound},
	"JR-East.ChuoSobuLocal":       {Ascending: "Westbound", Descending: "Eastbound"},
	"JR-East.KeihinTohokuNegishi": {Ascending: "Southbound", Descending: "Northbound"},
	"JR-East.Tokaido":             {Ascending: DirectionOutbound, Descending: DirectionInbound},
	"JR-East.Yokosuka":            {Ascending: DirectionOutbound, Descending: DirectionInbound},
	"JR-East.Utsunomiya":          {Ascending: "Northbound", Descending: "Southbound"},
	"JR-East.Takasaki":            {Ascending: "Northbound", Descending: "Southbound"},
	"JR-East.JobanRapid":          {Ascending: "Northbound", Descending: "Southbound"},
	"JR-East.SobuRapid":           {Ascending: "Eastbound", Descending: "Westbound"},
	"JR-East.Keiyo":               {Ascending: "Eastbound", Descending: "Westbound"},
	"JR-East.SaikyoKawagoe":       {Ascending: "Northbound", Descending: "Southbound"},
	"JR-East.Musashino":           {Ascending: DirectionOutbound, Descending: DirectionInbound},
	"JR-East.Nambu":               {Ascending: DirectionOutbound, Descending: DirectionInbound},
	"JR-East.Yokohama":            {Ascending: "Northbound", Descending: "Southbound"},
	"JR-East.ShonanShinjuku":      {Ascending: "Northbound", Descending: "Southbound"},
}

// RouteMatches decides whether a feed trip belongs to targetRouteId, either
// by an exact route_id match or through the trip-id suffix table.
func RouteMatches(tripId, feedRouteId, targetRouteId string) bool {
	if feedRouteId != "" && feedRouteId == targetRouteId {
		return true
	}
	if tripId == "" {
		return false
	}
	suffix := strings.ToUpper(tripId[len(tripId)-1:])[0]
	for _, candidate := range routeCandidatesBySuffix[suffix] {
		if candidate == targetRouteId {
			return true
		}
	}
	return false
}

// DirectionForTrip derives the running direction of a trip. The loop line is
// decided by its trip-id prefix; other lines by the parity of the trip's
// numeric body, odd mapping to the ascending name.
func DirectionForTrip(tripId, routeId string) string {
	pair, ok := directionsByRoute[routeId]
	if !ok {
		pair = directionPair{Ascending: DirectionOutbound, Descending: DirectionInbound}
	}
	if routeId == loopRouteId {
		if strings.HasPrefix(tripId, outerLoopPrefix) {
			return DirectionOuterLoop
		}
		if strings.HasPrefix(tripId, innerLoopPrefix) {
			return DirectionInnerLoop
		}
	}
	body := trainNumberDigits(tripId)
	if body == "" {
		return pair.Ascending
	}
	n, err := strconv.Atoi(body)
	if err != nil {
		return pair.Ascending
	}
	if n%2 == 1 {
		return pair.Ascending
	}
	return pair.Descending
}

// IsAscending reports whether directionName is the ascending orientation of
// the route, matching the station file order.
func IsAscending(routeId, directionName string) bool {
	pair, ok := directionsByRoute[routeId]
	if !ok {
		return directionName != DirectionInbound
	}
	return directionName != pair.Descending
}

var (
	// prefixedTrainNumber matches identifiers carrying the four-digit
	// direction prefix ahead of the train number proper.
	prefixedTrainNumber = regexp.MustCompile(`^\d{4}(\d{3,4})([A-Z])$`)
	bareTrainNumber     = regexp.MustCompile(`(\d{3,4})([A-Z])$`)
)

// TrainNumber normalizes a trip identifier to its train number: the trailing
// digits-plus-letter pattern with leading zeros stripped. Applying it to an
// already normalized number returns it unchanged.
func TrainNumber(tripId string) string {
	id := strings.ToUpper(strings.TrimSpace(tripId))
	var digits, letter string
	if m := prefixedTrainNumber.FindStringSubmatch(id); m != nil {
		digits, letter = m[1], m[2]
	} else if m := bareTrainNumber.FindStringSubmatch(id); m != nil {
		digits, letter = m[1], m[2]
	} else {
		return id
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	return digits + letter
}

func trainNumberDigits(tripId string) string {
	number := TrainNumber(tripId)
	if m := bareTrainNumber.FindStringSubmatch(number); m != nil {
		return m[1]
	}
	return ""
}
