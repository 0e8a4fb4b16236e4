package railway

// LineConfig describes one supported line. Keys of Lines are externally
// stable: they appear in URLs and in the persisted dwell table.
type LineConfig struct {
	// Name is the localized display name.
	Name string
	// GtfsRouteId is the route identifier used by the realtime feed.
	GtfsRouteId string
	// PolylineId keys the railways/coordinates files.
	PolylineId string
	// StopIdPrefix, when set, is prepended to bare feed stop ids that lack
	// the operator prefix. Most lines publish fully qualified ids.
	StopIdPrefix string
}

// Lines maps the short line identifier used in URLs to its configuration.
var Lines = map[string]LineConfig{
	"yamanote": {
		Name:        "山手線",
		GtfsRouteId: "JR-East.Yamanote",
		PolylineId:  "JR-East.Yamanote",
	},
	"chuo_rapid": {
		Name:        "中央線快速",
		GtfsRouteId: "JR-East.ChuoRapid",
		PolylineId:  "JR-East.ChuoRapid",
	},
	"keihin_tohoku": {
		Name:        "京浜東北線・根岸線",
		GtfsRouteId: "JR-East.KeihinTohokuNegishi",
		PolylineId:  "JR-East.KeihinTohokuNegishi",
	},
	"sobu_local": {
		Name:        "総武線各駅停車",
		GtfsRouteId: "JR-East.ChuoSobuLocal",
		PolylineId:  "JR-East.ChuoSobuLocal",
	},
	"tokaido": {
		Name:        "東海道線",
		GtfsRouteId: "JR-East.Tokaido",
		PolylineId:  "JR-East.Tokaido",
	},
	"yokosuka": {
		Name:        "横須賀線",
		GtfsRouteId: "JR-East.Yokosuka",
		PolylineId:  "JR-East.Yokosuka",
	},
	"utsunomiya": {
		Name:        "宇都宮線",
		GtfsRouteId: "JR-East.Utsunomiya",
		PolylineId:  "JR-East.Utsunomiya",
	},
	"takasaki": {
		Name:        "高崎線",
		GtfsRouteId: "JR-East.Takasaki",
		PolylineId:  "JR-East.Takasaki",
	},
	"joban_rapid": {
		Name:        "常磐線快速",
		GtfsRouteId: "JR-East.JobanRapid",
		PolylineId:  "JR-East.JobanRapid",
	},
	"sobu_rapid": {
		Name:        "総武快速線",
		GtfsRouteId: "JR-East.SobuRapid",
		PolylineId:  "JR-East.SobuRapid",
	},
	"keiyo": {
		Name:        "京葉線",
		GtfsRouteId: "JR-East.Keiyo",
		PolylineId:  "JR-East.Keiyo",
	},
	"saikyo": {
		Name:        "埼京線・川越線",
		GtfsRouteId: "JR-East.SaikyoKawagoe",
		PolylineId:  "JR-East.SaikyoKawagoe",
	},
	"musashino": {
		Name:        "武蔵野線",
		GtfsRouteId: "JR-East.Musashino",
		PolylineId:  "JR-East.Musashino",
	},
	"nambu": {
		Name:        "南武線",
		GtfsRouteId: "JR-East.Nambu",
		PolylineId:  "JR-East.Nambu",
	},
	"yokohama": {
		Name:        "横浜線",
		GtfsRouteId: "JR-East.Yokohama",
		PolylineId:  "JR-East.Yokohama",
	},
	"shonan_shinjuku": {
		Name:        "湘南新宿ライン",
		GtfsRouteId: "JR-East.ShonanShinjuku",
		PolylineId:  "JR-East.ShonanShinjuku",
	},
}

// LineConfigFor resolves id against Lines, accepting both the short key and
// the internal polyline identifier. The returned string is the short key.
func LineConfigFor(id string) (string, LineConfig, bool) {
	if cfg, ok := Lines[id]; ok {
		return id, cfg, true
	}
	for key, cfg := range Lines {
		if cfg.PolylineId == id || cfg.GtfsRouteId == id {
			return key, cfg, true
		}
	}
	return "", LineConfig{}, false
}
