package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"

	"github.com/nowtrain/backend/business/data/railway"
	"github.com/nowtrain/backend/business/data/station"
	"github.com/nowtrain/backend/foundation/database"
)

var build = "develop"

// defaultRanks seeds dwell ranks for the major interchange stations. Every
// other station falls back to rank B at read time.
var defaultRanks = map[string]string{
	"JR-East.Yamanote.Tokyo":               station.RankS,
	"JR-East.Yamanote.Shinjuku":            station.RankS,
	"JR-East.Yamanote.Shibuya":             station.RankS,
	"JR-East.Yamanote.Ikebukuro":           station.RankS,
	"JR-East.Yamanote.Shinagawa":           station.RankS,
	"JR-East.Yamanote.Ueno":                station.RankS,
	"JR-East.Yamanote.Akihabara":           station.RankA,
	"JR-East.Yamanote.Hamamatsucho":        station.RankA,
	"JR-East.Yamanote.Takadanobaba":        station.RankA,
	"JR-East.Yamanote.Nippori":             station.RankA,
	"JR-East.ChuoRapid.Tachikawa":          station.RankA,
	"JR-East.ChuoRapid.Nakano":             station.RankA,
	"JR-East.ChuoRapid.Mitaka":             station.RankA,
	"JR-East.KeihinTohokuNegishi.Yokohama": station.RankS,
	"JR-East.KeihinTohokuNegishi.Omiya":    station.RankS,
	"JR-East.KeihinTohokuNegishi.Kawasaki": station.RankA,
}

func main() {
	log := logger.New(os.Stdout, "DATA_IMPORTER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	_ = godotenv.Load()

	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Data struct {
			Dir string `conf:"default:data"`
		}
		SeedRanks bool `conf:"default:true"`
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Import station records and seed dwell ranks"
	const prefix = "IMPORTER"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	railways, err := railway.Load(log, cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("loading railway data: %w", err)
	}

	db, err := database.Open(database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	store := station.NewStore(db)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	records := buildRecords(railways)
	if err := store.UpsertStations(ctx, records); err != nil {
		return fmt.Errorf("importing stations: %w", err)
	}
	log.Printf("main: imported %d stations", len(records))

	if !cfg.SeedRanks {
		return nil
	}
	seeded := 0
	for stationId, rank := range defaultRanks {
		if _, ok := railways.StationById(stationId); !ok {
			log.Printf("main: skipping rank seed for unknown station %s", stationId)
			continue
		}
		dwellSeconds, err := station.DefaultDwellForRank(rank)
		if err != nil {
			return fmt.Errorf("seeding rank for %s: %w", stationId, err)
		}
		if err := store.UpsertRank(ctx, station.DwellRank{
			StationId:    stationId,
			Rank:         rank,
			DwellSeconds: dwellSeconds,
		}); err != nil {
			return fmt.Errorf("seeding rank for %s: %w", stationId, err)
		}
		seeded++
	}
	log.Printf("main: seeded %d dwell ranks", seeded)
	return nil
}

// buildRecords flattens the loaded station corpus into table rows.
func buildRecords(railways *railway.Cache) []station.Record {
	var records []station.Record
	for _, r := range railways.Railways() {
		for _, st := range railways.StationsOfLine(r.Id) {
			if st.HomeLine() != r.Id {
				continue
			}
			nameJa := st.Title.Ja
			nameEn := st.Title.En
			lon := st.Lon()
			lat := st.Lat()
			records = append(records, station.Record{
				Id:            st.Id,
				LineId:        r.Id,
				NameLocalized: &nameJa,
				NameLatin:     &nameEn,
				Longitude:     &lon,
				Latitude:      &lat,
			})
		}
	}
	return records
}
