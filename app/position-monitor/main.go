package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/nowtrain/backend/app/position-monitor/monitor"
	"github.com/nowtrain/backend/business/data/railway"
	"github.com/nowtrain/backend/business/data/servicecal"
	"github.com/nowtrain/backend/business/data/station"
	"github.com/nowtrain/backend/business/data/timetable"
	"github.com/nowtrain/backend/business/tracker"
	"github.com/nowtrain/backend/foundation/database"
	"github.com/nowtrain/backend/foundation/httpclient"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "POSITION_MONITOR : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
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
		Feed struct {
			TripUpdateUrl       string `conf:"default:https://api-public.odpt.org/api/v4/gtfs/realtime/jreast_odpt_train_tripupdate"`
			FetchTimeoutSeconds int    `conf:"default:10"`
		}
		Data struct {
			Dir string `conf:"default:data"`
		}
		Nats struct {
			Url           string `conf:"default:nats://127.0.0.1:4222"`
			SubjectPrefix string `conf:"default:positions"`
		}
		Monitor struct {
			// Lines is a comma-separated list of line keys; empty sweeps all
			// configured lines.
			Lines            string `conf:"default:"`
			LoopEverySeconds int    `conf:"default:10"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Publish live train position snapshots over NATS"
	const prefix = "MONITOR"
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

	apiKey := os.Getenv("ODPT_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("ODPT_API_KEY must be set")
	}

	calendar := servicecal.NewCalendar(nil)

	railways, err := railway.Load(log, cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("loading railway data: %w", err)
	}
	corpus, err := timetable.LoadDir(log, cfg.Data.Dir+"/timetables")
	if err != nil {
		return fmt.Errorf("loading timetables: %w", err)
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
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ranks, err := store.ListRanks(ctx)
	if err != nil {
		return fmt.Errorf("loading dwell ranks: %w", err)
	}
	dwell := station.NewDwellCache(ranks)

	client := httpclient.New(time.Duration(cfg.Feed.FetchTimeoutSeconds) * time.Second)
	defer client.CloseIdleConnections()

	feed := tracker.NewODPTFeed(client, cfg.Feed.TripUpdateUrl, apiKey)
	normalizer := tracker.NewNormalizer(log, corpus, railways, calendar)
	trk := tracker.New(log, feed, normalizer, tracker.NewSolver(dwell), tracker.NewSnapper(railways))

	natsConn, err := nats.Connect(cfg.Nats.Url)
	if err != nil {
		return fmt.Errorf("connecting to nats at %s: %w", cfg.Nats.Url, err)
	}
	defer natsConn.Close()

	lines := monitoredLines(cfg.Monitor.Lines)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return monitor.RunPositionMonitorLoop(log, trk, natsConn, cfg.Nats.SubjectPrefix,
		lines, cfg.Monitor.LoopEverySeconds, shutdown)
}

// monitoredLines parses the configured list, defaulting to every line.
func monitoredLines(raw string) []string {
	var lines []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			lines = append(lines, part)
		}
	}
	if len(lines) > 0 {
		return lines
	}
	for key := range railway.Lines {
		lines = append(lines, key)
	}
	sort.Strings(lines)
	return lines
}
