package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"

	"github.com/nowtrain/backend/app/position-svc/webapi"
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
	log := logger.New(os.Stdout, "POSITION_SVC : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	// A missing .env file is fine in deployed environments.
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
		Web struct {
			HttpPort int `conf:"default:8000"`
		}
		Feed struct {
			TripUpdateUrl       string `conf:"default:https://api-public.odpt.org/api/v4/gtfs/realtime/jreast_odpt_train_tripupdate"`
			FetchTimeoutSeconds int    `conf:"default:10"`
		}
		Data struct {
			Dir string `conf:"default:data"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Serve live train positions fused from static timetables and GTFS-RT"
	const prefix = "POSITION"
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

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	apiKey := os.Getenv("ODPT_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("ODPT_API_KEY must be set")
	}
	allowedOrigins := webapi.EnvList("FRONTEND_URL")

	// =========================================================================
	// Static corpora. A failed load is fatal.

	calendar := servicecal.NewCalendar(nil)

	railways, err := railway.Load(log, cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("loading railway data: %w", err)
	}

	corpus, err := timetable.LoadDir(log, cfg.Data.Dir+"/timetables")
	if err != nil {
		return fmt.Errorf("loading timetables: %w", err)
	}

	// =========================================================================
	// Start Database

	log.Println("main: Initializing database support")

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
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		if err := db.Close(); err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	store := station.NewStore(db)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	ranks, err := store.ListRanks(ctx)
	if err != nil {
		return fmt.Errorf("loading dwell ranks: %w", err)
	}
	log.Printf("main: loaded %d dwell ranks", len(ranks))
	dwell := station.NewDwellCache(ranks)
	rankWriter := station.NewRankWriter(store, dwell)

	// =========================================================================
	// Realtime pipeline

	fetchTimeout := time.Duration(cfg.Feed.FetchTimeoutSeconds) * time.Second
	client := httpclient.New(fetchTimeout)
	defer client.CloseIdleConnections()

	feed := tracker.NewODPTFeed(client, cfg.Feed.TripUpdateUrl, apiKey)
	normalizer := tracker.NewNormalizer(log, corpus, railways, calendar)
	trk := tracker.New(log, feed, normalizer, tracker.NewSolver(dwell), tracker.NewSnapper(railways))

	// =========================================================================
	// Web service

	handler := webapi.NewHandler(log, railways, trk, dwell, rankWriter, build, allowedOrigins)
	srv := webapi.CreateServer(handler, cfg.Web.HttpPort)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	wg := sync.WaitGroup{}
	webShutdown := make(chan bool, 1)
	go webapi.RunWebService(log, &wg, srv, webShutdown)

	<-shutdown
	log.Printf("main: shutdown signal received")
	webShutdown <- true
	wg.Wait()
	return nil
}
