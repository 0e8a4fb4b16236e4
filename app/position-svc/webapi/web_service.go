// Package webapi exposes the position service over HTTP: line and station
// metadata, merged track shapes, live train positions and the dwell rank
// upsert.
package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	logger "log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/nowtrain/backend/business/data/railway"
	"github.com/nowtrain/backend/business/data/station"
	"github.com/nowtrain/backend/business/tracker"
)

// webService holds the shared state request handlers read from.
type webService struct {
	log      *logger.Logger
	railways *railway.Cache
	tracker  *tracker.Tracker
	dwell    *station.DwellCache
	ranks    *station.RankWriter
	build    string
}

// NewHandler builds the routed and CORS-wrapped http.Handler of the service.
// allowedOrigins comes from the comma-separated frontend origin list; empty
// means same-origin only.
func NewHandler(log *logger.Logger,
	railways *railway.Cache,
	trk *tracker.Tracker,
	dwell *station.DwellCache,
	ranks *station.RankWriter,
	build string,
	allowedOrigins []string) http.Handler {

	s := &webService{
		log:      log,
		railways: railways,
		tracker:  trk,
		dwell:    dwell,
		ranks:    ranks,
		build:    build,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/lines", s.handleLines).Methods(http.MethodGet)
	r.HandleFunc("/api/lines/{line_id}", s.handleLine).Methods(http.MethodGet)
	r.HandleFunc("/api/stations", s.handleStations).Methods(http.MethodGet)
	r.HandleFunc("/api/stations/search", s.handleStationSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/stations/{station_id}/rank", s.handleRankUpsert).Methods(http.MethodPut)
	r.HandleFunc("/api/shapes", s.handleShape).Methods(http.MethodGet)
	r.HandleFunc("/api/trains/{line_id}/positions/v4", s.handlePositions).Methods(http.MethodGet)

	if len(allowedOrigins) == 0 {
		return r
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

// CreateServer wraps the handler in an http.Server with sane timeouts.
func CreateServer(handler http.Handler, httpPort int) *http.Server {
	return &http.Server{
		Addr:         strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      handler,
	}
}

// RunWebService serves until the shutdown channel fires, then drains in-flight
// requests within the grace period.
func RunWebService(log *logger.Logger,
	wg *sync.WaitGroup,
	srv *http.Server,
	shutdownSignal chan bool) {
	wg.Add(1)
	defer wg.Done()

	go func() {
		<-shutdownSignal
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("webapi: shutdown error: %v", err)
			_ = srv.Close()
		}
	}()

	log.Printf("webapi: listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("webapi: server error: %v", err)
	}
}

func (s *webService) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.build,
	})
}

func (s *webService) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("webapi: marshaling response: %v", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.log.Printf("webapi: writing response: %v", err)
	}
}

func (s *webService) respondError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	s.respondJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// EnvList splits a comma-separated environment variable into trimmed entries.
func EnvList(name string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
