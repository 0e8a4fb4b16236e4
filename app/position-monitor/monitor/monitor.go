// Package monitor periodically computes train positions for the configured
// lines and publishes each line's snapshot as JSON over NATS, so map
// frontends can subscribe instead of polling the HTTP API.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	logger "log"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nowtrain/backend/business/tracker"
)

// positionPublicationDestination is where line snapshots are sent after each
// sweep.
type positionPublicationDestination interface {
	Publish(lineKey string, response *tracker.PositionsResponse) error
}

// natsPositionPublicationDestination sends snapshots over nats, one subject
// per line under the configured prefix.
type natsPositionPublicationDestination struct {
	natsConn      *nats.Conn
	subjectPrefix string
}

func (n *natsPositionPublicationDestination) Publish(lineKey string, response *tracker.PositionsResponse) error {
	jsonData, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshaling positions for %s: %w", lineKey, err)
	}
	return n.natsConn.Publish(n.subjectPrefix+"."+lineKey, jsonData)
}

// positionMonitor sweeps the configured lines once per interval.
type positionMonitor struct {
	log         *logger.Logger
	tracker     *tracker.Tracker
	destination positionPublicationDestination
	lines       []string
	sweepPeriod time.Duration
}

// RunPositionMonitorLoop publishes a snapshot per line every loopEverySeconds
// until the shutdown signal fires.
func RunPositionMonitorLoop(log *logger.Logger,
	trk *tracker.Tracker,
	natsConn *nats.Conn,
	subjectPrefix string,
	lines []string,
	loopEverySeconds int,
	shutdownSignal chan os.Signal) error {

	m := &positionMonitor{
		log:     log,
		tracker: trk,
		destination: &natsPositionPublicationDestination{
			natsConn:      natsConn,
			subjectPrefix: subjectPrefix,
		},
		lines:       lines,
		sweepPeriod: time.Duration(loopEverySeconds) * time.Second,
	}
	return m.run(shutdownSignal)
}

func (m *positionMonitor) run(shutdownSignal chan os.Signal) error {
	ticker := time.NewTicker(m.sweepPeriod)
	defer ticker.Stop()

	m.log.Printf("monitor: publishing %d lines every %s", len(m.lines), m.sweepPeriod)
	for {
		m.sweep()
		select {
		case <-shutdownSignal:
			m.log.Printf("monitor: exiting on shutdown signal")
			return nil
		case <-ticker.C:
		}
	}
}

// sweep computes and publishes one snapshot per line. A failing line is
// logged and skipped so the other lines keep flowing.
func (m *positionMonitor) sweep() {
	for _, lineKey := range m.lines {
		ctx, cancel := context.WithTimeout(context.Background(), m.sweepPeriod)
		response, err := m.tracker.TrainPositions(ctx, lineKey)
		cancel()
		if err != nil {
			m.log.Printf("monitor: positions for %s: %v", lineKey, err)
			continue
		}
		if err := m.destination.Publish(lineKey, response); err != nil {
			m.log.Printf("monitor: publishing %s: %v", lineKey, err)
			continue
		}
		m.log.Printf("monitor: published %s: status=%s trains=%d", lineKey, response.Status, response.TotalTrains)
	}
}
