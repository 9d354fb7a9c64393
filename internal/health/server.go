// Package health exposes a lightweight HTTP endpoint for container probes and
// hosts the Telegram webhook route when webhook mode is active.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"bench_bot/internal/logging"
)

const (
	mongoPingTimeout   = 2 * time.Second
	statsTimeout       = 2 * time.Second
	readHeaderTimeout  = 2 * time.Second
	healthListenPrefix = ":"

	// WebhookPath is the route Telegram posts updates to.
	WebhookPath = "/webhook"
)

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// StatsSource reports document counts for the health payload.
type StatsSource interface {
	CountBenches(ctx context.Context) (int64, error)
	CountLocations(ctx context.Context) (int64, error)
}

// Server hosts the health endpoint and owns the underlying HTTP server.
type Server struct {
	server       *http.Server
	logger       *logrus.Entry
	mongoChecker MongoChecker
	stats        StatsSource
}

type response struct {
	Status    string `json:"status"`
	Mongo     string `json:"mongo,omitempty"`
	Benches   *int64 `json:"benches,omitempty"`
	Locations *int64 `json:"locations,omitempty"`
}

// NewServer constructs a health server that exposes GET /healthz on the
// provided port. A non-nil webhook handler is mounted on POST /webhook.
func NewServer(port int, mongoChecker MongoChecker, stats StatsSource, webhook http.HandlerFunc, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:       logger,
		mongoChecker: mongoChecker,
		stats:        stats,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	if webhook != nil {
		mux.HandleFunc(WebhookPath, webhook)
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", healthListenPrefix, port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the health server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "health_stopped").Info("health server stopped")
			return nil
		}

		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}
	mongoStatus := "ok"

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if s.mongoChecker == nil {
		mongoStatus = "error"
		s.logger.WithField("event", "health_mongo_missing").Warn("mongo checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, mongoPingTimeout)
		err := s.mongoChecker.Ping(pingCtx)
		cancel()

		if err != nil {
			mongoStatus = "error"
			s.logger.WithFields(logging.Fields{
				"event": "health_mongo_error",
			}).WithError(err).Warn("mongo ping failed during health check")
		}
	}

	if mongoStatus != "ok" {
		resp.Status = "degraded"
		resp.Mongo = "error"
	}

	if s.stats != nil && mongoStatus == "ok" {
		statsCtx, cancel := context.WithTimeout(ctx, statsTimeout)
		s.fillStats(statsCtx, &resp)
		cancel()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}

// fillStats adds document counts to the payload. Count failures leave the
// fields out without degrading the overall status.
func (s *Server) fillStats(ctx context.Context, resp *response) {
	benches, err := s.stats.CountBenches(ctx)
	if err != nil {
		s.logger.WithField("event", "health_stats_error").WithError(err).Warn("failed to count benches")
		return
	}

	locations, err := s.stats.CountLocations(ctx)
	if err != nil {
		s.logger.WithField("event", "health_stats_error").WithError(err).Warn("failed to count locations")
		return
	}

	resp.Benches = &benches
	resp.Locations = &locations
}
