/*
Copyright 2026 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validatorpkg "github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/baggageops/core/pkg/bus"
	"github.com/baggageops/core/pkg/coordinator"
)

// Server holds everything the HTTP boundary reads or writes through:
// the coordinator for synchronous query reads, and the bus for
// publishing freshly-parsed events and serving stream introspection.
// It never talks to the orchestrator or any capability adapter directly
// — those are exercised only from the asynchronous worker pool in
// pkg/processor once an event is durably on the bus.
type Server struct {
	coord    *coordinator.Coordinator
	bus      bus.Bus
	validate *validatorpkg.Validate
	logger   *zap.Logger
}

// Config controls CORS and rate-limit policy; RedisClient is optional —
// a nil client disables rate limiting (used in tests).
type Config struct {
	AllowedOrigins []string
	RateLimit      RateLimitConfig
	RedisClient    *redis.Client
}

// DefaultConfig returns permissive-dev CORS and the default rate limit.
func DefaultConfig() Config {
	return Config{AllowedOrigins: []string{"*"}, RateLimit: DefaultRateLimitConfig()}
}

// NewServer constructs a Server. coord and b must be non-nil; every
// handler reaches exactly one of them.
func NewServer(coord *coordinator.Coordinator, b bus.Bus, logger *zap.Logger) *Server {
	return &Server{coord: coord, bus: b, validate: validatorpkg.New(), logger: logger}
}

// Router builds the chi.Mux every cmd/ingest-service entrypoint serves.
func (s *Server) Router(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(requestLogger(s.logger))
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(rateLimit(cfg.RedisClient, cfg.RateLimit, s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Post("/events/scan", s.handleEventScan)
	r.Post("/events/batch", s.handleEventBatch)
	r.Post("/scan", s.handleScan)
	r.Post("/type-b", s.handleTypeB)
	r.Post("/baggage-xml", s.handleBaggageXML)

	r.Get("/bag/{tag}", s.handleGetBag)
	r.Get("/bags", s.handleListBags)
	r.Get("/graph/bags/{id}/journey", s.handleJourney)
	r.Get("/graph/bags/{id}/current-location", s.handleCurrentLocation)
	r.Get("/graph/flights/{id}/bags", s.handleFlightBags)
	r.Post("/graph/bags/connection-risk", s.handleConnectionRisk)
	r.Get("/graph/analytics/bottlenecks", s.handleBottlenecks)
	r.Get("/events/stream/info", s.handleStreamInfo)
	r.Get("/events/replay", s.handleReplay)

	return r
}
