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

package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

// httpClientConfig configures the shared transport every HTTP-backed
// port adapter in this package builds on: an OAuth2 client-credentials
// token source wrapping the base transport, and a per-service circuit
// breaker so a stuck downstream trips open instead of piling up
// goroutines waiting on it.
type httpClientConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

// newHTTPClient builds the oauth2-authenticated *http.Client. When
// ClientID is empty (e.g. local/dev wiring against an unauthenticated
// stub), it falls back to a bare client with no bearer token.
func newHTTPClient(cfg httpClientConfig) *http.Client {
	if cfg.ClientID == "" {
		return &http.Client{Timeout: cfg.Timeout}
	}
	ccCfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return ccCfg.Client(context.Background())
}

// newBreaker returns a per-service circuit breaker that opens after
// three consecutive failures and probes again after 30 seconds.
func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(n string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", n), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}
