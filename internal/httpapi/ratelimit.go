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
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig bounds how many ingest requests one source IP may make
// per window before the boundary starts answering 429 rather than
// queueing work the processor pool has no budget for.
type RateLimitConfig struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitConfig allows 600 requests/minute/IP, well above a
// single handheld scanner's real traffic and low enough to shed a
// runaway integrator before it saturates the bus.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Limit: 600, Window: time.Minute}
}

// rateLimit builds a fixed-window counter per client IP backed by a
// Redis INCR+EXPIRE pair, the same primitive the ingest bus's dedup
// window already uses. nil client disables rate limiting entirely (used
// in tests that construct a Server without a Redis dependency).
func rateLimit(client *redis.Client, cfg RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if client == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractClientIP(r)
			key := "ratelimit:" + ip
			ctx := r.Context()

			count, err := client.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn("rate limit check failed, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				client.Expire(ctx, key, cfg.Window)
			}
			if count > cfg.Limit {
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				writeProblem(w, http.StatusTooManyRequests, "about:blank#backpressure", "ingest backpressure",
					"rate limit exceeded for "+ip)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP prefers the first hop of X-Forwarded-For (the
// originating client behind an ingress/proxy chain) and falls back to
// the raw remote address.
func extractClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i, c := range fwd {
			if c == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
