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

// Command ingest-service serves the synchronous HTTP ingest and query
// boundary. It never runs the event processor pool itself — that is
// cmd/worker's job — so a deployment can scale the two independently.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/baggageops/core/internal/app"
	"github.com/baggageops/core/internal/config"
	"github.com/baggageops/core/internal/httpapi"
	"github.com/baggageops/core/pkg/shared/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("load config: " + err.Error())
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic("build logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.New(ctx, cfg, logger)
	defer core.Close()
	if err != nil {
		logger.Fatal("wire core", zap.Error(err))
	}

	httpCfg := httpapi.DefaultConfig()
	httpCfg.RedisClient = core.Redis
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: core.HTTPServer.Router(httpCfg),
	}

	go func() {
		logger.Info("ingest-service listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server exited", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down ingest-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

