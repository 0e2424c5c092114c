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

// Command reconciler runs the background loop that replays outstanding
// reconciliation debts against the graph projection. It is deliberately
// a separate process from cmd/worker: reconciliation runs on a fixed
// ticker independent of ingest volume, and should not compete with the
// processor pool's concurrency budget.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/baggageops/core/internal/app"
	"github.com/baggageops/core/internal/config"
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

	logger.Info("reconciler starting")
	core.Reconciler.Run(ctx)
	logger.Info("reconciler stopped")
}
