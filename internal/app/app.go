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

// Package app wires every concrete adapter named in internal/config into
// a Core, the one place in this repository that knows the full
// dependency graph. cmd/ingest-service, cmd/worker, and cmd/reconciler
// each build a Core and run the slice of it they need; none of them
// constructs an adapter directly.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/baggageops/core/internal/config"
	"github.com/baggageops/core/internal/database"
	"github.com/baggageops/core/internal/httpapi"
	"github.com/baggageops/core/pkg/bus"
	"github.com/baggageops/core/pkg/bus/redisbus"
	"github.com/baggageops/core/pkg/coordinator"
	"github.com/baggageops/core/pkg/domain"
	"github.com/baggageops/core/pkg/notification"
	"github.com/baggageops/core/pkg/notification/channels"
	opsslack "github.com/baggageops/core/pkg/notification/slack"
	"github.com/baggageops/core/pkg/orchestrator"
	"github.com/baggageops/core/pkg/orchestrator/capabilities"
	"github.com/baggageops/core/pkg/ports"
	"github.com/baggageops/core/pkg/processor"
	"github.com/baggageops/core/pkg/reasoning"
	"github.com/baggageops/core/pkg/risk/policy"
	"github.com/baggageops/core/pkg/store/graph"
	"github.com/baggageops/core/pkg/store/graph/neo4jgraph"
	"github.com/baggageops/core/pkg/store/reconcile"
	"github.com/baggageops/core/pkg/store/relational"
)

const streamKey = "baggage-events"
const consumerGroup = "ingest-workers"

// Core holds every wired adapter a cmd entrypoint might need. Fields are
// exported so an entrypoint can reach exactly the ones it runs without
// Core needing a method per combination.
type Core struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *sql.DB
	Relational  *relational.Store
	Graph       graph.Store
	neo4jDriver neo4j.DriverWithContext
	Redis       *redis.Client
	Bus         bus.Bus
	Coordinator *coordinator.Coordinator
	Processor   *processor.Processor
	Reconciler  *reconcile.Reconciler
	HTTPServer  *httpapi.Server
}

// New opens every downstream connection named in cfg and assembles a
// Core. Callers must call Close when done, even on a returned error, to
// release whatever was opened before the failure.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Core, error) {
	c := &Core{Config: cfg, Logger: logger}

	db, err := sql.Open("pgx", cfg.Store.RelationalURL)
	if err != nil {
		return c, fmt.Errorf("open relational store: %w", err)
	}
	c.DB = db
	if err := database.Migrate(db); err != nil {
		return c, fmt.Errorf("apply migrations: %w", err)
	}
	c.Relational = relational.New(db)

	driver, err := neo4j.NewDriverWithContext(cfg.Store.GraphURL,
		neo4j.BasicAuth(cfg.Store.GraphUser, cfg.Store.GraphPassword, ""))
	if err != nil {
		return c, fmt.Errorf("open graph driver: %w", err)
	}
	c.neo4jDriver = driver
	c.Graph = neo4jgraph.New(driver, "")

	c.Redis = redis.NewClient(&redis.Options{Addr: cfg.Store.EventLogURL})

	ingestBus, err := redisbus.New(ctx, c.Redis, redisbus.Config{
		StreamKey:    streamKey,
		DLQStreamKey: streamKey + ":dlq",
		GroupName:    consumerGroup,
		MaxLen:       int64(cfg.Worker.EventLogMaxLen),
		DedupTTL:     defaultDedupTTL(cfg),
	})
	if err != nil {
		return c, fmt.Errorf("open ingest bus: %w", err)
	}
	c.Bus = ingestBus

	c.Coordinator = coordinator.NewCoordinator(c.Relational, c.Graph, logger)

	policyEngine, err := policy.NewEngine(ctx)
	if err != nil {
		return c, fmt.Errorf("compile threshold policy: %w", err)
	}
	thresholds := policy.Thresholds{
		High:         cfg.Thresholds.HighRisk,
		Critical:     cfg.Thresholds.CriticalRisk,
		AutoDispatch: cfg.Thresholds.AutoDispatch,
	}

	pirSvc := ports.NewHTTPPIRService(ports.PIRServiceConfig{
		BaseURL:      cfg.Integration.PIRBaseURL,
		ClientID:     cfg.Integration.PIRClientID,
		ClientSecret: cfg.Integration.PIRClientSecret,
		TokenURL:     cfg.Integration.PIRTokenURL,
	}, logger)
	courierSvc := ports.NewHTTPCourierService(ports.CourierServiceConfig{
		BaseURL:      cfg.Integration.CourierBaseURL,
		ClientID:     cfg.Integration.CourierClientID,
		ClientSecret: cfg.Integration.CourierClientSecret,
		TokenURL:     cfg.Integration.CourierTokenURL,
	}, logger)

	dispatcher := buildNotificationDispatcher(cfg, c.Redis, logger)

	var ops opsslack.CaseAlerter
	if cfg.Notification.SlackToken != "" && cfg.Notification.SlackChannelID != "" {
		ops = opsslack.NewClient(cfg.Notification.SlackToken, cfg.Notification.SlackChannelID, logger)
	}

	reasoner, err := buildReasoningCapability(ctx, cfg, logger)
	if err != nil {
		return c, fmt.Errorf("build reasoning capability: %w", err)
	}

	sink := processor.NewEffectSink(c.Coordinator, pirSvc, courierSvc, dispatcher, ops, reasoner, logger)

	steps := []orchestrator.Capability{
		capabilities.NewRiskScore(timeNow),
		capabilities.NewCaseManage(policyEngine, thresholds, timeNow, uuid.NewString),
		capabilities.NewWorldTracerFile(pirSvc.HasOpenPIR),
		capabilities.NewCourierDecide(policyEngine, thresholds, cfg.Integration.ApprovalValueThreshold,
			estimateCostFn(courierSvc), destinationForBag, uuid.NewString),
		capabilities.NewNotify(recipientsForBag, templateFor),
	}
	wfDriver := orchestrator.NewDriver(steps, sink, logger)

	procCfg := processor.DefaultConfig(consumerGroup)
	procCfg.BatchSize = int64(cfg.Worker.BatchSize)
	procCfg.BlockTimeout = msDuration(cfg.Worker.BlockMS)
	procCfg.StaleAfter = msDuration(cfg.Worker.StaleClaimMS)
	c.Processor = processor.New(c.Bus, c.Coordinator, wfDriver, procCfg, logger)

	c.Reconciler = reconcile.New(c.Relational, func(ctx context.Context, d reconcile.Debt) error {
		return c.Coordinator.ReplayDebt(ctx, d.EventID)
	}, reconcile.DefaultConfig(), logger)

	c.HTTPServer = httpapi.NewServer(c.Coordinator, c.Bus, logger)

	return c, nil
}

// Close releases every connection New opened. It tolerates a partially
// constructed Core (the state New leaves behind on error), closing only
// what is non-nil.
func (c *Core) Close() {
	if c.neo4jDriver != nil {
		_ = c.neo4jDriver.Close(context.Background())
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}

// buildReasoningCapability selects and constructs the narrative
// enrichment adapter named by cfg.Reasoning.Provider. Credentials for
// both providers come from the environment, the same pattern as
// SLACK_BOT_TOKEN, rather than from the YAML config file. A missing
// ANTHROPIC_API_KEY does not fail wiring: the adapter is still built,
// and the Anthropic SDK reports the missing key when it makes its
// first call, which surfaces as a logged, best-effort failure inside
// EffectSink rather than a startup error.
func buildReasoningCapability(ctx context.Context, cfg *config.Config, logger *zap.Logger) (reasoning.Capability, error) {
	switch cfg.Reasoning.Provider {
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		return reasoning.NewBedrockCapability(client, cfg.Reasoning.Model, cfg.Reasoning.Timeout, logger), nil
	default:
		return reasoning.NewAnthropicCapability(os.Getenv("ANTHROPIC_API_KEY"), cfg.Reasoning.Model, cfg.Reasoning.Timeout, logger), nil
	}
}

func buildNotificationDispatcher(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *notification.Dispatcher {
	dedup := notification.NewDeduper(redisClient, domain.DedupWindow)
	renderer := notification.NewTemplateRenderer()
	senders := map[domain.NotificationChannel]notification.ChannelSender{
		domain.ChannelSMS:   channels.NewWebhookSender("sms-gateway", cfg.Notification.SMSWebhookURL, 0, logger),
		domain.ChannelEmail: channels.NewWebhookSender("email-gateway", cfg.Notification.EmailWebhookURL, 0, logger),
		domain.ChannelPush:  channels.NewWebhookSender("push-gateway", cfg.Notification.PushWebhookURL, 0, logger),
	}
	return notification.NewDispatcher(dedup, renderer, senders)
}

// estimateCostFn adapts CourierService.EstimateCost (context-aware, can
// fail) to the synchronous, error-free signature CourierDecide wants. A
// failed estimate is treated as zero cost rather than blocking the step;
// CourierDecide's approval gate then falls back to whatever the
// threshold policy decides for an un-costed dispatch.
func estimateCostFn(courier ports.CourierService) func(string) float64 {
	return func(destination string) float64 {
		cost, err := courier.EstimateCost(context.Background(), destination)
		if err != nil {
			return 0
		}
		return cost
	}
}

// destinationForBag reports the final leg of a bag's routing, falling
// back to its current location when the route is exhausted or unset.
func destinationForBag(bag domain.Bag) string {
	if len(bag.Routing) > 0 {
		return bag.Routing[len(bag.Routing)-1]
	}
	return bag.CurrentLocation
}

// recipientsForBag addresses both SMS and email to the bag's PNR: this
// repository has no separate passenger-contact directory, so the
// downstream gateway webhook is expected to resolve a PNR to an actual
// phone number or address.
func recipientsForBag(bag domain.Bag) []capabilities.Recipient {
	if bag.PNR == "" {
		return nil
	}
	return []capabilities.Recipient{
		{Address: bag.PNR, Channel: domain.ChannelSMS},
		{Address: bag.PNR, Channel: domain.ChannelEmail},
	}
}

func templateFor(status domain.BagStatus, level domain.RiskLevel) string {
	switch status {
	case domain.StatusDelayed:
		return "bag-delayed"
	case domain.StatusMishandled:
		if level == domain.RiskHigh || level == domain.RiskCritical {
			return "bag-mishandled-high"
		}
		return "bag-mishandled-low"
	case domain.StatusOffloaded:
		return "bag-offloaded"
	case domain.StatusArrived:
		return "bag-arrived"
	case domain.StatusClaimed:
		return "bag-claimed"
	default:
		return "bag-delayed"
	}
}

func defaultDedupTTL(cfg *config.Config) time.Duration {
	if cfg.Worker.DedupTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(cfg.Worker.DedupTTLSeconds) * time.Second
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func timeNow() time.Time { return time.Now() }
