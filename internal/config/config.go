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

// Package config loads and validates the core's runtime configuration
// from a YAML file, then layers environment variable overrides on top —
// the connection strings and tunable thresholds are expected to live in
// the environment in most deployments, while the YAML file carries the
// more structural, rarely-changed settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig holds the connection settings for the three external
// capability adapters every Core wires at startup.
type StoreConfig struct {
	RelationalURL string `yaml:"relational_url"`
	GraphURL      string `yaml:"graph_url"`
	GraphUser     string `yaml:"graph_user"`
	GraphPassword string `yaml:"graph_password"`
	EventLogURL   string `yaml:"eventlog_url"`
}

// IntegrationConfig holds the downstream REST endpoints the orchestrator's
// capability adapters dispatch PIRs and courier requests against.
// Credentials are OAuth client-credentials, sourced like the rest of this
// struct from YAML or environment overrides.
type IntegrationConfig struct {
	PIRBaseURL             string  `yaml:"pir_base_url"`
	PIRClientID            string  `yaml:"pir_client_id"`
	PIRClientSecret        string  `yaml:"pir_client_secret"`
	PIRTokenURL            string  `yaml:"pir_token_url"`
	CourierBaseURL         string  `yaml:"courier_base_url"`
	CourierClientID        string  `yaml:"courier_client_id"`
	CourierClientSecret    string  `yaml:"courier_client_secret"`
	CourierTokenURL        string  `yaml:"courier_token_url"`
	ApprovalValueThreshold float64 `yaml:"approval_value_threshold"`
}

// NotificationConfig holds the passenger-facing gateway URLs the notify
// capability's channel senders post rendered messages to, plus the ops
// desk Slack channel used only for P0/P1 ExceptionCase escalations.
// SlackToken is never read from YAML, only from the SLACK_BOT_TOKEN
// environment variable, so a bot token never lands in a config file on
// disk.
type NotificationConfig struct {
	SMSWebhookURL   string `yaml:"sms_webhook_url"`
	EmailWebhookURL string `yaml:"email_webhook_url"`
	PushWebhookURL  string `yaml:"push_webhook_url"`
	SlackChannelID  string `yaml:"slack_channel_id"`
	SlackToken      string `yaml:"-"`
}

// ThresholdConfig holds the numeric risk thresholds that drive the
// policy-evaluated orchestrator decisions.
type ThresholdConfig struct {
	HighRisk     float64 `yaml:"high_risk_threshold"`
	CriticalRisk float64 `yaml:"critical_risk_threshold"`
	AutoDispatch float64 `yaml:"auto_dispatch_threshold"`
}

// WorkerConfig tunes the event processor worker pool and the ingest bus
// consumer group it reads from.
type WorkerConfig struct {
	DedupTTLSeconds         int `yaml:"dedup_ttl_seconds"`
	EventLogMaxLen          int `yaml:"eventlog_max_len"`
	BatchSize               int `yaml:"worker_batch_size"`
	BlockMS                 int `yaml:"worker_block_ms"`
	ProjectionRetryAttempts int `yaml:"projection_retry_attempts"`
	StaleClaimMS            int `yaml:"stale_claim_ms"`
}

// WorkflowConfig tunes the orchestrator's timer-driven transitions.
type WorkflowConfig struct {
	MCTBufferMinutes      int `yaml:"mct_buffer_minutes"`
	ScanGapWarningMinutes int `yaml:"scan_gap_warning_minutes"`
}

// ServerConfig holds the ingest HTTP API's listen settings.
type ServerConfig struct {
	Port        string `yaml:"port"`
	MetricsPort string `yaml:"metrics_port"`
}

// LoggingConfig controls the zap logger constructed at wiring time.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReasoningConfig selects and configures the ReasoningCapability adapter.
type ReasoningConfig struct {
	Provider string        `yaml:"provider"` // "anthropic" | "bedrock"
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Config is the fully-resolved runtime configuration. Every field has a
// sane default applied by Load so a minimal YAML file (or none at all,
// relying entirely on environment variables) still produces a usable
// Config.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Integration  IntegrationConfig  `yaml:"integration"`
	Notification NotificationConfig `yaml:"notification"`
	Thresholds   ThresholdConfig    `yaml:"thresholds"`
	Worker       WorkerConfig       `yaml:"worker"`
	Workflow     WorkflowConfig     `yaml:"workflow"`
	Logging      LoggingConfig      `yaml:"logging"`
	Reasoning    ReasoningConfig    `yaml:"reasoning"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", MetricsPort: "9090"},
		Thresholds: ThresholdConfig{
			HighRisk:     0.7,
			CriticalRisk: 0.9,
			AutoDispatch: 0.8,
		},
		Worker: WorkerConfig{
			DedupTTLSeconds:         300,
			EventLogMaxLen:          100000,
			BatchSize:               10,
			BlockMS:                 5000,
			ProjectionRetryAttempts: 3,
			StaleClaimMS:            60000,
		},
		Workflow: WorkflowConfig{
			MCTBufferMinutes:      15,
			ScanGapWarningMinutes: 30,
		},
		Integration: IntegrationConfig{
			ApprovalValueThreshold: 500.0,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Reasoning: ReasoningConfig{
			Provider: "anthropic",
			Timeout:  30 * time.Second,
		},
	}
}

// Load reads path, merges it onto the defaults, applies environment
// overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("RELATIONAL_URL"); v != "" {
		cfg.Store.RelationalURL = v
	}
	if v := os.Getenv("GRAPH_URL"); v != "" {
		cfg.Store.GraphURL = v
	}
	if v := os.Getenv("GRAPH_USER"); v != "" {
		cfg.Store.GraphUser = v
	}
	if v := os.Getenv("GRAPH_PASSWORD"); v != "" {
		cfg.Store.GraphPassword = v
	}
	if v := os.Getenv("EVENTLOG_URL"); v != "" {
		cfg.Store.EventLogURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	cfg.Notification.SlackToken = os.Getenv("SLACK_BOT_TOKEN")
	if v := os.Getenv("PIR_CLIENT_SECRET"); v != "" {
		cfg.Integration.PIRClientSecret = v
	}
	if v := os.Getenv("COURIER_CLIENT_SECRET"); v != "" {
		cfg.Integration.CourierClientSecret = v
	}

	var floatErr error
	setFloat := func(env string, dst *float64) {
		v := os.Getenv(env)
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			floatErr = fmt.Errorf("%s: %w", env, err)
			return
		}
		*dst = f
	}
	setFloat("HIGH_RISK_THRESHOLD", &cfg.Thresholds.HighRisk)
	setFloat("CRITICAL_RISK_THRESHOLD", &cfg.Thresholds.CriticalRisk)
	setFloat("AUTO_DISPATCH_THRESHOLD", &cfg.Thresholds.AutoDispatch)
	if floatErr != nil {
		return floatErr
	}

	var intErr error
	setInt := func(env string, dst *int) {
		v := os.Getenv(env)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			intErr = fmt.Errorf("%s: %w", env, err)
			return
		}
		*dst = n
	}
	setInt("DEDUP_TTL_SECONDS", &cfg.Worker.DedupTTLSeconds)
	setInt("EVENTLOG_MAX_LEN", &cfg.Worker.EventLogMaxLen)
	setInt("WORKER_BATCH_SIZE", &cfg.Worker.BatchSize)
	setInt("WORKER_BLOCK_MS", &cfg.Worker.BlockMS)
	setInt("PROJECTION_RETRY_ATTEMPTS", &cfg.Worker.ProjectionRetryAttempts)
	setInt("STALE_CLAIM_MS", &cfg.Worker.StaleClaimMS)
	setInt("MCT_BUFFER_MINUTES", &cfg.Workflow.MCTBufferMinutes)
	setInt("SCAN_GAP_WARNING_MINUTES", &cfg.Workflow.ScanGapWarningMinutes)
	if intErr != nil {
		return intErr
	}

	return nil
}

func validate(cfg *Config) error {
	if cfg.Thresholds.HighRisk <= 0 || cfg.Thresholds.HighRisk >= 1 {
		return fmt.Errorf("high risk threshold must be between 0.0 and 1.0")
	}
	if cfg.Thresholds.CriticalRisk <= cfg.Thresholds.HighRisk || cfg.Thresholds.CriticalRisk > 1 {
		return fmt.Errorf("critical risk threshold must exceed the high risk threshold and be at most 1.0")
	}
	if cfg.Worker.BatchSize <= 0 {
		return fmt.Errorf("worker batch size must be greater than 0")
	}
	if cfg.Worker.ProjectionRetryAttempts < 0 {
		return fmt.Errorf("projection retry attempts must not be negative")
	}
	switch cfg.Reasoning.Provider {
	case "anthropic", "bedrock":
	default:
		return fmt.Errorf("unsupported reasoning provider: %s", cfg.Reasoning.Provider)
	}
	return nil
}
