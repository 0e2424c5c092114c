package config

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
server:
  port: "8080"
  metrics_port: "9090"

store:
  relational_url: "postgres://localhost/baggageops"
  graph_url: "bolt://localhost:7687"
  graph_user: "neo4j"
  eventlog_url: "redis://localhost:6379"

thresholds:
  high_risk_threshold: 0.65
  critical_risk_threshold: 0.95
  auto_dispatch_threshold: 0.85

worker:
  worker_batch_size: 25
  worker_block_ms: 2000
  projection_retry_attempts: 5

reasoning:
  provider: "bedrock"
  model: "claude-instant"

logging:
  level: "debug"
  format: "json"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.Server.Port).To(Equal("8080"))
				Expect(cfg.Server.MetricsPort).To(Equal("9090"))

				Expect(cfg.Store.RelationalURL).To(Equal("postgres://localhost/baggageops"))
				Expect(cfg.Store.GraphURL).To(Equal("bolt://localhost:7687"))

				Expect(cfg.Thresholds.HighRisk).To(Equal(0.65))
				Expect(cfg.Thresholds.CriticalRisk).To(Equal(0.95))
				Expect(cfg.Thresholds.AutoDispatch).To(Equal(0.85))

				Expect(cfg.Worker.BatchSize).To(Equal(25))
				Expect(cfg.Worker.BlockMS).To(Equal(2000))
				Expect(cfg.Worker.ProjectionRetryAttempts).To(Equal(5))

				Expect(cfg.Reasoning.Provider).To(Equal("bedrock"))
				Expect(cfg.Reasoning.Model).To(Equal("claude-instant"))

				Expect(cfg.Logging.Level).To(Equal("debug"))
				Expect(cfg.Logging.Format).To(Equal("json"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
store:
  relational_url: "postgres://localhost/baggageops"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Store.RelationalURL).To(Equal("postgres://localhost/baggageops"))

				Expect(cfg.Thresholds.HighRisk).To(Equal(0.7))
				Expect(cfg.Thresholds.CriticalRisk).To(Equal(0.9))
				Expect(cfg.Thresholds.AutoDispatch).To(Equal(0.8))
				Expect(cfg.Worker.BatchSize).To(Equal(10))
				Expect(cfg.Worker.DedupTTLSeconds).To(Equal(300))
				Expect(cfg.Reasoning.Provider).To(Equal("anthropic"))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
server:
  port: "8080"
  invalid_yaml: [
store:
  relational_url: "test"
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when an environment override has an invalid numeric value", func() {
			BeforeEach(func() {
				err := os.WriteFile(configFile, []byte("store:\n  relational_url: \"test\"\n"), 0644)
				Expect(err).NotTo(HaveOccurred())
				os.Setenv("HIGH_RISK_THRESHOLD", "not-a-number")
			})

			AfterEach(func() { os.Unsetenv("HIGH_RISK_THRESHOLD") })

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = defaults()
			cfg.Store.RelationalURL = "postgres://localhost/baggageops"
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				Expect(validate(cfg)).To(Succeed())
			})
		})

		Context("when the high risk threshold is out of range", func() {
			BeforeEach(func() { cfg.Thresholds.HighRisk = 1.2 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("high risk threshold"))
			})
		})

		Context("when the critical threshold does not exceed the high threshold", func() {
			BeforeEach(func() { cfg.Thresholds.CriticalRisk = cfg.Thresholds.HighRisk })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("critical risk threshold"))
			})
		})

		Context("when worker batch size is zero", func() {
			BeforeEach(func() { cfg.Worker.BatchSize = 0 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("worker batch size"))
			})
		})

		Context("when the reasoning provider is unsupported", func() {
			BeforeEach(func() { cfg.Reasoning.Provider = "openai" })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("unsupported reasoning provider"))
			})
		})
	})

	Describe("loadFromEnv", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = defaults()
			os.Clearenv()
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("RELATIONAL_URL", "postgres://env/baggageops")
				os.Setenv("HIGH_RISK_THRESHOLD", "0.55")
				os.Setenv("WORKER_BATCH_SIZE", "42")
				os.Setenv("LOG_LEVEL", "debug")
			})

			AfterEach(func() { os.Clearenv() })

			It("should load values from the environment", func() {
				Expect(loadFromEnv(cfg)).To(Succeed())

				Expect(cfg.Store.RelationalURL).To(Equal("postgres://env/baggageops"))
				Expect(cfg.Thresholds.HighRisk).To(Equal(0.55))
				Expect(cfg.Worker.BatchSize).To(Equal(42))
				Expect(cfg.Logging.Level).To(Equal("debug"))
			})
		})

		Context("when no environment variables are set", func() {
			It("should not modify the config", func() {
				before := *cfg
				Expect(loadFromEnv(cfg)).To(Succeed())
				Expect(*cfg).To(Equal(before))
			})
		})
	})
})
