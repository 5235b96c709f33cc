// Package common provides shared utilities for the orchestrator.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the orchestrator.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Logging     LoggingConfig `toml:"logging"`
	Database    DatabaseConfig `toml:"database"`
	Dispatcher  DispatcherConfig `toml:"dispatcher"`
	Stages      StagesConfig  `toml:"stages"`
	Adapters    AdaptersConfig `toml:"adapters"`
}

// ServerConfig holds the read-only status RPC server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `toml:"level"`
	Outputs []string `toml:"outputs"`
}

// DatabaseConfig selects and configures the job store backend.
type DatabaseConfig struct {
	Backend  string `toml:"backend"` // "surrealdb" or "memory"
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database string `toml:"database"`
}

// DispatcherConfig governs the queue-consumer pool.
type DispatcherConfig struct {
	// MaxConcurrentOsJobs bounds the number of simultaneous OsRun process
	// calls, via a semaphore, regardless of how many process-queue
	// consumers are running (spec.md §9 open question).
	MaxConcurrentOsJobs int `toml:"max_concurrent_os_jobs"`

	// ConsumersPerQueue is the number of consumer goroutines per logical
	// queue (process/verify/failure).
	ConsumersPerQueue int `toml:"consumers_per_queue"`

	// EmptyReceiveBackoff is how long a consumer sleeps after an empty
	// receive before polling again.
	EmptyReceiveBackoff time.Duration `toml:"empty_receive_backoff"`

	// ProcessRetryBaseDelay and ProcessRetryMaxDelay bound the
	// exponential backoff applied between re-enqueues on the process queue.
	ProcessRetryBaseDelay time.Duration `toml:"process_retry_base_delay"`
	ProcessRetryMaxDelay  time.Duration `toml:"process_retry_max_delay"`
}

// StageSettings are the retry-bound constants for one stage (spec.md §4.B).
type StageSettings struct {
	MaxProcessAttempts      int           `toml:"max_process_attempts"`
	MaxVerificationAttempts int           `toml:"max_verification_attempts"`
	VerificationPollDelay   time.Duration `toml:"verification_poll_delay"`
}

// StagesConfig holds per-job-type StageSettings.
type StagesConfig struct {
	OsRun             StageSettings `toml:"os_run"`
	ProofCreation     StageSettings `toml:"proof_creation"`
	DataSubmission    StageSettings `toml:"data_submission"`
	StateTransition   StageSettings `toml:"state_transition"`
	ProofRegistration StageSettings `toml:"proof_registration"`
}

// AdaptersConfig selects exactly one implementation per external capability,
// mirroring the CLI's mutually-exclusive flag groups (spec.md §6).
type AdaptersConfig struct {
	Settlement string `toml:"settlement"` // "ethereum" | "fake"
	DA         string `toml:"da"`         // "ethereum" | "fake"
	Prover     string `toml:"prover"`     // "http" | "fake"
	OsRun      string `toml:"os_run"`     // "snos" | "fake"
	ObjectStore string `toml:"object_store"` // "local" | "s3"
	Queue      string `toml:"queue"`      // "local" | "sqs"
	Alerter    string `toml:"alerter"`    // "webhook" | "fake"
	Cron       string `toml:"cron"`       // "interval" | "eventbridge"

	SnosBinaryPath string `toml:"snos_binary_path"`
	SnosWorkDir    string `toml:"snos_work_dir"`

	ObjectStoreLocalPath string `toml:"object_store_local_path"`
	S3Bucket             string `toml:"s3_bucket"`
	AWSRegion            string `toml:"aws_region"`
	SQSQueuePrefix       string `toml:"sqs_queue_prefix"`
	EthereumRPCURL       string `toml:"ethereum_rpc_url"`
	EthereumPrivateKey   string `toml:"ethereum_private_key"`
	EthereumChainID      int64  `toml:"ethereum_chain_id"`
	DAPublishTarget      string `toml:"da_publish_target"`
	SettlementContract   string `toml:"settlement_contract"`
	ProverBaseURL        string `toml:"prover_base_url"`
	ProverAPIKey         string `toml:"prover_api_key"`
	AlerterWebhookURL    string `toml:"alerter_webhook_url"`
	AlerterSigningKey    string `toml:"alerter_signing_key"`
	StarknetRPCURL       string `toml:"starknet_rpc_url"`
	CronInterval         time.Duration `toml:"cron_interval"`
}

// NewDefaultConfig returns a Config with sensible defaults for local/dev runs.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server:      ServerConfig{Host: "0.0.0.0", Port: 8090},
		Logging:     LoggingConfig{Level: "info", Outputs: []string{"console"}},
		Database: DatabaseConfig{
			Backend:   "memory",
			Address:   "ws://localhost:8000",
			Namespace: "orchestrator",
			Database:  "orchestrator",
		},
		Dispatcher: DispatcherConfig{
			MaxConcurrentOsJobs:   2,
			ConsumersPerQueue:     5,
			EmptyReceiveBackoff:   1 * time.Second,
			ProcessRetryBaseDelay: 2 * time.Second,
			ProcessRetryMaxDelay:  60 * time.Second,
		},
		Stages: StagesConfig{
			OsRun: StageSettings{
				MaxProcessAttempts: 2,
			},
			ProofCreation: StageSettings{
				MaxProcessAttempts:      2,
				MaxVerificationAttempts: 300,
				VerificationPollDelay:   30 * time.Second,
			},
			DataSubmission: StageSettings{
				MaxProcessAttempts:      1,
				MaxVerificationAttempts: 3,
				VerificationPollDelay:   60 * time.Second,
			},
			StateTransition: StageSettings{
				MaxProcessAttempts:      1,
				MaxVerificationAttempts: 1,
				VerificationPollDelay:   60 * time.Second,
			},
			ProofRegistration: StageSettings{
				MaxProcessAttempts:      2,
				MaxVerificationAttempts: 60,
				VerificationPollDelay:   30 * time.Second,
			},
		},
		Adapters: AdaptersConfig{
			Settlement:           "fake",
			DA:                   "fake",
			Prover:               "fake",
			OsRun:                "fake",
			ObjectStore:          "local",
			Queue:                "local",
			Alerter:              "fake",
			Cron:                 "interval",
			ObjectStoreLocalPath: "./data/objects",
			SnosWorkDir:          "./data/snos",
			CronInterval:         30 * time.Second,
		},
	}
}

// LoadConfig loads configuration from files (later files override earlier
// ones) and then applies environment overrides, exactly as the teacher's
// LoadConfig does for TOML + env layering.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ORCH_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("ORCH_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("ORCH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("ORCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if v := os.Getenv("ORCH_DB_BACKEND"); v != "" {
		config.Database.Backend = v
	}
	if v := os.Getenv("ORCH_DB_ADDRESS"); v != "" {
		config.Database.Address = v
	}
	if v := os.Getenv("ORCH_DB_USERNAME"); v != "" {
		config.Database.Username = v
	}
	if v := os.Getenv("ORCH_DB_PASSWORD"); v != "" {
		config.Database.Password = v
	}
	if v := os.Getenv("ORCH_SETTLEMENT"); v != "" {
		config.Adapters.Settlement = v
	}
	if v := os.Getenv("ORCH_DA"); v != "" {
		config.Adapters.DA = v
	}
	if v := os.Getenv("ORCH_PROVER"); v != "" {
		config.Adapters.Prover = v
	}
	if v := os.Getenv("ORCH_QUEUE"); v != "" {
		config.Adapters.Queue = v
	}
	if v := os.Getenv("ORCH_OBJECT_STORE"); v != "" {
		config.Adapters.ObjectStore = v
	}
	if v := os.Getenv("ORCH_ALERTER"); v != "" {
		config.Adapters.Alerter = v
	}
	if v := os.Getenv("ORCH_ETHEREUM_RPC_URL"); v != "" {
		config.Adapters.EthereumRPCURL = v
	}
	if v := os.Getenv("ORCH_PROVER_API_KEY"); v != "" {
		config.Adapters.ProverAPIKey = v
	}
	if v := os.Getenv("ORCH_S3_BUCKET"); v != "" {
		config.Adapters.S3Bucket = v
	}
	if v := os.Getenv("ORCH_ETHEREUM_PRIVATE_KEY"); v != "" {
		config.Adapters.EthereumPrivateKey = v
	}
	if v := os.Getenv("ORCH_STARKNET_RPC_URL"); v != "" {
		config.Adapters.StarknetRPCURL = v
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// Settings returns the StageSettings for the given job type.
func (c *StagesConfig) Settings(jobType string) StageSettings {
	switch jobType {
	case "OsRun":
		return c.OsRun
	case "ProofCreation":
		return c.ProofCreation
	case "DataSubmission":
		return c.DataSubmission
	case "StateTransition":
		return c.StateTransition
	case "ProofRegistration":
		return c.ProofRegistration
	default:
		return StageSettings{}
	}
}
