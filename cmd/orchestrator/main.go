// Command orchestrator runs the rollup proving-and-settlement pipeline:
// the dispatcher consuming the process/verify/failure queues, the trigger
// runner discovering successor work, and the read-only status API,
// grounded on the teacher's flat cmd/vire-server/main.go entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crypto/ecdsa"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	alerterfake "github.com/madara-alliance/orchestrator-go/internal/adapters/alerter/fake"
	"github.com/madara-alliance/orchestrator-go/internal/adapters/alerter/webhook"
	dafake "github.com/madara-alliance/orchestrator-go/internal/adapters/da/fake"
	daethereum "github.com/madara-alliance/orchestrator-go/internal/adapters/da/ethereum"
	localqueue "github.com/madara-alliance/orchestrator-go/internal/adapters/queue/local"
	"github.com/madara-alliance/orchestrator-go/internal/adapters/queue/sqs"
	osfake "github.com/madara-alliance/orchestrator-go/internal/adapters/osrun/fake"
	"github.com/madara-alliance/orchestrator-go/internal/adapters/osrun/snos"
	"github.com/madara-alliance/orchestrator-go/internal/adapters/objectstore/local"
	"github.com/madara-alliance/orchestrator-go/internal/adapters/objectstore/s3"
	proverfake "github.com/madara-alliance/orchestrator-go/internal/adapters/prover/fake"
	"github.com/madara-alliance/orchestrator-go/internal/adapters/prover/httpprover"
	settlementfake "github.com/madara-alliance/orchestrator-go/internal/adapters/settlement/fake"
	settlementethereum "github.com/madara-alliance/orchestrator-go/internal/adapters/settlement/ethereum"
	"github.com/madara-alliance/orchestrator-go/internal/adapters/starknetrpc"
	"github.com/madara-alliance/orchestrator-go/internal/common"
	"github.com/madara-alliance/orchestrator-go/internal/dispatch"
	"github.com/madara-alliance/orchestrator-go/internal/httpapi"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/stages"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore/memstore"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore/surreal"
	"github.com/madara-alliance/orchestrator-go/internal/triggers"
)

// usage:
//
//	orchestrator run    [-settlement=...] [-da=...] [-queue=...] ...
//	orchestrator setup
//
// There is no Cobra/pflag dependency anywhere in the pack, so the command
// word is read by hand off os.Args and each command's adapter-selector
// flags are parsed with a stdlib flag.FlagSet, grounded on the teacher's
// flat, subcommand-free cmd/vire-server/main.go convention.
func main() {
	args := os.Args[1:]
	command := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	configPath := os.Getenv("ORCH_CONFIG")
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyAdapterFlags(cfg, args)

	logger := common.NewLogger(cfg.Logging.Level)

	switch command {
	case "setup":
		runSetup(cfg, logger)
	case "run":
		runRun(cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected \"run\" or \"setup\")\n", command)
		os.Exit(1)
	}
}

// applyAdapterFlags overrides cfg.Adapters selectors from a small, flat set
// of `-name=value` flags, one per capability, mirroring spec.md's mutually
// exclusive adapter-selection flag groups.
func applyAdapterFlags(cfg *common.Config, args []string) {
	fs := flag.NewFlagSet("orchestrator", flag.ExitOnError)
	settlement := fs.String("settlement", cfg.Adapters.Settlement, "settlement adapter: ethereum|fake")
	da := fs.String("da", cfg.Adapters.DA, "data-availability adapter: ethereum|fake")
	prover := fs.String("prover", cfg.Adapters.Prover, "prover adapter: http|fake")
	osRun := fs.String("os-run", cfg.Adapters.OsRun, "os execution adapter: snos|fake")
	objectStore := fs.String("storage", cfg.Adapters.ObjectStore, "object store adapter: local|s3")
	queue := fs.String("queue", cfg.Adapters.Queue, "queue adapter: local|sqs")
	alerter := fs.String("alerter", cfg.Adapters.Alerter, "alerter adapter: webhook|fake")
	cron := fs.String("cron", cfg.Adapters.Cron, "trigger cron source: interval|eventbridge")
	fs.Parse(args)

	cfg.Adapters.Settlement = *settlement
	cfg.Adapters.DA = *da
	cfg.Adapters.Prover = *prover
	cfg.Adapters.OsRun = *osRun
	cfg.Adapters.ObjectStore = *objectStore
	cfg.Adapters.Queue = *queue
	cfg.Adapters.Alerter = *alerter
	cfg.Adapters.Cron = *cron
}

// runSetup idempotently provisions external resources (currently the
// SurrealDB job table and its indexes) ahead of the first `run`, then exits.
func runSetup(cfg *common.Config, logger *common.Logger) {
	if cfg.Database.Backend != "surrealdb" {
		logger.Info().Str("backend", cfg.Database.Backend).Msg("no provisioning needed for this job store backend")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := surreal.Setup(ctx, cfg.Database, logger); err != nil {
		logger.Fatal().Err(err).Msg("setup failed")
	}
	logger.Info().Msg("setup complete")
}

func runRun(cfg *common.Config, logger *common.Logger) {
	common.PrintBanner(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize job store")
	}

	queue, err := buildQueue(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize queue")
	}

	objectStore, err := buildObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize object store")
	}

	osClient := buildOsClient(cfg, objectStore, logger)
	proverClient := buildProver(cfg, logger)

	daClient, err := buildDA(ctx, cfg, objectStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize DA client")
	}

	settlementClient, err := buildSettlement(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize settlement client")
	}

	alerter := buildAlerter(cfg)

	registry := stages.NewRegistry(
		&stages.OsRunHandler{
			Os:                  osClient,
			MaxProcessAttemptsN: cfg.Stages.OsRun.MaxProcessAttempts,
		},
		&stages.ProvingHandler{
			Prover:                      proverClient,
			MaxProcessAttemptsN:         cfg.Stages.ProofCreation.MaxProcessAttempts,
			MaxVerificationAttemptsN:    cfg.Stages.ProofCreation.MaxVerificationAttempts,
			VerificationPollingDelayDur: cfg.Stages.ProofCreation.VerificationPollDelay,
		},
		&stages.DataSubmissionHandler{
			DA:                          daClient,
			MaxProcessAttemptsN:         cfg.Stages.DataSubmission.MaxProcessAttempts,
			MaxVerificationAttemptsN:    cfg.Stages.DataSubmission.MaxVerificationAttempts,
			VerificationPollingDelayDur: cfg.Stages.DataSubmission.VerificationPollDelay,
		},
		&stages.StateTransitionHandler{
			Settlement:                  settlementClient,
			MaxProcessAttemptsN:         cfg.Stages.StateTransition.MaxProcessAttempts,
			MaxVerificationAttemptsN:    cfg.Stages.StateTransition.MaxVerificationAttempts,
			VerificationPollingDelayDur: cfg.Stages.StateTransition.VerificationPollDelay,
		},
		&stages.ProofRegistrationHandler{
			Settlement:                  settlementClient,
			MaxProcessAttemptsN:         cfg.Stages.ProofRegistration.MaxProcessAttempts,
			MaxVerificationAttemptsN:    cfg.Stages.ProofRegistration.MaxVerificationAttempts,
			VerificationPollingDelayDur: cfg.Stages.ProofRegistration.VerificationPollDelay,
		},
	)

	d := &dispatch.Dispatcher{
		Store:               store,
		Queue:                queue,
		Registry:             registry,
		Alerter:              alerter,
		Logger:               logger,
		Consumers:            cfg.Dispatcher.ConsumersPerQueue,
		EmptyReceiveBackoff:  cfg.Dispatcher.EmptyReceiveBackoff,
		RetryBaseDelay:       cfg.Dispatcher.ProcessRetryBaseDelay,
		RetryMaxDelay:        cfg.Dispatcher.ProcessRetryMaxDelay,
		OsSemaphore:          make(chan struct{}, maxInt(1, cfg.Dispatcher.MaxConcurrentOsJobs)),
	}
	d.Start(ctx)

	runner := buildTriggerRunner(cfg, store, registry, logger)
	go runner.Run(ctx)

	api := httpapi.NewServer(cfg.Server.Host, cfg.Server.Port, store, logger)
	go func() {
		if err := api.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("status api server failed")
		}
	}()

	logger.Info().Str("env", cfg.Environment).Msg("orchestrator ready")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("status api shutdown failed")
	}
	d.Stop()
	common.PrintShutdownBanner(logger)
}

func buildStore(ctx context.Context, cfg *common.Config, logger *common.Logger) (jobstore.Store, error) {
	switch cfg.Database.Backend {
	case "surrealdb":
		return surreal.Connect(ctx, cfg.Database, logger)
	default:
		return memstore.New(), nil
	}
}

func buildQueue(ctx context.Context, cfg *common.Config) (adapters.Queue, error) {
	switch cfg.Adapters.Queue {
	case "sqs":
		return sqs.New(ctx, cfg.Adapters.AWSRegion, cfg.Adapters.SQSQueuePrefix)
	default:
		return localqueue.New(), nil
	}
}

func buildObjectStore(ctx context.Context, cfg *common.Config) (adapters.ObjectStore, error) {
	switch cfg.Adapters.ObjectStore {
	case "s3":
		return s3.New(ctx, cfg.Adapters.AWSRegion, cfg.Adapters.S3Bucket)
	default:
		return local.New(cfg.Adapters.ObjectStoreLocalPath)
	}
}

func buildOsClient(cfg *common.Config, store adapters.ObjectStore, logger *common.Logger) adapters.OsClient {
	switch cfg.Adapters.OsRun {
	case "snos":
		return snos.New(snos.Config{
			BinaryPath: cfg.Adapters.SnosBinaryPath,
			RPCURL:     cfg.Adapters.StarknetRPCURL,
			WorkDir:    cfg.Adapters.SnosWorkDir,
		}, store, logger)
	default:
		return osfake.New()
	}
}

func buildProver(cfg *common.Config, logger *common.Logger) adapters.ProverClient {
	switch cfg.Adapters.Prover {
	case "http":
		return httpprover.NewClient(cfg.Adapters.ProverBaseURL, cfg.Adapters.ProverAPIKey, httpprover.WithLogger(logger))
	default:
		return proverfake.New()
	}
}

func buildDA(ctx context.Context, cfg *common.Config, store adapters.ObjectStore) (adapters.DAClient, error) {
	switch cfg.Adapters.DA {
	case "ethereum":
		privateKey, chainID, err := parseEthereumSigner(cfg)
		if err != nil {
			return nil, err
		}
		return daethereum.New(ctx, daethereum.Config{
			RPCURL:     cfg.Adapters.EthereumRPCURL,
			PrivateKey: privateKey,
			ChainID:    chainID,
			Target:     ethcommon.HexToAddress(cfg.Adapters.DAPublishTarget),
		}, store)
	default:
		return dafake.New(), nil
	}
}

func buildSettlement(ctx context.Context, cfg *common.Config) (adapters.SettlementClient, error) {
	switch cfg.Adapters.Settlement {
	case "ethereum":
		privateKey, chainID, err := parseEthereumSigner(cfg)
		if err != nil {
			return nil, err
		}
		return settlementethereum.New(ctx, settlementethereum.Config{
			RPCURL:     cfg.Adapters.EthereumRPCURL,
			PrivateKey: privateKey,
			ChainID:    chainID,
			Contract:   ethcommon.HexToAddress(cfg.Adapters.SettlementContract),
		})
	default:
		return settlementfake.New(0), nil
	}
}

func buildAlerter(cfg *common.Config) adapters.Alerter {
	switch cfg.Adapters.Alerter {
	case "webhook":
		return webhook.New(cfg.Adapters.AlerterWebhookURL, []byte(cfg.Adapters.AlerterSigningKey))
	default:
		return alerterfake.New()
	}
}

func buildTriggerRunner(cfg *common.Config, store jobstore.Store, registry stages.Registry, logger *common.Logger) *triggers.Runner {
	starknetClient := starknetrpc.NewClient(cfg.Adapters.StarknetRPCURL, starknetrpc.WithLogger(logger))

	return &triggers.Runner{
		Interval: cfg.Adapters.CronInterval,
		Logger:   logger,
		Triggers: []triggers.Trigger{
			triggers.NewOsRunTrigger(store, registry[models.JobTypeOsRun], starknetClient, logger, 0, false),
			triggers.NewProvingTrigger(store, registry[models.JobTypeProofCreation], logger, false, true),
			triggers.NewDataSubmissionTrigger(store, registry[models.JobTypeDataSubmission], logger),
			triggers.NewStateTransitionTrigger(store, registry[models.JobTypeStateTransition], logger),
			triggers.NewProofRegistrationTrigger(store, registry[models.JobTypeProofRegistration], logger),
		},
	}
}

// parseEthereumSigner decodes the configured hex private key and chain id
// shared by the Ethereum DA and settlement adapters.
func parseEthereumSigner(cfg *common.Config) (*ecdsa.PrivateKey, *big.Int, error) {
	privateKey, err := ethcrypto.HexToECDSA(cfg.Adapters.EthereumPrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parse ethereum private key: %w", err)
	}
	return privateKey, big.NewInt(cfg.Adapters.EthereumChainID), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
