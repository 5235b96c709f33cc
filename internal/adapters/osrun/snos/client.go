// Package snos implements adapters.OsClient by shelling out to an external
// Starknet OS (SNOS) prover binary, grounded on the teacher's httpprover
// Client shape (functional construction, one capability per method) but
// using os/exec instead of net/http: no cairo-vm execution library exists
// anywhere in the example pack, so invoking the reference SNOS runner as a
// subprocess is the narrowest stdlib-only gap, documented in the grounding
// ledger.
package snos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	"github.com/madara-alliance/orchestrator-go/internal/common"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// Config points the Client at the SNOS binary and the node it reads block
// input from.
type Config struct {
	BinaryPath string
	RPCURL     string
	WorkDir    string
}

// osOutput is the subset of the SNOS runner's os_output.json this adapter
// reads back: the fact hash committing the block's execution.
type osOutput struct {
	Fact string `json:"fact"`
}

// Client runs the SNOS binary per block and stores its artifacts in store.
type Client struct {
	cfg    Config
	store  adapters.ObjectStore
	logger *common.Logger

	mu    sync.Mutex
	facts map[uint64]string
}

// New returns a Client invoking cfg.BinaryPath and persisting artifacts in store.
func New(cfg Config, store adapters.ObjectStore, logger *common.Logger) *Client {
	return &Client{cfg: cfg, store: store, logger: logger, facts: make(map[uint64]string)}
}

// RunOs executes the SNOS binary for blockNumber and stores the cairo PIE,
// OS output, and (if fullOutput) program output artifacts.
func (c *Client) RunOs(ctx context.Context, blockNumber uint64, fullOutput bool) (string, string, string, error) {
	workDir, err := os.MkdirTemp(c.cfg.WorkDir, fmt.Sprintf("os-run-%d-*", blockNumber))
	if err != nil {
		return "", "", "", orcherrors.OsError(fmt.Errorf("create os run workdir: %w", err))
	}
	defer os.RemoveAll(workDir)

	cairoPiePath := filepath.Join(workDir, "cairo_pie.zip")
	osOutputPath := filepath.Join(workDir, "os_output.json")

	args := []string{
		"--block-number", strconv.FormatUint(blockNumber, 10),
		"--rpc-url", c.cfg.RPCURL,
		"--cairo-pie-output", cairoPiePath,
		"--os-output", osOutputPath,
	}

	programOutputPath := ""
	if fullOutput {
		programOutputPath = filepath.Join(workDir, "program_output.txt")
		args = append(args, "--program-output", programOutputPath)
	}

	cmd := exec.CommandContext(ctx, c.cfg.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", "", "", orcherrors.OsError(fmt.Errorf("snos run block %d: %w: %s", blockNumber, err, stderr.String()))
	}

	internalID := strconv.FormatUint(blockNumber, 10)

	cairoPieKey := models.ArtifactKey(internalID, models.ArtifactCairoPie)
	if err := c.putFile(ctx, cairoPieKey, cairoPiePath); err != nil {
		return "", "", "", orcherrors.OsError(err)
	}

	osOutputKey := models.ArtifactKey(internalID, models.ArtifactOsOutput)
	if err := c.putFile(ctx, osOutputKey, osOutputPath); err != nil {
		return "", "", "", orcherrors.OsError(err)
	}

	fact, err := readFact(osOutputPath)
	if err != nil {
		return "", "", "", orcherrors.OsError(fmt.Errorf("read os output fact for block %d: %w", blockNumber, err))
	}
	c.mu.Lock()
	c.facts[blockNumber] = fact
	c.mu.Unlock()

	programOutputKey := ""
	if fullOutput {
		programOutputKey = models.ArtifactKey(internalID, models.ArtifactProgramOutput)
		if err := c.putFile(ctx, programOutputKey, programOutputPath); err != nil {
			return "", "", "", orcherrors.OsError(err)
		}
	}

	return cairoPieKey, osOutputKey, programOutputKey, nil
}

// GetOsFact returns the fact hash recorded by the most recent RunOs call
// for blockNumber, or an empty string if none has been recorded.
func (c *Client) GetOsFact(_ context.Context, blockNumber uint64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facts[blockNumber], nil
}

func (c *Client) putFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return c.store.Put(ctx, key, f)
}

func readFact(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var out osOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	return out.Fact, nil
}
