// Package fake is an in-memory adapters.OsClient for local/dev runs and
// tests, grounded on the pack's other fake adapters (prover/fake, da/fake).
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/madara-alliance/orchestrator-go/internal/models"
)

// Client fabricates artifact keys and a deterministic fact per block
// without executing anything.
type Client struct {
	// Err, if set, is returned by every RunOs call.
	Err error

	mu    sync.Mutex
	facts map[uint64]string
}

// New returns an empty Client.
func New() *Client {
	return &Client{facts: make(map[uint64]string)}
}

func (c *Client) RunOs(_ context.Context, blockNumber uint64, fullOutput bool) (string, string, string, error) {
	if c.Err != nil {
		return "", "", "", c.Err
	}
	internalID := fmt.Sprintf("%d", blockNumber)
	fact := fmt.Sprintf("0xfact%d", blockNumber)

	c.mu.Lock()
	c.facts[blockNumber] = fact
	c.mu.Unlock()

	programOutputKey := ""
	if fullOutput {
		programOutputKey = models.ArtifactKey(internalID, models.ArtifactProgramOutput)
	}
	return models.ArtifactKey(internalID, models.ArtifactCairoPie), models.ArtifactKey(internalID, models.ArtifactOsOutput), programOutputKey, nil
}

func (c *Client) GetOsFact(_ context.Context, blockNumber uint64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facts[blockNumber], nil
}
