// Package fake is a deterministic in-memory adapters.ProverClient.
package fake

import (
	"context"
	"fmt"
	"sync"
)

// Client completes every submitted proof after PollsUntilDone calls to
// ProofStatus for that task (0 means complete immediately).
type Client struct {
	mu              sync.Mutex
	seq             int
	polls           map[string]int
	PollsUntilDone  int
	// RejectTasks, if non-nil, marks the listed external ids as rejected.
	RejectTasks map[string]bool
}

// New returns an empty Client.
func New() *Client {
	return &Client{polls: make(map[string]int), RejectTasks: make(map[string]bool)}
}

func (c *Client) SubmitProof(_ context.Context, cairoPieKey string, _ bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := fmt.Sprintf("T%d", c.seq)
	c.polls[id] = 0
	return id, nil
}

func (c *Client) ProofStatus(_ context.Context, externalID string) (bool, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls[externalID]++
	if c.polls[externalID] < c.PollsUntilDone {
		return false, "", nil
	}
	if c.RejectTasks[externalID] {
		return true, "", nil
	}
	return true, fmt.Sprintf("%s/proof.bin", externalID), nil
}
