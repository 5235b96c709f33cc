// Package fake is a deterministic in-memory adapters.SettlementClient,
// tracking a single monotonic last-settled-block counter.
package fake

import (
	"context"
	"fmt"
	"sync"
)

// Client fakes a settlement chain: every UpdateState call succeeds and
// advances LastSettledBlock to the highest block number submitted, unless
// FailBlocks marks that block to fail instead.
type Client struct {
	mu               sync.Mutex
	seq              int
	lastSettled      uint64
	confirmed        map[string]bool
	FailBlocks       map[uint64]bool
}

// New returns a Client with the given initial last-settled block.
func New(initialLastSettled uint64) *Client {
	return &Client{lastSettled: initialLastSettled, confirmed: make(map[string]bool), FailBlocks: make(map[uint64]bool)}
}

func (c *Client) UpdateState(_ context.Context, blockNumbers []uint64, _, _, _ map[uint64]string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range blockNumbers {
		if c.FailBlocks[b] {
			return "", fmt.Errorf("fake settlement: simulated failure settling block %d", b)
		}
	}
	c.seq++
	txHash := fmt.Sprintf("0xstate%06d", c.seq)
	c.confirmed[txHash] = true
	for _, b := range blockNumbers {
		if b > c.lastSettled {
			c.lastSettled = b
		}
	}
	return txHash, nil
}

func (c *Client) TxStatus(_ context.Context, txHash string) (bool, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed[txHash], c.lastSettled, nil
}

func (c *Client) GetLastSettledBlock(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSettled, nil
}
