// Package fake is a deterministic in-memory adapters.DAClient for tests and
// local/dev runs without a live DA layer.
package fake

import (
	"context"
	"fmt"
	"sync"
)

// Client is a fake DA client: PublishBlob always succeeds synchronously and
// TxStatus immediately reports confirmed, unless configured otherwise.
type Client struct {
	mu        sync.Mutex
	seq       int
	confirmed map[string]bool
	// FailNext, if true, makes the next PublishBlob call return an error.
	FailNext bool
}

// New returns an empty Client.
func New() *Client {
	return &Client{confirmed: make(map[string]bool)}
}

func (c *Client) PublishBlob(_ context.Context, blobDataKey string) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailNext {
		c.FailNext = false
		return "", "", fmt.Errorf("fake da: simulated publish failure for %s", blobDataKey)
	}
	c.seq++
	txHash := fmt.Sprintf("0xda%06d", c.seq)
	versionedHash := fmt.Sprintf("0x01%06d", c.seq)
	c.confirmed[txHash] = true
	return txHash, versionedHash, nil
}

func (c *Client) TxStatus(_ context.Context, txHash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed[txHash], nil
}
