// Package webhook implements adapters.Alerter by POSTing a signed JSON
// payload to an external webhook URL, grounded on the teacher's use of
// golang.org/x/crypto for sensitive-value hashing (there: bcrypt for
// passwords; here: a keyed BLAKE2b digest as the webhook signature).
package webhook

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// Alerter posts alerts to url, signing the body with a keyed BLAKE2b digest
// over signingKey so the receiver can authenticate the sender.
type Alerter struct {
	url        string
	signingKey []byte
	httpClient *http.Client
}

// New returns an Alerter posting to url, signed with signingKey.
func New(url string, signingKey []byte) *Alerter {
	return &Alerter{url: url, signingKey: signingKey, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type alertPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (a *Alerter) Alert(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(alertPayload{Subject: subject, Body: body})
	if err != nil {
		return orcherrors.QueueError(fmt.Errorf("marshal alert payload: %w", err))
	}

	signature, err := a.sign(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("alert webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (a *Alerter) sign(payload []byte) (string, error) {
	h, err := blake2b.New512(a.signingKey)
	if err != nil {
		return "", fmt.Errorf("init signature hash: %w", err)
	}
	if _, err := h.Write(payload); err != nil {
		return "", fmt.Errorf("compute signature: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
