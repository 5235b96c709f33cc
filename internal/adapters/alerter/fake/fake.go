// Package fake is an in-memory adapters.Alerter that records alerts for
// test assertions.
package fake

import (
	"context"
	"sync"
)

// Alert is one recorded alert.
type Alert struct {
	Subject string
	Body    string
}

// Alerter accumulates every Alert call.
type Alerter struct {
	mu     sync.Mutex
	Alerts []Alert
}

// New returns an empty Alerter.
func New() *Alerter {
	return &Alerter{}
}

func (a *Alerter) Alert(_ context.Context, subject, body string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Alerts = append(a.Alerts, Alert{Subject: subject, Body: body})
	return nil
}
