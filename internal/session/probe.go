package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	appLog "syllasync/internal/log"
)

const (
	// StatusPath reports whether the session is authorized.
	StatusPath = "/auth/status"
	// LoginPath starts the provider's authorization flow in a browser.
	LoginPath = "/auth/google"
	// HealthPath is the backend liveness endpoint.
	HealthPath = "/health"
)

// Probe determines once per lifetime whether the current session is already
// authorized against the account-linked calendar provider. Until the probe
// resolves, and whenever it fails, the session is treated as unauthenticated.
type Probe struct {
	client  *http.Client
	baseURL string

	once sync.Once
	done chan struct{}

	mu            sync.RWMutex
	authenticated bool
	err           error
}

// NewProbe creates an unresolved probe.
func NewProbe(client *http.Client, baseURL string) *Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return &Probe{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		done:    make(chan struct{}),
	}
}

// Start launches the status request in the background. Calling Start more
// than once has no effect.
func (p *Probe) Start(ctx context.Context) {
	p.once.Do(func() {
		go p.run(ctx)
	})
}

// Authenticated returns the resolved state, or false if still pending.
func (p *Probe) Authenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.authenticated
}

// Err returns the failure that collapsed the state to false, if any.
func (p *Probe) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Done is closed once the probe has resolved.
func (p *Probe) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the probe resolves or ctx ends, and returns the
// authentication state observed at that point.
func (p *Probe) Wait(ctx context.Context) bool {
	select {
	case <-p.done:
	case <-ctx.Done():
	}
	return p.Authenticated()
}

// LoginURL is the full-page redirect target for the provider sign-in.
func (p *Probe) LoginURL() string {
	return p.baseURL + LoginPath
}

func (p *Probe) run(ctx context.Context) {
	defer close(p.done)

	ok, err := p.check(ctx)

	p.mu.Lock()
	p.authenticated = ok && err == nil
	p.err = err
	p.mu.Unlock()

	if err != nil {
		appLog.Error("session probe failed; treating as unauthenticated", err, "url", p.baseURL+StatusPath)
		return
	}
	appLog.Debug("session probe resolved", "authenticated", ok)
}

// statusResponse keeps authenticated as raw JSON so that a non-boolean
// value can be told apart from false.
type statusResponse struct {
	Authenticated json.RawMessage `json:"authenticated"`
}

func (p *Probe) check(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+StatusPath, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, errors.New(resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return false, fmt.Errorf("decode auth status: %w", err)
	}

	var authenticated bool
	if err := json.Unmarshal(sr.Authenticated, &authenticated); err != nil {
		return false, fmt.Errorf("auth status field is not a boolean: %s", string(sr.Authenticated))
	}
	return authenticated, nil
}

// Health performs a single GET on the backend liveness endpoint.
func Health(ctx context.Context, client *http.Client, baseURL string) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+HealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}
	return nil
}
