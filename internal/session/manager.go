package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "syllasync/internal/log"
)

// ErrNoCookieJar is returned when a session cookie is installed on a client
// without a jar.
var ErrNoCookieJar = errors.New("http client has no cookie jar")

// SeedCookie stores a "name=value" session cookie in jar for baseURL, so
// that every later request to the backend carries it.
func SeedCookie(jar http.CookieJar, baseURL, cookie string) error {
	if jar == nil {
		return ErrNoCookieJar
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	name, value, ok := strings.Cut(strings.TrimSpace(cookie), "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return errors.New(`session cookie must have the form "name=value"`)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: name, Value: strings.TrimSpace(value), Path: "/"}})
	return nil
}

// Manager hands out fresh probes against one backend. Sign-in happens in
// the user's browser, so the client only learns about it by installing the
// backend's session cookie and probing again.
type Manager struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewManager creates a Manager. timeout bounds each probe; zero means the
// probe is bounded only by the caller's context.
func NewManager(client *http.Client, baseURL string, timeout time.Duration) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// Start launches a new probe without waiting for it.
func (m *Manager) Start(ctx context.Context) *Probe {
	cancel := context.CancelFunc(func() {})
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
	}
	p := NewProbe(m.client, m.baseURL)
	p.Start(ctx)
	go func() {
		<-p.Done()
		cancel()
	}()
	return p
}

// Refresh runs a new probe to completion and returns it resolved.
func (m *Manager) Refresh(ctx context.Context) *Probe {
	p := m.Start(ctx)
	authenticated := p.Wait(ctx)
	appLog.Info("session re-checked", "authenticated", authenticated)
	return p
}

// SetCookie installs a session cookie copied from the browser after
// sign-in.
func (m *Manager) SetCookie(cookie string) error {
	return SeedCookie(m.client.Jar, m.baseURL, cookie)
}

// LoginURL is the provider sign-in page.
func (m *Manager) LoginURL() string {
	return m.baseURL + LoginPath
}
