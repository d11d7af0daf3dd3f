// Package probe checks engine health endpoints: polling a spawned engine
// until it is ready to serve, and scanning the well-known ports for healthy
// instances somebody else started.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/voxhost/voxhost/internal/engine"
)

const (
	// DefaultStartupTimeout allows for first-run model loading, which can
	// take minutes on a cold cache.
	DefaultStartupTimeout = 120 * time.Second

	// DefaultPollInterval keeps added latency low once the engine is up.
	DefaultPollInterval = 3 * time.Second

	// detectTimeout bounds each probe of a possibly-absent external
	// instance.
	detectTimeout = 2 * time.Second
)

// Prober issues health requests against engine endpoints.
type Prober struct {
	client *http.Client

	// baseURLFor resolves an engine's base URL during external detection.
	// Overridable so tests can point detection at a local fake server.
	baseURLFor func(*engine.Descriptor) string
}

// New creates a Prober with a bounded-timeout HTTP client.
func New() *Prober {
	return &Prober{
		client:     &http.Client{Timeout: detectTimeout},
		baseURLFor: func(d *engine.Descriptor) string { return d.BaseURL() },
	}
}

// Check performs a single health request and returns the engine's parsed
// health payload.
func (p *Prober) Check(ctx context.Context, d *engine.Descriptor, baseURL string) (engine.Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+d.HealthPath, nil)
	if err != nil {
		return engine.Health{}, fmt.Errorf("unable to build health request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return engine.Health{}, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return engine.Health{}, fmt.Errorf("health endpoint returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.Health{}, fmt.Errorf("unable to read health response: %w", err)
	}

	h, err := d.ParseHealth(body)
	if err != nil {
		return engine.Health{}, fmt.Errorf("unable to parse health response: %w", err)
	}
	return h, nil
}

// AwaitHealthy polls the health endpoint until a success status arrives or
// the timeout elapses. Failed attempts are logged and retried; only the
// timeout ends the loop early. A 2xx answer is enough here — readiness
// beyond liveness is the caller's concern once the server responds at all.
func (p *Prober) AwaitHealthy(ctx context.Context, d *engine.Descriptor, baseURL string, timeout, interval time.Duration) bool {
	start := time.Now()
	deadline := start.Add(timeout)

	for {
		reqCtx, cancel := context.WithTimeout(ctx, interval)
		_, err := p.Check(reqCtx, d, baseURL)
		cancel()
		if err == nil {
			log.Info("Engine is healthy", "engine", d.ID, "elapsed", time.Since(start).Round(time.Millisecond))
			return true
		}

		if time.Now().After(deadline) {
			log.Error("Engine did not become healthy", "engine", d.ID, "timeout", timeout)
			return false
		}
		log.Debug("Engine not healthy yet",
			"engine", d.ID,
			"elapsed", time.Since(start).Round(time.Millisecond),
			"error", err)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}

// DetectExternal scans the known engines for an already-running healthy
// instance this process did not spawn. An engine qualifies only when its
// health payload explicitly signals readiness; a bare 200 is not enough
// because some engines answer while still loading their model. The first
// ready engine in registry order wins.
func (p *Prober) DetectExternal(ctx context.Context) (*engine.Descriptor, bool) {
	for _, d := range engine.All() {
		reqCtx, cancel := context.WithTimeout(ctx, detectTimeout)
		h, err := p.Check(reqCtx, d, p.baseURLFor(d))
		cancel()
		if err != nil {
			continue
		}
		if h.Ready() {
			log.Debug("External engine instance detected", "engine", d.ID, "port", d.Port)
			return d, true
		}
	}
	return nil, false
}
