// Package manager is the unified facade over the TTS engine supervisor,
// health prober, and external-instance detector. Consumers go through it for
// every lifecycle and query operation; it guarantees at most one managed
// engine at a time and normalizes engine-specific response shapes.
package manager

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/voxhost/voxhost/internal/engine"
	"github.com/voxhost/voxhost/internal/probe"
	"github.com/voxhost/voxhost/internal/supervisor"
)

const defaultPortFreeTimeout = 5 * time.Second

// EngineInfo is one row of the engine listing.
type EngineInfo struct {
	ID        engine.ID `json:"id"`
	Name      string    `json:"name"`
	Installed bool      `json:"installed"`
}

// Config is a read-only snapshot of a usable engine endpoint. Callers must
// re-query for updates; it does not track later state changes.
type Config struct {
	Engine       engine.ID `json:"engine"`
	BaseURL      string    `json:"baseUrl"`
	Model        string    `json:"model"`
	DefaultVoice string    `json:"defaultVoice"`
	Voices       []string  `json:"availableVoices"`
}

// Status reports whether an engine is reachable. PID is zero for external
// instances the manager did not spawn.
type Status struct {
	Running bool      `json:"running"`
	Ready   bool      `json:"ready"`
	Engine  engine.ID `json:"engine,omitempty"`
	PID     int       `json:"pid,omitempty"`
}

// Manager owns the running-engine state. All mutation is serialized through
// its mutex; Start and Stop hold it end to end so overlapping calls cannot
// race the at-most-one-engine invariant.
type Manager struct {
	mu    sync.Mutex
	state runningState

	sup    Supervisor
	prober Prober
	notify Notifier
	client *http.Client

	startupTimeout  time.Duration
	pollInterval    time.Duration
	portFreeTimeout time.Duration

	// baseURLFor exists so tests can point managed-engine HTTP calls at a
	// fake server.
	baseURLFor func(*engine.Descriptor) string
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier routes user-visible notifications (engine crashes, spawn
// failures) to n instead of discarding them.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notify = n }
}

// WithStartupTimeout overrides the health-wait window.
func WithStartupTimeout(timeout, interval time.Duration) Option {
	return func(m *Manager) {
		m.startupTimeout = timeout
		m.pollInterval = interval
	}
}

// New creates a Manager with empty running state.
func New(sup Supervisor, prober Prober, opts ...Option) *Manager {
	m := &Manager{
		sup:             sup,
		prober:          prober,
		notify:          nopNotifier{},
		client:          &http.Client{Timeout: 30 * time.Second},
		startupTimeout:  probe.DefaultStartupTimeout,
		pollInterval:    probe.DefaultPollInterval,
		portFreeTimeout: defaultPortFreeTimeout,
		baseURLFor:      func(d *engine.Descriptor) string { return d.BaseURL() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListEngines returns static engine info plus a live installation check.
// Side-effect free.
func (m *Manager) ListEngines() []EngineInfo {
	descs := engine.All()
	out := make([]EngineInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, EngineInfo{
			ID:        d.ID,
			Name:      d.DisplayName,
			Installed: m.sup.IsInstalled(d),
		})
	}
	return out
}

// Start brings up the given engine and returns a ready-to-use Config. Any
// previously managed engine is fully stopped first, and its port confirmed
// free, before the new one is spawned. On readiness timeout the
// just-spawned process is terminated; a half-started engine is never left
// behind.
func (m *Manager) Start(ctx context.Context, id engine.ID) (*Config, error) {
	d, err := engine.Lookup(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sup.IsInstalled(d) {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, id)
	}

	if m.state.handle != nil {
		prev := m.state.desc
		h := m.state.handle
		// Clear before terminating so the exit callback treats this as an
		// expected shutdown.
		m.state.clear()
		if err := m.sup.Terminate(ctx, h); err != nil {
			log.Warn("Could not cleanly stop previous engine", "engine", prev.ID, "error", err)
		}
		m.sup.WaitPortFree(ctx, prev, m.portFreeTimeout)
	}

	// Orphans from crashed sessions are expected, not exceptional. Sweep
	// even though we believe nothing is running.
	m.sup.CleanupOrphans(ctx, d)

	// The exit callback can fire as soon as the process starts; gate it on
	// the handle assignment below so it never observes a nil handle.
	spawned := make(chan struct{})
	var handle ProcessHandle
	handle, err = m.sup.Spawn(ctx, d, func(exitErr error) {
		<-spawned
		m.onProcessExit(handle, d, exitErr)
	})
	close(spawned)
	if err != nil {
		m.notify.Notify(Notification{
			Level:   LevelError,
			Title:   "Voice engine failed to start",
			Message: fmt.Sprintf("%s could not be started: %v", d.DisplayName, err),
			Engine:  d.ID,
		})
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	m.state.handle = handle
	m.state.desc = d

	baseURL := m.baseURLFor(d)
	if !m.prober.AwaitHealthy(ctx, d, baseURL, m.startupTimeout, m.pollInterval) {
		m.state.clear()
		if err := m.sup.Terminate(ctx, handle); err != nil {
			log.Warn("Could not terminate unhealthy engine", "engine", d.ID, "error", err)
		}
		return nil, fmt.Errorf("%w: %s after %v", ErrStartupTimeout, id, m.startupTimeout)
	}
	m.state.ready = true

	cfg := &Config{
		Engine:       d.ID,
		BaseURL:      baseURL,
		Model:        d.DefaultModel,
		DefaultVoice: d.DefaultVoice,
		Voices:       m.fetchVoices(ctx, d, baseURL),
	}
	log.Info("Engine ready", "engine", d.ID, "pid", handle.PID(), "voices", len(cfg.Voices))
	return cfg, nil
}

// Stop terminates the managed engine if one exists. The port sweep runs for
// every known engine regardless, as a failsafe against state-tracking bugs.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.handle != nil {
		h := m.state.handle
		d := m.state.desc
		m.state.clear()
		if err := m.sup.Terminate(ctx, h); err != nil {
			log.Warn("Terminate failed during stop", "engine", d.ID, "error", err)
		}
	}

	for _, d := range engine.All() {
		m.sup.SweepPort(ctx, d)
	}
	return nil
}

// Shutdown force-stops any managed engine. Called on daemon exit; it does
// not wait for graceful anything beyond Terminate's own grace period.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.Stop(ctx)
}

// Status reports the current engine. With no managed process it consults
// the external detector, so externally started instances are
// indistinguishable from spawned ones except for the missing pid.
func (m *Manager) Status(ctx context.Context) Status {
	act, ok := m.resolveActive(ctx)
	if !ok {
		return Status{}
	}
	return Status{
		Running: true,
		Ready:   act.ready,
		Engine:  act.desc.ID,
		PID:     act.pid,
	}
}

// ActiveConfig returns the usable endpoint snapshot for the current engine,
// managed or external, or false when neither exists.
func (m *Manager) ActiveConfig(ctx context.Context) (*Config, bool) {
	act, ok := m.resolveActive(ctx)
	if !ok {
		return nil, false
	}
	return &Config{
		Engine:       act.desc.ID,
		BaseURL:      act.baseURL,
		Model:        act.desc.DefaultModel,
		DefaultVoice: act.desc.DefaultVoice,
		Voices:       m.fetchVoices(ctx, act.desc, act.baseURL),
	}, true
}

// BaseURL returns just the host:port prefix of the current engine; callers
// append the endpoint paths themselves.
func (m *Manager) BaseURL(ctx context.Context) (string, bool) {
	act, ok := m.resolveActive(ctx)
	if !ok {
		return "", false
	}
	return act.baseURL, true
}

// Voices returns the voice list of the current engine. The fetch itself
// never fails — it degrades to the engine's default voice — but with no
// engine at all there is nothing to list.
func (m *Manager) Voices(ctx context.Context) ([]string, error) {
	act, ok := m.resolveActive(ctx)
	if !ok {
		return nil, ErrNoEngine
	}
	return m.fetchVoices(ctx, act.desc, act.baseURL), nil
}

// resolveActive is the single managed-vs-external resolution used by every
// read operation.
func (m *Manager) resolveActive(ctx context.Context) (active, bool) {
	m.mu.Lock()
	if m.state.handle != nil {
		act := active{
			desc:    m.state.desc,
			baseURL: m.baseURLFor(m.state.desc),
			pid:     m.state.handle.PID(),
			managed: true,
			ready:   m.state.ready,
		}
		m.mu.Unlock()
		return act, true
	}
	m.mu.Unlock()

	if d, ok := m.prober.DetectExternal(ctx); ok {
		// Detection already required a ready health payload.
		return active{desc: d, baseURL: m.baseURLFor(d), ready: true}, true
	}
	return active{}, false
}

// fetchVoices queries the engine's voice list and normalizes it through the
// engine's parser. It never fails: any error or empty result falls back to
// the engine's default voice with a logged warning.
func (m *Manager) fetchVoices(ctx context.Context, d *engine.Descriptor, baseURL string) []string {
	fallback := []string{d.DefaultVoice}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+d.VoicesPath, nil)
	if err != nil {
		log.Warn("Voice list request could not be built", "engine", d.ID, "error", err)
		return fallback
	}
	resp, err := m.client.Do(req)
	if err != nil {
		log.Warn("Voice list fetch failed", "engine", d.ID, "error", err)
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Voice list fetch failed", "engine", d.ID, "status", resp.StatusCode)
		return fallback
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("Voice list read failed", "engine", d.ID, "error", err)
		return fallback
	}

	voices, err := d.ParseVoices(body)
	if err != nil {
		log.Warn("Voice list parse failed", "engine", d.ID, "error", err)
		return fallback
	}
	if len(voices) == 0 {
		return fallback
	}
	return voices
}

// onProcessExit handles a managed process going away. Expected terminations
// clear the state before killing, so reaching here with a matching handle
// means the engine died underneath us; that silently breaks a feature the
// user may be mid-use of, so it is surfaced as a notification, not just a
// log line.
func (m *Manager) onProcessExit(h ProcessHandle, d *engine.Descriptor, exitErr error) {
	m.mu.Lock()
	if m.state.handle != h {
		m.mu.Unlock()
		return
	}
	m.state.clear()
	m.mu.Unlock()

	log.Error("Engine process exited unexpectedly", "engine", d.ID, "error", exitErr)
	msg := fmt.Sprintf("%s stopped unexpectedly. Voice features are unavailable until it is restarted.", d.DisplayName)
	m.notify.Notify(Notification{
		Level:   LevelError,
		Title:   "Voice engine stopped",
		Message: msg,
		Engine:  d.ID,
	})
}

// WrapSupervisor adapts the concrete supervisor to the manager's interface.
func WrapSupervisor(s *supervisor.Supervisor) Supervisor {
	return supervisorAdapter{s}
}

type supervisorAdapter struct {
	s *supervisor.Supervisor
}

func (a supervisorAdapter) IsInstalled(d *engine.Descriptor) bool { return a.s.IsInstalled(d) }

func (a supervisorAdapter) Spawn(ctx context.Context, d *engine.Descriptor, onExit func(error)) (ProcessHandle, error) {
	return a.s.Spawn(ctx, d, onExit)
}

func (a supervisorAdapter) Terminate(ctx context.Context, h ProcessHandle) error {
	handle, ok := h.(*supervisor.Handle)
	if !ok {
		return fmt.Errorf("unexpected handle type %T", h)
	}
	return a.s.Terminate(ctx, handle)
}

func (a supervisorAdapter) CleanupOrphans(ctx context.Context, d *engine.Descriptor) {
	a.s.CleanupOrphans(ctx, d)
}

func (a supervisorAdapter) SweepPort(ctx context.Context, d *engine.Descriptor) {
	a.s.SweepPort(ctx, d)
}

func (a supervisorAdapter) WaitPortFree(ctx context.Context, d *engine.Descriptor, timeout time.Duration) bool {
	return a.s.WaitPortFree(ctx, d, timeout)
}
