// Package supervisor locates, spawns, and terminates the external TTS engine
// processes. Engines are heavyweight (GPU-resident models), so duplicate
// instances are treated as a bug to be killed, not tolerated: every spawn is
// preceded by an orphan sweep and every termination is followed by a port
// sweep.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/voxhost/voxhost/internal/engine"
)

const (
	// terminateGrace is how long a process gets between SIGTERM and SIGKILL.
	terminateGrace = 3 * time.Second

	// sweepTimeout bounds each orphan-cleanup shell command.
	sweepTimeout = 5 * time.Second
)

// Supervisor resolves engine binaries and owns spawn/terminate mechanics.
// It is stateless; handles returned by Spawn carry all per-process state.
type Supervisor struct {
	resourcesDir string
	dataDir      string
	run          commandRunner
}

// New creates a Supervisor. resourcesDir holds the per-engine binary
// subdirectories; dataDir is the per-user application data root under which
// model caches are created.
func New(resourcesDir, dataDir string) *Supervisor {
	return &Supervisor{
		resourcesDir: resourcesDir,
		dataDir:      dataDir,
		run:          newRunner(sweepTimeout),
	}
}

// BinaryPath returns where the engine's executable is expected to live.
// Existence is not guaranteed; callers check with IsInstalled.
func (s *Supervisor) BinaryPath(d *engine.Descriptor) string {
	return filepath.Join(s.resourcesDir, "engines", string(d.ID), d.BinaryName+exeSuffix)
}

// IsInstalled reports whether the engine's binary exists on disk.
func (s *Supervisor) IsInstalled(d *engine.Descriptor) bool {
	info, err := os.Stat(s.BinaryPath(d))
	return err == nil && !info.IsDir()
}

// ModelsDir returns the engine's model cache directory, creating it if
// missing.
func (s *Supervisor) ModelsDir(d *engine.Descriptor) (string, error) {
	dir := filepath.Join(s.dataDir, "models", string(d.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("unable to create models directory: %w", err)
	}
	return dir, nil
}

// Spawn starts the engine process. The child runs from the binary's own
// directory with stdout/stderr captured into the log, and is not detached
// from this process's lifecycle. onExit fires exactly once when the process
// exits for any reason, including termination by this supervisor.
func (s *Supervisor) Spawn(ctx context.Context, d *engine.Descriptor, onExit func(err error)) (*Handle, error) {
	binPath := s.BinaryPath(d)
	if !s.IsInstalled(d) {
		return nil, fmt.Errorf("engine binary not found at %s", binPath)
	}

	modelsDir, err := s.ModelsDir(d)
	if err != nil {
		return nil, err
	}

	// Best effort: packaged binaries can lose their execute bit in transit.
	if err := ensureExecutable(binPath); err != nil {
		log.Warn("Could not set execute permission", "engine", d.ID, "error", err)
	}

	binDir := filepath.Dir(binPath)
	args := d.LaunchArgs(modelsDir, d.Port)

	// Force UTF-8 in the child: engine log output is internationalized and
	// crashes on consoles with non-UTF8 default encodings.
	env := append(os.Environ(), "PYTHONIOENCODING=utf-8", "PYTHONUTF8=1")
	if d.ExtraEnv != nil {
		env = append(env, d.ExtraEnv(binDir)...)
	}

	h, err := startProcess(d, binPath, binDir, args, env, onExit)
	if err != nil {
		return nil, fmt.Errorf("unable to start %s: %w", d.ID, err)
	}

	log.Info("Engine process started", "engine", d.ID, "pid", h.PID(), "port", d.Port)
	return h, nil
}

// Terminate stops a managed process: forceful tree-kill on Windows, SIGTERM
// with a bounded grace period then SIGKILL elsewhere. The engine's port is
// always swept afterwards in case part of the process tree survived.
func (s *Supervisor) Terminate(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	err := terminateProcess(h, terminateGrace)

	if d, lookupErr := engine.Lookup(h.Engine); lookupErr == nil {
		s.SweepPort(ctx, d)
	}
	if err != nil {
		return fmt.Errorf("unable to terminate %s (pid %d): %w", h.Engine, h.PID(), err)
	}
	log.Info("Engine process terminated", "engine", h.Engine, "pid", h.PID())
	return nil
}

// CleanupOrphans kills any process matching the engine's binary name and any
// process bound to its port. It runs unconditionally before every spawn:
// leftovers from crashed sessions are an expected condition, and the
// name+port double sweep covers both "we know the binary" and "we lost track
// of the PID".
func (s *Supervisor) CleanupOrphans(ctx context.Context, d *engine.Descriptor) {
	s.killByName(ctx, d.BinaryName+exeSuffix)
	s.SweepPort(ctx, d)
}

// SweepPort kills whatever is currently bound to the engine's fixed port.
func (s *Supervisor) SweepPort(ctx context.Context, d *engine.Descriptor) {
	if err := s.killByPort(ctx, d.Port); err != nil {
		log.Debug("Port sweep found nothing to kill", "engine", d.ID, "port", d.Port, "error", err)
	}
}

// WaitPortFree polls until the engine's port stops accepting connections or
// the timeout elapses. Spawning immediately after a termination races the
// OS releasing the listener; polling returns as soon as the port is actually
// free instead of sleeping a fixed interval.
func (s *Supervisor) WaitPortFree(ctx context.Context, d *engine.Descriptor, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	addr := fmt.Sprintf("127.0.0.1:%d", d.Port)
	for {
		conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
		if err != nil {
			return true
		}
		conn.Close()

		if time.Now().After(deadline) {
			log.Warn("Port still bound after wait", "engine", d.ID, "port", d.Port)
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(250 * time.Millisecond):
		}
	}
}
