package manager

import (
	"context"
	"time"

	"github.com/voxhost/voxhost/internal/engine"
)

// ProcessHandle is the manager's view of a spawned engine process.
type ProcessHandle interface {
	PID() int
	Done() <-chan struct{}
}

// Supervisor is the process-management surface the manager composes.
// Implemented by supervisor.Supervisor through WrapSupervisor.
type Supervisor interface {
	IsInstalled(d *engine.Descriptor) bool
	Spawn(ctx context.Context, d *engine.Descriptor, onExit func(error)) (ProcessHandle, error)
	Terminate(ctx context.Context, h ProcessHandle) error
	CleanupOrphans(ctx context.Context, d *engine.Descriptor)
	SweepPort(ctx context.Context, d *engine.Descriptor)
	WaitPortFree(ctx context.Context, d *engine.Descriptor, timeout time.Duration) bool
}

// Prober is the health-probing surface the manager composes. Implemented by
// probe.Prober.
type Prober interface {
	AwaitHealthy(ctx context.Context, d *engine.Descriptor, baseURL string, timeout, interval time.Duration) bool
	DetectExternal(ctx context.Context) (*engine.Descriptor, bool)
}

// runningState tracks the single managed engine process. The Manager is its
// only writer and every access happens under the Manager's mutex.
type runningState struct {
	handle ProcessHandle
	desc   *engine.Descriptor

	// ready flips to true after the first successful health check for this
	// process and back to false when the process goes away.
	ready bool
}

func (s *runningState) clear() {
	s.handle = nil
	s.desc = nil
	s.ready = false
}

// active is the resolved "current engine" view shared by all read
// operations, covering both managed processes and detected external
// instances.
type active struct {
	desc    *engine.Descriptor
	baseURL string
	pid     int
	managed bool
	ready   bool
}
