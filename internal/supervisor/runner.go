package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// commandRunner abstracts the bounded shell-outs used by the orphan sweeps so
// tests can stub them.
type commandRunner interface {
	run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// runner executes commands with a default timeout applied when the caller's
// context carries no deadline.
type runner struct {
	defaultTimeout time.Duration
}

func newRunner(timeout time.Duration) runner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return runner{defaultTimeout: timeout}
}

func (r runner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.defaultTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("command timed out after %v", r.defaultTimeout)
	}
	if err != nil {
		return output, fmt.Errorf("command failed: %w", err)
	}
	return output, nil
}
