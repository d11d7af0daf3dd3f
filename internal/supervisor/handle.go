package supervisor

import (
	"bytes"
	"os/exec"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/voxhost/voxhost/internal/engine"
)

// Handle is the exclusive reference to a spawned engine process.
type Handle struct {
	// Engine identifies which descriptor this process was spawned from.
	Engine engine.ID

	cmd *exec.Cmd
	pid int

	done     chan struct{}
	waitOnce sync.Once
	waitErr  error
}

// PID returns the OS process id.
func (h *Handle) PID() int {
	return h.pid
}

// Done is closed once the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// startProcess launches the engine child and wires exit reporting. onExit is
// invoked exactly once, after the process has fully exited.
func startProcess(d *engine.Descriptor, binPath, binDir string, args, env []string, onExit func(err error)) (*Handle, error) {
	cmd := exec.Command(binPath, args...)
	cmd.Dir = binDir
	cmd.Env = env
	cmd.Stdout = &logWriter{id: d.ID, stream: "stdout"}
	cmd.Stderr = &logWriter{id: d.ID, stream: "stderr"}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &Handle{
		Engine: d.ID,
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		done:   make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		h.waitOnce.Do(func() {
			h.waitErr = err
			close(h.done)
		})
		if onExit != nil {
			onExit(err)
		}
	}()

	return h, nil
}

// logWriter forwards child output into the structured log, one line per
// write where possible.
type logWriter struct {
	id     engine.ID
	stream string
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		log.Debug("Engine output", "engine", w.id, "stream", w.stream, "line", string(line))
	}
	return len(p), nil
}
