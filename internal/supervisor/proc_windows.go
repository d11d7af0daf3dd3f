//go:build windows

package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

const exeSuffix = ".exe"

func ensureExecutable(string) error {
	// Execute permission is not a concept on Windows.
	return nil
}

// terminateProcess force-kills the whole process tree. Windows has no
// SIGTERM equivalent worth waiting on for these engines.
func terminateProcess(h *Handle, _ time.Duration) error {
	r := newRunner(sweepTimeout)
	if _, err := r.run(context.Background(), "taskkill", "/F", "/T", "/PID", strconv.Itoa(h.pid)); err != nil {
		// Fall back to the direct kill; taskkill fails if the pid is gone.
		if h.cmd.Process != nil {
			if killErr := h.cmd.Process.Kill(); killErr != nil {
				return fmt.Errorf("taskkill failed (%v) and kill failed: %w", err, killErr)
			}
		}
	}
	<-h.done
	return nil
}

func (s *Supervisor) killByName(ctx context.Context, name string) {
	if _, err := s.run.run(ctx, "taskkill", "/F", "/T", "/IM", name); err != nil {
		log.Debug("No orphan processes by name", "name", name)
		return
	}
	log.Info("Killed orphan process by name", "name", name)
}

func (s *Supervisor) killByPort(ctx context.Context, port int) error {
	out, err := s.run.run(ctx, "netstat", "-ano")
	if err != nil {
		return err
	}

	pids := parseNetstatPIDs(out, port)
	if len(pids) == 0 {
		return fmt.Errorf("no process bound to port %d", port)
	}
	for _, pid := range pids {
		if _, err := s.run.run(ctx, "taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)); err != nil {
			log.Debug("Kill by port failed", "pid", pid, "error", err)
			continue
		}
		log.Info("Killed process bound to port", "pid", pid, "port", port)
	}
	return nil
}

// parseNetstatPIDs finds pids of listeners on the given local port in
// netstat -ano output.
func parseNetstatPIDs(out []byte, port int) []int {
	needle := []byte(fmt.Sprintf(":%d", port))
	var pids []int
	for _, line := range bytes.Split(out, []byte("\n")) {
		if !bytes.Contains(line, needle) || !bytes.Contains(line, []byte("LISTENING")) {
			continue
		}
		fields := bytes.Fields(line)
		if len(fields) == 0 {
			continue
		}
		pid, err := strconv.Atoi(string(fields[len(fields)-1]))
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}
