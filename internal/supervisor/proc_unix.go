//go:build !windows

package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

const exeSuffix = ""

func ensureExecutable(path string) error {
	return os.Chmod(path, 0o755)
}

// terminateProcess sends SIGTERM, waits out the grace period, then SIGKILLs.
func terminateProcess(h *Handle, grace time.Duration) error {
	if h.cmd.Process == nil {
		return nil
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Process may already be gone.
		log.Debug("SIGTERM failed", "pid", h.pid, "error", err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
	}

	log.Warn("Engine ignored SIGTERM, killing", "engine", h.Engine, "pid", h.pid)
	if err := h.cmd.Process.Kill(); err != nil {
		return err
	}
	<-h.done
	return nil
}

// killByName kills every process whose command line matches the binary name.
func (s *Supervisor) killByName(ctx context.Context, name string) {
	// pkill exits 1 when no process matched; that is the normal case.
	if out, err := s.run.run(ctx, "pkill", "-9", "-f", name); err != nil {
		log.Debug("No orphan processes by name", "name", name, "output", string(bytes.TrimSpace(out)))
	} else {
		log.Info("Killed orphan process by name", "name", name)
	}
}

// killByPort kills whatever holds the given TCP port.
func (s *Supervisor) killByPort(ctx context.Context, port int) error {
	out, err := s.run.run(ctx, "lsof", "-ti", fmt.Sprintf("tcp:%d", port))
	if err != nil {
		// lsof exits non-zero when nothing listens on the port.
		return err
	}

	pids := parsePIDs(out)
	if len(pids) == 0 {
		return fmt.Errorf("no process bound to port %d", port)
	}
	for _, pid := range pids {
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
			log.Debug("Kill by port failed", "pid", pid, "error", err)
			continue
		}
		log.Info("Killed process bound to port", "pid", pid, "port", port)
	}
	return nil
}

// parsePIDs extracts one pid per line from lsof -t output.
func parsePIDs(out []byte) []int {
	var pids []int
	for _, line := range bytes.Split(bytes.TrimSpace(out), []byte("\n")) {
		pid, err := strconv.Atoi(string(bytes.TrimSpace(line)))
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}
