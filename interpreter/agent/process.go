package agent

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/config"
)

// sbinPath is appended to PATH for launched agents.
const sbinPath = "/sbin:/usr/sbin"

// ProcessLauncher runs each agent as "<Executable> agent serve" in a
// new session, logging to the agent's log file under the runtime
// directory.
type ProcessLauncher struct {
	Executable string
	Dirs       config.RuntimeDirs
	// StopGrace is how long Stop waits after SIGTERM before SIGKILL.
	StopGrace time.Duration
}

// ServeArgs returns the command line that serves spec.
func ServeArgs(spec nsprov.AgentSpec) []string {
	return []string{
		"agent", "serve",
		"--name", spec.Name,
		"--netns", spec.Namespace,
		"--listen", ListenAddr(spec),
	}
}

// ListenAddr returns the address an agent listens on.
func ListenAddr(spec nsprov.AgentSpec) string {
	if !spec.Addr.IsValid() {
		return ":" + strconv.Itoa(int(spec.Port))
	}
	return netip.AddrPortFrom(spec.Addr, spec.Port).String()
}

// agentEnv returns environ with sbinPath appended to PATH and
// LD_PRELOAD set when preload is configured.
func agentEnv(environ []string, preload nsprov.Setting) []string {
	out := make([]string, 0, len(environ)+2)
	var sawPath bool
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		switch k {
		case "PATH":
			sawPath = true
			if v == "" {
				kv = "PATH=" + sbinPath
			} else if !strings.Contains(":"+v+":", ":"+sbinPath+":") {
				kv = "PATH=" + v + ":" + sbinPath
			}
		case "LD_PRELOAD":
			if preload.IsSet() {
				continue
			}
		}
		out = append(out, kv)
	}
	if !sawPath {
		out = append(out, "PATH="+sbinPath)
	}
	if v, ok := preload.Get(); ok && v != "" {
		out = append(out, "LD_PRELOAD="+v)
	}
	return out
}

// Launch starts the agent process and returns its PID. The process is
// not waited for; it outlives the caller.
func (l ProcessLauncher) Launch(ctx context.Context, spec nsprov.AgentSpec) (int, error) {
	if err := os.MkdirAll(l.Dirs.Agents(), 0755); err != nil {
		return 0, fmt.Errorf("create agent directory: %w", err)
	}
	logFile, err := os.OpenFile(l.Dirs.AgentLogPath(spec.Name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open agent log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(l.Executable, ServeArgs(spec)...)
	cmd.Env = agentEnv(os.Environ(), spec.Preload)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", l.Executable, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release agent process: %w", err)
	}
	return pid, nil
}

// Stop sends SIGTERM to pid and SIGKILL if it is still alive after the
// grace period. A process that is already gone is not an error.
func (l ProcessLauncher) Stop(ctx context.Context, pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("signal %d: %w", pid, err)
	}

	grace := l.StopGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
				return fmt.Errorf("kill %d: %w", pid, err)
			}
			return nil
		case <-tick.C:
			if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
				return nil
			}
		}
	}
}
