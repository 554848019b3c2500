package shellsession

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/codediagram/backend/internal/logging"
	"github.com/codediagram/backend/pkg/types"
)

// OutputSink receives streamed command output, one chunk at a time.
type OutputSink func(chunk []byte, stream string)

// Execute runs command in sessionID's shell, streaming stdout/stderr to
// sink in 1 KiB chunks, and returns the terminal status.
func (m *Manager) Execute(ctx context.Context, sessionID, command string, sink OutputSink) (types.ShellStatus, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return types.ShellFailed, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return types.ShellFailed, &SessionBusyError{SessionID: sessionID}
	}
	s.running = true
	s.commandCount++
	s.lastActivityAt = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.kill = nil
		s.lastActivityAt = time.Now()
		s.mu.Unlock()
	}()

	if err := checkPolicy(command); err != nil {
		if sink != nil {
			sink([]byte(err.Error()), "stderr")
		}
		return types.ShellFailed, err
	}

	return m.spawn(ctx, s, command, sink)
}

func (m *Manager) spawn(ctx context.Context, s *ShellSession, command string, sink OutputSink) (types.ShellStatus, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := shellCommand(cmdCtx, s.shellKind, command)
	cmd.Dir = s.cwd

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return types.ShellFailed, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return types.ShellFailed, err
	}

	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		return types.ShellFailed, err
	}

	s.mu.Lock()
	s.kill = func() { killProcessGroup(cmd) }
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go drain(&wg, stdout, "stdout", sink)
	go drain(&wg, stderr, "stderr", sink)
	wg.Wait()

	waitErr := cmd.Wait()

	if cmdCtx.Err() == context.DeadlineExceeded {
		if sink != nil {
			sink([]byte("Command timed out and was terminated"), "stderr")
		}
		return types.ShellTimeout, nil
	}

	if waitErr != nil {
		return types.ShellFailed, fmt.Errorf("shellsession: command exited with error: %w", waitErr)
	}
	return types.ShellCompleted, nil
}

func drain(wg *sync.WaitGroup, r io.Reader, stream string, sink OutputSink) {
	defer wg.Done()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 && sink != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sink(chunk, stream)
		}
		if err != nil {
			if err != io.EOF {
				logging.Warn().Str("stream", stream).Err(err).Msg("shell session: error draining output")
			}
			return
		}
	}
}

func shellCommand(ctx context.Context, kind types.ShellKind, command string) *exec.Cmd {
	switch kind {
	case types.ShellCmd:
		return exec.CommandContext(ctx, "cmd", "/c", command)
	case types.ShellPowerShell:
		return exec.CommandContext(ctx, "powershell", "-Command", command)
	default:
		return exec.CommandContext(ctx, "bash", "-c", command)
	}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid

	if runtime.GOOS == "windows" {
		_ = exec.Command("taskkill", "/pid", fmt.Sprint(pid), "/f", "/t").Run()
		return
	}

	_ = syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(sigkillGrace)
	if cmd.ProcessState == nil {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
}
