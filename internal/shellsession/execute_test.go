package shellsession

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codediagram/backend/pkg/types"
)

func TestExecute_StreamsOutputAndCompletes(t *testing.T) {
	m := NewManager(t.TempDir())
	defer m.Shutdown()

	info, err := m.CreateSession("", types.ShellBash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var mu sync.Mutex
	var out strings.Builder
	status, err := m.Execute(context.Background(), info.ID, "echo hello", func(chunk []byte, stream string) {
		mu.Lock()
		defer mu.Unlock()
		if stream == "stdout" {
			out.Write(chunk)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != types.ShellCompleted {
		t.Fatalf("expected completed status, got %v", status)
	}
	if !strings.Contains(out.String(), "hello") {
		t.Fatalf("expected output to contain hello, got %q", out.String())
	}

	got, err := m.Info(info.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CommandCount != 1 {
		t.Fatalf("expected command count 1, got %d", got.CommandCount)
	}
	if got.Running {
		t.Fatal("expected session to no longer be running after completion")
	}
}

func TestExecute_RejectsDeniedCommandWithoutSpawning(t *testing.T) {
	m := NewManager(t.TempDir())
	defer m.Shutdown()

	info, err := m.CreateSession("", types.ShellBash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := m.Execute(context.Background(), info.ID, "rm -rf /", nil)
	if err == nil {
		t.Fatal("expected an error for a denied command")
	}
	if status != types.ShellFailed {
		t.Fatalf("expected failed status, got %v", status)
	}

	got, err := m.Info(info.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CommandCount != 1 {
		t.Fatalf("expected command count to still increment on policy rejection, got %d", got.CommandCount)
	}
}

func TestExecute_RejectsConcurrentCommandsOnSameSession(t *testing.T) {
	m := NewManager(t.TempDir())
	defer m.Shutdown()

	info, err := m.CreateSession("", types.ShellBash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = m.Execute(context.Background(), info.ID, "sleep 0.3; echo done", nil)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	_, err = m.Execute(context.Background(), info.ID, "echo second", nil)
	if err == nil {
		t.Fatal("expected a busy error for a concurrent Execute call")
	}
	if _, ok := err.(*SessionBusyError); !ok {
		t.Fatalf("expected *SessionBusyError, got %T", err)
	}

	<-done
}
