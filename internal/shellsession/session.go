// Package shellsession implements C8: long-lived, workspace-bound shell
// sessions with a fixed deny/dangerous-pattern security policy, grounded on
// the teacher's internal/tool/bash.go (process-group spawn, SIGTERM-then-
// SIGKILL) and internal/permission (dangerous-command vocabulary, bash
// tokenisation via mvdan.cc/sh/v3) generalized from one-shot tool calls to
// sessions that outlive a single command.
package shellsession

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codediagram/backend/internal/logging"
	"github.com/codediagram/backend/internal/storage"
	"github.com/codediagram/backend/pkg/types"
)

const (
	commandTimeout = 300 * time.Second
	idleTTL        = 1800 * time.Second
	evictInterval  = 60 * time.Second
	chunkSize      = 1024
	sigkillGrace   = 200 * time.Millisecond
)

// SessionBusyError is returned when Execute is called on a session that
// already has a command running.
type SessionBusyError struct{ SessionID string }

func (e *SessionBusyError) Error() string {
	return fmt.Sprintf("shell session %s is busy", e.SessionID)
}

// ShellSession is one long-lived shell, bound to a cwd under the workspace
// root.
type ShellSession struct {
	mu sync.Mutex

	id             string
	cwd            string
	shellKind      types.ShellKind
	createdAt      time.Time
	lastActivityAt time.Time
	commandCount   int
	running        bool
	kill           func()
}

func (s *ShellSession) info() types.ShellSessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.ShellSessionInfo{
		ID:           s.id,
		CWD:          s.cwd,
		ShellKind:    s.shellKind,
		Running:      s.running,
		CreatedAt:    s.createdAt.UnixMilli(),
		LastActivity: s.lastActivityAt.UnixMilli(),
		CommandCount: s.commandCount,
	}
}

// Manager owns every live ShellSession (C8's map of sessions) and runs the
// idle-eviction background task.
type Manager struct {
	workspaceRoot string

	mu       sync.RWMutex
	sessions map[string]*ShellSession

	stop chan struct{}
}

// NewManager builds a Manager bound to workspaceRoot and starts its
// background idle-eviction loop.
func NewManager(workspaceRoot string) *Manager {
	m := &Manager{
		workspaceRoot: workspaceRoot,
		sessions:      make(map[string]*ShellSession),
		stop:          make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// Shutdown stops the eviction loop and kills every running session.
// Intended for process shutdown.
func (m *Manager) Shutdown() {
	close(m.stop)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.mu.Lock()
		if s.kill != nil {
			s.kill()
		}
		s.mu.Unlock()
	}
}

func (m *Manager) evictLoop() {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastActivityAt)
		if idle > idleTTL {
			if s.kill != nil {
				s.kill()
			}
			s.mu.Unlock()
			delete(m.sessions, id)
			logging.Info().Str("session", id).Dur("idle", idle).Msg("shell session evicted")
			continue
		}
		s.mu.Unlock()
	}
}

// CreateSession creates a new session rooted at cwd (substituted with the
// workspace root if cwd escapes it) using shellKind (ShellAuto picks cmd on
// Windows, bash otherwise).
func (m *Manager) CreateSession(cwd string, shellKind types.ShellKind) (*types.ShellSessionInfo, error) {
	resolvedCWD := m.resolveCWD(cwd)
	kind := resolveShellKind(shellKind)

	s := &ShellSession{
		id:             uuid.New().String(),
		cwd:            resolvedCWD,
		shellKind:      kind,
		createdAt:      time.Now(),
		lastActivityAt: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	info := s.info()
	return &info, nil
}

func (m *Manager) resolveCWD(cwd string) string {
	if cwd == "" {
		return m.workspaceRoot
	}
	abs, err := filepath.Abs(cwd)
	if err != nil {
		logging.Warn().Str("cwd", cwd).Err(err).Msg("shell session: could not resolve cwd, falling back to workspace root")
		return m.workspaceRoot
	}
	if m.workspaceRoot == "" {
		return abs
	}
	rel, err := filepath.Rel(m.workspaceRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		logging.Warn().Str("cwd", abs).Str("root", m.workspaceRoot).Msg("shell session: cwd escapes workspace root, falling back")
		return m.workspaceRoot
	}
	return abs
}

func resolveShellKind(kind types.ShellKind) types.ShellKind {
	if kind == "" || kind == types.ShellAuto {
		if runtime.GOOS == "windows" {
			return types.ShellCmd
		}
		return types.ShellBash
	}
	return kind
}

// Info returns the current snapshot for sessionID.
func (m *Manager) Info(sessionID string) (*types.ShellSessionInfo, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	info := s.info()
	return &info, nil
}

// List returns a snapshot of every live session.
func (m *Manager) List() []types.ShellSessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ShellSessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info())
	}
	return out
}

// Close kills any running child and removes sessionID.
func (m *Manager) Close(sessionID string) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.kill != nil {
		s.kill()
	}
	s.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

func (m *Manager) get(sessionID string) (*ShellSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s, nil
}
