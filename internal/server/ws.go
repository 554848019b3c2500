package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/codediagram/backend/internal/logging"
	"github.com/codediagram/backend/internal/toolsurface"
)

type websocketUpgrader = websocket.Upgrader

var wsLog = logging.Component("websocket")

func newWebsocketUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// shellFrame is both the client->server and server->client WS message
// shape for /shell/ws/{id} (spec.md §6 "Shell WebSocket framing").
type shellFrame struct {
	Type    string      `json:"type"`
	Data    any         `json:"data,omitempty"`
	Stream  string      `json:"stream,omitempty"`
	Session any         `json:"session_info,omitempty"`
}

func (s *Server) shellWebsocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := s.shells.Info(id)
	if err != nil {
		writeShellError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLog.Warn().Err(err).Msg("shell websocket: upgrade failed")
		return
	}
	defer conn.Close()

	var writeMu writeMutex
	writeMu.send(conn, shellFrame{Type: "status", Data: "connected", Session: info})

	for {
		var frame shellFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "ping":
			writeMu.send(conn, shellFrame{Type: "pong", Data: frame.Data})
		case "command":
			command, _ := frame.Data.(string)
			s.runShellCommand(r.Context(), conn, &writeMu, id, command)
		default:
			writeMu.send(conn, shellFrame{Type: "error", Data: "unknown frame type: " + frame.Type})
		}
	}
}

func (s *Server) runShellCommand(ctx context.Context, conn *websocket.Conn, writeMu *writeMutex, sessionID, command string) {
	writeMu.send(conn, shellFrame{Type: "echo", Data: command})

	status, err := s.shells.Execute(ctx, sessionID, command, func(chunk []byte, stream string) {
		writeMu.send(conn, shellFrame{Type: "output", Stream: stream, Data: string(chunk)})
	})
	if err != nil {
		writeMu.send(conn, shellFrame{Type: "error", Data: err.Error()})
	}
	writeMu.send(conn, shellFrame{Type: "status", Data: string(status)})
}

// writeMutex serialises writes to one *websocket.Conn: command output is
// streamed from Execute's sink callback while ping/pong frames are written
// from the same read loop, and gorilla/websocket forbids concurrent
// writers on a single connection.
type writeMutex struct {
	mu sync.Mutex
}

func (wm *writeMutex) send(conn *websocket.Conn, frame shellFrame) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		wsLog.Warn().Err(err).Msg("shell websocket: write failed")
	}
}

func (s *Server) mcpWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLog.Warn().Err(err).Msg("mcp websocket: upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req toolsurface.JSONRPCRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		resp := s.tools.HandleRPC(r.Context(), req)
		if err := conn.WriteJSON(resp); err != nil {
			wsLog.Warn().Err(err).Msg("mcp websocket: write failed")
			return
		}
	}
}
