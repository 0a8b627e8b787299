package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/middleware"
	"github.com/adultally/ally/backend/internal/model/chat"
	"github.com/adultally/ally/backend/pkg/utils"
)

const (
	heartbeatInterval = 15 * time.Second
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
)

// Handler pushes session snapshots to the browser as they change.
type Handler struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates the stream handler. checkOrigin may be nil to accept any origin.
func New(logger *zap.Logger, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes registers the SSE and WebSocket routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/events", h.handleEvents)
	r.Get("/session/ws", h.handleWebSocket)
}

// StreamEvent is one pushed update.
type StreamEvent struct {
	Event   string       `json:"event"`
	Session chat.Session `json:"session"`
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ws, _ := middleware.WorkspaceFrom(r.Context())

	updates, cancel := ws.Session.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "snapshot", ws.Session.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "session", snap); err != nil {
				h.logger.Debug("sse client gone", zap.String("user", ws.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}

// inboundMessage is a command sent over the WebSocket.
type inboundMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	PersonaID string `json:"personaId,omitempty"`
}

type outgoingMessage struct {
	Type    string        `json:"type"`
	Session *chat.Session `json:"session,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// handleWebSocket streams snapshots and accepts send/switch/clear/dismiss
// commands. A send runs off the read loop; the controller rejects a second
// one while it is in flight.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, _ := middleware.WorkspaceFrom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := ws.Session.Subscribe()
	defer cancel()

	out := make(chan outgoingMessage, 8)
	done := make(chan struct{})
	go h.readCommands(conn, ws.UserID, out, done, func(msg inboundMessage) outgoingMessage {
		return h.runCommand(r, msg)
	})

	initial := ws.Session.Snapshot()
	if err := h.write(conn, outgoingMessage{Type: "snapshot", Session: &initial}); err != nil {
		return
	}

	ping := time.NewTicker(pongWait * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := h.write(conn, outgoingMessage{Type: "session", Session: &snap}); err != nil {
				return
			}
		case msg := <-out:
			if err := h.write(conn, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readCommands(conn *websocket.Conn, userID string, out chan<- outgoingMessage, done chan<- struct{}, run func(inboundMessage) outgoingMessage) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("user", userID), zap.Error(err))
			}
			return
		}
		if msg.Type == "send" {
			// A send blocks until the completion returns; keep reading so
			// pongs still extend the deadline.
			go func(msg inboundMessage) {
				h.deliver(out, userID, msg.Type, run(msg))
			}(msg)
			continue
		}
		h.deliver(out, userID, msg.Type, run(msg))
	}
}

func (h *Handler) deliver(out chan<- outgoingMessage, userID, cmd string, reply outgoingMessage) {
	select {
	case out <- reply:
	default:
		h.logger.Warn("websocket reply dropped", zap.String("user", userID), zap.String("type", cmd))
	}
}

func (h *Handler) runCommand(r *http.Request, msg inboundMessage) outgoingMessage {
	ws, _ := middleware.WorkspaceFrom(r.Context())
	ctx := r.Context()

	var err error
	switch msg.Type {
	case "send":
		err = ws.Session.SendMessage(ctx, msg.Text)
	case "switch":
		err = ws.Session.Activate(ctx, msg.PersonaID)
	case "clear":
		err = ws.Session.Clear(ctx, msg.PersonaID)
	case "dismiss":
		ws.Session.DismissError()
	default:
		return outgoingMessage{Type: "error", Error: "unknown command " + msg.Type}
	}

	snap := ws.Session.Snapshot()
	if err != nil {
		return outgoingMessage{Type: "error", Error: err.Error(), Session: &snap}
	}
	return outgoingMessage{Type: "ack", Session: &snap}
}

func (h *Handler) write(conn *websocket.Conn, msg outgoingMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
