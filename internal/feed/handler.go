package feed

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/scopeprobe/internal/hint"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
	wsWriteTimeout    = 10 * time.Second
	wsMaxMessageSize  = 64 << 10
)

// Handler serves the feed over a websocket.
//
// Tree may be nil for a read-only feed (a replayed recording); commands are
// then answered with an error envelope.
type Handler struct {
	Hub            *Hub
	Tree           *hint.Tree
	Logger         *slog.Logger
	AllowedOrigins []string
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, h.AllowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger().Warn("feed upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageSize)

	events, cancel := h.Hub.Subscribe()
	defer cancel()

	replies := make(chan Envelope, 16)
	done := make(chan struct{})
	defer close(done)
	go writeLoop(conn, events, replies, done)

	h.logger().Debug("feed client connected", "remote", r.RemoteAddr)
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			h.logger().Debug("feed client disconnected", "remote", r.RemoteAddr, "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.handle(msg, replies)
	}
}

func (h *Handler) handle(msg []byte, replies chan<- Envelope) {
	reply := func(cmd Command, err error) {
		select {
		case replies <- errorEnvelope(cmd, err):
		default:
		}
	}

	cmd, err := DecodeCommand(msg)
	if err != nil {
		reply(cmd, err)
		return
	}
	if h.Tree == nil {
		reply(cmd, errReadOnly)
		return
	}

	tree := h.Tree
	queued := tree.Root().Defer(func() error {
		if err := Apply(tree, cmd); err != nil {
			reply(cmd, err)
			return err
		}
		return nil
	})
	if !queued {
		reply(cmd, errStopped)
	}
}

func writeLoop(conn *websocket.Conn, events <-chan Envelope, replies <-chan Envelope, done <-chan struct{}) {
	write := func(env Envelope) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return false
		}
		return conn.WriteJSON(env) == nil
	}
	for {
		select {
		case env, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
					time.Now().Add(time.Second))
				return
			}
			if !write(env) {
				return
			}
		case env := <-replies:
			if !write(env) {
				return
			}
		case <-done:
			return
		}
	}
}

// originAllowed accepts same-host requests, requests without an Origin
// header, and any origin listed in allowed ("*" allows all).
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
