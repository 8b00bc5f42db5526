package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pavelanni/lernbot/internal/session"
)

const (
	// pongWait is the default time allowed for the peer to show it is alive.
	pongWait  = 60 * time.Second
	writeWait = 10 * time.Second
)

// wsMessage is one frame of the websocket chat protocol. Clients send
// events; the server answers each with a reply or, for bad input, an error.
type wsMessage struct {
	Type  string         `json:"type"`
	Reply *session.Reply `json:"reply,omitempty"`
	Error string         `json:"error,omitempty"`
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.config.AllowedOrigins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return slices.Contains(h.config.AllowedOrigins, origin) || slices.Contains(h.config.AllowedOrigins, u.Host)
}

// handleWebSocket runs a chat for the user in the user_id query parameter.
// Every frame the client sends is an event; user_id inside it is ignored.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "user_id", userID, "error", err)
		return
	}
	slog.Info("websocket connected", "user_id", userID, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	send := make(chan wsMessage, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(conn, send, h.pongWait*9/10)
	}()

	readPump(ctx, conn, userID, h.bot, send, h.pongWait)
	close(send)
	<-done
	slog.Info("websocket disconnected", "user_id", userID)
}

// readPump handles frames until the connection fails. Events of one
// connection are dispatched in order. Pongs are only seen while reading, so
// the deadline restarts once each event has been handled.
func readPump(ctx context.Context, conn *websocket.Conn, userID int64, bot Dispatcher, send chan<- wsMessage, wait time.Duration) {
	conn.SetReadLimit(maxEventBytes)
	conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read", "user_id", userID, "error", err)
			}
			return
		}

		var in inboundEvent
		if err := json.Unmarshal(data, &in); err != nil {
			send <- wsMessage{Type: "error", Error: "invalid JSON: " + err.Error()}
			continue
		}
		in.UserID = userID
		ev, err := in.event()
		if err != nil {
			send <- wsMessage{Type: "error", Error: err.Error()}
			continue
		}

		reply := bot.Handle(ctx, ev)
		conn.SetReadDeadline(time.Now().Add(wait))
		if reply.Empty() {
			continue
		}
		send <- wsMessage{Type: "reply", Reply: &reply}
	}
}

// writePump owns all writes to conn and keeps it alive with pings.
func writePump(conn *websocket.Conn, send <-chan wsMessage, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				slog.Warn("websocket write", "error", err)
				conn.Close()
				drain(send)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				drain(send)
				return
			}
		}
	}
}

// drain discards messages until the reader closes send.
func drain(send <-chan wsMessage) {
	for range send {
	}
}
