// Package handler exposes the tutor over HTTP: a webhook for chat events, a
// websocket chat endpoint and a token-protected admin API.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pavelanni/lernbot/internal/access"
	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/model"
	"github.com/pavelanni/lernbot/internal/session"
	"github.com/pavelanni/lernbot/internal/store"
)

// maxEventBytes bounds an inbound event body, voice payload included.
const maxEventBytes = 10 << 20

// Dispatcher handles one chat event.
type Dispatcher interface {
	Handle(ctx context.Context, ev session.Event) session.Reply
}

// AdminStore is the record store surface of the admin API.
type AdminStore interface {
	access.GrantStore
	store.QuestionImporter
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ExportAttempts(ctx context.Context) ([]model.LearnerResult, error)
	UserCount(ctx context.Context) (int, error)
	QuestionCount(ctx context.Context) (int, error)
}

// Config holds the gateway settings.
type Config struct {
	// AdminPasswordHash is the bcrypt hash admins log in with. Empty
	// disables the admin API.
	AdminPasswordHash []byte
	JWTSecret         []byte
	TokenTTL          time.Duration
	// Lang is the fallback language of requests without a preference.
	Lang           string
	AllowedOrigins []string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	bot      Dispatcher
	store    AdminStore
	config   Config
	upgrader websocket.Upgrader
	now      func() time.Time
	pongWait time.Duration
}

// New creates a new Handler.
func New(bot Dispatcher, s AdminStore, cfg Config) *Handler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	h := &Handler{bot: bot, store: s, config: cfg, now: time.Now, pongWait: pongWait}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(i18n.Middleware(h.config.Lang))
		r.Post("/events", h.handleEvent)
		r.Get("/ws", h.handleWebSocket)

		r.Post("/admin/login", h.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/admin/stats", h.handleStats)
			r.Get("/admin/users", h.handleListUsers)
			r.Get("/admin/users/{userID}", h.handleGetUser)
			r.Post("/admin/subscriptions", h.handleGrant)
			r.Post("/admin/questions", h.handleUploadQuestions)
			r.Get("/admin/export", h.handleExport)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// inboundEvent is the wire form of a chat event. Voice audio travels
// base64-encoded in Audio.
type inboundEvent struct {
	session.Event
	AudioData []byte `json:"audio,omitempty"`
}

func (in inboundEvent) event() (session.Event, error) {
	ev := in.Event
	if ev.UserID == 0 {
		return ev, errors.New("user_id is required")
	}
	switch ev.Kind {
	case session.KindCommand, session.KindText, session.KindButton:
	case session.KindVoice:
		if len(in.AudioData) == 0 {
			return ev, errors.New("voice event without audio")
		}
		ev.Audio = bytes.NewReader(in.AudioData)
		if ev.AudioName == "" {
			ev.AudioName = "voice.ogg"
		}
	default:
		return ev, errors.New("unknown event kind")
	}
	return ev, nil
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var in inboundEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	ev, err := in.event()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply := h.bot.Handle(r.Context(), ev)
	if reply.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
