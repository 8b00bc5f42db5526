// Package session routes inbound chat events to the flows that handle them.
// It owns the per-user session registry: one entry per user, serialized by
// the entry's mutex, evicted after a period of inactivity.
package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/lernbot/internal/access"
	"github.com/pavelanni/lernbot/internal/exam"
	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/keyboard"
	"github.com/pavelanni/lernbot/internal/model"
	"github.com/pavelanni/lernbot/internal/speech"
	"github.com/pavelanni/lernbot/internal/tutor"
)

// DefaultTimeout is how long an idle session survives.
const DefaultTimeout = 30 * time.Minute

// EventKind is the transport-level kind of an inbound event.
type EventKind string

const (
	KindCommand EventKind = "command"
	KindText    EventKind = "text"
	KindVoice   EventKind = "voice"
	KindButton  EventKind = "button"
)

// Profile is what the chat transport knows about the sender.
type Profile struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Event is one inbound message. Command is given without the leading slash.
type Event struct {
	UserID    int64     `json:"user_id"`
	Kind      EventKind `json:"kind"`
	Command   string    `json:"command,omitempty"`
	Text      string    `json:"text,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Audio     io.Reader `json:"-"`
	AudioName string    `json:"audio_name,omitempty"`
	Profile   Profile   `json:"profile"`
}

// Reply is the outbound answer to an event. An empty Text means the event
// was ignored and nothing should be sent.
type Reply struct {
	Text    string          `json:"text"`
	Buttons keyboard.Layout `json:"buttons,omitempty"`
}

// Empty reports whether the reply carries nothing to send.
func (r Reply) Empty() bool {
	return r.Text == ""
}

// Store is the record store behind every flow.
type Store interface {
	access.Store
	exam.Store
	tutor.Store
	CreateUser(ctx context.Context, u model.User) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error)
	GetExamAttempts(ctx context.Context, userID int64, examType string, limit int) ([]model.ExamAttempt, error)
}

// Oracle is the text generation backend.
type Oracle interface {
	exam.Oracle
	tutor.Chatter
}

// entry is one user's session. mu is held for the whole of an event.
type entry struct {
	mu       sync.Mutex
	scratch  Scratch
	lastSeen time.Time
	evicted  bool
}

// Orchestrator dispatches events to the registration, settings, exam and
// tutoring flows.
type Orchestrator struct {
	store   Store
	gate    *access.Gate
	exams   *exam.Flow
	tutor   *tutor.Tutor
	timeout time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[int64]*entry
}

// New creates an orchestrator. A zero timeout means DefaultTimeout and a nil
// transcriber disables voice input.
func New(store Store, oracle Oracle, transcriber speech.Transcriber, timeout time.Duration) *Orchestrator {
	if transcriber == nil {
		transcriber = speech.Disabled{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		store:    store,
		gate:     access.NewGate(store),
		exams:    exam.NewFlow(store, oracle, transcriber),
		tutor:    tutor.New(store, oracle, transcriber),
		timeout:  timeout,
		now:      time.Now,
		sessions: make(map[int64]*entry),
	}
}

// Handle processes ev and returns the reply. Events of one user are handled
// one at a time in arrival order; distinct users proceed concurrently.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) Reply {
	e := o.acquire(ev.UserID)
	defer e.mu.Unlock()
	e.lastSeen = o.now()

	user, err := o.store.GetUser(ctx, ev.UserID)
	if err != nil {
		slog.Error("load user", "user_id", ev.UserID, "error", err)
		return Reply{Text: i18n.T(ctx, "ErrorGeneric"), Buttons: keyboard.BackToMenu(ctx)}
	}
	ctx = localize(ctx, user)

	slog.Debug("handle event", "user_id", ev.UserID, "kind", ev.Kind, "flow", e.scratch.Flow(),
		"command", ev.Command, "payload", ev.Payload)

	r := &request{o: o, e: e, ev: ev, user: user}
	reply := r.route(ctx)
	e.scratch = settle(e.scratch)
	return reply
}

// Flow reports the flow a user is currently in.
func (o *Orchestrator) Flow(userID int64) Flow {
	o.mu.RLock()
	e, ok := o.sessions[userID]
	o.mu.RUnlock()
	if !ok {
		return FlowNone
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scratch.Flow()
}

// Len returns the number of live sessions.
func (o *Orchestrator) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

// acquire returns the locked entry of userID, creating it when needed.
func (o *Orchestrator) acquire(userID int64) *entry {
	for {
		o.mu.RLock()
		e, ok := o.sessions[userID]
		o.mu.RUnlock()
		if !ok {
			o.mu.Lock()
			e, ok = o.sessions[userID]
			if !ok {
				e = &entry{scratch: NoFlow{}}
				o.sessions[userID] = e
			}
			o.mu.Unlock()
		}
		e.mu.Lock()
		if !e.evicted {
			return e
		}
		e.mu.Unlock()
	}
}

// Evict drops sessions idle for longer than the timeout and returns how
// many were dropped. Sessions busy with an event are skipped.
func (o *Orchestrator) Evict() int {
	cutoff := o.now().Add(-o.timeout)
	o.mu.Lock()
	defer o.mu.Unlock()
	var n int
	for id, e := range o.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastSeen.Before(cutoff) {
			slog.Info("evicting idle session", "user_id", id, "flow", e.scratch.Flow(), "last_seen", e.lastSeen)
			e.evicted = true
			delete(o.sessions, id)
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// RunEvictor calls Evict every interval until ctx is done.
func (o *Orchestrator) RunEvictor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := o.Evict(); n > 0 {
				slog.Debug("evicted idle sessions", "count", n, "remaining", o.Len())
			}
		}
	}
}

// localize attaches the localizer of the user's preferred language.
func localize(ctx context.Context, user *model.User) context.Context {
	lang := model.LangEnglish
	if user != nil && user.PreferredLang.IsValid() {
		lang = user.PreferredLang
	}
	return i18n.WithLocalizer(ctx, i18n.NewLocalizer(lang.Locale()))
}

// normalizeCommand strips the slash and any "@botname" suffix.
func normalizeCommand(cmd string) string {
	cmd = strings.TrimPrefix(strings.TrimSpace(cmd), "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}
