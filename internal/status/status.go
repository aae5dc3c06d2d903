// Package status exposes the running state of the dictation loop over a
// small local HTTP API and a websocket event feed.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"talkpaste/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultHistory = 50
)

// Options configures a Hub. State and QueueLen are polled on demand.
type Options struct {
	History  int
	Hotkey   string
	Provider string
	State    func() string
	QueueLen func() int
}

// Snapshot is the payload of /api/status.
type Snapshot struct {
	State     string    `json:"state"`
	Hotkey    string    `json:"hotkey"`
	Provider  string    `json:"provider"`
	QueueLen  int       `json:"queue_len"`
	Pasted    int       `json:"pasted"`
	Errors    int       `json:"errors"`
	StartedAt time.Time `json:"started_at"`
}

// EventMessage is a notify.Event with its error flattened to text.
type EventMessage struct {
	notify.Event
	Error string `json:"error,omitempty"`
}

type message struct {
	Type   string        `json:"type"`
	Status *Snapshot     `json:"status,omitempty"`
	Event  *EventMessage `json:"event,omitempty"`
}

// Hub records recent events and fans them out to websocket subscribers.
// It implements notify.Notifier.
type Hub struct {
	opts    Options
	log     zerolog.Logger
	started time.Time

	mu      sync.Mutex
	history []EventMessage
	pasted  int
	failed  int
	subs    map[*subscriber]struct{}

	upgrader websocket.Upgrader
}

type subscriber struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// NewHub creates a hub.
func NewHub(opts Options, log zerolog.Logger) *Hub {
	if opts.History <= 0 {
		opts.History = defaultHistory
	}
	return &Hub{
		opts:    opts,
		log:     log,
		started: time.Now(),
		subs:    make(map[*subscriber]struct{}),
	}
}

// Notify records ev and broadcasts it. It never blocks; slow subscribers
// lose messages.
func (h *Hub) Notify(ev notify.Event) {
	em := EventMessage{Event: ev}
	if ev.Err != nil {
		em.Error = ev.Err.Error()
	}
	b, err := json.Marshal(message{Type: "event", Event: &em})
	if err != nil {
		h.log.Error().Err(err).Msg("encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	switch ev.Kind {
	case notify.Pasted:
		h.pasted++
	case notify.Error:
		h.failed++
	}
	h.history = append(h.history, em)
	if over := len(h.history) - h.opts.History; over > 0 {
		h.history = append(h.history[:0], h.history[over:]...)
	}
	for s := range h.subs {
		select {
		case s.send <- b:
		default:
			h.log.Debug().Msg("subscriber too slow, dropping event")
		}
	}
}

// Snapshot returns the current status.
func (h *Hub) Snapshot() Snapshot {
	s := Snapshot{
		State:     "unknown",
		Hotkey:    h.opts.Hotkey,
		Provider:  h.opts.Provider,
		StartedAt: h.started,
	}
	if h.opts.State != nil {
		s.State = h.opts.State()
	}
	if h.opts.QueueLen != nil {
		s.QueueLen = h.opts.QueueLen()
	}
	h.mu.Lock()
	s.Pasted = h.pasted
	s.Errors = h.failed
	h.mu.Unlock()
	return s
}

// History returns the recorded events, oldest first.
func (h *Hub) History() []EventMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]EventMessage, len(h.history))
	copy(out, h.history)
	return out
}

// Handler returns the HTTP routes.
func (h *Hub) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/status", h.handleStatus).Methods("GET")
	router.HandleFunc("/api/history", h.handleHistory).Methods("GET")
	router.HandleFunc("/ws/events", h.handleWebSocket)
	return router
}

// Serve listens on addr until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		h.log.Info().Str("addr", addr).Msg("status server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.closeSubscribers()
	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Snapshot())
}

func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.History())
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	s := &subscriber{hub: h, conn: conn, send: make(chan []byte, 256)}

	snap := h.Snapshot()
	hello, _ := json.Marshal(message{Type: "status", Status: &snap})
	s.send <- hello

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go s.writePump()
	go s.readPump()
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()
	if ok {
		s.closeOnce.Do(func() { close(s.send) })
	}
}

func (h *Hub) closeSubscribers() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()
	for s := range subs {
		s.closeOnce.Do(func() { close(s.send) })
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *subscriber) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}
