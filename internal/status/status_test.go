package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"talkpaste/internal/notify"
)

func newTestHub(history int) *Hub {
	return NewHub(Options{
		History:  history,
		Hotkey:   "ctrl_r+alt_gr",
		Provider: "openai",
		State:    func() string { return "idle" },
		QueueLen: func() int { return 2 },
	}, zerolog.Nop())
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestStatusAndHistory(t *testing.T) {
	hub := newTestHub(2)
	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	hub.Notify(notify.New(notify.Started, "s1"))
	ev := notify.New(notify.Error, "s1")
	ev.Err = errors.New("rate limited")
	hub.Notify(ev)
	pasted := notify.New(notify.Pasted, "s2")
	pasted.Text = "hello world"
	hub.Notify(pasted)

	var snap Snapshot
	getJSON(t, server.URL+"/api/status", &snap)
	if snap.State != "idle" || snap.QueueLen != 2 || snap.Pasted != 1 || snap.Errors != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Hotkey != "ctrl_r+alt_gr" {
		t.Fatalf("hotkey = %q", snap.Hotkey)
	}

	var history []EventMessage
	getJSON(t, server.URL+"/api/history", &history)
	if len(history) != 2 {
		t.Fatalf("history len = %d, want ring of 2", len(history))
	}
	if history[0].Kind != notify.Error || history[0].Error != "rate limited" {
		t.Fatalf("history[0] = %+v", history[0])
	}
	if history[1].Text != "hello world" {
		t.Fatalf("history[1] = %+v", history[1])
	}
}

func TestStatusRejectsPost(t *testing.T) {
	server := httptest.NewServer(newTestHub(0).Handler())
	defer server.Close()
	resp, err := http.Post(server.URL+"/api/status", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestWebSocketReceivesEvents(t *testing.T) {
	hub := newTestHub(0)
	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello message
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != "status" || hello.Status == nil || hello.Status.State != "idle" {
		t.Fatalf("hello = %+v", hello)
	}

	ev := notify.New(notify.Pasted, "s9")
	ev.Text = "dictated"
	hub.Notify(ev)

	var got message
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.Type != "event" || got.Event == nil || got.Event.SessionID != "s9" || got.Event.Text != "dictated" {
		t.Fatalf("event = %+v", got)
	}
}
