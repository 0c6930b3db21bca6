package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// LiveReloadPath is the event-stream endpoint mounted on the dev server.
const LiveReloadPath = "/__wasmrun/livereload"

// ErrorPrefix marks a broadcast that reports a failed rebuild.
const ErrorPrefix = "error:"

// LiveReloadScript reloads the page when the server announces a new build id.
// Ids prefixed with "error:" report a failed rebuild and keep the page.
const LiveReloadScript = `(() => {
  if (window.__WASMRUN_LR__) return;
  window.__WASMRUN_LR__ = true;
  let current = null;
  function connect() {
    const es = new EventSource("` + LiveReloadPath + `");
    es.onmessage = (e) => {
      const id = e.data;
      if (id.startsWith("` + ErrorPrefix + `")) { console.warn("[wasmrun] rebuild failed"); return; }
      if (current === null) { current = id; return; }
      if (id !== current) { location.reload(); }
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`

// LiveReloadHub fans build ids out to connected browsers over server-sent events.
type LiveReloadHub struct {
	mu      sync.Mutex
	nextID  int
	clients map[int]chan string
	last    string // newest successful build id, sent to new clients
	sent    string
	closed  bool
	done    chan struct{}

	heartbeat time.Duration
}

// NewLiveReloadHub creates an empty hub.
func NewLiveReloadHub() *LiveReloadHub {
	return &LiveReloadHub{clients: map[int]chan string{}, done: make(chan struct{}), heartbeat: 30 * time.Second}
}

// Clients returns the number of connected clients.
func (h *LiveReloadHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	id := h.nextID
	h.nextID++
	ch := make(chan string, 8)
	h.clients[id] = ch
	current := h.last
	h.mu.Unlock()
	defer h.remove(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("livereload write", "error", err)
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(": connected\n\n") {
		return
	}
	if current != "" && !send(fmt.Sprintf("data: %s\n\n", current)) {
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case msg, ok := <-ch:
			if !ok || !send(fmt.Sprintf("data: %s\n\n", msg)) {
				return
			}
		}
	}
}

func (h *LiveReloadHub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Broadcast sends id to every client. Clients that cannot keep up are dropped.
// The first broadcast, usually the initial build, is the baseline new clients
// compare against.
func (h *LiveReloadHub) Broadcast(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || id == "" || id == h.sent {
		return
	}
	h.sent = id
	if !strings.HasPrefix(id, ErrorPrefix) {
		h.last = id
	}
	dropped := 0
	for cid, ch := range h.clients {
		select {
		case ch <- id:
		default:
			delete(h.clients, cid)
			close(ch)
			dropped++
		}
	}
	slog.Debug("livereload broadcast", "id", id, "clients", len(h.clients), "dropped", dropped)
}

// Shutdown disconnects all clients and rejects new ones.
func (h *LiveReloadHub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}
