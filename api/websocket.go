package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rp6502-attest/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// TraceEvent is one line of session traffic as broadcast to monitors.
type TraceEvent struct {
	Time      string `json:"time"`
	Direction string `json:"direction"` // ">>>" or "<<<"
	Text      string `json:"text"`
	Label     string `json:"label,omitempty"` // observational classification
}

// historyCap bounds how many events are replayed to a late-joining monitor.
const historyCap = 512

// Hub broadcasts trace events to every connected WebSocket client. A monitor
// that connects mid-session (or after it) gets the buffered history first,
// so short sessions are still visible.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	history []TraceEvent
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// Serve starts the monitor HTTP server on addr. It never returns; run it in
// a goroutine.
func (h *Hub) Serve(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Println("trace monitor:", err)
	}
}

// ServeWS upgrades the connection, replays history, and holds the client
// until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	h.mu.Lock()
	for _, ev := range h.history {
		conn.WriteJSON(ev)
	}
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop exists only to detect disconnect; monitors never send.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast records a trace line and pushes it to all connected monitors.
func (h *Hub) Broadcast(direction, text string) {
	ev := TraceEvent{
		Time:      time.Now().Format(time.RFC3339Nano),
		Direction: direction,
		Text:      text,
	}
	if direction == "<<<" {
		ev.Label = protocol.Classify(text)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, ev)
	if len(h.history) > historyCap {
		h.history = h.history[len(h.history)-historyCap:]
	}

	for conn := range h.clients {
		if err := conn.WriteJSON(ev); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
