package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/user/devdash/internal/term"
)

const defaultBatchInterval = 50 * time.Millisecond

// Terminals is the part of the session manager the hub drives on behalf
// of websocket clients.
type Terminals interface {
	Create(req term.CreateRequest) term.CreateResult
	Write(id, data string) bool
	Resize(id string, cols, rows int) bool
	Kill(id string) bool
}

// Hub fans terminal output and daemon events out to websocket clients
// and routes client keystrokes back into the session manager.
type Hub struct {
	terminals  Terminals
	token      string
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	batcher    *outputBatcher
	mu         sync.RWMutex
	ctxWrap    atomic.Pointer[context.Context]
	running    atomic.Bool
}

func New(token string, terminals Terminals) *Hub {
	h := &Hub{
		terminals:  terminals,
		token:      token,
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 256),
	}
	h.batcher = newOutputBatcher(defaultBatchInterval, func(msg TermDataMessage) {
		h.sendBroadcast(msg)
	})
	background := context.Background()
	h.ctxWrap.Store(&background)
	return h
}

func (h *Hub) getContext() context.Context {
	if ctx := h.ctxWrap.Load(); ctx != nil {
		return *ctx
	}
	return context.Background()
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.ctxWrap.Store(&ctx)
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.batcher.FlushAll()
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			go client.writePump(h.getContext())
			go client.readPump(h.getContext())
			log.Printf("client connected: %s (total: %d)", client.id, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("client disconnected: %s (total: %d)", client.id, h.ClientCount())

		case data := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- data:
				default:
					log.Printf("client %s send buffer full, dropping message", c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ForwardTerminalEvents drains a session manager subscription into the
// hub until the channel closes, batching data chunks per session.
func (h *Hub) ForwardTerminalEvents(events <-chan term.Event) {
	for ev := range events {
		switch ev.Type {
		case term.EventData:
			h.batcher.Add(ev.SessionID, ev.Data)
		case term.EventExit:
			h.batcher.Flush(ev.SessionID)
			h.sendBroadcast(TermExitMessage{
				Type:      "term_exit",
				SessionID: ev.SessionID,
				ExitCode:  ev.ExitCode,
				Signal:    ev.Signal,
			})
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || token != h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("websocket accept error: %v", err)
		return
	}

	client := newClient(conn, h)
	select {
	case h.register <- client:
	default:
		log.Printf("hub not accepting connections")
		conn.Close(websocket.StatusTryAgainLater, "server busy")
	}
}

// BroadcastAppStatus pushes a managed app status transition to all clients.
func (h *Hub) BroadcastAppStatus(projectID, runID, status string, pid, exitCode int) {
	h.sendBroadcast(AppStatusMessage{
		Type:      "app_status",
		ProjectID: projectID,
		RunID:     runID,
		Status:    status,
		PID:       pid,
		ExitCode:  exitCode,
	})
}

// BroadcastProgress pushes bulk port-assignment progress.
func (h *Hub) BroadcastProgress(current, total, percent int) {
	h.sendBroadcast(ProgressMessage{
		Type:    "ports_progress",
		Current: current,
		Total:   total,
		Percent: percent,
	})
}

// BroadcastHealth pushes a host metrics snapshot.
func (h *Hub) BroadcastHealth(snapshot any) {
	h.sendBroadcast(HealthMessage{Type: "health", Snapshot: snapshot})
}

func (h *Hub) sendBroadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error marshaling message: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("broadcast channel full, dropping message")
	}
}

func (h *Hub) sendError(client *Client, message string) {
	data, err := json.Marshal(ErrorMessage{Type: "error", Message: message})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) isRunning() bool {
	return h.running.Load()
}

func (h *Hub) unregisterClient(c *Client) {
	if !h.isRunning() {
		c.conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	select {
	case h.unregister <- c:
	default:
		log.Printf("unregister channel full for client %s, forcing close", c.id)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
}
