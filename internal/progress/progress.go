// Package progress streams live slicing progress over a WebSocket so a
// front-end can show layer-by-layer status while a job runs. It trades the
// request/response JSON-RPC shape of a full printer host API for a single
// broadcast channel: clients connect, receive a snapshot, and are pushed an
// update each time the planner finishes a layer.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"fdmtoolpath/pkg/log"
)

var logger = log.GetLogger("progress")

// Snapshot is one point-in-time progress update.
type Snapshot struct {
	Layer          int     `json:"layer"`
	TotalLayers    int     `json:"total_layers"`
	PercentDone    float64 `json:"percent_done"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	EstTotalSecs   float64 `json:"estimated_total_seconds"`
	CurrentOp      string  `json:"current_op,omitempty"`
}

// Broadcaster fans out Snapshot updates to any number of WebSocket
// subscribers. The zero value is not usable; construct with New.
type Broadcaster struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int64]*client
	nextID  int64

	last atomic.Value // holds Snapshot
}

type client struct {
	id     int64
	conn   *websocket.Conn
	sendCh chan Snapshot
	done   chan struct{}
	once   sync.Once
}

// New creates a Broadcaster with no subscribers yet.
func New() *Broadcaster {
	b := &Broadcaster{
		clients: make(map[int64]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	b.last.Store(Snapshot{})
	return b
}

// Handler returns the http.HandlerFunc to mount at the WebSocket endpoint.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return b.handleWebSocket
}

// Publish pushes a new snapshot to every connected client and remembers it
// as the snapshot sent to clients that connect afterward.
func (b *Broadcaster) Publish(s Snapshot) {
	b.last.Store(s)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.clients {
		select {
		case c.sendCh <- s:
		default:
			logger.WithFields(log.Fields{"client_id": c.id, "layer": s.Layer}).Warn("dropping progress update: channel full")
		}
	}
}

// ClientCount reports how many subscribers are currently connected.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	id := atomic.AddInt64(&b.nextID, 1)
	c := &client{
		id:     id,
		conn:   conn,
		sendCh: make(chan Snapshot, 16),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.clients[id] = c
	b.mu.Unlock()

	if snap, ok := b.last.Load().(Snapshot); ok {
		c.sendCh <- snap
	}

	go c.writePump()
	c.readPump(b)
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case snap, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump drains and discards inbound traffic; this feed is one-directional,
// but the read loop is what detects the client disconnecting.
func (c *client) readPump(b *Broadcaster) {
	defer func() {
		b.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (b *Broadcaster) removeClient(c *client) {
	b.mu.Lock()
	delete(b.clients, c.id)
	b.mu.Unlock()
}

// MarshalSnapshot is a convenience used by callers that want to log or test
// the wire form of a Snapshot without standing up a real connection.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}
