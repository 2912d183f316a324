// Package progress streams walk-forward progress to websocket subscribers.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"hypothesis-lab/internal/domain"
	"hypothesis-lab/internal/walkforward"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 64
)

// Event types.
const (
	TypePeriodStarted   = "period_started"
	TypePeriodCompleted = "period_completed"
	TypeRunCompleted    = "run_completed"
)

// Event is one progress message.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Period    int       `json:"period,omitempty"`
	Total     int       `json:"total"`
	TestStart string    `json:"test_start,omitempty"`
	TestEnd   string    `json:"test_end,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// run_completed only
	StrategyID        string `json:"strategy_id,omitempty"`
	SuccessfulPeriods int    `json:"successful_periods,omitempty"`
	Cancelled         bool   `json:"cancelled,omitempty"`
}

type subscriber struct {
	conn  *websocket.Conn
	runID string // empty receives every run
	send  chan []byte
}

// Hub fans walk-forward events out to websocket subscribers.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*subscriber]struct{}
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
	clock    func() time.Time
}

// Compile-time interface check.
var _ walkforward.Observer = (*Hub)(nil)

// NewHub creates a new Hub.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		clients: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:   log.WithField("component", "progress.hub"),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// PeriodStarted implements walkforward.Observer.
func (h *Hub) PeriodStarted(runID string, p domain.WalkForwardPeriod, total int) {
	h.Broadcast(Event{
		Type:      TypePeriodStarted,
		RunID:     runID,
		Period:    p.Index,
		Total:     total,
		TestStart: p.Test.StartDate(),
		TestEnd:   p.Test.EndDate(),
	})
}

// PeriodCompleted implements walkforward.Observer.
func (h *Hub) PeriodCompleted(runID string, p domain.WalkForwardPeriod, total int) {
	h.Broadcast(Event{
		Type:      TypePeriodCompleted,
		RunID:     runID,
		Period:    p.Index,
		Total:     total,
		TestStart: p.Test.StartDate(),
		TestEnd:   p.Test.EndDate(),
		Success:   p.Success,
		Error:     p.Error,
	})
}

// RunCompleted implements walkforward.Observer.
func (h *Hub) RunCompleted(r *domain.WalkForwardResult) {
	h.Broadcast(Event{
		Type:              TypeRunCompleted,
		RunID:             r.RunID,
		StrategyID:        r.StrategyID,
		Total:             r.TotalPeriods,
		SuccessfulPeriods: r.SuccessfulPeriods,
		Cancelled:         r.Cancelled,
		Success:           r.Success,
		Error:             r.Error,
	})
}

// Broadcast sends e to every matching subscriber. Subscribers whose buffer
// is full are disconnected rather than blocking the run.
func (h *Hub) Broadcast(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = h.clock()
	}
	msg, err := json.Marshal(e)
	if err != nil {
		h.log.WithError(err).Error("marshal progress event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.runID != "" && c.runID != e.RunID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.WithField("remote_addr", c.conn.RemoteAddr().String()).Warn("slow subscriber dropped")
			h.removeLocked(c)
		}
	}
}

// ServeHTTP upgrades the request to a websocket subscription.
// The optional run_id query parameter limits events to one run.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &subscriber{
		conn:  conn,
		runID: r.URL.Query().Get("run_id"),
		send:  make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{
		"remote_addr": conn.RemoteAddr().String(),
		"run_id":      c.runID,
		"clients":     count,
	}).Info("subscriber connected")

	go h.writePump(c)
	go h.readPump(c)
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes c's send channel once; writePump then closes the socket.
func (h *Hub) removeLocked(c *subscriber) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// readPump discards inbound messages and keeps the read deadline fresh.
func (h *Hub) readPump(c *subscriber) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Debug("subscriber closed unexpectedly")
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (h *Hub) writePump(c *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
