package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client subscribes to a Hub over websocket.
type Client struct {
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// Dial connects to a hub endpoint (ws:// or wss://). A non-empty runID limits
// events to that run.
func Dial(ctx context.Context, endpoint, runID string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse progress endpoint: %w", err)
	}
	if runID != "" {
		q := u.Query()
		q.Set("run_id", runID)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// Events returns the event stream. It is closed when the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close closes the connection and waits for the reader to stop.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	c.wg.Wait()
	return err
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.events)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var e Event
		if err := json.Unmarshal(msg, &e); err != nil {
			continue
		}
		select {
		case c.events <- e:
		case <-c.done:
			return
		}
	}
}
