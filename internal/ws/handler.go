package ws

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// ServeHTTP upgrades an HTTP request to a WebSocket connection, registers a
// Client with the hub, and pumps messages until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := &Client{hub: h, send: make(chan []byte, 32), conn: conn}
	h.register <- client

	if h.stateProvider != nil {
		if snapshot, err := h.stateProvider(); err == nil {
			client.send <- mustWrapFullState(snapshot)
		}
	}

	go client.writePump()
	client.readPump()
}

func mustWrapFullState(payload []byte) []byte {
	msg, err := NewMessage(MsgFullState, rawJSON(payload))
	if err != nil {
		return payload
	}
	return msg
}

type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) { return r, nil }

// readPump drains client-originated frames (none are expected; this is a
// push-only status feed) until the connection closes, unregistering on exit.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	ctx := context.Background()
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump flushes queued broadcast messages to the client.
func (c *Client) writePump() {
	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
}
