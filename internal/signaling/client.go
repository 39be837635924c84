package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB is enough for SDP payloads.
	maxMessageSize = 64 * 1024

	// Outbound buffer per connection. A peer that falls this far behind
	// starts losing envelopes rather than stalling everyone else.
	sendBufferSize = 256
)

// Client wraps one websocket connection. All writes go through the buffered
// send channel so delivery to one peer never blocks on another; ordering per
// connection is preserved by the single channel.
type Client struct {
	id          string
	conn        *websocket.Conn
	coordinator *Coordinator

	send chan Envelope
	done chan struct{}
	once sync.Once
}

func newClient(id string, conn *websocket.Conn, coordinator *Coordinator) *Client {
	return &Client{
		id:          id,
		conn:        conn,
		coordinator: coordinator,
		send:        make(chan Envelope, sendBufferSize),
		done:        make(chan struct{}),
	}
}

// Send enqueues an envelope for delivery. Returns false if the connection is
// gone or its buffer is full; never blocks.
func (c *Client) Send(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// close tears the connection down exactly once, regardless of how many paths
// (read error, write error, ping failure) report the transport closed.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
		c.coordinator.Disconnect(c.id)
	})
}

// readPump relays every inbound frame to the coordinator tagged with this
// client's identity. It is the only reader on the connection.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("clientId", c.id).Msg("websocket read error")
			}
			return
		}

		c.coordinator.HandleRaw(c.id, data)
	}
}

// writePump drains the send channel onto the connection and keeps the peer
// alive with periodic pings. It is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				log.Debug().Err(err).Str("clientId", c.id).Msg("websocket write error")
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
