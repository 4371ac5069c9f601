package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/events"
	"github.com/pliu/dmchat/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errInboundKind = errors.New("event kind is not accepted from clients")

// Client is one websocket connection. An empty userID marks an anonymous
// connection, which is never entered into presence and receives nothing.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	logger logging.Logger
}

// readPump pumps events from the websocket connection to the inbound handler.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(context.Background(), "Websocket read failed", "error", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	ctx := context.Background()
	if c.userID == "" {
		return
	}

	ev, payload, err := events.Parse(raw)
	if err == nil && !ev.Type.Inbound() {
		err = common.Validationf("%s: %s", errInboundKind, ev.Type)
	}
	if err != nil {
		c.logger.Debug(ctx, "Rejected inbound event", "error", err)
		c.replyError(err)
		return
	}
	if c.hub.inbound == nil {
		return
	}
	if err := c.hub.inbound.HandleInbound(ctx, c.userID, payload); err != nil {
		c.logger.Info(ctx, "Inbound event failed", "type", ev.Type, "error", err)
		c.replyError(err)
	}
}

// replyError tells only this connection why its event failed.
func (c *Client) replyError(err error) {
	ev, buildErr := events.New(&events.Error{Message: err.Error(), Code: common.Code(err)})
	if buildErr != nil {
		return
	}
	c.hub.enqueue([]*Client{c}, ev)
}

// writePump pumps events from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// ServeWs upgrades the request and registers the connection for userID.
// An empty userID yields an anonymous connection.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn(r.Context(), "Websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		logger: hub.logger.With("user_id", userID),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
