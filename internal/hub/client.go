package hub

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"log"
	"time"

	"nhooyr.io/websocket"

	"github.com/user/devdash/internal/term"
)

type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		id:   generateID(),
		conn: conn,
		send: make(chan []byte, 256),
		hub:  hub,
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(32768)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Printf("client %s read error: %v", c.id, err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("client %s invalid message: %v", c.id, err)
			c.hub.sendError(c, "invalid message format")
			continue
		}

		switch msg.Type {
		case "term_open":
			c.handleOpen(msg)
		case "term_input":
			if msg.SessionID != "" && msg.Data != "" {
				if !c.hub.terminals.Write(msg.SessionID, msg.Data) {
					c.hub.sendError(c, "unknown session: "+msg.SessionID)
				}
			}
		case "term_resize":
			if msg.SessionID != "" && msg.Cols > 0 && msg.Rows > 0 {
				c.hub.terminals.Resize(msg.SessionID, msg.Cols, msg.Rows)
			}
		case "term_close":
			if msg.SessionID != "" {
				c.hub.terminals.Kill(msg.SessionID)
			}
		default:
			c.hub.sendError(c, "unknown message type: "+msg.Type)
		}
	}
}

// handleOpen spawns a session and replies to the requesting client only;
// other clients learn about the session from subsequent output events.
func (c *Client) handleOpen(msg ClientMessage) {
	result := c.hub.terminals.Create(term.CreateRequest{
		ID:      msg.SessionID,
		WorkDir: msg.WorkDir,
		Cols:    msg.Cols,
		Rows:    msg.Rows,
		Command: msg.Command,
	})

	data, err := json.Marshal(TermOpenedMessage{Type: "term_opened", Result: result})
	if err != nil {
		log.Printf("error marshaling term_opened: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("client %s send buffer full, dropping term_opened", c.id)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			err := c.conn.Ping(ctx)
			if err != nil {
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			err := c.conn.Write(ctx, websocket.MessageText, msg)
			if err != nil {
				return
			}
		}
	}
}

func generateID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(6)
}

func randomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	rand.Read(b)
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b)
}
