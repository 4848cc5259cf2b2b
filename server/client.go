package main

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"quizgrid/protocol"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
)

// Client is the server-side session for one WebSocket connection. The
// read pump never blocks on outbound delivery: sends go through a
// buffered channel drained by the write pump, so a slow client cannot
// stall world processing for others.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	playerID   string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 0xFF prefix marks a binary frame (see SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
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

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with a 0xFF marker byte so WritePump can distinguish it from
// text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages by their type field. Malformed
// frames are dropped without closing the connection.
func (c *Client) handleMessage(raw []byte) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case protocol.MsgReady:
		c.handleReady(env.D)
	case protocol.MsgMove:
		c.handleMove(env.D)
	case protocol.MsgClaim:
		c.handleClaim(env.D)
	case protocol.MsgAnswer:
		c.handleAnswer(env.D)
	case protocol.MsgLeave:
		c.conn.Close()
	}
}

func (c *Client) handleReady(data json.RawMessage) {
	var msg protocol.ReadyMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.game.HandleReady(c.playerID, msg.Ready)
}

func (c *Client) handleMove(data json.RawMessage) {
	var msg protocol.MoveMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.game.HandleMove(c.playerID, msg.Direction)
}

func (c *Client) handleClaim(data json.RawMessage) {
	var msg protocol.ClaimMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.game.HandleClaim(c.playerID, msg.MicID)
}

func (c *Client) handleAnswer(data json.RawMessage) {
	var msg protocol.AnswerMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.game.HandleAnswer(c.playerID, msg)
}
