package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 20
)

var (
	errNotJoined     = errors.New("not joined to a document")
	errAlreadyJoined = errors.New("already joined a document")
	errEmptyBatch    = errors.New("batch without operations")
	errBatchVersions = errors.New("batch operations are not consecutive")
)

// Client is one editor connected over a WebSocket. Batches it reads are
// checked before they reach the session.
type Client struct {
	ID    string
	Name  string
	Color string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// The session this client is currently in (nil if not joined).
	mu      sync.Mutex
	session *Session
}

var (
	adjectives = []string{"Red", "Blue", "Green", "Gold", "Silver", "Purple", "Orange", "Teal", "Coral", "Jade"}
	animals    = []string{"Fox", "Owl", "Bear", "Wolf", "Hawk", "Deer", "Lynx", "Crow", "Dove", "Seal"}
	colors     = []string{"#e74c3c", "#3498db", "#2ecc71", "#f39c12", "#9b59b6", "#1abc9c", "#e67e22", "#00bcd4", "#ff5722", "#8bc34a"}
)

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	name, color := randomIdentity()
	return &Client{
		ID:    uuid.NewString(),
		Name:  name,
		Color: color,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, 256),
	}
}

// randomIdentity picks the display name and cursor color shown to peers.
func randomIdentity() (name, color string) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	name = adjectives[r.Intn(len(adjectives))] + " " + animals[r.Intn(len(animals))]
	return name, colors[r.Intn(len(colors))]
}

// ReadPump reads messages from the WebSocket until it fails, then leaves the
// session. A rejected message is answered with an error and the connection
// stays open.
func (c *Client) ReadPump() {
	defer func() {
		if s := c.currentSession(); s != nil {
			s.leave <- c
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("client %s read error: %v", c.ID, err)
			}
			return
		}
		if err := c.handleMessage(data); err != nil {
			c.sendError(err.Error())
		}
	}
}

func (c *Client) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// handleMessage decodes one client message and routes it to the hub or the
// session.
func (c *Client) handleMessage(data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("invalid message format: %w", err)
	}

	switch msg.Type {
	case MsgJoin:
		if c.currentSession() != nil {
			return errAlreadyJoined
		}
		c.hub.joinDoc <- joinRequest{client: c, docID: msg.DocID}
	case MsgOp:
		s := c.currentSession()
		if s == nil {
			return errNotJoined
		}
		if err := checkBatch(msg); err != nil {
			return err
		}
		s.incoming <- opMessage{client: c, msg: msg}
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
	return nil
}

// checkBatch accepts a batch of at least one operation whose base versions
// run on from msg.Revision without gaps.
func checkBatch(msg ClientMessage) error {
	if len(msg.Ops) == 0 {
		return errEmptyBatch
	}
	if msg.Revision < 0 {
		return fmt.Errorf("batch at revision %d: %w", msg.Revision, errBatchVersions)
	}
	for i, op := range msg.Ops {
		if want := msg.Revision + i; op.BaseVersion() != want {
			return fmt.Errorf("operation %d based on v%d, want v%d: %w", i, op.BaseVersion(), want, errBatchVersions)
		}
	}
	return nil
}

// WritePump forwards queued messages to the WebSocket and pings the peer.
// A closed send channel ends the connection with a close frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var err error
		select {
		case data, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			err = c.write(websocket.TextMessage, data)
		case <-ticker.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) sendMsg(msg ServerMessage) {
	select {
	case c.send <- msg.Encode():
	default:
		log.Printf("client %s: send buffer full, dropping %s", c.ID, msg.Type)
	}
}

func (c *Client) sendError(message string) {
	c.sendMsg(ServerMessage{Type: MsgError, Message: message})
}

func (c *Client) Info() ClientInfo {
	return ClientInfo{ID: c.ID, Name: c.Name, Color: c.Color}
}
