package websocket

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"remote-finder/internal/remote"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	maxDimension   = 500
	readChunk      = 32 * 1024
)

// Client bridges one WebSocket connection to one remote shell stream.
type Client struct {
	ID        uuid.UUID
	SessionID uuid.UUID

	hub   *Hub
	conn  *websocket.Conn
	shell remote.Shell
	send  chan []byte
	done  chan struct{}

	onActivity func()
	onClose    func()

	closeOnce sync.Once
}

type ClientOptions struct {
	// ID names the bridge; a random one is used when nil.
	ID uuid.UUID
	// OnActivity runs for every message received from the browser.
	OnActivity func()
	// OnClose runs once when the bridge shuts down.
	OnClose func()
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID uuid.UUID, shell remote.Shell, opts ClientOptions) *Client {
	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Client{
		ID:         id,
		SessionID:  sessionID,
		hub:        hub,
		conn:       conn,
		shell:      shell,
		send:       make(chan []byte, 256),
		done:       make(chan struct{}),
		onActivity: opts.OnActivity,
		onClose:    opts.OnClose,
	}
}

// Start launches the three pumps.
func (c *Client) Start() {
	go c.WritePump()
	go c.ShellPump()
	go c.ReadPump()
}

// Close stops the bridge and closes only its own shell stream. Safe to call
// from any goroutine, any number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.shell.Close(); err != nil {
			log.Printf("[terminal] WARN: bridge %s: closing shell: %v", c.ID, err)
		}
		if c.onClose != nil {
			c.onClose()
		}
	})
}

// enqueue blocks until the writer accepts msg or the bridge is closed.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	}
}

// ShellPump forwards shell output to the browser until the shell ends.
func (c *Client) ShellPump() {
	defer c.Close()

	buf := make([]byte, readChunk)
	var pending []byte
	for {
		n, err := c.shell.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			complete, tail := splitUTF8(pending)
			if len(complete) > 0 && !c.enqueue(encode(MessageOutput, string(complete))) {
				return
			}
			pending = append([]byte(nil), tail...)
		}
		if err != nil {
			if len(pending) > 0 {
				c.enqueue(encode(MessageOutput, string(pending)))
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				select {
				case <-c.done:
				default:
					c.enqueue(encode(MessageError, err.Error()))
				}
			}
			return
		}
	}
}

// ReadPump applies browser messages to the shell until the socket closes.
func (c *Client) ReadPump() {
	defer func() {
		c.Close()
		c.hub.Detach(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if c.onActivity != nil {
			c.onActivity()
		}

		switch msg.Type {
		case MessageInput:
			if _, err := c.shell.Write([]byte(msg.Data)); err != nil {
				log.Printf("[terminal] bridge %s: write to shell: %v", c.ID, err)
				return
			}
		case MessageResize:
			if msg.Rows <= 0 || msg.Cols <= 0 {
				continue
			}
			if err := c.shell.Resize(min(msg.Rows, maxDimension), min(msg.Cols, maxDimension)); err != nil {
				log.Printf("[terminal] bridge %s: resize: %v", c.ID, err)
			}
		}
	}
}

// WritePump owns every write to the socket. After the bridge closes it
// flushes queued messages and sends a close frame.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for {
		select {
		case message := <-c.send:
			if !c.write(message) {
				c.Close()
				return
			}
		case <-c.done:
			for {
				select {
				case message := <-c.send:
					if !c.write(message) {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *Client) write(message []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message) == nil
}

// Reject completes the upgrade only to refuse the terminal with a policy
// violation close frame.
func Reject(conn *websocket.Conn, reason string) {
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
}

// Fail reports an attach failure in-band, then closes the socket.
func Fail(conn *websocket.Conn, err error) {
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if conn.WriteMessage(websocket.TextMessage, encode(MessageError, err.Error())) != nil {
		return
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
}
