// Package devtools implements a minimal Chrome DevTools Protocol client over
// a websocket connection to a single page target. It carries just enough of
// the protocol to resolve the render surface; it is not a general CDP binding.
package devtools

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koji/shadertoyrec/internal/diaglog"
)

// Client represents a DevTools Protocol connection to one page target.
type Client struct {
	url         string
	conn        *websocket.Conn
	mu          sync.RWMutex
	connected   bool
	requestID   int
	requestIDMu sync.Mutex // guards requestID increment
	responses   map[int]chan *response
	responseMu  sync.RWMutex

	logger   *diaglog.Logger
	loggerMu sync.RWMutex

	// Event handlers
	onDisconnected func()

	stopChan chan struct{}
}

// message is a CDP frame: requests and responses carry an id, events a method.
type message struct {
	ID     int             `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *cdpError       `json:"error,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	Result json.RawMessage
	Err    *cdpError
}

// NewClient creates a DevTools client for the given page websocket URL
// (the webSocketDebuggerUrl of a target).
func NewClient(url string) *Client {
	return &Client{
		url:       url,
		responses: make(map[int]chan *response),
		stopChan:  make(chan struct{}),
	}
}

// SetLogger injects a structured diagnostic logger.
func (c *Client) SetLogger(l *diaglog.Logger) {
	c.loggerMu.Lock()
	c.logger = l
	c.loggerMu.Unlock()
}

// OnDisconnected registers a callback fired when the page connection drops.
// Navigation away from the page closes the target socket; there is no
// recovery path, the caller must re-discover targets.
func (c *Client) OnDisconnected(fn func()) {
	c.onDisconnected = fn
}

func (c *Client) log(entry diaglog.LogEntry) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if entry.Component == "" {
		entry.Component = diaglog.ComponentDevToolsClient
	}
	l.Log(entry)
}

// Connect establishes the websocket connection and starts the reader.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.log(diaglog.LogEntry{
		Event:   diaglog.EventWSConnect,
		Payload: map[string]interface{}{"url": c.url},
	})

	go c.readMessages()
	return nil
}

// IsConnected reports whether the websocket is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readMessages continuously reads and dispatches websocket messages.
func (c *Client) readMessages() {
	defer c.disconnect()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		var msg message
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		if err := conn.ReadJSON(&msg); err != nil {
			if c.onDisconnected != nil {
				c.onDisconnected()
			}
			return
		}

		if msg.ID != 0 {
			c.handleResponse(&msg)
			continue
		}

		// Events are logged for diagnostics but otherwise ignored; the
		// recorder drives the page, it does not react to it.
		c.log(diaglog.LogEntry{
			Event:   diaglog.EventWSRecv,
			Payload: map[string]interface{}{"method": msg.Method},
		})
	}
}

// handleResponse routes responses to waiting request channels.
func (c *Client) handleResponse(msg *message) {
	c.responseMu.RLock()
	defer c.responseMu.RUnlock()

	if ch, ok := c.responses[msg.ID]; ok {
		ch <- &response{Result: msg.Result, Err: msg.Error}
	}
}

// Call sends a CDP request and waits for the matching response.
func (c *Client) Call(method string, params interface{}) (json.RawMessage, error) {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return nil, fmt.Errorf("not connected")
	}
	c.mu.RUnlock()

	c.requestIDMu.Lock()
	c.requestID++
	id := c.requestID
	c.requestIDMu.Unlock()

	msg := message{ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		msg.Params = raw
	}

	c.log(diaglog.LogEntry{
		Event:   diaglog.EventWSSend,
		Payload: map[string]interface{}{"method": method, "request_id": id},
	})

	respChan := make(chan *response, 1)
	c.responseMu.Lock()
	c.responses[id] = respChan
	c.responseMu.Unlock()

	defer func() {
		c.responseMu.Lock()
		delete(c.responses, id)
		c.responseMu.Unlock()
	}()

	c.mu.RLock()
	err := c.conn.WriteJSON(msg)
	c.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	select {
	case resp := <-respChan:
		if resp.Err != nil {
			return nil, fmt.Errorf("request failed: %s (method: %s, code: %d)",
				resp.Err.Message, method, resp.Err.Code)
		}
		return resp.Result, nil
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("request timeout after 10s (method: %s)", method)
	}
}

// disconnect closes the websocket connection.
func (c *Client) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.log(diaglog.LogEntry{
			Event:   diaglog.EventWSDisconnect,
			Payload: map[string]interface{}{"url": c.url},
		})
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// Disconnect gracefully closes the connection and stops the reader.
func (c *Client) Disconnect() {
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}
	c.disconnect()
}
