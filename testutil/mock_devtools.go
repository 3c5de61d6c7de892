package testutil

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MockBrowser simulates a Chromium DevTools HTTP endpoint plus per-page CDP
// websockets for testing. It serves /json/version, /json/list, and answers
// Runtime.evaluate calls with registered surface rectangles.
type MockBrowser struct {
	listener net.Listener
	server   *http.Server

	mu              sync.Mutex
	mode            string
	browser         string
	protocolVersion string
	pages           []MockPage
	surfaces        map[string]SurfaceRect
	connected       bool
}

// MockPage is one debuggable page target the mock browser reports.
type MockPage struct {
	ID    string
	Title string
	URL   string
}

// SurfaceRect is the screen rectangle the mock reports for a surface id.
type SurfaceRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// FailureModes define how the mock browser behaves
const (
	ModeNormal     = "normal"     // evaluate resolves registered surfaces
	ModeException  = "exception"  // evaluate throws
	ModeTimeout    = "timeout"    // evaluate never answers in time
	ModeDisconnect = "disconnect" // socket drops after the first request
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewMockBrowser creates a mock browser with a current Chrome version string
// and no pages.
func NewMockBrowser() *MockBrowser {
	return &MockBrowser{
		mode:            ModeNormal,
		browser:         "Chrome/126.0.6478.127",
		protocolVersion: "1.3",
		surfaces:        make(map[string]SurfaceRect),
	}
}

// Start begins listening on a dynamic port
func (m *MockBrowser) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	m.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", m.handleVersion)
	mux.HandleFunc("/json/list", m.handleList)
	mux.HandleFunc("/devtools/page/", m.handleWebSocket)

	m.server = &http.Server{Handler: mux}

	go func() {
		_ = m.server.Serve(m.listener)
	}()

	// Give server time to start
	time.Sleep(50 * time.Millisecond)

	return nil
}

// Stop gracefully shuts down the server
func (m *MockBrowser) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		_ = m.server.Close()
	}

	if m.listener != nil {
		_ = m.listener.Close()
	}

	m.connected = false
	return nil
}

// BaseURL returns the DevTools root URL, e.g. "http://127.0.0.1:53412".
func (m *MockBrowser) BaseURL() string {
	if m.listener == nil {
		return ""
	}
	return "http://" + m.listener.Addr().String()
}

// SetFailureMode configures how the websocket endpoint responds
func (m *MockBrowser) SetFailureMode(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// SetBrowserVersion overrides the /json/version Browser string.
func (m *MockBrowser) SetBrowserVersion(browser, protocolVersion string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.browser = browser
	m.protocolVersion = protocolVersion
}

// AddPage registers a page target reported by /json/list.
func (m *MockBrowser) AddPage(page MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = append(m.pages, page)
}

// SetSurface registers a surface id that Runtime.evaluate resolves to rect.
// Unregistered ids evaluate to null, like a getElementById miss.
func (m *MockBrowser) SetSurface(surfaceID string, rect SurfaceRect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surfaces[surfaceID] = rect
}

// Connected returns whether a CDP client is currently connected
func (m *MockBrowser) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockBrowser) handleVersion(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	info := map[string]string{
		"Browser":          m.browser,
		"Protocol-Version": m.protocolVersion,
		"User-Agent":       "Mozilla/5.0 " + m.browser,
		"WebKit-Version":   "537.36",
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

func (m *MockBrowser) handleList(w http.ResponseWriter, r *http.Request) {
	addr := m.listener.Addr().String()

	m.mu.Lock()
	targets := make([]map[string]string, 0, len(m.pages))
	for _, p := range m.pages {
		targets = append(targets, map[string]string{
			"id":                   p.ID,
			"type":                 "page",
			"title":                p.Title,
			"url":                  p.URL,
			"webSocketDebuggerUrl": fmt.Sprintf("ws://%s/devtools/page/%s", addr, p.ID),
		})
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(targets)
}

// handleWebSocket manages one page's CDP connection
func (m *MockBrowser) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.connected = false
		m.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		m.mu.Lock()
		mode := m.mode
		m.mu.Unlock()

		if mode == ModeTimeout {
			time.Sleep(11 * time.Second) // Longer than the client's 10s timeout
		}

		if mode == ModeDisconnect {
			// Just close the connection
			break
		}

		response := m.generateResponse(msg, mode)
		if response == nil {
			continue
		}

		if err := conn.WriteJSON(response); err != nil {
			break
		}
	}
}

// generateResponse creates a CDP response frame for the request
func (m *MockBrowser) generateResponse(msg map[string]interface{}, mode string) map[string]interface{} {
	id, _ := msg["id"].(float64)
	method, _ := msg["method"].(string)

	if method != "Runtime.evaluate" {
		return map[string]interface{}{
			"id":     int(id),
			"result": map[string]interface{}{},
		}
	}

	if mode == ModeException {
		return map[string]interface{}{
			"id": int(id),
			"result": map[string]interface{}{
				"result":           map[string]interface{}{"type": "undefined"},
				"exceptionDetails": map[string]interface{}{"text": "Uncaught ReferenceError"},
			},
		}
	}

	expression := ""
	if params, ok := msg["params"].(map[string]interface{}); ok {
		expression, _ = params["expression"].(string)
	}

	// Match the evaluated expression against the registered surface ids.
	m.mu.Lock()
	var rect *SurfaceRect
	for surfaceID, r := range m.surfaces {
		if strings.Contains(expression, fmt.Sprintf("getElementById(%q)", surfaceID)) {
			r := r
			rect = &r
			break
		}
	}
	m.mu.Unlock()

	if rect == nil {
		// getElementById miss evaluates to null.
		return map[string]interface{}{
			"id": int(id),
			"result": map[string]interface{}{
				"result": map[string]interface{}{"type": "object", "subtype": "null"},
			},
		}
	}

	return map[string]interface{}{
		"id": int(id),
		"result": map[string]interface{}{
			"result": map[string]interface{}{
				"type":  "object",
				"value": rect,
			},
		},
	}
}
