package devtools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Target describes one debuggable target as reported by the browser's
// /json/list endpoint.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"` // "page", "iframe", "worker", ...
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo describes the browser as reported by /json/version.
type VersionInfo struct {
	Browser         string `json:"Browser"`          // e.g. "Chrome/126.0.6478.127"
	ProtocolVersion string `json:"Protocol-Version"` // e.g. "1.3"
	UserAgent       string `json:"User-Agent"`
	WebKitVersion   string `json:"WebKit-Version"`
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// ListTargets queries the browser's HTTP endpoint for debuggable targets.
// baseURL is the DevTools root, e.g. "http://localhost:9222".
func ListTargets(baseURL string) ([]Target, error) {
	resp, err := httpClient.Get(strings.TrimRight(baseURL, "/") + "/json/list")
	if err != nil {
		return nil, fmt.Errorf("devtools endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devtools endpoint returned %s", resp.Status)
	}

	var targets []Target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("failed to parse target list: %w", err)
	}
	return targets, nil
}

// Version queries the browser's HTTP endpoint for version information.
func Version(baseURL string) (*VersionInfo, error) {
	resp, err := httpClient.Get(strings.TrimRight(baseURL, "/") + "/json/version")
	if err != nil {
		return nil, fmt.Errorf("devtools endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devtools endpoint returned %s", resp.Status)
	}

	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to parse version info: %w", err)
	}
	return &info, nil
}
