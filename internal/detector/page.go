package detector

import (
	"strings"
	"time"

	"github.com/koji/shadertoyrec/internal/config"
	"github.com/koji/shadertoyrec/internal/devtools"
)

// TargetLister abstracts devtools.ListTargets for testing.
type TargetLister func(baseURL string) ([]devtools.Target, error)

// PageDetector scans browser targets for pages matching the configured rules.
type PageDetector struct {
	baseURL string
	rules   []config.PageRule
	list    TargetLister
}

// NewPageDetector creates a detector polling the given DevTools endpoint.
func NewPageDetector(cfg *config.RecorderConfig) *PageDetector {
	return &PageDetector{
		baseURL: cfg.DevToolsURL,
		rules:   cfg.Rules,
		list:    devtools.ListTargets,
	}
}

// Name returns the detector identifier.
func (d *PageDetector) Name() string {
	return "page"
}

// Detect lists browser targets and returns the first page matching an enabled
// rule. Rules are evaluated in configuration order; within a rule, targets are
// evaluated in the order the browser reports them (front-most first).
func (d *PageDetector) Detect() (*DetectionState, error) {
	result := &DetectionState{
		PageDetected: false,
		EvaluatedAt:  time.Now(),
	}

	targets, err := d.list(d.baseURL)
	if err != nil {
		return nil, err
	}

	for _, rule := range d.rules {
		if !rule.Enabled {
			continue
		}
		for _, t := range targets {
			if t.Type != "page" {
				continue
			}
			if !matchesHints(t.URL, rule.URLHints) {
				continue
			}
			result.PageDetected = true
			result.RuleName = rule.Name
			result.SurfaceID = rule.SurfaceID
			result.TargetURL = t.URL
			result.TargetTitle = t.Title
			result.SocketURL = t.WebSocketDebuggerURL
			return result, nil
		}
	}

	return result, nil
}

// matchesHints reports whether url contains any of the hint substrings.
// An empty hint list never matches; a rule must be explicit about its pages.
func matchesHints(url string, hints []string) bool {
	for _, h := range hints {
		if h != "" && strings.Contains(url, h) {
			return true
		}
	}
	return false
}

// DetectPage is a convenience function that creates a page detector and runs
// one detection pass.
func DetectPage(cfg *config.RecorderConfig) (*DetectionState, error) {
	return NewPageDetector(cfg).Detect()
}
