package devtools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/koji/shadertoyrec/internal/diaglog"
)

// ErrSurfaceNotFound is returned when the page has no drawable element with
// the requested id. Fatal and visible to the caller; no retry.
var ErrSurfaceNotFound = errors.New("render surface not found on page")

// Rect is the render surface's position and size in physical screen pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// surfaceExpr locates the element and converts its viewport rect to screen
// coordinates. The window chrome offset is approximated from outer/inner
// window deltas (borders split evenly, remaining height assigned to the top
// bar), which holds for stock Chromium window decorations.
const surfaceExpr = `(() => {
  const el = document.getElementById(%q);
  if (!el) return null;
  const r = el.getBoundingClientRect();
  const dpr = window.devicePixelRatio || 1;
  const borderX = (window.outerWidth - window.innerWidth) / 2;
  const chromeY = (window.outerHeight - window.innerHeight) - borderX;
  return {
    x: Math.round((window.screenX + borderX + r.left) * dpr),
    y: Math.round((window.screenY + chromeY + r.top) * dpr),
    w: Math.round(r.width * dpr),
    h: Math.round(r.height * dpr),
  };
})()`

type evaluateResult struct {
	Result struct {
		Type    string          `json:"type"`
		Subtype string          `json:"subtype"`
		Value   json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails"`
}

// ResolveSurface resolves surfaceID against the page's drawable elements and
// returns its on-screen rectangle. A missing element yields ErrSurfaceNotFound.
func (c *Client) ResolveSurface(surfaceID string) (Rect, error) {
	params := map[string]interface{}{
		"expression":    fmt.Sprintf(surfaceExpr, surfaceID),
		"returnByValue": true,
	}

	raw, err := c.Call("Runtime.evaluate", params)
	if err != nil {
		return Rect{}, fmt.Errorf("surface evaluation failed: %w", err)
	}

	var res evaluateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return Rect{}, fmt.Errorf("failed to parse evaluation result: %w", err)
	}
	if res.ExceptionDetails != nil {
		return Rect{}, fmt.Errorf("surface evaluation threw: %s", res.ExceptionDetails.Text)
	}

	// getElementById miss evaluates to null.
	if res.Result.Subtype == "null" || res.Result.Type == "undefined" {
		c.log(diaglog.LogEntry{
			Event:   diaglog.EventSurfaceNotFound,
			Payload: map[string]interface{}{"surface_id": surfaceID},
		})
		return Rect{}, fmt.Errorf("%w: #%s", ErrSurfaceNotFound, surfaceID)
	}

	var rect Rect
	if err := json.Unmarshal(res.Result.Value, &rect); err != nil {
		return Rect{}, fmt.Errorf("failed to parse surface rect: %w", err)
	}
	if rect.Width <= 0 || rect.Height <= 0 {
		return Rect{}, fmt.Errorf("%w: #%s has zero area", ErrSurfaceNotFound, surfaceID)
	}

	c.log(diaglog.LogEntry{
		Event:   diaglog.EventSurfaceResolved,
		Payload: map[string]interface{}{"surface_id": surfaceID, "rect": rect},
	})
	return rect, nil
}
