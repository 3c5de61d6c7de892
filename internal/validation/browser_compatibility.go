package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ValidationResult contains the result of a browser compatibility check
type ValidationResult struct {
	OK       bool
	Message  string
	Issues   []string
	Warnings []string
	Fixes    []string
}

// ValidateBrowserVersion checks if the browser meets minimum requirements.
// The DevTools /json/version endpoint reports strings like "Chrome/126.0.6478.127".
func ValidateBrowserVersion(browserString string) *ValidationResult {
	result := &ValidationResult{OK: true}

	re := regexp.MustCompile(`(Chrome|Chromium|HeadlessChrome)/(\d+)\.`)
	matches := re.FindStringSubmatch(browserString)

	if len(matches) < 3 {
		result.OK = false
		result.Message = fmt.Sprintf("Could not parse browser version: %s", browserString)
		result.Issues = append(result.Issues, "Unrecognized browser identification")
		result.Fixes = append(result.Fixes, "Use a Chromium-based browser started with --remote-debugging-port=9222")
		return result
	}

	major, _ := strconv.Atoi(matches[2])

	// Minimum required: Chrome 100 (stable getDisplayMedia + Runtime.evaluate
	// semantics this tool depends on).
	if major < 100 {
		result.OK = false
		result.Issues = append(result.Issues, fmt.Sprintf("%s %d is too old (requires 100+)", matches[1], major))
		result.Fixes = append(result.Fixes, "Update the browser to version 100 or later")
		result.Message = fmt.Sprintf("%s %d requires update to 100+", matches[1], major)
		return result
	}

	result.Message = fmt.Sprintf("%s %d is compatible (requires 100+)", matches[1], major)
	return result
}

// ValidateProtocolVersion checks the DevTools protocol version.
func ValidateProtocolVersion(protocolVersion string) *ValidationResult {
	result := &ValidationResult{OK: true}

	if !strings.HasPrefix(protocolVersion, "1.") {
		result.OK = false
		result.Issues = append(result.Issues, fmt.Sprintf("DevTools protocol v%s detected (requires 1.x)", protocolVersion))
		result.Fixes = append(result.Fixes, "Use a browser exposing DevTools protocol 1.3")
		result.Message = fmt.Sprintf("DevTools protocol v%s is incompatible", protocolVersion)
		return result
	}

	result.Message = fmt.Sprintf("DevTools protocol v%s is compatible", protocolVersion)
	return result
}

// SuggestedFixes returns user-friendly troubleshooting for common failures.
func SuggestedFixes(errorMsg string) []string {
	var fixes []string

	switch {
	case strings.Contains(errorMsg, "connection refused"):
		fixes = append(fixes, "Cannot reach the browser DevTools endpoint")
		fixes = append(fixes, "")
		fixes = append(fixes, "Verify:")
		fixes = append(fixes, "  1. The browser is running")
		fixes = append(fixes, "  2. It was started with --remote-debugging-port=9222")
		fixes = append(fixes, "  3. Port 9222 is not blocked by a firewall")
		fixes = append(fixes, "  4. No other process is using port 9222")

	case strings.Contains(errorMsg, "render surface not found"):
		fixes = append(fixes, "The page has no recordable render surface")
		fixes = append(fixes, "")
		fixes = append(fixes, "Steps to fix:")
		fixes = append(fixes, "  1. Open a shader page, not the site's front page")
		fixes = append(fixes, "  2. Wait for the shader viewport to finish loading")
		fixes = append(fixes, "  3. Reload the page and try again")

	case strings.Contains(errorMsg, "no media tracks"):
		fixes = append(fixes, "Screen capture produced no usable tracks")
		fixes = append(fixes, "")
		fixes = append(fixes, "Steps to fix:")
		fixes = append(fixes, "  1. Grant Screen Recording permission in System Settings > Privacy & Security")
		fixes = append(fixes, "  2. Restart shadertoyrec-core after granting the permission")

	case strings.Contains(errorMsg, "audio capture denied"):
		fixes = append(fixes, "Microphone access was denied; recordings are video-only")
		fixes = append(fixes, "")
		fixes = append(fixes, "Grant Microphone permission in System Settings > Privacy & Security to include audio")

	default:
		fixes = append(fixes, fmt.Sprintf("Error: %s", errorMsg))
		fixes = append(fixes, "Run with SHADERTOYREC_DEBUG=true and check the diagnostic log for details")
	}

	return fixes
}

// CheckBrowserHealth performs a combined browser + protocol health check.
func CheckBrowserHealth(browserString, protocolVersion string) *ValidationResult {
	result := &ValidationResult{OK: true}
	var messages []string

	browserCheck := ValidateBrowserVersion(browserString)
	if !browserCheck.OK {
		result.OK = false
		result.Issues = append(result.Issues, browserCheck.Issues...)
		result.Fixes = append(result.Fixes, browserCheck.Fixes...)
	}
	messages = append(messages, browserCheck.Message)

	protocolCheck := ValidateProtocolVersion(protocolVersion)
	if !protocolCheck.OK {
		result.OK = false
		result.Issues = append(result.Issues, protocolCheck.Issues...)
		result.Fixes = append(result.Fixes, protocolCheck.Fixes...)
	}
	messages = append(messages, protocolCheck.Message)

	result.Message = strings.Join(messages, " | ")

	if result.OK {
		result.Message = "Browser health check passed: " + result.Message
	} else {
		result.Message = "Browser health check FAILED: " + result.Message
	}

	return result
}
