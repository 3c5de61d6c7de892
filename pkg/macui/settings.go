package macui

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/koji/shadertoyrec/internal/config"
)

// SettingsWindow manages the recorder configuration UI
type SettingsWindow struct {
	cfg *config.RecorderConfig
}

// NewSettingsWindow creates a new settings window
func NewSettingsWindow() *SettingsWindow {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v, using defaults", err)
		cfg = config.Default()
	}

	return &SettingsWindow{
		cfg: cfg,
	}
}

// SettingsFields holds the raw string values collected from the settings
// dialogs before validation. Keeping everything as strings mirrors what
// AppleScript hands back.
type SettingsFields struct {
	URLHints        string // comma-separated URL substrings
	SurfaceID       string // canvas element id
	RuleEnabled     string // "true"/"false"
	FrameRate       string
	PollInterval    string
	StopThreshold   string
	CaptureAudio    string // "true"/"false"
	AllowDevUpdates string // "true"/"false"
	OutputDir       string
}

// ParseCSVField splits a comma-separated field into trimmed, non-empty parts.
func ParseCSVField(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBoolField accepts the strings the dialogs produce ("true"/"false",
// "yes"/"no") and falls back to the given default on anything else.
func parseBoolField(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}
	return def
}

// BuildConfigFromFields applies dialog fields on top of a base config and
// validates the result. The base config is not modified; empty fields keep
// the base value.
func BuildConfigFromFields(base *config.RecorderConfig, fields SettingsFields) (*config.RecorderConfig, error) {
	cfg := *base
	cfg.Rules = make([]config.PageRule, len(base.Rules))
	copy(cfg.Rules, base.Rules)

	if fields.FrameRate != "" {
		v, err := strconv.Atoi(strings.TrimSpace(fields.FrameRate))
		if err != nil {
			return nil, fmt.Errorf("invalid frame rate: %q", fields.FrameRate)
		}
		cfg.FrameRate = v
	}

	if fields.PollInterval != "" {
		v, err := strconv.Atoi(strings.TrimSpace(fields.PollInterval))
		if err != nil {
			return nil, fmt.Errorf("invalid poll interval: %q", fields.PollInterval)
		}
		cfg.PollInterval = v
	}

	if fields.StopThreshold != "" {
		v, err := strconv.Atoi(strings.TrimSpace(fields.StopThreshold))
		if err != nil {
			return nil, fmt.Errorf("invalid stop threshold: %q", fields.StopThreshold)
		}
		cfg.StopThreshold = v
	}

	if fields.OutputDir != "" {
		cfg.OutputDir = strings.TrimSpace(fields.OutputDir)
	}

	cfg.CaptureAudio = parseBoolField(fields.CaptureAudio, base.CaptureAudio)
	cfg.AllowDevUpdates = parseBoolField(fields.AllowDevUpdates, base.AllowDevUpdates)

	// Rule fields apply to the first rule; the advanced dialog only edits one.
	if len(cfg.Rules) > 0 {
		if hints := ParseCSVField(fields.URLHints); len(hints) > 0 {
			cfg.Rules[0].URLHints = hints
		}
		if id := strings.TrimSpace(fields.SurfaceID); id != "" {
			cfg.Rules[0].SurfaceID = id
		}
		if fields.RuleEnabled != "" {
			cfg.Rules[0].Enabled = parseBoolField(fields.RuleEnabled, cfg.Rules[0].Enabled)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Show displays the settings UI using AppleScript UI
func (sw *SettingsWindow) Show() error {
	script := `
tell application "System Events"
	activate
	display dialog "ShaderToy Recorder Settings" buttons {"Save", "Cancel"} default button "Cancel" with title "Settings"

	-- Window to collect input
	set response to (display dialog "Configure Page Detection" buttons {"Cancel", "OK"} default button "OK" with title "ShaderToy Recorder" with icon note giving up after 3600)

	if button returned of response is "OK" then
		-- Show simple confirmation
		display notification "Settings saved" with title "ShaderToy Recorder" subtitle "Configuration updated"
	end if
end tell
`

	cmd := exec.Command("osascript", "-e", script)
	err := cmd.Run()
	if err != nil {
		log.Printf("Settings dialog error (may be expected if cancelled): %v", err)
		// Don't treat dialog dismissal as error
		return nil
	}

	return nil
}

// ShowSettingsForm displays an interactive form for editing the configuration
func (sw *SettingsWindow) ShowSettingsForm() error {
	// Create a temporary text file with current settings
	defaultConfigPath := filepath.Join(os.Getenv("HOME"), ".config", "shadertoyrec", "config.json")
	if err := os.MkdirAll(filepath.Dir(defaultConfigPath), 0755); err != nil {
		log.Printf("Warning: failed to create config directory: %v", err)
	}

	// Display in system editor
	cmd := exec.Command("open", "-t", defaultConfigPath)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to open settings file: %v", err)
		// Try alternative
		return sw.showNativeSettingsWindow()
	}

	return nil
}

// showNativeSettingsWindow creates a comprehensive settings window using AppleScript for simplicity
// This allows for a scrollable form with all settings
func (sw *SettingsWindow) showNativeSettingsWindow() error {
	configPath := filepath.Join(os.Getenv("HOME"), ".config", "shadertoyrec", "config.json")

	// Ensure config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(sw.cfg); err != nil {
			log.Printf("Failed to create config: %v", err)
			return err
		}
	}

	// Summarise the page rules for the dialog
	var ruleLines []string
	for _, rule := range sw.cfg.Rules {
		ruleLines = append(ruleLines, fmt.Sprintf("%s: urls=[%s] surface=%s enabled=%t",
			rule.Name, strings.Join(rule.URLHints, ", "), rule.SurfaceID, rule.Enabled))
	}

	script := fmt.Sprintf(`
tell application "System Events"
	activate

	-- Settings form
	set settingsDialog to display dialog "SHADERTOY RECORDER SETTINGS

Configure page detection and capture parameters.

PAGE RULES
%s

CAPTURE
Frame rate: %d fps
Capture audio: %t
Output directory: %s

DETECTION
Poll interval: %d seconds
Stop threshold: %d missed polls
Allow dev updates: %t

Choose an option:" buttons {"Edit Config", "Advanced", "Close"} default button "Close" with title "ShaderToy Recorder Settings" giving up after 3600

	set buttonChoice to button returned of settingsDialog

	if buttonChoice is "Edit Config" then
		return "edit"
	else if buttonChoice is "Advanced" then
		return "advanced"
	else
		return "close"
	end if
end tell
`, escapeAppleScript(strings.Join(ruleLines, "\n")),
		sw.cfg.FrameRate, sw.cfg.CaptureAudio, escapeAppleScript(sw.cfg.OutputDir),
		sw.cfg.PollInterval, sw.cfg.StopThreshold, sw.cfg.AllowDevUpdates)

	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("Settings dialog dismissed: %v", err)
		return nil
	}

	choice := strings.TrimSpace(string(output))
	switch choice {
	case "edit":
		// Open config file in editor
		if err := exec.Command("open", "-e", configPath).Run(); err != nil {
			log.Printf("Failed to open config in editor: %v", err)
		}
	case "advanced":
		// Show advanced settings editor
		return sw.showAdvancedSettings()
	}

	return nil
}

// showAdvancedSettings shows a form to edit individual settings
func (sw *SettingsWindow) showAdvancedSettings() error {
	var urlHints, surfaceID string
	if len(sw.cfg.Rules) > 0 {
		urlHints = strings.Join(sw.cfg.Rules[0].URLHints, ", ")
		surfaceID = sw.cfg.Rules[0].SurfaceID
	}

	script := fmt.Sprintf(`
tell application "System Events"
	activate

	-- Get Poll Interval
	set pollInterval to text returned of (display dialog "Poll Interval (1-10 seconds):" default answer "%d" with title "ShaderToy Recorder Settings")

	-- Get Stop Threshold
	set stopThresh to text returned of (display dialog "Stop Threshold (1-30 missed polls):" default answer "%d" with title "ShaderToy Recorder Settings")

	-- Get Frame Rate
	set frameRate to text returned of (display dialog "Frame Rate (1-120 fps):" default answer "%d" with title "ShaderToy Recorder Settings")

	-- Get page URL hints
	set urlHints to text returned of (display dialog "Page URL Hints (comma-separated):" default answer "%s" with title "ShaderToy Recorder Settings")

	-- Get render surface id
	set surfaceID to text returned of (display dialog "Canvas Element ID:" default answer "%s" with title "ShaderToy Recorder Settings")

	-- Get microphone preference
	set micChoice to button returned of (display dialog "Capture microphone audio?" buttons {"No", "Yes"} default button "Yes" with title "ShaderToy Recorder Settings")

	set captureAudio to "false"
	if micChoice is "Yes" then
		set captureAudio to "true"
	end if

	-- Get dev updates preference
	set devUpdates to button returned of (display dialog "Allow development/pre-release updates?" buttons {"No", "Yes"} default button "No" with title "ShaderToy Recorder Settings")

	set allowDev to "false"
	if devUpdates is "Yes" then
		set allowDev to "true"
	end if

	-- Return all values separated by |
	return pollInterval & "|" & stopThresh & "|" & frameRate & "|" & urlHints & "|" & surfaceID & "|" & captureAudio & "|" & allowDev
end tell
`, sw.cfg.PollInterval, sw.cfg.StopThreshold, sw.cfg.FrameRate,
		escapeAppleScript(urlHints), escapeAppleScript(surfaceID))

	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("Advanced settings cancelled: %v", err)
		return nil
	}

	// Parse the response
	result := strings.TrimSpace(string(output))
	parts := strings.Split(result, "|")
	if len(parts) != 7 {
		log.Printf("Invalid response from settings dialog: %s", result)
		return nil
	}

	fields := SettingsFields{
		PollInterval:    parts[0],
		StopThreshold:   parts[1],
		FrameRate:       parts[2],
		URLHints:        parts[3],
		SurfaceID:       parts[4],
		CaptureAudio:    parts[5],
		AllowDevUpdates: parts[6],
	}

	cfg, err := BuildConfigFromFields(sw.cfg, fields)
	if err != nil {
		return err
	}

	// Save changes
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save settings: %v", err)
	}
	sw.cfg = cfg

	log.Printf("✓ Settings saved: poll=%ds, stop_threshold=%d, fps=%d, audio=%t, dev_updates=%t",
		cfg.PollInterval, cfg.StopThreshold, cfg.FrameRate, cfg.CaptureAudio, cfg.AllowDevUpdates)

	if err := SendNotification("ShaderToy Recorder", "Settings Updated", "Configuration saved successfully"); err != nil {
		log.Printf("Warning: failed to send notification: %v", err)
	}

	return nil
}

// LoadSettingsFromFile reads settings from the JSON file
func (sw *SettingsWindow) LoadSettingsFromFile() error {
	configPath := filepath.Join(os.Getenv("HOME"), ".config", "shadertoyrec", "config.json")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Will use defaults
		}
		return err
	}

	var cfg config.RecorderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("invalid JSON in config: %v", err)
	}

	sw.cfg = &cfg
	return nil
}

// GetCurrentSettings returns the current settings as a formatted string
func (sw *SettingsWindow) GetCurrentSettings() string {
	var ruleLines []string
	for _, rule := range sw.cfg.Rules {
		ruleLines = append(ruleLines, fmt.Sprintf("  %s: urls=[%s] surface=%s enabled=%t",
			rule.Name, strings.Join(rule.URLHints, ", "), rule.SurfaceID, rule.Enabled))
	}

	return fmt.Sprintf(`
ShaderToy Recorder Settings:
=======================

Page Rules:
%s

Capture:
  Frame Rate: %d fps
  Capture Audio: %t
  Output Directory: %s

Detection:
  Poll Interval: %d seconds
  Stop Threshold: %d missed polls

Settings File: %s
`,
		strings.Join(ruleLines, "\n"),
		sw.cfg.FrameRate,
		sw.cfg.CaptureAudio,
		sw.cfg.OutputDir,
		sw.cfg.PollInterval,
		sw.cfg.StopThreshold,
		filepath.Join(os.Getenv("HOME"), ".config", "shadertoyrec", "config.json"),
	)
}
