package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PageRule represents configurable criteria for recognising a page that hosts
// a recordable render surface.
type PageRule struct {
	Name      string   `json:"name"`       // e.g. "shadertoy"
	URLHints  []string `json:"url_hints"`  // URL substrings, e.g. "shadertoy.com"
	SurfaceID string   `json:"surface_id"` // well-known canvas element id
	Enabled   bool     `json:"enabled"`    // rule active
}

// RecorderConfig holds all daemon configuration.
type RecorderConfig struct {
	DevToolsURL     string     `json:"devtools_url"`                // browser DevTools endpoint
	Rules           []PageRule `json:"rules"`                       // compatible-page rules
	FrameRate       int        `json:"frame_rate"`                  // capture frame rate
	VideoBitRate    int        `json:"video_bitrate"`               // bits/second
	AudioBitRate    int        `json:"audio_bitrate"`               // bits/second
	ChunkIntervalMs int        `json:"chunk_interval_ms"`           // encoder emission cadence
	CaptureAudio    bool       `json:"capture_audio"`               // request microphone track
	OutputDir       string     `json:"output_dir"`                  // where artifacts are saved
	PollInterval    int        `json:"poll_interval_seconds"`       // page detection polling interval
	StopThreshold   int        `json:"stop_threshold"`              // consecutive page-gone polls before force-stop
	AllowDevUpdates bool       `json:"allow_dev_updates,omitempty"` // allow pre-release update versions
}

// Default returns the built-in configuration used when no config file exists.
func Default() *RecorderConfig {
	return &RecorderConfig{
		DevToolsURL: "http://localhost:9222",
		Rules: []PageRule{
			{Name: "shadertoy", URLHints: []string{"shadertoy.com"}, SurfaceID: "demogl", Enabled: true},
		},
		FrameRate:       60,
		VideoBitRate:    5_000_000,
		AudioBitRate:    128_000,
		ChunkIntervalMs: 100,
		CaptureAudio:    true,
		OutputDir:       filepath.Join(os.Getenv("HOME"), "Downloads"),
		PollInterval:    2,
		StopThreshold:   3,
	}
}

// Load reads configuration from ~/.config/shadertoyrec/config.json.
// Falls back to built-in defaults if the user config doesn't exist.
func Load() (*RecorderConfig, error) {
	configDir := filepath.Join(os.Getenv("HOME"), ".config", "shadertoyrec")
	userConfigPath := filepath.Join(configDir, "config.json")

	data, err := os.ReadFile(userConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create config directory for future saves, then use defaults.
			if err := os.MkdirAll(configDir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create config directory: %w", err)
			}
			cfg := Default()
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg RecorderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes configuration to ~/.config/shadertoyrec/config.json.
func Save(cfg *RecorderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	configDir := filepath.Join(os.Getenv("HOME"), ".config", "shadertoyrec")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// RuleByName returns the first PageRule whose Name field matches name, or nil
// if no such rule exists.
func (c *RecorderConfig) RuleByName(name string) *PageRule {
	for i := range c.Rules {
		if c.Rules[i].Name == name {
			return &c.Rules[i]
		}
	}
	return nil
}

// Validate checks RecorderConfig for validity.
func (c *RecorderConfig) Validate() error {
	if c.DevToolsURL == "" {
		return fmt.Errorf("devtools_url must not be empty")
	}

	// FrameRate must be between 1 and 120 frames/second.
	if c.FrameRate < 1 || c.FrameRate > 120 {
		return fmt.Errorf("frame_rate must be between 1 and 120, got %d", c.FrameRate)
	}

	if c.VideoBitRate < 100_000 {
		return fmt.Errorf("video_bitrate must be at least 100000, got %d", c.VideoBitRate)
	}

	if c.AudioBitRate < 8_000 {
		return fmt.Errorf("audio_bitrate must be at least 8000, got %d", c.AudioBitRate)
	}

	// ChunkInterval must be between 20ms and 5s; shorter intervals bound memory
	// growth per chunk, longer ones risk losing data on abrupt termination.
	if c.ChunkIntervalMs < 20 || c.ChunkIntervalMs > 5000 {
		return fmt.Errorf("chunk_interval_ms must be between 20 and 5000, got %d", c.ChunkIntervalMs)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}

	if c.PollInterval < 1 || c.PollInterval > 10 {
		return fmt.Errorf("poll_interval_seconds must be between 1 and 10, got %d", c.PollInterval)
	}

	if c.StopThreshold < 1 || c.StopThreshold > 30 {
		return fmt.Errorf("stop_threshold must be between 1 and 30, got %d", c.StopThreshold)
	}

	// At least one page rule must be enabled, and enabled rules need a surface id.
	hasEnabled := false
	for _, rule := range c.Rules {
		if rule.Enabled {
			hasEnabled = true
			if rule.SurfaceID == "" {
				return fmt.Errorf("rule %q is enabled but has no surface_id", rule.Name)
			}
		}
	}
	if !hasEnabled {
		return fmt.Errorf("at least one page rule must be enabled")
	}

	return nil
}
