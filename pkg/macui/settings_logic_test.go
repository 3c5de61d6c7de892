package macui

// settings_logic_test.go tests the pure (no-AppKit) logic helpers exposed by
// the settings window: ParseCSVField, BuildConfigFromFields, and their helpers.
//
// AppKit-dependent code (Show, showNativeSettingsWindow, etc.) is excluded
// from unit tests because it requires a macOS display and run loop.

import (
	"reflect"
	"strings"
	"testing"

	"github.com/koji/shadertoyrec/internal/config"
)

func baseConfig() *config.RecorderConfig {
	cfg := config.Default()
	cfg.OutputDir = "/tmp/recordings"
	return cfg
}

// ─────────────────────────────────────────────────────────────────────────────
// ParseCSVField
// ─────────────────────────────────────────────────────────────────────────────

func TestParseCSVField(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"single value", "shadertoy.com", []string{"shadertoy.com"}},
		{"multiple values", "shadertoy.com, glslsandbox.com", []string{"shadertoy.com", "glslsandbox.com"}},
		{"extra whitespace", "  a ,  b  , c ", []string{"a", "b", "c"}},
		{"empty parts dropped", "a,,b,", []string{"a", "b"}},
		{"empty string", "", nil},
		{"only commas", ",,,", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseCSVField(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseCSVField(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// parseBoolField
// ─────────────────────────────────────────────────────────────────────────────

func TestParseBoolField(t *testing.T) {
	cases := []struct {
		input string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"false", true, false},
		{"yes", false, true},
		{"no", true, false},
		{"YES", false, true},
		{" True ", false, true},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
	}

	for _, tc := range cases {
		if got := parseBoolField(tc.input, tc.def); got != tc.want {
			t.Errorf("parseBoolField(%q, %t) = %t, want %t", tc.input, tc.def, got, tc.want)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// BuildConfigFromFields
// ─────────────────────────────────────────────────────────────────────────────

func TestBuildConfigFromFields_appliesFields(t *testing.T) {
	base := baseConfig()
	fields := SettingsFields{
		PollInterval:    "5",
		StopThreshold:   "10",
		FrameRate:       "30",
		URLHints:        "shadertoy.com, glslsandbox.com",
		SurfaceID:       "canvas-main",
		CaptureAudio:    "false",
		AllowDevUpdates: "true",
	}

	cfg, err := BuildConfigFromFields(base, fields)
	if err != nil {
		t.Fatalf("BuildConfigFromFields: %v", err)
	}

	if cfg.PollInterval != 5 {
		t.Errorf("PollInterval = %d, want 5", cfg.PollInterval)
	}
	if cfg.StopThreshold != 10 {
		t.Errorf("StopThreshold = %d, want 10", cfg.StopThreshold)
	}
	if cfg.FrameRate != 30 {
		t.Errorf("FrameRate = %d, want 30", cfg.FrameRate)
	}
	if cfg.CaptureAudio {
		t.Error("CaptureAudio should be disabled")
	}
	if !cfg.AllowDevUpdates {
		t.Error("AllowDevUpdates should be enabled")
	}

	wantHints := []string{"shadertoy.com", "glslsandbox.com"}
	if !reflect.DeepEqual(cfg.Rules[0].URLHints, wantHints) {
		t.Errorf("URLHints = %v, want %v", cfg.Rules[0].URLHints, wantHints)
	}
	if cfg.Rules[0].SurfaceID != "canvas-main" {
		t.Errorf("SurfaceID = %q, want %q", cfg.Rules[0].SurfaceID, "canvas-main")
	}
}

func TestBuildConfigFromFields_emptyFieldsKeepBase(t *testing.T) {
	base := baseConfig()
	cfg, err := BuildConfigFromFields(base, SettingsFields{})
	if err != nil {
		t.Fatalf("BuildConfigFromFields: %v", err)
	}

	if cfg.PollInterval != base.PollInterval {
		t.Errorf("PollInterval = %d, want base %d", cfg.PollInterval, base.PollInterval)
	}
	if cfg.FrameRate != base.FrameRate {
		t.Errorf("FrameRate = %d, want base %d", cfg.FrameRate, base.FrameRate)
	}
	if cfg.CaptureAudio != base.CaptureAudio {
		t.Errorf("CaptureAudio = %t, want base %t", cfg.CaptureAudio, base.CaptureAudio)
	}
	if !reflect.DeepEqual(cfg.Rules[0].URLHints, base.Rules[0].URLHints) {
		t.Errorf("URLHints = %v, want base %v", cfg.Rules[0].URLHints, base.Rules[0].URLHints)
	}
	if cfg.Rules[0].SurfaceID != base.Rules[0].SurfaceID {
		t.Errorf("SurfaceID = %q, want base %q", cfg.Rules[0].SurfaceID, base.Rules[0].SurfaceID)
	}
}

func TestBuildConfigFromFields_baseNotMutated(t *testing.T) {
	base := baseConfig()
	origSurface := base.Rules[0].SurfaceID
	origRate := base.FrameRate

	_, err := BuildConfigFromFields(base, SettingsFields{
		FrameRate: "24",
		SurfaceID: "other-canvas",
	})
	if err != nil {
		t.Fatalf("BuildConfigFromFields: %v", err)
	}

	if base.FrameRate != origRate {
		t.Errorf("base FrameRate mutated: %d", base.FrameRate)
	}
	if base.Rules[0].SurfaceID != origSurface {
		t.Errorf("base SurfaceID mutated: %q", base.Rules[0].SurfaceID)
	}
}

func TestBuildConfigFromFields_rejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		fields  SettingsFields
		wantErr string
	}{
		{"non-numeric poll interval", SettingsFields{PollInterval: "abc"}, "invalid poll interval"},
		{"poll interval out of range", SettingsFields{PollInterval: "99"}, "poll_interval_seconds"},
		{"non-numeric frame rate", SettingsFields{FrameRate: "fast"}, "invalid frame rate"},
		{"frame rate out of range", SettingsFields{FrameRate: "500"}, "frame_rate"},
		{"non-numeric stop threshold", SettingsFields{StopThreshold: "x"}, "invalid stop threshold"},
		{"stop threshold out of range", SettingsFields{StopThreshold: "100"}, "stop_threshold"},
		{"disabling the only rule", SettingsFields{RuleEnabled: "false"}, "at least one page rule must be enabled"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildConfigFromFields(baseConfig(), tc.fields)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
