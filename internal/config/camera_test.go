package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/devices"
	"github.com/smazurov/uvcctl/internal/properties"
)

const cameraTOML = `
[camera]
device = 2
resolution_index = 0
output_dir = "/var/lib/uvcctl"
recording = true
hard_restart = true

[properties]
gain = 40
exposure = 150.5

[session]
epsilon = 0.2
manual_exposure = 1
cooldown = "500ms"
attempts = 4
safe_indices = [17, 11]
failure_threshold = 10

[preview]
width = 960
quality = 60
`

func TestParseCamera(t *testing.T) {
	cfg, err := ParseCamera([]byte(cameraTOML))
	if err != nil {
		t.Fatal(err)
	}

	idx, pinned, _, err := cfg.Camera.DeviceSelection()
	if err != nil || !pinned || idx != 2 {
		t.Errorf("device = %d pinned=%v err=%v", idx, pinned, err)
	}
	if cfg.Camera.ResolutionIndexOr(11) != 0 {
		t.Errorf("resolution index = %d", cfg.Camera.ResolutionIndexOr(11))
	}
	if !cfg.Camera.Recording || !cfg.Camera.HardRestart || cfg.Camera.OutputDir != "/var/lib/uvcctl" {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if !reflect.DeepEqual(cfg.Presets(), map[string]float64{"gain": 40, "exposure": 150.5}) {
		t.Errorf("presets = %v", cfg.Presets())
	}
	if time.Duration(cfg.Session.Cooldown) != 500*time.Millisecond {
		t.Errorf("cooldown = %v", time.Duration(cfg.Session.Cooldown))
	}
	if cfg.Preview.Width != 960 || cfg.Session.FailureThreshold != 10 {
		t.Errorf("preview = %+v session = %+v", cfg.Preview, cfg.Session)
	}

	if err := cfg.Validate(catalog.Default(), properties.Default()); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseCameraDefaults(t *testing.T) {
	cfg, err := ParseCamera(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Camera.OutputDir != "." {
		t.Errorf("output_dir = %q", cfg.Camera.OutputDir)
	}
	if cfg.Camera.ResolutionIndexOr(11) != 11 {
		t.Error("missing resolution_index should use the fallback")
	}
	_, pinned, strategy, err := cfg.Camera.DeviceSelection()
	if err != nil || pinned || strategy == nil {
		t.Errorf("auto device: pinned=%v strategy=%v err=%v", pinned, strategy != nil, err)
	}
}

func TestParseCameraRejectsUnknownKeys(t *testing.T) {
	_, err := ParseCamera([]byte("[camera]\nresolution = 3\n"))
	if err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func TestDeviceSelection(t *testing.T) {
	list := []devices.DeviceInfo{
		{Index: 0, DeviceName: "Integrated Camera"},
		{Index: 3, DeviceName: "ELP USB Camera"},
	}
	tests := []struct {
		name    string
		device  any
		pinned  bool
		want    int
		wantErr bool
	}{
		{"int", int64(4), true, 4, false},
		{"numeric string", "1", true, 1, false},
		{"name strategy", "name:elp", false, 3, false},
		{"first", "first", false, 0, false},
		{"negative", int64(-1), false, 0, true},
		{"bad strategy", "serial:123", false, 0, true},
		{"wrong type", 1.5, false, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, pinned, strategy, err := CameraSection{Device: tt.device}.DeviceSelection()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if pinned != tt.pinned {
				t.Fatalf("pinned = %v", pinned)
			}
			if !pinned {
				var ok bool
				idx, ok = strategy(list)
				if !ok {
					t.Fatal("strategy found nothing")
				}
			}
			if idx != tt.want {
				t.Errorf("index = %d, want %d", idx, tt.want)
			}
		})
	}
}

func TestCameraSessionConfig(t *testing.T) {
	cfg, err := ParseCamera([]byte(cameraTOML))
	if err != nil {
		t.Fatal(err)
	}
	sc := cfg.SessionConfig(catalog.Default(), properties.Default())

	if sc.Cooldown != 500*time.Millisecond || sc.Attempts != 4 || sc.ManualExposure != 1 {
		t.Errorf("session config = %+v", sc)
	}
	if sc.Thresholds.Epsilon != 0.2 || sc.Thresholds.Delta != properties.DefaultThresholds().Delta {
		t.Errorf("thresholds = %+v", sc.Thresholds)
	}
	if !reflect.DeepEqual(sc.SafeIndices, []int{17, 11}) {
		t.Errorf("safe indices = %v", sc.SafeIndices)
	}

	empty := DefaultCamera().SessionConfig(nil, nil)
	if empty.Thresholds != (properties.Thresholds{}) || empty.Cooldown != 0 {
		t.Errorf("zero tuning should be left for session defaults: %+v", empty)
	}
}

func TestCameraValidate(t *testing.T) {
	bad := 99
	cfg := Camera{
		Camera:     CameraSection{Device: "auto", ResolutionIndex: &bad},
		Properties: map[string]any{"warp": int64(1), "gain": "high"},
		Session:    SessionSection{SafeIndices: []int{17, -1}, Attempts: -1},
	}
	err := cfg.Validate(catalog.Default(), properties.Default())
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"resolution_index 99", "safe index -1", `unknown property "warp"`, `"gain" must be a number`, "negative"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
