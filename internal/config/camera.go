package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/devices"
	"github.com/smazurov/uvcctl/internal/properties"
	"github.com/smazurov/uvcctl/internal/session"
)

// Camera is the contents of camera.toml.
//
//	[camera]
//	device = "auto"          # or an index, "index:2", "name:ELP", "usb:32e4:0298"
//	resolution_index = 11
//	output_dir = "/var/lib/uvcctl"
//	recording = false
//
//	[properties]
//	gain = 40
//	exposure = 150
//
//	[session]
//	cooldown = "1s"
//	attempts = 3
type Camera struct {
	Camera     CameraSection  `toml:"camera"`
	Properties map[string]any `toml:"properties"`
	Session    SessionSection `toml:"session"`
	Preview    PreviewSection `toml:"preview"`
}

// CameraSection selects the device and how to open it.
type CameraSection struct {
	// Device is an integer index or a strategy string.
	Device          any    `toml:"device"`
	ResolutionIndex *int   `toml:"resolution_index"`
	OutputDir       string `toml:"output_dir"`
	Recording       bool   `toml:"recording"`
	HardRestart     bool   `toml:"hard_restart"`
}

// SessionSection tunes the session. Zero values keep the defaults.
type SessionSection struct {
	Epsilon          float64  `toml:"epsilon"`
	Delta            float64  `toml:"delta"`
	ManualExposure   *float64 `toml:"manual_exposure"`
	Cooldown         Duration `toml:"cooldown"`
	Attempts         int      `toml:"attempts"`
	BackoffUnits     int      `toml:"backoff_units"`
	StabilityFrames  int      `toml:"stability_frames"`
	SafeIndices      []int    `toml:"safe_indices"`
	FailureThreshold int      `toml:"failure_threshold"`
}

// PreviewSection configures the MJPEG preview.
type PreviewSection struct {
	Width   int `toml:"width"`
	Quality int `toml:"quality"`
}

// Duration is a time.Duration written as "1s", "500ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// DefaultCamera returns the configuration used when no camera file exists.
func DefaultCamera() Camera {
	return Camera{
		Camera: CameraSection{Device: "auto", OutputDir: "."},
	}
}

// LoadCamera reads and decodes a camera file. Unknown keys outside
// [properties] are rejected so typos do not silently fall back to defaults.
func LoadCamera(path string) (Camera, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Camera{}, err
	}
	return ParseCamera(data)
}

// ParseCamera decodes camera TOML over the defaults.
func ParseCamera(data []byte) (Camera, error) {
	cfg := DefaultCamera()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Camera{}, fmt.Errorf("camera config: %s", strict.String())
		}
		return Camera{}, fmt.Errorf("camera config: %w", err)
	}
	if cfg.Camera.OutputDir == "" {
		cfg.Camera.OutputDir = "."
	}
	return cfg, nil
}

// DeviceSelection interprets [camera].device. pinned is true for an explicit
// index, otherwise strategy picks among detected devices.
func (c CameraSection) DeviceSelection() (index int, pinned bool, strategy devices.Strategy, err error) {
	switch v := c.Device.(type) {
	case nil:
		return -1, false, devices.DefaultStrategy(), nil
	case int64:
		if v < 0 {
			return -1, false, nil, fmt.Errorf("device index must be >= 0, got %d", v)
		}
		return int(v), true, nil, nil
	case string:
		if n, convErr := strconv.Atoi(strings.TrimSpace(v)); convErr == nil {
			if n < 0 {
				return -1, false, nil, fmt.Errorf("device index must be >= 0, got %d", n)
			}
			return n, true, nil, nil
		}
		strategy, err = devices.ParseStrategy(v)
		return -1, false, strategy, err
	default:
		return -1, false, nil, fmt.Errorf("device must be an index or a strategy string, got %T", v)
	}
}

// ResolutionIndexOr returns the configured resolution index or def.
func (c CameraSection) ResolutionIndexOr(def int) int {
	if c.ResolutionIndex == nil {
		return def
	}
	return *c.ResolutionIndex
}

// SessionConfig builds a session configuration over the given catalog and
// registry.
func (c Camera) SessionConfig(cat *catalog.Catalog, reg *properties.Registry) session.Config {
	cfg := session.Config{
		Catalog:         cat,
		Registry:        reg,
		Cooldown:        time.Duration(c.Session.Cooldown),
		Attempts:        c.Session.Attempts,
		BackoffUnits:    c.Session.BackoffUnits,
		StabilityFrames: c.Session.StabilityFrames,
		SafeIndices:     c.Session.SafeIndices,
	}
	if c.Session.Epsilon > 0 || c.Session.Delta > 0 {
		cfg.Thresholds = properties.DefaultThresholds()
		if c.Session.Epsilon > 0 {
			cfg.Thresholds.Epsilon = c.Session.Epsilon
		}
		if c.Session.Delta > 0 {
			cfg.Thresholds.Delta = c.Session.Delta
		}
	}
	if c.Session.ManualExposure != nil {
		cfg.ManualExposure = float64(*c.Session.ManualExposure)
	}
	return cfg
}

// Presets returns the [properties] table as numbers. Integer and float
// values are both accepted; anything else is skipped (Validate reports it).
func (c Camera) Presets() map[string]float64 {
	out := make(map[string]float64, len(c.Properties))
	for name, v := range c.Properties {
		if f, ok := toFloat(v); ok {
			out[name] = f
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Validate checks indices and property names against the catalog and
// registry.
func (c Camera) Validate(cat *catalog.Catalog, reg *properties.Registry) error {
	var errs []error
	if _, _, _, err := c.Camera.DeviceSelection(); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.ResolutionIndex != nil && !cat.Valid(*c.Camera.ResolutionIndex) {
		errs = append(errs, fmt.Errorf("resolution_index %d out of range [0, %d)", *c.Camera.ResolutionIndex, cat.Len()))
	}
	for _, idx := range c.Session.SafeIndices {
		if !cat.Valid(idx) {
			errs = append(errs, fmt.Errorf("safe index %d out of range [0, %d)", idx, cat.Len()))
		}
	}
	for name, v := range c.Properties {
		if _, ok := reg.Lookup(name); !ok {
			errs = append(errs, fmt.Errorf("unknown property %q", name))
		}
		if _, ok := toFloat(v); !ok {
			errs = append(errs, fmt.Errorf("property %q must be a number, got %T", name, v))
		}
	}
	if c.Session.Attempts < 0 || c.Session.BackoffUnits < 0 || c.Session.FailureThreshold < 0 {
		errs = append(errs, errors.New("session counts must not be negative"))
	}
	return errors.Join(errs...)
}
