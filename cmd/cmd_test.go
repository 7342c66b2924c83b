package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/capture/capturetest"
	"github.com/smazurov/uvcctl/internal/config"
	"github.com/smazurov/uvcctl/internal/control"
	"github.com/smazurov/uvcctl/internal/devices"
	"github.com/smazurov/uvcctl/internal/properties"
	"github.com/smazurov/uvcctl/internal/session"
)

type fakeDetector struct {
	devices []devices.DeviceInfo
}

func (f fakeDetector) FindDevices() ([]devices.DeviceInfo, error) {
	return f.devices, nil
}

func (fakeDetector) GetDeviceFormats(string) ([]devices.FormatInfo, error) {
	return nil, nil
}

func (fakeDetector) GetDeviceResolutions(string, uint32) ([]devices.Resolution, error) {
	return nil, nil
}

func withFakes(t *testing.T, dev *capturetest.Device, found ...devices.DeviceInfo) {
	t.Helper()
	prevOpener, prevDetector := newOpener, newDetector
	newOpener = func() capture.Opener { return dev }
	newDetector = func() devices.Detector { return fakeDetector{devices: found} }
	t.Cleanup(func() { newOpener, newDetector = prevOpener, prevDetector })
}

func writeCamera(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camera.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func parseCamera(t *testing.T, body string) config.Camera {
	t.Helper()
	cam, err := config.ParseCamera([]byte(body))
	if err != nil {
		t.Fatalf("ParseCamera: %v", err)
	}
	return cam
}

func TestNewControllerDeviceSelection(t *testing.T) {
	found := []devices.DeviceInfo{
		{Index: 0, DeviceName: "Integrated Webcam"},
		{Index: 4, DeviceName: "ELP 8MP USB Camera"},
	}

	tests := []struct {
		name   string
		camera string
		want   int
	}{
		{"pinned index", "[camera]\ndevice = 3\n", 3},
		{"pinned string index", "[camera]\ndevice = \"2\"\n", 2},
		{"name strategy", "[camera]\ndevice = \"name:ELP\"\n", 4},
		{"first", "[camera]\ndevice = \"first\"\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := capturetest.NewDevice(nil)
			ctrl, err := NewController(parseCamera(t, tt.camera), dev, fakeDetector{devices: found}, nil)
			if err != nil {
				t.Fatalf("NewController: %v", err)
			}
			defer ctrl.Close()

			if _, err := ctrl.Open(context.Background(), ctrl.Catalog().DefaultIndex(), false); err != nil {
				t.Fatalf("Open: %v", err)
			}
			got := dev.OpenIndices()
			if len(got) == 0 || got[0] != tt.want {
				t.Errorf("opened %v, want device %d", got, tt.want)
			}
		})
	}
}

func TestNewControllerRejectsInvalidCamera(t *testing.T) {
	tests := map[string]string{
		"resolution out of range": "[camera]\nresolution_index = 99\n",
		"unknown property":        "[properties]\nshutter = 4\n",
		"bad strategy":            "[camera]\ndevice = \"usb:nothex\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewController(parseCamera(t, body), capturetest.NewDevice(nil), fakeDetector{}, nil)
			if err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestCameraOptionsLoad(t *testing.T) {
	opts := cameraOptions{cameraFile: filepath.Join(t.TempDir(), "missing.toml"), device: "2", index: 5}
	cam, err := opts.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cam.Camera.Device != "2" {
		t.Errorf("device = %v, want override", cam.Camera.Device)
	}
	if got := cam.Camera.ResolutionIndexOr(-1); got != 5 {
		t.Errorf("resolution index = %d, want 5", got)
	}
	if cam.Camera.OutputDir != "." {
		t.Errorf("output dir = %q, want default", cam.Camera.OutputDir)
	}

	opts = cameraOptions{cameraFile: writeCamera(t, "[camera]\nnot_a_key = 1\n"), index: -1}
	if _, err := opts.load(); err == nil {
		t.Error("expected unknown key to be rejected")
	}
}

func TestSetCommand(t *testing.T) {
	dev := capturetest.NewDevice(map[capture.PropertyID]float64{capture.PropGain: 10})
	withFakes(t, dev)
	path := writeCamera(t, "[camera]\ndevice = 0\n")

	out, err := execute(CreateSetCmd(), "gain", "40", "--camera", path)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out, "gain: requested 40, now 40 (applied via id") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "primary") {
		t.Errorf("attempt trail missing:\n%s", out)
	}
	if dev.Value(capture.PropGain) != 40 {
		t.Errorf("device gain = %g", dev.Value(capture.PropGain))
	}
}

func TestSetCommandErrors(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	spec, _ := properties.Default().Lookup("sharpness")
	for _, id := range spec.IDs() {
		dev.Ignore[id] = true
	}
	withFakes(t, dev)
	path := writeCamera(t, "[camera]\ndevice = 0\n")

	if _, err := execute(CreateSetCmd(), "gain", "loud", "--camera", path); err == nil {
		t.Error("expected a non-numeric value to fail")
	}

	_, err := execute(CreateSetCmd(), "shutter", "1", "--camera", path)
	if !errors.Is(err, session.ErrUnknownProperty) {
		t.Errorf("unknown property err = %v", err)
	}

	out, err := execute(CreateSetCmd(), "sharpness", "3", "--camera", path)
	if !errors.Is(err, session.ErrPropertyNotSettable) {
		t.Errorf("not settable err = %v", err)
	}
	if !strings.Contains(out, "not applied") {
		t.Errorf("trail not printed for a failed write:\n%s", out)
	}
}

func TestLogLevelFlag(t *testing.T) {
	var opts cameraOptions
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts.bind(fs)

	if opts.logLevel != "info" {
		t.Errorf("default = %q", opts.logLevel)
	}
	if err := fs.Parse([]string{"--log-level", "WARNING"}); err != nil {
		t.Fatal(err)
	}
	if opts.logLevel != "warning" {
		t.Errorf("level = %q", opts.logLevel)
	}
	if err := fs.Parse([]string{"--log-level", "verbose"}); err == nil {
		t.Error("unknown level accepted")
	}
	if typ := fs.Lookup("log-level").Value.Type(); typ != "level" {
		t.Errorf("type = %q", typ)
	}
}

func TestPropertiesCommandAppliesPresets(t *testing.T) {
	dev := capturetest.NewDevice(map[capture.PropertyID]float64{capture.PropGain: 10})
	withFakes(t, dev)
	path := writeCamera(t, "[camera]\ndevice = 0\n\n[properties]\ngain = 25\n")

	out, err := execute(CreatePropertiesCmd(), "--camera", path, "--json")
	if err != nil {
		t.Fatalf("properties: %v", err)
	}
	var views []control.PropertyView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}

	var found bool
	for _, v := range views {
		if v.Name == "gain" {
			found = true
			if v.Value != 25 {
				t.Errorf("gain = %g, want preset 25", v.Value)
			}
		}
	}
	if !found {
		t.Error("gain missing from output")
	}
}

func TestResolutionsCommand(t *testing.T) {
	out, err := execute(CreateResolutionsCmd())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 19 {
		t.Fatalf("got %d lines, want header plus 18 entries", len(lines))
	}
	if !strings.HasPrefix(lines[12], "11 ") || !strings.Contains(lines[12], "default") {
		t.Errorf("index 11 not marked default: %q", lines[12])
	}
	if !strings.Contains(lines[18], "safe") {
		t.Errorf("lowest entry not marked safe: %q", lines[18])
	}
}

func TestDevicesCommand(t *testing.T) {
	withFakes(t, capturetest.NewDevice(nil), devices.DeviceInfo{
		Index:      2,
		DevicePath: "/dev/video2",
		DeviceName: "ELP 8MP",
		VendorID:   devices.ELPVendorID,
		ProductID:  devices.ELPProductID,
		MaxWidth:   3264,
		MaxHeight:  2448,
	})

	out, err := execute(CreateDevicesCmd())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"/dev/video2", "32e4:0298", "3264x2448", "yes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	withFakes(t, capturetest.NewDevice(nil))
	out, err = execute(CreateDevicesCmd())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no capture devices") {
		t.Errorf("empty list output = %q", out)
	}
}

func TestRestartCommand(t *testing.T) {
	dev := capturetest.NewDevice(nil)
	withFakes(t, dev)
	path := writeCamera(t, "[camera]\ndevice = 0\n\n[session]\ncooldown = \"1ms\"\n")

	out, err := execute(CreateRestartCmd(), "--camera", path, "--hard", "--to", "13")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	var status session.Status
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if status.State != session.StateOpen {
		t.Errorf("state = %s, want open", status.State)
	}
	if status.ResolutionIndex == nil || *status.ResolutionIndex != 13 {
		t.Errorf("resolution index = %v, want 13", status.ResolutionIndex)
	}
	if dev.Opens() < 3 {
		t.Errorf("opens = %d, a hard restart goes through the safe resolutions", dev.Opens())
	}
}

func TestRecordCommandStopsAfterDuration(t *testing.T) {
	withFakes(t, capturetest.NewDevice(nil))
	dir := t.TempDir()
	path := writeCamera(t, "[camera]\ndevice = 0\n")

	out, err := execute(CreateRecordCmd(), "--camera", path, "--output", dir, "--duration", "50ms")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	files := strings.Fields(out)
	if len(files) == 0 {
		t.Fatal("no recordings listed")
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("listed file %s: %v", f, err)
		}
	}
}

func TestSignalContextDeadline(t *testing.T) {
	ctx, stop := signalContext(context.Background(), 10*time.Millisecond)
	defer stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
	if !isShutdown(ctx.Err()) {
		t.Errorf("err = %v", ctx.Err())
	}
}
