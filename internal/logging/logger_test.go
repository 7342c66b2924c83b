package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// reset clears package state so each test starts uninitialized.
func reset(t *testing.T) {
	t.Helper()
	std = newRegistry()
}

func enabled(l *slog.Logger, level slog.Level) bool {
	return l.Handler().Enabled(context.Background(), level)
}

func TestModuleLevels(t *testing.T) {
	reset(t)
	Initialize(Config{
		Level:  "info",
		Output: "stderr",
		Modules: map[string]string{
			"session": "debug",
			"http":    "warn",
			"sink":    "nonsense",
		},
	})

	tests := []struct {
		module string
		lowest slog.Level
	}{
		{"session", slog.LevelDebug},
		{"http", slog.LevelWarn},
		{"sink", slog.LevelInfo},
		{"pump", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			logger := GetLogger(tt.module)
			for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
				if got, want := enabled(logger, level), level >= tt.lowest; got != want {
					t.Errorf("%s enabled = %v, want %v", level, got, want)
				}
			}
		})
	}
}

func TestLoggerFetchedBeforeInitialize(t *testing.T) {
	reset(t)

	early := GetLogger("capture")
	if enabled(early, slog.LevelDebug) {
		t.Fatal("loggers default to info before Initialize")
	}

	Initialize(Config{Level: "info", Output: "stderr", Modules: map[string]string{"capture": "debug"}})

	if !enabled(early, slog.LevelDebug) {
		t.Error("early logger should follow the module level once configured")
	}
	if !enabled(GetLogger("capture"), slog.LevelDebug) {
		t.Error("fresh logger should have debug enabled")
	}
}

func TestSetModuleLevel(t *testing.T) {
	reset(t)
	logger := GetLogger("pump")

	if !SetModuleLevel("pump", "error") {
		t.Fatal("valid level rejected")
	}
	if enabled(logger, slog.LevelWarn) {
		t.Error("warn should be off at error level")
	}
	if SetModuleLevel("pump", "loud") {
		t.Error("invalid level accepted")
	}
	if !enabled(logger, slog.LevelError) {
		t.Error("rejected change must leave the level alone")
	}
}

func TestParseLevel(t *testing.T) {
	valid := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range valid {
		if got, err := ParseLevel(in); err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "trace", "fatal"} {
		if _, err := ParseLevel(in); err == nil {
			t.Errorf("ParseLevel(%q) accepted", in)
		}
	}
}

func TestFanoutRespectsMemberLevels(t *testing.T) {
	var verbose, quiet bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&verbose, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	logger := slog.New(h).With("module", "session")

	logger.Debug("probing index", "index", 11)
	logger.Warn("restart failed")

	if strings.Count(verbose.String(), "\n") != 2 {
		t.Errorf("debug handler got:\n%s", verbose.String())
	}
	if strings.Contains(quiet.String(), "probing index") || !strings.Contains(quiet.String(), "restart failed") {
		t.Errorf("warn handler got:\n%s", quiet.String())
	}
	if !strings.Contains(quiet.String(), "module=session") {
		t.Error("WithAttrs not propagated to members")
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestFanoutJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, nil)
	h := fanout{failingHandler{text}, text}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "frame", 0)
	err := h.Handle(context.Background(), r)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(buf.String(), "frame") {
		t.Error("healthy member should still receive the record")
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)
	if rb.ReadAll() != nil {
		t.Fatal("empty buffer should read nil")
	}
	for _, msg := range []string{"a", "b", "c", "d"} {
		rb.Write(LogEntry{Message: msg})
	}

	all := rb.ReadAll()
	if len(all) != 3 || all[0].Message != "b" || all[2].Message != "d" {
		t.Fatalf("ReadAll() = %+v", all)
	}
	if all[2].Seq != 4 {
		t.Errorf("seq = %d, want 4", all[2].Seq)
	}
	if tail := rb.Tail(2); len(tail) != 2 || tail[0].Message != "c" {
		t.Errorf("Tail(2) = %+v", tail)
	}
	if got := len(rb.Tail(10)); got != 3 {
		t.Errorf("Tail(10) returned %d entries", got)
	}
}

type resolution struct{ w, h int }

func (r resolution) String() string { return "WxH" }

func TestBufferHandlerEntry(t *testing.T) {
	reset(t)
	Initialize(Config{Level: "debug", Output: "stderr"})

	var got []LogEntry
	SetLogCallback(func(e LogEntry) { got = append(got, e) })
	defer SetLogCallback(nil)

	logger := slog.New(newBufferHandler(slog.LevelDebug)).With("module", "sink", "device", 2)
	logger.WithGroup("frame").Info("Recorded",
		"width", 1920,
		"err", errors.New("short write"),
		"took", 1500*time.Millisecond,
		"size", resolution{1920, 1080},
		slog.Group("jpeg", "quality", 90),
	)
	logger.Debug("dropped")

	if len(got) != 2 {
		t.Fatalf("callback entries = %d", len(got))
	}
	e := got[0]
	if e.Module != "sink" || e.Level != "info" || e.Message != "Recorded" || e.Seq != 1 {
		t.Errorf("entry = %+v", e)
	}

	want := map[string]any{
		"device":             int64(2),
		"frame.width":        int64(1920),
		"frame.err":          "short write",
		"frame.took":         "1.5s",
		"frame.size":         "WxH",
		"frame.jpeg.quality": int64(90),
	}
	for k, v := range want {
		if e.Attributes[k] != v {
			t.Errorf("attributes[%q] = %#v, want %#v", k, e.Attributes[k], v)
		}
	}
	if _, ok := e.Attributes["module"]; ok {
		t.Error("module belongs in Entry.Module, not the attributes")
	}
	if got[1].Level != "debug" || GetBuffer().Count() != 2 {
		t.Errorf("second entry = %+v, buffered = %d", got[1], GetBuffer().Count())
	}
}

func TestBufferHandlerWithoutTargets(t *testing.T) {
	reset(t)
	logger := slog.New(newBufferHandler(slog.LevelInfo))
	logger.Info("nobody listening")
}

func TestJournalHelpers(t *testing.T) {
	fields := map[string]string{
		"frame.width":      "FRAME_WIDTH",
		"resolution-index": "RESOLUTION_INDEX",
		"error":            "ERROR",
	}
	for in, want := range fields {
		if got := journalField(in); got != want {
			t.Errorf("journalField(%q) = %q, want %q", in, got, want)
		}
	}

	priorities := []struct {
		level slog.Level
		want  journal.Priority
	}{
		{slog.LevelDebug, journal.PriDebug},
		{slog.LevelInfo, journal.PriInfo},
		{slog.LevelWarn, journal.PriWarning},
		{slog.LevelError + 4, journal.PriErr},
	}
	for _, tt := range priorities {
		if got := journalPriority(tt.level); got != tt.want {
			t.Errorf("journalPriority(%s) = %d, want %d", tt.level, got, tt.want)
		}
	}

	if got := journalValue(slog.Float64Value(29.97)); got != "29.97" {
		t.Errorf("journalValue(float) = %q", got)
	}
}
