package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger that components depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config selects the console format and per-module levels.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Output  string            `toml:"output"` // stdout (default) or stderr
	Modules map[string]string `toml:"modules"`
}

type module struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// registry owns every module logger. Loggers handed out before Initialize
// keep working because their level vars are shared with the replacements.
type registry struct {
	mu       sync.RWMutex
	cfg      Config
	ready    bool
	root     slog.LevelVar
	modules  map[string]*module
	buffer   *RingBuffer
	callback LogCallback
}

func newRegistry() *registry {
	return &registry{modules: make(map[string]*module)}
}

var std = newRegistry()

// Initialize applies cfg to the default logger and to every module logger,
// including the ones fetched earlier.
func Initialize(cfg Config) {
	r := std
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg, r.ready = cfg, true
	r.buffer = NewRingBuffer(defaultBufferSize)
	r.root.Set(r.levelFor(""))

	for name, m := range r.modules {
		m.level.Set(r.levelFor(name))
		r.modules[name] = &module{logger: r.newLogger(name, m.level), level: m.level}
	}
	slog.SetDefault(slog.New(r.handler(&r.root)))
}

// GetLogger returns the logger for a module, creating it on first use.
// Records carry a "module" attribute.
func GetLogger(name string) *slog.Logger {
	r := std
	r.mu.RLock()
	m, ok := r.modules[name]
	r.mu.RUnlock()
	if ok {
		return m.logger
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.module(name).logger
}

// SetModuleLevel changes a module's level at runtime. It reports false for
// an unknown level string.
func SetModuleLevel(name, level string) bool {
	parsed, err := ParseLevel(level)
	if err != nil {
		return false
	}
	r := std
	r.mu.Lock()
	defer r.mu.Unlock()
	r.module(name).level.Set(parsed)
	return true
}

// GetBuffer returns the ring buffer behind /api/logs, nil before Initialize.
func GetBuffer() *RingBuffer {
	std.mu.RLock()
	defer std.mu.RUnlock()
	return std.buffer
}

// SetLogCallback registers fn to receive every buffered entry.
func SetLogCallback(fn LogCallback) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.callback = fn
}

func getCallback() LogCallback {
	std.mu.RLock()
	defer std.mu.RUnlock()
	return std.callback
}

// module returns the named entry, creating it. Caller holds mu.
func (r *registry) module(name string) *module {
	if m, ok := r.modules[name]; ok {
		return m
	}
	m := &module{level: new(slog.LevelVar)}
	m.level.Set(r.levelFor(name))
	m.logger = r.newLogger(name, m.level)
	r.modules[name] = m
	return m
}

// levelFor resolves a module's level: its override, then the global level,
// then info. The empty name is the global level.
func (r *registry) levelFor(name string) slog.Level {
	if !r.ready {
		return slog.LevelInfo
	}
	if s, ok := r.cfg.Modules[name]; ok && name != "" {
		if l, err := ParseLevel(s); err == nil {
			return l
		}
	}
	if l, err := ParseLevel(r.cfg.Level); err == nil {
		return l
	}
	return slog.LevelInfo
}

func (r *registry) newLogger(name string, level slog.Leveler) *slog.Logger {
	return slog.New(r.handler(level)).With("module", name)
}

// handler fans records out to the console, the journal when running under
// systemd, and the ring buffer.
func (r *registry) handler(level slog.Leveler) slog.Handler {
	cfg := r.cfg
	if !r.ready {
		cfg = Config{Format: "text"}
	}
	out := os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}

	var hs fanout
	if writable(out) {
		opts := &slog.HandlerOptions{Level: level}
		if cfg.Format == "json" {
			hs = append(hs, slog.NewJSONHandler(out, opts))
		} else {
			hs = append(hs, slog.NewTextHandler(out, opts))
		}
	}
	if journalAvailable() {
		hs = append(hs, newJournalHandler(level))
	}
	hs = append(hs, newBufferHandler(level))

	if len(hs) == 1 {
		return hs[0]
	}
	return hs
}

// writable reports whether f is a terminal, pipe, socket or regular file.
func writable(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	m := fi.Mode()
	return m&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || m.IsRegular()
}

// NewDiscardLogger returns a logger that drops everything.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
