package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry.
const SyslogIdentifier = "uvcctl"

// LogCallback receives every buffered entry. It lets the event bus publish
// logs without logging importing it.
type LogCallback func(entry LogEntry)

// scope is the attribute and group context accumulated through WithAttrs and
// WithGroup. The "module" attribute is reported separately.
type scope struct {
	attrs  []slog.Attr
	groups []string
}

func (s scope) withAttrs(attrs []slog.Attr) scope {
	next := scope{groups: s.groups}
	next.attrs = append(append(make([]slog.Attr, 0, len(s.attrs)+len(attrs)), s.attrs...), attrs...)
	return next
}

func (s scope) withGroup(name string) scope {
	if name == "" {
		return s
	}
	next := scope{attrs: s.attrs}
	next.groups = append(append(make([]string, 0, len(s.groups)+1), s.groups...), name)
	return next
}

// walk visits the scoped and record attributes as flattened key/value pairs,
// joining group names with sep. It returns the module attribute.
func (s scope) walk(r slog.Record, sep string, visit func(key string, v slog.Value)) string {
	module := "app"
	var emit func(prefix string, a slog.Attr)
	emit = func(prefix string, a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if a.Key == "module" && prefix == "" {
			module = a.Value.String()
			return
		}
		key := a.Key
		if prefix != "" {
			key = prefix + sep + a.Key
		}
		if a.Value.Kind() == slog.KindGroup {
			for _, ga := range a.Value.Group() {
				emit(key, ga)
			}
			return
		}
		visit(key, a.Value)
	}

	// Attributes added before a group keep their top-level position.
	for _, a := range s.attrs {
		emit("", a)
	}
	prefix := strings.Join(s.groups, sep)
	r.Attrs(func(a slog.Attr) bool {
		emit(prefix, a)
		return true
	})
	return module
}

// bufferHandler records entries into the global ring buffer and hands them
// to the log callback. Both are looked up per record so handlers created
// before Initialize start buffering once it runs.
type bufferHandler struct {
	level slog.Leveler
	scope scope
}

func newBufferHandler(level slog.Leveler) *bufferHandler {
	return &bufferHandler{level: level}
}

func (h *bufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *bufferHandler) Handle(_ context.Context, r slog.Record) error {
	buffer, callback := GetBuffer(), getCallback()
	if buffer == nil && callback == nil {
		return nil
	}

	attrs := make(map[string]any)
	module := h.scope.walk(r, ".", func(key string, v slog.Value) {
		attrs[key] = plainValue(v)
	})

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     module,
		Message:    r.Message,
		Attributes: attrs,
	}
	if buffer != nil {
		entry = buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &bufferHandler{level: h.level, scope: h.scope.withAttrs(attrs)}
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	return &bufferHandler{level: h.level, scope: h.scope.withGroup(name)}
}

// plainValue converts v into something that marshals to readable JSON.
func plainValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return x.Error()
		case fmt.Stringer:
			return x.String()
		default:
			return x
		}
	default:
		return v.Any()
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// journalHandler sends records to journald with one uppercase field per
// attribute, so `journalctl -t uvcctl MODULE=session` filters by module.
type journalHandler struct {
	level slog.Leveler
	scope scope
}

func newJournalHandler(level slog.Leveler) *journalHandler {
	return &journalHandler{level: level}
}

func (h *journalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *journalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := journalPriority(r.Level)
	fields := map[string]string{
		"PRIORITY":          strconv.Itoa(int(priority)),
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
	}
	module := h.scope.walk(r, "_", func(key string, v slog.Value) {
		fields[journalField(key)] = journalValue(v)
	})
	fields["MODULE"] = module

	if err := journal.Send(r.Message, priority, fields); err != nil {
		fmt.Fprintf(os.Stderr, "journal: %v\n", err)
		return err
	}
	return nil
}

func (h *journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &journalHandler{level: h.level, scope: h.scope.withAttrs(attrs)}
}

func (h *journalHandler) WithGroup(name string) slog.Handler {
	return &journalHandler{level: h.level, scope: h.scope.withGroup(name)}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

var journalFieldReplacer = strings.NewReplacer(".", "_", "-", "_")

// journalField maps an attribute key to a journal field name: uppercase
// letters, digits and underscores.
func journalField(key string) string {
	return strings.ToUpper(journalFieldReplacer.Replace(key))
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return v.String()
	}
}

// journalAvailable reports whether journald is reachable.
var journalAvailable = journal.Enabled

// fanout sends each record to every member handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = fn(h)
	}
	return next
}
