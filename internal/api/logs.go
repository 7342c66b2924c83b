package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/uvcctl/internal/events"
	"github.com/smazurov/uvcctl/internal/logging"
)

// LogStreamInput selects how much history to replay and which lines to send.
type LogStreamInput struct {
	Tail   int    `query:"tail" minimum:"0" example:"200" doc:"Replay only the newest N buffered lines, 0 for all"`
	Module string `query:"module" example:"session" doc:"Only lines from this module"`
	Level  string `query:"level" enum:"debug,info,warn,error" doc:"Only lines at or above this level"`
}

var logLevels = []string{"debug", "info", "warn", "error"}

// keep reports whether a line passes the filters.
func (in *LogStreamInput) keep(ev events.LogEntryEvent) bool {
	if in.Module != "" && ev.Module != in.Module {
		return false
	}
	if in.Level != "" && slices.Index(logLevels, ev.Level) < slices.Index(logLevels, in.Level) {
		return false
	}
	return true
}

func (s *Server) registerLogRoutes() {
	if s.options.EventBus == nil {
		return
	}
	bus := s.options.EventBus

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Buffered log lines first, then new lines as they are written",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, input *LogStreamInput, send sse.Sender) {
		// Subscribe before replaying so nothing written in between is lost.
		// Seq lets clients drop the overlap.
		live := make(chan any, 100)
		defer events.Pipe[events.LogEntryEvent](bus, live)()

		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.Tail(input.Tail) {
				ev := events.NewLogEntryEvent(entry)
				if !input.keep(ev) {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}

		forward(ctx, live, send, func(v any) bool {
			ev, ok := v.(events.LogEntryEvent)
			return ok && input.keep(ev)
		})
	})
}
