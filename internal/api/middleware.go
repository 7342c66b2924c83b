package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/uvcctl/internal/logging"
)

// polledPaths are hit by dashboards often enough that success logs at debug.
var polledPaths = map[string]bool{
	"/api/health":  true,
	"/api/session": true,
}

// logRequests logs each request after it completes.
func logRequests(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	u := ctx.URL()
	status := ctx.Status()
	attrs := []slog.Attr{
		slog.String("method", ctx.Method()),
		slog.String("path", u.Path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if u.RawQuery != "" {
		attrs = append(attrs, slog.String("query", u.RawQuery))
	}
	if op := ctx.Operation(); op != nil {
		attrs = append(attrs, slog.String("operation", op.OperationID))
	}
	logging.GetLogger("http").LogAttrs(ctx.Context(), requestLevel(ctx.Method(), u.Path, status), "HTTP request completed", attrs...)
}

// requestLevel maps 5xx to error and 4xx to warn. Preflights and polled
// paths log at debug; everything else at info.
func requestLevel(method, path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case method == http.MethodOptions, polledPaths[path]:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
