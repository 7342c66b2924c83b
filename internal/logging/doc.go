// Package logging provides structured logging with per-module log levels.
//
// Records fan out to the console (stdout or stderr), the systemd journal
// when journald is reachable, and an in-memory ring buffer that backs the
// /api/logs endpoint and the log SSE stream.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"session": "debug",
//			"http":    "warn",
//		},
//	})
//
// Then take a module logger:
//
//	logger := logging.GetLogger("session")
//	logger.Info("Device open", "device_index", 2, "resolution_index", 11)
//
// Loggers obtained before Initialize stay valid; their levels follow the
// configuration once it is applied.
//
// Modules in use: session, capture, devices, pump, sink, control, api, http,
// config, updater.
//
// Journal entries carry SYSLOG_IDENTIFIER=uvcctl and one uppercase field per
// attribute:
//
//	journalctl -t uvcctl MODULE=session
//	journalctl -t uvcctl -p warning --since "10m"
package logging
