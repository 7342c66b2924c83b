package main

import (
	"errors"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/uvcctl/cmd"
	"github.com/smazurov/uvcctl/internal/config"
	"github.com/smazurov/uvcctl/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Camera settings
	CameraConfigFile string `help:"Camera definition file" default:"camera.toml" toml:"camera.config_file" env:"CAMERA_CONFIG_FILE"`
	CameraAutoOpen   bool   `help:"Open the camera at startup" default:"true" toml:"camera.auto_open" env:"CAMERA_AUTO_OPEN"`

	// Snapshot settings
	SnapshotMaxWidth int `help:"Downscale API snapshots wider than this (0 keeps full size)" default:"0" toml:"snapshot.max_width" env:"SNAPSHOT_MAX_WIDTH"`
	SnapshotQuality  int `help:"API snapshot JPEG quality" default:"90" toml:"snapshot.quality" env:"SNAPSHOT_QUALITY"`

	// Observability settings
	MetricsPrometheusEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSEEnabled        bool `help:"Publish frame stats on the event stream" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Update settings
	UpdateEnabled    bool   `help:"Enable self-update endpoints" default:"true" toml:"update.enabled" env:"UPDATE_ENABLED"`
	UpdateRepository string `help:"GitHub repository releases come from" default:"smazurov/uvcctl" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Consider prereleases" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingCapture string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingDevices string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingPump    string `help:"Frame pump logging level" default:"info" toml:"logging.pump" env:"LOGGING_PUMP"`
	LoggingSink    string `help:"Recorder, snapshot and preview logging level" default:"info" toml:"logging.sink" env:"LOGGING_SINK"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingConfig  string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingUpdater string `help:"Updater logging level" default:"info" toml:"logging.updater" env:"LOGGING_UPDATER"`
	LoggingMetrics string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			logging.GetLogger("main").Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"session": opts.LoggingSession,
				"capture": opts.LoggingCapture,
				"devices": opts.LoggingDevices,
				"pump":    opts.LoggingPump,
				"sink":    opts.LoggingSink,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingAPI,
				"config":  opts.LoggingConfig,
				"updater": opts.LoggingUpdater,
				"metrics": opts.LoggingMetrics,
			},
		})
		logger := logging.GetLogger("main")

		var current atomic.Pointer[application]

		hooks.OnStart(func() {
			app, err := newApplication(opts)
			if err != nil {
				logger.Error("Failed to set up uvcctl", "error", err)
				os.Exit(1)
			}
			current.Store(app)

			if startErr := app.run(); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if app := current.Load(); app != nil {
				app.stop()
			}
		})
	})

	cli.Root().Use = "uvcctl"
	cli.Root().AddCommand(
		cmd.CreateDevicesCmd(),
		cmd.CreateResolutionsCmd(),
		cmd.CreatePropertiesCmd(),
		cmd.CreateSetCmd(),
		cmd.CreateSnapshotCmd(),
		cmd.CreateRecordCmd(),
		cmd.CreatePreviewCmd(),
		cmd.CreateRestartCmd(),
		cmd.CreateSelfUpdateCmd(),
	)

	// Run the CLI
	cli.Run()
}
