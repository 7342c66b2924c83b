package session

import (
	"time"

	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/properties"
)

// DeviceResolver picks a device index when none was given explicitly.
type DeviceResolver interface {
	Resolve() (int, error)
}

// ResolverFunc adapts a function to DeviceResolver.
type ResolverFunc func() (int, error)

// Resolve calls f.
func (f ResolverFunc) Resolve() (int, error) {
	return f()
}

// Sleeper blocks for d. Tests substitute a recorder.
type Sleeper func(d time.Duration)

// Config tunes a session. Zero values fall back to defaults.
type Config struct {
	Catalog    *catalog.Catalog
	Registry   *properties.Registry
	Thresholds properties.Thresholds

	// ManualExposure is written to every auto exposure id before the
	// exposure retry.
	ManualExposure float64
	// Cooldown is one unit of the restart protocol's waits.
	Cooldown time.Duration
	// Attempts is the number of restart attempts at the target index.
	Attempts int
	// BackoffUnits is the number of cooldown units between failed attempts.
	BackoffUnits int
	// StabilityFrames is the number of extra frames required in recording mode.
	StabilityFrames int
	// SafeIndices are cycled by a hard reset. The first one is also used for
	// the intermediate open before later attempts. Defaults to the catalog's.
	SafeIndices []int
}

// DefaultConfig returns the tuning used for the ELP 8MP family.
func DefaultConfig() Config {
	return Config{
		Catalog:         catalog.Default(),
		Registry:        properties.Default(),
		Thresholds:      properties.DefaultThresholds(),
		ManualExposure:  properties.DefaultManualExposure,
		Cooldown:        time.Second,
		Attempts:        3,
		BackoffUnits:    2,
		StabilityFrames: 4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Catalog == nil {
		c.Catalog = d.Catalog
	}
	if c.Registry == nil {
		c.Registry = d.Registry
	}
	if c.Thresholds == (properties.Thresholds{}) {
		c.Thresholds = d.Thresholds
	}
	if c.ManualExposure == 0 {
		c.ManualExposure = d.ManualExposure
	}
	if c.Cooldown == 0 {
		c.Cooldown = d.Cooldown
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.BackoffUnits <= 0 {
		c.BackoffUnits = d.BackoffUnits
	}
	if c.StabilityFrames <= 0 {
		c.StabilityFrames = d.StabilityFrames
	}
	if len(c.SafeIndices) == 0 {
		c.SafeIndices = c.Catalog.SafeIndices()
	}
	return c
}

// Option configures a Session.
type Option func(*Session)

// WithDeviceIndex pins the device index. It always wins over the resolver.
func WithDeviceIndex(index int) Option {
	return func(s *Session) {
		s.deviceIndex = index
		s.resolved = true
	}
}

// WithResolver sets the strategy used when no device index is pinned.
func WithResolver(r DeviceResolver) Option {
	return func(s *Session) {
		s.resolver = r
	}
}

// WithSleeper replaces time.Sleep for the restart protocol.
func WithSleeper(sleep Sleeper) Option {
	return func(s *Session) {
		s.sleep = sleep
	}
}

// WithLogger sets the logger. Defaults to the "session" module logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithHooks registers notification callbacks.
func WithHooks(h Hooks) Option {
	return func(s *Session) {
		s.hooks = h
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}
