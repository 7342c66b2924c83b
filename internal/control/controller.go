// Package control serializes access to a device session. The HTTP API, the
// config watcher and the frame pump all go through one Controller.
package control

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/uvcctl/internal/capture"
	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/events"
	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/metrics"
	"github.com/smazurov/uvcctl/internal/properties"
	"github.com/smazurov/uvcctl/internal/session"
)

// EventPublisher publishes controller events.
type EventPublisher interface {
	Publish(ev events.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// PropertyView is a property reading plus its probe verdict.
type PropertyView struct {
	properties.Reading
	Changeable properties.Changeable `json:"changeable"`
}

// Controller owns a session and a mutex.
type Controller struct {
	mu     sync.Mutex
	sess   *session.Session
	bus    EventPublisher
	logger logging.Logger
}

// New creates a controller around a fresh session. bus may be nil.
func New(opener capture.Opener, cfg session.Config, bus EventPublisher, opts ...session.Option) *Controller {
	if bus == nil {
		bus = nopPublisher{}
	}
	c := &Controller{
		bus:    bus,
		logger: logging.GetLogger("session"),
	}
	opts = append(opts, session.WithHooks(session.Hooks{
		OnStateChange:    c.onStateChange,
		OnRestartAttempt: c.onRestartAttempt,
		OnFrame:          metrics.RecordFrame,
	}))
	c.sess = session.New(opener, cfg, opts...)
	metrics.SetSessionState(string(c.sess.State()))
	return c
}

// Catalog returns the resolution catalog. It is immutable.
func (c *Controller) Catalog() *catalog.Catalog {
	return c.sess.Catalog()
}

// Registry returns the property registry. It is immutable.
func (c *Controller) Registry() *properties.Registry {
	return c.sess.Registry()
}

// Status returns the session status.
func (c *Controller) Status() session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Status()
}

// Open opens the session at the catalog index.
func (c *Controller) Open(ctx context.Context, index int, recording bool) (session.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	err := c.sess.Open(ctx, index, session.OpenOptions{Recording: recording})
	metrics.ObserveOpen(resultLabel(err), time.Since(start))
	return c.sess.Status(), err
}

// Close closes the session.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Close()
}

// Restart runs the restart protocol.
func (c *Controller) Restart(ctx context.Context, opts session.RestartOptions) (session.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.sess.Restart(ctx, opts)
	if errors.Is(err, session.ErrRestartExhausted) {
		metrics.IncRestartsExhausted()
	}
	return c.sess.Status(), err
}

// ReadFrame pulls one frame.
func (c *Controller) ReadFrame() (capture.Frame, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.ReadFrame()
}

// SetProperty writes a property through the fallback chain.
func (c *Controller) SetProperty(name string, value float64) (properties.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setProperty(name, value)
}

func (c *Controller) setProperty(name string, value float64) (properties.Result, error) {
	res, err := c.sess.SetProperty(name, value)
	if err != nil && !errors.Is(err, session.ErrPropertyNotSettable) {
		return res, err
	}

	metrics.RecordPropertyWrite(res.Name, res.Applied)
	c.bus.Publish(events.PropertyChangedEvent{
		Name:      res.Name,
		Requested: res.Requested,
		Value:     res.Value,
		Applied:   res.Applied,
		AppliedID: uint32(res.AppliedID),
		Attempts:  len(res.Attempts),
		Timestamp: events.Now(),
	})
	return res, err
}

// Probe runs the changeable probe on one property.
func (c *Controller) Probe(name string) (properties.ProbeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.sess.ProbeChangeable(name)
	if err != nil {
		return res, err
	}
	c.publishProbe(res)
	return res, nil
}

// ProbeAll probes every property except frame rate.
func (c *Controller) ProbeAll() ([]properties.ProbeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	results, err := c.sess.ProbeAll()
	for _, res := range results {
		c.publishProbe(res)
	}
	return results, err
}

// Properties reads every property along with its recorded probe verdict.
func (c *Controller) Properties() ([]PropertyView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	readings, err := c.sess.Snapshot()
	if err != nil {
		return nil, err
	}
	views := make([]PropertyView, len(readings))
	for i, r := range readings {
		views[i] = PropertyView{Reading: r, Changeable: c.sess.Changeable(r.Name)}
	}
	return views, nil
}

// ApplyPresets writes every preset in registry order. Failures do not stop
// the remaining writes; they are joined into the returned error.
func (c *Controller) ApplyPresets(presets map[string]float64) ([]properties.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sess.IsOpen() {
		return nil, session.ErrSessionClosed
	}

	pending := make(map[string]float64, len(presets))
	for name, v := range presets {
		pending[properties.Normalize(name)] = v
	}

	var (
		results []properties.Result
		errs    []error
	)
	for _, spec := range c.sess.Registry().Specs() {
		name := spec.Name
		v, ok := pending[name]
		if !ok {
			continue
		}
		delete(pending, name)
		res, err := c.setProperty(name, v)
		results = append(results, res)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(pending) > 0 {
		unknown := make([]string, 0, len(pending))
		for name := range pending {
			unknown = append(unknown, name)
		}
		sort.Strings(unknown)
		errs = append(errs, fmt.Errorf("%w: %s", session.ErrUnknownProperty, strings.Join(unknown, ", ")))
	}

	c.logger.Info("Applied property presets", "requested", len(presets), "applied", countApplied(results))
	return results, errors.Join(errs...)
}

func (c *Controller) publishProbe(res properties.ProbeResult) {
	c.bus.Publish(events.PropertyProbedEvent{
		Name:       res.Name,
		Changeable: res.Changeable.String(),
		Timestamp:  events.Now(),
	})
}

func (c *Controller) onStateChange(ch session.StateChange) {
	metrics.SetSessionState(string(ch.To))
	ev := events.SessionStateEvent{
		SessionID:       ch.SessionID,
		From:            string(ch.From),
		To:              string(ch.To),
		DeviceIndex:     ch.DeviceIndex,
		ResolutionIndex: ch.ResolutionIndex,
		Timestamp:       events.Now(),
	}
	if ch.Err != nil {
		ev.Error = ch.Err.Error()
	}
	c.bus.Publish(ev)
}

func (c *Controller) onRestartAttempt(a session.RestartAttempt) {
	metrics.RecordRestartAttempt(a.Err == nil, a.Final)
	ev := events.RestartAttemptEvent{
		SessionID:       a.SessionID,
		Attempt:         a.Attempt,
		ResolutionIndex: a.ResolutionIndex,
		Final:           a.Final,
		Success:         a.Err == nil,
		Timestamp:       events.Now(),
	}
	if a.Err != nil {
		ev.Error = a.Err.Error()
	}
	c.bus.Publish(ev)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := session.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}

func countApplied(results []properties.Result) int {
	n := 0
	for _, r := range results {
		if r.Applied {
			n++
		}
	}
	return n
}
