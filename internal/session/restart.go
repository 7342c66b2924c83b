package session

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/uvcctl/internal/capture"
)

// RestartOptions modify Restart.
type RestartOptions struct {
	// Index overrides the target resolution. Defaults to the last requested
	// index, then the catalog default.
	Index *int
	// Recording applies the stability gate to each reopen.
	Recording bool
	// Hard cycles throwaway opens at the safe indices before reopening, and
	// an intermediate open before each later attempt.
	Hard bool
	// DeviceOverride replaces the resolved device index for this and all
	// later opens.
	DeviceOverride *int
}

// Restart closes the device and reopens it with bounded retries. Waits are
// plain blocking sleeps; ctx is checked only between attempts. On exhaustion
// the session ends in StateFailed.
func (s *Session) Restart(ctx context.Context, opts RestartOptions) error {
	target := s.cfg.Catalog.DefaultIndex()
	switch {
	case opts.Index != nil:
		target = *opts.Index
	case s.lastRequested != nil:
		target = *s.lastRequested
	}

	if !s.cfg.Catalog.Valid(target) {
		return newError(CodeInvalidIndex, "restart", target,
			fmt.Sprintf("resolution index must be in [0, %d)", s.cfg.Catalog.Len()), nil)
	}

	if opts.DeviceOverride != nil {
		s.deviceIndex, s.resolved = *opts.DeviceOverride, true
	}

	s.logger.Info("Restarting device",
		"session_id", s.id, "device_index", s.deviceIndex, "resolution_index", target, "hard", opts.Hard, "recording", opts.Recording)

	_ = s.Close()
	s.sleep(s.cfg.Cooldown)
	s.setState(StateRestarting, nil)

	if opts.Hard {
		for _, idx := range s.cfg.SafeIndices {
			s.throwaway(idx, false)
			s.sleep(s.cfg.Cooldown)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			s.setState(StateClosed, err)
			return err
		}

		if opts.Hard && attempt > 1 && len(s.cfg.SafeIndices) > 0 {
			s.throwaway(s.cfg.SafeIndices[0], true)
			s.sleep(s.cfg.Cooldown)
		}

		s.setState(StateRestarting, nil)
		lastErr = s.open(target, opts.Recording)
		s.notifyAttempt(attempt, target, false, lastErr)
		if lastErr == nil {
			s.logger.Info("Device restarted", "session_id", s.id, "attempt", attempt, "resolution_index", target)
			return nil
		}

		s.logger.Warn("Restart attempt failed",
			"session_id", s.id, "attempt", attempt, "of", s.cfg.Attempts, "resolution_index", target, "error", lastErr)
		if attempt < s.cfg.Attempts {
			s.sleep(time.Duration(s.cfg.BackoffUnits) * s.cfg.Cooldown)
		}
	}

	fallback := s.cfg.Catalog.DefaultIndex()
	if target != fallback {
		if err := ctx.Err(); err != nil {
			s.setState(StateClosed, err)
			return err
		}
		s.logger.Warn("Trying known-good resolution", "session_id", s.id, "resolution_index", fallback)
		s.setState(StateRestarting, nil)
		lastErr = s.open(fallback, opts.Recording)
		s.notifyAttempt(s.cfg.Attempts+1, fallback, true, lastErr)
		if lastErr == nil {
			s.logger.Info("Device restarted at fallback resolution", "session_id", s.id, "resolution_index", fallback)
			return nil
		}
	}

	s.setState(StateFailed, lastErr)
	s.logger.Error("Restart exhausted", "session_id", s.id, "resolution_index", target, "error", lastErr)
	return newError(CodeRestartExhausted, "restart", target,
		fmt.Sprintf("device did not recover after %d attempts", s.cfg.Attempts), lastErr)
}

// throwaway opens the device at a safe resolution, pulls one frame and closes
// it again. Some UVC firmware only recovers after a clean low-resolution
// open. Every failure is ignored.
func (s *Session) throwaway(index int, withFourCC bool) {
	entry, ok := s.cfg.Catalog.Get(index)
	if !ok {
		return
	}
	device, err := s.resolveDevice()
	if err != nil {
		return
	}

	h, err := s.opener.Open(device)
	if err != nil {
		s.logger.Debug("Throwaway open failed", "session_id", s.id, "device_index", device, "error", err)
		return
	}
	h.Set(capture.PropFrameWidth, float64(entry.Width))
	h.Set(capture.PropFrameHeight, float64(entry.Height))
	if withFourCC {
		h.Set(capture.PropFourCC, float64(entry.Format.FourCC()))
	}
	_, ok = h.ReadFrame()
	_ = h.Close()
	s.logger.Debug("Throwaway open", "session_id", s.id, "resolution_index", index, "frame", ok)
}

func (s *Session) notifyAttempt(attempt, index int, final bool, err error) {
	if s.hooks.OnRestartAttempt != nil {
		s.hooks.OnRestartAttempt(RestartAttempt{
			SessionID:       s.id,
			Attempt:         attempt,
			ResolutionIndex: index,
			Final:           final,
			Err:             err,
		})
	}
}
