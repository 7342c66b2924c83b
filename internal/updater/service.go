package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/version"
)

// releaseSource is the part of *selfupdate.Updater the service uses.
type releaseSource interface {
	DetectLatest(ctx context.Context, repository selfupdate.Repository) (*selfupdate.Release, bool, error)
	UpdateTo(ctx context.Context, rel *selfupdate.Release, cmdPath string) error
}

type service struct {
	source     releaseSource
	repository selfupdate.Repository
	slug       string
	backups    *backupStore
	disabled   error
	logger     logging.Logger

	executable   func() (string, error)
	restart      func()
	restartDelay time.Duration

	// op serializes Check, Apply and Rollback. A second caller gets ErrBusy.
	op sync.Mutex

	mu        sync.Mutex
	phase     Phase
	pending   *selfupdate.Release
	lastErr   error
	checkedAt *time.Time
}

// NewService builds the GitHub-backed updater. When the directory holding
// the executable is not writable the returned service is disabled rather
// than an error.
func NewService(opts Options) (Service, error) {
	logger := logging.GetLogger("updater")

	if err := probeWritable(); err != nil {
		logger.Warn("Self-update disabled", "reason", err)
		return &service{phase: PhaseIdle, disabled: fmt.Errorf("%w: %v", ErrDisabled, err), logger: logger}, nil
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("github source: %w", err)
	}
	up, err := selfupdate.NewUpdater(selfupdate.Config{Source: source, Prerelease: opts.Prerelease})
	if err != nil {
		return nil, fmt.Errorf("updater: %w", err)
	}
	return newService(up, opts, logger), nil
}

func newService(source releaseSource, opts Options, logger logging.Logger) *service {
	repo := opts.Repository
	if repo == "" {
		repo = DefaultRepository
	}
	s := &service{
		source:       source,
		repository:   selfupdate.ParseSlug(repo),
		slug:         repo,
		logger:       logger,
		executable:   selfupdate.ExecutablePath,
		restartDelay: 500 * time.Millisecond,
		phase:        PhaseIdle,
	}
	if opts.RestartAfterApply {
		s.restart = terminateSelf
	}

	dir := opts.BackupDir
	if dir == "" {
		var err error
		if dir, err = defaultBackupDir(); err != nil {
			logger.Warn("Rollback unavailable", "error", err)
			return s
		}
	}
	backups, err := openBackupStore(dir)
	if err != nil {
		logger.Warn("Rollback unavailable", "dir", dir, "error", err)
		return s
	}
	s.backups = backups
	return s
}

// probeWritable creates and removes a file next to the resolved executable.
func probeWritable() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	if exe, err = filepath.EvalSymlinks(exe); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(exe), ".uvcctl-update-*")
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(f.Name())
}

func (s *service) Disabled() error { return s.disabled }

func (s *service) begin() error {
	if s.disabled != nil {
		return s.disabled
	}
	if !s.op.TryLock() {
		return ErrBusy
	}
	return nil
}

func (s *service) Check(ctx context.Context) (Release, error) {
	if err := s.begin(); err != nil {
		return Release{}, err
	}
	defer s.op.Unlock()
	return s.check(ctx)
}

// check asks the source for the newest release. A dev build is always
// considered outdated. Caller holds op.
func (s *service) check(ctx context.Context) (Release, error) {
	s.setPhase(PhaseChecking, nil)
	rel, found, err := s.source.DetectLatest(ctx, s.repository)

	now := time.Now()
	s.mu.Lock()
	s.checkedAt = &now
	s.mu.Unlock()

	switch {
	case err != nil:
		return Release{}, s.fail(fmt.Errorf("check %s: %w", s.slug, err))
	case !found || rel == nil:
		return Release{}, s.fail(ErrNoRelease)
	}

	current := version.Version
	info := Release{
		Current:     current,
		Latest:      rel.Version(),
		Newer:       current == "dev" || rel.GreaterThan(current),
		Notes:       rel.ReleaseNotes,
		URL:         rel.URL,
		PublishedAt: rel.PublishedAt,
		Size:        rel.AssetByteSize,
	}

	s.mu.Lock()
	if info.Newer {
		s.phase, s.pending = PhaseAvailable, rel
	} else {
		s.phase, s.pending = PhaseIdle, nil
	}
	s.mu.Unlock()
	return info, nil
}

// Apply backs up the running binary, then installs the newest release. A
// failed install puts the backup back.
func (s *service) Apply(ctx context.Context) (Release, error) {
	if err := s.begin(); err != nil {
		return Release{}, err
	}
	defer s.op.Unlock()

	info, err := s.check(ctx)
	if err != nil {
		return info, err
	}
	if !info.Newer {
		return info, ErrUpToDate
	}

	s.mu.Lock()
	rel := s.pending
	s.mu.Unlock()

	exe, err := s.executable()
	if err != nil {
		return info, s.fail(fmt.Errorf("locate executable: %w", err))
	}
	s.setPhase(PhaseApplying, nil)

	if s.backups != nil {
		if _, err := s.backups.save(exe, info.Current); err != nil {
			return info, s.fail(fmt.Errorf("back up %s: %w", exe, err))
		}
	}

	if err := s.source.UpdateTo(ctx, rel, exe); err != nil {
		applyErr := s.fail(fmt.Errorf("install %s: %w", info.Latest, err))
		if s.backups != nil {
			if _, rbErr := s.backups.restore(); rbErr != nil {
				s.logger.Error("Automatic rollback failed", "error", rbErr)
			} else {
				s.logger.Warn("Install failed, previous binary restored", "error", err)
			}
		}
		return info, applyErr
	}

	s.logger.Info("Update installed", "from", info.Current, "to", info.Latest)
	s.afterChange(PhaseIdle)
	return info, nil
}

func (s *service) Rollback(context.Context) (Backup, error) {
	if err := s.begin(); err != nil {
		return Backup{}, err
	}
	defer s.op.Unlock()

	if s.backups == nil {
		return Backup{}, ErrNoBackup
	}
	b, err := s.backups.restore()
	if err != nil {
		if errors.Is(err, ErrNoBackup) {
			return b, err
		}
		return b, s.fail(err)
	}
	s.logger.Info("Rolled back", "version", b.Version, "path", b.Target)
	s.afterChange(PhaseRolledBack)
	return b, nil
}

func (s *service) Status() Status {
	s.mu.Lock()
	st := Status{
		Phase:     s.phase,
		Current:   version.Version,
		CheckedAt: s.checkedAt,
	}
	if s.pending != nil {
		st.Target = s.pending.Version()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()

	if s.backups != nil {
		st.Backup = s.backups.latest()
	}
	return st
}

func (s *service) setPhase(p Phase, err error) {
	s.mu.Lock()
	s.phase, s.lastErr = p, err
	s.mu.Unlock()
}

func (s *service) fail(err error) error {
	s.setPhase(PhaseFailed, err)
	return err
}

// afterChange settles the phase once the binary on disk changed and, when
// configured, schedules the restart that picks it up.
func (s *service) afterChange(settled Phase) {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	if s.restart == nil {
		s.setPhase(settled, nil)
		return
	}
	s.setPhase(PhaseRestarting, nil)
	// Leaves time for the HTTP response to flush.
	time.AfterFunc(s.restartDelay, s.restart)
}

func terminateSelf() {
	logger := logging.GetLogger("updater")
	logger.Info("Restarting to load the new binary")
	self, err := os.FindProcess(os.Getpid())
	if err == nil {
		err = self.Signal(syscall.SIGTERM)
	}
	if err != nil {
		logger.Error("Failed to signal restart", "error", err)
	}
}
