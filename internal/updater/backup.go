package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// backupStore keeps one previous binary plus a JSON sidecar naming its
// version and where it came from.
type backupStore struct {
	dir string

	mu      sync.Mutex
	current *Backup
}

func defaultBackupDir() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cache, "uvcctl", "backup"), nil
}

func openBackupStore(dir string) (*backupStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup dir: %w", err)
	}
	s := &backupStore{dir: dir}

	data, err := os.ReadFile(s.sidecar())
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, err
	}
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%s: %w", s.sidecar(), err)
	}
	// A sidecar without its binary is stale.
	if _, err := os.Stat(s.binary()); err == nil {
		s.current = &b
	}
	return s, nil
}

func (s *backupStore) binary() string  { return filepath.Join(s.dir, "uvcctl.prev") }
func (s *backupStore) sidecar() string { return filepath.Join(s.dir, "uvcctl.prev.json") }

// save copies target aside as the rollback candidate for version.
func (s *backupStore) save(target, version string) (Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := replaceFile(target, s.binary()); err != nil {
		return Backup{}, fmt.Errorf("copy %s: %w", target, err)
	}
	b := Backup{Version: version, SavedAt: time.Now().UTC(), Target: target}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return Backup{}, err
	}
	if err := os.WriteFile(s.sidecar(), data, 0o644); err != nil {
		return Backup{}, err
	}
	s.current = &b
	return b, nil
}

// restore copies the kept binary back over its original location.
func (s *backupStore) restore() (Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Backup{}, ErrNoBackup
	}
	if err := replaceFile(s.binary(), s.current.Target); err != nil {
		return Backup{}, fmt.Errorf("restore %s: %w", s.current.Target, err)
	}
	return *s.current, nil
}

func (s *backupStore) latest() *Backup {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	b := *s.current
	return &b
}

// replaceFile copies src to a temporary file beside dst and renames it into
// place, so dst is never left half written. Renaming also works while dst is
// the running executable.
func replaceFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
