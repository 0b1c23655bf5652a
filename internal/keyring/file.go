package keyring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrInsecurePermissions is returned when the password file is readable
// by other users.
var ErrInsecurePermissions = errors.New("password file has insecure permissions")

// fileBackend keeps account passwords in one YAML map, guarded by a lock
// file for read-modify-write.
type fileBackend struct {
	path string
}

func (f *fileBackend) Get(account string) (string, error) {
	entries, err := f.read()
	if err != nil {
		return "", err
	}
	pw, ok := entries[account]
	if !ok {
		return "", ErrNotFound
	}
	return pw, nil
}

func (f *fileBackend) Set(account, password string) error {
	return f.update(func(entries map[string]string) bool {
		entries[account] = password
		return true
	})
}

func (f *fileBackend) Delete(account string) error {
	found := false
	err := f.update(func(entries map[string]string) bool {
		if _, ok := entries[account]; !ok {
			return false
		}
		delete(entries, account)
		found = true
		return true
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (f *fileBackend) Name() string {
	return "file (" + f.path + ")"
}

// read loads the map. A missing file is an empty map.
func (f *fileBackend) read() (map[string]string, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading password file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return nil, fmt.Errorf("%w: %s has permissions %04o (expected 0600).\n"+
			"  The stored passwords may have been exposed. To fix:\n"+
			"  1. chmod 600 %s\n"+
			"  2. Change the affected Superset passwords and run: superset-import login --save",
			ErrInsecurePermissions, f.path, perm, f.path)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading password file: %w", err)
	}
	entries := map[string]string{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing password file %s: %w", f.path, err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

// update applies fn under the lock and writes the map back when fn
// reports a change.
func (f *fileBackend) update(fn func(map[string]string) bool) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating password directory: %w", err)
	}

	lockPath := f.path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("creating lock file: %w", err)
	}
	defer lf.Close()

	unlock, err := lockFile(lf)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	defer unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	if !fn(entries) {
		return nil
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding password file: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing password file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing password file: %w", err)
	}
	return nil
}
