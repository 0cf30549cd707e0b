// Package pepper manages the server-side pepper sequence used by password
// hashing: an ordered list of secret strings, newest first, so that index 0
// is always the current pepper. Rotation prepends and never deletes, which
// keeps credentials hashed under older peppers verifiable.
//
// The sequence is persisted to a single local JSON file owned by this
// process. Concurrent rotations from multiple uncoordinated instances are
// not supported; deployments that scale horizontally must point every
// instance at one shared file or coordinate rotations out of band.
package pepper

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Omoju-Mayowa/blogauth/internal/common"
	"github.com/Omoju-Mayowa/blogauth/internal/filex"
)

// Seed is the configuration-sourced material used to initialize a store
// that has no persisted file yet: the current pepper plus any known older
// ones, newest first.
type Seed struct {
	Current string
	Old     []string
}

// Store owns the persisted pepper sequence and an in-memory cached copy of
// it, so hash/verify calls never re-read the file. The cache is replaced
// under lock on rotation; readers always receive defensive copies.
type Store struct {
	mu      sync.RWMutex
	path    string
	peppers []string
}

// Open loads the pepper sequence from path, or initializes it from seed if
// no file exists yet (persisting before returning). An unreadable, corrupt,
// or empty store is a configuration error: dependent operations must fail
// rather than silently run without a pepper.
func Open(path string, seed Seed) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: pepper file path is empty", common.ErrConfiguration)
	}

	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var peppers []string
		if err := json.Unmarshal(data, &peppers); err != nil {
			return nil, fmt.Errorf("%w: corrupt pepper file %s: %v", common.ErrConfiguration, path, err)
		}
		if err := validate(peppers); err != nil {
			return nil, fmt.Errorf("%w: pepper file %s: %v", common.ErrConfiguration, path, err)
		}
		s.peppers = peppers
		return s, nil

	case errors.Is(err, os.ErrNotExist):
		if seed.Current == "" {
			return nil, fmt.Errorf("%w: no pepper file at %s and no pepper configured", common.ErrConfiguration, path)
		}
		peppers := append([]string{seed.Current}, seed.Old...)
		if err := validate(peppers); err != nil {
			return nil, fmt.Errorf("%w: configured peppers: %v", common.ErrConfiguration, err)
		}
		if err := s.persist(peppers); err != nil {
			return nil, err
		}
		s.peppers = peppers
		return s, nil

	default:
		return nil, fmt.Errorf("%w: reading pepper file %s: %v", common.ErrConfiguration, path, err)
	}
}

// List returns a snapshot copy of the sequence, newest first.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.peppers))
	copy(out, s.peppers)
	return out
}

// Current returns the pepper at index 0, or "" if the store is empty.
// Callers must treat "" as fatal misconfiguration, never as a usable secret.
func (s *Store) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.peppers) == 0 {
		return ""
	}
	return s.peppers[0]
}

// Len reports the number of retained peppers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peppers)
}

// Rotate prepends newSecrets to the sequence (the first element of the
// input becomes the new index 0), persists the result atomically, and
// returns the new full sequence. Existing entries keep their relative
// order; their indices shift up by len(newSecrets), which is why a version
// migration must follow every rotation.
func (s *Store) Rotate(newSecrets []string) ([]string, error) {
	if len(newSecrets) == 0 {
		return nil, fmt.Errorf("%w: rotation requires at least one new secret", common.ErrConfiguration)
	}
	if err := validate(newSecrets); err != nil {
		return nil, fmt.Errorf("%w: new secrets: %v", common.ErrConfiguration, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rotated := make([]string, 0, len(newSecrets)+len(s.peppers))
	rotated = append(rotated, newSecrets...)
	rotated = append(rotated, s.peppers...)

	if err := s.persist(rotated); err != nil {
		return nil, err
	}
	s.peppers = rotated

	out := make([]string, len(rotated))
	copy(out, rotated)
	return out, nil
}

// persist writes the sequence via a temp file and rename, so a crash never
// leaves a partially written store. The file is readable only by the owner.
func (s *Store) persist(peppers []string) error {
	data, err := json.MarshalIndent(peppers, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal peppers: %w", err)
	}
	if err := filex.EnsureDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("persist peppers: %w", err)
	}
	if err := filex.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("persist peppers: %w", err)
	}
	return nil
}

func validate(peppers []string) error {
	if len(peppers) == 0 {
		return errors.New("empty pepper list")
	}
	for i, p := range peppers {
		if p == "" {
			return fmt.Errorf("empty pepper at index %d", i)
		}
	}
	return nil
}
