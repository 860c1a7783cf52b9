// Package checkpoint persists scan progress so an interrupted or aborted
// scan can continue where it stopped. The file records the next sequence
// index rather than a set of finished targets: the target sequence is
// deterministic, so an index plus a fingerprint of the target set is
// enough to resume.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scadastrangelove/zeronights2025-GRAFUNA/pkg/jsonutil"
)

// FormatVersion identifies the checkpoint layout.
const FormatVersion = "1"

var (
	// ErrMismatch means the checkpoint was written for a different target
	// set or a different datasource.
	ErrMismatch = errors.New("checkpoint: does not match this scan")

	// ErrCorrupt means the file exists but could not be decoded.
	ErrCorrupt = errors.New("checkpoint: unreadable")
)

// State is the on-disk checkpoint.
type State struct {
	Format      string    `json:"format"`
	Fingerprint string    `json:"fingerprint"`
	Grafana     string    `json:"grafana"`
	Datasource  string    `json:"datasource_uid"`
	Total       int       `json:"total"`
	NextIndex   int       `json:"next_index"`
	Version     int64     `json:"version,omitzero"`
	Rotations   int       `json:"rotations"`
	Started     time.Time `json:"started"`
	Updated     time.Time `json:"updated"`
}

// Done reports whether every target was processed.
func (s *State) Done() bool {
	return s.NextIndex >= s.Total
}

// Manager owns one checkpoint file.
type Manager struct {
	path  string
	mu    sync.Mutex
	state *State

	// rotations performed by earlier runs of the same scan
	baseRotations int
}

// NewManager creates a manager for path. Nothing is read or written yet.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the checkpoint file path.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the checkpoint file. A missing file returns an error
// satisfying errors.Is(err, fs.ErrNotExist).
func (m *Manager) Load() (*State, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	var st State
	if err := jsonutil.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, m.path, err)
	}
	if st.Format != FormatVersion {
		return nil, fmt.Errorf("%w: %s: format %q", ErrCorrupt, m.path, st.Format)
	}
	return &st, nil
}

// Begin starts tracking fresh, or picks up an existing checkpoint when one
// matches fresh's fingerprint and datasource. It returns the state in
// effect; its NextIndex is where the scan should start and its Version is
// the datasource version to continue from (zero when unknown).
func (m *Manager) Begin(fresh State) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh.Format = FormatVersion
	if fresh.Started.IsZero() {
		fresh.Started = time.Now().UTC()
	}

	prev, err := m.Load()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		m.state = &fresh
		return m.snapshot(), nil
	case err != nil:
		return nil, err
	}

	if prev.Fingerprint != fresh.Fingerprint || prev.Datasource != fresh.Datasource || prev.Total != fresh.Total {
		return nil, fmt.Errorf("%w: %s was written for %d targets on datasource %s",
			ErrMismatch, m.path, prev.Total, prev.Datasource)
	}

	m.state = prev
	m.baseRotations = prev.Rotations
	return m.snapshot(), nil
}

// Advance records that every target before next is done and saves.
// rotations counts this run only; earlier runs are added back in.
func (m *Manager) Advance(next int, version int64, rotations int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return nil
	}
	m.state.NextIndex = next
	if version > 0 {
		m.state.Version = version
	}
	m.state.Rotations = m.baseRotations + rotations
	return m.save()
}

// State returns a copy of the tracked state, or nil before Begin.
func (m *Manager) State() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Manager) snapshot() *State {
	if m.state == nil {
		return nil
	}
	cp := *m.state
	return &cp
}

// save writes through a temp file in the same directory and renames it
// over the checkpoint.
func (m *Manager) save() error {
	m.state.Updated = time.Now().UTC()

	data, err := jsonutil.MarshalIndent(m.state, "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), m.path)
}

// Delete removes the checkpoint file. A missing file is not an error.
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}
