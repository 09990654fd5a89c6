package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// FileConnectionRepository persists connection workflow state as a JSON file
// so activation progress survives across CLI runs.
type FileConnectionRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileConnectionRepository creates a repository backed by the given file
func NewFileConnectionRepository(path string) *FileConnectionRepository {
	return &FileConnectionRepository{path: path}
}

// Seed inserts the connection unless the state file already knows it
func (r *FileConnectionRepository) Seed(conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := conns[conn.ID]; ok {
		return nil
	}
	conns[conn.ID] = conn
	return r.save(conns)
}

// GetConnection implements domain.ConnectionRepository
func (r *FileConnectionRepository) GetConnection(id string) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, err := r.load()
	if err != nil {
		return nil, err
	}
	conn, ok := conns[id]
	if !ok {
		return nil, fmt.Errorf("connection not found: %s", id)
	}
	return conn, nil
}

// UpdateConnection implements domain.ConnectionRepository
func (r *FileConnectionRepository) UpdateConnection(conn *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, err := r.load()
	if err != nil {
		return err
	}
	conns[conn.ID] = conn
	return r.save(conns)
}

func (r *FileConnectionRepository) load() (map[string]*domain.Connection, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]*domain.Connection{}, nil
		}
		return nil, fmt.Errorf("reading connection state: %w", err)
	}

	conns := map[string]*domain.Connection{}
	if err := json.Unmarshal(raw, &conns); err != nil {
		return nil, fmt.Errorf("decoding connection state: %w", err)
	}
	return conns, nil
}

func (r *FileConnectionRepository) save(conns map[string]*domain.Connection) error {
	raw, err := json.MarshalIndent(conns, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding connection state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(r.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing connection state: %w", err)
	}
	return nil
}
