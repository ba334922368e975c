package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joelkehle/kundali/internal/chart"
)

type archiveState struct {
	Charts map[string]Record `json:"charts"`
}

// FileStore keeps the whole archive in one JSON file, rewritten on every
// change.
type FileStore struct {
	path  string
	mu    sync.Mutex
	state archiveState
}

func NewFileStore(path string) (*FileStore, error) {
	state, err := loadArchive(path)
	if err != nil {
		return nil, fmt.Errorf("load archive %s: %w", path, err)
	}
	return &FileStore{path: path, state: state}, nil
}

func loadArchive(path string) (archiveState, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return archiveState{Charts: map[string]Record{}}, nil
		}
		return archiveState{}, err
	}
	var state archiveState
	if err := json.Unmarshal(blob, &state); err != nil {
		return archiveState{}, err
	}
	if state.Charts == nil {
		state.Charts = map[string]Record{}
	}
	return state, nil
}

func saveArchive(path string, state archiveState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) Save(_ context.Context, in chart.Input, out chart.Output) (Record, error) {
	rec := newRecord(in, out)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Charts[rec.ID] = rec
	if err := saveArchive(s.path, s.state); err != nil {
		delete(s.state.Charts, rec.ID)
		return Record{}, fmt.Errorf("save chart: %w", err)
	}
	return rec, nil
}

func (s *FileStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.state.Charts[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *FileStore) List(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	recs := make([]Record, 0, len(s.state.Charts))
	for _, rec := range s.state.Charts {
		recs = append(recs, rec)
	}
	s.mu.Unlock()
	return newestFirst(recs, limit), nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.state.Charts[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.state.Charts, id)
	if err := saveArchive(s.path, s.state); err != nil {
		s.state.Charts[id] = rec
		return fmt.Errorf("delete chart: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
