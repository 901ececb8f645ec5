package position

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"SignalSentinel/internal/model"
)

// FileStore keeps every instrument in one JSON document on disk.
// Records are kept raw so that one corrupt entry does not hide the others.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]json.RawMessage
	logger  *zap.Logger
}

// NewFileStore loads the document at path. A missing file starts empty.
// A document that is not valid JSON is moved to path+".corrupt" and the
// store starts empty, so every instrument reads as flat.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	records, err := loadDocument(path, logger)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, records: records, logger: logger}, nil
}

func loadDocument(path string, logger *zap.Logger) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]json.RawMessage), nil
		}
		return nil, err
	}
	records := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		aside := path + ".corrupt"
		logger.Warn("position document unreadable, starting flat",
			zap.String("path", path), zap.String("moved_to", aside), zap.Error(err))
		if rerr := os.Rename(path, aside); rerr != nil {
			return nil, fmt.Errorf("move aside %s: %w: %w", path, model.ErrInvalidState, rerr)
		}
		return make(map[string]json.RawMessage), nil
	}
	return records, nil
}

// saveDocument writes to a sibling temp file and renames it over path.
func saveDocument(path string, records map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *FileStore) Load(_ context.Context, instrument string) (model.PositionState, bool, error) {
	s.mu.Lock()
	raw, ok := s.records[instrument]
	s.mu.Unlock()
	if !ok {
		return model.PositionState{}, false, nil
	}
	state, err := decodeState(instrument, raw)
	return state, true, err
}

func (s *FileStore) Save(_ context.Context, instrument string, state model.PositionState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.records[instrument]
	s.records[instrument] = data
	if err := saveDocument(s.path, s.records); err != nil {
		if had {
			s.records[instrument] = prev
		} else {
			delete(s.records, instrument)
		}
		return transient("file save "+instrument, err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context, instrument string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.records[instrument]
	if !had {
		return nil
	}
	delete(s.records, instrument)
	if err := saveDocument(s.path, s.records); err != nil {
		s.records[instrument] = prev
		return transient("file clear "+instrument, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) (map[string]model.PositionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.PositionState, len(s.records))
	for k, raw := range s.records {
		state, err := decodeState(k, raw)
		if err != nil {
			s.logger.Warn("skipping unreadable position record", zap.String("instrument", k), zap.Error(err))
			continue
		}
		out[k] = state
	}
	return out, nil
}

func (s *FileStore) Close() error { return nil }
