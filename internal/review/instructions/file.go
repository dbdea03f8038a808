package instructions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/AICC2024/video-review/internal/platform/logger"
)

// FileStore keeps all modes in one YAML or JSON document, chosen by the
// file extension. Writes replace the file atomically.
type FileStore struct {
	log  *logger.Logger
	path string
	mu   sync.RWMutex
}

func NewFileStore(log *logger.Logger, path string) *FileStore {
	return &FileStore{log: log.With("component", "InstructionFileStore"), path: path}
}

func (s *FileStore) isJSON() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".json")
}

func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return out, nil
	}
	// yaml.v3 reads JSON documents as well
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	normalized := make(map[string]string, len(out))
	for k, v := range out {
		normalized[NormalizeMode(k)] = v
	}
	return normalized, nil
}

func (s *FileStore) Get(_ context.Context, mode string) (string, error) {
	mode = NormalizeMode(mode)
	if mode == "" {
		return "", ErrEmptyMode
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all, err := s.load()
	if err != nil {
		return "", err
	}
	return all[mode], nil
}

func (s *FileStore) All(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

func (s *FileStore) Set(_ context.Context, mode, content string) error {
	mode = NormalizeMode(mode)
	if mode == "" {
		return ErrEmptyMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[mode] = content

	var raw []byte
	if s.isJSON() {
		raw, err = json.MarshalIndent(all, "", "  ")
	} else {
		raw, err = yaml.Marshal(all)
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".instructions-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	s.log.Info("instruction saved", "mode", mode, "chars", len(content))
	return nil
}
