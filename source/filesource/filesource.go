// Package filesource reads ingestion items from a directory of files.
// Files are consumed once, in lexical name order, so runs over the same
// directory are deterministic.
package filesource

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
)

// Config describes a directory source.
type Config struct {
	// ID identifies the source in run results. Defaults to the directory
	// base name.
	ID string `yaml:"id"`
	// Path is the directory to read.
	Path string `yaml:"path"`
	// Extensions limits which files are consumed. Defaults to .json and
	// .txt. Matching is case-insensitive and includes the dot.
	Extensions []string `yaml:"extensions"`
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "filesource", "Validate", "require path")
	}
	return nil
}

// Source is a single-pass directory source.
type Source struct {
	id         string
	path       string
	extensions map[string]struct{}
	logger     *slog.Logger

	mu    sync.Mutex
	files []string
	idx   int
}

// New builds a Source from cfg.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := cfg.ID
	if id == "" {
		id = filepath.Base(cfg.Path)
	}
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = []string{".json", ".txt"}
	}
	extSet := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = struct{}{}
	}
	return &Source{id: id, path: cfg.Path, extensions: extSet, logger: logger}, nil
}

// ID implements pipeline.Source.
func (s *Source) ID() string { return s.id }

// Type implements pipeline.Source.
func (s *Source) Type() string { return "document" }

// Connect lists the directory and fixes the consumption order.
func (s *Source) Connect(_ context.Context) error {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return errors.WrapTransient(err, "filesource", "Connect", "read directory "+s.path)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := s.extensions[ext]; !ok {
			continue
		}
		files = append(files, filepath.Join(s.path, entry.Name()))
	}
	sort.Strings(files)

	s.mu.Lock()
	s.files = files
	s.idx = 0
	s.mu.Unlock()

	s.logger.Debug("file source connected", "source_id", s.id, "files", len(files))
	return nil
}

// Fetch returns the next file's payload. Non-JSON files are wrapped so
// downstream normalization always receives a raw document.
func (s *Source) Fetch(_ context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	if s.idx >= len(s.files) {
		s.mu.Unlock()
		return nil, errors.ErrSourceExhausted
	}
	path := s.files[s.idx]
	s.idx++
	s.mu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "filesource", "Fetch", "read file "+path)
	}
	return raw, nil
}

// Disconnect releases the file list. Safe to call after a failed Connect.
func (s *Source) Disconnect(_ context.Context) error {
	s.mu.Lock()
	s.files = nil
	s.idx = 0
	s.mu.Unlock()
	return nil
}

// HealthCheck verifies the directory is still readable.
func (s *Source) HealthCheck(_ context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return errors.WrapTransient(err, "filesource", "HealthCheck", "stat "+s.path)
	}
	if !info.IsDir() {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "filesource", "HealthCheck", "expect directory at "+s.path)
	}
	return nil
}
