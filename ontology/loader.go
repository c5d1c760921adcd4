package ontology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
)

// LoadFromFile loads and merges a single JSON ontology definition.
func (r *Registry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapInvalid(err, "Registry", "LoadFromFile", "read definition file")
	}

	def, err := ParseDefinition(data)
	if err != nil {
		return errors.WrapInvalid(err, "Registry", "LoadFromFile",
			fmt.Sprintf("parse %s", filepath.Base(path)))
	}

	return r.merge(def)
}

// LoadFromDirectory scans dir for *.json files and merges each definition.
// Files are loaded in lexical order so conflict resolution
// (last-loaded-wins) is deterministic.
func (r *Registry) LoadFromDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.WrapInvalid(err, "Registry", "LoadFromDirectory", "read directory")
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := r.LoadFromFile(path); err != nil {
			return err
		}
	}

	r.logger.Info("ontology directory loaded", "dir", dir, "files", len(paths))
	return nil
}

// ParseDefinition decodes one JSON ontology definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode ontology definition: %w", err)
	}
	if def.Entities == nil {
		def.Entities = map[string]EntitySchema{}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}
