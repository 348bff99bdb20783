// Package projectconfig reads the per-project pspace.yaml file that supplies
// per-command option defaults.
package projectconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the project config file name. Its presence also marks a
// directory as a pspace project.
const FileName = "pspace.yaml"

// FallbackDir is the dedicated subdirectory searched when FileName is not in
// the working directory itself.
const FallbackDir = ".pspace"

// File is a parsed project config: one section of option values per command.
type File struct {
	// Path is where the file was read from; empty when no file exists.
	Path     string
	Sections map[string]map[string]any
}

// Markers returns the candidate project file paths relative to a working directory,
// in lookup order.
func Markers() []string {
	return []string{FileName, filepath.Join(FallbackDir, FileName)}
}

// Find returns the first existing project file under workDir.
func Find(workDir string) (string, bool) {
	for _, rel := range Markers() {
		p := filepath.Join(workDir, rel)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// LoadDir loads the project file for workDir. A missing file is not an error;
// it yields an empty File whose sections contribute nothing.
func LoadDir(workDir string) (*File, error) {
	path, ok := Find(workDir)
	if !ok {
		return &File{Sections: map[string]map[string]any{}}, nil
	}
	return Load(path)
}

// Load reads, validates and parses the project file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("project config not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading project config: %s", path)
		}
		return nil, fmt.Errorf("failed to read project config: %w", err)
	}

	f, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// LoadFromBytes parses and validates project config YAML (JSON is accepted too,
// being a YAML subset). An empty document yields an empty File.
func LoadFromBytes(data []byte) (*File, error) {
	f := &File{Sections: map[string]map[string]any{}}
	if len(strings.TrimSpace(string(data))) == 0 {
		return f, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in project config: %w", err)
	}
	if raw == nil {
		return f, nil
	}

	// Validate the generic form so unknown keys are rejected.
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert project config to JSON: %w", err)
	}
	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	for name, v := range raw {
		if strings.HasPrefix(name, "$") || v == nil {
			continue
		}
		section, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("section %q must be a mapping", name)
		}
		f.Sections[name] = section
	}
	return f, nil
}

// Section returns the option values for a command. Null values are dropped:
// a key set to null in the file is treated as not set.
func (f *File) Section(command string) (map[string]any, bool) {
	if f == nil {
		return nil, false
	}
	sec, ok := f.Sections[command]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(sec))
	for k, v := range sec {
		if v != nil {
			out[k] = v
		}
	}
	return out, true
}

// Exists reports whether f was read from disk.
func (f *File) Exists() bool {
	return f != nil && f.Path != ""
}

// IsValidation reports whether err came from schema validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}
