package config

import (
	"os"

	yaml "gopkg.in/yaml.v3"
)

// File is the shape of the optional static bootstrap file (noded.yml),
// read once by the Daemon Core at startup to seed initial Start() calls.
// It is an external collaborator per spec.md §1 — format coverage and
// ergonomics are explicitly out of this module's hard-engineering scope,
// so this loader stays intentionally thin.
type File struct {
	Processes map[string]ProcessConfig `yaml:"processes"`
}

// LoadFile reads and parses a static bootstrap file. A missing file is not
// an error: the daemon simply starts with an empty fleet.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Processes: map[string]ProcessConfig{}}, nil
		}
		return nil, Wrap(ErrIOFailure, "failed to read bootstrap config", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, Wrap(ErrInvalidConfig, "failed to parse bootstrap config", err)
	}
	for name, pc := range f.Processes {
		if pc.Name == "" {
			pc.Name = name
		}
		f.Processes[name] = pc
	}
	return &f, nil
}
