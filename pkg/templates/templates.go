package templates

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btq-lab/batch-watcher/pkg/types"
	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of config/jobs.yaml.
type File struct {
	Templates []types.JobTemplate `yaml:"templates"`
}

// Load reads a templates file. An empty path probes upward from the
// working directory for config/jobs.yaml, then jobs.yaml.
func Load(path string) (*File, error) {
	if path == "" {
		found, err := locate()
		if err != nil {
			return nil, err
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse templates file: %w", err)
	}

	seen := make(map[string]bool, len(f.Templates))
	for _, tmpl := range f.Templates {
		if tmpl.Name == "" {
			return nil, fmt.Errorf("template without a name in %s", path)
		}
		if seen[tmpl.Name] {
			return nil, fmt.Errorf("duplicate template %q in %s", tmpl.Name, path)
		}
		seen[tmpl.Name] = true
	}

	return &f, nil
}

func locate() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for i := 0; i < 3; i++ {
		candidate := filepath.Join(wd, "config", "jobs.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		candidate = filepath.Join(wd, "jobs.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		wd = filepath.Dir(wd)
		if wd == "/" {
			break
		}
	}

	return "", fmt.Errorf("templates file not found")
}

// Get returns the named template.
func (f *File) Get(name string) (*types.JobTemplate, error) {
	for i := range f.Templates {
		if f.Templates[i].Name == name {
			return &f.Templates[i], nil
		}
	}
	return nil, fmt.Errorf("template %s not found", name)
}

// Enabled returns the templates eligible for scheduled submission.
func (f *File) Enabled() []types.JobTemplate {
	var out []types.JobTemplate
	for _, tmpl := range f.Templates {
		if tmpl.Enabled {
			out = append(out, tmpl)
		}
	}
	return out
}

// Names lists all template names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Templates))
	for i, tmpl := range f.Templates {
		names[i] = tmpl.Name
	}
	return names
}
