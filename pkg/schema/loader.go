package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// moduleFile mirrors the YAML layout of one module descriptor file.
type moduleFile struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
	Nodes     []struct {
		Name   string `yaml:"name"`
		Kind   string `yaml:"kind"`
		Config *bool  `yaml:"config"`
	} `yaml:"nodes"`
}

// LoadDir reads every module descriptor (*.yaml, *.yml) under dir.
// Errors are aggregated so one broken file does not block the others;
// duplicate module names are reported and the first occurrence wins.
// Modules are returned sorted by file name, which keeps registry
// iteration order deterministic across reloads.
func LoadDir(dir string) ([]Module, []error) {
	var (
		modules []Module
		errs    []error
		seen    = map[string]string{}
	)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("schema: read dir %s: %w", dir, err)}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isDescriptor(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		mod, err := loadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[mod.Name]; dup {
			errs = append(errs, fmt.Errorf("schema: duplicate module %q in %s (first seen in %s)", mod.Name, name, prev))
			continue
		}
		seen[mod.Name] = name
		modules = append(modules, mod)
	}
	return modules, errs
}

func isDescriptor(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func loadFile(path string) (Module, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Module{}, fmt.Errorf("schema: descriptor vanished: %s", path)
		}
		return Module{}, fmt.Errorf("schema: read %s: %w", path, err)
	}
	var file moduleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Module{}, fmt.Errorf("schema: parse %s: %w", path, err)
	}
	if strings.TrimSpace(file.Name) == "" {
		return Module{}, fmt.Errorf("schema: %s: module name is empty", path)
	}
	mod := Module{Name: file.Name, Namespace: file.Namespace}
	for i, n := range file.Nodes {
		kind, err := ParseNodeKind(n.Kind)
		if err != nil {
			return Module{}, fmt.Errorf("schema: %s: node %d: %w", path, i, err)
		}
		if strings.TrimSpace(n.Name) == "" {
			return Module{}, fmt.Errorf("schema: %s: node %d: name is empty", path, i)
		}
		// config defaults to true, matching how data models treat
		// nodes without an explicit config statement.
		readOnly := n.Config != nil && !*n.Config
		mod.Nodes = append(mod.Nodes, NodeDescriptor{Name: n.Name, Kind: kind, ReadOnly: readOnly})
	}
	return mod, nil
}
