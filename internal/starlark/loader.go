package starlark

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// Loader scans a directory for .star files and executes them as modules.
type Loader struct {
	dir         string
	predeclared starlark.StringDict
}

// NewLoader creates a loader for dir. Every file sees predeclared as its
// builtin environment.
func NewLoader(dir string, predeclared starlark.StringDict) *Loader {
	return &Loader{dir: dir, predeclared: predeclared}
}

// Module is one executed .star file.
type Module struct {
	// Namespace is derived from the filename ("pricing" for pricing.star).
	Namespace string
	Path      string
	// Exports holds the callable globals whose names do not start with _.
	Exports map[string]starlark.Callable
}

// Names returns the exported function names sorted.
func (m *Module) Names() []string {
	names := make([]string, 0, len(m.Exports))
	for name := range m.Exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load executes every .star file of the directory in name order. A missing
// directory yields no modules.
func (l *Loader) Load() ([]*Module, error) {
	if l.dir == "" {
		return nil, nil
	}
	info, err := os.Stat(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access functions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("functions path is not a directory: %s", l.dir)
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan functions directory: %w", err)
	}
	sort.Strings(files)

	modules := make([]*Module, 0, len(files))
	for _, file := range files {
		m, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}

func (l *Loader) loadFile(path string) (*Module, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a glob within the functions directory
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	namespace := strings.TrimSuffix(filepath.Base(path), ".star")
	if err := validateNamespace(namespace); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	thread := &starlark.Thread{
		Name:  "load:" + namespace,
		Print: func(_ *starlark.Thread, _ string) {},
	}
	globals, err := starlark.ExecFile(thread, path, content, l.predeclared) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("Starlark execution error: %v", err)}
	}

	exports := make(map[string]starlark.Callable)
	for name, value := range globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if fn, ok := value.(starlark.Callable); ok {
			exports[name] = fn
		}
	}
	return &Module{Namespace: namespace, Path: path, Exports: exports}, nil
}

// validateNamespace checks that a file name can prefix FM implementation
// names.
func validateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return fmt.Errorf("namespace must be an identifier: %s", name)
		}
	}
	return nil
}

// LoadError represents an error loading a function file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("functions/%s: %s", filepath.Base(e.File), e.Message)
}
