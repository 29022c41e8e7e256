package macro

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"go.starlark.net/starlark"
)

// sourceFile is one .star file found in the macro directory.
type sourceFile struct {
	Namespace    string
	Path         string
	ModTime      time.Time
	NotesModTime time.Time // zero without a notes sidecar
}

// statSource stats a namespace file and its notes sidecar.
func statSource(dir, namespace string) (sourceFile, error) {
	path := filepath.Join(dir, namespace+".star")
	st, err := os.Stat(path)
	if err != nil {
		return sourceFile{}, err
	}
	f := sourceFile{Namespace: namespace, Path: path, ModTime: st.ModTime()}
	if nst, err := os.Stat(strings.TrimSuffix(path, ".star") + notesSuffix); err == nil {
		f.NotesModTime = nst.ModTime()
	}
	return f, nil
}

// scan lists the .star files of dir sorted by namespace. A missing directory
// yields no files.
func scan(dir string) ([]sourceFile, []error, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to access macros directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("macros path is not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.star"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan macros directory: %w", err)
	}

	var out []sourceFile
	var skipped []error
	for _, path := range files {
		ns := namespaceOf(path)
		if err := validateNamespace(ns); err != nil {
			skipped = append(skipped, &LoadError{File: path, Message: err.Error()})
			continue
		}
		if ns == BuiltinsNamespace {
			skipped = append(skipped, &LoadError{File: path, Message: "namespace name is reserved"})
			continue
		}
		f, err := statSource(dir, ns)
		if err != nil {
			skipped = append(skipped, &LoadError{File: path, Message: err.Error()})
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out, skipped, nil
}

// moduleName maps a load() target to a sibling namespace. Accepted forms are
// "util", "util.star", ":util.star" and "./util.star".
func moduleName(module string) (string, error) {
	name := strings.TrimPrefix(module, ":")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimSuffix(name, ".star")
	if err := validateNamespace(name); err != nil {
		return "", fmt.Errorf("cannot load %q: only sibling .star files can be loaded", module)
	}
	return name, nil
}

// loadSession executes one namespace and, through load(), its dependencies.
// It is confined to a single RequireNamespace call. Nothing is installed
// until the whole session succeeds.
type loadSession struct {
	host  *Host
	ctx   context.Context
	force map[string]bool // re-execute even if a current module exists
	stack []string
	done  map[string]*module
}

func (s *loadSession) require(name string) (*module, error) {
	if m, ok := s.done[name]; ok {
		return m, nil
	}
	if !s.force[name] {
		if m := s.host.current(name); m != nil {
			return m, nil
		}
	}
	for _, active := range s.stack {
		if active == name {
			cycle := strings.Join(append(s.stack, name), " -> ")
			return nil, &LoadError{File: name + ".star", Message: "load cycle: " + cycle}
		}
	}

	src, err := statSource(s.host.dir, name)
	path := filepath.Join(s.host.dir, name+".star")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("namespace %s: %w", name, core.ErrNotFound)
		}
		return nil, fmt.Errorf("namespace %s: %w", name, err)
	}
	content, err := os.ReadFile(path) //nolint:gosec // G304: path is a namespace file inside the macros directory
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	parsed, err := parseFile(fileOptions, path, content)
	if err != nil {
		return nil, err
	}
	notes, err := readNotes(strings.TrimSuffix(path, ".star") + notesSuffix)
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	s.stack = append(s.stack, name)
	defer func() { s.stack = s.stack[:len(s.stack)-1] }()

	thread, release := s.host.pool.Acquire(s.ctx, "load:"+name)
	defer release()
	thread.Load = func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
		dep, err := moduleName(module)
		if err != nil {
			return nil, err
		}
		m, err := s.require(dep)
		if err != nil {
			return nil, err
		}
		return s.host.exports(m), nil
	}

	start := time.Now()
	globals, err := starlark.ExecFileOptions(fileOptions, thread, path, content, s.host.predeclaredSnapshot())
	if err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("load %s: %w", name, ctxErr)
		}
		return nil, &LoadError{File: path, Message: fmt.Sprintf("Starlark execution error: %v", err), Err: err}
	}

	m := newModule(src, parsed, notes, globals)
	s.done[name] = m
	s.host.logger.Debug("namespace executed",
		"namespace", name,
		"globals", len(globals),
		"duration", time.Since(start))
	return m, nil
}

// validateNamespace checks if a namespace name is valid.
func validateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}

	for i, r := range name {
		if i == 0 {
			if !isLetter(r) && r != '_' {
				return fmt.Errorf("namespace must start with letter or underscore: %s", name)
			}
		} else {
			if !isLetter(r) && !isDigit(r) && r != '_' {
				return fmt.Errorf("namespace contains invalid character: %s", name)
			}
		}
	}

	return nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// LoadError represents an error loading a namespace file. It matches
// core.ErrLoadError.
type LoadError struct {
	File    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("macros/%s: %s", filepath.Base(e.File), e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports whether target is core.ErrLoadError.
func (e *LoadError) Is(target error) bool { return target == core.ErrLoadError }
