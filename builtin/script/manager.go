// Package script runs sandboxed Lua scripts as runnable units.
//
// A script defines a global exec function. Lua units call exec(input) and
// return its result; generator units also get an emit function and stream
// every value passed to it:
//
//	function exec(input)
//	  for _, word in ipairs(str_split(input, " ")) do
//	    emit(word)
//	  end
//	end
package script

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/agentstation/runnable"
)

// ErrNoExec is returned when a script does not define exec.
var ErrNoExec = errors.New("script: exec function not defined")

// Lua returns a unit calling exec(input) of source in a fresh sandbox per
// invocation. Source is compiled once here so syntax errors surface early.
func Lua(name, source string) (*runnable.Lambda, error) {
	if err := compile(source); err != nil {
		return nil, err
	}
	return runnable.NewLambda(name, func(ctx context.Context, input any) (any, error) {
		return execute(ctx, source, input, nil)
	})
}

// LuaGenerator returns a streaming unit: every value the script passes to
// emit is one chunk. Invoke folds the chunks with runnable.Add.
func LuaGenerator(name, source string) (*runnable.Generator, error) {
	if err := compile(source); err != nil {
		return nil, err
	}
	return runnable.NewGenerator(name, func(ctx context.Context, input any, emit runnable.Emit) error {
		_, err := execute(ctx, source, input, emit)
		return err
	}, runnable.WithMerger(runnable.Add)), nil
}

func compile(source string) error {
	if err := lua.LoadString(lua.NewState(), source); err != nil {
		return fmt.Errorf("script: compile: %w", err)
	}
	return nil
}

// execute runs source and calls exec(input). When emit is set the script
// can call emit(v); the first emit failure aborts the script and is returned
// in place of the Lua error it caused.
func execute(ctx context.Context, source string, input any, emit runnable.Emit) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := newSandbox()

	var emitErr error
	if emit != nil {
		l.Register("emit", func(l *lua.State) int {
			if emitErr == nil {
				emitErr = ctx.Err()
			}
			if emitErr == nil {
				emitErr = emit(pull(l, 1))
			}
			if emitErr != nil {
				lua.Errorf(l, "emit: %s", emitErr.Error())
			}
			return 0
		})
	}

	push(l, input)
	l.SetGlobal("input")
	if err := lua.DoString(l, source); err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}

	l.Global("exec")
	if l.TypeOf(-1) != lua.TypeFunction {
		return nil, ErrNoExec
	}
	push(l, input)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		if emitErr != nil {
			return nil, emitErr
		}
		return nil, fmt.Errorf("script: exec: %w", err)
	}
	out := pull(l, -1)
	l.Pop(1)
	return out, nil
}

// Script is a Lua file found by a Manager.
type Script struct {
	Name        string
	Path        string
	Description string
	Version     string
	// Stream marks scripts built as generators (-- @stream: true).
	Stream  bool
	Content string
}

// Manager discovers scripts in a directory and builds units from them.
type Manager struct {
	dir string

	mu      sync.RWMutex
	scripts map[string]*Script
}

// NewManager returns a manager for the scripts under dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, scripts: make(map[string]*Script)}
}

// Discover loads every .lua file under the directory. Files that fail to
// load are reported together after the walk.
func (m *Manager) Discover() error {
	var errs []error
	err := filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".lua" {
			return nil
		}
		s, err := Load(path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		m.mu.Lock()
		m.scripts[s.Name] = s
		m.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("script: discover %s: %w", m.dir, err)
	}
	return errors.Join(errs...)
}

// Load reads a script and its header comments:
//
//	-- @name: tokenize
//	-- @description: splits text into words
//	-- @stream: true
func Load(path string) (*Script, error) {
	content, err := os.ReadFile(path) //nolint:gosec // scripts are user-provided
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	s := &Script{Path: path, Content: string(content)}
	for _, line := range strings.Split(s.Content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "--") {
			break
		}
		key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "--")), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "@name":
			s.Name = value
		case "@description":
			s.Description = value
		case "@version":
			s.Version = value
		case "@stream":
			s.Stream = value == "true"
		}
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := compile(s.Content); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Get returns a discovered script.
func (m *Manager) Get(name string) (*Script, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scripts[name]
	return s, ok
}

// List returns the discovered scripts sorted by name.
func (m *Manager) List() []*Script {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Script, 0, len(m.scripts))
	for _, s := range m.scripts {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Script) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Unit builds the named script as a runnable unit.
func (m *Manager) Unit(name string) (runnable.Runnable, error) {
	s, ok := m.Get(name)
	if !ok {
		return nil, fmt.Errorf("script: %q not found in %s", name, m.dir)
	}
	return s.Unit()
}

// Unit builds the script as a Lua or LuaGenerator unit.
func (s *Script) Unit() (runnable.Runnable, error) {
	if s.Stream {
		return LuaGenerator(s.Name, s.Content)
	}
	return Lua(s.Name, s.Content)
}
