// Package registry tracks which named modules the host has loaded and
// routes (re)loads through the reload queue.
package registry

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/reload"
)

// Mode controls how Require treats an already provided module.
type Mode string

const (
	// ModeNone loads only modules that are not yet provided.
	ModeNone Mode = ""
	// ModeReload unprovides and reloads the module.
	ModeReload Mode = "reload"
	// ModeReloadAll reloads the module and every module it requires while
	// it loads.
	ModeReloadAll Mode = "reload-all"
)

// Scheduler is the part of the reload queue the registry uses.
type Scheduler interface {
	Enqueue(req reload.Request, done func(reload.Outcome))
	AfterReloads(fn func())
}

// Registry maps module names to paths and tracks provided modules.
type Registry struct {
	mu        sync.RWMutex
	paths     map[string]string
	provided  map[string]bool
	reloadAll int

	queue  Scheduler
	logger *zap.Logger
}

// New creates an empty registry.
func New(queue Scheduler, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		paths:    make(map[string]string),
		provided: make(map[string]bool),
		queue:    queue,
		logger:   logger,
	}
}

// AddDependency maps each name to the file at p.
func (r *Registry) AddDependency(p string, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.paths[n] = p
	}
}

// Path returns the file for name. Unmapped dotted names map to a relative
// path ("app.core" -> "app/core.js").
func (r *Registry) Path(name string) string {
	r.mu.RLock()
	p, ok := r.paths[name]
	r.mu.RUnlock()
	if ok {
		return p
	}
	if strings.Contains(name, "/") || path.Ext(name) == ".js" {
		return name
	}
	return strings.ReplaceAll(strings.ReplaceAll(name, "-", "_"), ".", "/") + ".js"
}

// IsProvided reports whether name has been provided.
func (r *Registry) IsProvided(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.provided[name]
}

// Provide marks name as loaded.
func (r *Registry) Provide(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provided[name] = true
}

// Unprovide forgets name so the next Require loads it again.
func (r *Registry) Unprovide(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.provided, name)
}

// Provided returns the provided module names.
func (r *Registry) Provided() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.provided))
	for n := range r.provided {
		out = append(out, n)
	}
	return out
}

// Require loads name through the reload queue and reports whether a load
// was scheduled. done, when non-nil, receives the outcome; it is not called
// when nothing was scheduled.
func (r *Registry) Require(name string, mode Mode, done func(reload.Outcome)) (bool, error) {
	switch mode {
	case ModeNone, ModeReload, ModeReloadAll:
	default:
		return false, fmt.Errorf("unknown require mode %q", mode)
	}

	r.mu.Lock()
	reloading := mode != ModeNone || r.reloadAll > 0
	if mode == ModeReloadAll {
		r.reloadAll++
	}
	if reloading {
		delete(r.provided, name)
	} else if r.provided[name] {
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()

	p := r.Path(name)
	r.logger.Debug("Requiring module",
		zap.String("name", name),
		zap.String("path", p),
		zap.String("mode", string(mode)))

	r.queue.Enqueue(reload.Request{RequestURL: p}, func(o reload.Outcome) {
		r.mu.Lock()
		if o.Loaded {
			r.provided[name] = true
		}
		if mode == ModeReloadAll {
			r.reloadAll--
		}
		r.mu.Unlock()

		if !o.Loaded {
			r.logger.Warn("Failed to load module", zap.String("name", name), zap.String("path", p))
		}
		if done != nil {
			done(o)
		}
	})
	return true, nil
}

// Script is the host surface Install needs.
type Script interface {
	Install(name string, members map[string]interface{}) error
	Call(ctx context.Context, fn goja.Value) error
}

// Install exposes the registry to scripts as the global object name.
// The functions never block on the host.
func (r *Registry) Install(ctx context.Context, name string, h Script) error {
	return h.Install(name, map[string]interface{}{
		"require": func(module string, mode string) (bool, error) {
			return r.Require(module, Mode(mode), nil)
		},
		"provide":    r.Provide,
		"unprovide":  r.Unprovide,
		"isProvided": r.IsProvided,
		"importScript": func(locator string) {
			r.queue.Enqueue(reload.Request{RequestURL: locator}, nil)
		},
		"afterReloads": func(fn goja.Value) {
			r.queue.AfterReloads(func() {
				if err := h.Call(ctx, fn); err != nil {
					r.logger.Error("After-reloads callback failed", zap.Error(err))
				}
			})
		},
	})
}
