package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrTimeout interrupts a script that ran past its deadline.
var ErrTimeout = errors.New("execution timeout exceeded")

const defaultTimeout = 30 * time.Second

// Config configures a Host.
type Config struct {
	Env       Env
	RootDir   string
	UserAgent string
	Timeout   time.Duration
	Print     []string
	Stdout    io.Writer
	Stderr    io.Writer
}

// Host is the embedded JavaScript program instance. One mutex guards the VM
// so evaluation and reloads never interleave.
type Host struct {
	cfg     Config
	logger  *zap.Logger
	printer *Printer

	mu        sync.Mutex
	vm        *goja.Runtime
	stringify goja.Callable
	modules   map[string]*goja.Object
}

// New creates a host and installs its globals.
func New(cfg Config, logger *zap.Logger) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Env == "" {
		cfg.Env = EnvProcess
	}
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	h := &Host{
		cfg:     cfg,
		logger:  logger,
		printer: NewPrinter(cfg.Print),
		vm:      goja.New(),
		modules: make(map[string]*goja.Object),
	}
	h.printer.Register(ReceiverConsole, ConsoleReceiver(cfg.Stdout, cfg.Stderr))

	if err := h.setupGlobals(); err != nil {
		return nil, err
	}
	return h, nil
}

// Env returns the host environment.
func (h *Host) Env() Env { return h.cfg.Env }

// RootDir returns the directory process modules resolve against.
func (h *Host) RootDir() string { return h.cfg.RootDir }

// Printer returns the host's output fan-out.
func (h *Host) Printer() *Printer { return h.printer }

// UAProduct returns the product reported in eval results.
func (h *Host) UAProduct() string { return UAProduct(h.cfg.Env, h.cfg.UserAgent) }

func (h *Host) setupGlobals() error {
	vm := h.vm

	jsonObj := vm.Get("JSON").ToObject(vm)
	stringify, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return errors.New("JSON.stringify is not callable")
	}
	h.stringify = stringify

	console := vm.NewObject()
	for name, stream := range map[string]Stream{
		"log":   StreamOut,
		"info":  StreamOut,
		"debug": StreamOut,
		"warn":  StreamErr,
		"error": StreamErr,
	} {
		if err := console.Set(name, h.printFunc(stream)); err != nil {
			return fmt.Errorf("failed to install console.%s: %w", name, err)
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}
	if err := vm.Set("print", h.printFunc(StreamOut)); err != nil {
		return err
	}

	switch h.cfg.Env {
	case EnvProcess:
		if err := vm.Set("require", h.requireFunc(h.cfg.RootDir)); err != nil {
			return err
		}
	case EnvBrowser:
		if err := vm.Set("window", vm.GlobalObject()); err != nil {
			return err
		}
	case EnvWorker:
		if err := vm.Set("self", vm.GlobalObject()); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) printFunc(stream Stream) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = h.display(arg)
		}
		h.printer.Print(stream, args...)
		return goja.Undefined()
	}
}

// display renders a value the way output records carry it: strings raw,
// everything else as JSON. Must run with the VM lock held.
func (h *Host) display(v goja.Value) string {
	if s, ok := v.Export().(string); ok {
		return s
	}
	if str, ok := h.jsonString(v); ok {
		return str
	}
	return v.String()
}

// jsonString runs JSON.stringify on v. ok is false when stringification
// throws; an undefined result falls back to the value's string form.
func (h *Host) jsonString(v goja.Value) (string, bool) {
	out, err := h.stringify(goja.Undefined(), v)
	if err != nil {
		return "", false
	}
	if out == nil || goja.IsUndefined(out) {
		return v.String(), true
	}
	return out.String(), true
}

// guard arms the interrupt for one VM entry. The returned release must be
// called once the VM has returned.
func (h *Host) guard(ctx context.Context) func() {
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		timer := time.NewTimer(h.cfg.Timeout)
		defer timer.Stop()

		select {
		case <-timer.C:
			h.vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			h.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		h.vm.ClearInterrupt()
	}
}

// RunScript evaluates src under name.
func (h *Host) RunScript(ctx context.Context, name, src string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	release := h.guard(ctx)
	defer release()

	_, err := h.vm.RunScript(name, src)
	return err
}

// Call invokes a JavaScript function value with no arguments.
func (h *Host) Call(ctx context.Context, fn goja.Value) error {
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		return fmt.Errorf("value %s is not a function", fn)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	release := h.guard(ctx)
	defer release()

	_, err := callable(goja.Undefined())
	return err
}

// Install sets a global object whose members are Go values or functions.
// Functions installed here are invoked with the VM lock held and must not
// call back into locking Host methods.
func (h *Host) Install(name string, members map[string]interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	obj := h.vm.NewObject()
	for k, v := range members {
		if err := obj.Set(k, v); err != nil {
			return fmt.Errorf("failed to install %s.%s: %w", name, k, err)
		}
	}
	return h.vm.Set(name, obj)
}

// Get returns a global value rendered for display, or false when undefined.
func (h *Host) Get(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v := h.vm.Get(name)
	if v == nil || goja.IsUndefined(v) {
		return "", false
	}
	return h.display(v), true
}

// Resolve maps a module locator to an absolute path under the root dir.
func (h *Host) Resolve(path string) string {
	return resolveModule(h.cfg.RootDir, path)
}

func resolveModule(dir, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if filepath.Ext(path) == "" {
		path += ".js"
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Require loads a process module, reusing the module cache.
func (h *Host) Require(ctx context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	release := h.guard(ctx)
	defer release()

	_, err := h.requireLocked(h.Resolve(path))
	return err
}

// Evict drops a module from the cache and reports whether it was present.
func (h *Host) Evict(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	abs := h.Resolve(path)
	_, ok := h.modules[abs]
	delete(h.modules, abs)
	return ok
}

// Cached reports whether a module is in the cache.
func (h *Host) Cached(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.modules[h.Resolve(path)]
	return ok
}

func (h *Host) requireLocked(abs string) (goja.Value, error) {
	if m, ok := h.modules[abs]; ok {
		return m.Get("exports"), nil
	}

	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", abs, err)
	}

	wrapped := "(function(exports, require, module, __filename, __dirname) {" + string(src) + "\n})"
	fnVal, err := h.vm.RunScript(abs, wrapped)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("module %s did not compile to a function", abs)
	}

	dir := filepath.Dir(abs)
	module := h.vm.NewObject()
	exports := h.vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}

	// Cached before running so cyclic requires see the partial exports.
	h.modules[abs] = module
	_, err = fn(goja.Undefined(), exports, h.vm.ToValue(h.requireFunc(dir)), module,
		h.vm.ToValue(abs), h.vm.ToValue(dir))
	if err != nil {
		delete(h.modules, abs)
		return nil, err
	}

	h.logger.Debug("Module loaded", zap.String("path", abs))
	return module.Get("exports"), nil
}

func (h *Host) requireFunc(dir string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		exports, err := h.requireLocked(resolveModule(dir, call.Argument(0).String()))
		if err != nil {
			var ex *goja.Exception
			if errors.As(err, &ex) {
				panic(ex.Value())
			}
			panic(h.vm.NewGoError(err))
		}
		return exports
	}
}
