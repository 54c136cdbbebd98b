package reload

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/host"
	"github.com/GriffinCanCode/devbridge/internal/shared/id"
)

// CacheBusterParam is the query parameter carrying the cache-busting token.
const CacheBusterParam = "zx"

// Loader loads a resource and reports the result through done exactly once.
// Implementations must not panic across the callback.
type Loader interface {
	Load(ctx context.Context, locator string, done func(ok bool))
}

// ImportFunc is a Loader supplied by the embedding program. When set it
// replaces the loader selected for the host environment.
type ImportFunc func(ctx context.Context, locator string, done func(ok bool))

// Load calls f.
func (f ImportFunc) Load(ctx context.Context, locator string, done func(ok bool)) {
	f(ctx, locator, done)
}

// ModuleHost is the module cache of a process host.
type ModuleHost interface {
	Evict(path string) bool
	Require(ctx context.Context, path string) error
	Resolve(path string) string
}

// SelectLoader picks the loader for env. override wins when non-nil.
func SelectLoader(env host.Env, h *host.Host, client *resty.Client, baseURL string, override ImportFunc, logger *zap.Logger) Loader {
	if override != nil {
		return override
	}
	switch env {
	case host.EnvBrowser:
		return NewScriptTagLoader(client, h, baseURL, logger)
	case host.EnvWorker:
		return NewWorkerImportLoader(client, h, baseURL, logger)
	case host.EnvProcess:
		return NewProcessRequireLoader(h, logger)
	default:
		return nil
	}
}

// AddCacheBuster appends a unique token to rawURL, resolving it against base
// when it is relative.
func AddCacheBuster(rawURL, base string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", rawURL, err)
	}
	if !u.IsAbs() && base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("invalid base url %q: %w", base, err)
		}
		u = b.ResolveReference(u)
	}

	q := u.Query()
	q.Set(CacheBusterParam, id.CacheBuster())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type fetcher struct {
	client  *resty.Client
	baseURL string
}

func (f fetcher) fetch(ctx context.Context, locator string) (string, string, error) {
	target, err := AddCacheBuster(locator, f.baseURL)
	if err != nil {
		return "", "", err
	}

	resp, err := f.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return target, "", fmt.Errorf("fetch %s: %w", target, err)
	}
	if resp.IsError() {
		return target, "", fmt.Errorf("fetch %s: status %d", target, resp.StatusCode())
	}
	return target, resp.String(), nil
}

// ScriptTagLoader emulates appending a script tag: the load event fires
// after the fetched script has run, and evaluation errors are only logged.
type ScriptTagLoader struct {
	fetcher
	eval   Evaluator
	logger *zap.Logger
}

// NewScriptTagLoader creates a loader for browser hosts.
func NewScriptTagLoader(client *resty.Client, eval Evaluator, baseURL string, logger *zap.Logger) *ScriptTagLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptTagLoader{
		fetcher: fetcher{client: client, baseURL: baseURL},
		eval:    eval,
		logger:  logger,
	}
}

// Load implements Loader.
func (l *ScriptTagLoader) Load(ctx context.Context, locator string, done func(bool)) {
	target, src, err := l.fetch(ctx, locator)
	if err != nil {
		l.logger.Error("Error loading file", zap.String("request_url", locator), zap.Error(err))
		done(false)
		return
	}

	if err := l.eval.RunScript(ctx, target, src); err != nil {
		l.logger.Error("Error evaluating file", zap.String("request_url", locator), zap.Error(err))
	}
	done(true)
}

// WorkerImportLoader emulates importScripts: fetch and evaluate in place,
// any failure reports false.
type WorkerImportLoader struct {
	fetcher
	eval   Evaluator
	logger *zap.Logger
}

// NewWorkerImportLoader creates a loader for worker hosts.
func NewWorkerImportLoader(client *resty.Client, eval Evaluator, baseURL string, logger *zap.Logger) *WorkerImportLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerImportLoader{
		fetcher: fetcher{client: client, baseURL: baseURL},
		eval:    eval,
		logger:  logger,
	}
}

// Load implements Loader.
func (l *WorkerImportLoader) Load(ctx context.Context, locator string, done func(bool)) {
	target, src, err := l.fetch(ctx, locator)
	if err == nil {
		err = l.eval.RunScript(ctx, target, src)
	}
	if err != nil {
		l.logger.Error("Error loading file", zap.String("request_url", locator), zap.Error(err))
		done(false)
		return
	}
	done(true)
}

// ProcessRequireLoader re-requires a module after evicting it from the
// module cache.
type ProcessRequireLoader struct {
	modules ModuleHost
	logger  *zap.Logger
}

// NewProcessRequireLoader creates a loader for process hosts.
func NewProcessRequireLoader(modules ModuleHost, logger *zap.Logger) *ProcessRequireLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessRequireLoader{modules: modules, logger: logger}
}

// Load implements Loader.
func (l *ProcessRequireLoader) Load(ctx context.Context, locator string, done func(bool)) {
	path := l.modules.Resolve(locator)
	l.modules.Evict(path)

	if err := l.modules.Require(ctx, path); err != nil {
		l.logger.Error("Error loading file", zap.String("path", path), zap.Error(err))
		done(false)
		return
	}
	done(true)
}
