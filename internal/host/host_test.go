package host

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestHost(t *testing.T, cfg Config) *Host {
	t.Helper()
	if cfg.Stdout == nil {
		cfg.Stdout = &syncBuffer{}
	}
	if cfg.Stderr == nil {
		cfg.Stderr = &syncBuffer{}
	}
	h, err := New(cfg, nil)
	require.NoError(t, err)
	return h
}

func TestEvalSuccess(t *testing.T) {
	h := newTestHost(t, Config{Env: EnvProcess})

	result := h.Eval(context.Background(), "1 + 1")

	assert.Equal(t, StatusSuccess, result.Status)
	require.NotNil(t, result.Value)
	assert.Equal(t, "2", *result.Value)
	assert.Equal(t, "", result.Out)
	assert.Equal(t, "chrome", result.UAProduct)
}

func TestEvalValueStringification(t *testing.T) {
	h := newTestHost(t, Config{})
	ctx := context.Background()

	tests := []struct {
		code string
		want string
	}{
		{`"hello"`, "hello"},
		{`({a: 1})`, `{"a":1}`},
		{`[1, "x"]`, `[1,"x"]`},
		{`undefined`, "undefined"},
		{`null`, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			result := h.Eval(ctx, tt.code)
			require.True(t, result.OK())
			require.NotNil(t, result.Value)
			assert.Equal(t, tt.want, *result.Value)
		})
	}
}

func TestEvalUnserializableValueOmitted(t *testing.T) {
	h := newTestHost(t, Config{})

	result := h.Eval(context.Background(), "var o = {}; o.self = o; o")

	assert.True(t, result.OK())
	assert.Nil(t, result.Value)
}

func TestEvalCapturesOutput(t *testing.T) {
	stdout := &syncBuffer{}
	h := newTestHost(t, Config{Print: []string{ReceiverConsole}, Stdout: stdout})

	result := h.Eval(context.Background(), `console.log("hi", 3); print("there"); 7`)

	assert.True(t, result.OK())
	assert.Equal(t, "hi 3\nthere\n", result.Out)
	require.NotNil(t, result.Value)
	assert.Equal(t, "7", *result.Value)

	assert.Eventually(t, func() bool {
		return stdout.String() == "hi 3\nthere\n"
	}, time.Second, 10*time.Millisecond)
}

func TestEvalRestoresPrintTarget(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	h := newTestHost(t, Config{Print: []string{"test"}})
	h.Printer().Register("test", func(stream Stream, args []string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, string(stream)+":"+strings.Join(args, " "))
	})

	result := h.Eval(context.Background(), `console.log("inside"); throw new Error("x")`)
	assert.False(t, result.OK())

	require.NoError(t, h.RunScript(context.Background(), "after.js", `console.log("outside"); console.error({n: 1})`))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"out:outside", `err:{"n":1}`}, lines)
}

func TestEvalException(t *testing.T) {
	h := newTestHost(t, Config{Env: EnvBrowser, UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"})

	result := h.Eval(context.Background(), `throw new Error("boom")`)

	assert.Equal(t, StatusException, result.Status)
	require.NotNil(t, result.Value)
	assert.Contains(t, *result.Value, "boom")
	assert.NotEmpty(t, result.Stacktrace)
	assert.Equal(t, "firefox", result.UAProduct)
	assert.Empty(t, result.Out)
}

func TestEvalThrownNonError(t *testing.T) {
	h := newTestHost(t, Config{})

	result := h.Eval(context.Background(), `throw "plain"`)

	assert.Equal(t, StatusException, result.Status)
	require.NotNil(t, result.Value)
	assert.Equal(t, "plain", *result.Value)
	assert.Equal(t, NoStacktrace, result.Stacktrace)
}

func TestEvalSyntaxError(t *testing.T) {
	h := newTestHost(t, Config{})

	result := h.Eval(context.Background(), `function (`)

	assert.Equal(t, StatusException, result.Status)
	assert.NotNil(t, result.Value)
}

func TestEvalTimeout(t *testing.T) {
	h := newTestHost(t, Config{Timeout: 50 * time.Millisecond})

	result := h.Eval(context.Background(), `while (true) {}`)

	assert.Equal(t, StatusException, result.Status)
	require.NotNil(t, result.Value)
	assert.Contains(t, *result.Value, "timeout")

	// The interrupt must not leak into the next run.
	next := h.Eval(context.Background(), "40 + 2")
	require.True(t, next.OK())
	assert.Equal(t, "42", *next.Value)
}

func TestEvalCancelledContext(t *testing.T) {
	h := newTestHost(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := h.Eval(ctx, `while (true) {}`)

	assert.Equal(t, StatusException, result.Status)
}

func TestRequireAndEvict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counter.js")
	require.NoError(t, os.WriteFile(path, []byte(`
		var dep = require("./dep");
		globalThis.loads = (globalThis.loads || 0) + 1;
		module.exports = { value: dep.base + 1 };
	`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dep.js"), []byte(`exports.base = 41;`), 0o644))

	h := newTestHost(t, Config{Env: EnvProcess, RootDir: dir})
	ctx := context.Background()

	require.NoError(t, h.Require(ctx, "counter"))
	require.NoError(t, h.Require(ctx, "counter.js"))
	assert.True(t, h.Cached("counter"))

	loads, ok := h.Get("loads")
	require.True(t, ok)
	assert.Equal(t, "1", loads)

	assert.True(t, h.Evict("counter"))
	assert.False(t, h.Cached("counter"))
	require.NoError(t, h.Require(ctx, "counter"))

	loads, _ = h.Get("loads")
	assert.Equal(t, "2", loads)

	result := h.Eval(ctx, `require("./counter").value`)
	require.True(t, result.OK())
	assert.Equal(t, "42", *result.Value)
}

func TestRequireMissingModule(t *testing.T) {
	h := newTestHost(t, Config{Env: EnvProcess, RootDir: t.TempDir()})

	err := h.Require(context.Background(), "missing")
	assert.Error(t, err)
	assert.False(t, h.Cached("missing"))

	result := h.Eval(context.Background(), `require("./missing")`)
	assert.Equal(t, StatusException, result.Status)
}

func TestInstallAndCall(t *testing.T) {
	h := newTestHost(t, Config{})
	var got []string

	require.NoError(t, h.Install("bridge", map[string]interface{}{
		"note": func(s string) { got = append(got, s) },
	}))

	result := h.Eval(context.Background(), `bridge.note("a"); (function() { bridge.note("b"); })`)
	require.True(t, result.OK())

	require.NoError(t, h.RunScript(context.Background(), "fn.js", `var later = function() { bridge.note("c"); };`))
	h.mu.Lock()
	fn := h.vm.Get("later")
	h.mu.Unlock()
	require.NoError(t, h.Call(context.Background(), fn))

	assert.Equal(t, []string{"a", "c"}, got)
}

func TestGlobalsPerEnv(t *testing.T) {
	ctx := context.Background()

	browser := newTestHost(t, Config{Env: EnvBrowser})
	assert.Equal(t, "true", *browser.Eval(ctx, `window === globalThis`).Value)
	assert.Equal(t, "undefined", *browser.Eval(ctx, `typeof require`).Value)

	worker := newTestHost(t, Config{Env: EnvWorker})
	assert.Equal(t, "true", *worker.Eval(ctx, `self === globalThis`).Value)

	process := newTestHost(t, Config{Env: EnvProcess})
	assert.Equal(t, "function", *process.Eval(ctx, `typeof require`).Value)
}

func TestEvalResultWireOut(t *testing.T) {
	h := newTestHost(t, Config{Env: EnvProcess})

	data, err := sonic.Marshal(h.Eval(context.Background(), "1 + 1"))
	require.NoError(t, err)
	var ok map[string]interface{}
	require.NoError(t, sonic.Unmarshal(data, &ok))
	out, present := ok["out"]
	require.True(t, present, "a success always carries out")
	assert.Equal(t, "", out)
	assert.Equal(t, "2", ok["value"])

	data, err = sonic.Marshal(h.Eval(context.Background(), `throw new Error("boom")`))
	require.NoError(t, err)
	var failed map[string]interface{}
	require.NoError(t, sonic.Unmarshal(data, &failed))
	_, present = failed["out"]
	assert.False(t, present)
	assert.Equal(t, StatusException, failed["status"])
	assert.NotEmpty(t, failed["stacktrace"])
}
