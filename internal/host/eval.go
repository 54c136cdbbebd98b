package host

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Eval result statuses.
const (
	StatusSuccess   = "success"
	StatusException = "exception"
)

// NoStacktrace is reported when a thrown value carries no stack.
const NoStacktrace = "No stacktrace available."

// EvalResult is the structured outcome of one evaluation. A success always
// carries out, even when empty; an exception never does.
type EvalResult struct {
	Status     string  `json:"status"`
	Out        string  `json:"out"`
	Value      *string `json:"value,omitempty"`
	UAProduct  string  `json:"ua-product,omitempty"`
	Stacktrace string  `json:"stacktrace,omitempty"`
}

// OK reports whether the evaluation succeeded.
func (r EvalResult) OK() bool { return r.Status == StatusSuccess }

// MarshalJSON implements json.Marshaler.
func (r EvalResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		Status     string  `json:"status"`
		Out        *string `json:"out,omitempty"`
		Value      *string `json:"value,omitempty"`
		UAProduct  string  `json:"ua-product,omitempty"`
		Stacktrace string  `json:"stacktrace,omitempty"`
	}
	w := wire{
		Status:     r.Status,
		Value:      r.Value,
		UAProduct:  r.UAProduct,
		Stacktrace: r.Stacktrace,
	}
	if r.OK() {
		out := r.Out
		w.Out = &out
	}
	return sonic.Marshal(w)
}

// Eval runs code and captures its out stream. The capture is restored on
// every exit path; captured output is then forwarded to the console
// receiver when one is configured.
func (h *Host) Eval(ctx context.Context, code string) EvalResult {
	start := time.Now()
	ua := h.UAProduct()

	result, out := h.evalLocked(ctx, code, ua)

	if out != "" && h.printer.Enabled(ReceiverConsole) {
		time.AfterFunc(0, func() {
			h.printer.PrintTo(ReceiverConsole, StreamOut, out)
		})
	}

	h.logger.Debug("Eval finished",
		zap.String("status", result.Status),
		zap.Duration("duration", time.Since(start)))
	return result
}

func (h *Host) evalLocked(ctx context.Context, code, ua string) (EvalResult, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	endCapture := h.printer.beginCapture()
	release := h.guard(ctx)

	val, err := h.vm.RunString(code)

	release()
	out := endCapture()

	if err != nil {
		h.logger.Warn("REPL eval error", zap.Error(err))
		return h.exception(err, ua), out
	}

	result := EvalResult{
		Status:    StatusSuccess,
		Out:       out,
		UAProduct: ua,
	}
	if s, ok := val.Export().(string); ok {
		result.Value = &s
	} else if s, ok := h.jsonString(val); ok {
		result.Value = &s
	}
	return result, out
}

// exception builds the result for a failed evaluation. Must run with the VM
// lock held.
func (h *Host) exception(err error, ua string) EvalResult {
	result := EvalResult{
		Status:     StatusException,
		UAProduct:  ua,
		Stacktrace: NoStacktrace,
	}

	var ex *goja.Exception
	if !errors.As(err, &ex) {
		msg := err.Error()
		result.Value = &msg
		return result
	}

	thrown := ex.Value()
	msg := thrown.String()
	result.Value = &msg

	if obj, ok := thrown.(*goja.Object); ok && h.isError(obj) {
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) && !goja.IsNull(stack) {
			result.Stacktrace = stack.String()
		}
	}
	return result
}

func (h *Host) isError(obj *goja.Object) bool {
	ctor, ok := h.vm.Get("Error").(*goja.Object)
	if !ok {
		return false
	}
	return obj.ClassName() == "Error" || h.vm.InstanceOf(obj, ctor)
}
