package host

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Stream names a program output stream.
type Stream string

const (
	StreamOut Stream = "out"
	StreamErr Stream = "err"
)

// Receiver names understood by the bridge.
const (
	ReceiverConsole = "console"
	ReceiverREPL    = "repl"
)

// Receiver consumes one line of program output.
type Receiver func(stream Stream, args []string)

// Printer fans program output out to the configured receivers. Receivers
// are enabled by name up front and implemented later; an enabled name with
// no implementation is skipped.
type Printer struct {
	mu        sync.Mutex
	enabled   []string
	receivers map[string]Receiver
	capture   *strings.Builder
}

// NewPrinter creates a printer for the given receiver names.
func NewPrinter(enabled []string) *Printer {
	return &Printer{
		enabled:   append([]string(nil), enabled...),
		receivers: make(map[string]Receiver),
	}
}

// Register implements the named receiver, replacing any previous one.
func (p *Printer) Register(name string, r Receiver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receivers[name] = r
}

// Unregister removes the named receiver implementation.
func (p *Printer) Unregister(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.receivers, name)
}

// Enabled reports whether name is one of the configured receivers.
func (p *Printer) Enabled(name string) bool {
	for _, n := range p.enabled {
		if n == name {
			return true
		}
	}
	return false
}

// Print writes args to every enabled receiver. While a capture is active,
// the out stream goes only to the capture buffer.
func (p *Printer) Print(stream Stream, args ...string) {
	p.mu.Lock()
	if stream == StreamOut && p.capture != nil {
		p.capture.WriteString(strings.Join(args, " "))
		p.capture.WriteByte('\n')
		p.mu.Unlock()
		return
	}

	targets := make([]Receiver, 0, len(p.enabled))
	for _, name := range p.enabled {
		if r, ok := p.receivers[name]; ok {
			targets = append(targets, r)
		}
	}
	p.mu.Unlock()

	for _, r := range targets {
		r(stream, args)
	}
}

// PrintTo writes args to a single receiver if it is enabled and implemented.
func (p *Printer) PrintTo(name string, stream Stream, args ...string) {
	if !p.Enabled(name) {
		return
	}
	p.mu.Lock()
	r, ok := p.receivers[name]
	p.mu.Unlock()
	if ok {
		r(stream, args)
	}
}

// beginCapture redirects the out stream to a fresh buffer and returns a
// function restoring the previous target and yielding the captured text.
func (p *Printer) beginCapture() func() string {
	sb := &strings.Builder{}

	p.mu.Lock()
	prev := p.capture
	p.capture = sb
	p.mu.Unlock()

	return func() string {
		p.mu.Lock()
		p.capture = prev
		p.mu.Unlock()
		return sb.String()
	}
}

// ConsoleReceiver writes out to stdout and err to stderr.
func ConsoleReceiver(stdout, stderr io.Writer) Receiver {
	var mu sync.Mutex
	return func(stream Stream, args []string) {
		w := stdout
		if stream == StreamErr {
			w = stderr
		}
		line := strings.Join(args, " ")

		mu.Lock()
		defer mu.Unlock()
		if strings.HasSuffix(line, "\n") {
			fmt.Fprint(w, line)
		} else {
			fmt.Fprintln(w, line)
		}
	}
}
