// Package testutil provides a scripted engine for driving the analyser in
// tests without a real console.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GovindGNampoothiri/windCode/internal/engine"
)

// Default console markers
const (
	StartupPrompt   = "IDL>"
	ReadyPrompt     = "UMN>"
	InputPrompt     = "Please enter a value:"
	NoMomentsMarker = "No ion moments available for this interval"
)

// Reply is what the fake prints after a command
type Reply struct {
	// Output precedes the marker
	Output string
	// Marker ends the reply; empty means the ready prompt. A message marker
	// is followed by the ready prompt like on the real console, while the
	// input prompt waits for the next line as its answer.
	Marker string
	// Timeout makes the engine hang from this command on
	Timeout bool
	// Stall holds the marker back past the first wait, which times out
	Stall bool
	// Exit makes the engine quit after printing Output
	Exit bool
}

type rule struct {
	prefix  string
	replies []Reply
}

// FakeEngine replays scripted output keyed by command prefix. Commands with
// no rule are answered with the ready prompt.
type FakeEngine struct {
	mu         sync.Mutex
	rules      []*rule
	pending    string
	late       string
	sent       []string
	answers    []string
	closeCount int
	hung       bool
	exited     bool
	reading    bool
}

// NewFakeEngine returns an engine that has printed its startup prompt
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{pending: "IDL Version 8.5 (linux x86_64 m64).\n" + StartupPrompt + " "}
}

// On registers replies for commands starting with prefix (leading spaces
// ignored). Replies are used in order; the last one repeats.
func (f *FakeEngine) On(prefix string, replies ...Reply) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(replies) == 0 {
		replies = []Reply{{}}
	}
	f.rules = append(f.rules, &rule{prefix: strings.TrimSpace(prefix), replies: replies})
	return f
}

// Send records the command and queues its reply
func (f *FakeEngine) Send(ctx context.Context, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.exited || f.closeCount > 0 {
		return &engine.SessionError{Type: engine.ErrorTypeExited, Command: command, Message: "engine input closed"}
	}
	f.sent = append(f.sent, command)
	if f.hung {
		return nil
	}
	f.pending += f.late
	f.late = ""

	// A pending read takes the line as its answer. Unless a rule scripts
	// the answer, the routine gives up and returns to the prompt.
	trimmed := strings.TrimSpace(command)
	if f.reading {
		f.reading = false
		f.answers = append(f.answers, command)
		if !f.hasRule(trimmed) {
			f.pending += "% READ: Input conversion error.\n" + ReadyPrompt + " "
			return nil
		}
	}

	reply := f.replyFor(trimmed)
	f.pending += reply.Output
	switch {
	case reply.Timeout:
		f.hung = true
	case reply.Exit:
		f.exited = true
	default:
		tail := f.tail(reply.Marker)
		if reply.Stall {
			f.late = tail
		} else {
			f.pending += tail
		}
	}
	return nil
}

// tail is the text ending a reply with marker
func (f *FakeEngine) tail(marker string) string {
	switch marker {
	case "", ReadyPrompt:
		return ReadyPrompt + " "
	case InputPrompt:
		f.reading = true
		return InputPrompt + " "
	}
	return marker + "\n" + ReadyPrompt + " "
}

func (f *FakeEngine) hasRule(command string) bool {
	for _, r := range f.rules {
		if strings.HasPrefix(command, r.prefix) {
			return true
		}
	}
	return false
}

func (f *FakeEngine) replyFor(command string) Reply {
	for _, r := range f.rules {
		if !strings.HasPrefix(command, r.prefix) {
			continue
		}
		reply := r.replies[0]
		if len(r.replies) > 1 {
			r.replies = r.replies[1:]
		}
		return reply
	}
	return Reply{}
}

// Await matches against the queued output with the same rules as a session
func (f *FakeEngine) Await(ctx context.Context, patterns []engine.Pattern, timeout time.Duration) (engine.Match, error) {
	if err := ctx.Err(); err != nil {
		return engine.Match{}, &engine.SessionError{Type: engine.ErrorTypeCancelled, Message: "wait cancelled", Cause: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := engine.Scan(f.pending, patterns); ok {
		f.pending = f.pending[len(m.Before)+len(m.Matched):]
		return m, nil
	}

	captured := f.pending
	if f.late != "" {
		f.pending += f.late
		f.late = ""
		return engine.Match{}, &engine.SessionError{
			Type:     engine.ErrorTypeTimeout,
			Message:  fmt.Sprintf("no prompt within %s", timeout),
			Captured: captured,
		}
	}
	if f.exited {
		return engine.Match{}, &engine.SessionError{
			Type:     engine.ErrorTypeExited,
			Message:  "engine output closed before a prompt appeared",
			Captured: captured,
		}
	}
	// Nothing further will ever arrive
	return engine.Match{}, &engine.SessionError{
		Type:     engine.ErrorTypeTimeout,
		Message:  fmt.Sprintf("no prompt within %s", timeout),
		Captured: captured,
	}
}

// Close counts calls; every call after the first is a no-op
func (f *FakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	return nil
}

// Sent returns every command sent so far
func (f *FakeEngine) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

// SentMatching returns sent commands that start with prefix
func (f *FakeEngine) SentMatching(prefix string) []string {
	prefix = strings.TrimSpace(prefix)
	var out []string
	for _, c := range f.Sent() {
		if strings.HasPrefix(strings.TrimSpace(c), prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Answers returns the lines consumed by input requests
func (f *FakeEngine) Answers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.answers))
	copy(out, f.answers)
	return out
}

// CloseCount returns how many times Close was called
func (f *FakeEngine) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

// Factory hands out one fake per launch
type Factory struct {
	mu sync.Mutex
	// Setup scripts the n-th engine (0-based); nil leaves it unscripted
	Setup func(n int, label string, f *FakeEngine)
	// StartErr makes every launch fail
	StartErr error
	Engines  []*FakeEngine
	Labels   []string
}

// Launch implements the analyser's launcher contract
func (fa *Factory) Launch(ctx context.Context, label string) (engine.Engine, error) {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.StartErr != nil {
		return nil, engine.NewStartError("fake", fa.StartErr)
	}
	f := NewFakeEngine()
	if fa.Setup != nil {
		fa.Setup(len(fa.Engines), label, f)
	}
	fa.Engines = append(fa.Engines, f)
	fa.Labels = append(fa.Labels, label)
	return f, nil
}

// Launched returns the engines handed out so far
func (fa *Factory) Launched() []*FakeEngine {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	out := make([]*FakeEngine, len(fa.Engines))
	copy(out, fa.Engines)
	return out
}
