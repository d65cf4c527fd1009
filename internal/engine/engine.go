// Package engine drives an interactive, prompt-delimited console process.
//
// The only synchronization primitive is Await: every Send that expects the
// engine to finish work is followed by exactly one Await before the next Send,
// because the engine handles commands strictly in order and prints its ready
// prompt only when idle.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultSyncTimeout is the ceiling for a single synchronization point
const DefaultSyncTimeout = time.Hour

// Engine is the narrow interface the analyser drives. Session implements it
// for a real subprocess; testutil.FakeEngine replays scripted output.
type Engine interface {
	Send(ctx context.Context, command string) error
	Await(ctx context.Context, patterns []Pattern, timeout time.Duration) (Match, error)
	Close() error
}

// Pattern is a literal marker or a regular expression
type Pattern struct {
	literal string
	re      *regexp.Regexp
}

// Literal matches s exactly
func Literal(s string) Pattern {
	return Pattern{literal: s}
}

// Regexp compiles expr into a pattern
func Regexp(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

// MustRegexp is like Regexp but panics on a bad expression
func MustRegexp(expr string) Pattern {
	p, err := Regexp(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the literal or the expression source
func (p Pattern) String() string {
	if p.re != nil {
		return p.re.String()
	}
	return p.literal
}

// find returns the byte span of the first occurrence of p in s
func (p Pattern) find(s string) (start, end int, ok bool) {
	if p.re != nil {
		loc := p.re.FindStringIndex(s)
		if loc == nil {
			return 0, 0, false
		}
		return loc[0], loc[1], true
	}
	if p.literal == "" {
		return 0, 0, false
	}
	i := strings.Index(s, p.literal)
	if i < 0 {
		return 0, 0, false
	}
	return i, i + len(p.literal), true
}

// Match is the outcome of a successful Await
type Match struct {
	// Index of the pattern that matched
	Index int
	// Before is the output that preceded the match
	Before string
	// Matched is the matched text itself
	Matched string
}

// Vocabulary is the fixed set of markers the console prints
type Vocabulary struct {
	Ready     Pattern
	Input     Pattern
	NoMoments Pattern
}

// Positions of the markers in Vocabulary.Patterns
const (
	IndexReady = iota
	IndexInput
	IndexNoMoments
)

// Patterns returns the markers in index order
func (v Vocabulary) Patterns() []Pattern {
	return []Pattern{v.Ready, v.Input, v.NoMoments}
}

// Expect sends command and waits for the ready prompt. Any other marker is
// an unexpected prompt and a timeout means the engine is hung.
func Expect(ctx context.Context, e Engine, command string, v Vocabulary, timeout time.Duration) (Match, error) {
	return ExpectDelayed(ctx, e, command, 0, v, timeout)
}

// ExpectDelayed is Expect with a send delay
func ExpectDelayed(ctx context.Context, e Engine, command string, delay time.Duration, v Vocabulary, timeout time.Duration) (Match, error) {
	if err := SendWithDelay(ctx, e, command, delay); err != nil {
		return Match{}, err
	}
	m, err := e.Await(ctx, v.Patterns(), timeout)
	if err != nil {
		if IsType(err, ErrorTypeTimeout) {
			return m, NewHungError(command, err)
		}
		return m, withCommand(err, command)
	}
	if m.Index != IndexReady {
		return m, NewUnexpectedPromptError(command, m)
	}
	return m, nil
}

// SendWithDelay waits delay before sending, like a console's send delay
func SendWithDelay(ctx context.Context, e Engine, command string, delay time.Duration) error {
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return &SessionError{Type: ErrorTypeCancelled, Command: command, Message: "send cancelled", Cause: ctx.Err()}
		case <-t.C:
		}
	}
	return e.Send(ctx, command)
}

// withCommand stamps command on a session error that lacks one
func withCommand(err error, command string) error {
	if sErr, ok := err.(*SessionError); ok && sErr.Command == "" {
		cp := *sErr
		cp.Command = command
		return &cp
	}
	return err
}
