package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCloseGrace is how long Close waits for a voluntary exit before killing
const DefaultCloseGrace = 5 * time.Second

// SessionConfig describes the engine process
type SessionConfig struct {
	Command string
	Args    []string
	Dir     string
	// Env is appended to the current environment
	Env []string
	// SyncTimeout bounds any single Await; zero means DefaultSyncTimeout
	SyncTimeout time.Duration
	CloseGrace  time.Duration
	// Echo receives raw output as it arrives, usually os.Stdout
	Echo io.Writer
	// Transcript receives a copy of raw output; it is not closed by the session
	Transcript io.Writer
}

// Session owns one engine process. Stdout and stderr share one pipe so the
// output buffer sees them in arrival order.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *os.File
	group  *errgroup.Group
	exited chan struct{}

	mu      sync.Mutex
	buf     strings.Builder
	changed chan struct{}
	eof     bool
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

// Start launches the engine and begins pumping its output
func Start(ctx context.Context, cfg SessionConfig, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = DefaultSyncTimeout
	}
	if cfg.CloseGrace <= 0 {
		cfg.CloseGrace = DefaultCloseGrace
	}
	if cfg.Command == "" {
		return nil, NewStartError("", errors.New("no engine command configured"))
	}

	// The process outlives individual calls; ctx only guards the launch
	if err := ctx.Err(); err != nil {
		return nil, NewStartError(cfg.Command, err)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, NewStartError(cfg.Command, fmt.Errorf("failed to create stdin pipe: %w", err))
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, NewStartError(cfg.Command, fmt.Errorf("failed to create output pipe: %w", err))
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		stdin.Close()
		pr.Close()
		pw.Close()
		return nil, NewStartError(cfg.Command, err)
	}
	// Only the child holds the write end now
	pw.Close()

	s := &Session{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "engine"), slog.Int("pid", cmd.Process.Pid)),
		cmd:     cmd,
		stdin:   stdin,
		out:     pr,
		group:   &errgroup.Group{},
		exited:  make(chan struct{}),
		changed: make(chan struct{}),
	}

	s.group.Go(s.pump)
	s.group.Go(func() error {
		err := cmd.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.mu.Unlock()
		close(s.exited)
		return nil
	})

	s.logger.Info("Engine started",
		slog.String("command", cfg.Command),
		slog.Duration("sync_timeout", cfg.SyncTimeout))

	return s, nil
}

// pump copies engine output into the match buffer until EOF
func (s *Session) pump() error {
	var sinks []io.Writer
	if s.cfg.Echo != nil {
		sinks = append(sinks, s.cfg.Echo)
	}
	if s.cfg.Transcript != nil {
		sinks = append(sinks, s.cfg.Transcript)
	}
	tee := io.MultiWriter(sinks...)

	chunk := make([]byte, 4096)
	for {
		n, err := s.out.Read(chunk)
		if n > 0 {
			// Echo failures must not stall the engine
			_, _ = tee.Write(chunk[:n])

			s.mu.Lock()
			s.buf.Write(chunk[:n])
			close(s.changed)
			s.changed = make(chan struct{})
			s.mu.Unlock()
		}
		if err != nil {
			s.mu.Lock()
			s.eof = true
			close(s.changed)
			s.changed = make(chan struct{})
			s.mu.Unlock()
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read engine output: %w", err)
		}
	}
}

// Send writes one command line to the engine
func (s *Session) Send(ctx context.Context, command string) error {
	if err := ctx.Err(); err != nil {
		return &SessionError{Type: ErrorTypeCancelled, Command: command, Message: "send cancelled", Cause: err}
	}

	s.logger.DebugContext(ctx, "Send", slog.String("command", command))

	if _, err := io.WriteString(s.stdin, command+"\n"); err != nil {
		return &SessionError{
			Type:    ErrorTypeExited,
			Command: command,
			Message: "engine input closed",
			Cause:   err,
		}
	}
	return nil
}

// Await blocks until the buffered output contains one of patterns. The
// buffer is consumed through the end of the match.
func (s *Session) Await(ctx context.Context, patterns []Pattern, timeout time.Duration) (Match, error) {
	if timeout <= 0 {
		timeout = s.cfg.SyncTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		buffered := s.buf.String()
		if m, consumed, ok := match(buffered, patterns); ok {
			s.buf.Reset()
			s.buf.WriteString(buffered[consumed:])
			s.mu.Unlock()
			return m, nil
		}
		if s.eof {
			s.mu.Unlock()
			return Match{}, &SessionError{
				Type:     ErrorTypeExited,
				Message:  "engine output closed before a prompt appeared",
				Captured: buffered,
			}
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return Match{}, &SessionError{
				Type:     ErrorTypeTimeout,
				Message:  fmt.Sprintf("no prompt within %s (waiting for %s)", timeout, describe(patterns)),
				Captured: buffered,
			}
		case <-ctx.Done():
			return Match{}, &SessionError{
				Type:     ErrorTypeCancelled,
				Message:  "wait cancelled",
				Captured: buffered,
				Cause:    ctx.Err(),
			}
		}
	}
}

// Close ends the engine. Stdin is closed first so the console can exit on
// its own; after the grace period the process is killed. Safe to call more
// than once and after the process has already exited.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()

		select {
		case <-s.exited:
		default:
			_ = s.cmd.Process.Signal(os.Interrupt)
			grace := time.NewTimer(s.cfg.CloseGrace)
			select {
			case <-s.exited:
				grace.Stop()
			case <-grace.C:
				s.logger.Warn("Engine did not exit, killing",
					slog.Duration("grace", s.cfg.CloseGrace))
				if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
					s.closeErr = fmt.Errorf("kill engine: %w", err)
				}
				<-s.exited
			}
		}

		// Unblocks the pump if a grandchild still holds the write end
		_ = s.out.Close()
		if err := s.group.Wait(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}

		s.logger.Info("Engine closed", slog.Bool("exited_cleanly", s.waitErr == nil))
	})
	return s.closeErr
}

// Done is closed once the engine process has exited
func (s *Session) Done() <-chan struct{} {
	return s.exited
}

func describe(patterns []Pattern) string {
	names := make([]string, len(patterns))
	for i, p := range patterns {
		names[i] = fmt.Sprintf("%q", p.String())
	}
	return strings.Join(names, ", ")
}
