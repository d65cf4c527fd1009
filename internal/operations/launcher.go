package operations

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/GovindGNampoothiri/windCode/internal/engine"
)

// SessionLauncher starts real engine processes, optionally recording a
// compressed transcript per event.
type SessionLauncher struct {
	Config engine.SessionConfig
	// TranscriptPath returns where to write the transcript for label; nil
	// disables transcripts
	TranscriptPath  func(label string) string
	TranscriptLevel int
	Logger          *slog.Logger
}

// Launch implements Launcher
func (l *SessionLauncher) Launch(ctx context.Context, label string) (engine.Engine, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := l.Config

	var tr *engine.Transcript
	if l.TranscriptPath != nil {
		var err error
		tr, err = engine.NewTranscript(l.TranscriptPath(label), l.TranscriptLevel)
		if err != nil {
			return nil, engine.NewStartError(cfg.Command, err)
		}
		cfg.Transcript = tr
	}

	s, err := engine.Start(ctx, cfg, logger.With(slog.String("event", label)))
	if err != nil {
		if tr != nil {
			_ = tr.Close()
		}
		return nil, err
	}
	if tr == nil {
		return s, nil
	}
	return &recordedSession{Session: s, transcript: tr}, nil
}

// recordedSession closes its transcript after the engine
type recordedSession struct {
	*engine.Session
	transcript io.Closer
	once       sync.Once
	err        error
}

func (r *recordedSession) Close() error {
	r.once.Do(func() {
		r.err = r.Session.Close()
		if err := r.transcript.Close(); err != nil && r.err == nil {
			r.err = err
		}
	})
	return r.err
}
