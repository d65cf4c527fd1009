package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Transcript is a zstd-compressed copy of one session's raw output
type Transcript struct {
	mu   sync.Mutex
	file *os.File
	enc  *zstd.Encoder
}

// NewTranscript creates path and its parent directory. level runs from 1
// (fastest) to 4 (best compression).
func NewTranscript(path string, level int) (*Transcript, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}

	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(encoderLevel(level)))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	return &Transcript{file: file, enc: enc}, nil
}

func encoderLevel(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	case 4:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// Write implements io.Writer
func (t *Transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enc.Write(p)
}

// Close flushes the frame and closes the file
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	encErr := t.enc.Close()
	fileErr := t.file.Close()
	if encErr != nil {
		return fmt.Errorf("flush transcript: %w", encErr)
	}
	return fileErr
}

// ReadTranscript decompresses a transcript written by Transcript
func ReadTranscript(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	return io.ReadAll(dec)
}
