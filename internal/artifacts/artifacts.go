// Package artifacts names output files and owns the run-scoped counter and
// the two accumulator text files.
package artifacts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/GovindGNampoothiri/windCode/internal/event"
)

// Counter numbers the numeric dump files of a run. Values are strictly
// increasing and never reset while the run is alive.
type Counter struct {
	mu   sync.Mutex
	next int
}

// NewCounter starts at start
func NewCounter(start int) *Counter {
	return &Counter{next: start}
}

// Next returns the current value and advances
func (c *Counter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.next
	c.next++
	return n
}

// Peek returns the value Next would return
func (c *Counter) Peek() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Layout places plots under OutputDir and dumps under DumpRoot/OutputDir
type Layout struct {
	OutputDir string
	// DumpRoot must be absolute; the engine resolves paths on its own
	DumpRoot string
}

// PlotPrefix is <dir>/evdf_<yr>_<mn>_<day>_<record>
func (l Layout) PlotPrefix(d event.Date, record int) string {
	yr, mn, day := d.Parts()
	return l.OutputDir + "/" + fmt.Sprintf("evdf_%s_%s_%s_%d", yr, mn, day, record)
}

// PlotPath is <prefix>_<kind>.ps
func (l Layout) PlotPath(prefix, kind string) string {
	return prefix + "_" + kind + ".ps"
}

// DumpPath is the numeric dump for counter value n. An absolute OutputDir
// ignores DumpRoot.
func (l Layout) DumpPath(n int) string {
	rel := l.OutputDir + "/" + fmt.Sprint(n)
	if l.DumpRoot == "" || filepath.IsAbs(l.OutputDir) {
		return rel
	}
	return strings.TrimSuffix(filepath.ToSlash(l.DumpRoot), "/") + "/" + rel
}

// EnsureDir creates path with parents
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// Accumulators are the text files the engine appends to across a run
type Accumulators struct {
	Dir    string
	Names  []string
	logger *slog.Logger
}

// NewAccumulators manages the named files in dir. A nil logger uses
// slog.Default.
func NewAccumulators(dir string, logger *slog.Logger, names ...string) *Accumulators {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulators{Dir: dir, Names: names, logger: logger}
}

// Reset creates every file empty
func (a *Accumulators) Reset() error {
	for _, name := range a.Names {
		path := filepath.Join(a.Dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to reset %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		a.logger.Debug("Accumulator reset", slog.String("path", path))
	}
	return nil
}

// Finalize renames every file to carry the batch suffix, time.txt becoming
// time_<batch>.txt. It returns the new paths.
func (a *Accumulators) Finalize(batch int) ([]string, error) {
	renamed := make([]string, 0, len(a.Names))
	for _, name := range a.Names {
		src := filepath.Join(a.Dir, name)
		dst := filepath.Join(a.Dir, Suffixed(name, batch))
		if err := os.Rename(src, dst); err != nil {
			return renamed, fmt.Errorf("failed to finalize %s: %w", src, err)
		}
		a.logger.Info("Accumulator finalized",
			slog.String("from", src),
			slog.String("to", dst))
		renamed = append(renamed, dst)
	}
	return renamed, nil
}

// Suffixed inserts _<batch> before the extension
func Suffixed(name string, batch int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), batch, ext)
}
