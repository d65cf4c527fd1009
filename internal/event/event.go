// Package event holds event dates and the time strings derived from them.
package event

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	dateLayout   = "2006-01-02"
	windowLayout = "15:04:05"

	// rangeEnd is the fixed end of every query range
	rangeEnd = 23*time.Hour + 58*time.Minute + 10*time.Second
)

// Date is one calendar day from an event listing
type Date struct {
	Year  int
	Month int
	Day   int
}

// Parse reads a date from the first ten characters of line (YYYY-MM-DD).
// Anything after the date is ignored.
func Parse(line string) (Date, error) {
	line = strings.TrimSpace(line)
	if len(line) < len(dateLayout) {
		return Date{}, fmt.Errorf("line %q is too short for a date", line)
	}
	t, err := time.Parse(dateLayout, line[:len(dateLayout)])
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", line[:len(dateLayout)], err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// ReadListing parses one date per line. Blank lines are skipped.
func ReadListing(r io.Reader) ([]Date, error) {
	var dates []Date
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		d, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		dates = append(dates, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return dates, nil
}

// ReadListingFile opens path and parses it with ReadListing
func ReadListingFile(path string) ([]Date, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dates, err := ReadListing(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dates, nil
}

// Time returns midnight UTC of the date
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Parts returns the zero-padded year, month and day
func (d Date) Parts() (yr, mn, day string) {
	return fmt.Sprintf("%04d", d.Year), fmt.Sprintf("%02d", d.Month), fmt.Sprintf("%02d", d.Day)
}

// IDLDate formats the date as MMDDYY for the calibration routine
func (d Date) IDLDate() string {
	return fmt.Sprintf("%02d%02d%02d", d.Month, d.Day, d.Year%100)
}

// ShortDate formats the date as YY-MM-DD for the data loader
func (d Date) ShortDate() string {
	return fmt.Sprintf("%02d-%02d-%02d", d.Year%100, d.Month, d.Day)
}

// TimeRange is the query interval for one date
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// TimeRange returns 00:00:00 to 23:58:10 on the same day
func (d Date) TimeRange() TimeRange {
	start := d.Time()
	return TimeRange{Start: start, End: start.Add(rangeEnd)}
}

// Strings returns both ends as YYYY-MM-DD/HH:MM:SS
func (r TimeRange) Strings() (start, end string) {
	const layout = dateLayout + "/" + windowLayout
	return r.Start.Format(layout), r.End.Format(layout)
}

// TraLiteral renders the range as an IDL two-element string array
func (d Date) TraLiteral() string {
	start, end := d.TimeRange().Strings()
	return fmt.Sprintf("['%s','%s']", start, end)
}

// Window is a start time within an event day
type Window struct {
	Start string
}

// DefaultWindows is the single midnight window
func DefaultWindows() []Window {
	return []Window{{Start: "00:00:00"}}
}

// ParseWindows validates HH:MM:SS start times
func ParseWindows(starts []string) ([]Window, error) {
	if len(starts) == 0 {
		return DefaultWindows(), nil
	}
	windows := make([]Window, 0, len(starts))
	for _, s := range starts {
		if _, err := time.Parse(windowLayout, s); err != nil {
			return nil, fmt.Errorf("invalid window start %q: %w", s, err)
		}
		windows = append(windows, Window{Start: s})
	}
	return windows, nil
}

// LoadTime is the loader's start argument, YY-MM-DD/HH:MM:SS
func (w Window) LoadTime(d Date) string {
	return d.ShortDate() + "/" + w.Start
}
