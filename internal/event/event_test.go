package event

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Date
		wantErr bool
	}{
		{"plain", "2001-05-03", Date{2001, 5, 3}, false},
		{"trailing newline", "1999-12-31\n", Date{1999, 12, 31}, false},
		{"trailing text", "2004-11-07T12:00 shock", Date{2004, 11, 7}, false},
		{"leap day", "2000-02-29", Date{2000, 2, 29}, false},
		{"too short", "2001-5-3", Date{}, true},
		{"bad month", "2001-13-01", Date{}, true},
		{"not a leap year", "2001-02-29", Date{}, true},
		{"garbage", "event list", Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadListing(t *testing.T) {
	input := "2001-05-03\n\n1998-08-26\n   \n2004-11-07 extra\n"
	dates, err := ReadListing(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Date{{2001, 5, 3}, {1998, 8, 26}, {2004, 11, 7}}, dates)

	_, err = ReadListing(strings.NewReader("2001-05-03\nnope\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	dates, err = ReadListing(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestReadListingFileMissing(t *testing.T) {
	_, err := ReadListingFile("does-not-exist.txt")
	assert.Error(t, err)
}

func TestFormats(t *testing.T) {
	d := Date{2001, 5, 3}

	assert.Equal(t, "2001-05-03", d.String())
	assert.Equal(t, "050301", d.IDLDate())
	assert.Equal(t, "01-05-03", d.ShortDate())
	assert.Equal(t, "['2001-05-03/00:00:00','2001-05-03/23:58:10']", d.TraLiteral())

	yr, mn, day := d.Parts()
	assert.Equal(t, []string{"2001", "05", "03"}, []string{yr, mn, day})

	// Two-digit years wrap the same way the loader expects
	assert.Equal(t, "123199", Date{1999, 12, 31}.IDLDate())
	assert.Equal(t, "00-01-09", Date{2000, 1, 9}.ShortDate())
}

func TestTimeRangeStaysOnDay(t *testing.T) {
	dates := []Date{
		{1994, 11, 1},
		{2000, 2, 29},
		{2001, 5, 3},
		{2016, 12, 31},
		{2024, 3, 10},
	}
	// Every day of a leap year as well
	for d := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == 2000; d = d.AddDate(0, 0, 1) {
		dates = append(dates, Date{d.Year(), int(d.Month()), d.Day()})
	}

	for _, d := range dates {
		r := d.TimeRange()
		start, end := r.Strings()

		assert.Equal(t, d.String()+"/00:00:00", start)
		assert.Equal(t, d.String()+"/23:58:10", end)
		assert.Equal(t, r.Start.YearDay(), r.End.YearDay(), "range for %s crosses midnight", d)
		assert.True(t, r.End.After(r.Start))
	}
}

func TestWindows(t *testing.T) {
	windows, err := ParseWindows(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindows(), windows)

	windows, err = ParseWindows([]string{"00:00:00", "12:30:00"})
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "01-05-03/12:30:00", windows[1].LoadTime(Date{2001, 5, 3}))

	_, err = ParseWindows([]string{"25:00:00"})
	assert.Error(t, err)
}
