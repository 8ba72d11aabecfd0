package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 is a Monday.
func monday(hour, min, sec int) time.Time {
	return time.Date(2024, 1, 1, hour, min, sec, 0, time.UTC)
}

func TestParse(t *testing.T) {
	w, err := Parse("mon,tue,wed 09:00 17:00")
	require.NoError(t, err)
	assert.True(t, w.Days[time.Monday])
	assert.True(t, w.Days[time.Tuesday])
	assert.True(t, w.Days[time.Wednesday])
	assert.False(t, w.Days[time.Thursday])
	assert.Equal(t, 9*60, w.Start)
	assert.Equal(t, 17*60, w.End)
}

func TestParse_DayGroups(t *testing.T) {
	w, err := Parse("weekdays 08:30 18:00")
	require.NoError(t, err)
	assert.Len(t, w.Days, 5)
	assert.True(t, w.Days[time.Friday])
	assert.False(t, w.Days[time.Saturday])

	w, err = Parse("weekends 10:00 12:00")
	require.NoError(t, err)
	assert.Len(t, w.Days, 2)
	assert.True(t, w.Days[time.Sunday])
}

func TestParse_Malformed(t *testing.T) {
	tests := []string{
		"",
		"mon 09:00",
		"mon 9am 5pm",
		"funday 09:00 17:00",
		"mon 17:00 09:00",
	}
	for _, entry := range tests {
		_, err := Parse(entry)
		assert.Error(t, err, "entry %q should not parse", entry)
	}
}

func TestWindow_MatchesBoundaries(t *testing.T) {
	w, err := Parse("mon 09:00 17:00")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start exact", monday(9, 0, 0), true},
		{"end exact", monday(17, 0, 0), true},
		{"one second before start", monday(8, 59, 59), false},
		{"one second after end", monday(17, 0, 1), false},
		{"inside", monday(12, 30, 0), true},
		{"last full minute", monday(16, 59, 59), true},
		// 2024-01-02 is a Tuesday.
		{"other weekday", time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Matches(tt.at))
		})
	}
}

func TestAnyMatch_SkipsMalformedEntries(t *testing.T) {
	entries := []string{
		"not a schedule",
		"mon 09:00 17:00",
	}

	matched, errs := AnyMatch(entries, monday(10, 0, 0))
	assert.True(t, matched)
	assert.Len(t, errs, 1)
}

func TestAnyMatch_EmptyList(t *testing.T) {
	matched, errs := AnyMatch(nil, monday(10, 0, 0))
	assert.False(t, matched)
	assert.Empty(t, errs)
}
