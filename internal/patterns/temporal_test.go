package patterns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"famcoord/internal/model"
)

func ts(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestComputeTemporalStatsWeeklyMondays(t *testing.T) {
	// five consecutive Mondays
	times := []time.Time{
		ts(2, 9), ts(9, 9), ts(16, 9), ts(23, 9), ts(30, 9),
	}
	stats := computeTemporalStats(times)

	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, []time.Weekday{time.Monday}, stats.WeekdayModes)
	assert.Equal(t, []int{9}, stats.HourModes)
	assert.InDelta(t, 7.0, stats.MeanGapDays, 1e-9)
	assert.Equal(t, ts(2, 9), stats.First)
	assert.Equal(t, ts(30, 9), stats.Last)
}

func TestComputeTemporalStatsTiesReturnAll(t *testing.T) {
	// March 2 2026 is a Monday, March 3 a Tuesday
	times := []time.Time{
		ts(2, 8), ts(3, 17), ts(9, 8), ts(10, 17),
	}
	stats := computeTemporalStats(times)

	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday}, stats.WeekdayModes)
	assert.Equal(t, []int{8, 17}, stats.HourModes)
}

func TestComputeTemporalStatsUnsortedInput(t *testing.T) {
	times := []time.Time{ts(16, 9), ts(2, 9), ts(9, 9)}
	stats := computeTemporalStats(times)

	assert.InDelta(t, 7.0, stats.MeanGapDays, 1e-9)
	assert.Equal(t, ts(2, 9), stats.First)
}

func TestComputeTemporalStatsSingleAndEmpty(t *testing.T) {
	single := computeTemporalStats([]time.Time{ts(2, 9)})
	assert.Equal(t, 1, single.Count)
	assert.Zero(t, single.MeanGapDays)

	empty := computeTemporalStats(nil)
	assert.Zero(t, empty.Count)
	assert.Empty(t, empty.WeekdayModes)
}

func TestFrequencyFromGap(t *testing.T) {
	tests := []struct {
		gap   float64
		count int
		want  string
	}{
		{1.0, 10, model.FrequencyDaily},
		{7.0, 5, model.FrequencyWeekly},
		{30.0, 4, model.FrequencyMonthly},
		{90.0, 3, model.FrequencySeasonal},
		{200.0, 3, model.FrequencyAdHoc},
		{0, 1, model.FrequencyAdHoc},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, frequencyFromGap(tt.gap, tt.count), "gap %v count %d", tt.gap, tt.count)
	}
}
