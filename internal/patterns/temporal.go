package patterns

import (
	"sort"
	"time"

	"famcoord/internal/model"
)

// temporalStats summarizes when a theme group's emails arrive.
type temporalStats struct {
	Count        int
	WeekdayModes []time.Weekday
	HourModes    []int
	MeanGapDays  float64
	First        time.Time
	Last         time.Time
}

// computeTemporalStats derives arrival statistics from a group's timestamps.
// Modes return every tied value rather than picking one arbitrarily.
func computeTemporalStats(times []time.Time) temporalStats {
	if len(times) == 0 {
		return temporalStats{}
	}

	sorted := make([]time.Time, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	weekdayCounts := map[time.Weekday]int{}
	hourCounts := map[int]int{}
	for _, t := range sorted {
		weekdayCounts[t.Weekday()]++
		hourCounts[t.Hour()]++
	}

	stats := temporalStats{
		Count: len(sorted),
		First: sorted[0],
		Last:  sorted[len(sorted)-1],
	}

	maxWeekday := 0
	for _, c := range weekdayCounts {
		if c > maxWeekday {
			maxWeekday = c
		}
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if weekdayCounts[wd] == maxWeekday {
			stats.WeekdayModes = append(stats.WeekdayModes, wd)
		}
	}

	maxHour := 0
	for _, c := range hourCounts {
		if c > maxHour {
			maxHour = c
		}
	}
	for h := 0; h < 24; h++ {
		if hourCounts[h] == maxHour {
			stats.HourModes = append(stats.HourModes, h)
		}
	}

	if len(sorted) > 1 {
		var totalGap time.Duration
		for i := 1; i < len(sorted); i++ {
			totalGap += sorted[i].Sub(sorted[i-1])
		}
		stats.MeanGapDays = totalGap.Hours() / 24 / float64(len(sorted)-1)
	}

	return stats
}

// frequencyFromGap buckets a mean inter-arrival gap into a frequency label.
func frequencyFromGap(meanGapDays float64, count int) string {
	if count < 2 {
		return model.FrequencyAdHoc
	}
	switch {
	case meanGapDays <= 1.5:
		return model.FrequencyDaily
	case meanGapDays <= 9:
		return model.FrequencyWeekly
	case meanGapDays <= 35:
		return model.FrequencyMonthly
	case meanGapDays <= 120:
		return model.FrequencySeasonal
	default:
		return model.FrequencyAdHoc
	}
}

func weekdayNames(wds []time.Weekday) []string {
	names := make([]string, 0, len(wds))
	for _, wd := range wds {
		names = append(names, wd.String())
	}
	return names
}
