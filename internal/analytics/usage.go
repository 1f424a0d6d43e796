package analytics

import (
	"sort"
	"time"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

const (
	// UsageWindowDays is the sampling window of a resource usage snapshot.
	UsageWindowDays = 14

	defaultSatisfaction = 80.0
	peakHourCount       = 3
)

// SummarizeUsage folds raw usage samples into a snapshot. Satisfaction defaults to a
// neutral 80 when no sample carries a rating.
func SummarizeUsage(samples []models.ResourceUsageSample, capturedAt time.Time) models.UsageSnapshot {
	snapshot := models.UsageSnapshot{
		Satisfaction: defaultSatisfaction,
		PeakHours:    []int{},
		Bottlenecks:  []string{},
		SampleCount:  len(samples),
		CapturedAt:   capturedAt,
	}
	if len(samples) == 0 {
		return snapshot
	}

	var utilization, sessions, satisfaction []float64
	hourly := map[int][]float64{}
	bottlenecks := map[string]int{}

	for _, sample := range samples {
		rate := clamp(sample.UtilizationRate, 0, 100)
		utilization = append(utilization, rate)
		hour := sample.SampledAt.UTC().Hour()
		hourly[hour] = append(hourly[hour], rate)

		if sample.AvgSessionMinutes > 0 {
			sessions = append(sessions, sample.AvgSessionMinutes)
		}
		if sample.Satisfaction != nil {
			satisfaction = append(satisfaction, clamp(*sample.Satisfaction, 0, 100))
		}
		if sample.Bottleneck != "" {
			bottlenecks[sample.Bottleneck]++
		}
		if sample.ActiveSessions > snapshot.ActiveSessions {
			snapshot.ActiveSessions = sample.ActiveSessions
		}
	}

	snapshot.UtilizationRate = Round2(mean(utilization))
	snapshot.AvgSessionMinutes = Round2(mean(sessions))
	if len(satisfaction) > 0 {
		snapshot.Satisfaction = Round2(mean(satisfaction))
	}
	snapshot.PeakHours = peakHours(hourly)
	snapshot.Bottlenecks = rankBottlenecks(bottlenecks)

	return snapshot
}

func peakHours(hourly map[int][]float64) []int {
	type hourRate struct {
		hour int
		rate float64
	}
	rates := make([]hourRate, 0, len(hourly))
	for hour, values := range hourly {
		rates = append(rates, hourRate{hour: hour, rate: mean(values)})
	}
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].rate == rates[j].rate {
			return rates[i].hour < rates[j].hour
		}
		return rates[i].rate > rates[j].rate
	})

	limit := peakHourCount
	if len(rates) < limit {
		limit = len(rates)
	}
	hours := make([]int, 0, limit)
	for _, entry := range rates[:limit] {
		hours = append(hours, entry.hour)
	}
	sort.Ints(hours)
	return hours
}

func rankBottlenecks(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] == counts[names[j]] {
			return names[i] < names[j]
		}
		return counts[names[i]] > counts[names[j]]
	})
	return names
}
