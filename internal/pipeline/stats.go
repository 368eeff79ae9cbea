package pipeline

import (
	"math"
	"sort"

	"github.com/nibzard/clear-go/internal/data"
)

// HistogramBins is the number of equal-width score buckets over [0,1].
const HistogramBins = 10

// ComputeStats summarises evaluations. matched[i] is the number of
// shortcomings mapped to evals[i], or -1 when mapping failed. A nil matched
// means mapping did not run.
func ComputeStats(evals []data.Evaluation, matched []int) data.Stats {
	stats := data.Stats{Total: len(evals)}
	sum := 0.0
	for i, ev := range evals {
		switch {
		case ev.Example.Failed():
			stats.GenerationFailed++
			continue
		case ev.Failed():
			stats.EvaluationFailed++
			continue
		}
		if stats.Evaluated == 0 {
			stats.MinScore, stats.MaxScore = ev.Score, ev.Score
		}
		stats.Evaluated++
		sum += ev.Score
		stats.MinScore = math.Min(stats.MinScore, ev.Score)
		stats.MaxScore = math.Max(stats.MaxScore, ev.Score)

		if i >= len(matched) {
			continue
		}
		switch n := matched[i]; {
		case n < 0:
			stats.MappingFailed++
		case n == 0:
			stats.NoIssuesDetected++
		default:
			stats.WithShortcomings++
		}
	}
	if stats.Evaluated > 0 {
		stats.MeanScore = sum / float64(stats.Evaluated)
	}
	return stats
}

// Histogram buckets scores into bins equal-width bins over [0,1].
func Histogram(scores []float64, bins int) []data.Bucket {
	if bins <= 0 {
		bins = HistogramBins
	}
	width := 1.0 / float64(bins)
	buckets := make([]data.Bucket, bins)
	for i := range buckets {
		buckets[i].Low = roundTo(float64(i)*width, 6)
		buckets[i].High = roundTo(float64(i+1)*width, 6)
	}
	for _, s := range scores {
		i := int(math.Floor(s*float64(bins) + 1e-9))
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		buckets[i].Count++
	}
	return buckets
}

// ShortcomingFrequencies counts, per shortcoming, how many mapped
// evaluations exhibit it. Frequency is relative to the mapped count.
// The result is sorted by count, most frequent first.
func ShortcomingFrequencies(shortcomings []string, matches [][]bool) []data.ShortcomingStat {
	stats := make([]data.ShortcomingStat, len(shortcomings))
	mapped := 0
	for i, text := range shortcomings {
		stats[i].Text = text
	}
	for _, m := range matches {
		if m == nil {
			continue
		}
		mapped++
		for i, hit := range m {
			if hit && i < len(stats) {
				stats[i].Count++
			}
		}
	}
	if mapped > 0 {
		for i := range stats {
			stats[i].Frequency = float64(stats[i].Count) / float64(mapped)
		}
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
