package latency

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Corezcy/record-latency/internal/apollo"
)

// StageSummary describes the delta distribution of one stage over the rows
// where that stage is present. All values are milliseconds.
type StageSummary struct {
	Stage  string  `json:"stage"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_ms"`
	StdDev float64 `json:"stddev_ms"`
	Min    float64 `json:"min_ms"`
	P50    float64 `json:"p50_ms"`
	P95    float64 `json:"p95_ms"`
	Max    float64 `json:"max_ms"`
}

// Summarize returns one summary per stage in column order. Stages absent from
// every row report a zero Count and zero statistics.
func Summarize(rows []Row) []StageSummary {
	out := make([]StageSummary, 0, len(apollo.Kinds))
	for _, k := range apollo.Kinds {
		var xs []float64
		for _, r := range rows {
			if ts, d := r.Stage(k); ts != Missing {
				xs = append(xs, float64(d))
			}
		}
		out = append(out, summarize(k.String(), xs))
	}
	return out
}

func summarize(stage string, xs []float64) StageSummary {
	s := StageSummary{Stage: stage, Count: len(xs)}
	if len(xs) == 0 {
		return s
	}
	sort.Float64s(xs)

	s.Mean = stat.Mean(xs, nil)
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	s.Min = floats.Min(xs)
	s.Max = floats.Max(xs)
	s.P50 = stat.Quantile(0.5, stat.Empirical, xs, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, xs, nil)
	return s
}
