package analyzer

import (
	"fmt"

	"github.com/Corezcy/record-latency/internal/apollo"
	"github.com/Corezcy/record-latency/internal/latency"
)

// ValidationResult contains the outcome of table validation.
type ValidationResult struct {
	Passed   bool
	Errors   []string
	Warnings []string
	RowCount int64
}

// ValidateTable performs consistency checks on the joined table before it is
// written:
//   - every key appears once
//   - a missing stage timestamp has a missing delta
//   - a present stage whose delta equals the sentinel is flagged, since a real
//     -1ms delay cannot be told apart from a missing stage
//   - the prediction span is present only with a prediction
//   - every row has a compensator timestamp
func ValidateTable(rows []latency.Row) ValidationResult {
	result := ValidationResult{
		Passed:   true,
		RowCount: int64(len(rows)),
	}

	// Check 1: Unique keys
	seen := make(map[uint64]int, len(rows))
	for i, r := range rows {
		if first, dup := seen[r.Key]; dup {
			result.Errors = append(result.Errors,
				fmt.Sprintf("duplicate key %d at rows %d and %d", r.Key, first, i))
			result.Passed = false
			continue
		}
		seen[r.Key] = i
	}

	for i, r := range rows {
		// Check 2: Stage sentinels come in pairs
		for _, k := range apollo.Kinds {
			ts, d := r.Stage(k)
			switch {
			case ts == latency.Missing && d != latency.Missing:
				result.Errors = append(result.Errors,
					fmt.Sprintf("row %d (key %d): %s missing but delta is %d", i, r.Key, k, d))
				result.Passed = false
			case ts != latency.Missing && d == latency.Missing:
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("row %d (key %d): %s delta of -1ms reads as missing", i, r.Key, k))
			}
		}

		// Check 3: Span follows prediction
		if r.Prediction == latency.Missing && r.PredictionSpan != latency.Missing {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d (key %d): prediction span %d without a prediction", i, r.Key, r.PredictionSpan))
			result.Passed = false
		}
		if r.Prediction != latency.Missing && r.PredictionSpan == latency.Missing {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d (key %d): prediction span of -1ms reads as missing", i, r.Key))
		}
	}

	// Check 4: Compensator anchors every row
	for i, r := range rows {
		if r.Compensator == latency.Missing {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d (key %d): no compensator timestamp", i, r.Key))
			result.Passed = false
		}
	}

	return result
}
