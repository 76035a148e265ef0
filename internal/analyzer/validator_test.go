package analyzer

import (
	"strings"
	"testing"

	"github.com/Corezcy/record-latency/internal/latency"
)

func validRow(key uint64) latency.Row {
	return latency.Row{
		Key:              key,
		Compensator:      int64(key) + 10_000_000,
		DeltaCompensator: 10,
		Perception:       int64(key) + 80_000_000,
		DeltaPerception:  80,
		Prediction:       int64(key) + 120_000_000,
		DeltaPrediction:  120,
		PredictionSpan:   50,
		Planning:         latency.Missing,
		DeltaPlanning:    latency.Missing,
	}
}

func TestValidateTable_Valid(t *testing.T) {
	result := ValidateTable([]latency.Row{validRow(1000), validRow(2000)})

	if !result.Passed {
		t.Errorf("Valid table should pass. Errors: %v", result.Errors)
	}
	if len(result.Errors) > 0 {
		t.Errorf("No errors expected, got: %v", result.Errors)
	}
	if len(result.Warnings) > 0 {
		t.Errorf("No warnings expected, got: %v", result.Warnings)
	}
	if result.RowCount != 2 {
		t.Errorf("Expected RowCount 2, got %d", result.RowCount)
	}
}

func TestValidateTable_Empty(t *testing.T) {
	result := ValidateTable(nil)

	if !result.Passed {
		t.Errorf("Empty table should pass. Errors: %v", result.Errors)
	}
}

func TestValidateTable_DuplicateKey(t *testing.T) {
	result := ValidateTable([]latency.Row{validRow(1000), validRow(2000), validRow(1000)})

	if result.Passed {
		t.Error("Duplicate key should fail validation")
	}
	found := false
	for _, err := range result.Errors {
		if strings.Contains(err, "duplicate key 1000") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected duplicate key error, got: %v", result.Errors)
	}
}

func TestValidateTable_UnpairedSentinel(t *testing.T) {
	row := validRow(1000)
	row.Planning = latency.Missing
	row.DeltaPlanning = 30

	result := ValidateTable([]latency.Row{row})

	if result.Passed {
		t.Error("Missing timestamp with a delta should fail validation")
	}
}

func TestValidateTable_NegativeOneDelta(t *testing.T) {
	row := validRow(1000)
	row.Perception = int64(row.Key) - 500_000 // half a millisecond early
	row.DeltaPerception = -1

	result := ValidateTable([]latency.Row{row})

	if !result.Passed {
		t.Errorf("A -1ms delta is legitimate and should only warn. Errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Expected 1 warning, got: %v", result.Warnings)
	}
}

func TestValidateTable_SpanWithoutPrediction(t *testing.T) {
	row := validRow(1000)
	row.Prediction = latency.Missing
	row.DeltaPrediction = latency.Missing

	result := ValidateTable([]latency.Row{row})

	if result.Passed {
		t.Error("Span without prediction should fail validation")
	}
}

func TestValidateTable_NegativeOneSpan(t *testing.T) {
	row := validRow(1000)
	row.PredictionSpan = latency.Missing

	result := ValidateTable([]latency.Row{row})

	if !result.Passed {
		t.Errorf("A -1ms span should only warn. Errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Expected 1 warning, got: %v", result.Warnings)
	}
}

func TestValidateTable_NoCompensator(t *testing.T) {
	row := validRow(1000)
	row.Compensator = latency.Missing
	row.DeltaCompensator = latency.Missing

	result := ValidateTable([]latency.Row{row})

	if result.Passed {
		t.Error("Row without compensator should fail validation")
	}
}

func TestValidateTable_MultipleErrors(t *testing.T) {
	row := validRow(1000)
	row.Prediction = latency.Missing
	row.DeltaPrediction = 5

	result := ValidateTable([]latency.Row{row, row})

	if result.Passed {
		t.Error("Table with multiple errors should fail")
	}
	// duplicate key, then per row: unpaired prediction delta and span without prediction
	if len(result.Errors) != 5 {
		t.Errorf("Expected 5 errors, got %d: %v", len(result.Errors), result.Errors)
	}
}
