package latency

import (
	"strconv"

	"github.com/Corezcy/record-latency/internal/apollo"
)

// SheetName is the worksheet the joined table is written to.
const SheetName = "Total"

// Columns is the header row of the joined table.
var Columns = []string{
	"lidar_timestamp(ns)",
	"compensator_timestamp(ns)",
	"delta_compensator(ms)",
	"perception_timestamp(ns)",
	"delta_perception(ms)",
	"prediction_timestamp(ns)",
	"delta_prediction(ms)",
	"pred_end_timestamp - pred_start_timestamp",
	"planning_timestamp(ns)",
	"delta_planning(ms)",
}

// Row is one joined key. Absent values hold Missing.
type Row struct {
	Key              uint64
	Compensator      int64
	DeltaCompensator int64
	Perception       int64
	DeltaPerception  int64
	Prediction       int64
	DeltaPrediction  int64
	PredictionSpan   int64 // ms
	Planning         int64
	DeltaPlanning    int64
}

// Strings renders the row in column order.
func (r Row) Strings() []string {
	return []string{
		strconv.FormatUint(r.Key, 10),
		strconv.FormatInt(r.Compensator, 10),
		strconv.FormatInt(r.DeltaCompensator, 10),
		strconv.FormatInt(r.Perception, 10),
		strconv.FormatInt(r.DeltaPerception, 10),
		strconv.FormatInt(r.Prediction, 10),
		strconv.FormatInt(r.DeltaPrediction, 10),
		strconv.FormatInt(r.PredictionSpan, 10),
		strconv.FormatInt(r.Planning, 10),
		strconv.FormatInt(r.DeltaPlanning, 10),
	}
}

// Stage returns the timestamp and delta of stage k.
func (r Row) Stage(k apollo.Kind) (ts, deltaMs int64) {
	switch k {
	case apollo.KindCompensator:
		return r.Compensator, r.DeltaCompensator
	case apollo.KindPerception:
		return r.Perception, r.DeltaPerception
	case apollo.KindPrediction:
		return r.Prediction, r.DeltaPrediction
	case apollo.KindPlanning:
		return r.Planning, r.DeltaPlanning
	default:
		return Missing, Missing
	}
}
