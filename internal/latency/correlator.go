// Package latency joins per-stage arrival times of the perception pipeline on
// the lidar timestamp carried in every message header.
package latency

import (
	"math"

	"github.com/Corezcy/record-latency/internal/apollo"
)

// Missing marks an absent stage timestamp, delta or span.
const Missing int64 = -1

// Channels holds the channel each stage is read from. An empty value accepts
// the stage's type on any channel.
type Channels struct {
	Compensator string `yaml:"compensator"`
	Perception  string `yaml:"perception"`
	Prediction  string `yaml:"prediction"`
	Planning    string `yaml:"planning"`
}

// DefaultChannels returns the channels the Apollo pipeline publishes on.
func DefaultChannels() Channels {
	return Channels{
		Compensator: apollo.ChannelCompensator,
		Perception:  apollo.ChannelPerception,
		Prediction:  apollo.ChannelPrediction,
		Planning:    apollo.ChannelPlanning,
	}
}

// For returns the configured channel for k.
func (c Channels) For(k apollo.Kind) string {
	switch k {
	case apollo.KindCompensator:
		return c.Compensator
	case apollo.KindPerception:
		return c.Perception
	case apollo.KindPrediction:
		return c.Prediction
	case apollo.KindPlanning:
		return c.Planning
	default:
		return ""
	}
}

// Accepts reports whether a message of kind k on channel belongs to its stage.
func (c Channels) Accepts(k apollo.Kind, channel string) bool {
	if k == apollo.KindUnknown {
		return false
	}
	want := c.For(k)
	return want == "" || want == channel
}

// SecondsToNanos converts a header timestamp in seconds to nanoseconds,
// rounding at 100ns resolution first.
func SecondsToNanos(sec float64) int64 {
	return int64(math.Round(sec*10_000_000)) * 100
}

// Span returns end minus start in nanoseconds, each side rounded separately.
func Span(start, end float64) int64 {
	return int64(math.Round(end*1e9)) - int64(math.Round(start*1e9))
}

// Correlator accumulates the latest arrival time per stage and key. It is not
// safe for concurrent use.
type Correlator struct {
	channels Channels

	compensator map[uint64]int64
	perception  map[uint64]int64
	prediction  map[uint64]int64
	planning    map[uint64]int64
	span        map[uint64]int64

	// anchors holds compensator keys in first-seen order.
	anchors []uint64
}

// NewCorrelator returns an empty Correlator routing by channels.
func NewCorrelator(channels Channels) *Correlator {
	return &Correlator{
		channels:    channels,
		compensator: make(map[uint64]int64),
		perception:  make(map[uint64]int64),
		prediction:  make(map[uint64]int64),
		planning:    make(map[uint64]int64),
		span:        make(map[uint64]int64),
	}
}

// Observe applies one decoded message. receiveTime is the record's own
// timestamp in nanoseconds. It returns the stage that was updated, or
// apollo.KindUnknown when the message was ignored.
func (c *Correlator) Observe(channel string, msg apollo.Message, receiveTime uint64) apollo.Kind {
	if !c.channels.Accepts(msg.Kind(), channel) {
		return apollo.KindUnknown
	}

	switch m := msg.(type) {
	case *apollo.PointCloud:
		key := m.Header.LidarTimestamp
		if _, seen := c.compensator[key]; !seen {
			c.anchors = append(c.anchors, key)
		}
		c.compensator[key] = int64(receiveTime)
		return apollo.KindCompensator
	case *apollo.PerceptionObstacles:
		c.perception[m.Header.LidarTimestamp] = SecondsToNanos(m.Header.TimestampSec)
		return apollo.KindPerception
	case *apollo.PredictionObstacles:
		key := m.Header.LidarTimestamp
		c.prediction[key] = SecondsToNanos(m.Header.TimestampSec)
		c.span[key] = Span(m.StartTimestamp, m.EndTimestamp)
		return apollo.KindPrediction
	case *apollo.ADCTrajectory:
		c.planning[m.Header.LidarTimestamp] = SecondsToNanos(m.Header.TimestampSec)
		return apollo.KindPlanning
	case apollo.Unknown:
		return apollo.KindUnknown
	default:
		return apollo.KindUnknown
	}
}

// Len returns the number of distinct keys recorded for stage k.
func (c *Correlator) Len(k apollo.Kind) int {
	switch k {
	case apollo.KindCompensator:
		return len(c.compensator)
	case apollo.KindPerception:
		return len(c.perception)
	case apollo.KindPrediction:
		return len(c.prediction)
	case apollo.KindPlanning:
		return len(c.planning)
	default:
		return 0
	}
}

// Table joins every stage onto the compensator keys, one row per key in
// first-seen order. Keys never seen by the compensator produce no row.
func (c *Correlator) Table() []Row {
	rows := make([]Row, 0, len(c.anchors))
	for _, key := range c.anchors {
		r := Row{Key: key, PredictionSpan: Missing}
		r.Compensator, r.DeltaCompensator = lookup(c.compensator, key)
		r.Perception, r.DeltaPerception = lookup(c.perception, key)
		r.Prediction, r.DeltaPrediction = lookup(c.prediction, key)
		r.Planning, r.DeltaPlanning = lookup(c.planning, key)
		if span, ok := c.span[key]; ok {
			r.PredictionSpan = floorDiv(span, 1_000_000)
		}
		rows = append(rows, r)
	}
	return rows
}

func lookup(stage map[uint64]int64, key uint64) (ts, deltaMs int64) {
	ts, ok := stage[key]
	if !ok {
		return Missing, Missing
	}
	return ts, floorDiv(ts-int64(key), 1_000_000)
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
