// Package sample writes synthetic pipeline records with predictable
// per-stage delays.
package sample

import (
	"fmt"

	"github.com/Corezcy/record-latency/internal/apollo"
	"github.com/Corezcy/record-latency/internal/record"
)

// NoiseChannel carries messages no stage reads.
const (
	NoiseChannel = "/apollo/canbus/chassis"
	NoiseType    = "apollo.canbus.Chassis"
)

const ms = int64(1_000_000)

// Options controls the generated frames.
type Options struct {
	Frames int
	// Start is the lidar timestamp of the first frame in nanoseconds.
	Start uint64
	// Period is the spacing of lidar frames in nanoseconds.
	Period uint64
	// DropEvery drops the perception message of every n-th frame; 0 keeps all.
	DropEvery int
}

// DefaultOptions returns ten-hertz frames starting at a fixed 2021 timestamp.
func DefaultOptions() Options {
	return Options{
		Frames:    100,
		Start:     1_619_855_949_000_000_000,
		Period:    100 * uint64(ms),
		DropEvery: 10,
	}
}

// Delays returns the stage delays of frame i behind its lidar timestamp.
func Delays(i int) (compensator, perception, prediction, planning int64) {
	compensator = 10*ms + int64(i%3)*ms
	perception = 80*ms + int64(i%5)*ms
	prediction = 120*ms + int64(i%4)*ms
	planning = 150*ms + int64(i%7)*ms
	return
}

// PredictionSpan is the end minus start of every generated prediction.
const PredictionSpan = 50 * ms

// Write declares the pipeline channels plus the noise channel on w and writes
// opts.Frames frames in arrival order. It does not close w.
func Write(w *record.Writer, opts Options) error {
	for _, k := range apollo.Kinds {
		if err := w.WriteChannel(k.DefaultChannel(), k.TypeName(), nil); err != nil {
			return err
		}
	}
	if err := w.WriteChannel(NoiseChannel, NoiseType, nil); err != nil {
		return err
	}

	for i := 0; i < opts.Frames; i++ {
		key := opts.Start + uint64(i)*opts.Period
		comp, perc, pred, plan := Delays(i)
		seq := uint32(i)

		if err := writeMessage(w, &apollo.PointCloud{Header: header(key, 0, seq, "compensator")}, uint64(int64(key)+comp)); err != nil {
			return err
		}
		if opts.DropEvery <= 0 || (i+1)%opts.DropEvery != 0 {
			m := &apollo.PerceptionObstacles{Header: header(key, int64(key)+perc, seq, "perception")}
			if err := writeMessage(w, m, uint64(int64(key)+perc)); err != nil {
				return err
			}
		}
		start := seconds(int64(key) + pred)
		m := &apollo.PredictionObstacles{
			Header:         header(key, int64(key)+pred, seq, "prediction"),
			StartTimestamp: start,
			EndTimestamp:   start + seconds(PredictionSpan),
		}
		if err := writeMessage(w, m, uint64(int64(key)+pred)); err != nil {
			return err
		}
		if err := writeMessage(w, &apollo.ADCTrajectory{Header: header(key, int64(key)+plan, seq, "planning")}, uint64(int64(key)+plan)); err != nil {
			return err
		}
		if err := w.WriteMessage(NoiseChannel, []byte{0x08, byte(i)}, key); err != nil {
			return err
		}
	}
	return nil
}

func writeMessage(w *record.Writer, m apollo.Message, at uint64) error {
	payload, err := apollo.Marshal(m)
	if err != nil {
		return err
	}
	if err := w.WriteMessage(m.Kind().DefaultChannel(), payload, at); err != nil {
		return fmt.Errorf("write %s: %w", m.Kind(), err)
	}
	return nil
}

func header(key uint64, publishNs int64, seq uint32, module string) apollo.Header {
	return apollo.Header{
		TimestampSec:   seconds(publishNs),
		ModuleName:     module,
		SequenceNum:    seq,
		LidarTimestamp: key,
	}
}

func seconds(ns int64) float64 {
	return float64(ns) / 1e9
}
