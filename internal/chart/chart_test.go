package chart

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corezcy/record-latency/internal/latency"
)

func TestLatencyPNG(t *testing.T) {
	rows := []latency.Row{
		{Key: 1, Compensator: 10, DeltaCompensator: 40, Perception: 20, DeltaPerception: 90,
			Prediction: latency.Missing, DeltaPrediction: latency.Missing, PredictionSpan: latency.Missing,
			Planning: latency.Missing, DeltaPlanning: latency.Missing},
		{Key: 2, Compensator: 10, DeltaCompensator: 42, Perception: 20, DeltaPerception: 95,
			Prediction: 30, DeltaPrediction: 130, PredictionSpan: 5,
			Planning: 40, DeltaPlanning: 180},
	}

	data, err := LatencyPNG("latency", rows)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestLatencyPNGNoRows(t *testing.T) {
	data, err := LatencyPNG("empty", nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}
