package intervals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetName(t *testing.T) {
	tests := []struct {
		channel string
		want    string
	}{
		{"/apollo/planning", "-planning"},
		{"/apollo/perception/obstacles", "-perception-obstacles"},
		{"/apollo/sensor/livox/compensator/PointCloud2", "-livox-compensator-PointCloud2"},
		{"/tf", "-tf"},
		{"/a:b", "-a-b"},
		{"/x[1]*?\\y", "-x-1----y"},
		{"/apollo/sensor/abcdefghijklmnopqrstuv", "-sensor-abcdefghijklmnopqrstuv"},
		{"/apollo/sensor/abcdefghijklmnopqrstuvw", "sensor-abcdefghijklmnopqrstuvw"},
		{"/apollo/sensor/abcdefghijklmnopqrstuvwx", "ensor-abcdefghijklmnopqrstuvwx"},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			got := SheetName(tt.channel)
			assert.Equal(t, tt.want, got)
			assert.Less(t, len(got), maxSheetName)
		})
	}
}

func TestTrackerIntervals(t *testing.T) {
	tr := NewTracker()
	tr.Observe("/apollo/planning", "apollo.planning.ADCTrajectory", 1_000_000_000)
	tr.Observe("/apollo/prediction", "apollo.prediction.PredictionObstacles", 1_000_500_000)
	tr.Observe("/apollo/planning", "apollo.planning.ADCTrajectory", 1_100_000_000)
	tr.Observe("/apollo/planning", "apollo.planning.ADCTrajectory", 1_150_250_000)

	sheets := tr.Sheets()
	require.Len(t, sheets, 2)
	assert.Equal(t, "-planning", sheets[0].Name)
	assert.Equal(t, "-prediction", sheets[1].Name)

	assert.Equal(t, []Entry{
		{Timestamp: 1_000_000_000, IntervalMs: 0},
		{Timestamp: 1_100_000_000, IntervalMs: 100},
		{Timestamp: 1_150_250_000, IntervalMs: 50.25},
	}, sheets[0].Entries)

	rows := sheets[0].Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, []any{"/apollo/planning", "apollo.planning.ADCTrajectory"}, rows[0])
	assert.Equal(t, []any{"1000000000", 0.0}, rows[1])
	assert.Equal(t, []any{"1150250000", 50.25}, rows[3])
}

func TestTrackerSharedSheet(t *testing.T) {
	long := "/apollo/sensor/abcdefghijklmnopqrstuvwx"
	other := "/apollo/xsensor/abcdefghijklmnopqrstuvwx"
	require.Equal(t, SheetName(long), SheetName(other))

	tr := NewTracker()
	tr.Observe(long, "a", 10_000_000)
	tr.Observe(other, "b", 12_000_000)

	sheets := tr.Sheets()
	require.Len(t, sheets, 1)
	assert.Equal(t, long, sheets[0].Channel)
	assert.Equal(t, 2.0, sheets[0].Entries[1].IntervalMs)
}

func TestTrackerOutOfOrder(t *testing.T) {
	tr := NewTracker()
	tr.Observe("/a", "t", 5_000_000)
	tr.Observe("/a", "t", 3_000_000)
	assert.Equal(t, -2.0, tr.Sheets()[0].Entries[1].IntervalMs)
}

func TestTrackerCaseOnlyCollision(t *testing.T) {
	tr := NewTracker()
	tr.Observe("/apollo/Foo", "a", 1_000_000)
	tr.Observe("/apollo/foo", "b", 2_000_000)
	tr.Observe("/apollo/foo", "b", 5_000_000)

	sheets := tr.Sheets()
	require.Len(t, sheets, 1)
	assert.Equal(t, "-Foo", sheets[0].Name)
	assert.Equal(t, "/apollo/Foo", sheets[0].Channel)
	assert.Equal(t, []Entry{
		{Timestamp: 1_000_000, IntervalMs: 0},
		{Timestamp: 2_000_000, IntervalMs: 1},
		{Timestamp: 5_000_000, IntervalMs: 3},
	}, sheets[0].Entries)
}
