package record

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSample(t *testing.T, opts ...WriterOption) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.record")

	w, err := Create(path, opts...)
	require.NoError(t, err)
	require.NoError(t, w.WriteChannel("/apollo/planning", "apollo.planning.ADCTrajectory", nil))
	require.NoError(t, w.WriteChannel("/apollo/prediction", "apollo.prediction.PredictionObstacles", []byte{0x0a}))

	require.NoError(t, w.WriteMessage("/apollo/planning", []byte("p1"), 100))
	require.NoError(t, w.WriteMessage("/apollo/prediction", []byte("q1"), 110))
	require.NoError(t, w.WriteMessage("/apollo/planning", []byte("p2"), 200))
	require.NoError(t, w.WriteMessage("/apollo/planning", []byte("p3"), 300))
	require.NoError(t, w.WriteMessage("/apollo/prediction", []byte("q2"), 310))
	require.NoError(t, w.Close())
	return path
}

func readAll(t *testing.T, r *Reader) ([]Message, error) {
	t.Helper()
	var msgs []Message
	for {
		m, err := r.Next()
		if err == io.EOF {
			return msgs, nil
		}
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, m)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := writeSample(t, WithChunkMessages(2))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := NewReader(f)
	require.NoError(t, err)

	h := r.Header()
	assert.True(t, h.IsComplete)
	assert.Equal(t, uint64(5), h.MessageNumber)
	assert.Equal(t, uint64(3), h.ChunkNumber)
	assert.Equal(t, uint64(2), h.ChannelNumber)
	assert.Equal(t, uint64(100), h.BeginTime)
	assert.Equal(t, uint64(310), h.EndTime)

	msgs, err := readAll(t, r)
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	want := []Message{
		{Channel: "/apollo/planning", Type: "apollo.planning.ADCTrajectory", Content: []byte("p1"), Time: 100},
		{Channel: "/apollo/prediction", Type: "apollo.prediction.PredictionObstacles", Content: []byte("q1"), Time: 110},
		{Channel: "/apollo/planning", Type: "apollo.planning.ADCTrajectory", Content: []byte("p2"), Time: 200},
		{Channel: "/apollo/planning", Type: "apollo.planning.ADCTrajectory", Content: []byte("p3"), Time: 300},
		{Channel: "/apollo/prediction", Type: "apollo.prediction.PredictionObstacles", Content: []byte("q2"), Time: 310},
	}
	assert.Equal(t, want, msgs)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(info.Size()), h.Size)
	assert.Equal(t, info.Size(), r.Offset())

	chans := r.Channels()
	require.Len(t, chans, 2)
	assert.Equal(t, "/apollo/planning", chans[0].Name)
	assert.Equal(t, uint64(3), chans[0].Indexed)
	assert.Equal(t, uint64(3), chans[0].Read)
	assert.Equal(t, uint64(100), chans[0].FirstTime)
	assert.Equal(t, uint64(300), chans[0].LastTime)
	assert.Equal(t, uint64(2), chans[1].Count())
}

func TestReaderEmptyRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.record")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := NewReader(f)
	require.NoError(t, err)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Empty(t, r.Channels())
}

func TestReaderNotRecord(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short", data: []byte("hello")},
		{name: "wrong first section", data: section{Type: SectionChannel, Size: 4}.marshal()},
		{name: "oversized header", data: section{Type: SectionHeader, Size: HeaderLength + 1}.marshal()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrNotRecord)
		})
	}
}

func TestReaderUnsupportedCompression(t *testing.T) {
	body := Header{MajorVersion: 1, Compress: CompressLZ4}.marshal()
	var buf bytes.Buffer
	buf.Write(section{Type: SectionHeader, Size: int64(len(body))}.marshal())
	buf.Write(body)
	buf.Write(make([]byte, HeaderLength-len(body)))

	_, err := NewReader(&buf)
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}

func TestReaderTruncatedTail(t *testing.T) {
	path := writeSample(t, WithChunkMessages(2))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Cut into the trailing index section.
	r, err := NewReader(bytes.NewReader(data[:len(data)-3]))
	require.NoError(t, err)

	msgs, err := readAll(t, r)
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)
	assert.Len(t, msgs, 5)
}

func TestWriterUnknownChannel(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "x.record"))
	require.NoError(t, err)
	defer w.Close()

	err = w.WriteMessage("/apollo/planning", []byte("p"), 1)
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestWriterClosed(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "x.record"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.WriteChannel("/a", "b", nil), ErrClosed)
}
