package apollo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Corezcy/record-latency/internal/pbwire"
)

func TestDecodeKnownTypes(t *testing.T) {
	hdr := Header{TimestampSec: 1619858505.1234, ModuleName: "planning", SequenceNum: 7, LidarTimestamp: 1619858505000000000}

	tests := []struct {
		name     string
		typeName string
		msg      Message
	}{
		{name: "compensator", typeName: TypePointCloud, msg: &PointCloud{Header: hdr}},
		{name: "perception", typeName: TypePerceptionObstacles, msg: &PerceptionObstacles{Header: hdr}},
		{name: "planning", typeName: TypeADCTrajectory, msg: &ADCTrajectory{Header: hdr}},
		{name: "prediction", typeName: TypePredictionObstacles, msg: &PredictionObstacles{Header: hdr, StartTimestamp: 1.0, EndTimestamp: 1.05}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Marshal(tt.msg)
			require.NoError(t, err)

			got, err := Decode(tt.typeName, payload)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.msg, got); diff != "" {
				t.Errorf("decode mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, KindOf(tt.typeName), got.Kind())
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	got, err := Decode("apollo.localization.LocalizationEstimate", []byte{0xff, 0xff})
	require.NoError(t, err)
	assert.Equal(t, Unknown{TypeName: "apollo.localization.LocalizationEstimate"}, got)
	assert.Equal(t, KindUnknown, got.Kind())

	_, ok := HeaderOf(got)
	assert.False(t, ok)
}

func TestDecodeMalformed(t *testing.T) {
	// Length prefix claims 50 bytes, only 2 follow.
	payload := []byte{0x0a, 0x32, 0x01, 0x02}
	_, err := Decode(TypeADCTrajectory, payload)
	assert.ErrorIs(t, err, ErrMalformed)

	// Broken header contents inside a well-formed envelope.
	payload = pbwire.AppendBytes(nil, perceptionObstaclesHeader, []byte{0x20})
	_, err = Decode(TypePerceptionObstacles, payload)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeHeaderMerge(t *testing.T) {
	first := pbwire.AppendDouble(nil, headerTimestampSec, 5.5)
	first = pbwire.AppendVarint(first, headerLidarTimestamp, 10)
	second := pbwire.AppendVarint(nil, headerLidarTimestamp, 20)

	var payload []byte
	payload = pbwire.AppendBytes(payload, adcTrajectoryHeader, first)
	payload = pbwire.AppendVarint(payload, 3, 1) // unrelated field
	payload = pbwire.AppendBytes(payload, adcTrajectoryHeader, second)

	got, err := Decode(TypeADCTrajectory, payload)
	require.NoError(t, err)

	h, ok := HeaderOf(got)
	require.True(t, ok)
	assert.Equal(t, 5.5, h.TimestampSec)
	assert.Equal(t, uint64(20), h.LidarTimestamp)
}

func TestDecodeIgnoresMismatchedWireTypes(t *testing.T) {
	hdr := pbwire.AppendString(nil, headerLidarTimestamp, "not a varint")
	hdr = pbwire.AppendVarint(hdr, headerSequenceNum, 3)
	payload := pbwire.AppendBytes(nil, pointCloudHeader, hdr)
	payload = protowire.AppendTag(payload, 9, protowire.Fixed32Type)
	payload = protowire.AppendFixed32(payload, 1)

	got, err := Decode(TypePointCloud, payload)
	require.NoError(t, err)
	h, _ := HeaderOf(got)
	assert.Zero(t, h.LidarTimestamp)
	assert.Equal(t, uint32(3), h.SequenceNum)
}

func TestDecodeEmptyPayload(t *testing.T) {
	got, err := Decode(TypePredictionObstacles, nil)
	require.NoError(t, err)
	assert.Equal(t, &PredictionObstacles{}, got)
}

func TestKindMappings(t *testing.T) {
	for _, k := range Kinds {
		assert.Equal(t, k, KindOf(k.TypeName()), k.String())
		assert.NotEmpty(t, k.DefaultChannel())
	}
	assert.Equal(t, KindUnknown, KindOf(""))
	assert.Equal(t, "unknown", KindUnknown.String())
}

func TestMarshalUnknown(t *testing.T) {
	_, err := Marshal(Unknown{TypeName: "x"})
	assert.Error(t, err)
}
