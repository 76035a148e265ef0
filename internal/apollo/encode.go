package apollo

import (
	"fmt"

	"github.com/Corezcy/record-latency/internal/pbwire"
)

// Marshal encodes a known message in protobuf wire format. Only the fields
// Decode reads are written.
func Marshal(m Message) ([]byte, error) {
	switch v := m.(type) {
	case *PointCloud:
		return pbwire.AppendBytes(nil, pointCloudHeader, marshalHeader(v.Header)), nil
	case *PerceptionObstacles:
		return pbwire.AppendBytes(nil, perceptionObstaclesHeader, marshalHeader(v.Header)), nil
	case *ADCTrajectory:
		return pbwire.AppendBytes(nil, adcTrajectoryHeader, marshalHeader(v.Header)), nil
	case *PredictionObstacles:
		b := pbwire.AppendBytes(nil, predictionHeader, marshalHeader(v.Header))
		b = pbwire.AppendDouble(b, predictionStartTimestamp, v.StartTimestamp)
		b = pbwire.AppendDouble(b, predictionEndTimestamp, v.EndTimestamp)
		return b, nil
	case Unknown:
		return nil, fmt.Errorf("cannot marshal unknown type %q", v.TypeName)
	default:
		return nil, fmt.Errorf("cannot marshal %T", m)
	}
}

func marshalHeader(h Header) []byte {
	var b []byte
	b = pbwire.AppendDouble(b, headerTimestampSec, h.TimestampSec)
	if h.ModuleName != "" {
		b = pbwire.AppendString(b, headerModuleName, h.ModuleName)
	}
	b = pbwire.AppendVarint(b, headerSequenceNum, uint64(h.SequenceNum))
	b = pbwire.AppendVarint(b, headerLidarTimestamp, h.LidarTimestamp)
	if h.FrameID != "" {
		b = pbwire.AppendString(b, headerFrameID, h.FrameID)
	}
	return b
}
