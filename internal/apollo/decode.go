package apollo

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Corezcy/record-latency/internal/pbwire"
)

// Field numbers of the header and timestamps within each message.
const (
	pointCloudHeader          protowire.Number = 1
	perceptionObstaclesHeader protowire.Number = 2
	adcTrajectoryHeader       protowire.Number = 1
	predictionHeader          protowire.Number = 1
	predictionStartTimestamp  protowire.Number = 4
	predictionEndTimestamp    protowire.Number = 5
)

// Decode parses payload according to typeName. Unrecognized type names yield
// Unknown and a nil error. Parse failures wrap ErrMalformed.
func Decode(typeName string, payload []byte) (Message, error) {
	switch KindOf(typeName) {
	case KindCompensator:
		m := &PointCloud{}
		if err := decodeWithHeader(payload, pointCloudHeader, &m.Header, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", typeName, err)
		}
		return m, nil

	case KindPerception:
		m := &PerceptionObstacles{}
		if err := decodeWithHeader(payload, perceptionObstaclesHeader, &m.Header, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", typeName, err)
		}
		return m, nil

	case KindPlanning:
		m := &ADCTrajectory{}
		if err := decodeWithHeader(payload, adcTrajectoryHeader, &m.Header, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", typeName, err)
		}
		return m, nil

	case KindPrediction:
		m := &PredictionObstacles{}
		err := decodeWithHeader(payload, predictionHeader, &m.Header, func(f pbwire.Field) {
			if f.Type != protowire.Fixed64Type {
				return
			}
			switch f.Num {
			case predictionStartTimestamp:
				m.StartTimestamp = f.Double()
			case predictionEndTimestamp:
				m.EndTimestamp = f.Double()
			}
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", typeName, err)
		}
		return m, nil

	default:
		return Unknown{TypeName: typeName}, nil
	}
}

// decodeWithHeader walks the top level of payload, merging every occurrence
// of headerNum into h. Other fields go to extra when it is non-nil.
func decodeWithHeader(payload []byte, headerNum protowire.Number, h *Header, extra func(pbwire.Field)) error {
	err := pbwire.Walk(payload, func(f pbwire.Field) error {
		if f.Num == headerNum && f.Type == protowire.BytesType {
			return mergeHeader(f.Bytes, h)
		}
		if extra != nil {
			extra(f)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func mergeHeader(b []byte, h *Header) error {
	err := pbwire.Walk(b, func(f pbwire.Field) error {
		switch {
		case f.Num == headerTimestampSec && f.Type == protowire.Fixed64Type:
			h.TimestampSec = f.Double()
		case f.Num == headerModuleName && f.Type == protowire.BytesType:
			h.ModuleName = string(f.Bytes)
		case f.Num == headerSequenceNum && f.Type == protowire.VarintType:
			h.SequenceNum = uint32(f.Varint)
		case f.Num == headerLidarTimestamp && f.Type == protowire.VarintType:
			h.LidarTimestamp = f.Varint
		case f.Num == headerFrameID && f.Type == protowire.BytesType:
			h.FrameID = string(f.Bytes)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	return nil
}
