// Package apollo decodes the four Apollo pipeline messages the latency
// analysis cares about. Only header fields and the prediction start/end
// timestamps are interpreted; the rest of each payload is skipped.
package apollo

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// Fully qualified protobuf type names as recorded in channel declarations.
const (
	TypePointCloud          = "apollo.drivers.PointCloud"
	TypePerceptionObstacles = "apollo.perception.PerceptionObstacles"
	TypeADCTrajectory       = "apollo.planning.ADCTrajectory"
	TypePredictionObstacles = "apollo.prediction.PredictionObstacles"
)

// Channels the pipeline publishes each message on.
const (
	ChannelCompensator = "/apollo/sensor/livox/compensator/PointCloud2"
	ChannelPerception  = "/apollo/perception/obstacles"
	ChannelPlanning    = "/apollo/planning"
	ChannelPrediction  = "/apollo/prediction"
)

// ErrMalformed wraps any failure to parse a payload of a known type.
var ErrMalformed = errors.New("malformed payload")

// Kind names a pipeline stage.
type Kind int

const (
	KindUnknown Kind = iota
	KindCompensator
	KindPerception
	KindPrediction
	KindPlanning
)

func (k Kind) String() string {
	switch k {
	case KindCompensator:
		return "compensator"
	case KindPerception:
		return "perception"
	case KindPrediction:
		return "prediction"
	case KindPlanning:
		return "planning"
	default:
		return "unknown"
	}
}

// Kinds lists the pipeline stages in column order.
var Kinds = []Kind{KindCompensator, KindPerception, KindPrediction, KindPlanning}

// KindOf maps a type name to its stage.
func KindOf(typeName string) Kind {
	switch typeName {
	case TypePointCloud:
		return KindCompensator
	case TypePerceptionObstacles:
		return KindPerception
	case TypeADCTrajectory:
		return KindPlanning
	case TypePredictionObstacles:
		return KindPrediction
	default:
		return KindUnknown
	}
}

// TypeName returns the protobuf type name for k, or "" for KindUnknown.
func (k Kind) TypeName() string {
	switch k {
	case KindCompensator:
		return TypePointCloud
	case KindPerception:
		return TypePerceptionObstacles
	case KindPrediction:
		return TypePredictionObstacles
	case KindPlanning:
		return TypeADCTrajectory
	default:
		return ""
	}
}

// DefaultChannel returns the channel k is normally published on.
func (k Kind) DefaultChannel() string {
	switch k {
	case KindCompensator:
		return ChannelCompensator
	case KindPerception:
		return ChannelPerception
	case KindPrediction:
		return ChannelPrediction
	case KindPlanning:
		return ChannelPlanning
	default:
		return ""
	}
}

// Header is apollo.common.Header, reduced to the fields used here.
type Header struct {
	TimestampSec   float64
	ModuleName     string
	SequenceNum    uint32
	LidarTimestamp uint64
	FrameID        string
}

// apollo.common.Header field numbers.
const (
	headerTimestampSec   protowire.Number = 1
	headerModuleName     protowire.Number = 2
	headerSequenceNum    protowire.Number = 3
	headerLidarTimestamp protowire.Number = 4
	headerFrameID        protowire.Number = 9
)

// Message is the closed set of decoded payloads. The unexported method keeps
// implementations inside this package, so a type switch over PointCloud,
// PerceptionObstacles, PredictionObstacles, ADCTrajectory and Unknown is
// exhaustive.
type Message interface {
	Kind() Kind
	isMessage()
}

// PointCloud is the motion-compensated lidar frame that anchors a key.
type PointCloud struct {
	Header Header
}

// PerceptionObstacles is the perception output for a frame.
type PerceptionObstacles struct {
	Header Header
}

// ADCTrajectory is the planning output for a frame.
type ADCTrajectory struct {
	Header Header
}

// PredictionObstacles is the prediction output for a frame. StartTimestamp
// and EndTimestamp are seconds.
type PredictionObstacles struct {
	Header         Header
	StartTimestamp float64
	EndTimestamp   float64
}

// Unknown is any payload whose type is not one of the four above.
type Unknown struct {
	TypeName string
}

func (*PointCloud) Kind() Kind          { return KindCompensator }
func (*PerceptionObstacles) Kind() Kind { return KindPerception }
func (*ADCTrajectory) Kind() Kind       { return KindPlanning }
func (*PredictionObstacles) Kind() Kind { return KindPrediction }
func (Unknown) Kind() Kind              { return KindUnknown }

func (*PointCloud) isMessage()          {}
func (*PerceptionObstacles) isMessage() {}
func (*ADCTrajectory) isMessage()       {}
func (*PredictionObstacles) isMessage() {}
func (Unknown) isMessage()              {}

// HeaderOf returns the header of a known message.
func HeaderOf(m Message) (Header, bool) {
	switch v := m.(type) {
	case *PointCloud:
		return v.Header, true
	case *PerceptionObstacles:
		return v.Header, true
	case *ADCTrajectory:
		return v.Header, true
	case *PredictionObstacles:
		return v.Header, true
	case Unknown:
		return Header{}, false
	default:
		return Header{}, false
	}
}
