// Package record reads and writes Cyber RT record files: a fixed-size header
// section followed by channel, chunk and index sections, each framed by a
// 16-byte section header. Only sequential access is supported.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Corezcy/record-latency/internal/pbwire"
)

// HeaderLength is the on-disk size reserved for the header message.
const HeaderLength = 2048

// sectionHeaderSize is sizeof(struct Section): int32 type, 4 bytes padding,
// int64 size, all little-endian.
const sectionHeaderSize = 16

// maxSectionSize bounds a single section body to keep corrupt sizes from
// triggering huge allocations.
const maxSectionSize = 1 << 31

var (
	ErrNotRecord              = errors.New("not a record file")
	ErrTruncated              = errors.New("record truncated")
	ErrUnsupportedCompression = errors.New("unsupported record compression")
	ErrUnknownChannel         = errors.New("channel not registered")
	ErrClosed                 = errors.New("record writer closed")
)

// SectionType identifies the payload following a section header.
type SectionType int32

const (
	SectionHeader      SectionType = 0
	SectionChunkHeader SectionType = 1
	SectionChunkBody   SectionType = 2
	SectionIndex       SectionType = 3
	SectionChannel     SectionType = 4
)

func (t SectionType) String() string {
	switch t {
	case SectionHeader:
		return "header"
	case SectionChunkHeader:
		return "chunk_header"
	case SectionChunkBody:
		return "chunk_body"
	case SectionIndex:
		return "index"
	case SectionChannel:
		return "channel"
	default:
		return fmt.Sprintf("section(%d)", int32(t))
	}
}

// CompressType is the header's declared chunk compression.
type CompressType uint32

const (
	CompressNone CompressType = 0
	CompressBZ2  CompressType = 1
	CompressLZ4  CompressType = 2
)

type section struct {
	Type SectionType
	Size int64
}

func (s section) marshal() []byte {
	var b [sectionHeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(s.Type))
	binary.LittleEndian.PutUint64(b[8:16], uint64(s.Size))
	return b[:]
}

func parseSection(b []byte) section {
	return section{
		Type: SectionType(int32(binary.LittleEndian.Uint32(b[0:4]))),
		Size: int64(binary.LittleEndian.Uint64(b[8:16])),
	}
}

// Message is one channel message in file order.
type Message struct {
	Channel string
	Type    string
	Content []byte
	Time    uint64 // receive time, ns since epoch
}

// Header is the record file header.
type Header struct {
	MajorVersion    uint32
	MinorVersion    uint32
	Compress        CompressType
	ChunkInterval   uint64
	SegmentInterval uint64
	IndexPosition   uint64
	ChunkNumber     uint64
	ChannelNumber   uint64
	BeginTime       uint64
	EndTime         uint64
	MessageNumber   uint64
	Size            uint64
	IsComplete      bool
	ChunkRawSize    uint64
	SegmentRawSize  uint64
}

func (h Header) marshal() []byte {
	var b []byte
	b = pbwire.AppendVarint(b, 1, uint64(h.MajorVersion))
	b = pbwire.AppendVarint(b, 2, uint64(h.MinorVersion))
	b = pbwire.AppendVarint(b, 3, uint64(h.Compress))
	b = pbwire.AppendVarint(b, 4, h.ChunkInterval)
	b = pbwire.AppendVarint(b, 5, h.SegmentInterval)
	b = pbwire.AppendVarint(b, 6, h.IndexPosition)
	b = pbwire.AppendVarint(b, 7, h.ChunkNumber)
	b = pbwire.AppendVarint(b, 8, h.ChannelNumber)
	b = pbwire.AppendVarint(b, 9, h.BeginTime)
	b = pbwire.AppendVarint(b, 10, h.EndTime)
	b = pbwire.AppendVarint(b, 11, h.MessageNumber)
	b = pbwire.AppendVarint(b, 12, h.Size)
	b = pbwire.AppendBool(b, 13, h.IsComplete)
	b = pbwire.AppendVarint(b, 14, h.ChunkRawSize)
	b = pbwire.AppendVarint(b, 15, h.SegmentRawSize)
	return b
}

func parseHeader(b []byte) (Header, error) {
	var h Header
	err := pbwire.Walk(b, func(f pbwire.Field) error {
		if f.Type != protowire.VarintType {
			return nil
		}
		switch f.Num {
		case 1:
			h.MajorVersion = uint32(f.Varint)
		case 2:
			h.MinorVersion = uint32(f.Varint)
		case 3:
			h.Compress = CompressType(f.Varint)
		case 4:
			h.ChunkInterval = f.Varint
		case 5:
			h.SegmentInterval = f.Varint
		case 6:
			h.IndexPosition = f.Varint
		case 7:
			h.ChunkNumber = f.Varint
		case 8:
			h.ChannelNumber = f.Varint
		case 9:
			h.BeginTime = f.Varint
		case 10:
			h.EndTime = f.Varint
		case 11:
			h.MessageNumber = f.Varint
		case 12:
			h.Size = f.Varint
		case 13:
			h.IsComplete = f.Varint != 0
		case 14:
			h.ChunkRawSize = f.Varint
		case 15:
			h.SegmentRawSize = f.Varint
		}
		return nil
	})
	return h, err
}

// Channel declares a channel name and its message type.
type Channel struct {
	Name        string
	MessageType string
	ProtoDesc   []byte
}

func (c Channel) marshal() []byte {
	var b []byte
	b = pbwire.AppendString(b, 1, c.Name)
	b = pbwire.AppendString(b, 2, c.MessageType)
	b = pbwire.AppendBytes(b, 3, c.ProtoDesc)
	return b
}

func parseChannel(b []byte) (Channel, error) {
	var c Channel
	err := pbwire.Walk(b, func(f pbwire.Field) error {
		switch f.Num {
		case 1:
			c.Name = string(f.Bytes)
		case 2:
			c.MessageType = string(f.Bytes)
		case 3:
			c.ProtoDesc = append([]byte(nil), f.Bytes...)
		}
		return nil
	})
	return c, err
}

type chunkHeader struct {
	BeginTime     uint64
	EndTime       uint64
	MessageNumber uint64
	RawSize       uint64
}

func (c chunkHeader) marshal() []byte {
	var b []byte
	b = pbwire.AppendVarint(b, 1, c.BeginTime)
	b = pbwire.AppendVarint(b, 2, c.EndTime)
	b = pbwire.AppendVarint(b, 3, c.MessageNumber)
	b = pbwire.AppendVarint(b, 4, c.RawSize)
	return b
}

// SingleMessage wire layout: channel_name = 1, time = 2, content = 3.
func marshalChunkBody(msgs []Message) []byte {
	var b []byte
	for _, m := range msgs {
		var sm []byte
		sm = pbwire.AppendString(sm, 1, m.Channel)
		sm = pbwire.AppendVarint(sm, 2, m.Time)
		sm = pbwire.AppendBytes(sm, 3, m.Content)
		b = pbwire.AppendBytes(b, 1, sm)
	}
	return b
}

func parseChunkBody(b []byte, typeOf func(channel string) string) ([]Message, error) {
	var msgs []Message
	err := pbwire.Walk(b, func(f pbwire.Field) error {
		if f.Num != 1 || f.Type != protowire.BytesType {
			return nil
		}
		var m Message
		if err := pbwire.Walk(f.Bytes, func(sf pbwire.Field) error {
			switch sf.Num {
			case 1:
				m.Channel = string(sf.Bytes)
			case 2:
				m.Time = sf.Varint
			case 3:
				m.Content = sf.Bytes
			}
			return nil
		}); err != nil {
			return fmt.Errorf("single message %d: %w", len(msgs), err)
		}
		m.Type = typeOf(m.Channel)
		msgs = append(msgs, m)
		return nil
	})
	return msgs, err
}

// IndexEntry is one SingleIndex from the index section.
type IndexEntry struct {
	Type     SectionType
	Position uint64

	// Set for channel entries only.
	Channel       *Channel
	ChannelCount  uint64
	ChunkMessages uint64
}

func (e IndexEntry) marshal() []byte {
	var b []byte
	b = pbwire.AppendVarint(b, 1, uint64(e.Type))
	b = pbwire.AppendVarint(b, 2, e.Position)
	switch e.Type {
	case SectionChannel:
		var cc []byte
		cc = pbwire.AppendVarint(cc, 1, e.ChannelCount)
		if e.Channel != nil {
			cc = pbwire.AppendString(cc, 2, e.Channel.Name)
			cc = pbwire.AppendString(cc, 3, e.Channel.MessageType)
			cc = pbwire.AppendBytes(cc, 4, e.Channel.ProtoDesc)
		}
		b = pbwire.AppendBytes(b, 101, cc)
	case SectionChunkHeader:
		b = pbwire.AppendBytes(b, 102, pbwire.AppendVarint(nil, 1, e.ChunkMessages))
	case SectionChunkBody:
		b = pbwire.AppendBytes(b, 103, pbwire.AppendVarint(nil, 1, e.ChunkMessages))
	}
	return b
}

func marshalIndex(entries []IndexEntry) []byte {
	var b []byte
	for _, e := range entries {
		b = pbwire.AppendBytes(b, 1, e.marshal())
	}
	return b
}

func parseIndex(b []byte) ([]IndexEntry, error) {
	var entries []IndexEntry
	err := pbwire.Walk(b, func(f pbwire.Field) error {
		if f.Num != 1 {
			return nil
		}
		var e IndexEntry
		err := pbwire.Walk(f.Bytes, func(sf pbwire.Field) error {
			switch sf.Num {
			case 1:
				e.Type = SectionType(int32(sf.Varint))
			case 2:
				e.Position = sf.Varint
			case 101:
				e.Channel = &Channel{}
				return pbwire.Walk(sf.Bytes, func(cf pbwire.Field) error {
					switch cf.Num {
					case 1:
						e.ChannelCount = cf.Varint
					case 2:
						e.Channel.Name = string(cf.Bytes)
					case 3:
						e.Channel.MessageType = string(cf.Bytes)
					}
					return nil
				})
			case 102, 103:
				return pbwire.Walk(sf.Bytes, func(cf pbwire.Field) error {
					if cf.Num == 1 {
						e.ChunkMessages = cf.Varint
					}
					return nil
				})
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("index entry %d: %w", len(entries), err)
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}
