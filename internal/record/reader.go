package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ChannelInfo aggregates what the reader has learned about one channel.
type ChannelInfo struct {
	Name        string
	MessageType string

	// Read counts messages returned by Next so far.
	Read uint64
	// Indexed is the message count from the index section, or 0 if the index
	// has not been reached.
	Indexed uint64

	FirstTime uint64
	LastTime  uint64
}

// Count returns the index count when known, else the number read.
func (c ChannelInfo) Count() uint64 {
	if c.Indexed > 0 {
		return c.Indexed
	}
	return c.Read
}

// Reader yields messages of a record in file order.
type Reader struct {
	r      *bufio.Reader
	offset int64
	header Header

	channels map[string]*ChannelInfo
	order    []string

	pending []Message
	done    bool
}

// NewReader reads and validates the record header from r.
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{
		r:        bufio.NewReaderSize(r, 1<<20),
		channels: make(map[string]*ChannelInfo),
	}

	sec, err := rd.readSection()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, ErrTruncated) {
			return nil, ErrNotRecord
		}
		return nil, fmt.Errorf("read header section: %w", err)
	}
	if sec.Type != SectionHeader || sec.Size < 0 || sec.Size > HeaderLength {
		return nil, fmt.Errorf("%w: first section is %s (%d bytes)", ErrNotRecord, sec.Type, sec.Size)
	}

	body, err := rd.readBody(sec)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	rd.header, err = parseHeader(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecord, err)
	}
	if pad := HeaderLength - sec.Size; pad > 0 {
		n, err := rd.r.Discard(int(pad))
		rd.offset += int64(n)
		if err != nil {
			return nil, fmt.Errorf("skip header padding: %w", ErrTruncated)
		}
	}

	if rd.header.Compress != CompressNone {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, rd.header.Compress)
	}
	return rd, nil
}

// Header returns the file header as read at open time.
func (r *Reader) Header() Header {
	return r.header
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next returns the next message, or io.EOF once the last chunk or the index
// section has been consumed. A section cut short returns ErrTruncated.
func (r *Reader) Next() (Message, error) {
	for len(r.pending) == 0 {
		if r.done {
			return Message{}, io.EOF
		}
		if err := r.advance(); err != nil {
			if errors.Is(err, io.EOF) {
				r.done = true
				continue
			}
			return Message{}, err
		}
	}

	m := r.pending[0]
	r.pending = r.pending[1:]

	ch := r.channel(m.Channel)
	if ch.Read == 0 || m.Time < ch.FirstTime {
		ch.FirstTime = m.Time
	}
	if m.Time > ch.LastTime {
		ch.LastTime = m.Time
	}
	ch.Read++
	return m, nil
}

// Channels returns channel information in first-declared order.
func (r *Reader) Channels() []ChannelInfo {
	out := make([]ChannelInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.channels[name])
	}
	return out
}

func (r *Reader) channel(name string) *ChannelInfo {
	ch, ok := r.channels[name]
	if !ok {
		ch = &ChannelInfo{Name: name}
		r.channels[name] = ch
		r.order = append(r.order, name)
	}
	return ch
}

func (r *Reader) typeOf(name string) string {
	if ch, ok := r.channels[name]; ok {
		return ch.MessageType
	}
	return ""
}

func (r *Reader) advance() error {
	start := r.offset
	sec, err := r.readSection()
	if err != nil {
		return err
	}
	body, err := r.readBody(sec)
	if err != nil {
		return fmt.Errorf("%s section at %d: %w", sec.Type, start, err)
	}

	switch sec.Type {
	case SectionChannel:
		c, err := parseChannel(body)
		if err != nil {
			return fmt.Errorf("channel section at %d: %w", start, err)
		}
		ch := r.channel(c.Name)
		ch.MessageType = c.MessageType

	case SectionChunkBody:
		msgs, err := parseChunkBody(body, r.typeOf)
		if err != nil {
			return fmt.Errorf("chunk body at %d: %w", start, err)
		}
		r.pending = msgs

	case SectionIndex:
		entries, err := parseIndex(body)
		if err != nil {
			return fmt.Errorf("index at %d: %w", start, err)
		}
		for _, e := range entries {
			if e.Type != SectionChannel || e.Channel == nil {
				continue
			}
			ch := r.channel(e.Channel.Name)
			ch.Indexed = e.ChannelCount
			if ch.MessageType == "" {
				ch.MessageType = e.Channel.MessageType
			}
		}
		// Nothing meaningful follows the index.
		return io.EOF

	case SectionChunkHeader:
		// Counts are taken from the body itself.
	}
	return nil
}

// readSection returns io.EOF only on a clean section boundary.
func (r *Reader) readSection() (section, error) {
	var buf [sectionHeaderSize]byte
	n, err := io.ReadFull(r.r, buf[:])
	r.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return section{}, ErrTruncated
		}
		return section{}, err
	}
	return parseSection(buf[:]), nil
}

func (r *Reader) readBody(sec section) ([]byte, error) {
	if sec.Size < 0 || sec.Size > maxSectionSize {
		return nil, fmt.Errorf("invalid section size %d", sec.Size)
	}
	body := make([]byte, sec.Size)
	n, err := io.ReadFull(r.r, body)
	r.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return body, nil
}
