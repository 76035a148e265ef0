package record

import (
	"fmt"
	"io"
	"os"
)

// DefaultChunkMessages is how many messages a chunk holds before it is flushed.
const DefaultChunkMessages = 512

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithChunkMessages sets the per-chunk message limit.
func WithChunkMessages(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.chunkMessages = n
		}
	}
}

type writerChannel struct {
	Channel
	position uint64
	count    uint64
}

// Writer produces an uncompressed, single-segment record file.
type Writer struct {
	ws     io.WriteSeeker
	closer io.Closer
	pos    int64
	header Header

	channels map[string]*writerChannel
	order    []string
	index    []IndexEntry

	chunk         []Message
	chunkRaw      uint64
	chunkMessages int

	closed bool
}

// Create creates path and returns a Writer that closes the file on Close.
func Create(path string, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create record %s: %w", path, err)
	}
	w, err := NewWriter(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes a provisional header to ws. The header is rewritten with
// final counts on Close, so ws must support seeking back to its start.
func NewWriter(ws io.WriteSeeker, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		ws: ws,
		header: Header{
			MajorVersion: 1,
			MinorVersion: 0,
			Compress:     CompressNone,
		},
		channels:      make(map[string]*writerChannel),
		chunkMessages: DefaultChunkMessages,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.writeHeader(); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteChannel declares a channel. Declaring the same name again is a no-op.
func (w *Writer) WriteChannel(name, messageType string, protoDesc []byte) error {
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.channels[name]; ok {
		return nil
	}
	c := Channel{Name: name, MessageType: messageType, ProtoDesc: protoDesc}
	pos := w.pos
	if err := w.writeSection(SectionChannel, c.marshal()); err != nil {
		return fmt.Errorf("write channel %s: %w", name, err)
	}
	w.channels[name] = &writerChannel{Channel: c, position: uint64(pos)}
	w.order = append(w.order, name)
	w.header.ChannelNumber++
	return nil
}

// WriteMessage buffers one message on a declared channel.
func (w *Writer) WriteMessage(channel string, content []byte, t uint64) error {
	if w.closed {
		return ErrClosed
	}
	ch, ok := w.channels[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	ch.count++

	w.chunk = append(w.chunk, Message{Channel: channel, Type: ch.MessageType, Content: content, Time: t})
	w.chunkRaw += uint64(len(content))

	if w.header.MessageNumber == 0 || t < w.header.BeginTime {
		w.header.BeginTime = t
	}
	if t > w.header.EndTime {
		w.header.EndTime = t
	}
	w.header.MessageNumber++

	if len(w.chunk) >= w.chunkMessages {
		return w.flushChunk()
	}
	return nil
}

// Close flushes the open chunk, writes the index and finalizes the header.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.finish()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close record: %w", cerr)
		}
	}
	return err
}

func (w *Writer) finish() error {
	if err := w.flushChunk(); err != nil {
		return err
	}

	entries := make([]IndexEntry, 0, len(w.order)+len(w.index))
	for _, name := range w.order {
		ch := w.channels[name]
		c := ch.Channel
		entries = append(entries, IndexEntry{
			Type:         SectionChannel,
			Position:     ch.position,
			Channel:      &c,
			ChannelCount: ch.count,
		})
	}
	entries = append(entries, w.index...)

	w.header.IndexPosition = uint64(w.pos)
	if err := w.writeSection(SectionIndex, marshalIndex(entries)); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	w.header.Size = uint64(w.pos)
	w.header.IsComplete = true
	if _, err := w.ws.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}
	w.pos = 0
	return w.writeHeader()
}

func (w *Writer) flushChunk() error {
	if len(w.chunk) == 0 {
		return nil
	}

	ch := chunkHeader{
		BeginTime:     w.chunk[0].Time,
		EndTime:       w.chunk[0].Time,
		MessageNumber: uint64(len(w.chunk)),
		RawSize:       w.chunkRaw,
	}
	for _, m := range w.chunk[1:] {
		ch.BeginTime = min(ch.BeginTime, m.Time)
		ch.EndTime = max(ch.EndTime, m.Time)
	}

	w.index = append(w.index, IndexEntry{Type: SectionChunkHeader, Position: uint64(w.pos), ChunkMessages: ch.MessageNumber})
	if err := w.writeSection(SectionChunkHeader, ch.marshal()); err != nil {
		return fmt.Errorf("write chunk header: %w", err)
	}
	w.index = append(w.index, IndexEntry{Type: SectionChunkBody, Position: uint64(w.pos), ChunkMessages: ch.MessageNumber})
	if err := w.writeSection(SectionChunkBody, marshalChunkBody(w.chunk)); err != nil {
		return fmt.Errorf("write chunk body: %w", err)
	}

	w.header.ChunkNumber++
	w.header.ChunkRawSize = max(w.header.ChunkRawSize, w.chunkRaw)
	w.header.SegmentRawSize += w.chunkRaw
	w.chunk = w.chunk[:0]
	w.chunkRaw = 0
	return nil
}

func (w *Writer) writeHeader() error {
	body := w.header.marshal()
	if len(body) > HeaderLength {
		return fmt.Errorf("header too large: %d bytes", len(body))
	}
	buf := make([]byte, 0, sectionHeaderSize+HeaderLength)
	buf = append(buf, section{Type: SectionHeader, Size: int64(len(body))}.marshal()...)
	buf = append(buf, body...)
	buf = append(buf, make([]byte, HeaderLength-len(body))...)
	return w.write(buf)
}

func (w *Writer) writeSection(t SectionType, body []byte) error {
	if err := w.write(section{Type: t, Size: int64(len(body))}.marshal()); err != nil {
		return err
	}
	return w.write(body)
}

func (w *Writer) write(b []byte) error {
	n, err := w.ws.Write(b)
	w.pos += int64(n)
	return err
}
