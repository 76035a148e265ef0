// Package source opens a record for sequential reading, wherever it lives:
// a local file, a zstd-compressed file, a directory of segments or an object
// in a gocloud blob bucket.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver

	"github.com/Corezcy/record-latency/internal/logging"
	"github.com/Corezcy/record-latency/internal/record"
	"github.com/Corezcy/record-latency/internal/storage"
)

var (
	ErrNoSegments = errors.New("no record segments found")
	ErrSegmentGap = errors.New("record segment gap")
)

// MessageSource yields record messages in file order.
type MessageSource interface {
	// Next returns the next message or io.EOF.
	Next() (record.Message, error)
	// Channels reports what has been learned about each channel so far.
	Channels() []record.ChannelInfo
	Close() error
}

// Truncated reports whether src skipped past a cut in its input while
// continuing to yield messages. Sources that stop at the first cut return
// record.ErrTruncated from Next instead.
func Truncated(src MessageSource) bool {
	t, ok := src.(interface{ Truncated() bool })
	return ok && t.Truncated()
}

// Options configure Open.
type Options struct {
	S3 storage.S3Options
}

// Open opens location, which is a file path, a directory of segments, or a
// gs://, s3:// or file:// URL of a single record object.
func Open(ctx context.Context, location string, opts Options) (MessageSource, error) {
	loc, err := storage.ParseLocation(location, opts.S3)
	if err != nil {
		return nil, err
	}
	if loc.IsBlob() {
		return openBlob(ctx, loc)
	}

	path := filepath.Join(loc.Dir, loc.Key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid record path %s: %w", location, err)
	}
	if info.IsDir() {
		return openSegments(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record %s: %w", path, err)
	}
	return newRecordSource(f, path)
}

// recordSource reads a single record stream.
type recordSource struct {
	r      *record.Reader
	closer io.Closer
}

func newRecordSource(rc io.ReadCloser, name string) (*recordSource, error) {
	if IsCompressed(name) {
		dc, err := newDecompressor(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		rc = dc
	}

	r, err := record.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("open record %s: %w", name, err)
	}
	return &recordSource{r: r, closer: rc}, nil
}

func (s *recordSource) Next() (record.Message, error) { return s.r.Next() }

func (s *recordSource) Channels() []record.ChannelInfo { return s.r.Channels() }

func (s *recordSource) Close() error { return s.closer.Close() }

// segmentSource chains the segments of a split record. A segment that ends
// inside a section is read up to the cut and the next segment follows; only a
// cut in the last segment reaches the caller as record.ErrTruncated.
type segmentSource struct {
	files     []SegmentFile
	next      int
	cur       *recordSource
	curFile   SegmentFile
	done      []record.ChannelInfo
	truncated bool
}

func openSegments(dir string) (*segmentSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read record dir %s: %w", dir, err)
	}

	index := NewSegmentIndex()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		index.AddFile(filepath.Join(dir, e.Name()))
	}
	if index.Count() == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSegments, dir)
	}

	log := logging.Component("source")
	if err := index.ValidateContiguity(); err != nil {
		log.Warn("segments are not contiguous", "dir", dir, "error", err)
	}
	log.Info("indexed record segments", "dir", dir, "segments", index.Count())

	s := &segmentSource{files: index.Files()}
	if err := s.advance(); err != nil {
		return nil, err
	}
	return s, nil
}

// advance closes the current segment and opens the next readable one.
func (s *segmentSource) advance() error {
	if s.cur != nil {
		s.done = mergeChannels(s.done, s.cur.Channels())
		s.cur.Close()
		s.cur = nil
	}

	for s.next < len(s.files) {
		file := s.files[s.next]
		s.next++

		cur, err := openSegment(file)
		if errors.Is(err, record.ErrTruncated) && s.next < len(s.files) {
			s.skipTruncated(file, err)
			continue
		}
		if err != nil {
			return err
		}
		logging.Component("source").Debug("reading segment", "path", file.Path, "segment", file.Segment)
		s.cur = cur
		s.curFile = file
		return nil
	}
	return io.EOF
}

func openSegment(file SegmentFile) (*recordSource, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", file.Path, err)
	}
	return newRecordSource(f, file.Path)
}

func (s *segmentSource) skipTruncated(file SegmentFile, err error) {
	logging.Component("source").Warn("segment truncated, continuing with next segment",
		"path", file.Path,
		"segment", file.Segment,
		"error", err,
	)
	s.truncated = true
}

func (s *segmentSource) Next() (record.Message, error) {
	for {
		if s.cur == nil {
			return record.Message{}, io.EOF
		}
		m, err := s.cur.Next()
		if err == nil {
			return m, nil
		}
		switch {
		case errors.Is(err, io.EOF):
		case errors.Is(err, record.ErrTruncated) && s.next < len(s.files):
			s.skipTruncated(s.curFile, err)
		default:
			return record.Message{}, err
		}
		if err := s.advance(); err != nil {
			return record.Message{}, err
		}
	}
}

// Truncated reports whether a segment before the last was cut short and
// skipped past.
func (s *segmentSource) Truncated() bool {
	return s.truncated
}

func (s *segmentSource) Channels() []record.ChannelInfo {
	if s.cur == nil {
		return s.done
	}
	return mergeChannels(s.done, s.cur.Channels())
}

func (s *segmentSource) Close() error {
	if s.cur == nil {
		return nil
	}
	err := s.cur.Close()
	s.cur = nil
	return err
}

// mergeChannels folds b into a copy of a, keeping a's order and appending
// channels first seen in b.
func mergeChannels(a, b []record.ChannelInfo) []record.ChannelInfo {
	out := append([]record.ChannelInfo(nil), a...)
	pos := make(map[string]int, len(out))
	for i, c := range out {
		pos[c.Name] = i
	}
	for _, c := range b {
		i, ok := pos[c.Name]
		if !ok {
			pos[c.Name] = len(out)
			out = append(out, c)
			continue
		}
		m := &out[i]
		if m.MessageType == "" {
			m.MessageType = c.MessageType
		}
		if c.Read > 0 {
			if m.Read == 0 || c.FirstTime < m.FirstTime {
				m.FirstTime = c.FirstTime
			}
			m.LastTime = max(m.LastTime, c.LastTime)
		}
		m.Read += c.Read
		m.Indexed += c.Indexed
	}
	return out
}

func openBlob(ctx context.Context, loc storage.Location) (MessageSource, error) {
	bucket, err := blob.OpenBucket(ctx, loc.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", loc.BucketURL, err)
	}

	r, err := bucket.NewReader(ctx, loc.Key, nil)
	if err != nil {
		bucket.Close()
		return nil, fmt.Errorf("open object %s: %w", loc.Key, err)
	}

	src, err := newRecordSource(&bucketReader{Reader: r, bucket: bucket}, loc.Key)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// bucketReader closes the bucket together with the object reader.
type bucketReader struct {
	*blob.Reader
	bucket *blob.Bucket
}

func (b *bucketReader) Close() error {
	err := b.Reader.Close()
	if cerr := b.bucket.Close(); err == nil {
		err = cerr
	}
	return err
}
