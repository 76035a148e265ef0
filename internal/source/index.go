package source

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SegmentFile is one segment of a split record.
type SegmentFile struct {
	Path    string // full path to the file
	Base    string // record name shared by all segments, e.g. 20210501155909.record
	Segment int    // segment number from the suffix
}

// SegmentIndex maintains an ordered list of record segments.
type SegmentIndex struct {
	files []SegmentFile
}

// NewSegmentIndex creates an empty segment index.
func NewSegmentIndex() *SegmentIndex {
	return &SegmentIndex{}
}

// Cyber recorder segment naming: {name}.record.{NNNNN}, optionally zstd
// compressed. Example: 20210501155909.record.00020
var segmentFilePattern = regexp.MustCompile(`^(.+\.record)\.(\d{5})(\.zst)?$`)

// ParseSegmentFilename extracts the record name and segment number.
func ParseSegmentFilename(filename string) (string, int, bool) {
	base := filepath.Base(filename)
	matches := segmentFilePattern.FindStringSubmatch(base)
	if matches == nil {
		return "", 0, false
	}

	seg, err := strconv.Atoi(matches[2])
	if err != nil {
		return "", 0, false
	}
	return matches[1], seg, true
}

// AddFile adds a file to the index if it matches the segment pattern.
func (idx *SegmentIndex) AddFile(path string) bool {
	base, seg, ok := ParseSegmentFilename(path)
	if !ok {
		return false
	}
	idx.files = append(idx.files, SegmentFile{Path: path, Base: base, Segment: seg})
	return true
}

// Sort orders files by record name, then segment number.
func (idx *SegmentIndex) Sort() {
	sort.Slice(idx.files, func(i, j int) bool {
		if idx.files[i].Base != idx.files[j].Base {
			return idx.files[i].Base < idx.files[j].Base
		}
		return idx.files[i].Segment < idx.files[j].Segment
	})
}

// Files returns the indexed segments in order.
func (idx *SegmentIndex) Files() []SegmentFile {
	idx.Sort()
	return idx.files
}

// Count returns the total number of indexed files.
func (idx *SegmentIndex) Count() int {
	return len(idx.files)
}

// ValidateContiguity checks that each record's segments are numbered without
// gaps. Returns the first gap found.
func (idx *SegmentIndex) ValidateContiguity() error {
	files := idx.Files()
	for i := 1; i < len(files); i++ {
		prev, cur := files[i-1], files[i]
		if prev.Base != cur.Base {
			continue
		}
		if cur.Segment != prev.Segment+1 {
			return fmt.Errorf("%w: %s segment %d follows %d", ErrSegmentGap, cur.Base, cur.Segment, prev.Segment)
		}
	}
	return nil
}

// IsCompressed checks if a file is zstd compressed.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}
