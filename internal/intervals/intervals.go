// Package intervals reports the spacing between consecutive messages of every
// channel in a record, one sheet per channel.
package intervals

import (
	"strconv"
	"strings"
)

// maxSheetName is the longest sheet name spreadsheet applications accept.
const maxSheetName = 31

// Columns is the header row of every interval sheet.
var Columns = []string{"timestamp(ns)", "interval(ms)"}

// Entry is one message arrival.
type Entry struct {
	Timestamp  uint64
	IntervalMs float64
}

// Sheet collects the arrivals of every channel that maps to Name.
type Sheet struct {
	Name    string
	Channel string // first channel seen for this sheet
	Type    string
	Entries []Entry
}

// Rows renders the sheet below its header: a [channel, type] row followed by
// one [timestamp, interval] row per arrival.
func (s *Sheet) Rows() [][]any {
	rows := make([][]any, 0, len(s.Entries)+1)
	rows = append(rows, []any{s.Channel, s.Type})
	for _, e := range s.Entries {
		rows = append(rows, []any{strconv.FormatUint(e.Timestamp, 10), e.IntervalMs})
	}
	return rows
}

// sheetReplacer maps slashes, and the other characters sheet names may not
// contain, to dashes.
var sheetReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "?", "-", "*", "-", "[", "-", "]", "-",
)

// SheetName turns a channel name into a sheet name: slashes and characters
// invalid in sheet names become dashes, the "-apollo" prefix is dropped and
// names too long for a sheet keep their last 30 characters.
func SheetName(channel string) string {
	name := sheetReplacer.Replace(channel)
	name = strings.ReplaceAll(name, "-apollo", "")
	if r := []rune(name); len(r) >= maxSheetName {
		name = string(r[len(r)-(maxSheetName-1):])
	}
	return name
}

// Tracker accumulates arrivals in stream order.
type Tracker struct {
	sheets []*Sheet
	byName map[string]*Sheet // keyed by lowercased sheet name
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byName: make(map[string]*Sheet)}
}

// Observe records one message. Channels whose sheet names collide, including
// names that differ only in case, share a sheet, and intervals are measured
// against that sheet's previous arrival.
func (t *Tracker) Observe(channel, messageType string, ts uint64) {
	name := SheetName(channel)
	key := strings.ToLower(name)
	s, ok := t.byName[key]
	if !ok {
		s = &Sheet{Name: name, Channel: channel, Type: messageType}
		t.byName[key] = s
		t.sheets = append(t.sheets, s)
		s.Entries = append(s.Entries, Entry{Timestamp: ts})
		return
	}

	prev := s.Entries[len(s.Entries)-1].Timestamp
	s.Entries = append(s.Entries, Entry{
		Timestamp:  ts,
		IntervalMs: float64(int64(ts)-int64(prev)) / 1e6,
	})
}

// Sheets returns the sheets in first-seen order.
func (t *Tracker) Sheets() []*Sheet {
	return t.sheets
}
