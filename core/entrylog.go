package core

import (
	"time"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

// entryLog stores the ordered exchange log of a tab, trimmed to a maximum
// number of entries.
type entryLog struct {
	entries  []schema.Entry
	total    int
	maxLines int
}

func newEntryLog(maxLines int) *entryLog {
	if maxLines <= 0 {
		maxLines = schema.DefaultEntryMaxLines
	}
	return &entryLog{maxLines: maxLines}
}

func newEntryLogFromPersisted(entries []schema.Entry, maxLines int) *entryLog {
	log := newEntryLog(maxLines)
	if len(entries) > log.maxLines {
		entries = entries[len(entries)-log.maxLines:]
	}
	log.entries = append([]schema.Entry(nil), entries...)
	log.total = len(log.entries)
	return log
}

// Append adds entries and trims the log to its limit.
func (l *entryLog) Append(entries ...schema.Entry) {
	if len(entries) == 0 {
		return
	}
	l.entries = append(l.entries, entries...)
	l.total += len(entries)
	if len(l.entries) > l.maxLines {
		trim := len(l.entries) - l.maxLines
		l.entries = l.entries[trim:]
	}
}

// AppendText adds one entry with the given source and text, timestamped now.
func (l *entryLog) AppendText(source schema.EntrySource, text string) schema.Entry {
	entry := schema.Entry{Source: source, Text: text, Timestamp: time.Now()}
	l.Append(entry)
	return entry
}

// Tail returns up to limit of the most recent entries. A non-positive limit
// returns everything retained.
func (l *entryLog) Tail(limit int) []schema.Entry {
	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	start := len(l.entries) - limit
	out := make([]schema.Entry, limit)
	copy(out, l.entries[start:])
	return out
}

// Total reports how many entries were ever appended.
func (l *entryLog) Total() int {
	return l.total
}

// Export returns retained entries for persistence.
func (l *entryLog) Export() []schema.Entry {
	if l == nil {
		return nil
	}
	return append([]schema.Entry(nil), l.entries...)
}
