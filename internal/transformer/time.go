// Package transformer maps activity events and catalog records to the rows
// of the star schema.
package transformer

import (
	"time"

	"sparkify/internal/records"
	"sparkify/internal/storage"
)

// DecomposeTime converts an epoch-millisecond timestamp to a time row.
//
// The instant is interpreted in UTC. Week is the ISO-8601 week number and
// Weekday counts from 0 (Monday) to 6 (Sunday).
func DecomposeTime(ms int64) storage.TimeRow {
	t := time.UnixMilli(ms).UTC()
	_, week := t.ISOWeek()
	return storage.TimeRow{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   (int(t.Weekday()) + 6) % 7,
	}
}

// NextSongEvents keeps only song plays, preserving order.
func NextSongEvents(events []records.ActivityEvent) []records.ActivityEvent {
	out := make([]records.ActivityEvent, 0, len(events))
	for _, e := range events {
		if e.IsNextSong() {
			out = append(out, e)
		}
	}
	return out
}

// TimeRows returns one row per event, in input order. Duplicate timestamps
// are kept; the store ignores repeated keys.
func TimeRows(events []records.ActivityEvent) []storage.TimeRow {
	out := make([]storage.TimeRow, 0, len(events))
	for _, e := range events {
		out = append(out, DecomposeTime(e.TS))
	}
	return out
}
