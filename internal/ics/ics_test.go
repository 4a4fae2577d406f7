package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calendar(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//syllasync//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var semester = calendar(
	"BEGIN:VEVENT",
	"UID:hw1",
	"DTSTAMP:20250101T000000Z",
	"SUMMARY:Homework 1",
	"DTSTART:20250910T230000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:midterm",
	"DTSTAMP:20250101T000000Z",
	"SUMMARY:Midterm",
	"DTSTART:20251015T140000Z",
	"DTEND:20251015T160000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:quiz",
	"DTSTAMP:20250101T000000Z",
	"SUMMARY:Weekly quiz",
	"DTSTART:20250901T150000Z",
	"DTEND:20250901T153000Z",
	"RRULE:FREQ=WEEKLY;COUNT=4",
	"EXDATE:20250908T150000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:old",
	"DTSTAMP:20250101T000000Z",
	"SUMMARY:Past exam",
	"DTSTART:20240101T100000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:broken",
	"SUMMARY:No start",
	"END:VEVENT",
)

func TestParseICS(t *testing.T) {
	events, err := ParseICS(semester)
	require.NoError(t, err)
	require.Len(t, events, 4, "event without DTSTART is skipped")

	hw := events[0]
	assert.Equal(t, "hw1", hw.UID)
	assert.Equal(t, "Homework 1", hw.Summary)
	assert.False(t, hw.AllDay)
	assert.True(t, hw.Start.Equal(time.Date(2025, 9, 10, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, hw.End.Sub(hw.Start))

	quiz := events[2]
	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", quiz.RawRRule)
	require.Len(t, quiz.ExDates, 1)
}

func TestParseICSEmpty(t *testing.T) {
	_, err := ParseICS(nil)
	assert.Error(t, err)
}

func TestPreviewExpandsAndSorts(t *testing.T) {
	from := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	events, err := Preview(semester, time.UTC, from, 60)
	require.NoError(t, err)

	var got []string
	for _, ev := range events {
		got = append(got, ev.Start.Format("01-02")+" "+ev.Summary)
	}
	assert.Equal(t, []string{
		"09-01 Weekly quiz",
		"09-10 Homework 1",
		"09-15 Weekly quiz",
		"09-22 Weekly quiz",
		"10-15 Midterm",
	}, got)
}

func TestPreviewAllDay(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT",
		"UID:final",
		"DTSTAMP:20250101T000000Z",
		"SUMMARY:Final project due",
		"DTSTART;VALUE=DATE:20251205",
		"END:VEVENT",
	)
	loc := time.FixedZone("UTC-5", -5*3600)

	events, err := Preview(body, loc, time.Date(2025, 12, 1, 0, 0, 0, 0, loc), 30)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
	assert.Equal(t, 5, events[0].Start.Day())
	assert.Equal(t, 6, events[0].End.Day())
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	now := time.Now()
	_, err := Expand(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)})
	assert.Error(t, err)
}
