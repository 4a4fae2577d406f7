package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "syllasync/internal/log"
	"syllasync/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all events are converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps expansion of a single recurring event.
	MaxOccurrencesPerEvent int
}

// Expand turns parsed events into concrete CalendarEvents inside the
// configured window, sorted by start time.
func Expand(events []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.RawRRule == "" {
			if overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				out = append(out, makeEvent(ev, ev.Start, ev.End, cfg.DisplayLocation))
			}
			continue
		}
		out = append(out, expandRecurring(ev, cfg)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func expandRecurring(ev ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	times := set.Between(cfg.RangeStart.In(ev.Start.Location()), cfg.RangeEnd.In(ev.Start.Location()), true)
	if len(times) > cfg.MaxOccurrencesPerEvent {
		appLog.Info("expand: occurrences truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		times = times[:cfg.MaxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.CalendarEvent, 0, len(times))
	for _, start := range times {
		out = append(out, makeEvent(ev, start, start.Add(dur), cfg.DisplayLocation))
	}
	return out
}

func makeEvent(ev ParsedEvent, start, end time.Time, loc *time.Location) model.CalendarEvent {
	if ev.AllDay {
		// Dates carry no zone; keep the wall-clock date.
		return model.CalendarEvent{
			UID:     ev.UID,
			Summary: ev.Summary,
			AllDay:  true,
			Start:   time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc),
			End:     time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc),
		}
	}
	return model.CalendarEvent{
		UID:     ev.UID,
		Summary: ev.Summary,
		Start:   start.In(loc),
		End:     end.In(loc),
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// Preview parses a downloaded calendar file and returns its events between
// from and from+days in loc.
func Preview(body []byte, loc *time.Location, from time.Time, days int) ([]model.CalendarEvent, error) {
	parsed, err := ParseICS(body)
	if err != nil {
		return nil, err
	}
	return Expand(parsed, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      from,
		RangeEnd:        from.AddDate(0, 0, days),
	})
}
