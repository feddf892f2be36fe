// Package availability enumerates bookable slots from a tenant's working
// hours, granularity, lead time, and a merged set of busy intervals. All
// functions are pure: same inputs, same slots, in the same order.
package availability

import (
	"fmt"
	"sort"
	"time"

	"hvac-booking-core/internal/domain/entity"
)

// Interval is a half-open [Start, End) busy window in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps is the strict overlap rule: a.start < b.end AND a.end > b.start.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Slot is one bookable interval, carried in both local and UTC time.
type Slot struct {
	StartLocal time.Time
	EndLocal   time.Time
	StartUTC   time.Time
	EndUTC     time.Time
}

// Params feeds Slots. Busy must already be merged (see NormalizeBusy) and in UTC.
type Params struct {
	Location       *time.Location
	WorkingHours   entity.WorkingHours
	GranularityMin int
	DurationMin    int
	LeadTimeMin    int
	Now            time.Time
	WindowStart    time.Time // local; only the date part matters
	Days           int
	Busy           []Interval
}

// Slots walks each working-hours window of each requested day, advancing a
// cursor by granularity and emitting every duration-length interval that
// clears the lead time and does not overlap a busy interval.
func Slots(p Params) []Slot {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	granularity := time.Duration(p.GranularityMin) * time.Minute
	if granularity <= 0 {
		granularity = 15 * time.Minute
	}
	duration := time.Duration(p.DurationMin) * time.Minute
	if duration <= 0 {
		return nil
	}

	earliestLocal := p.Now.In(loc).Add(time.Duration(p.LeadTimeMin) * time.Minute)

	var slots []Slot
	start := p.WindowStart.In(loc)
	for d := 0; d < p.Days; d++ {
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, d)
		windows := p.WorkingHours[entity.WeekdayKey(day.Weekday())]
		for _, w := range windows {
			windowStart, err1 := atClock(day, w.Start, loc)
			windowEnd, err2 := atClock(day, w.End, loc)
			if err1 != nil || err2 != nil || !windowStart.Before(windowEnd) {
				continue
			}

			cursor := windowStart
			if earliestLocal.After(cursor) {
				cursor = roundUp(earliestLocal, windowStart, granularity)
			}

			for !cursor.Add(duration).After(windowEnd) {
				candidate := Interval{Start: cursor.UTC(), End: cursor.Add(duration).UTC()}
				if !overlapsAny(candidate, p.Busy) {
					slots = append(slots, Slot{
						StartLocal: cursor,
						EndLocal:   cursor.Add(duration),
						StartUTC:   candidate.Start,
						EndUTC:     candidate.End,
					})
				}
				cursor = cursor.Add(granularity)
			}
		}
	}
	return slots
}

// NormalizeBusy expands each interval by the buffers, sorts by start, and
// merges overlapping/adjacent intervals into a pairwise-disjoint sorted list.
func NormalizeBusy(in []Interval, bufferBefore, bufferAfter time.Duration) []Interval {
	if len(in) == 0 {
		return nil
	}

	expanded := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Start.Before(iv.End) {
			continue
		}
		expanded = append(expanded, Interval{
			Start: iv.Start.Add(-bufferBefore),
			End:   iv.End.Add(bufferAfter),
		})
	}
	if len(expanded) == 0 {
		return nil
	}

	sort.Slice(expanded, func(i, j int) bool {
		return expanded[i].Start.Before(expanded[j].Start)
	})

	merged := []Interval{expanded[0]}
	for _, iv := range expanded[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// IsOutsideBusinessHours reports whether a UTC instant falls outside every
// working-hours window of its local weekday.
func IsOutsideBusinessHours(t time.Time, loc *time.Location, hours entity.WorkingHours) bool {
	local := t.In(loc)
	minute := local.Hour()*60 + local.Minute()
	for _, w := range hours[entity.WeekdayKey(local.Weekday())] {
		sh, sm, err1 := parseClock(w.Start)
		eh, em, err2 := parseClock(w.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if minute >= sh*60+sm && minute < eh*60+em {
			return false
		}
	}
	return true
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// roundUp advances t to the next granularity boundary measured from anchor.
func roundUp(t, anchor time.Time, granularity time.Duration) time.Time {
	offset := t.Sub(anchor)
	if rem := offset % granularity; rem > 0 {
		offset += granularity - rem
	}
	return anchor.Add(offset)
}

func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	h, m, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc), nil
}

func parseClock(s string) (hour, minute int, err error) {
	if _, err = fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock value %q", s)
	}
	return hour, minute, nil
}
