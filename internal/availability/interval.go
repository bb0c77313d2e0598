package availability

import (
	"sort"
	"time"

	"github.com/iliyamo/practice-booking/internal/model"
)

// normalize sorts intervals and merges overlapping or touching ones.
// Empty intervals are dropped.
func normalize(in []model.Interval) []model.Interval {
	out := make([]model.Interval, 0, len(in))
	for _, iv := range in {
		if iv.End.After(iv.Start) {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	merged := out[:0]
	for _, iv := range out {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// subtract removes every busy interval from free.  Both inputs may be
// unsorted; the result is sorted and disjoint.
func subtract(free, busy []model.Interval) []model.Interval {
	free = normalize(free)
	busy = normalize(busy)
	var out []model.Interval
	for _, f := range free {
		cur := f.Start
		for _, b := range busy {
			if !b.End.After(cur) || !b.Start.Before(f.End) {
				continue
			}
			if b.Start.After(cur) {
				out = append(out, model.Interval{Start: cur, End: b.Start})
			}
			if b.End.After(cur) {
				cur = b.End
			}
			if !cur.Before(f.End) {
				break
			}
		}
		if cur.Before(f.End) {
			out = append(out, model.Interval{Start: cur, End: f.End})
		}
	}
	return out
}

// covers reports whether [start, end) lies entirely inside one of the
// sorted disjoint intervals.
func covers(free []model.Interval, start, end time.Time) bool {
	i := sort.Search(len(free), func(i int) bool { return free[i].End.After(start) })
	return i < len(free) && !free[i].Start.After(start) && !free[i].End.Before(end)
}

// expand widens iv by pad on both sides.
func expand(iv model.Interval, pad time.Duration) model.Interval {
	return model.Interval{Start: iv.Start.Add(-pad), End: iv.End.Add(pad)}
}
