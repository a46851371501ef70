package domain

import (
	"fmt"
	"time"
)

// Day is the length of one slot on the axis.
const Day = 24 * time.Hour

// DateAxis is the shared day axis every source is aligned onto.
type DateAxis struct {
	Start time.Time
	End   time.Time
	Days  int
}

// NewDateAxis spans start through end inclusive of the partial final day.
func NewDateAxis(start, end time.Time) (DateAxis, error) {
	if end.Before(start) {
		return DateAxis{}, fmt.Errorf("axis end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return DateAxis{
		Start: start,
		End:   end,
		Days:  int(end.Sub(start)/Day) + 1,
	}, nil
}

// Offset converts t to a day index, flooring partial days.
func (a DateAxis) Offset(t time.Time) (int, error) {
	d := t.Sub(a.Start)
	if d < 0 {
		return 0, fmt.Errorf("%s: %w", t.Format(time.RFC3339), ErrOffsetOutOfRange)
	}
	off := int(d / Day)
	if off >= a.Days {
		return 0, fmt.Errorf("%s: %w", t.Format(time.RFC3339), ErrOffsetOutOfRange)
	}
	return off, nil
}

// Last is the offset of the final (live) day.
func (a DateAxis) Last() int {
	return a.Days - 1
}

// Contains reports whether off is a valid index.
func (a DateAxis) Contains(off int) bool {
	return off >= 0 && off < a.Days
}

// DropFirst shifts the axis forward by one day.
func (a DateAxis) DropFirst() DateAxis {
	if a.Days == 0 {
		return a
	}
	return DateAxis{Start: a.Start.Add(Day), End: a.End, Days: a.Days - 1}
}

// DropLast removes the final day.
func (a DateAxis) DropLast() DateAxis {
	if a.Days == 0 {
		return a
	}
	return DateAxis{Start: a.Start, End: a.End.Add(-Day), Days: a.Days - 1}
}
