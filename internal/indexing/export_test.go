package indexing

import "time"

// SetClock pins the instant stamped into indexed_date.
func (w *Writer) SetClock(now func() time.Time) { w.now = now }
