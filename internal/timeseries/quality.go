package timeseries

import (
	"fmt"
	"time"
)

// Quality summarises the integrity of a time-indexed dataset.
type Quality struct {
	Rows         int        `json:"rows"`
	NaN          int        `json:"nan"`
	NaT          int        `json:"nat"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	ExpectedRows *int       `json:"expected_rows,omitempty"`
	Warning      string     `json:"warning,omitempty"`
}

// QualityCheck counts rows and NaN cells and, when the step is known,
// compares the row count with the span covered by the index.
// Readers drop rows with unparseable timestamps and report them in NaT.
func QualityCheck(f *Frame, stepMinutes int) Quality {
	q := Quality{
		Rows: f.Len(),
		NaN:  f.CountNaN(),
	}
	if f.Len() == 0 {
		return q
	}

	lo, hi := f.MinMaxTime()
	q.Start, q.End = &lo, &hi

	if stepMinutes > 0 {
		expected := int(hi.Sub(lo).Minutes()/float64(stepMinutes)) + 1
		q.ExpectedRows = &expected
		if expected != q.Rows {
			q.Warning = fmt.Sprintf("Row count mismatch: got %d, expected %d for step=%d min.", q.Rows, expected, stepMinutes)
		}
	}
	return q
}
