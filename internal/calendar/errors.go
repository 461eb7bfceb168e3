package calendar

import (
	"fmt"

	"pun-archive/internal/model"
)

// InvalidHourError reports an hour ordinal outside the legal range of its date.
// It is fatal to that single record only.
type InvalidHourError struct {
	Date model.Date
	Hour int
	Max  int
}

func (e *InvalidHourError) Error() string {
	return fmt.Sprintf("hour ordinal %d out of range 1..%d on %s", e.Hour, e.Max, e.Date)
}

// AmbiguousTimeError reports an input that cannot be placed on the local
// timeline even with the transition rules, e.g. a date resolved against the
// transitions of a different year.
type AmbiguousTimeError struct {
	Date   model.Date
	Hour   int
	Reason string
}

func (e *AmbiguousTimeError) Error() string {
	return fmt.Sprintf("cannot resolve %s hour %d: %s", e.Date, e.Hour, e.Reason)
}
