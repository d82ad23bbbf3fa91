package model

import "time"

// Series is a named, chronologically ordered value series
type Series struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

// Len returns the number of observations
func (s Series) Len() int {
	return len(s.Values)
}

// Empty reports whether the series has no observations
func (s Series) Empty() bool {
	return len(s.Values) == 0
}

// Rebase divides the whole series by its first observation and renames it.
// A missing or zero base yields an empty series instead of dividing by zero.
func (s Series) Rebase(name string) Series {
	if s.Len() == 0 || s.Values[0] == 0 {
		return Series{Name: name}
	}
	base := s.Values[0]
	out := Series{
		Name:   name,
		Dates:  append([]time.Time(nil), s.Dates...),
		Values: make([]float64, len(s.Values)),
	}
	for i, v := range s.Values {
		out.Values[i] = v / base
	}
	return out
}
