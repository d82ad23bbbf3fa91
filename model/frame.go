package model

import (
	"math"
	"time"
)

// OHLCVTable is a per-symbol price table indexed by parsed trade date.
// PctChg is nil when the underlying collection does not carry the column.
type OHLCVTable struct {
	Dates  []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
	PctChg []float64
}

// Len returns the number of rows
func (t *OHLCVTable) Len() int {
	return len(t.Dates)
}

// HasPctChg reports whether the pct_chg column is present
func (t *OHLCVTable) HasPctChg() bool {
	return t.PctChg != nil
}

// FrameColumn is one (symbol, field) column of a wide price frame.
// Missing observations are NaN.
type FrameColumn struct {
	Symbol string
	Field  string
	Values []float64
}

// PriceFrame is a wide table of per-symbol OHLCV columns outer-joined on
// the date axis.
type PriceFrame struct {
	Dates   []time.Time
	Columns []FrameColumn
}

// Len returns the number of date rows
func (f *PriceFrame) Len() int {
	return len(f.Dates)
}

// Empty reports whether the frame has no rows or no columns
func (f *PriceFrame) Empty() bool {
	return len(f.Dates) == 0 || len(f.Columns) == 0
}

// ForwardFill propagates the last known value of each column forward
// across gaps. Leading gaps stay NaN.
func (f *PriceFrame) ForwardFill() {
	for ci := range f.Columns {
		vals := f.Columns[ci].Values
		last := math.NaN()
		for i, v := range vals {
			if math.IsNaN(v) {
				vals[i] = last
			} else {
				last = v
			}
		}
	}
}

// DropEmptyRows removes date rows that are NaN across every column.
func (f *PriceFrame) DropEmptyRows() {
	if f.Empty() {
		return
	}
	keep := make([]int, 0, len(f.Dates))
	for row := range f.Dates {
		empty := true
		for ci := range f.Columns {
			if !math.IsNaN(f.Columns[ci].Values[row]) {
				empty = false
				break
			}
		}
		if !empty {
			keep = append(keep, row)
		}
	}
	if len(keep) == len(f.Dates) {
		return
	}
	dates := make([]time.Time, len(keep))
	for i, row := range keep {
		dates[i] = f.Dates[row]
	}
	for ci := range f.Columns {
		vals := make([]float64, len(keep))
		for i, row := range keep {
			vals[i] = f.Columns[ci].Values[row]
		}
		f.Columns[ci].Values = vals
	}
	f.Dates = dates
}

// Column returns the values for one (symbol, field) column, or nil when
// the frame does not carry it.
func (f *PriceFrame) Column(symbol, field string) []float64 {
	for i := range f.Columns {
		if f.Columns[i].Symbol == symbol && f.Columns[i].Field == field {
			return f.Columns[i].Values
		}
	}
	return nil
}
