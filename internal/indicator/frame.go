package indicator

import (
	"fmt"
	"math"
	"sort"

	"github.com/newthinker/swingsim/internal/core"
)

// Column names of an annotated frame.
const (
	FieldRSI           = "RSI"
	FieldMACDLine      = "MACD_Line"
	FieldMACDSignal    = "MACD_Signal"
	FieldMACDHistogram = "MACD_Histogram"
)

// Windows are the moving-average lengths computed by Annotate.
var Windows = []int{3, 5, 10, 20, 50, 100, 200}

// SMAField returns the column name of the k-bar simple average.
func SMAField(k int) string { return fmt.Sprintf("SMA_%d", k) }

// EMAField returns the column name of the k-span exponential average.
func EMAField(k int) string { return fmt.Sprintf("EMA_%d", k) }

// Frame is a read-only set of named indicator columns aligned with the
// daily series by bar index.
type Frame struct {
	n    int
	cols map[string][]float64
}

// NewFrame creates an empty frame for n bars.
func NewFrame(n int) *Frame {
	return &Frame{n: n, cols: make(map[string][]float64)}
}

// Set adds or replaces a column. The column must have one value per bar.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != f.n {
		return core.Errorf(core.ErrMalformedInput, "column %s has %d values, frame has %d bars", name, len(values), f.n)
	}
	f.cols[name] = values
	return nil
}

// Len returns the number of bars.
func (f *Frame) Len() int { return f.n }

// Has reports whether the column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Value looks up column name at bar i. A value still warming up is returned
// as NaN without error; an absent column or an out-of-range index is an error.
func (f *Frame) Value(name string, i int) (float64, error) {
	col, ok := f.cols[name]
	if !ok {
		return math.NaN(), core.Errorf(core.ErrMissingField, "%s", name)
	}
	if i < 0 || i >= f.n {
		return math.NaN(), core.Errorf(core.ErrLookupFailure, "%s[%d] with %d bars", name, i, f.n)
	}
	return col[i], nil
}

// Columns lists column names in sorted order.
func (f *Frame) Columns() []string {
	names := make([]string, 0, len(f.cols))
	for name := range f.cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slice returns the frame restricted to bars [from, Len()).
func (f *Frame) Slice(from int) *Frame {
	if from < 0 {
		from = 0
	}
	if from > f.n {
		from = f.n
	}
	out := NewFrame(f.n - from)
	for name, col := range f.cols {
		out.cols[name] = col[from:]
	}
	return out
}

// Annotate computes the full indicator set from a close series: SMA and EMA
// for every window, MACD 12/26/9 and RSI 14.
func Annotate(closes []float64) *Frame {
	f := NewFrame(len(closes))
	for _, k := range Windows {
		f.cols[SMAField(k)] = SMA(closes, k)
		f.cols[EMAField(k)] = EMA(closes, k)
	}
	line, sig, hist := MACD(closes, 12, 26, 9)
	f.cols[FieldMACDLine] = line
	f.cols[FieldMACDSignal] = sig
	f.cols[FieldMACDHistogram] = hist
	f.cols[FieldRSI] = RSI(closes, 14)
	return f
}
