package strategy

import (
	"github.com/newthinker/swingsim/internal/core"
	"github.com/newthinker/swingsim/internal/indicator"
	"github.com/shopspring/decimal"
)

// Input is the read-only view a condition evaluates at bar Index.
type Input struct {
	Index int
	Daily []core.DailyBar
	Frame *indicator.Frame
}

// Bar returns the daily bar at i.
func (in Input) Bar(i int) (core.DailyBar, error) {
	if i < 0 || i >= len(in.Daily) {
		return core.DailyBar{}, core.Errorf(core.ErrLookupFailure, "daily[%d] with %d bars", i, len(in.Daily))
	}
	return in.Daily[i], nil
}

// Indicator returns frame column name at bar i.
func (in Input) Indicator(name string, i int) (float64, error) {
	if in.Frame == nil {
		return 0, core.Errorf(core.ErrMissingField, "no indicator frame for %s", name)
	}
	return in.Frame.Value(name, i)
}

// EntryPrice is the open of the current bar.
func (in Input) EntryPrice() (decimal.Decimal, error) {
	bar, err := in.Bar(in.Index)
	if err != nil {
		return decimal.Zero, err
	}
	return bar.Open, nil
}

// Condition is a named entry predicate. Check must only read bars at or
// before in.Index and must return false, not an error, when there is not
// enough history.
type Condition interface {
	Name() string
	Description() string
	Check(in Input) (bool, error)
}

// ConditionFunc adapts a function to the Condition interface.
type ConditionFunc struct {
	name        string
	description string
	fn          func(in Input) (bool, error)
}

// NewCondition wraps fn as a named condition.
func NewCondition(name, description string, fn func(in Input) (bool, error)) ConditionFunc {
	return ConditionFunc{name: name, description: description, fn: fn}
}

func (c ConditionFunc) Name() string        { return c.name }
func (c ConditionFunc) Description() string { return c.description }

func (c ConditionFunc) Check(in Input) (bool, error) {
	return c.fn(in)
}
