package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)
	c := time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC)

	if !SameDay(a, b) {
		t.Error("expected same day")
	}
	if SameDay(a, c) {
		t.Error("expected different days")
	}
	if got := Day(b); !got.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Day() = %v", got)
	}
	if DayKey(b) != "2024-03-05" {
		t.Errorf("DayKey() = %s", DayKey(b))
	}
}

func TestDailyBar_IsValid(t *testing.T) {
	bar := DailyBar{
		Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Open: decimal.NewFromInt(100),
		High: decimal.NewFromInt(105),
		Low:  decimal.NewFromInt(99),
	}
	if !bar.IsValid() {
		t.Error("expected valid bar")
	}

	bar.High = decimal.NewFromInt(90)
	if bar.IsValid() {
		t.Error("high below low should be invalid")
	}
}
