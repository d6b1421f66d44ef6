package strategy

import (
	"errors"
	"testing"

	"github.com/newthinker/swingsim/internal/core"
)

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	for _, name := range DefaultConditions {
		if _, ok := r.Get(name); !ok {
			t.Errorf("default condition %q not registered", name)
		}
	}
	if _, ok := r.Get(PriceAboveEMAName(200)); !ok {
		t.Error("expected ema_200 to be registered")
	}
	if got := len(r.All()); got != 12 {
		t.Errorf("expected 12 built-in conditions, got %d", got)
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	before := len(r.All())

	r.Register(NewCondition(CondRSIBand, "always", func(Input) (bool, error) { return true, nil }))

	if got := len(r.All()); got != before {
		t.Errorf("expected %d conditions after replace, got %d", before, got)
	}
	c, _ := r.Get(CondRSIBand)
	if c.Description() != "always" {
		t.Errorf("expected replaced description, got %q", c.Description())
	}
}

func TestRegistry_SelectKeepsOrder(t *testing.T) {
	r := NewRegistry()

	conds, err := r.Select([]string{CondMACDRising, CondSMA5Over10, CondMACDRising})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conds) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(conds))
	}
	if conds[0].Name() != CondMACDRising || conds[1].Name() != CondSMA5Over10 {
		t.Errorf("unexpected order: %s, %s", conds[0].Name(), conds[1].Name())
	}
}

func TestRegistry_SelectUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Select([]string{"sma_5_10", "moon_phase"})
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	names := NewRegistry().Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted at %d: %v", i, names)
		}
	}
}
