package observer

import "testing"

func TestCostCalculatorDefaultsToZero(t *testing.T) {
	c := NewCostCalculator(nil)
	if got := c.Calculate("llama.cpp", 1_000_000, 1_000_000); got != 0 {
		t.Errorf("local model cost = %v, want 0", got)
	}
	if got := c.Calculate("unknown-model", 500, 500); got != 0 {
		t.Errorf("unknown model cost = %v, want 0", got)
	}
}

func TestCostCalculatorOverrides(t *testing.T) {
	c := NewCostCalculator(map[string]ModelPricing{
		"hosted-big": {InputPerMillion: 2.0, OutputPerMillion: 8.0},
	})
	got := c.Calculate("hosted-big", 1_000_000, 500_000)
	want := 2.0 + 4.0
	if got != want {
		t.Errorf("cost = %v, want %v", got, want)
	}
}
