package calculate

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEMA(t *testing.T) {
	got := EMA([]float64{1, 2, 3}, 3)
	// alpha = 0.5: 1, 1.5, 2.25
	want := []float64{1, 1.5, 2.25}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("EMA()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWilderMinPeriods(t *testing.T) {
	values := []float64{NaN, 1, 1, 1, 1}
	got := Wilder(values, 3)
	for i := 0; i < 3; i++ {
		if !IsNaN(got[i]) {
			t.Errorf("Wilder()[%d] = %v, want NaN", i, got[i])
		}
	}
	if !almostEqual(got[3], 1) {
		t.Errorf("Wilder()[3] = %v, want 1", got[3])
	}
}

func TestRolling(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	tests := []struct {
		name string
		got  []float64
		want []float64
	}{
		{"sma", SMA(values, 2), []float64{NaN, 1.5, 2.5, 3.5}},
		{"min", RollingMin(values, 3), []float64{NaN, NaN, 1, 2}},
		{"max", RollingMax(values, 3), []float64{NaN, NaN, 3, 4}},
		{"std", Std(values, 2), []float64{NaN, math.Sqrt(0.5), math.Sqrt(0.5), math.Sqrt(0.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.want {
				if IsNaN(tt.want[i]) != IsNaN(tt.got[i]) || (!IsNaN(tt.want[i]) && !almostEqual(tt.got[i], tt.want[i])) {
					t.Errorf("[%d] = %v, want %v", i, tt.got[i], tt.want[i])
				}
			}
		})
	}
}

func TestQuantile(t *testing.T) {
	values := []float64{4, 1, 3, 2, NaN}
	if got := Quantile(values, 0.5); !almostEqual(got, 2.5) {
		t.Errorf("Quantile(0.5) = %v, want 2.5", got)
	}
	if got := Quantile(values, 0.75); !almostEqual(got, 3.25) {
		t.Errorf("Quantile(0.75) = %v, want 3.25", got)
	}
	if got := Quantile(nil, 0.5); !IsNaN(got) {
		t.Errorf("Quantile(nil) = %v, want NaN", got)
	}
}

func TestTrueRange(t *testing.T) {
	high := []float64{10, 12, 11}
	low := []float64{9, 11, 8}
	closes := []float64{9.5, 11.5, 9}
	got := TrueRange(high, low, closes)
	want := []float64{1, 2.5, 3.5}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("TrueRange()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
