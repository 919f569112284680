package grading

import "testing"

func Test_GraphInterval_Calibrated(t *testing.T) {
	tests := []struct {
		name  string
		lower float64
		upper float64
		want  bool
	}{
		{name: "default", lower: -1, upper: -1, want: false},
		{name: "both set", lower: 2, upper: 10, want: true},
		{name: "half set", lower: -1, upper: 5, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gi := GraphInterval{LowerBound: tt.lower, UpperBound: tt.upper}
			if got := gi.Calibrated(); got != tt.want {
				t.Errorf("Calibrated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_GraphInterval_Contains(t *testing.T) {
	gi := GraphInterval{LowerBound: 2, UpperBound: 10}

	tests := []struct {
		name  string
		hours float64
		want  bool
	}{
		{name: "inside", hours: 5, want: true},
		{name: "on lower bound", hours: 2, want: false},
		{name: "on upper bound", hours: 10, want: false},
		{name: "below", hours: 1, want: false},
		{name: "above", hours: 15, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gi.Contains(tt.hours); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.hours, got, tt.want)
			}
		})
	}
}
