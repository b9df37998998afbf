package amount

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"$1,234.50", "1234.50"},
		{"₹ 2,500", "2500"},
		{"€100.00", "100.00"},
		{"£75", "75"},
		{"¥1 000", "1000"},
		{"100.", "100."},
		{"(100.00)", "100.00"},
		{"200.00 Cr", "200.00"},
		{"-50.25", "50.25"},
		{"", ""},
		{"abc", ""},
		{"   ", ""},
		{"N/A", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDetectNegative(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"(100.00)", true},
		{"(100)", true},
		{"-100", true},
		{"100-", true},
		{"100.00 Dr", true},
		{"100.00 dr", true},
		{"DR 100.00", true},
		{"100.00", false},
		{"100.00 Cr", false},
		{"+250", false},
		{"", false},
		// Known false positive inherited from the source system: "dr"
		// matches anywhere in the value.
		{"100.00 Hyderabad", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := DetectNegative(tt.input); got != tt.want {
				t.Errorf("DetectNegative(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
