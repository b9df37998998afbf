package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		want  string
	}{
		{"2024-01-15", true, "2024-01-15"},
		{"15/01/2024", true, "2024-01-15"},
		{"15-01-2024", true, "2024-01-15"},
		{"15 Jan 2024", true, "2024-01-15"},
		{"2 Jan 2024", true, "2024-01-02"},
		{"Jan 15, 2024", true, "2024-01-15"},
		{"", false, ""},
		{"not a date", false, ""},
		{"15.01.2024", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseDate(tt.in)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, got.Date.String())
			}
		})
	}
}
