package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{"zero value", 0, "0.00"},
		{"integer", 80, "80.00"},
		{"one decimal", 13.4, "13.40"},
		{"rounds half away", 66.666, "66.67"},
		{"negative", -0.5, "-0.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFloat(tt.input))
		})
	}
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "0.1235", formatScore(0.123456))
	assert.Equal(t, "-1.2000", formatScore(-1.2))
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "0", formatInt(0))
	assert.Equal(t, "5", formatInt(5))
}
