package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, []string{}},
		{"only blanks", []string{"", "  "}, []string{}},
		{"trims", []string{" kafka-1:9092", "kafka-2:9092 "}, []string{"kafka-1:9092", "kafka-2:9092"}},
		{"first occurrence wins", []string{"b:9092", "a:9092", " b:9092"}, []string{"b:9092", "a:9092"}},
		{"case sensitive", []string{"Alice.near", "alice.near"}, []string{"Alice.near", "alice.near"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
