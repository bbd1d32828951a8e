package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "only separators", input: " , ,", expected: nil},
		{name: "trims entries", input: " kafka-1:9092 , kafka-2:9092", expected: []string{"kafka-1:9092", "kafka-2:9092"}},
		{name: "keeps first duplicate", input: "a,b,a", expected: []string{"a", "b"}},
		{name: "preserves case", input: "Active,active", expected: []string{"Active", "active"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}

func TestSplitListLower(t *testing.T) {
	assert.Equal(t, []string{"active", "claimed"}, SplitListLower("ACTIVE, claimed ,Active"))
}
