package stratum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateSize(t *testing.T) {
	type input struct {
		text string
	}

	type expected struct {
		size int
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "empty text",
			input:    input{text: ""},
			expected: expected{size: 0},
		},
		{
			name:     "below one token",
			input:    input{text: "abc"},
			expected: expected{size: 0},
		},
		{
			name:     "four chars per token",
			input:    input{text: strings.Repeat("x", 400)},
			expected: expected{size: 100},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected.size, EstimateSize(tc.input.text))
		})
	}
}

func TestNewTurn(t *testing.T) {
	turn := NewTurn(7, "assistant", strings.Repeat("a", 40))

	assert.Equal(t, 7, turn.Index)
	assert.Equal(t, "assistant", turn.Role)
	assert.Equal(t, 10, turn.SizeEstimate)
}

func TestWindow_TotalSize(t *testing.T) {
	window := Window{
		NewTurn(0, "user", strings.Repeat("a", 40)),
		NewTurn(1, "assistant", strings.Repeat("b", 80)),
	}

	assert.Equal(t, 30, window.TotalSize())
}

func TestWindow_Empty(t *testing.T) {
	assert.True(t, Window{}.Empty())
	assert.True(t, Window(nil).Empty())
	assert.False(t, Window{NewTurn(0, "user", "hi")}.Empty())
}

func TestShouldCompact(t *testing.T) {
	type input struct {
		windowSize int // chars per single turn
		maxSize    int
		threshold  float64
		emptyWin   bool
	}

	type expected struct {
		compact bool
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "at 50 percent does not fire",
			input: input{
				windowSize: 50 * 4,
				maxSize:    100,
				threshold:  0.70,
			},
			expected: expected{compact: false},
		},
		{
			name: "at 75 percent fires",
			input: input{
				windowSize: 75 * 4,
				maxSize:    100,
				threshold:  0.70,
			},
			expected: expected{compact: true},
		},
		{
			name: "exactly at threshold fires",
			input: input{
				windowSize: 70 * 4,
				maxSize:    100,
				threshold:  0.70,
			},
			expected: expected{compact: true},
		},
		{
			name: "empty window never fires",
			input: input{
				emptyWin:  true,
				maxSize:   100,
				threshold: 0.70,
			},
			expected: expected{compact: false},
		},
		{
			name: "zero budget never fires",
			input: input{
				windowSize: 1000,
				maxSize:    0,
				threshold:  0.70,
			},
			expected: expected{compact: false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var window Window
			if !tc.input.emptyWin {
				window = Window{NewTurn(0, "user", strings.Repeat("x", tc.input.windowSize))}
			}

			got := ShouldCompact(window, tc.input.maxSize, tc.input.threshold)
			assert.Equal(t, tc.expected.compact, got)
		})
	}
}
