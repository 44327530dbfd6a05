package stratum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testClock() *MockClock {
	return NewMockClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
}

func TestMemoryStore_Add(t *testing.T) {
	type input struct {
		layer      Layer
		content    string
		importance float64
	}

	type expected struct {
		err        error
		importance float64
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "valid layer",
			input: input{
				layer:      LayerContext,
				content:    "repo uses a monorepo layout",
				importance: 0.4,
			},
			expected: expected{importance: 0.4},
		},
		{
			name: "importance clamped to upper bound",
			input: input{
				layer:      LayerTask,
				content:    "fix the login bug",
				importance: 3.5,
			},
			expected: expected{importance: 1.0},
		},
		{
			name: "importance clamped to lower bound",
			input: input{
				layer:      LayerContext,
				content:    "minor note",
				importance: -1,
			},
			expected: expected{importance: 0.0},
		},
		{
			name: "unknown layer rejected",
			input: input{
				layer:   Layer("scratch"),
				content: "anything",
			},
			expected: expected{err: ErrInvalidLayer},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore(testClock())

			id, err := store.Add(tc.input.layer, tc.input.content, tc.input.importance)
			if tc.expected.err != nil {
				assert.ErrorIs(t, err, tc.expected.err)
				assert.Empty(t, id)
				assert.Equal(t, 0, store.Len())
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, id)

			entry, err := store.Get(id)
			assert.NoError(t, err)
			assert.Equal(t, tc.input.layer, entry.Layer)
			assert.Equal(t, tc.input.content, entry.Content)
			assert.Equal(t, tc.expected.importance, entry.Importance)
			assert.False(t, entry.Resolved)
		})
	}
}

func TestMemoryStore_IDsAreUniqueAndMonotonic(t *testing.T) {
	store := NewMemoryStore(testClock())

	var ids []string
	for i := 0; i < 50; i++ {
		id, err := store.Add(LayerContext, "entry", 0.5)
		assert.NoError(t, err)
		ids = append(ids, id)
	}

	seen := make(map[string]bool)
	for i, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		if i > 0 {
			assert.Greater(t, id, ids[i-1], "ids must be monotonically increasing")
		}
	}
}

func TestMemoryStore_GetLayer(t *testing.T) {
	store := NewMemoryStore(testClock())

	id1, _ := store.Add(LayerContext, "first", 0.5)
	_, _ = store.Add(LayerTask, "a task", 0.9)
	id2, _ := store.Add(LayerContext, "second", 0.5)

	entries := store.GetLayer(LayerContext)
	assert.Len(t, entries, 2)
	assert.Equal(t, id1, entries[0].ID)
	assert.Equal(t, id2, entries[1].ID)

	// Returned entries are copies: mutating them does not affect the
	// store.
	entries[0].Content = "mutated"
	got, _ := store.Get(id1)
	assert.Equal(t, "first", got.Content)
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	store := NewMemoryStore(testClock())

	_, err := store.Get("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ResolveTask(t *testing.T) {
	type setup struct {
		layer Layer
	}

	type expected struct {
		err      error
		resolved bool
	}

	tests := []struct {
		name     string
		setup    setup
		missing  bool
		expected expected
	}{
		{
			name:     "resolves task entry",
			setup:    setup{layer: LayerTask},
			expected: expected{resolved: true},
		},
		{
			name:     "rejects non-task entry",
			setup:    setup{layer: LayerContext},
			expected: expected{err: ErrNotFound},
		},
		{
			name:     "rejects unknown id",
			missing:  true,
			expected: expected{err: ErrNotFound},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore(testClock())

			id := "nonexistent"
			if !tc.missing {
				id, _ = store.Add(tc.setup.layer, "content", 0.5)
			}

			err := store.ResolveTask(id)
			if tc.expected.err != nil {
				assert.ErrorIs(t, err, tc.expected.err)
				return
			}

			assert.NoError(t, err)
			entry, _ := store.Get(id)
			assert.Equal(t, tc.expected.resolved, entry.Resolved)
		})
	}
}

func TestMemoryStore_All_InsertionOrder(t *testing.T) {
	store := NewMemoryStore(testClock())

	id1, _ := store.Add(LayerIdentity, "role", 1.0)
	id2, _ := store.Add(LayerContext, "finding", 0.3)
	id3, _ := store.Add(LayerWorkspace, "branch main", 0.5)

	all := store.All()
	assert.Len(t, all, 3)
	assert.Equal(t, []string{id1, id2, id3}, []string{all[0].ID, all[1].ID, all[2].ID})
}
