package stratum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionLog_Append(t *testing.T) {
	type input struct {
		description string
		files       []string
		outcome     Outcome
	}

	type expected struct {
		files []string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "files sorted and deduplicated",
			input: input{
				description: "edited auth handlers",
				files:       []string{"b.go", "a.go", "b.go"},
				outcome:     OutcomeSuccess,
			},
			expected: expected{files: []string{"a.go", "b.go"}},
		},
		{
			name: "no files",
			input: input{
				description: "ran the linter",
				outcome:     OutcomeFailure,
			},
			expected: expected{files: nil},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log := NewActionLog(testClock())

			id := log.Append(tc.input.description, tc.input.files, tc.input.outcome)
			assert.NotEmpty(t, id)
			assert.True(t, log.Has(id))

			records := log.All()
			assert.Len(t, records, 1)
			assert.Equal(t, tc.input.description, records[0].Description)
			assert.Equal(t, tc.expected.files, records[0].Files)
			assert.Equal(t, tc.input.outcome, records[0].Outcome)
		})
	}
}

func TestActionLog_AppendOrderPreserved(t *testing.T) {
	log := NewActionLog(testClock())

	id1 := log.Append("first", nil, OutcomeSuccess)
	id2 := log.Append("second", nil, OutcomePartial)
	id3 := log.Append("third", nil, OutcomeFailure)

	records := log.All()
	assert.Equal(t, []string{id1, id2, id3},
		[]string{records[0].ID, records[1].ID, records[2].ID})
	assert.Equal(t, 3, log.Len())
}

func TestDecisionLog_Append(t *testing.T) {
	type input struct {
		choice    string
		rationale string
		linkReal  int // how many real action ids to link
		linkFake  []string
	}

	type expected struct {
		err error
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "no links",
			input: input{
				choice:    "use sqlite for the journal",
				rationale: "single file, no server",
			},
		},
		{
			name: "valid links",
			input: input{
				choice:    "switch to streaming parser",
				rationale: "memory pressure on large files",
				linkReal:  2,
			},
		},
		{
			name: "unknown link rejected",
			input: input{
				choice:   "anything",
				linkFake: []string{"01ZZZZZZZZZZZZZZZZZZZZZZZZ"},
			},
			expected: expected{err: ErrNotFound},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := testClock()
			actions := NewActionLog(clock)
			log := NewDecisionLog(clock, actions)

			var links []string
			for i := 0; i < tc.input.linkReal; i++ {
				links = append(links, actions.Append("action", nil, OutcomeSuccess))
			}
			links = append(links, tc.input.linkFake...)

			id, err := log.Append(tc.input.choice, tc.input.rationale, links)
			if tc.expected.err != nil {
				assert.ErrorIs(t, err, tc.expected.err)
				assert.Equal(t, 0, log.Len())
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, id)

			records := log.All()
			assert.Len(t, records, 1)
			assert.Equal(t, tc.input.choice, records[0].Choice)
			assert.Equal(t, tc.input.rationale, records[0].Rationale)
			assert.ElementsMatch(t, links, records[0].LinkedActionIDs)
		})
	}
}

func TestErrorLog_Resolve(t *testing.T) {
	log := NewErrorLog(testClock())

	id := log.Append("TypeError: cannot read property 'foo' of undefined")

	records := log.All()
	assert.Len(t, records, 1)
	assert.False(t, records[0].Resolved())
	assert.Len(t, log.Unresolved(), 1)

	err := log.Resolve(id, "added a nil check before the property access")
	assert.NoError(t, err)

	records = log.All()
	assert.True(t, records[0].Resolved())
	assert.Equal(t, "added a nil check before the property access", records[0].FixText)
	assert.Empty(t, log.Unresolved())
}

func TestErrorLog_Resolve_NotFound(t *testing.T) {
	log := NewErrorLog(testClock())

	err := log.Resolve("nonexistent", "a fix")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestErrorLog_Unresolved_PreservesOrder(t *testing.T) {
	log := NewErrorLog(testClock())

	id1 := log.Append("first failure")
	id2 := log.Append("second failure")
	id3 := log.Append("third failure")

	assert.NoError(t, log.Resolve(id2, "fixed"))

	unresolved := log.Unresolved()
	assert.Len(t, unresolved, 2)
	assert.Equal(t, id1, unresolved[0].ID)
	assert.Equal(t, id3, unresolved[1].ID)
}
