package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlan_PlainJSON(t *testing.T) {
	raw := `{"events":[{"title":"Coffee","startTime":"2026-01-15T15:00:00Z","timezone":"UTC"}],"confidence":0.85}`

	plan := extractPlan(raw)
	require.Len(t, plan.Events, 1)
	assert.Equal(t, "Coffee", plan.Events[0].Title)
	assert.InDelta(t, 0.85, plan.Confidence, 0.001)
}

func TestExtractPlan_ProseWrappedJSON(t *testing.T) {
	raw := "Here is the plan you asked for:\n" +
		`{"events":[{"title":"Coffee","startTime":"2026-01-15T15:00:00Z"}],"confidence":0.8}` +
		"\nLet me know if you need changes."

	plan := extractPlan(raw)
	require.Len(t, plan.Events, 1)
	assert.Equal(t, "Coffee", plan.Events[0].Title)
}

func TestExtractPlan_CodeFences(t *testing.T) {
	raw := "```json\n" +
		`{"events":[{"title":"Gym","startTime":"2026-01-15T06:00:00Z"}],"confidence":0.9}` +
		"\n```"

	plan := extractPlan(raw)
	require.Len(t, plan.Events, 1)
	assert.Equal(t, "Gym", plan.Events[0].Title)
}

func TestExtractPlan_GarbageDegradesToEmptyPlan(t *testing.T) {
	for _, raw := range []string{
		"",
		"sorry, I could not plan anything",
		"{broken json",
		"}{",
		"{\"events\": [unterminated",
	} {
		plan := extractPlan(raw)
		assert.Empty(t, plan.Events, "input: %q", raw)
	}
}

func TestParseEventTime_Layouts(t *testing.T) {
	for _, s := range []string{
		"2026-01-15T15:00:00Z",
		"2026-01-15T15:00:00+01:00",
		"2026-01-15T15:00:00",
		"2026-01-15T15:00",
		"2026-01-15",
	} {
		_, err := parseEventTime(s)
		assert.NoError(t, err, "input: %q", s)
	}

	_, err := parseEventTime("tomorrow at 3pm")
	assert.Error(t, err)
}
