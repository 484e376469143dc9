package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner-server/internal/planner"
)

func testUserContext() planner.UserContext {
	return planner.UserContext{
		HomeLocation:  "Ksar Hellal",
		Transport:     planner.Transportation{Mode: "car", Emoji: "🚗"},
		Timezone:      "Africa/Tunis",
		BufferMinutes: 15,
		Locale:        "tn",
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	fixedNow := time.Date(2026, 1, 14, 8, 30, 0, 0, time.UTC)
	return NewRegistry(testUserContext(), WithClock(func() time.Time { return fixedNow }))
}

func execute(t *testing.T, r *Registry, name string, args string) any {
	t.Helper()
	out, err := r.Execute(context.Background(), name, json.RawMessage(args))
	require.NoError(t, err)
	return out
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := testRegistry(t)
	_, err := r.Execute(context.Background(), "no_such_tool", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestRegistry_MalformedArguments(t *testing.T) {
	r := testRegistry(t)
	_, err := r.Execute(context.Background(), "calculate_event_timing", json.RawMessage(`{"eventType": 5}`))
	assert.Error(t, err)
}

func TestRegistry_ListsAllTools(t *testing.T) {
	r := testRegistry(t)
	names := make(map[string]bool)
	for _, tool := range r.List() {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"get_time_context", "analyze_intent", "analyze_complexity",
		"extract_locations", "calculate_event_timing", "select_emoji",
		"generate_description", "format_travel_event", "plan_travel_events",
		"generate_event_sequence", "plan_event_structure",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

// --- calculate_event_timing ---

func TestTiming_TomorrowAtExplicitTime(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "calculate_event_timing",
		`{"eventType":"coffee","userTimePreference":"tomorrow at 3pm","baseDatetime":"2026-01-14T08:30:00Z"}`).(timingOutput)

	assert.Equal(t, "2026-01-15T15:00:00Z", out.StartTime)
	assert.Equal(t, "2026-01-15T16:00:00Z", out.EndTime)
	assert.Equal(t, 60, out.DurationMinutes)
	assert.InDelta(t, 0.8, out.Confidence, 0.001)
}

func TestTiming_TomorrowWithoutTimeDefaultsToTen(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "calculate_event_timing",
		`{"eventType":"meeting","userTimePreference":"tomorrow","baseDatetime":"2026-01-14T08:30:00Z"}`).(timingOutput)

	assert.Equal(t, "2026-01-15T10:00:00Z", out.StartTime)
}

func TestTiming_DayPartEvening(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "calculate_event_timing",
		`{"eventType":"dinner","userTimePreference":"evening","baseDatetime":"2026-01-14T08:30:00Z"}`).(timingOutput)

	assert.Equal(t, "2026-01-14T18:00:00Z", out.StartTime)
	assert.Equal(t, 90, out.DurationMinutes)
}

func TestTiming_TwelveHourEdgeCases(t *testing.T) {
	base := time.Date(2026, 1, 14, 8, 0, 0, 0, time.UTC)

	noon := resolveStartTime(base, "at 12pm")
	assert.Equal(t, 12, noon.Hour())

	midnight := resolveStartTime(base, "at 12am")
	assert.Equal(t, 0, midnight.Hour())

	halfPast := resolveStartTime(base, "at 6:30 pm")
	assert.Equal(t, 18, halfPast.Hour())
	assert.Equal(t, 30, halfPast.Minute())
}

func TestTiming_NoPreferenceLowerConfidence(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "calculate_event_timing",
		`{"eventType":"something unheard of","baseDatetime":"2026-01-14T08:30:00Z"}`).(timingOutput)

	assert.Equal(t, 60, out.DurationMinutes)
	assert.InDelta(t, 0.6, out.Confidence, 0.001)
}

func TestTiming_BrokenBaseFallsBackToClock(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "calculate_event_timing",
		`{"eventType":"coffee","userTimePreference":"morning","baseDatetime":"not-a-date"}`).(timingOutput)

	// Часы реестра зафиксированы на 2026-01-14
	assert.Contains(t, out.StartTime, "2026-01-14T09:00:00")
}

// --- select_emoji ---

func TestEmoji_Deterministic(t *testing.T) {
	r := testRegistry(t)
	first := execute(t, r, "select_emoji", `{"eventType":"coffee"}`).(emojiOutput)
	second := execute(t, r, "select_emoji", `{"eventType":"coffee"}`).(emojiOutput)

	assert.Equal(t, "☕", first.Emoji)
	assert.Equal(t, first, second)
}

func TestEmoji_ContextBeatsEventType(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "select_emoji",
		`{"eventType":"meeting","specificContext":"birthday celebration"}`).(emojiOutput)

	assert.Equal(t, "🎂", out.Emoji)
	assert.InDelta(t, 0.9, out.Confidence, 0.001)
}

func TestEmoji_TimeOfDayFallback(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "select_emoji",
		`{"eventType":"mystery thing","timeOfDay":"evening"}`).(emojiOutput)

	assert.Equal(t, "🌆", out.Emoji)
	assert.InDelta(t, 0.5, out.Confidence, 0.001)
}

func TestEmoji_DefaultNeverFails(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "select_emoji", `{"eventType":"zzzzz"}`).(emojiOutput)

	assert.Equal(t, "📅", out.Emoji)
	assert.InDelta(t, 0.3, out.Confidence, 0.001)
}

// --- analyze_intent ---

func TestIntent_SimpleActivityWithTimeIsNotTravel(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "analyze_intent", `{"userInput":"gym at 6am"}`).(intentOutput)

	assert.Equal(t, StrategySimple, out.Strategy)
	assert.Equal(t, 1, out.EstimatedEventCount)
	require.Len(t, out.Segments, 1)
	assert.False(t, out.Segments[0].RequiresTravel)
	assert.Empty(t, out.Locations)
}

func TestIntent_KnownPlaceTriggersTravel(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "analyze_intent",
		`{"userInput":"coffee with Iheb tomorrow at 3pm in Sayeda"}`).(intentOutput)

	assert.Equal(t, StrategyTravelRequired, out.Strategy)
	assert.Equal(t, 3, out.EstimatedEventCount)
	assert.Contains(t, out.Locations, "Sayeda")
	assert.True(t, out.TemporalMarkers.Tomorrow)
	require.NotEmpty(t, out.TemporalMarkers.ExplicitTimes)
	assert.Equal(t, "3pm", out.TemporalMarkers.ExplicitTimes[0])
}

func TestIntent_MultipleSegments(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "analyze_intent",
		`{"userInput":"dentist appointment in the morning, lunch with Ahmed, then gym in the evening"}`).(intentOutput)

	assert.Equal(t, StrategyMultiEvent, out.Strategy)
	assert.GreaterOrEqual(t, len(out.Segments), 3)
}

func TestIntent_EmptyInputRejected(t *testing.T) {
	r := testRegistry(t)
	_, err := r.Execute(context.Background(), "analyze_intent", json.RawMessage(`{"userInput":"  "}`))
	assert.Error(t, err)
}

// --- extract_locations ---

func TestLocations_FromToPair(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "extract_locations",
		`{"userInput":"drive from Sousse to Tunis on Friday"}`).(locationOutput)

	require.Len(t, out.TravelPairs, 1)
	assert.Equal(t, "Sousse", out.TravelPairs[0].Origin)
	assert.Equal(t, "Tunis", out.TravelPairs[0].Destination)
	assert.True(t, out.ImpliesTravel)
	assert.InDelta(t, 0.8, out.Confidence, 0.001)
}

func TestLocations_HomeOriginSynthesized(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "extract_locations",
		`{"userInput":"coffee in Sayeda tomorrow"}`).(locationOutput)

	require.Len(t, out.TravelPairs, 1)
	assert.Equal(t, "Ksar Hellal", out.TravelPairs[0].Origin)
	assert.Equal(t, "Sayeda", out.TravelPairs[0].Destination)
	assert.True(t, out.ImpliesTravel)
}

func TestLocations_TimeTokensAreNotPlaces(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "extract_locations", `{"userInput":"gym at 6am"}`).(locationOutput)

	assert.Empty(t, out.Locations)
	assert.Empty(t, out.TravelPairs)
	assert.False(t, out.ImpliesTravel)
	assert.InDelta(t, 0.4, out.Confidence, 0.001)
}

// --- format_travel_event ---

func TestTravelFormat_CanonicalTitle(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "format_travel_event",
		`{"origin":"Ksar Hellal","destination":"Sayeda","transportMode":"car"}`).(travelFormatOutput)

	assert.Equal(t, "🚗 Car (Ksar Hellal -> Sayeda)", out.Title)
	assert.InDelta(t, 0.9, out.Confidence, 0.001)
}

func TestTravelFormat_ModeInferredFromContext(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "format_travel_event",
		`{"origin":"Sousse","destination":"Tunis","context":"take the train up north"}`).(travelFormatOutput)

	assert.Equal(t, "train", out.Mode)
	assert.Equal(t, "🚆 Train (Sousse -> Tunis)", out.Title)
	assert.InDelta(t, 0.7, out.Confidence, 0.001)
}

func TestTravelFormat_MissingEndpointsRejected(t *testing.T) {
	r := testRegistry(t)
	_, err := r.Execute(context.Background(), "format_travel_event", json.RawMessage(`{"origin":"Sousse"}`))
	assert.Error(t, err)
}

// --- generate_description ---

func TestDescription_TemplateFallbackWithoutRichGen(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "generate_description",
		`{"eventType":"meeting","eventTitle":"Standup","includeTaskList":true}`).(descriptionOutput)

	assert.Equal(t, "template", out.Source)
	assert.Contains(t, out.Description, "<strong>Standup</strong>")
	assert.Contains(t, out.Description, "<ul>")
}

func TestDescription_RichGenPreferred(t *testing.T) {
	r := NewRegistry(testUserContext(),
		WithRichDescriptions(func(_ context.Context, _ string) (string, error) {
			return "<p>AI text</p>", nil
		}))
	out := execute(t, r, "generate_description",
		`{"eventType":"meeting","eventTitle":"Standup","context":"weekly sync"}`).(descriptionOutput)

	assert.Equal(t, "ai_generated", out.Source)
	assert.Equal(t, "<p>AI text</p>", out.Description)
}

func TestDescription_RichGenErrorFallsBackSilently(t *testing.T) {
	r := NewRegistry(testUserContext(),
		WithRichDescriptions(func(_ context.Context, _ string) (string, error) {
			return "", context.DeadlineExceeded
		}))
	out := execute(t, r, "generate_description",
		`{"eventType":"meeting","eventTitle":"Standup","context":"weekly sync"}`).(descriptionOutput)

	assert.Equal(t, "template", out.Source)
}

func TestDescription_TravelNeverUsesRichGen(t *testing.T) {
	called := false
	r := NewRegistry(testUserContext(),
		WithRichDescriptions(func(_ context.Context, _ string) (string, error) {
			called = true
			return "<p>AI text</p>", nil
		}))
	out := execute(t, r, "generate_description",
		`{"eventType":"travel","eventTitle":"Car to Sayeda","context":"trip"}`).(descriptionOutput)

	assert.False(t, called)
	assert.Equal(t, "template", out.Source)
}

// --- plan_travel_events / generate_event_sequence ---

func TestTravelPlan_LegArithmetic(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "plan_travel_events",
		`{"title":"Coffee","startTime":"2026-01-15T15:00:00Z","endTime":"2026-01-15T16:00:00Z","location":"Sayeda"}`).(travelPlanOutput)

	// Ksar Hellal -> Sayeda на машине: 25 минут, буфер 15
	assert.Equal(t, 25, out.TravelMinutes)
	assert.Equal(t, 15, out.BufferMinutes)

	mainStart := time.Date(2026, 1, 15, 15, 0, 0, 0, time.UTC)
	mainEnd := time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC)

	assert.Equal(t, mainStart.Add(-40*time.Minute), out.Outbound.StartTime)
	assert.Equal(t, mainStart.Add(-15*time.Minute), out.Outbound.EndTime)
	assert.Equal(t, mainEnd.Add(15*time.Minute), out.Return.StartTime)
	assert.Equal(t, mainEnd.Add(40*time.Minute), out.Return.EndTime)
	assert.Equal(t, CandidateTravelTo, out.Outbound.Type)
	assert.Equal(t, CandidateTravelFrom, out.Return.Type)
}

func TestSequence_TravelStrategyProducesThreeEvents(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "generate_event_sequence",
		`{"title":"☕ Coffee with Iheb","startTime":"2026-01-15T15:00:00Z","endTime":"2026-01-15T16:00:00Z","location":"Sayeda","strategy":"travel_required"}`).(sequenceOutput)

	require.Len(t, out.Events, 3)
	assert.Equal(t, CandidateTravelTo, out.Events[0].Type)
	assert.Equal(t, CandidateMain, out.Events[1].Type)
	assert.Equal(t, CandidateTravelFrom, out.Events[2].Type)

	// Поездка туда кончается не позже старта, обратная начинается не раньше конца
	assert.True(t, !out.Events[0].EndTime.After(out.Events[1].StartTime))
	assert.True(t, !out.Events[2].StartTime.Before(out.Events[1].EndTime))

	// Хронологический порядок внутри батча
	assert.True(t, out.Events[0].StartTime.Before(out.Events[1].StartTime))
	assert.True(t, out.Events[1].StartTime.Before(out.Events[2].StartTime))

	for _, ev := range []EventCandidate{out.Events[0], out.Events[2]} {
		assert.Equal(t, []string{"main"}, ev.Dependencies)
	}
}

func TestSequence_SimpleStrategySingleEvent(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "generate_event_sequence",
		`{"title":"💪 Gym","startTime":"2026-01-15T06:00:00Z","strategy":"simple"}`).(sequenceOutput)

	require.Len(t, out.Events, 1)
	assert.Equal(t, CandidateMain, out.Events[0].Type)
	// Конец по умолчанию: час после старта
	assert.Equal(t, out.Events[0].StartTime.Add(time.Hour), out.Events[0].EndTime)
}

// --- plan_event_structure / analyze_complexity ---

func TestStructure_TravelBreakdown(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "plan_event_structure",
		`{"userInput":"coffee in Sayeda tomorrow at 3pm"}`).(structureOutput)

	assert.Equal(t, StrategyTravelRequired, out.Strategy)
	require.Len(t, out.Breakdown, 3)
	assert.Equal(t, "travel_to", out.Breakdown[0].Type)
	assert.Equal(t, "main", out.Breakdown[1].Type)
	assert.Equal(t, "travel_from", out.Breakdown[2].Type)
}

func TestComplexity_TravelRequirements(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "analyze_complexity",
		`{"userInput":"coffee in Sayeda tomorrow at 3pm"}`).(complexityOutput)

	assert.Equal(t, "moderate", out.Tier)
	require.Len(t, out.TravelRequirements, 1)
	req := out.TravelRequirements[0]
	assert.Equal(t, "Ksar Hellal", req.Origin)
	assert.Equal(t, "Sayeda", req.Destination)
	assert.Equal(t, 25, req.EstimatedMinutes)
	assert.True(t, req.ReturnTrip)
}

// --- get_time_context ---

func TestTimeContext_AnchorsRelativeDates(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "get_time_context",
		`{"timezone":"UTC","includeRelativeDates":true}`).(timeContextOutput)

	assert.Equal(t, "Wednesday", out.DayOfWeek)
	assert.Equal(t, "2026-01-14", out.Today)
	assert.Equal(t, "2026-01-15", out.Tomorrow)
	assert.Equal(t, "2026-01-21", out.NextWeek)
}

func TestTimeContext_BadTimezoneFallsBackToUTC(t *testing.T) {
	r := testRegistry(t)
	out := execute(t, r, "get_time_context", `{"timezone":"Mars/Olympus"}`).(timeContextOutput)

	assert.Equal(t, "UTC", out.Timezone)
}
