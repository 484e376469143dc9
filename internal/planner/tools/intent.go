package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"planner-server/internal/models"
	"planner-server/internal/planner"
)

type intentInput struct {
	UserInput       string `json:"userInput"`
	CurrentDateTime string `json:"currentDateTime"`
}

// intentSegment — одна распознанная активность внутри запроса.
type intentSegment struct {
	Text           string `json:"text"`
	Type           string `json:"type"`
	RequiresTravel bool   `json:"requiresTravel"`
	Location       string `json:"location,omitempty"`
	TimeClue       string `json:"timeClue,omitempty"`
}

type intentOutput struct {
	TemporalMarkers     temporalMarkers `json:"temporalMarkers"`
	Categories          []string        `json:"categories"`
	Locations           []string        `json:"locations"`
	Segments            []intentSegment `json:"segments"`
	Strategy            string          `json:"strategy"`
	EstimatedEventCount int             `json:"estimatedEventCount"`
	Confidence          float64         `json:"confidence"`
}

// Стратегии планирования, которые оркестратор передает дальше по пайплайну.
const (
	StrategySimple         = "simple"
	StrategyTravelRequired = "travel_required"
	StrategyMultiEvent     = "multi_event_complex"
)

// analyzeIntent — общий детерминированный разбор запроса. Используется
// инструментами intent/complexity/structure, чтобы их выводы не расходились.
func analyzeIntent(uc planner.UserContext, input string) intentOutput {
	markers := extractTemporalMarkers(input)
	places := extractPlaces(input)
	rawSegments := splitSegments(input)

	catSeen := make(map[string]bool)
	var categories []string
	segments := make([]intentSegment, 0, len(rawSegments))
	estimated := 0

	for _, text := range rawSegments {
		seg := intentSegment{
			Text:           text,
			Type:           classifySegment(text),
			RequiresTravel: planner.RequiresTravel(text, uc.HomeLocation),
		}
		if segPlaces := extractPlaces(text); len(segPlaces) > 0 {
			seg.Location = segPlaces[0]
		}
		if m := explicitTimePattern.FindString(text); m != "" {
			seg.TimeClue = m
		} else if strings.Contains(strings.ToLower(text), "tomorrow") {
			seg.TimeClue = "tomorrow"
		}

		if !catSeen[seg.Type] {
			catSeen[seg.Type] = true
			categories = append(categories, seg.Type)
		}
		if seg.RequiresTravel {
			estimated += 3
		} else {
			estimated++
		}
		segments = append(segments, seg)
	}

	// Уникальные не-домашние места определяют сложность запроса
	homeNorm := strings.ToLower(strings.TrimSpace(uc.HomeLocation))
	distinct := 0
	for _, p := range places {
		if strings.ToLower(p) != homeNorm {
			distinct++
		}
	}

	strategy := StrategySimple
	switch {
	case len(segments) > 2 || distinct > 1:
		strategy = StrategyMultiEvent
	default:
		for _, seg := range segments {
			if seg.RequiresTravel {
				strategy = StrategyTravelRequired
				break
			}
		}
	}

	confidence := 0.6
	if len(categories) > 0 && categories[0] != "personal" || len(places) > 0 {
		confidence = 0.85
	}

	return intentOutput{
		TemporalMarkers:     markers,
		Categories:          categories,
		Locations:           places,
		Segments:            segments,
		Strategy:            strategy,
		EstimatedEventCount: estimated,
		Confidence:          confidence,
	}
}

// newIntentAnalysisTool разбирает запрос на активности, временные метки
// и места, и выбирает стратегию планирования.
func (r *Registry) newIntentAnalysisTool() Tool {
	return Tool{
		Name:        "analyze_intent",
		Description: "Analyze the user's request: temporal markers, activity categories, locations, individual activity segments and the overall planning strategy (simple, travel_required or multi_event_complex).",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"userInput": {
					Type:        jsonschema.String,
					Description: "The raw natural language request",
				},
				"currentDateTime": {
					Type:        jsonschema.String,
					Description: "Current time in ISO format, from get_time_context",
				},
			},
			Required: []string{"userInput"},
		},
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			var in intentInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.UserInput) == "" {
				return nil, models.ErrEmptyUserInput
			}
			return analyzeIntent(r.uc, in.UserInput), nil
		},
	}
}
