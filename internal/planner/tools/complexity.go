package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"planner-server/internal/models"
	"planner-server/internal/planner"
)

type complexityInput struct {
	UserInput string `json:"userInput"`
	Strategy  string `json:"strategy"`
}

type travelRequirement struct {
	Origin           string `json:"origin"`
	Destination      string `json:"destination"`
	Mode             string `json:"mode"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	ReturnTrip       bool   `json:"returnTrip"`
}

type complexityOutput struct {
	Tier               string              `json:"tier"`
	Strategy           string              `json:"strategy"`
	SegmentCount       int                 `json:"segmentCount"`
	TravelRequirements []travelRequirement `json:"travelRequirements"`
	CoordinationNeeds  []string            `json:"coordinationNeeds"`
	Considerations     []string            `json:"considerations"`
	Confidence         float64             `json:"confidence"`
}

// newComplexityAnalysisTool дает совещательную оценку сложности запроса:
// сколько координации потребуется и какие поездки вытекают из текста.
// Вывод только информирует бэкенд, ничего не записывает.
func (r *Registry) newComplexityAnalysisTool() Tool {
	return Tool{
		Name:        "analyze_complexity",
		Description: "Assess how complex the request is to schedule: travel requirements, coordination needs between events, and locale-specific scheduling considerations.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"userInput": {
					Type:        jsonschema.String,
					Description: "The raw natural language request",
				},
				"strategy": {
					Type:        jsonschema.String,
					Description: "Planning strategy from analyze_intent, if already known",
					Enum:        []string{StrategySimple, StrategyTravelRequired, StrategyMultiEvent},
				},
			},
			Required: []string{"userInput"},
		},
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			var in complexityInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.UserInput) == "" {
				return nil, models.ErrEmptyUserInput
			}

			intent := analyzeIntent(r.uc, in.UserInput)
			strategy := in.Strategy
			if strategy == "" {
				strategy = intent.Strategy
			}

			out := complexityOutput{
				Strategy:     strategy,
				SegmentCount: len(intent.Segments),
				Confidence:   0.8,
			}

			switch {
			case strategy == StrategyMultiEvent:
				out.Tier = "complex"
			case strategy == StrategyTravelRequired || len(intent.Segments) > 1:
				out.Tier = "moderate"
			default:
				out.Tier = "simple"
			}

			transport := r.uc.PreferredTransportation()
			for _, seg := range intent.Segments {
				if !seg.RequiresTravel {
					continue
				}
				dest := seg.Location
				if dest == "" && len(intent.Locations) > 0 {
					dest = intent.Locations[0]
				}
				out.TravelRequirements = append(out.TravelRequirements, travelRequirement{
					Origin:           r.uc.HomeLocation,
					Destination:      dest,
					Mode:             transport.Mode,
					EstimatedMinutes: planner.EstimateTravelTime(r.uc.HomeLocation, dest, transport),
					ReturnTrip:       true,
				})
			}

			if len(out.TravelRequirements) > 0 {
				out.CoordinationNeeds = append(out.CoordinationNeeds,
					"sequence travel legs around the main event",
					fmt.Sprintf("keep a %d minute buffer between travel and the event", r.uc.BufferMinutes))
			}
			if len(intent.Segments) > 1 {
				out.CoordinationNeeds = append(out.CoordinationNeeds,
					"order activities chronologically without overlaps")
			}

			if r.uc.Locale == "tn" {
				out.Considerations = append(out.Considerations,
					"Friday midday prayer may affect scheduling",
					"prefer mornings or evenings for outdoor activities in summer heat")
			}

			return out, nil
		},
	}
}
