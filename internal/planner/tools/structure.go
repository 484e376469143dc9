package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"planner-server/internal/models"
)

type structureInput struct {
	UserInput string `json:"userInput"`
	Strategy  string `json:"strategy"`
}

type structureItem struct {
	Order   int    `json:"order"`
	Type    string `json:"type"`
	Purpose string `json:"purpose"`
}

type structureOutput struct {
	Strategy            string          `json:"strategy"`
	EstimatedEventCount int             `json:"estimatedEventCount"`
	Breakdown           []structureItem `json:"breakdown"`
	CoordinationNotes   []string        `json:"coordinationNotes"`
	Confidence          float64         `json:"confidence"`
}

// newStructurePlanTool размечает каркас будущего плана: какие события
// и в каком порядке понадобятся, до вычисления конкретного времени.
func (r *Registry) newStructurePlanTool() Tool {
	return Tool{
		Name:        "plan_event_structure",
		Description: "Outline the event structure for the request before computing exact times: which events are needed, in what order, and what each is for.",
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
			var in structureInput
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

			out := structureOutput{
				Strategy:   strategy,
				Confidence: 0.8,
			}

			order := 1
			addItem := func(itemType, purpose string) {
				out.Breakdown = append(out.Breakdown, structureItem{Order: order, Type: itemType, Purpose: purpose})
				order++
			}

			for _, seg := range intent.Segments {
				dest := seg.Location
				if dest == "" {
					dest = "the destination"
				}
				if seg.RequiresTravel {
					addItem(string(CandidateTravelTo), fmt.Sprintf("get to %s before the activity", dest))
				}
				addItem(string(CandidateMain), seg.Text)
				if seg.RequiresTravel {
					addItem(string(CandidateTravelFrom), fmt.Sprintf("return home from %s", dest))
				}
			}
			out.EstimatedEventCount = len(out.Breakdown)

			if strategy != StrategySimple {
				out.CoordinationNotes = append(out.CoordinationNotes,
					"travel legs must not overlap the main event",
					fmt.Sprintf("keep %d minute buffers around travel", r.uc.BufferMinutes))
			}
			if len(intent.Segments) > 1 {
				out.CoordinationNotes = append(out.CoordinationNotes,
					"schedule activities in the order they were mentioned")
			}

			return out, nil
		},
	}
}
