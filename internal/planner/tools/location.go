package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"planner-server/internal/models"
	"planner-server/internal/planner"
)

type locationInput struct {
	UserInput      string   `json:"userInput"`
	ExistingEvents []string `json:"existingEvents"`
}

type travelPair struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type locationOutput struct {
	Locations     []string     `json:"locations"`
	TravelPairs   []travelPair `json:"travelPairs"`
	ImpliesTravel bool         `json:"impliesTravel"`
	HomeLocation  string       `json:"homeLocation"`
	Confidence    float64      `json:"confidence"`
}

// newLocationExtractionTool извлекает топонимы и пары поездок из запроса.
// Если текст подразумевает перемещение, но явной пары нет, происхождение
// синтезируется из домашней базы пользователя.
func (r *Registry) newLocationExtractionTool() Tool {
	return Tool{
		Name:        "extract_locations",
		Description: "Extract place names and origin/destination travel pairs from the request. Synthesizes the user's home location as origin when travel is implied but no origin is stated.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"userInput": {
					Type:        jsonschema.String,
					Description: "The raw natural language request",
				},
				"existingEvents": {
					Type:        jsonschema.Array,
					Description: "Titles of events already planned in this session, for context",
					Items:       &jsonschema.Definition{Type: jsonschema.String},
				},
			},
			Required: []string{"userInput"},
		},
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			var in locationInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.UserInput) == "" {
				return nil, models.ErrEmptyUserInput
			}

			places := extractPlaces(in.UserInput)
			out := locationOutput{
				Locations:    places,
				HomeLocation: r.uc.HomeLocation,
				Confidence:   0.4,
			}
			if len(places) > 0 {
				out.Confidence = 0.8
			}

			for _, p := range extractTravelPairs(in.UserInput) {
				out.TravelPairs = append(out.TravelPairs, travelPair{Origin: p[0], Destination: p[1]})
			}
			out.ImpliesTravel = len(out.TravelPairs) > 0 || planner.RequiresTravel(in.UserInput, r.uc.HomeLocation)

			// Нет явной пары, но перемещение подразумевается: дом -> первое место
			if len(out.TravelPairs) == 0 && out.ImpliesTravel {
				homeNorm := strings.ToLower(strings.TrimSpace(r.uc.HomeLocation))
				for _, p := range places {
					if strings.ToLower(p) != homeNorm {
						out.TravelPairs = append(out.TravelPairs, travelPair{
							Origin:      r.uc.HomeLocation,
							Destination: p,
						})
						break
					}
				}
			}

			return out, nil
		},
	}
}
