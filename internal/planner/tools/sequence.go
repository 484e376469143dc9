package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"planner-server/internal/planner"
)

type sequenceInput struct {
	Title         string `json:"title"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	Location      string `json:"location"`
	Strategy      string `json:"strategy"`
	Emoji         string `json:"emoji"`
	Description   string `json:"description"`
	TransportMode string `json:"transportMode"`
}

type sequenceOutput struct {
	Events     []EventCandidate `json:"events"`
	Strategy   string           `json:"strategy"`
	Confidence float64          `json:"confidence"`
}

// newSequenceTool собирает финальную упорядоченную последовательность событий:
// главное событие, при необходимости обрамленное поездками туда и обратно.
// Результат отсортирован по StartTime: [travel_to?, main, travel_from?].
func (r *Registry) newSequenceTool() Tool {
	return Tool{
		Name:        "generate_event_sequence",
		Description: "Assemble the final ordered event sequence for one activity: the main event, wrapped with outbound and return travel legs when the strategy requires travel.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"title": {
					Type:        jsonschema.String,
					Description: "Main event title",
				},
				"startTime": {
					Type:        jsonschema.String,
					Description: "Main event start, ISO format",
				},
				"endTime": {
					Type:        jsonschema.String,
					Description: "Main event end, ISO format; defaults to start plus one hour",
				},
				"location": {
					Type:        jsonschema.String,
					Description: "Main event location",
				},
				"strategy": {
					Type:        jsonschema.String,
					Description: "Planning strategy from analyze_intent",
					Enum:        []string{StrategySimple, StrategyTravelRequired, StrategyMultiEvent},
				},
				"emoji": {
					Type:        jsonschema.String,
					Description: "Emoji for the main event, from select_emoji",
				},
				"description": {
					Type:        jsonschema.String,
					Description: "HTML description for the main event, from generate_description",
				},
				"transportMode": {
					Type:        jsonschema.String,
					Description: "Transport mode for travel legs",
					Enum:        []string{"car", "walk", "bus", "train", "bike", "taxi", "plane"},
				},
			},
			Required: []string{"title", "startTime"},
		},
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			var in sequenceInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.Title) == "" {
				return nil, fmt.Errorf("title обязателен")
			}

			start, err := parseISOTime(in.StartTime)
			if err != nil {
				return nil, err
			}
			end := start.Add(time.Hour)
			if in.EndTime != "" {
				if parsed, err := parseISOTime(in.EndTime); err == nil && parsed.After(start) {
					end = parsed
				}
			}

			emoji := in.Emoji
			if emoji == "" {
				if matched, _, ok := matchEmoji(in.Title); ok {
					emoji = matched
				} else {
					emoji = defaultEmoji
				}
			}
			description := in.Description
			if description == "" {
				description = renderTemplate(templateForEvent("", in.Title), in.Title, false)
			}

			main := EventCandidate{
				ID:          "main",
				Title:       in.Title,
				Description: description,
				StartTime:   start,
				EndTime:     end,
				Timezone:    r.uc.Timezone,
				Location:    in.Location,
				Emoji:       emoji,
				Confidence:  0.85,
				Type:        CandidateMain,
			}

			// Поездки добавляются по явной стратегии; без стратегии —
			// по эвристике не-домашнего места
			needTravel := in.Strategy == StrategyTravelRequired || in.Strategy == StrategyMultiEvent
			if in.Strategy == "" && in.Location != "" {
				needTravel = planner.RequiresTravel(in.Location, r.uc.HomeLocation)
			}
			if in.Location == "" {
				needTravel = false
			}

			var events []EventCandidate
			if needTravel {
				outbound, ret, _ := buildTravelLegs(r.uc, r.uc.HomeLocation, in.Location, start, end, strings.ToLower(in.TransportMode))
				outbound.Dependencies = []string{main.ID}
				ret.Dependencies = []string{main.ID}
				events = []EventCandidate{outbound, main, ret}
			} else {
				events = []EventCandidate{main}
			}

			return sequenceOutput{
				Events:     events,
				Strategy:   in.Strategy,
				Confidence: 0.85,
			}, nil
		},
	}
}
