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

type travelPlanInput struct {
	Title         string `json:"title"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	Location      string `json:"location"`
	Origin        string `json:"origin"`
	TransportMode string `json:"transportMode"`
}

type travelPlanOutput struct {
	Outbound      EventCandidate `json:"outbound"`
	Return        EventCandidate `json:"return"`
	TravelMinutes int            `json:"travelMinutes"`
	BufferMinutes int            `json:"bufferMinutes"`
}

// buildTravelLegs вычисляет обе поездки вокруг главного события.
// Выезд = старт - (дорога + буфер); прибытие = старт - буфер;
// обратный выезд = конец + буфер. Чистая арифметика, общая для
// plan_travel_events и generate_event_sequence.
func buildTravelLegs(uc planner.UserContext, origin, destination string, mainStart, mainEnd time.Time, mode string) (EventCandidate, EventCandidate, int) {
	transport := uc.PreferredTransportation()
	if m, ok := transportModes[mode]; ok {
		transport = planner.Transportation{Mode: mode, Emoji: m.Emoji}
	}

	travelMinutes := planner.EstimateTravelTime(origin, destination, transport)
	buffer := time.Duration(uc.BufferMinutes) * time.Minute
	travel := time.Duration(travelMinutes) * time.Minute

	travelTmpl := templateForEvent("travel", "")

	outbound := EventCandidate{
		ID:          "travel_to",
		Title:       formatTravelTitle(transport.Mode, origin, destination),
		Description: renderTemplate(travelTmpl, fmt.Sprintf("%s -> %s", origin, destination), false),
		StartTime:   mainStart.Add(-(travel + buffer)),
		EndTime:     mainStart.Add(-buffer),
		Timezone:    uc.Timezone,
		Location:    origin,
		Emoji:       transport.Emoji,
		Confidence:  0.8,
		Type:        CandidateTravelTo,
	}
	ret := EventCandidate{
		ID:          "travel_from",
		Title:       formatTravelTitle(transport.Mode, destination, origin),
		Description: renderTemplate(travelTmpl, fmt.Sprintf("%s -> %s", destination, origin), false),
		StartTime:   mainEnd.Add(buffer),
		EndTime:     mainEnd.Add(buffer + travel),
		Timezone:    uc.Timezone,
		Location:    destination,
		Emoji:       transport.Emoji,
		Confidence:  0.8,
		Type:        CandidateTravelFrom,
	}
	return outbound, ret, travelMinutes
}

// newTravelPlanTool планирует поездки туда и обратно вокруг главного события.
func (r *Registry) newTravelPlanTool() Tool {
	return Tool{
		Name:        "plan_travel_events",
		Description: "Plan the outbound and return travel legs around a main event: departure is start minus travel time minus buffer, arrival is start minus buffer, return departs after the event plus buffer.",
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
					Description: "Main event location (travel destination)",
				},
				"origin": {
					Type:        jsonschema.String,
					Description: "Trip origin; defaults to the user's home location",
				},
				"transportMode": {
					Type:        jsonschema.String,
					Description: "Transport mode; defaults to the user's preference",
					Enum:        []string{"car", "walk", "bus", "train", "bike", "taxi", "plane"},
				},
			},
			Required: []string{"title", "startTime", "location"},
		},
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			var in travelPlanInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.Location) == "" {
				return nil, fmt.Errorf("location обязателен")
			}

			start, err := parseISOTime(in.StartTime)
			if err != nil {
				return nil, err
			}
			end := start.Add(time.Hour)
			if in.EndTime != "" {
				if parsed, err := parseISOTime(in.EndTime); err == nil {
					end = parsed
				}
			}

			origin := in.Origin
			if strings.TrimSpace(origin) == "" {
				origin = r.uc.HomeLocation
			}

			outbound, ret, travelMinutes := buildTravelLegs(r.uc, origin, in.Location, start, end, strings.ToLower(in.TransportMode))
			outbound.Dependencies = []string{"main"}
			ret.Dependencies = []string{"main"}

			return travelPlanOutput{
				Outbound:      outbound,
				Return:        ret,
				TravelMinutes: travelMinutes,
				BufferMinutes: r.uc.BufferMinutes,
			}, nil
		},
	}
}
