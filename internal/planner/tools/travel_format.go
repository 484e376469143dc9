package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type travelFormatInput struct {
	Origin            string `json:"origin"`
	Destination       string `json:"destination"`
	TransportMode     string `json:"transportMode"`
	EstimatedDuration int    `json:"estimatedDuration"`
	Context           string `json:"context"`
}

type travelFormatOutput struct {
	Title           string  `json:"title"`
	Mode            string  `json:"mode"`
	Emoji           string  `json:"emoji"`
	DurationMinutes int     `json:"durationMinutes,omitempty"`
	Confidence      float64 `json:"confidence"`
}

// transportModes — канонические способы перемещения для заголовков поездок.
var transportModes = map[string]struct {
	Label string
	Emoji string
}{
	"car":   {"Car", "🚗"},
	"walk":  {"Walk", "🚶"},
	"bus":   {"Bus", "🚌"},
	"train": {"Train", "🚆"},
	"bike":  {"Bike", "🚴"},
	"taxi":  {"Taxi", "🚕"},
	"plane": {"Flight", "✈️"},
}

// modeHints — ключевые слова контекста -> способ перемещения.
var modeHints = []struct {
	Keyword string
	Mode    string
}{
	{"drive", "car"},
	{"car", "car"},
	{"walk", "walk"},
	{"bus", "bus"},
	{"train", "train"},
	{"bike", "bike"},
	{"cycle", "bike"},
	{"taxi", "taxi"},
	{"cab", "taxi"},
	{"fly", "plane"},
	{"flight", "plane"},
	{"plane", "plane"},
}

func detectTransportMode(context string) (string, bool) {
	lower := strings.ToLower(context)
	for _, h := range modeHints {
		if strings.Contains(lower, h.Keyword) {
			return h.Mode, true
		}
	}
	return "", false
}

// formatTravelTitle строит канонический заголовок поездки:
// "<эмодзи> <Способ> (<откуда> -> <куда>)".
func formatTravelTitle(mode, origin, destination string) string {
	m, ok := transportModes[mode]
	if !ok {
		m = transportModes["car"]
	}
	return fmt.Sprintf("%s %s (%s -> %s)", m.Emoji, m.Label, origin, destination)
}

// newTravelFormatTool формирует каноничный заголовок travel-события.
func (r *Registry) newTravelFormatTool() Tool {
	return Tool{
		Name:        "format_travel_event",
		Description: "Build the canonical travel event title '<emoji> <Mode> (<origin> -> <destination>)'. Infers the transport mode from context when not given.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"origin": {
					Type:        jsonschema.String,
					Description: "Where the trip starts",
				},
				"destination": {
					Type:        jsonschema.String,
					Description: "Where the trip ends",
				},
				"transportMode": {
					Type:        jsonschema.String,
					Description: "Transport mode; inferred from context or user preference when omitted",
					Enum:        []string{"car", "walk", "bus", "train", "bike", "taxi", "plane"},
				},
				"estimatedDuration": {
					Type:        jsonschema.Integer,
					Description: "Trip duration in minutes, if known",
				},
				"context": {
					Type:        jsonschema.String,
					Description: "Request fragment that may hint at the transport mode",
				},
			},
			Required: []string{"origin", "destination"},
		},
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			var in travelFormatInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.Origin) == "" || strings.TrimSpace(in.Destination) == "" {
				return nil, fmt.Errorf("origin и destination обязательны")
			}

			mode := strings.ToLower(strings.TrimSpace(in.TransportMode))
			confidence := 0.9
			if _, ok := transportModes[mode]; !ok {
				confidence = 0.7
				if hinted, ok := detectTransportMode(in.Context); ok {
					mode = hinted
				} else {
					mode = r.uc.PreferredTransportation().Mode
				}
			}

			m := transportModes[mode]
			return travelFormatOutput{
				Title:           formatTravelTitle(mode, in.Origin, in.Destination),
				Mode:            mode,
				Emoji:           m.Emoji,
				DurationMinutes: in.EstimatedDuration,
				Confidence:      confidence,
			}, nil
		},
	}
}
