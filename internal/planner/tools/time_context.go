package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type timeContextInput struct {
	Timezone             string `json:"timezone"`
	IncludeRelativeDates bool   `json:"includeRelativeDates"`
}

type timeContextOutput struct {
	CurrentTime string `json:"currentTime"`
	ISO         string `json:"iso"`
	UnixMs      int64  `json:"unixMs"`
	DayOfWeek   string `json:"dayOfWeek"`
	Timezone    string `json:"timezone"`
	Today       string `json:"today,omitempty"`
	Tomorrow    string `json:"tomorrow,omitempty"`
	NextWeek    string `json:"nextWeek,omitempty"`
}

// newTimeContextTool — якорь "сейчас" для всех относительных дат.
// Обычно вызывается бэкендом первым.
func (r *Registry) newTimeContextTool() Tool {
	return Tool{
		Name:        "get_time_context",
		Description: "Get the current date and time in the user's timezone. Call this before resolving any relative date like 'tomorrow' or 'next week'.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"timezone": {
					Type:        jsonschema.String,
					Description: "IANA timezone name; defaults to the user's timezone",
				},
				"includeRelativeDates": {
					Type:        jsonschema.Boolean,
					Description: "Include resolved dates for today, tomorrow and next week",
				},
			},
		},
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			var in timeContextInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			tz := in.Timezone
			if tz == "" {
				tz = r.uc.Timezone
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				loc = time.UTC
				tz = "UTC"
			}

			now := r.clock().In(loc)
			out := timeContextOutput{
				CurrentTime: now.Format("Monday, 02 Jan 2006 15:04"),
				ISO:         now.Format(time.RFC3339),
				UnixMs:      now.UnixMilli(),
				DayOfWeek:   now.Weekday().String(),
				Timezone:    tz,
			}
			if in.IncludeRelativeDates {
				out.Today = now.Format("2006-01-02")
				out.Tomorrow = now.AddDate(0, 0, 1).Format("2006-01-02")
				out.NextWeek = now.AddDate(0, 0, 7).Format("2006-01-02")
			}
			return out, nil
		},
	}
}
