package tools

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type timingInput struct {
	EventType          string `json:"eventType"`
	UserTimePreference string `json:"userTimePreference"`
	BaseDatetime       string `json:"baseDatetime"`
}

type timingOutput struct {
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	DurationMinutes int     `json:"durationMinutes"`
	Confidence      float64 `json:"confidence"`
}

// durationTable — типичная продолжительность по ключевому слову типа события.
// Порядок важен: первое совпадение выигрывает.
var durationTable = []struct {
	Keyword string
	Minutes int
}{
	{"coffee", 60},
	{"meeting", 60},
	{"interview", 60},
	{"lunch", 60},
	{"dinner", 90},
	{"gym", 90},
	{"workout", 90},
	{"birthday", 180},
	{"party", 180},
	{"doctor", 30},
	{"dentist", 30},
	{"appointment", 30},
	{"call", 30},
	{"haircut", 45},
	{"shopping", 90},
	{"class", 90},
	{"work", 240},
}

const defaultDurationMinutes = 60

func durationForEventType(eventType string) int {
	lower := strings.ToLower(eventType)
	for _, d := range durationTable {
		if strings.Contains(lower, d.Keyword) {
			return d.Minutes
		}
	}
	return defaultDurationMinutes
}

// resolveStartTime вычисляет старт события от якорной даты и текстового
// предпочтения ("tomorrow at 3pm", "evening"). Явное время на часах
// перекрывает часть суток.
func resolveStartTime(base time.Time, preference string) time.Time {
	if strings.TrimSpace(preference) == "" {
		return base
	}

	lower := strings.ToLower(preference)
	start := base
	dayShifted := false
	if strings.Contains(lower, "tomorrow") {
		start = start.AddDate(0, 0, 1)
		dayShifted = true
	}

	hourSet := false
	switch {
	case strings.Contains(lower, "morning"):
		start = atHour(start, 9, 0)
		hourSet = true
	case strings.Contains(lower, "afternoon"):
		start = atHour(start, 14, 0)
		hourSet = true
	case strings.Contains(lower, "evening"), strings.Contains(lower, "tonight"):
		start = atHour(start, 18, 0)
		hourSet = true
	}

	if m := explicitTimePattern.FindStringSubmatch(preference); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		meridiem := strings.ToLower(m[3])
		if meridiem == "pm" && hour < 12 {
			hour += 12
		}
		if meridiem == "am" && hour == 12 {
			hour = 0
		}
		if hour <= 23 && minute <= 59 {
			start = atHour(start, hour, minute)
			hourSet = true
		}
	}

	if dayShifted && !hourSet {
		start = atHour(start, 10, 0)
	}

	return start
}

func atHour(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

// newTimingCalculationTool вычисляет старт/конец события из типа события,
// текстового предпочтения времени и якорной даты.
func (r *Registry) newTimingCalculationTool() Tool {
	return Tool{
		Name:        "calculate_event_timing",
		Description: "Calculate start and end times for an event from its type, the user's time preference (like 'tomorrow at 3pm' or 'evening') and a base datetime anchor.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"eventType": {
					Type:        jsonschema.String,
					Description: "Kind of event, e.g. 'coffee', 'meeting', 'gym'",
				},
				"userTimePreference": {
					Type:        jsonschema.String,
					Description: "Free-text time preference taken verbatim from the request",
				},
				"baseDatetime": {
					Type:        jsonschema.String,
					Description: "ISO datetime anchor, from get_time_context",
				},
			},
			Required: []string{"eventType", "baseDatetime"},
		},
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			var in timingInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			base, err := parseISOTime(in.BaseDatetime)
			if err != nil {
				// Сломанный якорь не должен ронять пайплайн
				base = r.clock()
			}

			start := resolveStartTime(base, in.UserTimePreference)
			duration := durationForEventType(in.EventType)
			end := start.Add(time.Duration(duration) * time.Minute)

			confidence := 0.6
			if strings.TrimSpace(in.UserTimePreference) != "" {
				confidence = 0.8
			}

			return timingOutput{
				StartTime:       start.Format(time.RFC3339),
				EndTime:         end.Format(time.RFC3339),
				DurationMinutes: duration,
				Confidence:      confidence,
			}, nil
		},
	}
}
