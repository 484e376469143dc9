package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type descriptionInput struct {
	EventType       string `json:"eventType"`
	EventTitle      string `json:"eventTitle"`
	Context         string `json:"context"`
	TimeOfDay       string `json:"timeOfDay"`
	DurationMinutes int    `json:"durationMinutes"`
	IncludeTaskList bool   `json:"includeTaskList"`
}

type descriptionOutput struct {
	Description string  `json:"description"` // HTML
	Source      string  `json:"source"`      // ai_generated | template
	Template    string  `json:"template,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// descriptionTemplate — шаблон описания по ключевому слову типа события.
type descriptionTemplate struct {
	Keyword string
	Name    string
	Body    string
	Tasks   []string
}

// Шаблонный ярус. HTML — целевой формат описаний в календаре.
var descriptionTemplates = []descriptionTemplate{
	{
		Keyword: "morning",
		Name:    "morning",
		Body:    "<p>Start the day with <strong>%s</strong>. A calm, focused block before the day picks up.</p>",
		Tasks:   []string{"Review today's schedule", "Prepare what you need"},
	},
	{
		Keyword: "meeting",
		Name:    "meeting",
		Body:    "<p><strong>%s</strong> — come prepared and keep it on track.</p>",
		Tasks:   []string{"Review the agenda", "Prepare talking points", "Note action items afterwards"},
	},
	{
		Keyword: "work",
		Name:    "work",
		Body:    "<p>Focused work block: <strong>%s</strong>.</p>",
		Tasks:   []string{"Silence notifications", "Define the one outcome for this block"},
	},
	{
		Keyword: "prepar",
		Name:    "preparation",
		Body:    "<p>Preparation time for <strong>%s</strong>. Get everything ready in advance.</p>",
		Tasks:   []string{"Gather what you need", "Double-check times and places"},
	},
	{
		Keyword: "gym",
		Name:    "workout",
		Body:    "<p><strong>%s</strong> — training session. Warm up properly and stay hydrated.</p>",
		Tasks:   []string{"Pack gym gear", "Bring water"},
	},
	{
		Keyword: "workout",
		Name:    "workout",
		Body:    "<p><strong>%s</strong> — training session. Warm up properly and stay hydrated.</p>",
		Tasks:   []string{"Pack gym gear", "Bring water"},
	},
	{
		Keyword: "travel",
		Name:    "travel",
		Body:    "<p>Travel leg: <strong>%s</strong>. Leave on time to arrive with a comfortable margin.</p>",
		Tasks:   nil,
	},
	{
		Keyword: "doctor",
		Name:    "appointment",
		Body:    "<p>Appointment: <strong>%s</strong>. Arrive a few minutes early.</p>",
		Tasks:   []string{"Bring relevant documents", "Note questions to ask"},
	},
	{
		Keyword: "appointment",
		Name:    "appointment",
		Body:    "<p>Appointment: <strong>%s</strong>. Arrive a few minutes early.</p>",
		Tasks:   []string{"Bring relevant documents", "Note questions to ask"},
	},
	{
		Keyword: "birthday",
		Name:    "birthday",
		Body:    "<p>🎂 <strong>%s</strong> — celebration time!</p>",
		Tasks:   []string{"Get a gift", "Confirm the time and place"},
	},
}

var defaultTemplate = descriptionTemplate{
	Name: "default",
	Body: "<p><strong>%s</strong></p>",
}

func templateForEvent(eventType, title string) descriptionTemplate {
	haystack := strings.ToLower(eventType + " " + title)
	for _, t := range descriptionTemplates {
		if strings.Contains(haystack, t.Keyword) {
			return t
		}
	}
	return defaultTemplate
}

func renderTemplate(t descriptionTemplate, title string, includeTasks bool) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(t.Body, title))
	if includeTasks && len(t.Tasks) > 0 {
		b.WriteString("<ul>")
		for _, task := range t.Tasks {
			b.WriteString("<li>" + task + "</li>")
		}
		b.WriteString("</ul>")
	}
	return b.String()
}

// newDescriptionTool генерирует HTML-описание события. Два яруса:
// насыщенный AI-текст, при любой ошибке — молчаливый откат на шаблон.
// Travel-события всегда получают шаблон: им не нужен сочиненный текст.
func (r *Registry) newDescriptionTool() Tool {
	return Tool{
		Name:        "generate_description",
		Description: "Generate a short HTML description for an event, optionally with a task checklist. Uses rich AI text when available, otherwise a deterministic template.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"eventType": {
					Type:        jsonschema.String,
					Description: "Kind of event, e.g. 'meeting', 'gym', 'travel'",
				},
				"eventTitle": {
					Type:        jsonschema.String,
					Description: "Final event title",
				},
				"context": {
					Type:        jsonschema.String,
					Description: "Extra context from the request",
				},
				"timeOfDay": {
					Type:        jsonschema.String,
					Description: "morning, afternoon, evening or night",
				},
				"durationMinutes": {
					Type:        jsonschema.Integer,
					Description: "Event duration in minutes",
				},
				"includeTaskList": {
					Type:        jsonschema.Boolean,
					Description: "Append a short task checklist",
				},
			},
			Required: []string{"eventType", "eventTitle"},
		},
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in descriptionInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			isTravel := strings.Contains(strings.ToLower(in.EventType), "travel")
			if r.richGen != nil && in.Context != "" && !isTravel {
				prompt := fmt.Sprintf(
					"Write a short HTML description (1-2 sentences, <p> tags) for a calendar event titled %q (%s). Context: %s",
					in.EventTitle, in.EventType, in.Context)
				if text, err := r.richGen(ctx, prompt); err == nil && strings.TrimSpace(text) != "" {
					return descriptionOutput{
						Description: strings.TrimSpace(text),
						Source:      "ai_generated",
						Confidence:  0.9,
					}, nil
				}
				// Откат на шаблон происходит молча: описание не критично
			}

			t := templateForEvent(in.EventType, in.EventTitle)
			return descriptionOutput{
				Description: renderTemplate(t, in.EventTitle, in.IncludeTaskList),
				Source:      "template",
				Template:    t.Name,
				Confidence:  0.7,
			}, nil
		},
	}
}
