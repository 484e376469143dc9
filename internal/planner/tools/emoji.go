package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type emojiInput struct {
	EventType       string `json:"eventType"`
	SpecificContext string `json:"specificContext"`
	TimeOfDay       string `json:"timeOfDay"`
	Location        string `json:"location"`
}

type emojiOutput struct {
	Emoji      string  `json:"emoji"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// emojiTable — ключевое слово -> эмодзи. Упорядоченный слайс вместо map:
// первое совпадение выигрывает, результат детерминирован.
var emojiTable = []struct {
	Keyword string
	Emoji   string
}{
	{"coffee", "☕"},
	{"gym", "💪"},
	{"workout", "💪"},
	{"run", "🏃"},
	{"football", "⚽"},
	{"meeting", "🤝"},
	{"interview", "💼"},
	{"presentation", "📊"},
	{"work", "💼"},
	{"study", "📚"},
	{"class", "🎓"},
	{"doctor", "🏥"},
	{"dentist", "🦷"},
	{"birthday", "🎂"},
	{"party", "🎉"},
	{"wedding", "💍"},
	{"breakfast", "🥐"},
	{"lunch", "🍽️"},
	{"dinner", "🍽️"},
	{"movie", "🎬"},
	{"shopping", "🛒"},
	{"beach", "🏖️"},
	{"flight", "✈️"},
	{"trip", "🧳"},
	{"travel", "🚗"},
	{"drive", "🚗"},
	{"call", "📞"},
	{"prayer", "🕌"},
	{"haircut", "💈"},
}

// timeOfDayEmojis — запасной выбор по части суток.
var timeOfDayEmojis = map[string]string{
	"morning":   "🌅",
	"afternoon": "☀️",
	"evening":   "🌆",
	"night":     "🌙",
}

const defaultEmoji = "📅"

func matchEmoji(text string) (string, string, bool) {
	lower := strings.ToLower(text)
	for _, e := range emojiTable {
		if strings.Contains(lower, e.Keyword) {
			return e.Emoji, e.Keyword, true
		}
	}
	return "", "", false
}

// newEmojiSelectionTool выбирает эмодзи для события. Приоритет источников:
// контекст > место > тип события > часть суток > дефолт. Никогда не ошибается.
func (r *Registry) newEmojiSelectionTool() Tool {
	return Tool{
		Name:        "select_emoji",
		Description: "Pick a single fitting emoji for an event. Context beats location, location beats event type; always returns an emoji.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"eventType": {
					Type:        jsonschema.String,
					Description: "Kind of event, e.g. 'coffee', 'meeting'",
				},
				"specificContext": {
					Type:        jsonschema.String,
					Description: "Extra context from the request that may refine the choice",
				},
				"timeOfDay": {
					Type:        jsonschema.String,
					Description: "morning, afternoon, evening or night",
				},
				"location": {
					Type:        jsonschema.String,
					Description: "Event location, if known",
				},
			},
			Required: []string{"eventType"},
		},
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			var in emojiInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			if emoji, kw, ok := matchEmoji(in.SpecificContext); ok {
				return emojiOutput{Emoji: emoji, Reasoning: "matched context keyword: " + kw, Confidence: 0.9}, nil
			}
			if emoji, kw, ok := matchEmoji(in.Location); ok {
				return emojiOutput{Emoji: emoji, Reasoning: "matched location keyword: " + kw, Confidence: 0.8}, nil
			}
			if emoji, kw, ok := matchEmoji(in.EventType); ok {
				return emojiOutput{Emoji: emoji, Reasoning: "matched event type keyword: " + kw, Confidence: 0.85}, nil
			}
			if emoji, ok := timeOfDayEmojis[strings.ToLower(strings.TrimSpace(in.TimeOfDay))]; ok {
				return emojiOutput{Emoji: emoji, Reasoning: "fell back to time of day", Confidence: 0.5}, nil
			}
			return emojiOutput{Emoji: defaultEmoji, Reasoning: "no keyword matched, default calendar emoji", Confidence: 0.3}, nil
		},
	}
}
