package models

// GeneratedEvent — одно событие из структурированного ответа фазы извлечения.
// Форма фиксирована: фаза персистенции парсит именно этот контракт.
type GeneratedEvent struct {
	Emoji       string  `json:"emoji"`
	Title       string  `json:"title"`
	Description string  `json:"description"` // HTML
	StartTime   string  `json:"startTime"`   // ISO-8601
	EndTime     string  `json:"endTime,omitempty"`
	Timezone    string  `json:"timezone"`
	IsAllDay    bool    `json:"isAllDay"`
	Location    string  `json:"location,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// GeneratedPlan — полный результат фазы структурированного извлечения.
type GeneratedPlan struct {
	Events          []GeneratedEvent `json:"events"`
	ProcessingNotes string           `json:"processingNotes"`
	Confidence      float64          `json:"confidence"`
	ContextUsed     []string         `json:"contextUsed"`
}
