package models

import (
	"time"

	"github.com/google/uuid"
)

// Calendar — календарь пользователя, контейнер для событий.
// Предполагается, что хотя бы один календарь существует до запуска пайплайна.
type Calendar struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Event — материализованное событие календаря, созданное пайплайном.
type Event struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"userId"`
	CalendarID   uuid.UUID  `json:"calendarId"`
	Emoji        string     `json:"emoji"`
	Title        string     `json:"title"`
	Description  string     `json:"description"` // HTML
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Timezone     string     `json:"timezone"`
	IsAllDay     bool       `json:"isAllDay"`
	Location     *string    `json:"location,omitempty"`
	AIConfidence *float64   `json:"aiConfidence,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SupportedTimezones — фиксированный перечень таймзон, которые принимает хранилище.
// Все прочие значения приводятся к DefaultTimezone.
var SupportedTimezones = []string{
	"UTC",
	"Africa/Tunis",
	"Africa/Cairo",
	"Europe/Paris",
	"Europe/London",
	"Europe/Berlin",
	"America/New_York",
	"America/Los_Angeles",
	"Asia/Dubai",
	"Asia/Tokyo",
}

// DefaultTimezone используется как запасное значение при неизвестной таймзоне.
const DefaultTimezone = "UTC"

// CoerceTimezone приводит произвольную строку таймзоны к поддерживаемому значению.
func CoerceTimezone(tz string) string {
	for _, supported := range SupportedTimezones {
		if tz == supported {
			return tz
		}
	}
	return DefaultTimezone
}
