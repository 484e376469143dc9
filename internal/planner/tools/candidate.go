package tools

import "time"

// CandidateType — роль кандидата в последовательности событий.
type CandidateType string

const (
	CandidateMain        CandidateType = "main"
	CandidateTravelTo    CandidateType = "travel_to"
	CandidateTravelFrom  CandidateType = "travel_from"
	CandidatePreparation CandidateType = "preparation"
	CandidateBuffer      CandidateType = "buffer"
	CandidateFollowUp    CandidateType = "follow_up"
)

// EventCandidate — транзиентное, еще не сохраненное событие, порожденное
// посреди пайплайна. Внутри одного батча кандидаты упорядочены по StartTime;
// travel_to заканчивается не позже старта главного события, travel_from
// начинается не раньше его конца.
type EventCandidate struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"` // HTML
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	Timezone     string        `json:"timezone"`
	IsAllDay     bool          `json:"isAllDay"`
	Location     string        `json:"location,omitempty"`
	Emoji        string        `json:"emoji"`
	Confidence   float64       `json:"confidence"`
	Type         CandidateType `json:"type"`
	Dependencies []string      `json:"dependencies,omitempty"`
}
