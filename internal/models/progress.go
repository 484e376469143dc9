package models

import "time"

// ProgressState — эфемерный снапшот прогресса сессии.
// Живет в progress.Store во время обработки и дублируется
// в ProcessingSession.ProcessedOutput для опроса после рестарта процесса.
type ProgressState struct {
	Progress  int           `json:"progress"` // 0..100
	Stage     string        `json:"stage"`
	Status    SessionStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}
