package models

import "errors"

// Доменные ошибки. Репозитории транслируют pgx.ErrNoRows в эти ошибки,
// чтобы вызывающий код не зависел от драйвера БД.
var (
	ErrSessionNotFound     = errors.New("processing session not found")
	ErrCalendarNotFound    = errors.New("calendar not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrNoCalendarAvailable = errors.New("no calendar available for user")
	ErrEmptyUserInput      = errors.New("user input is empty")
	ErrProgressNotFound    = errors.New("progress state not found")
)
