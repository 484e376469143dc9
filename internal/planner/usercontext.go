package planner

import (
	"regexp"
	"strings"

	"planner-server/internal/config"
)

// Location — именованное место без геокоординат (вход — свободный текст).
type Location struct {
	Name   string `json:"name"`
	IsHome bool   `json:"isHome"`
}

// Transportation — предпочитаемый способ перемещения пользователя.
type Transportation struct {
	Mode  string `json:"mode"`
	Emoji string `json:"emoji"`
}

// UserContext — детерминированные, не-AI факты о пользователе,
// нужные инструментам планирования. Собирается из конфигурации,
// без I/O и случайности — инструменты остаются чистыми функциями.
type UserContext struct {
	HomeLocation  string
	Transport     Transportation
	Timezone      string
	BufferMinutes int
	Locale        string
}

// transportEmojis — способ перемещения -> эмодзи.
var transportEmojis = map[string]string{
	"car":   "🚗",
	"walk":  "🚶",
	"bus":   "🚌",
	"train": "🚆",
	"bike":  "🚴",
	"taxi":  "🚕",
	"plane": "✈️",
}

// NewUserContext строит контекст пользователя из конфигурации сервиса.
func NewUserContext(cfg *config.Config) UserContext {
	mode := strings.ToLower(strings.TrimSpace(cfg.Transport))
	emoji, ok := transportEmojis[mode]
	if !ok {
		mode = "car"
		emoji = transportEmojis["car"]
	}
	return UserContext{
		HomeLocation:  cfg.HomeLocation,
		Transport:     Transportation{Mode: mode, Emoji: emoji},
		Timezone:      cfg.DefaultTimezone,
		BufferMinutes: cfg.BufferMinutes,
		Locale:        cfg.Locale,
	}
}

// DefaultLocation возвращает "домашнюю базу" пользователя.
func (uc UserContext) DefaultLocation() Location {
	return Location{Name: uc.HomeLocation, IsHome: true}
}

// PreferredTransportation возвращает предпочитаемый транспорт.
func (uc UserContext) PreferredTransportation() Transportation {
	return uc.Transport
}

// KnownPlaces — газетир известных топонимов. Свободный текст — обычный случай,
// поэтому список короткий и служит только для повышения уверенности извлечения.
var KnownPlaces = []string{
	"Ksar Hellal",
	"Sayeda",
	"Moknine",
	"Monastir",
	"Sousse",
	"Mahdia",
	"Sfax",
	"Tunis",
	"Hammamet",
	"Kairouan",
}

// knownTravelMinutes — время в пути на машине между известными парами мест.
// Ключ — нормализованная пара "origin|destination" (симметрично).
var knownTravelMinutes = map[string]int{
	pairKey("Ksar Hellal", "Sayeda"):  25,
	pairKey("Ksar Hellal", "Moknine"): 10,
	pairKey("Ksar Hellal", "Monastir"): 20,
	pairKey("Ksar Hellal", "Sousse"):  40,
	pairKey("Ksar Hellal", "Mahdia"):  35,
	pairKey("Monastir", "Sousse"):     25,
	pairKey("Monastir", "Sayeda"):     15,
	pairKey("Sousse", "Tunis"):        95,
	pairKey("Sousse", "Kairouan"):     50,
	pairKey("Monastir", "Tunis"):      110,
	pairKey("Sousse", "Hammamet"):     55,
	pairKey("Sousse", "Sfax"):         80,
}

// defaultTravelMinutes — запасное время в пути по способу перемещения
// для нераспознанных мест. Положительное значение всегда: свободный текст
// не должен ронять планирование.
var defaultTravelMinutes = map[string]int{
	"walk":  20,
	"bike":  25,
	"car":   30,
	"taxi":  30,
	"bus":   45,
	"train": 50,
	"plane": 120,
}

// transportFactor — множитель к известному времени на машине.
var transportFactor = map[string]float64{
	"car":   1.0,
	"taxi":  1.0,
	"bike":  2.5,
	"bus":   1.6,
	"train": 1.4,
	"walk":  5.0,
	"plane": 1.0,
}

func pairKey(a, b string) string {
	na, nb := normalizePlace(a), normalizePlace(b)
	if na > nb {
		na, nb = nb, na
	}
	return na + "|" + nb
}

func normalizePlace(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EstimateTravelTime оценивает время в пути (в минутах) между двумя местами.
// Чистая функция: одинаковый вход — одинаковый выход. Для незнакомых мест
// возвращает разумное положительное значение вместо ошибки.
func EstimateTravelTime(origin, destination string, transport Transportation) int {
	if normalizePlace(origin) == normalizePlace(destination) {
		return 0
	}

	mode := transport.Mode
	if _, ok := defaultTravelMinutes[mode]; !ok {
		mode = "car"
	}

	if carMinutes, ok := knownTravelMinutes[pairKey(origin, destination)]; ok {
		factor := transportFactor[mode]
		minutes := int(float64(carMinutes)*factor + 0.5)
		if minutes < 1 {
			minutes = 1
		}
		return minutes
	}

	return defaultTravelMinutes[mode]
}

// IsKnownPlace сообщает, присутствует ли место в газетире.
func IsKnownPlace(name string) bool {
	n := normalizePlace(name)
	for _, p := range KnownPlaces {
		if normalizePlace(p) == n {
			return true
		}
	}
	return false
}

// travelVerbPattern — глаголы/обороты, указывающие на перемещение.
var travelVerbPattern = regexp.MustCompile(`(?i)\b(go to|going to|drive to|head to|travel to|trip to|visit|commute|flight|fly to)\b`)

// RequiresTravel — легкая эвристика: происходит ли описанная активность
// предположительно вне дома. Ключевые слова + упоминание известного
// не-домашнего места. Время суток ("at 6am") за место не считается.
func RequiresTravel(text string, home string) bool {
	if travelVerbPattern.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	homeNorm := normalizePlace(home)
	for _, p := range KnownPlaces {
		pNorm := normalizePlace(p)
		if pNorm == homeNorm {
			continue
		}
		if strings.Contains(lower, pNorm) {
			return true
		}
	}
	return false
}
