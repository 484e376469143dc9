package tools

import (
	"regexp"
	"strings"

	"planner-server/internal/planner"
)

// Общие текстовые эвристики, разделяемые инструментами анализа.
// Все функции чистые и работают поверх свободного текста пользователя.

// explicitTimePattern — явное время в 12-часовой записи ("3pm", "11:30 am").
var explicitTimePattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

// placeAfterVerbPattern — топоним после предлога/глагола места. Захватывается
// только последовательность слов с заглавной буквы, чтобы "at 3pm" или
// "in the morning" не считались местами.
var placeAfterVerbPattern = regexp.MustCompile(`(?:\bgo to|\bgoing to|\bdrive to|\bhead to|\btravel to|\btrip to|\bvisit|\bin|\bat|\bto)\s+([A-Z][a-zA-Z']*(?:\s[A-Z][a-zA-Z']*)*)`)

// fromToPattern — явная пара "from X to Y".
var fromToPattern = regexp.MustCompile(`(?i)\bfrom\s+([A-Z][a-zA-Z']*(?:\s[A-Z][a-zA-Z']*)*)\s+to\s+([A-Z][a-zA-Z']*(?:\s[A-Z][a-zA-Z']*)*)`)

// segmentSplitPattern — союзы/знаки, разделяющие описание на активности.
var segmentSplitPattern = regexp.MustCompile(`(?i)\s*(?:,|\band then\b|\bthen\b|\bafter that\b|\bafterwards\b|\band\b)\s+`)

// placeStopWords — захваченные заглавные слова, которые местами не являются.
var placeStopWords = map[string]bool{
	"i": true, "monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// extractPlaces извлекает топонимы из свободного текста: сначала явные пары
// from/to, затем места после предлогов, затем прямые вхождения из газетира.
// Порядок появления сохраняется, дубликаты убираются.
func extractPlaces(input string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if placeStopWords[key] || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	for _, m := range fromToPattern.FindAllStringSubmatch(input, -1) {
		add(m[1])
		add(m[2])
	}
	for _, m := range placeAfterVerbPattern.FindAllStringSubmatch(input, -1) {
		add(m[1])
	}
	lower := strings.ToLower(input)
	for _, p := range planner.KnownPlaces {
		if strings.Contains(lower, strings.ToLower(p)) {
			add(p)
		}
	}

	return out
}

// extractTravelPairs извлекает явные пары origin->destination из текста.
func extractTravelPairs(input string) [][2]string {
	var pairs [][2]string
	for _, m := range fromToPattern.FindAllStringSubmatch(input, -1) {
		pairs = append(pairs, [2]string{strings.TrimSpace(m[1]), strings.TrimSpace(m[2])})
	}
	return pairs
}

// splitSegments разбивает описание на отдельные активности по союзам.
func splitSegments(input string) []string {
	parts := segmentSplitPattern.Split(input, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) >= 3 {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, strings.TrimSpace(input))
	}
	return out
}

// categoryKeywords — упорядоченный список категорий активности.
// Порядок важен: первая совпавшая категория становится типом сегмента.
var categoryKeywords = []struct {
	Category string
	Keywords []string
}{
	{"appointment", []string{"doctor", "dentist", "appointment", "checkup", "clinic", "hospital"}},
	{"work", []string{"meeting", "interview", "presentation", "deadline", "office", "work", "standup", "call"}},
	{"social", []string{"coffee", "lunch", "dinner", "party", "birthday", "wedding", "hang out", "meet up", "date"}},
	{"preparation", []string{"prepare", "preparation", "pack", "get ready", "setup", "set up"}},
	{"travel", []string{"trip", "travel", "flight", "drive to", "go to", "visit", "commute"}},
	{"personal", []string{"gym", "workout", "run", "study", "read", "shopping", "haircut", "errand", "prayer"}},
}

// classifySegment возвращает категорию активности для текста сегмента.
func classifySegment(text string) string {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, kw := range ck.Keywords {
			if strings.Contains(lower, kw) {
				return ck.Category
			}
		}
	}
	return "personal"
}

// temporalMarkers — какие относительные временные метки встречаются в тексте.
type temporalMarkers struct {
	Today         bool     `json:"today"`
	Tomorrow      bool     `json:"tomorrow"`
	ThisWeek      bool     `json:"thisWeek"`
	NextWeek      bool     `json:"nextWeek"`
	ExplicitTimes []string `json:"explicitTimes"`
}

func extractTemporalMarkers(input string) temporalMarkers {
	lower := strings.ToLower(input)
	tm := temporalMarkers{
		Today:    strings.Contains(lower, "today") || strings.Contains(lower, "tonight"),
		Tomorrow: strings.Contains(lower, "tomorrow"),
		ThisWeek: strings.Contains(lower, "this week"),
		NextWeek: strings.Contains(lower, "next week"),
	}
	for _, m := range explicitTimePattern.FindAllString(input, -1) {
		tm.ExplicitTimes = append(tm.ExplicitTimes, strings.TrimSpace(m))
	}
	return tm
}
