package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"planner-server/internal/planner"
)

// Tool — независимая именованная возможность с декларированной схемой входа.
// Execute — чистая функция без побочных эффектов: ни один инструмент не пишет
// в хранилище. Жесткая ошибка возможна только при нарушении схемы входа;
// "не найдено" всегда деградирует до дефолта с пониженной уверенностью.
type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
	Execute     func(ctx context.Context, args json.RawMessage) (any, error)
}

// RichDescriptionFunc генерирует насыщенное описание события через AI-бэкенд.
// Используется инструментом описаний как первый ярус; любая ошибка
// молча переводит на шаблонный ярус.
type RichDescriptionFunc func(ctx context.Context, prompt string) (string, error)

// Registry — фиксированный реестр инструментов, передаваемый целиком
// в tool-augmented вызов генерации. Оркестратор не знает, какие инструменты
// будут вызваны — порядок и состав выбирает бэкенд.
type Registry struct {
	uc      planner.UserContext
	clock   func() time.Time
	richGen RichDescriptionFunc
	tools   map[string]Tool
	order   []string
}

// Option настраивает Registry при создании.
type Option func(*Registry)

// WithClock подменяет источник времени (для детерминированных тестов).
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithRichDescriptions включает AI-ярус генерации описаний.
func WithRichDescriptions(gen RichDescriptionFunc) Option {
	return func(r *Registry) { r.richGen = gen }
}

// NewRegistry создает реестр со всеми инструментами планирования.
func NewRegistry(uc planner.UserContext, opts ...Option) *Registry {
	r := &Registry{
		uc:    uc,
		clock: time.Now,
		tools: make(map[string]Tool),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.register(r.newTimeContextTool())
	r.register(r.newIntentAnalysisTool())
	r.register(r.newComplexityAnalysisTool())
	r.register(r.newLocationExtractionTool())
	r.register(r.newTimingCalculationTool())
	r.register(r.newEmojiSelectionTool())
	r.register(r.newDescriptionTool())
	r.register(r.newTravelFormatTool())
	r.register(r.newTravelPlanTool())
	r.register(r.newSequenceTool())
	r.register(r.newStructurePlanTool())

	return r
}

func (r *Registry) register(t Tool) {
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Get возвращает инструмент по имени.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List возвращает все инструменты в порядке регистрации.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Execute валидирует и выполняет инструмент по имени.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("неизвестный инструмент: %s", name)
	}
	return t.Execute(ctx, args)
}

// decodeArgs разбирает аргументы вызова инструмента. Пустые аргументы
// трактуются как пустой объект (бэкенды иногда опускают "{}").
func decodeArgs[T any](args json.RawMessage, dst *T) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("некорректные аргументы инструмента: %w", err)
	}
	return nil
}

// parseISOTime разбирает время в нескольких распространенных ISO-форматах.
func parseISOTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("не удалось разобрать время: %q", s)
}
