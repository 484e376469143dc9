package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"planner-server/internal/config"
	"planner-server/internal/planner/tools"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI
var ErrAIGenerationFailed = errors.New("ошибка генерации текста AI")

// GenerationParams - параметры генерации. Указатели, чтобы отличить 0/0.0 от отсутствия.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo содержит информацию об использовании токенов и стоимости
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCostUSD float64
}

func (u *UsageInfo) add(other UsageInfo) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.EstimatedCostUSD += other.EstimatedCostUSD
}

// ToolCallRecord - один выполненный вызов инструмента внутри tool-augmented генерации.
type ToolCallRecord struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Result    any             `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ToolPlanResult - итог tool-augmented генерации: финальный текст бэкенда
// плюс журнал всех выполненных инструментов.
type ToolPlanResult struct {
	Narrative string
	ToolCalls []ToolCallRecord
	Steps     int
	Usage     UsageInfo
}

// AIClient интерфейс для взаимодействия с AI API
type AIClient interface {
	// GenerateText генерирует текст на основе системного промта и ввода пользователя.
	GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error)
	// GenerateWithTools ведет многошаговый диалог с бэкендом, выполняя запрошенные
	// им инструменты из реестра. onToolCall вызывается перед каждым выполнением
	// инструмента (прогресс). Количество шагов ограничено maxSteps: достижение
	// лимита - не ошибка, возвращается лучший накопленный результат.
	GenerateWithTools(ctx context.Context, systemPrompt string, userInput string, registry *tools.Registry, maxSteps int, onToolCall func(toolName string)) (ToolPlanResult, error)
}

// --- OpenAI Client Implementation ---

// openAIClient реализует AIClient с использованием go-openai
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}

	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: системный промт пуст", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	startTime := time.Now()
	c.logger.Debug("Sending AI request",
		zap.String("model", c.model),
		zap.Int("systemPromptBytes", len(systemPrompt)),
		zap.Int("userInputBytes", len(userInput)))

	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})

	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("AI API error", zap.Error(err), zap.Duration("duration", duration))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	generatedText := resp.Choices[0].Message.Content
	usageInfo = c.observeUsage(resp.Usage, systemPrompt, userInput, generatedText)

	c.logger.Debug("AI response received",
		zap.Duration("duration", duration),
		zap.Int("responseChars", len(generatedText)),
		zap.Int("totalTokens", usageInfo.TotalTokens))

	return generatedText, usageInfo, nil
}

func (c *openAIClient) GenerateWithTools(ctx context.Context, systemPrompt string, userInput string, registry *tools.Registry, maxSteps int, onToolCall func(toolName string)) (ToolPlanResult, error) {
	result := ToolPlanResult{}

	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return result, fmt.Errorf("%w: системный промт пуст", ErrAIGenerationFailed)
	}
	if maxSteps <= 0 {
		maxSteps = 1
	}

	var oaTools []openaigo.Tool
	for _, t := range registry.List() {
		def := t.Parameters
		oaTools = append(oaTools, openaigo.Tool{
			Type: openaigo.ToolTypeFunction,
			Function: &openaigo.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  &def,
			},
		})
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openaigo.ChatMessageRoleUser, Content: userInput},
	}

	for step := 0; step < maxSteps; step++ {
		result.Steps = step + 1

		startTime := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
			Model:    c.model,
			Messages: messages,
			Tools:    oaTools,
		})
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("AI API error during tool loop",
				zap.Error(err), zap.Int("step", step), zap.Duration("duration", duration))
			aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
			return result, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
		}
		if len(resp.Choices) == 0 {
			aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
			return result, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
		}

		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
		aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())
		result.Usage.add(c.observeUsage(resp.Usage, systemPrompt, userInput, resp.Choices[0].Message.Content))

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			// Бэкенд закончил: финальный текст и есть нарратив
			result.Narrative = msg.Content
			return result, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			name := call.Function.Name
			args := json.RawMessage(call.Function.Arguments)

			if onToolCall != nil {
				onToolCall(name)
			}

			record := ToolCallRecord{Name: name, Arguments: args}
			toolResult, execErr := registry.Execute(ctx, name, args)
			var content string
			if execErr != nil {
				// Ошибка инструмента возвращается бэкенду как результат:
				// он может переформулировать аргументы и повторить
				record.Error = execErr.Error()
				toolCallsTotal.With(prometheus.Labels{"tool": name, "status": "error"}).Inc()
				content = fmt.Sprintf(`{"error": %q}`, execErr.Error())
				c.logger.Warn("Tool execution failed", zap.String("tool", name), zap.Error(execErr))
			} else {
				record.Result = toolResult
				toolCallsTotal.With(prometheus.Labels{"tool": name, "status": "success"}).Inc()
				if data, err := json.Marshal(toolResult); err == nil {
					content = string(data)
				} else {
					content = `{"error": "failed to serialize tool result"}`
				}
			}
			result.ToolCalls = append(result.ToolCalls, record)

			messages = append(messages, openaigo.ChatCompletionMessage{
				Role:       openaigo.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	// Лимит шагов исчерпан: возвращаем накопленное без ошибки,
	// пайплайн продолжит работу со структурной экстракцией
	c.logger.Warn("Tool loop exhausted max steps",
		zap.Int("maxSteps", maxSteps), zap.Int("toolCalls", len(result.ToolCalls)))
	return result, nil
}

// observeUsage обновляет метрики токенов. Если провайдер не вернул Usage
// (бывает у openai-совместимых прокси), токены оцениваются через tiktoken.
func (c *openAIClient) observeUsage(usage openaigo.Usage, systemPrompt, userInput, response string) UsageInfo {
	info := UsageInfo{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}

	if info.TotalTokens == 0 {
		if tke, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			info.PromptTokens = len(tke.Encode(systemPrompt, nil, nil)) + len(tke.Encode(userInput, nil, nil))
			info.CompletionTokens = len(tke.Encode(response, nil, nil))
			info.TotalTokens = info.PromptTokens + info.CompletionTokens
		}
	}

	if info.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(info.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(info.CompletionTokens))
		info.EstimatedCostUSD = calculateCost(info.PromptTokens, info.CompletionTokens)
		if info.EstimatedCostUSD > 0 {
			aiEstimatedCostUSD.With(prometheus.Labels{"model": c.model}).Add(info.EstimatedCostUSD)
		}
	}

	return info
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 1.0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

// --- Ollama Client Implementation ---

// ollamaClient реализует AIClient с использованием ollama/api
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(cfg *config.Config, logger *zap.Logger) (AIClient, error) {
	httpClient := &http.Client{Timeout: cfg.AITimeout}

	// api.NewClient требует URL без суффикса /v1
	ollamaBaseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", ollamaBaseURL, err)
	}

	client := api.NewClient(parsedURL, httpClient)
	logger.Info("Ollama client created",
		zap.String("baseURL", ollamaBaseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout))

	return &ollamaClient{
		client:  client,
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  logger,
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}

	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: системный промт пуст", ErrAIGenerationFailed)
	}

	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   func(b bool) *bool { return &b }(false),
		Options: map[string]interface{}{
			"temperature": params.Temperature,
			"top_p":       params.TopP,
			"num_predict": intVal(params.MaxTokens),
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Warn("Ollama API error", zap.Error(err), zap.Duration("duration", duration))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "error_empty_response"}).Inc()
		return "", usageInfo, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model}).Observe(duration.Seconds())

	usageInfo.PromptTokens = resp.PromptEvalCount
	usageInfo.CompletionTokens = resp.EvalCount
	usageInfo.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	// Ollama локальный, стоимость 0
	if usageInfo.TotalTokens > 0 {
		aiPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usageInfo.PromptTokens))
		aiCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(usageInfo.CompletionTokens))
	}

	return resp.Message.Content, usageInfo, nil
}

// GenerateWithTools у Ollama работает в деградированном режиме: нативного
// function calling в используемом API нет, поэтому каталог инструментов
// встраивается в системный промт, а бэкенд отвечает одним нарративом без
// фактических вызовов. Детерминированная сборка событий в таком случае
// целиком ложится на фазу структурной экстракции.
func (c *ollamaClient) GenerateWithTools(ctx context.Context, systemPrompt string, userInput string, registry *tools.Registry, maxSteps int, onToolCall func(toolName string)) (ToolPlanResult, error) {
	var catalog strings.Builder
	catalog.WriteString(systemPrompt)
	catalog.WriteString("\n\nAvailable planning capabilities (describe your reasoning in terms of them):\n")
	for _, t := range registry.List() {
		catalog.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}

	narrative, usage, err := c.GenerateText(ctx, catalog.String(), userInput, GenerationParams{})
	if err != nil {
		return ToolPlanResult{}, err
	}
	return ToolPlanResult{
		Narrative: narrative,
		Steps:     1,
		Usage:     usage,
	}, nil
}

// --- Factory Function ---

// NewAIClient создает клиента AI в зависимости от конфигурации
func NewAIClient(cfg *config.Config, logger *zap.Logger) (AIClient, error) {
	log := logger.Named("AIClient")
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
		client := openaigo.NewClientWithConfig(openaiConfig)
		log.Info("OpenAI client created",
			zap.String("baseURL", cfg.AIBaseURL),
			zap.String("model", cfg.AIModel),
			zap.Duration("timeout", cfg.AITimeout))
		return &openAIClient{client: client, model: cfg.AIModel, logger: log}, nil
	case "ollama":
		return newOllamaClient(cfg, log)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.AIClientType)
	}
}
