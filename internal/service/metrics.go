package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Цены за 1М токенов в USD (оценочно, для дешевых openrouter-моделей).
const (
	pricePerMillionInputTokensUSD  = 0.1
	pricePerMillionOutputTokensUSD = 0.4
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planner_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planner_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planner_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
	aiEstimatedCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_ai_estimated_cost_usd_total",
			Help: "Estimated total cost of AI requests in USD.",
		},
		[]string{"model"},
	)
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_tool_calls_total",
			Help: "Total number of planning tool invocations requested by the AI.",
		},
		[]string{"tool", "status"},
	)
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_pipeline_runs_total",
			Help: "Total number of event generation pipeline runs by outcome.",
		},
		[]string{"status"},
	)
	pipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_pipeline_duration_seconds",
			Help:    "Histogram of full pipeline durations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
	eventsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_events_created_total",
			Help: "Total number of calendar events created by the pipeline.",
		},
	)
)

// calculateCost рассчитывает оценочную стоимость запроса по токенам.
func calculateCost(promptTokens, completionTokens int) float64 {
	inputCost := float64(promptTokens) * pricePerMillionInputTokensUSD / 1_000_000.0
	outputCost := float64(completionTokens) * pricePerMillionOutputTokensUSD / 1_000_000.0
	return inputCost + outputCost
}
