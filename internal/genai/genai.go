// Package genai provides the language-model client for the consultation
// chatbot, built on the OpenAI API.
//
// Chat follows the resilience contract of the chat surface: provider
// failures are swallowed and a user-facing apology string is returned
// instead, because a raw error must never reach the customer widget.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/playcat/catconsult/internal/models"
)

// ApologyMessage is returned from Chat whenever the provider call fails.
const ApologyMessage = "죄송합니다. 일시적인 오류가 발생했습니다. 잠시 후 다시 시도해주세요."

// defaultSystemPrompt is the consultation persona used when no prompt file
// is configured.
const defaultSystemPrompt = `당신은 플레이캣(PLAYCAT)의 고양이 행동풍부화 전문 상담사입니다.

=== 상담 원칙 ===
1. 친절하고 전문적으로 답변
2. 고양이의 품종, 나이, 체중 고려
3. 안전을 최우선으로 강조
4. 구체적인 가격 정보 제공
5. 필요시 상세 견적 안내

타공 불필요한 안전한 설치 방식을 강조하세요.
반드시 한국어로 답변하세요.`

// maxHistoryMessages bounds how much conversation history is replayed to
// the model to prevent token overflow.
const maxHistoryMessages = 30

// ClientInterface defines chat generation over the consultation persona.
type ClientInterface interface {
	// Chat generates a reply to message given the recent conversation
	// history. It never returns an error; on provider failure the apology
	// message is returned.
	Chat(ctx context.Context, message string, history []models.ChatMessage) string
}

// Analyzer is the optional structured-analysis capability. Callers resolve
// it once at construction time; a nil Analyzer means the capability is
// absent and a static fallback applies.
type Analyzer interface {
	AnalyzeConsultation(ctx context.Context, data map[string]interface{}) (*models.ConsultationAnalysis, error)
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey           string
	Model            string
	SystemPromptFile string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithSystemPromptFile sets a file to load the consultation persona from.
func WithSystemPromptFile(path string) Option {
	return func(o *Opts) { o.SystemPromptFile = path }
}

// Client wraps the OpenAI chat completion API. It implements both
// ClientInterface and Analyzer.
type Client struct {
	client       openai.Client
	model        string
	systemPrompt string
}

// NewClient initializes a new GenAI client. The API key comes from options
// or the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}

	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}

	c := &Client{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		model:        model,
		systemPrompt: defaultSystemPrompt,
	}

	if cfg.SystemPromptFile != "" {
		if err := c.loadSystemPrompt(cfg.SystemPromptFile); err != nil {
			slog.Warn("genai.NewClient: using default system prompt", "error", err, "file", cfg.SystemPromptFile)
		}
	}

	slog.Debug("genai.NewClient: client created", "model", model, "promptFileSet", cfg.SystemPromptFile != "")
	return c, nil
}

// loadSystemPrompt replaces the built-in persona with file contents.
func (c *Client) loadSystemPrompt(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read system prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(content))
	if prompt == "" {
		return fmt.Errorf("system prompt file is empty: %s", path)
	}
	c.systemPrompt = prompt
	slog.Info("genai.loadSystemPrompt: system prompt loaded", "file", path, "length", len(prompt))
	return nil
}

// Chat generates a consultation reply. History is replayed in order,
// bounded to the most recent messages.
func (c *Client) Chat(ctx context.Context, message string, history []models.ChatMessage) string {
	messages := c.buildMessages(message, history)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("genai.Chat: completion failed", "error", err, "historyLen", len(history))
		return ApologyMessage
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.Chat: no choices returned")
		return ApologyMessage
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		slog.Warn("genai.Chat: empty completion content")
		return ApologyMessage
	}
	slog.Debug("genai.Chat: generated reply", "replyLength", len(reply))
	return reply
}

// buildMessages assembles system prompt + bounded history + current message.
func (c *Client) buildMessages(message string, history []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(c.systemPrompt),
	}

	recent := history
	if len(recent) > maxHistoryMessages {
		recent = recent[len(recent)-maxHistoryMessages:]
	}
	for _, msg := range recent {
		switch msg.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	messages = append(messages, openai.UserMessage(message))
	return messages
}

// analysisPromptFormat asks the model for a JSON object the engine can
// attach to the form-submission response.
const analysisPromptFormat = `다음 고객의 상담 정보를 바탕으로 최적의 고양이 행동풍부화 시설 배치를 추천해주세요.

=== 고객 정보 ===
%s

=== 추천 요구사항 ===
1. 고양이 마릿수, 나이, 품종, 성격을 고려
2. 공간 크기에 맞춘 배치
3. 안전성을 최우선으로 고려
4. 타공 불필요한 설치 방식 강조

다음 형식의 JSON으로만 응답하세요:
{"summary": "상담 요약", "recommendations": ["추천 사항"]}`

// AnalyzeConsultation runs the structured analysis over collected form data.
func (c *Client) AnalyzeConsultation(ctx context.Context, data map[string]interface{}) (*models.ConsultationAnalysis, error) {
	dataJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal consultation data: %w", err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(fmt.Sprintf(analysisPromptFormat, dataJSON)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analysis completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analysis returned no choices")
	}

	analysis, err := parseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Warn("genai.AnalyzeConsultation: unstructured model output, wrapping as summary", "error", err)
		return &models.ConsultationAnalysis{Summary: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
	}
	return analysis, nil
}

// parseAnalysis extracts the analysis JSON from model output, tolerating
// markdown code fences around the object.
func parseAnalysis(content string) (*models.ConsultationAnalysis, error) {
	trimmed := strings.TrimSpace(content)
	if idx := strings.Index(trimmed, "{"); idx > 0 {
		trimmed = trimmed[idx:]
	}
	if idx := strings.LastIndex(trimmed, "}"); idx >= 0 {
		trimmed = trimmed[:idx+1]
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, fmt.Errorf("analysis output is not valid JSON: %w", err)
	}

	analysis := &models.ConsultationAnalysis{Raw: raw}
	if s, ok := raw["summary"].(string); ok {
		analysis.Summary = s
	}
	if recs, ok := raw["recommendations"].([]interface{}); ok {
		for _, r := range recs {
			if s, ok := r.(string); ok {
				analysis.Recommendations = append(analysis.Recommendations, s)
			}
		}
	}
	return analysis, nil
}
