package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.1
	defaultMaxTokens      = 512
	defaultTimeoutSeconds = 30
	maxAttempts           = 3
)

const systemPrompt = `You answer questions using only the supplied context.
Reply with a JSON object {"answer": string, "is_answerable": boolean}.
If the context does not contain the answer, set "is_answerable" to false and "answer" to an empty string.
Keep the answer short: quote the relevant span of the context when possible.`

// GeminiConfig holds configuration for the Gemini answerer
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	TimeoutSeconds  int
	// BaseURL overrides the API endpoint, for tests and proxies
	BaseURL string
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", config.MaxOutputTokens)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// GeminiAnswerer implements QuestionAnswerer using Google's Gemini API
type GeminiAnswerer struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	timeout         time.Duration
	backoff         func(attempt int) time.Duration
}

var _ repositories.QuestionAnswerer = (*GeminiAnswerer)(nil)

// NewGeminiAnswerer creates a new Gemini client
func NewGeminiAnswerer(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiAnswerer, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g := &GeminiAnswerer{
		client:          client,
		logger:          logger,
		model:           config.Model,
		temperature:     config.Temperature,
		maxOutputTokens: config.MaxOutputTokens,
		timeout:         time.Duration(config.TimeoutSeconds) * time.Second,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
	}
	if g.model == "" {
		g.model = defaultModel
	}
	if g.temperature == 0 {
		g.temperature = defaultTemperature
	}
	if g.maxOutputTokens == 0 {
		g.maxOutputTokens = defaultMaxTokens
	}
	if g.timeout == 0 {
		g.timeout = defaultTimeoutSeconds * time.Second
	}

	logger.Info("Gemini answerer configured", zap.String("model", g.model))
	return g, nil
}

// Answer asks the model to answer question from passage
func (g *GeminiAnswerer) Answer(ctx context.Context, question, passage string) (repositories.Answer, error) {
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", passage, question)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   int32(g.maxOutputTokens),
		ResponseMIMEType:  "application/json",
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			select {
			case <-time.After(g.backoff(attempt)):
			case <-ctx.Done():
				return repositories.Answer{}, fmt.Errorf("gemini request cancelled: %w", ctx.Err())
			}
		}
	}
	if err != nil {
		return repositories.Answer{}, fmt.Errorf("gemini generate content failed: %w", err)
	}

	text := responseText(response)
	if text == "" {
		return repositories.Answer{}, errors.New("gemini returned no content")
	}

	return parseAnswer(text), nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// parseAnswer accepts the requested JSON shape and degrades to plain text
func parseAnswer(text string) repositories.Answer {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed struct {
		Answer       string `json:"answer"`
		IsAnswerable *bool  `json:"is_answerable"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed.IsAnswerable != nil {
		answer := strings.TrimSpace(parsed.Answer)
		return repositories.Answer{Text: answer, Answerable: *parsed.IsAnswerable && answer != ""}
	}

	if strings.EqualFold(cleaned, "unanswerable") {
		return repositories.Answer{}
	}
	return repositories.Answer{Text: cleaned, Answerable: true}
}
