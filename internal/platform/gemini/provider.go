package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/veilmoth/arcana-api/internal/config"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/generation"
	"google.golang.org/genai"
)

// Provider implements generation.QuestionClassifier,
// generation.QuestionAnalyzer and generation.ReadingComposer against the
// Gemini API. It never retries: the workflow owns the fallback decision
// and the worker owns retry-by-resubmission.
type Provider struct {
	logger *slog.Logger
	config config.LLMConfig
	client *genai.Client

	classifyTmpl *template.Template
	analyzeTmpl  *template.Template
	composeTmpl  *template.Template
}

// NewProvider creates a Provider from the LLM configuration.
func NewProvider(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ClassifierModel == "" || cfg.AnalyzerModel == "" || cfg.ComposerModel == "" || cfg.FallbackComposerModel == "" {
		return nil, fmt.Errorf("%w: all model names must be set", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	p := &Provider{
		logger: logger.With("component", "gemini_provider"),
		config: cfg,
		client: client,
	}

	for _, t := range []struct {
		name string
		src  string
		dst  **template.Template
	}{
		{"classify", classifyPromptTemplate, &p.classifyTmpl},
		{"analyze", analyzePromptTemplate, &p.analyzeTmpl},
		{"compose", composePromptTemplate, &p.composeTmpl},
	} {
		tmpl, err := template.New(t.name).Parse(t.src)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s prompt template: %v",
				generation.ErrInvalidConfig, t.name, err)
		}
		*t.dst = tmpl
	}

	return p, nil
}

// Classify screens a question against content policy.
func (p *Provider) Classify(ctx context.Context, question string) (generation.Verdict, error) {
	prompt, err := renderPrompt(p.classifyTmpl, struct{ Question string }{question})
	if err != nil {
		return generation.Verdict{}, err
	}

	var out struct {
		IsValid bool   `json:"is_valid"`
		Reason  string `json:"reason"`
	}
	if err := p.generateJSON(ctx, p.config.ClassifierModel, prompt, &out); err != nil {
		return generation.Verdict{}, err
	}

	if !out.IsValid && out.Reason == "" {
		out.Reason = "This question cannot be answered by a reading."
	}
	return generation.Verdict{IsValid: out.IsValid, Reason: out.Reason}, nil
}

// Analyze extracts mood, topic and period from the question.
func (p *Provider) Analyze(ctx context.Context, question string) (domain.QuestionAnalysis, error) {
	prompt, err := renderPrompt(p.analyzeTmpl, struct{ Question string }{question})
	if err != nil {
		return domain.QuestionAnalysis{}, err
	}

	var analysis domain.QuestionAnalysis
	if err := p.generateJSON(ctx, p.config.AnalyzerModel, prompt, &analysis); err != nil {
		return domain.QuestionAnalysis{}, err
	}
	if err := analysis.Validate(); err != nil {
		return domain.QuestionAnalysis{}, fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}
	return analysis, nil
}

// Compose writes the structured reading, on the model selected by the
// provider hint.
func (p *Provider) Compose(ctx context.Context, input generation.ComposeInput) (*domain.ComposedReading, error) {
	model := p.config.ComposerModel
	if input.Provider == generation.ProviderFallback {
		model = p.config.FallbackComposerModel
	}

	prompt, err := renderPrompt(p.composeTmpl, input)
	if err != nil {
		return nil, err
	}

	var reading domain.ComposedReading
	if err := p.generateJSON(ctx, model, prompt, &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// generateJSON makes one Gemini call and unmarshals the response text
// into out. Provider failures, safety blocks and unparseable output each
// map to their generation sentinel.
func (p *Provider) generateJSON(ctx context.Context, model, prompt string, out any) error {
	p.logger.DebugContext(ctx, "making Gemini API call",
		"model", model,
		"prompt_length", len(prompt))

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		p.logger.ErrorContext(ctx, "Gemini API call failed",
			"model", model,
			"error", err)
		return fmt.Errorf("%w: %v", generation.ErrProviderUnavailable, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return fmt.Errorf("%w: response blocked", generation.ErrContentBlocked)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}

	if err := parseModelJSON(text.String(), out); err != nil {
		p.logger.ErrorContext(ctx, "failed to parse Gemini response",
			"model", model,
			"error", err)
		return err
	}
	return nil
}

// parseModelJSON unmarshals model output, tolerating markdown code fences.
func parseModelJSON(text string, out any) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	return nil
}

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
