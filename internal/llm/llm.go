package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/lernbot/internal/llm/prompts"
	"github.com/pavelanni/lernbot/internal/model"
)

const (
	examinerSystem  = "You are a German language examiner. Respond only with valid JSON."
	generatorSystem = "You are a German exam question generator. Respond only with valid JSON."
)

// Sampling settings per call kind.
const (
	chatTemperature     = 0.7
	chatMaxTokens       = 800
	evalTemperature     = 0.3
	evalMaxTokens       = 1500
	generateTemperature = 0.8
	generateMaxTokens   = 800
)

// ChatInput is one tutoring turn. History holds the prior turns followed by
// the new user message.
type ChatInput struct {
	Level     model.Level
	Lang      model.Lang
	Skill     model.Skill
	WeakAreas []string
	History   []Message
}

// Client is the text-generation oracle used by the learning flows. Every
// call is bounded by the configured timeout.
type Client struct {
	provider Provider
	timeout  time.Duration
}

// New creates an oracle client. A non-positive timeout uses the default.
func New(p Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Client{provider: p, timeout: timeout}
}

func (c *Client) generate(ctx context.Context, purpose string, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(WithPurpose(ctx, purpose), c.timeout)
	defer cancel()

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	raw := resp.Text()
	slog.Debug("LLM response", "purpose", purpose, "raw", raw)
	return raw, nil
}

// Chat returns the tutor's reply to the last message of in.History.
func (c *Client) Chat(ctx context.Context, in ChatInput) (string, error) {
	system, err := prompts.BuildTutorPrompt(in.Level, in.Lang, in.Skill, in.WeakAreas)
	if err != nil {
		return "", fmt.Errorf("build tutor prompt: %w", err)
	}
	return c.generate(ctx, PurposeChat, Request{
		System:      system,
		Messages:    in.History,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	})
}

// EvaluateWriting asks for a JSON assessment of a writing response.
func (c *Client) EvaluateWriting(ctx context.Context, text, task string, level model.Level) (string, error) {
	return c.evaluate(ctx, PurposeWriting, model.EvaluationWriting, text, task, level)
}

// EvaluateSpeaking asks for a JSON assessment of a transcribed spoken response.
func (c *Client) EvaluateSpeaking(ctx context.Context, text, task string, level model.Level) (string, error) {
	return c.evaluate(ctx, PurposeSpeaking, model.EvaluationSpeaking, text, task, level)
}

func (c *Client) evaluate(ctx context.Context, purpose string, kind model.EvaluationKind, text, task string, level model.Level) (string, error) {
	prompt, err := prompts.BuildEvalPrompt(kind, level, task, text)
	if err != nil {
		return "", fmt.Errorf("build %s prompt: %w", kind, err)
	}
	return c.generate(ctx, purpose, Request{
		System:      examinerSystem,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:   evalMaxTokens,
		Temperature: evalTemperature,
	})
}

// GenerateExamItem asks for a new exam item as structured JSON validated
// against ExamItemSchema. topic may be empty.
func (c *Client) GenerateExamItem(ctx context.Context, level model.Level, examType model.ExamType, topic string) (string, error) {
	prompt, err := prompts.BuildGeneratePrompt(level, examType, topic)
	if err != nil {
		return "", fmt.Errorf("build generation prompt: %w", err)
	}
	return c.generate(ctx, PurposeGenerate, Request{
		System:      generatorSystem,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Schema:      ExamItemSchema(examType),
		MaxTokens:   generateMaxTokens,
		Temperature: generateTemperature,
	})
}
