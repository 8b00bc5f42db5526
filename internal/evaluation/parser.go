// Package evaluation extracts structured results from free-form oracle output.
package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pavelanni/lernbot/internal/model"
)

const fence = "```"

// ErrEmpty is returned when no JSON payload could be located.
var ErrEmpty = errors.New("empty evaluation payload")

// ExtractJSON locates the JSON payload in raw oracle text. A ```json fenced
// block wins over a generic fence; without fences the raw text is used.
func ExtractJSON(raw string) string {
	content := raw
	if _, after, ok := strings.Cut(raw, fence+"json"); ok {
		content, _, _ = strings.Cut(after, fence)
	} else if _, after, ok := strings.Cut(raw, fence); ok {
		content, _, _ = strings.Cut(after, fence)
	}
	return strings.TrimSpace(content)
}

// Decode extracts and unmarshals the JSON payload of raw into v.
func Decode(raw string, v any) error {
	content := ExtractJSON(raw)
	if content == "" {
		return ErrEmpty
	}
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("decode evaluation: %w", err)
	}
	return nil
}

// ParseWriting parses a writing evaluation, substituting the degraded
// default on failure.
func ParseWriting(raw string) model.EvaluationResult {
	return parse(raw, model.EvaluationWriting)
}

// ParseSpeaking parses a speaking evaluation, substituting the degraded
// default on failure.
func ParseSpeaking(raw string) model.EvaluationResult {
	return parse(raw, model.EvaluationSpeaking)
}

// Parse dispatches on kind.
func Parse(raw string, kind model.EvaluationKind) model.EvaluationResult {
	return parse(raw, kind)
}

// parse keeps every field of the payload that has a usable shape. Only a
// payload that is not a JSON object falls back to the default.
func parse(raw string, kind model.EvaluationKind) model.EvaluationResult {
	var fields map[string]json.RawMessage
	if err := Decode(raw, &fields); err != nil || fields == nil {
		if err == nil {
			err = ErrEmpty
		}
		slog.Error("JSON parsing error in evaluation", "kind", kind, "error", err)
		return Default(kind)
	}

	result := model.EvaluationResult{
		Scores:            scores(fields["scores"]),
		Mistakes:          mistakes(fields["mistakes"]),
		Strengths:         stringList(fields["strengths"]),
		Suggestions:       stringList(fields["suggestions"]),
		SentimentAnalysis: text(fields["sentiment_analysis"]),
		AccentFeedback:    text(fields["accent_feedback"]),
	}
	if v, ok := number(fields["overall_score"]); ok {
		result.OverallScore = min(max(v, 0), 100)
	}
	if v, ok := fields["corrected_text"]; ok {
		var corrected string
		if json.Unmarshal(v, &corrected) == nil {
			result.CorrectedText = &corrected
		}
	}
	if v, ok := fields["pronunciation_tips"]; ok {
		result.PronunciationTips = stringList(v)
	}
	return result
}

// number accepts a JSON number or a numeric string.
func number(v json.RawMessage) (float64, bool) {
	if v == nil {
		return 0, false
	}
	var f float64
	if json.Unmarshal(v, &f) == nil {
		return f, true
	}
	var s string
	if json.Unmarshal(v, &s) != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	return f, err == nil
}

func scores(v json.RawMessage) map[string]float64 {
	out := map[string]float64{}
	var entries map[string]json.RawMessage
	if json.Unmarshal(v, &entries) != nil {
		return out
	}
	for name, raw := range entries {
		if f, ok := number(raw); ok {
			out[name] = f
		}
	}
	return out
}

// mistakes keeps well-formed entries; a bare string becomes the explanation.
func mistakes(v json.RawMessage) []model.Mistake {
	out := []model.Mistake{}
	var entries []json.RawMessage
	if json.Unmarshal(v, &entries) != nil {
		return out
	}
	for _, raw := range entries {
		var m model.Mistake
		if json.Unmarshal(raw, &m) == nil {
			out = append(out, m)
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			out = append(out, model.Mistake{Explanation: s})
		}
	}
	return out
}

func stringList(v json.RawMessage) []string {
	out := []string{}
	var entries []json.RawMessage
	if json.Unmarshal(v, &entries) != nil {
		return out
	}
	for _, raw := range entries {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

func text(v json.RawMessage) string {
	var s string
	_ = json.Unmarshal(v, &s)
	return s
}

// Default returns the fixed zero-scored result used whenever an evaluation
// cannot be obtained or parsed.
func Default(kind model.EvaluationKind) model.EvaluationResult {
	result := model.EvaluationResult{
		Scores: map[string]float64{
			model.ScoreGrammar:        0,
			model.ScoreVocabulary:     0,
			model.ScoreTaskCompletion: 0,
		},
		OverallScore: 0,
		Mistakes:     []model.Mistake{},
		Strengths:    []string{"Unable to evaluate at this time"},
		Suggestions:  []string{"Please try again later"},
		Degraded:     true,
	}
	if kind == model.EvaluationSpeaking {
		result.Scores[model.ScoreFluency] = 0
		result.PronunciationTips = []string{}
	} else {
		result.Scores[model.ScoreCoherence] = 0
		empty := ""
		result.CorrectedText = &empty
	}
	return result
}
