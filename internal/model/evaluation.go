package model

// EvaluationKind selects the rubric and degraded default of an evaluation.
type EvaluationKind string

const (
	EvaluationWriting  EvaluationKind = "writing"
	EvaluationSpeaking EvaluationKind = "speaking"
)

// Sub-score keys reported by the evaluators.
const (
	ScoreGrammar             = "grammar"
	ScoreVocabulary          = "vocabulary"
	ScoreTaskCompletion      = "task_completion"
	ScoreCoherence           = "coherence"
	ScoreFluency             = "fluency"
	ScoreFluencySentiment    = "fluency_sentiment"
	ScoreAccentPronunciation = "accent_pronunciation"
)

// Mistake is one correction suggested by an evaluator.
type Mistake struct {
	Original    string `json:"original"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation,omitempty"`
}

// EvaluationResult is the structured assessment of a subjective response.
type EvaluationResult struct {
	Scores            map[string]float64 `json:"scores"`
	OverallScore      float64            `json:"overall_score"`
	Mistakes          []Mistake          `json:"mistakes"`
	Strengths         []string           `json:"strengths"`
	Suggestions       []string           `json:"suggestions"`
	CorrectedText     *string            `json:"corrected_text,omitempty"`
	SentimentAnalysis string             `json:"sentiment_analysis,omitempty"`
	AccentFeedback    string             `json:"accent_feedback,omitempty"`
	PronunciationTips []string           `json:"pronunciation_tips,omitempty"`

	// Degraded marks a substituted default rather than a real assessment.
	Degraded bool `json:"-"`
}

// Score returns the named sub-score, or 0 when absent.
func (e *EvaluationResult) Score(name string) float64 {
	if e == nil || e.Scores == nil {
		return 0
	}
	return e.Scores[name]
}
