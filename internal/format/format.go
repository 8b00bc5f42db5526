// Package format renders chat message text.
package format

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/model"
)

// DateLayout is the day-month-year form used in user-facing dates.
const DateLayout = "02 January 2006"

const (
	listLimit = 3
	barWidth  = 10
)

// Bar renders a score in [0,100] as a fixed-width bar.
func Bar(score float64) string {
	filled := int(score / 10)
	filled = max(0, min(barWidth, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}

func stars(score float64) string {
	n := max(0, min(4, int(score/25)))
	return strings.Repeat("*", n) + strings.Repeat(".", 4-n)
}

func bullets(b *strings.Builder, items []string, limit int) {
	for i, it := range items {
		if i == limit {
			break
		}
		fmt.Fprintf(b, "- %s\n", it)
	}
}

// Help is the command and feature overview.
func Help(ctx context.Context) string {
	return i18n.T(ctx, "HelpText")
}

// ExamQuestion renders question n of total, with its passage when present.
func ExamQuestion(ctx context.Context, n, total int, q model.Question) string {
	var b strings.Builder
	b.WriteString(i18n.Td(ctx, "QuestionHeader", map[string]any{"N": n, "Total": total}))
	b.WriteString("\n\n")
	if q.Data.Passage != "" {
		fmt.Fprintf(&b, "%s\n_%s_\n\n%s\n", i18n.T(ctx, "PassageLabel"), q.Data.Passage, i18n.T(ctx, "QuestionLabel"))
	}
	b.WriteString(q.Prompt())
	return b.String()
}

// AnswerFeedback reports whether an objective answer was right.
func AnswerFeedback(ctx context.Context, correct bool, explanation string) string {
	verdict := i18n.T(ctx, "AnswerWrong")
	if correct {
		verdict = i18n.T(ctx, "AnswerRight")
	}
	return verdict + "\n\n" + explanation
}

// ExamResults renders the outcome of an objective exam.
func ExamResults(ctx context.Context, examType model.ExamType, r model.ScoreResult) string {
	var b strings.Builder
	b.WriteString(i18n.Td(ctx, "ResultsHeader", map[string]any{"Type": strings.ToUpper(string(examType))}))
	fmt.Fprintf(&b, "\n\n%s %.1f%%\n%s\n\n", i18n.T(ctx, "ScoreLabel"), r.Score, Bar(r.Score))
	fmt.Fprintf(&b, "%s %d/%d\n", i18n.T(ctx, "CorrectAnswersLabel"), r.CorrectAnswers, r.TotalQuestions)
	status := i18n.T(ctx, "StatusNeedsImprovement")
	if r.Passed {
		status = i18n.T(ctx, "StatusPassed")
	}
	fmt.Fprintf(&b, "%s %s\n\n", i18n.T(ctx, "StatusLabel"), status)
	if len(r.WeakAreas) > 0 {
		b.WriteString(i18n.T(ctx, "AreasToReview") + "\n")
		bullets(&b, r.WeakAreas, listLimit)
	}
	if r.Passed {
		b.WriteString("\n" + i18n.T(ctx, "PassedEncouragement"))
	} else {
		b.WriteString("\n" + i18n.T(ctx, "FailedEncouragement"))
	}
	return b.String()
}

// WritingTask renders a schreiben prompt.
func WritingTask(ctx context.Context, level model.Level, q model.Question) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s %s\n\n%s\n%s\n\n", i18n.T(ctx, "WritingTaskHeader"),
		i18n.T(ctx, "LevelLabel"), level, i18n.T(ctx, "TaskLabel"), q.Prompt())
	if len(q.Data.Requirements) > 0 {
		b.WriteString(i18n.T(ctx, "RequirementsLabel") + "\n")
		bullets(&b, q.Data.Requirements, len(q.Data.Requirements))
		b.WriteString("\n")
	}
	wc := model.WordCount{Min: 50, Max: 100}
	if q.Data.WordCount != nil {
		wc = *q.Data.WordCount
	}
	b.WriteString(i18n.Td(ctx, "WordCountRange", map[string]any{"Min": wc.Min, "Max": wc.Max}))
	b.WriteString("\n\n" + i18n.T(ctx, "WritingInstructions"))
	return b.String()
}

// SpeakingTask renders a sprechen prompt.
func SpeakingTask(ctx context.Context, level model.Level, q model.Question, voice bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s %s\n\n%s\n%s\n\n", i18n.T(ctx, "SpeakingTaskHeader"),
		i18n.T(ctx, "LevelLabel"), level, i18n.T(ctx, "TaskLabel"), q.Prompt())
	if len(q.Data.Hints) > 0 {
		b.WriteString(i18n.T(ctx, "HintsLabel") + "\n")
		bullets(&b, q.Data.Hints, len(q.Data.Hints))
		b.WriteString("\n")
	}
	if voice {
		b.WriteString(i18n.T(ctx, "SpeakingSendVoice"))
	} else {
		b.WriteString(i18n.T(ctx, "SpeakingTypeInstead"))
	}
	return b.String()
}

func scoreLine(ctx context.Context, b *strings.Builder, msgID string, e *model.EvaluationResult, key string) {
	fmt.Fprintf(b, "- %s: %.0f%%\n", i18n.T(ctx, msgID), e.Score(key))
}

func corrections(ctx context.Context, b *strings.Builder, mistakes []model.Mistake, explain bool) {
	if len(mistakes) == 0 {
		return
	}
	b.WriteString(i18n.T(ctx, "CorrectionsLabel") + "\n")
	for i, m := range mistakes {
		if i == listLimit {
			break
		}
		fmt.Fprintf(b, "- %q -> %q\n", m.Original, m.Correction)
		if explain && m.Explanation != "" {
			fmt.Fprintf(b, "  _%s_\n", m.Explanation)
		}
	}
	b.WriteString("\n")
}

// WritingEvaluation renders graded writing feedback.
func WritingEvaluation(ctx context.Context, e *model.EvaluationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s %.0f%%\n\n%s\n", i18n.T(ctx, "WritingEvalHeader"),
		i18n.T(ctx, "OverallScoreLabel"), e.OverallScore, i18n.T(ctx, "BreakdownLabel"))
	scoreLine(ctx, &b, "CriterionGrammar", e, model.ScoreGrammar)
	scoreLine(ctx, &b, "CriterionVocabulary", e, model.ScoreVocabulary)
	scoreLine(ctx, &b, "CriterionTaskCompletion", e, model.ScoreTaskCompletion)
	scoreLine(ctx, &b, "CriterionCoherence", e, model.ScoreCoherence)
	b.WriteString("\n")
	if len(e.Strengths) > 0 {
		b.WriteString(i18n.T(ctx, "StrengthsLabel") + "\n")
		bullets(&b, e.Strengths, listLimit)
		b.WriteString("\n")
	}
	corrections(ctx, &b, e.Mistakes, true)
	if len(e.Suggestions) > 0 {
		b.WriteString(i18n.T(ctx, "SuggestionsLabel") + "\n")
		bullets(&b, e.Suggestions, 2)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SpeakingEvaluation renders graded speaking feedback.
func SpeakingEvaluation(ctx context.Context, e *model.EvaluationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s %.0f%%\n\n%s\n", i18n.T(ctx, "SpeakingEvalHeader"),
		i18n.T(ctx, "OverallScoreLabel"), e.OverallScore, i18n.T(ctx, "BreakdownLabel"))
	scoreLine(ctx, &b, "CriterionGrammar", e, model.ScoreGrammar)
	scoreLine(ctx, &b, "CriterionVocabulary", e, model.ScoreVocabulary)
	scoreLine(ctx, &b, "CriterionTaskCompletion", e, model.ScoreTaskCompletion)
	fluency := model.ScoreFluency
	if _, ok := e.Scores[model.ScoreFluencySentiment]; ok {
		fluency = model.ScoreFluencySentiment
	}
	scoreLine(ctx, &b, "CriterionFluency", e, fluency)
	if _, ok := e.Scores[model.ScoreAccentPronunciation]; ok {
		scoreLine(ctx, &b, "CriterionPronunciation", e, model.ScoreAccentPronunciation)
	}
	b.WriteString("\n")
	if e.SentimentAnalysis != "" {
		fmt.Fprintf(&b, "%s\n%s\n\n", i18n.T(ctx, "SentimentLabel"), e.SentimentAnalysis)
	}
	if e.AccentFeedback != "" {
		fmt.Fprintf(&b, "%s\n%s\n\n", i18n.T(ctx, "AccentLabel"), e.AccentFeedback)
	}
	if len(e.Strengths) > 0 {
		b.WriteString(i18n.T(ctx, "StrengthsLabel") + "\n")
		bullets(&b, e.Strengths, listLimit)
		b.WriteString("\n")
	}
	if len(e.PronunciationTips) > 0 {
		b.WriteString(i18n.T(ctx, "PronunciationTipsLabel") + "\n")
		bullets(&b, e.PronunciationTips, listLimit)
		b.WriteString("\n")
	}
	corrections(ctx, &b, e.Mistakes, false)
	return strings.TrimRight(b.String(), "\n")
}

// ProgressSummary renders aggregated statistics. recommendation is appended
// when not empty.
func ProgressSummary(ctx context.Context, stats model.Statistics, level model.Level, recommendation string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s %s\n%s %.0f%%\n%s\n\n%s\n", i18n.T(ctx, "ProgressHeader"),
		i18n.T(ctx, "LevelLabel"), level,
		i18n.T(ctx, "OverallScoreLabel"), stats.AverageScore, Bar(stats.AverageScore),
		i18n.T(ctx, "SkillsLabel"))

	if len(stats.SkillScores) == 0 {
		b.WriteString(i18n.T(ctx, "NoProgressYet") + "\n")
	} else {
		skills := make([]string, 0, len(stats.SkillScores))
		for s := range stats.SkillScores {
			skills = append(skills, s)
		}
		sort.Strings(skills)
		for _, s := range skills {
			score := stats.SkillScores[s]
			fmt.Fprintf(&b, "%s: %.0f%% %s\n", capitalize(s), score, stars(score))
		}
	}

	fmt.Fprintf(&b, "\n%s %d\n", i18n.T(ctx, "TotalActivitiesLabel"), stats.TotalActivities)
	if len(stats.WeakAreas) > 0 {
		b.WriteString("\n" + i18n.T(ctx, "AreasToImprove") + "\n")
		bullets(&b, stats.WeakAreas, listLimit)
	}
	if recommendation != "" {
		b.WriteString("\n" + recommendation + "\n")
	}
	b.WriteString("\n" + i18n.T(ctx, "ProgressTip"))
	return b.String()
}

// WeakAreas lists the areas a learner should practice.
func WeakAreas(ctx context.Context, areas []string) string {
	if len(areas) == 0 {
		return i18n.T(ctx, "NoWeakAreas")
	}
	var b strings.Builder
	b.WriteString(i18n.T(ctx, "WeakAreasHeader") + "\n\n")
	for i, a := range areas {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, a)
	}
	b.WriteString("\n" + i18n.T(ctx, "WeakAreasHint"))
	return b.String()
}

// ExamHistory lists completed attempts with a pass mark.
func ExamHistory(ctx context.Context, attempts []model.ExamAttempt) string {
	if len(attempts) == 0 {
		return i18n.T(ctx, "NoExamHistory")
	}
	var b strings.Builder
	b.WriteString(i18n.T(ctx, "ExamHistoryHeader") + "\n\n")
	for _, a := range attempts {
		var score float64
		if a.Score != nil {
			score = *a.Score
		}
		mark := "x"
		if score >= 60 {
			mark = "+"
		}
		date := "N/A"
		if a.CompletedAt != nil {
			date = a.CompletedAt.Format(time.DateOnly)
		}
		fmt.Fprintf(&b, "[%s] %s: %.0f%% (%s)\n", mark, capitalize(string(a.ExamType)), score, date)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SubscriptionInfo renders the subscription state for the settings view.
func SubscriptionInfo(ctx context.Context, expiry *time.Time, active bool) string {
	if expiry == nil {
		return i18n.T(ctx, "SubscriptionNotActive")
	}
	data := map[string]any{"Expiry": expiry.Format(DateLayout)}
	if active {
		return i18n.Td(ctx, "SubscriptionActiveInfo", data)
	}
	return i18n.Td(ctx, "SubscriptionExpiredInfo", data)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
