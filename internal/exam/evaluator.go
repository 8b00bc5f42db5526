// Package exam implements exam scoring, question selection and the exam
// flow state machine.
package exam

import (
	"fmt"
	"math"
	"strings"

	"github.com/pavelanni/lernbot/internal/model"
)

// PassThreshold is the minimum percentage for a passing exam.
const PassThreshold = 60.0

const maxWeakAreas = 5

// sectionWeights are the mock-exam weights of each section.
var sectionWeights = map[string]float64{
	string(model.ExamLesen):     0.25,
	string(model.ExamHoren):     0.25,
	string(model.ExamSchreiben): 0.20,
	string(model.ExamSprechen):  0.20,
	string(model.ExamVokabular): 0.10,
}

const defaultSectionWeight = 0.20

// normalizeLetter uppercases and strips one trailing closing parenthesis so
// that "a", "A" and "A)" compare equal.
func normalizeLetter(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.TrimSuffix(s, ")")
}

// CheckAnswer reports whether userAnswer matches the canonical answer of q,
// along with an explanation to show the learner.
func CheckAnswer(q model.Question, userAnswer string) (bool, string) {
	correct := normalizeLetter(q.CorrectAnswer)
	isCorrect := normalizeLetter(userAnswer) == correct

	explanation := q.Data.Explanation
	if explanation == "" {
		if isCorrect {
			explanation = "Richtig! (Correct!)"
		} else {
			explanation = fmt.Sprintf("Die richtige Antwort ist %s. (The correct answer is %s.)", correct, correct)
		}
	}
	return isCorrect, explanation
}

// CalculateScore computes the percentage score and weak areas of answers.
// Incorrect answers without a topic are attributed to examType.
func CalculateScore(answers []model.Answer, examType model.ExamType) model.ScoreResult {
	result := model.ScoreResult{
		TotalQuestions: len(answers),
		WeakAreas:      []string{},
	}
	if len(answers) == 0 {
		return result
	}

	seen := make(map[string]bool)
	for _, a := range answers {
		if a.IsCorrect {
			result.CorrectAnswers++
			continue
		}
		topic := a.Topic
		if topic == "" {
			topic = string(examType)
		}
		if !seen[topic] {
			seen[topic] = true
			result.WeakAreas = append(result.WeakAreas, topic)
		}
	}
	if len(result.WeakAreas) > maxWeakAreas {
		result.WeakAreas = result.WeakAreas[:maxWeakAreas]
	}

	result.Score = round1(float64(result.CorrectAnswers) / float64(result.TotalQuestions) * 100)
	result.Passed = result.Score >= PassThreshold
	return result
}

// CalculateWeightedScore averages section scores by their mock-exam weight,
// normalized over the sections present so that missing sections do not
// lower the result.
func CalculateWeightedScore(sectionScores map[string]float64) float64 {
	var total, totalWeight float64
	for section, score := range sectionScores {
		w, ok := sectionWeights[section]
		if !ok {
			w = defaultSectionWeight
		}
		total += score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return round1(total / totalWeight)
}

// RecommendLevel suggests a level change based on an average score.
func RecommendLevel(current model.Level, averageScore float64) (model.Level, string) {
	idx := 0
	for i, l := range model.Levels {
		if l == current {
			idx = i
			break
		}
	}
	level := model.Levels[idx]

	switch {
	case averageScore >= 85 && idx < len(model.Levels)-1:
		next := model.Levels[idx+1]
		return next, fmt.Sprintf("Excellent! You're ready for %s. Consider leveling up!", next)
	case averageScore < 40 && idx > 0:
		prev := model.Levels[idx-1]
		return prev, fmt.Sprintf("You might benefit from reviewing %s material first.", prev)
	}
	return level, fmt.Sprintf("Continue practicing at %s level.", level)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
