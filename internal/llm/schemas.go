package llm

import "github.com/pavelanni/lernbot/internal/model"

// The item schemas are written for strict structured output: every
// property is required and no extra properties are allowed. Non-empty
// strings use pattern because strict mode rejects minLength.

var stringList = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

var nonEmpty = map[string]any{"type": "string", "pattern": `\S`}

func choiceProperties(withPassage bool) map[string]any {
	props := map[string]any{
		"question_text":  nonEmpty,
		"options":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 2},
		"correct_answer": nonEmpty,
		"explanation":    map[string]any{"type": "string"},
		"topic":          map[string]any{"type": "string"},
	}
	if withPassage {
		props["passage"] = nonEmpty
	}
	return props
}

var comprehensionSchema = map[string]any{
	"type":                 "object",
	"properties":           choiceProperties(true),
	"required":             []any{"passage", "question_text", "options", "correct_answer", "explanation", "topic"},
	"additionalProperties": false,
}

var vocabularySchema = map[string]any{
	"type":                 "object",
	"properties":           choiceProperties(false),
	"required":             []any{"question_text", "options", "correct_answer", "explanation", "topic"},
	"additionalProperties": false,
}

var writingSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"question_text": nonEmpty,
		"requirements":  stringList,
		"word_count": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"min": map[string]any{"type": "integer", "minimum": 0},
				"max": map[string]any{"type": "integer", "minimum": 0},
			},
			"required":             []any{"min", "max"},
			"additionalProperties": false,
		},
		"example_points": stringList,
	},
	"required":             []any{"question_text", "requirements", "word_count", "example_points"},
	"additionalProperties": false,
}

var speakingSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"question_text":        nonEmpty,
		"preparation_time_sec": map[string]any{"type": "integer", "minimum": 0},
		"response_time_sec":    map[string]any{"type": "integer", "minimum": 0},
		"hints":                stringList,
	},
	"required":             []any{"question_text", "preparation_time_sec", "response_time_sec", "hints"},
	"additionalProperties": false,
}

// ExamItemSchema returns the shape a generated exam item of examType must
// have.
func ExamItemSchema(examType model.ExamType) *Schema {
	switch examType {
	case model.ExamSchreiben:
		return &Schema{Name: "exam-item-schreiben", Description: "A German writing task", Definition: writingSchema}
	case model.ExamSprechen:
		return &Schema{Name: "exam-item-sprechen", Description: "A German speaking task", Definition: speakingSchema}
	case model.ExamVokabular:
		return &Schema{Name: "exam-item-vokabular", Description: "A German vocabulary question", Definition: vocabularySchema}
	default:
		return &Schema{Name: "exam-item-mcq", Description: "A German comprehension question with a passage", Definition: comprehensionSchema}
	}
}
