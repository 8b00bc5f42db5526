package store

import (
	"context"
	"testing"
)

const questionFile = `[
  {"level": "A1", "exam_type": "lesen", "question_text": "Wo wohnt Anna?", "correct_answer": "B",
   "question_data": {"options": ["A) Hamburg", "B) Berlin"]}, "difficulty": 2},
  {"level": "A1", "exam_type": "vokabular", "question_text": "der Hund", "correct_answer": "A", "difficulty": 4}
]`

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	res, err := ImportFile(ctx, s, "a1.json", []byte(questionFile))
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if res.Imported != 2 || res.Skipped {
		t.Errorf("ImportFile() = %+v, want 2 imported", res)
	}
	if len(res.SHA256) != 64 {
		t.Errorf("SHA256 = %q, want hex digest", res.SHA256)
	}

	res, err = ImportFile(ctx, s, "a1.json", []byte(questionFile))
	if err != nil {
		t.Fatalf("second ImportFile() error = %v", err)
	}
	if !res.Skipped || res.Imported != 0 {
		t.Errorf("second ImportFile() = %+v, want skipped", res)
	}
	if n, _ := s.QuestionCount(ctx); n != 2 {
		t.Errorf("QuestionCount() = %d, want 2", n)
	}

	res, err = ImportFile(ctx, s, "a1.json", []byte(questionFile[:len(questionFile)-2]+"]"))
	if err != nil {
		t.Fatalf("changed ImportFile() error = %v", err)
	}
	if res.Skipped {
		t.Error("changed file was skipped")
	}
}

func TestImportFile_Invalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name, data string
	}{
		{"not json", `{"level":`},
		{"bad level", `[{"level": "C2", "exam_type": "lesen", "question_text": "x"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ImportFile(ctx, s, tt.name+".json", []byte(tt.data)); err == nil {
				t.Error("ImportFile() error = nil, want error")
			}
			if sum, _ := s.GetImportedFileHash(ctx, tt.name+".json"); sum != "" {
				t.Errorf("hash recorded for failed import: %q", sum)
			}
		})
	}
}
