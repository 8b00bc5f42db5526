package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/lernbot/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxResponseRunes = 10000

// Template names.
const (
	TutorSystem  = "tutor_system"
	EvalWriting  = "eval_writing"
	EvalSpeaking = "eval_speaking"
)

var funcs = template.FuncMap{"join": strings.Join}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

// TutorData holds template data for the tutoring system prompt.
type TutorData struct {
	Level      model.Level
	Lang       string
	SkillFocus string
	WeakAreas  []string
}

// EvalData holds template data for writing and speaking evaluation prompts.
type EvalData struct {
	Level    model.Level
	Task     string
	Response string
}

// GenerateData holds template data for exam item generation prompts.
type GenerateData struct {
	Level model.Level
	Topic string
}

// Load parses the embedded templates. It is safe to call more than once.
func Load() error {
	return LoadFS(templateFS)
}

// LoadFS parses templates/*.tmpl from fsys. Only the first call has effect.
func LoadFS(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		names, err := fs.Glob(fsys, "templates/*.tmpl")
		if err != nil {
			loadErr = fmt.Errorf("list prompt templates: %w", err)
			return
		}
		for _, file := range names {
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			name := strings.TrimSuffix(strings.TrimPrefix(file, "templates/"), ".tmpl")
			tmpl, err := template.New(name).Funcs(funcs).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

func render(name string, data any) (string, error) {
	if err := Load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", errors.New("unknown prompt template: " + name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// BuildTutorPrompt builds the tutoring system prompt. skill is empty for
// free conversation.
func BuildTutorPrompt(level model.Level, lang model.Lang, skill model.Skill, weakAreas []string) (string, error) {
	return render(TutorSystem, TutorData{
		Level:      level,
		Lang:       capitalize(string(lang)),
		SkillFocus: capitalize(string(skill)),
		WeakAreas:  weakAreas,
	})
}

// BuildEvalPrompt builds a writing or speaking evaluation prompt.
func BuildEvalPrompt(kind model.EvaluationKind, level model.Level, task, response string) (string, error) {
	name := EvalWriting
	if kind == model.EvaluationSpeaking {
		name = EvalSpeaking
	}
	return render(name, EvalData{
		Level:    level,
		Task:     task,
		Response: sanitizeAnswer(response),
	})
}

// BuildGeneratePrompt builds an exam item generation prompt. Unknown exam
// types fall back to the vocabulary prompt.
func BuildGeneratePrompt(level model.Level, examType model.ExamType, topic string) (string, error) {
	if err := Load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	name := "gen_" + string(examType)
	if _, ok := templates[name]; !ok {
		name = "gen_" + string(model.ExamVokabular)
	}
	return render(name, GenerateData{Level: level, Topic: topic})
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxResponseRunes {
		runes := []rune(answer)
		answer = string(runes[:maxResponseRunes]) + "\n\n[Answer truncated due to length]"
	}

	return answer
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
