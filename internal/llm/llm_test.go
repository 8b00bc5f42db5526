package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/lernbot/internal/model"
)

// blockingProvider waits for the context to end.
type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingProvider) ModelID() string { return "blocking" }

func TestClientChat(t *testing.T) {
	mock := NewMockProvider(Text("Hallo! Wie geht's?"))
	c := New(mock, time.Second)

	got, err := c.Chat(context.Background(), ChatInput{
		Level:     model.LevelA1,
		Lang:      model.LangEnglish,
		Skill:     model.SkillGrammar,
		WeakAreas: []string{"artikel"},
		History:   []Message{{Role: RoleUser, Content: "Hallo"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "Hallo! Wie geht's?" {
		t.Errorf("Chat() = %q, want canned reply", got)
	}

	req := mock.LastCall()
	if !strings.Contains(req.System, "Skill focus: Grammar") {
		t.Error("system prompt should carry the skill focus")
	}
	if !strings.Contains(req.System, "artikel") {
		t.Error("system prompt should carry weak areas")
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "Hallo" {
		t.Errorf("Messages = %+v, want the history", req.Messages)
	}
	if req.Temperature != chatTemperature || req.MaxTokens != chatMaxTokens {
		t.Errorf("sampling = (%v, %d), want (%v, %d)", req.Temperature, req.MaxTokens, chatTemperature, chatMaxTokens)
	}
}

func TestClientEvaluate(t *testing.T) {
	tests := []struct {
		name string
		call func(*Client) (string, error)
		want string
	}{
		{"writing", func(c *Client) (string, error) {
			return c.EvaluateWriting(context.Background(), "Ich heiße Abebe.", "Stellen Sie sich vor.", model.LevelA1)
		}, `"coherence"`},
		{"speaking", func(c *Client) (string, error) {
			return c.EvaluateSpeaking(context.Background(), "Ich heiße Abebe.", "Stellen Sie sich vor.", model.LevelA1)
		}, `"fluency_sentiment"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(Text(`{"overall_score": 80}`))
			got, err := tt.call(New(mock, time.Second))
			if err != nil {
				t.Fatalf("evaluate error = %v", err)
			}
			if got != `{"overall_score": 80}` {
				t.Errorf("evaluate = %q, want raw response", got)
			}
			req := mock.LastCall()
			if req.System != examinerSystem {
				t.Errorf("System = %q, want examiner system line", req.System)
			}
			if !strings.Contains(req.Messages[0].Content, tt.want) {
				t.Errorf("prompt should contain %s", tt.want)
			}
			if req.Temperature != evalTemperature {
				t.Errorf("Temperature = %v, want %v", req.Temperature, evalTemperature)
			}
		})
	}
}

const speakingItem = `{"question_text": "Erzählen Sie von Ihrer letzten Reise.", "preparation_time_sec": 30, "response_time_sec": 60, "hints": ["Ich bin nach ... gefahren."]}`

func TestClientGenerateExamItem(t *testing.T) {
	mock := NewMockProvider(Text("```json\n" + speakingItem + "\n```"))
	c := New(mock, time.Second)

	got, err := c.GenerateExamItem(context.Background(), model.LevelB1, model.ExamSprechen, "Reisen")
	if err != nil {
		t.Fatalf("GenerateExamItem() error = %v", err)
	}
	if got != speakingItem {
		t.Errorf("GenerateExamItem() = %q, want the unfenced item", got)
	}
	req := mock.LastCall()
	if req.System != generatorSystem {
		t.Errorf("System = %q, want generator system line", req.System)
	}
	if !strings.Contains(req.Messages[0].Content, "Topic: Reisen") {
		t.Error("prompt should contain the topic")
	}
	if req.Schema == nil || req.Schema.Name != "exam-item-sprechen" {
		t.Errorf("Schema = %+v, want the speaking item schema", req.Schema)
	}
}

func TestClientGenerateExamItem_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		resp    MockResponse
		wantErr any
	}{
		{"off schema", Text(`{"question_text": "?"}`), new(*ErrInvalidResponse)},
		{"truncated", MockResponse{Content: []byte(`{"question_text": "Erz`), StopReason: "max_tokens"}, new(*ErrMaxTokensExceeded)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(tt.resp, Text(speakingItem))
			c := New(mock, time.Second)
			_, err := c.GenerateExamItem(context.Background(), model.LevelA1, model.ExamSprechen, "")
			if !errors.As(err, tt.wantErr) {
				t.Errorf("GenerateExamItem() error = %v, want %T", err, tt.wantErr)
			}
		})
	}
}

func TestClientTextCallsSendNoSchema(t *testing.T) {
	mock := NewMockProvider(Text("Hallo"), Text(`{}`), Text(`{}`))
	c := New(mock, time.Second)
	ctx := context.Background()

	if _, err := c.Chat(ctx, ChatInput{Level: model.LevelA1}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.EvaluateWriting(ctx, "x", "y", model.LevelA1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.EvaluateSpeaking(ctx, "x", "y", model.LevelA1); err != nil {
		t.Fatal(err)
	}
	for i, req := range mock.Calls {
		if req.Schema != nil {
			t.Errorf("call %d sent schema %q; free-form replies are parsed leniently", i, req.Schema.Name)
		}
	}
}

func TestClientPropagatesErrors(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrRateLimit{Err: errors.New("429")}})
	_, err := New(mock, time.Second).Chat(context.Background(), ChatInput{Level: model.LevelA1})

	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Errorf("Chat() error = %v, want *ErrRateLimit", err)
	}
}

func TestClientTimeout(t *testing.T) {
	c := New(blockingProvider{}, 20*time.Millisecond)
	_, err := c.EvaluateWriting(context.Background(), "x", "y", model.LevelA1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("EvaluateWriting() error = %v, want deadline exceeded", err)
	}
}
