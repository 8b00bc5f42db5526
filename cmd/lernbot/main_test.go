package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/pavelanni/lernbot/internal/keyboard"
	"github.com/pavelanni/lernbot/internal/llm"
	"github.com/pavelanni/lernbot/internal/session"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want session.Event
	}{
		{"/start", session.Event{Kind: session.KindCommand, Command: "start"}},
		{"!menu_exam", session.Event{Kind: session.KindButton, Payload: "menu_exam"}},
		{"Ich wohne in Berlin.", session.Event{Kind: session.KindText, Text: "Ich wohne in Berlin."}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := parseLine(tt.line); got != tt.want {
				t.Errorf("parseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

type recordingBot struct {
	events []session.Event
}

func (b *recordingBot) Handle(_ context.Context, ev session.Event) session.Reply {
	b.events = append(b.events, ev)
	return session.Reply{
		Text:    "got " + string(ev.Kind),
		Buttons: keyboard.Layout{{{Text: "Exam", Payload: "menu_exam"}, {Text: "Help", Payload: "menu_help"}}},
	}
}

func TestChatLoop(t *testing.T) {
	bot := &recordingBot{}
	var out bytes.Buffer
	in := strings.NewReader("/start\n\n!menu_exam\nHallo\n")

	err := chatLoop(context.Background(), bot, 7, session.Profile{FirstName: "Selam"}, in, &out)
	if err != nil {
		t.Fatalf("chatLoop() error = %v", err)
	}
	if len(bot.events) != 3 {
		t.Fatalf("got %d events, want 3", len(bot.events))
	}
	for _, ev := range bot.events {
		if ev.UserID != 7 || ev.Profile.FirstName != "Selam" {
			t.Errorf("event = %+v, want user 7 with profile", ev)
		}
	}
	if !strings.Contains(out.String(), "[Exam] !menu_exam   [Help] !menu_help") {
		t.Errorf("output missing buttons:\n%s", out.String())
	}
}

func clearKeys(t *testing.T) {
	for _, k := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLLMConfig(t *testing.T) {
	clearKeys(t)
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	tests := []struct {
		name      string
		flags     map[string]any
		wantProv  string
		wantErr   bool
		checkFunc func(llm.Config) bool
	}{
		{
			name:     "discovered",
			wantProv: llm.ProviderAnthropic,
			checkFunc: func(c llm.Config) bool {
				return c.Anthropic.APIKey == "env-key"
			},
		},
		{
			name:     "model override",
			flags:    map[string]any{"llm-model": "claude-sonnet"},
			wantProv: llm.ProviderAnthropic,
			checkFunc: func(c llm.Config) bool {
				return c.Anthropic.Model == "claude-sonnet"
			},
		},
		{
			name:     "explicit provider",
			flags:    map[string]any{"llm-provider": "openai", "llm-key": "k", "llm-url": "http://localhost:11434/v1"},
			wantProv: llm.ProviderOpenAI,
			checkFunc: func(c llm.Config) bool {
				return c.OpenAI.APIKey == "k" && c.OpenAI.BaseURL == "http://localhost:11434/v1"
			},
		},
		{
			name:     "mock",
			flags:    map[string]any{"llm-provider": "mock"},
			wantProv: llm.ProviderMock,
		},
		{
			name:    "missing key",
			flags:   map[string]any{"llm-provider": "gemini"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.flags {
				v.Set(k, val)
			}
			cfg, err := llmConfig(v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("llmConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg.Provider != tt.wantProv {
				t.Errorf("Provider = %q, want %q", cfg.Provider, tt.wantProv)
			}
			if tt.checkFunc != nil && !tt.checkFunc(cfg) {
				t.Errorf("unexpected config: %+v", cfg)
			}
		})
	}
}
