package i18n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang, id, want string
	}{
		{"en", "BtnHelp", "Help"},
		{"en", "BtnSubmit", "Submit"},
		{"de", "BtnHelp", "Hilfe"},
		{"de", "BtnSubmit", "Absenden"},
		{"de-AT", "BtnCancel", "Abbrechen"},
		{"am", "BtnCancel", "Cancel"},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := T(ctx, tt.id); got != tt.want {
			t.Errorf("T(%s, %s) = %q, want %q", tt.lang, tt.id, got, tt.want)
		}
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "WritingReceived", 1)
	if want := "Text received. Current word count: 1 word\n\nSend more text or click Submit when done."; got1 != want {
		t.Errorf("Tp(WritingReceived, 1) = %q, want %q", got1, want)
	}

	got5 := Tp(ctx, "WritingReceived", 5)
	if want := "Text received. Current word count: 5 words\n\nSend more text or click Submit when done."; got5 != want {
		t.Errorf("Tp(WritingReceived, 5) = %q, want %q", got5, want)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "WarnExpiring3", map[string]any{"Days": 2})
	if want := "\nYour subscription expires in 2 days. Please renew soon."; got != want {
		t.Errorf("Td(WarnExpiring3) = %q, want %q", got, want)
	}

	got = Td(initLang(t, "de"), "QuestionHeader", map[string]any{"N": 3, "Total": 5})
	if want := "*Frage 3/5*"; got != want {
		t.Errorf("Td(QuestionHeader) = %q, want %q", got, want)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNoLocalizerUsesDefault(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := T(context.Background(), "BtnHelp"); got != "Help" {
		t.Errorf("T without localizer = %q, want 'Help'", got)
	}
}

func TestCatalogsMatch(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if n := len(Languages()); n != 2 {
		t.Fatalf("Languages() has %d entries, want 2", n)
	}

	ids := func(name string) map[string]bool {
		data, err := localeFS.ReadFile("locales/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		out := make(map[string]bool, len(m))
		for k := range m {
			out[k] = true
		}
		return out
	}
	en, de := ids("en.json"), ids("de.json")
	for id := range en {
		if !de[id] {
			t.Errorf("%s missing from de.json", id)
		}
	}
	for id := range de {
		if !en[id] {
			t.Errorf("%s missing from en.json", id)
		}
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(T(r.Context(), "BtnHelp")))
	}))

	tests := []struct {
		name, query, header, want string
	}{
		{"default", "", "", "Help"},
		{"header", "", "de-DE,de;q=0.9,en;q=0.8", "Hilfe"},
		{"query wins", "?lang=en", "de", "Help"},
		{"unsupported", "", "fr", "Help"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}
