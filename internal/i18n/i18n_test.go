package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "IELTS Prep" {
		t.Errorf("T(AppTitle) = %q, want 'IELTS Prep'", got)
	}

	got = T(ctx, "ErrAttemptExpired")
	if got != "The time limit for this attempt has passed." {
		t.Errorf("T(ErrAttemptExpired) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "ErrAlreadySubmitted")
	if got != "Эта попытка уже отправлена." {
		t.Errorf("T(ErrAlreadySubmitted) = %q, want 'Эта попытка уже отправлена.'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "UnderLengthWarning", 1, map[string]any{"Min": 150})
	if got1 != "Your response has only 1 word, below the minimum of 150." {
		t.Errorf("Tp(UnderLengthWarning, 1) = %q", got1)
	}

	got5 := Tp(ctx, "UnderLengthWarning", 5, map[string]any{"Min": 150})
	if got5 != "Your response has only 5 words, below the minimum of 150." {
		t.Errorf("Tp(UnderLengthWarning, 5) = %q", got5)
	}
}

func TestRussianPluralForms(t *testing.T) {
	ctx := initLang(t, "ru")

	tests := []struct {
		count int
		want  string
	}{
		{1, "В вашем ответе всего 1 слово, минимум 250."},
		{3, "В вашем ответе всего 3 слова, минимум 250."},
		{11, "В вашем ответе всего 11 слов, минимум 250."},
	}
	for _, tt := range tests {
		got := Tp(ctx, "UnderLengthWarning", tt.count, map[string]any{"Min": 250})
		if got != tt.want {
			t.Errorf("Tp(UnderLengthWarning, %d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ErrInvalidExam", map[string]any{"Reason": "duplicate id"})
	if got != "The exam definition is invalid: duplicate id" {
		t.Errorf("Td(ErrInvalidExam) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewareAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrExamNotFound")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Exam not found." {
		t.Errorf("default language: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Экзамен не найден." {
		t.Errorf("Accept-Language ru: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "de")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Exam not found." {
		t.Errorf("unsupported language falls back: got %q", got)
	}
}

func TestNoLocalizerUsesDefaultLanguage(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	got := T(context.Background(), "ErrExamNotFound")
	if got != "Экзамен не найден." {
		t.Errorf("T without localizer = %q, want the ru message", got)
	}
}

func TestInitRejectsBadTag(t *testing.T) {
	if err := Init("not a tag!"); err == nil {
		t.Error("Init accepted an invalid language tag")
	}
}
