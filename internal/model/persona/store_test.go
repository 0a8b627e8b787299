package persona

import (
	"strings"
	"testing"
)

func TestSeedRegistryIsValid(t *testing.T) {
	r, err := NewRegistry(Seed())
	if err != nil {
		t.Fatalf("NewRegistry err: %v", err)
	}
	if got := len(r.List()); got != 5 {
		t.Fatalf("expected 5 personas, got %d", got)
	}
	for _, v := range r.List() {
		for _, lang := range Languages {
			if v.Prompts[lang] == "" {
				t.Fatalf("persona %s missing %s prompt", v.ID, lang)
			}
		}
	}
}

func TestNewRegistryRejectsMissingEnglish(t *testing.T) {
	items := []Variant{{ID: "broken", Name: "Broken", Prompts: map[Language]string{Hindi: "x"}}}
	if _, err := NewRegistry(items); err == nil {
		t.Fatal("expected error for persona without English prompt")
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	seed := Seed()
	if _, err := NewRegistry(append(seed, seed[0])); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestMustNewRegistryPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustNewRegistry([]Variant{{ID: "x"}})
}

func TestResolvePromptFallsBackToEnglish(t *testing.T) {
	r := MustNewRegistry(Seed())
	for _, v := range r.List() {
		en := r.ResolvePrompt(v.ID, English, "Sam")
		if got := r.ResolvePrompt(v.ID, Language("fr"), "Sam"); got != en {
			t.Fatalf("persona %s: expected English fallback, got %q", v.ID, got)
		}
	}
}

func TestResolvePromptSubstitutesName(t *testing.T) {
	r := MustNewRegistry(Seed())

	got := r.ResolvePrompt("coach", English, "Alex")
	if !strings.Contains(got, "named Alex") {
		t.Fatalf("expected custom name in prompt, got %q", got)
	}
	if strings.Contains(got, namePlaceholder) {
		t.Fatalf("placeholder left in prompt: %q", got)
	}

	got = r.ResolvePrompt("coach", Hindi, "")
	if !strings.Contains(got, "Coach") {
		t.Fatalf("expected display name fallback, got %q", got)
	}
}

func TestResolvePromptUnknownPersonaPanics(t *testing.T) {
	r := MustNewRegistry(Seed())
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown persona")
		}
	}()
	r.ResolvePrompt("pirate", English, "")
}

func TestDefaultProfileUsesCatalogPosition(t *testing.T) {
	r := MustNewRegistry(Seed())

	p, ok := r.DefaultProfile("financial")
	if !ok {
		t.Fatal("expected default profile")
	}
	if p.CustomName != "Financial Advisor" || p.Gender != DefaultGender || p.Color != Palette[2] {
		t.Fatalf("unexpected default profile: %+v", p)
	}
	if _, ok := r.DefaultProfile("missing"); ok {
		t.Fatal("expected no profile for unknown persona")
	}
}

func TestParseLanguage(t *testing.T) {
	if lang, ok := ParseLanguage(" HI "); !ok || lang != Hindi {
		t.Fatalf("expected hi, got %q %v", lang, ok)
	}
	if _, ok := ParseLanguage("fr"); ok {
		t.Fatal("expected fr to be unsupported")
	}
}
