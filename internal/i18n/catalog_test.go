package i18n

import (
	"strings"
	"testing"
)

func TestNew_LoadsAllLocales(t *testing.T) {
	catalog, err := New("he")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	langs := catalog.Languages()
	for _, want := range []string{"he", "en", "ru"} {
		found := false
		for _, lang := range langs {
			if lang == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected language %s to be loaded, got %v", want, langs)
		}
	}
}

func TestNew_UnknownDefaultRejected(t *testing.T) {
	if _, err := New("xx"); err == nil {
		t.Fatal("Expected error for missing default locale")
	}
}

func TestResolve_Substitution(t *testing.T) {
	catalog, err := New("en")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	text := catalog.Resolve("en", "lang_set", map[string]string{"lang": "ru"})
	if !strings.Contains(text, "ru") {
		t.Errorf("Expected substituted value in %q", text)
	}
	if strings.Contains(text, "{{") {
		t.Errorf("Expected no leftover placeholders in %q", text)
	}
}

func TestResolve_UnknownLanguageFallsBack(t *testing.T) {
	catalog, err := New("en")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	fallback := catalog.Resolve("xx", "help", nil)
	direct := catalog.Resolve("en", "help", nil)
	if fallback != direct {
		t.Errorf("Expected fallback to default language, got %q", fallback)
	}
}

func TestResolve_UnknownKeyYieldsKey(t *testing.T) {
	catalog, err := New("en")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := catalog.Resolve("en", "no_such_key", nil); got != "no_such_key" {
		t.Errorf("Expected raw key, got %q", got)
	}
}

func TestResolve_EveryLanguageCoversEveryKey(t *testing.T) {
	catalog, err := New("en")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for key := range catalog.dicts["en"] {
		for _, lang := range catalog.Languages() {
			if _, ok := catalog.dicts[lang][key]; !ok {
				t.Errorf("Language %s is missing key %s", lang, key)
			}
		}
	}
}
