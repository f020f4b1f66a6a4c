package sentinel

import "testing"

func TestResolveLocalizedValueFallbacks(t *testing.T) {
	values := map[string]string{"fr": "Sauvegardes", "EN_gb": "Backups (UK)", "default": "Backups"}
	cases := map[string]string{
		"fr":    "Sauvegardes",
		"fr-CA": "Sauvegardes",
		"fr_ca": "Sauvegardes",
		"en-GB": "Backups (UK)",
		"en-US": "Backups",
		"":      "Backups",
		"de":    "Backups",
	}
	for locale, want := range cases {
		if got := ResolveLocalizedValue(values, locale, "fallback"); got != want {
			t.Fatalf("locale %q: expected %q, got %q", locale, want, got)
		}
	}
	if got := ResolveLocalizedValue(nil, "fr", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for empty map, got %q", got)
	}
}

func TestNormalizeLocalizedFieldsCanonicalizesKeys(t *testing.T) {
	def := PanelDefinition{
		Name:          "Cache",
		NameLocalized: map[string]string{" EN_US ": "Cache (US)", "es": ""},
	}
	def.normalizeLocalizedFields()
	if len(def.NameLocalized) != 1 || def.NameLocalized["en-us"] != "Cache (US)" {
		t.Fatalf("unexpected localized names %v", def.NameLocalized)
	}
	if def.DescriptionLocalized != nil {
		t.Fatalf("expected nil description map")
	}
	if got := def.NameForLocale("es"); got != "Cache" {
		t.Fatalf("expected default name, got %s", got)
	}
}
