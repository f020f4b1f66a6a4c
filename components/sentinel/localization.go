package sentinel

import (
	"strings"

	"golang.org/x/text/language"
)

// ResolveLocalizedValue picks the translation for locale. A regional tag such as
// fr-CA falls back to its base language, then to the "default" entry, then to
// fallback.
func ResolveLocalizedValue(values map[string]string, locale, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	for _, key := range localeKeys(locale) {
		if value := lookupLocale(values, key); value != "" {
			return value
		}
	}
	return fallback
}

// NameForLocale returns the display name for the locale, defaulting to Name.
func (def PanelDefinition) NameForLocale(locale string) string {
	return ResolveLocalizedValue(def.NameLocalized, locale, def.Name)
}

// DescriptionForLocale returns the localized description if available.
func (def PanelDefinition) DescriptionForLocale(locale string) string {
	return ResolveLocalizedValue(def.DescriptionLocalized, locale, def.Description)
}

func (def *PanelDefinition) normalizeLocalizedFields() {
	def.NameLocalized = canonicalLocaleMap(def.NameLocalized)
	def.DescriptionLocalized = canonicalLocaleMap(def.DescriptionLocalized)
}

func canonicalLocaleMap(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for key, value := range values {
		if key = canonicalLocale(key); key != "" && value != "" {
			out[key] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// localeKeys lists lookup keys from most to least specific.
func localeKeys(locale string) []string {
	canonical := canonicalLocale(locale)
	if canonical == "" {
		return []string{"default"}
	}
	keys := []string{canonical}
	if tag, err := language.Parse(canonical); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			if b := base.String(); b != canonical {
				keys = append(keys, b)
			}
		}
	} else if idx := strings.IndexByte(canonical, '-'); idx > 0 {
		keys = append(keys, canonical[:idx])
	}
	return append(keys, "default")
}

func lookupLocale(values map[string]string, key string) string {
	if value, ok := values[key]; ok {
		return value
	}
	for candidate, value := range values {
		if canonicalLocale(candidate) == key {
			return value
		}
	}
	return ""
}

// canonicalLocale lowercases and uses "-" as the subtag separator.
func canonicalLocale(locale string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(locale)), "_", "-")
}
