// Package localization provides the translated user-facing strings.
// Catalogues are JSON files named by language code (e.g. "en.json") and are
// embedded in the binary.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when a key is missing in the requested language.
const DefaultLanguage = "en"

//go:embed locales/*.json
var catalogues embed.FS

// Localizer manages the translations for the application.
// It holds a map of languages, each with its own map of translation keys and values.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex

	// supported[i] is the catalogue behind matcher's i-th tag; the default
	// language comes first so unmatched headers resolve to it.
	supported []string
	matcher   language.Matcher
}

// New loads the embedded catalogues.
func New() (*Localizer, error) {
	sub, err := fs.Sub(catalogues, "locales")
	if err != nil {
		return nil, err
	}
	return NewFromFS(sub)
}

// NewFromFS loads every *.json file at the root of fsys.
func NewFromFS(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, path.Join(".", file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	if err := l.buildMatcher(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Localizer) buildMatcher() error {
	langs := make([]string, 0, len(l.translations)+1)
	langs = append(langs, DefaultLanguage)
	for lang := range l.translations {
		if lang != DefaultLanguage {
			langs = append(langs, lang)
		}
	}
	slices.Sort(langs[1:])

	tags := make([]language.Tag, 0, len(langs))
	for _, lang := range langs {
		tag, err := language.Parse(lang)
		if err != nil {
			return fmt.Errorf("localization file %s.json is not named by a language tag: %w", lang, err)
		}
		tags = append(tags, tag)
	}
	l.supported = langs
	l.matcher = language.NewMatcher(tags)
	return nil
}

// Get returns the string for key in lang, falling back to English and then
// to the key itself.
func (l *Localizer) Get(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if value, ok := l.translations[lang][key]; ok {
		return value
	}
	if lang != DefaultLanguage {
		if value, ok := l.translations[DefaultLanguage][key]; ok {
			return value
		}
	}
	return key
}

// Has reports whether any language, including the default, translates key.
func (l *Localizer) Has(lang, key string) bool {
	return l.Get(lang, key) != key
}

// Languages returns the loaded language codes.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	langs := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		langs = append(langs, lang)
	}
	return langs
}

// MatchLanguage negotiates an Accept-Language header against the loaded
// catalogues. Quality weights are honoured and languages weighted q=0 are
// never chosen. Without a match the default language is returned.
func (l *Localizer) MatchLanguage(acceptLanguage string) string {
	tags, weights, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		return DefaultLanguage
	}
	accepted := make([]language.Tag, 0, len(tags))
	for i, tag := range tags {
		if weights[i] > 0 {
			accepted = append(accepted, tag)
		}
	}
	if len(accepted) == 0 {
		return DefaultLanguage
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	_, index, confidence := l.matcher.Match(accepted...)
	if confidence == language.No {
		return DefaultLanguage
	}
	return l.supported[index]
}
