package i18n

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"go.uber.org/zap"
)

//go:embed locales/*.json
var localeFS embed.FS

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Catalog resolves (language, key, params) to display text. Lookup is a
// pure function: unknown keys fall back to the key string itself, unknown
// languages fall back to the default language.
type Catalog struct {
	defaultLang string
	dicts       map[string]map[string]string
}

// New loads every embedded locale file. The file name (without extension)
// is the language code.
func New(defaultLang string) (*Catalog, error) {
	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("unable to list locales: %w", err)
	}

	dicts := make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		lang := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		data, err := localeFS.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("unable to read locale %s: %w", lang, err)
		}
		// Some catalogs were authored on Windows and carry a BOM.
		data = bytes.TrimPrefix(data, utf8BOM)

		dict := make(map[string]string)
		if err := json.Unmarshal(data, &dict); err != nil {
			return nil, fmt.Errorf("unable to parse locale %s: %w", lang, err)
		}
		dicts[lang] = dict
	}

	if _, ok := dicts[defaultLang]; !ok {
		return nil, fmt.Errorf("default language %q has no locale file", defaultLang)
	}

	zap.L().Info("Locale catalogs loaded", zap.Int("languages", len(dicts)))
	return &Catalog{defaultLang: defaultLang, dicts: dicts}, nil
}

// Languages returns the loaded language codes.
func (c *Catalog) Languages() []string {
	langs := make([]string, 0, len(c.dicts))
	for lang := range c.dicts {
		langs = append(langs, lang)
	}
	return langs
}

// Resolve renders the message for key in lang, substituting {{name}}
// placeholders from params. A missing translation yields the raw key.
func (c *Catalog) Resolve(lang, key string, params map[string]string) string {
	dict, ok := c.dicts[lang]
	if !ok {
		dict = c.dicts[c.defaultLang]
	}

	text, ok := dict[key]
	if !ok {
		text = key
	}
	for name, value := range params {
		text = strings.ReplaceAll(text, "{{"+name+"}}", value)
	}
	return text
}
