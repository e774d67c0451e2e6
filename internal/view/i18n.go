package view

import (
	_ "embed"
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/a2ui/internal/domain"
)

//go:embed locales.yaml
var localesYAML []byte

// SupportedLanguages lists the recognised language codes.
var SupportedLanguages = []string{domain.LanguageZhCN, domain.LanguageEn, domain.LanguageJa}

// Localizer resolves language codes and formats catalog messages.
type Localizer struct {
	codes    []string
	matcher  language.Matcher
	printers map[string]*message.Printer
}

// NewLocalizer loads the embedded catalog. defaultLang must be one of
// SupportedLanguages; empty selects the first.
func NewLocalizer(defaultLang string) (*Localizer, error) {
	codes, err := orderedCodes(defaultLang)
	if err != nil {
		return nil, err
	}

	var entries map[string]map[string]string
	if err := yaml.Unmarshal(localesYAML, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse locale catalog: %w", err)
	}

	tags := make([]language.Tag, len(codes))
	for i, code := range codes {
		tags[i] = language.MustParse(code)
	}

	builder := catalog.NewBuilder(catalog.Fallback(tags[0]))
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for i, code := range codes {
			msg, ok := entries[key][code]
			if !ok {
				return nil, fmt.Errorf("locale catalog: %s has no %s translation", key, code)
			}
			if err := builder.SetString(tags[i], key, msg); err != nil {
				return nil, fmt.Errorf("locale catalog: %s/%s: %w", key, code, err)
			}
		}
	}

	printers := make(map[string]*message.Printer, len(codes))
	for i, code := range codes {
		printers[code] = message.NewPrinter(tags[i], message.Catalog(builder))
	}

	return &Localizer{
		codes:    codes,
		matcher:  language.NewMatcher(tags),
		printers: printers,
	}, nil
}

func orderedCodes(defaultLang string) ([]string, error) {
	if defaultLang == "" {
		return append([]string(nil), SupportedLanguages...), nil
	}
	codes := []string{defaultLang}
	found := false
	for _, code := range SupportedLanguages {
		if code == defaultLang {
			found = true
			continue
		}
		codes = append(codes, code)
	}
	if !found {
		return nil, fmt.Errorf("unsupported default language %q", defaultLang)
	}
	return codes, nil
}

// Default returns the fallback language code.
func (l *Localizer) Default() string {
	return l.codes[0]
}

// Match maps any BCP 47 string to a supported code, falling back to the default.
func (l *Localizer) Match(lang string) string {
	if lang == "" {
		return l.codes[0]
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return l.codes[0]
	}
	_, idx, conf := l.matcher.Match(tag)
	if conf == language.No || idx < 0 || idx >= len(l.codes) {
		return l.codes[0]
	}
	return l.codes[idx]
}

// T formats the catalog entry key in lang, which must be a matched code.
func (l *Localizer) T(lang, key string, args ...any) string {
	p, ok := l.printers[lang]
	if !ok {
		p = l.printers[l.codes[0]]
	}
	return p.Sprintf(key, args...)
}
