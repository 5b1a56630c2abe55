// Package language resolves user supplied language codes or English language
// names to a canonical Language.
package language

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

// Language is a base language with its ISO 639 code and English name.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages with dedicated tokenizers and stemmers.
var (
	English     = Language{Code: "en", Name: "English"}
	French      = Language{Code: "fr", Name: "French"}
	German      = Language{Code: "de", Name: "German"}
	Spanish     = Language{Code: "es", Name: "Spanish"}
	Chinese     = Language{Code: "zh", Name: "Chinese"}
	Japanese    = Language{Code: "ja", Name: "Japanese"}
	Korean      = Language{Code: "ko", Name: "Korean"}
	Unspecified = Language{Code: "und", Name: "Unspecified"}
)

var asian = map[string]struct{}{
	"Chinese": {}, "Korean": {}, "Japanese": {}, "Thai": {}, "Vietnamese": {},
}

// IsAsian reports whether the language is written without spaces between
// words, or close enough to it that scoring should split characters.
func (l Language) IsAsian() bool {
	_, ok := asian[l.Name]
	return ok
}

func (l Language) String() string { return l.Code }

var (
	namesOnce sync.Once
	byName    map[string]string
)

// loadNames indexes the English names of every language x/text can display.
func loadNames() {
	byName = make(map[string]string)
	namer := display.English.Languages()
	for _, tag := range display.Supported.Tags() {
		base, _ := tag.Base()
		name := namer.Name(language.Make(base.String()))
		if name == "" {
			continue
		}
		byName[strings.ToLower(name)] = base.String()
	}
}

// Resolve accepts a language code ("en", "zh-CN") or an English language
// name ("Chinese") and returns its base Language.
func Resolve(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Language{}, fmt.Errorf("%w: empty language", apperrors.ErrUnsupportedLanguage)
	}
	if strings.EqualFold(s, Unspecified.Name) {
		return Unspecified, nil
	}

	namesOnce.Do(loadNames)
	code, ok := byName[strings.ToLower(s)]
	if !ok {
		tag, err := language.Parse(s)
		if err != nil {
			return Language{}, fmt.Errorf("%w: %s does not exist", apperrors.ErrUnsupportedLanguage, s)
		}
		base, conf := tag.Base()
		if conf == language.No {
			return Language{}, fmt.Errorf("%w: %s does not exist", apperrors.ErrUnsupportedLanguage, s)
		}
		code = base.String()
	}

	name := display.English.Languages().Name(language.Make(code))
	if name == "" {
		return Language{}, fmt.Errorf("%w: %s has no English name", apperrors.ErrUnsupportedLanguage, s)
	}
	return Language{Code: code, Name: name}, nil
}

// MustResolve is Resolve for package level constants in tests and tools.
func MustResolve(s string) Language {
	l, err := Resolve(s)
	if err != nil {
		panic(err)
	}
	return l
}
