// Package tokenizer splits raw segments into tokens before scoring. Each
// tokenizer instance owns its configuration; none keep global state beyond
// read-only model data loaded once per process.
package tokenizer

import (
	"regexp"
	"strings"

	"github.com/ansonxing23/mt-evaluation/internal/language"
)

// Tokenizer turns text into tokens.
type Tokenizer interface {
	// Parse returns the tokens joined by single spaces.
	Parse(text string) string
	// RawParse returns the tokens in order.
	RawParse(text string) []string
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// punctClass matches Unicode punctuation and ASCII symbols.
const punctClass = "[\\pP!-/:-@\\[-`{-~]"

var punctRE = regexp.MustCompile(punctClass)

// ForLanguage returns the tokenizer scoring uses for lang. Languages without
// a dedicated segmenter get the rule-based European tokenizer.
func ForLanguage(lang language.Language) (Tokenizer, error) {
	switch lang.Code {
	case language.German.Code, language.English.Code, language.Spanish.Code, language.French.Code:
		return NewEuro(lang)
	case language.Chinese.Code:
		return NewZh(), nil
	case language.Japanese.Code:
		return NewJa()
	default:
		return NewEuro(language.Unspecified)
	}
}

func joinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}

// collapse trims text and squeezes whitespace runs to single spaces.
func collapse(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}
