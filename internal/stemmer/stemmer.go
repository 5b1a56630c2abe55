// Package stemmer reduces words to their stems for METEOR's stem matching.
package stemmer

import (
	"github.com/kljensen/snowball"

	"github.com/ansonxing23/mt-evaluation/internal/language"
)

// Stemmer maps a word to its stem.
type Stemmer interface {
	Stem(word string) string
}

// snowballLanguages are the languages the snowball package implements.
var snowballLanguages = map[string]string{
	language.English.Code: "english",
	language.French.Code:  "french",
	language.Spanish.Code: "spanish",
	"ru":                  "russian",
	"sv":                  "swedish",
	"no":                  "norwegian",
	"nb":                  "norwegian",
	"hu":                  "hungarian",
}

// ForLanguage returns a Snowball stemmer when one exists for lang and the
// Porter stemmer otherwise.
func ForLanguage(lang language.Language) Stemmer {
	if name, ok := snowballLanguages[lang.Code]; ok {
		return &Snowball{language: name}
	}
	return Porter{}
}

// Snowball stems with the Snowball algorithm of one language.
type Snowball struct {
	language string
}

func NewSnowball(name string) *Snowball { return &Snowball{language: name} }

// Stem returns word unchanged when snowball rejects it.
func (s *Snowball) Stem(word string) string {
	stemmed, err := snowball.Stem(word, s.language, true)
	if err != nil {
		return word
	}
	return stemmed
}
