package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	sentencesdata "github.com/neurosnap/sentences/data"

	"github.com/ansonxing23/mt-evaluation/internal/language"
)

// punktModels maps language codes to bundled Punkt training data.
var punktModels = map[string]string{
	"en": "english",
	"fr": "french",
	"de": "german",
	"es": "spanish",
	"it": "italian",
	"nl": "dutch",
	"pt": "portuguese",
}

var (
	englishClitics = []string{"n't", "'s", "'re", "'ve", "'ll", "'d", "'m"}
	frenchElisions = []string{"qu'", "l'", "d'", "j'", "n'", "s'", "c'", "m'", "t'"}
)

// Euro tokenizes European languages: Punkt sentence splitting followed by
// rule-based word splitting. Hyphenated words are kept whole.
type Euro struct {
	lang      language.Language
	sentences *sentences.DefaultSentenceTokenizer
}

// NewEuro loads the Punkt model of lang, falling back to English.
func NewEuro(lang language.Language) (*Euro, error) {
	model, ok := punktModels[lang.Code]
	if !ok {
		model = "english"
	}
	b, err := sentencesdata.Asset("data/" + model + ".json")
	if err != nil {
		b, err = sentencesdata.Asset("data/english.json")
		if err != nil {
			return nil, fmt.Errorf("load punkt data: %w", err)
		}
	}
	training, err := sentences.LoadTraining(b)
	if err != nil {
		return nil, fmt.Errorf("parse punkt data %s: %w", model, err)
	}
	return &Euro{lang: lang, sentences: sentences.NewSentenceTokenizer(training)}, nil
}

func (e *Euro) Parse(text string) string {
	return joinTokens(e.RawParse(text))
}

func (e *Euro) RawParse(text string) []string {
	text = normalizeQuotes(text)
	var tokens []string
	for _, sent := range e.sentences.Tokenize(text) {
		words := strings.Fields(sent.Text)
		for i, w := range words {
			tokens = e.splitWord(tokens, w, i == len(words)-1)
		}
	}
	return tokens
}

// splitWord appends the tokens of one whitespace-delimited word.
func (e *Euro) splitWord(tokens []string, word string, sentenceFinal bool) []string {
	for word != "" {
		r, size := utf8.DecodeRuneInString(word)
		if !isEdgePunct(r) {
			break
		}
		tokens = append(tokens, word[:size])
		word = word[size:]
	}
	if word == "" {
		return tokens
	}

	var trailing []string
	for word != "" {
		r, size := utf8.DecodeLastRuneInString(word)
		if r == '.' {
			if strings.HasSuffix(word, "...") {
				trailing = append(trailing, "...")
				word = word[:len(word)-3]
				continue
			}
			if !sentenceFinal || len(word) == size || isAbbreviation(word[:len(word)-size]) {
				break
			}
		} else if !isEdgePunct(r) {
			break
		}
		trailing = append(trailing, word[len(word)-size:])
		word = word[:len(word)-size]
	}

	if word != "" {
		tokens = append(tokens, e.splitAffixes(word)...)
	}
	for i := len(trailing) - 1; i >= 0; i-- {
		tokens = append(tokens, trailing[i])
	}
	return tokens
}

// splitAffixes separates English clitics and French elisions.
func (e *Euro) splitAffixes(word string) []string {
	lower := strings.ToLower(word)
	switch e.lang.Code {
	case language.French.Code:
		for _, el := range frenchElisions {
			if strings.HasPrefix(lower, el) && len(word) > len(el) {
				return []string{word[:len(el)], word[len(el):]}
			}
		}
	case language.English.Code, language.Unspecified.Code:
		for _, cl := range englishClitics {
			if strings.HasSuffix(lower, cl) && len(word) > len(cl) {
				cut := len(word) - len(cl)
				return []string{word[:cut], word[cut:]}
			}
		}
	}
	return []string{word}
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// isAbbreviation reports whether stem looks like an initialism such as
// "U.S" whose final period belongs to the word.
func isAbbreviation(stem string) bool {
	return strings.Contains(stem, ".") && !strings.ContainsFunc(stem, func(r rune) bool {
		return r != '.' && !unicode.IsLetter(r)
	})
}

// normalizeQuotes maps typographic apostrophes to ASCII so clitic rules see
// one form.
func normalizeQuotes(s string) string {
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}
