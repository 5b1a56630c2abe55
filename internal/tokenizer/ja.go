package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	kagome "github.com/ikawaha/kagome/v2/tokenizer"
)

var (
	jaOnce      sync.Once
	jaTokenizer *kagome.Tokenizer
	jaErr       error
)

// Ja segments Japanese with the kagome morphological analyzer and the IPA
// dictionary. The dictionary is loaded once and shared read-only.
type Ja struct {
	t *kagome.Tokenizer
}

func NewJa() (*Ja, error) {
	jaOnce.Do(func() {
		jaTokenizer, jaErr = kagome.New(ipa.Dict(), kagome.OmitBosEos())
		if jaErr != nil {
			jaErr = fmt.Errorf("load ipa dictionary: %w", jaErr)
		}
	})
	if jaErr != nil {
		return nil, jaErr
	}
	return &Ja{t: jaTokenizer}, nil
}

func (j *Ja) Parse(text string) string {
	return joinTokens(j.RawParse(text))
}

func (j *Ja) RawParse(text string) []string {
	morphs := j.t.Tokenize(text)
	tokens := make([]string, 0, len(morphs))
	for _, m := range morphs {
		if strings.TrimSpace(m.Surface) == "" {
			continue
		}
		tokens = append(tokens, m.Surface)
	}
	return tokens
}
