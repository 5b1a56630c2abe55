package stemmer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ansonxing23/mt-evaluation/internal/language"
)

func TestPorter(t *testing.T) {
	cases := map[string]string{
		"caresses":       "caress",
		"ponies":         "poni",
		"cats":           "cat",
		"feed":           "feed",
		"agreed":         "agre",
		"plastered":      "plaster",
		"motoring":       "motor",
		"sing":           "sing",
		"conflated":      "conflat",
		"troubled":       "troubl",
		"sized":          "size",
		"hopping":        "hop",
		"falling":        "fall",
		"hissing":        "hiss",
		"filing":         "file",
		"happy":          "happi",
		"sky":            "sky",
		"relational":     "relat",
		"conditional":    "condit",
		"rational":       "ration",
		"generalization": "gener",
		"running":        "run",
		"probate":        "probat",
		"rate":           "rate",
		"cease":          "ceas",
		"controll":       "control",
		"roll":           "roll",
		"is":             "is",
	}
	var p Porter
	for in, want := range cases {
		assert.Equal(t, want, p.Stem(in), in)
	}
}

func TestForLanguage(t *testing.T) {
	assert.IsType(t, &Snowball{}, ForLanguage(language.English))
	assert.IsType(t, &Snowball{}, ForLanguage(language.French))
	assert.IsType(t, &Snowball{}, ForLanguage(language.Spanish))
	assert.IsType(t, Porter{}, ForLanguage(language.German))
	assert.IsType(t, Porter{}, ForLanguage(language.Chinese))
}

func TestSnowball(t *testing.T) {
	en := ForLanguage(language.English)
	assert.Equal(t, "run", en.Stem("running"))
	assert.Equal(t, "cat", en.Stem("cats"))

	fr := ForLanguage(language.French)
	assert.Equal(t, "chat", fr.Stem("chats"))
}
