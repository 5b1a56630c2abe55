package tokenizer

import (
	"regexp"
	"strings"
)

// TerOptions selects the tercom normalization steps.
type TerOptions struct {
	// Normalized applies the general and Western punctuation rules.
	Normalized bool
	// NoPunct removes punctuation.
	NoPunct bool
	// AsianSupport splits CJK characters and Asian punctuation.
	AsianSupport bool
	// CaseSensitive keeps case; otherwise text is lowercased.
	CaseSensitive bool
}

var (
	terPunctRE      = regexp.MustCompile("([{-~\\[-` -&(-+:-@/])")
	terPossessiveRE = regexp.MustCompile(`'s$`)
	terPeriodPreRE  = regexp.MustCompile(`([^0-9])([\.,])`)
	terPeriodPostRE = regexp.MustCompile(`([\.,])([^0-9])`)
	terDashRE       = regexp.MustCompile(`([0-9])(-)`)

	terAsianRules = []*regexp.Regexp{
		// CJK Unified Ideographs and Extension A
		regexp.MustCompile(`([\x{4e00}-\x{9fff}\x{3400}-\x{4dbf}])`),
		// CJK strokes, CJK Radicals Supplement
		regexp.MustCompile(`([\x{31c0}-\x{31ef}\x{2e80}-\x{2eff}])`),
		// CJK compatibility, compatibility ideographs and forms
		regexp.MustCompile(`([\x{3300}-\x{33ff}\x{f900}-\x{faff}\x{fe30}-\x{fe4f}])`),
		// Enclosed CJK letters and months
		regexp.MustCompile(`([\x{3200}-\x{3f22}])`),
	}
	// Kana runs are only split off when they make up the whole segment.
	terKanaRules = []*regexp.Regexp{
		regexp.MustCompile(`^([\x{3040}-\x{309f}]+)$`),
		regexp.MustCompile(`^([\x{30a0}-\x{30ff}]+)$`),
		regexp.MustCompile(`^([\x{31f0}-\x{31ff}]+)$`),
	}
	terAsianPunctRE     = regexp.MustCompile(`([\x{3001}\x{3002}\x{3008}-\x{3011}\x{3014}-\x{301f}\x{ff61}-\x{ff65}\x{30fb}])`)
	terFullWidthPunctRE = regexp.MustCompile(`([\x{ff0e}\x{ff0c}\x{ff1f}\x{ff1a}\x{ff1b}\x{ff01}\x{ff02}\x{ff08}\x{ff09}])`)
	// every Unicode punctuation mark plus ASCII symbols such as $ and ~
	terRemovePunctRE    = regexp.MustCompile(`[\p{P}[:punct:]]`)
)

// Ter is the tercom tokenizer used by TER.
type Ter struct {
	opts TerOptions
}

func NewTer(opts TerOptions) *Ter {
	return &Ter{opts: opts}
}

func (t *Ter) Parse(text string) string {
	if text == "" {
		return ""
	}
	if !t.opts.CaseSensitive {
		text = strings.ToLower(text)
	}
	if t.opts.Normalized {
		text = normalizeGeneralAndWestern(text)
		if t.opts.AsianSupport {
			text = normalizeAsian(text)
		}
	}
	if t.opts.NoPunct {
		text = terRemovePunctRE.ReplaceAllString(text, "")
	}
	return strings.Join(strings.Fields(text), " ")
}

// RawParse returns the tokens; blank input yields no tokens.
func (t *Ter) RawParse(text string) []string {
	return strings.Fields(t.Parse(text))
}

func normalizeGeneralAndWestern(s string) string {
	// end-of-line hyphenation and line joins
	s = strings.ReplaceAll(s, "\n-", "")
	s = strings.ReplaceAll(s, "\n", " ")

	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")

	s = " " + s + " "
	s = terPunctRE.ReplaceAllString(s, " $1 ")

	s = strings.ReplaceAll(s, "'s ", " 's ")
	s = terPossessiveRE.ReplaceAllString(s, " 's")

	// periods and commas not inside numbers
	s = terPeriodPreRE.ReplaceAllString(s, "$1 $2 ")
	s = terPeriodPostRE.ReplaceAllString(s, " $1 $2")

	s = terDashRE.ReplaceAllString(s, "$1 $2 ")
	return s
}

func normalizeAsian(s string) string {
	for _, re := range terAsianRules {
		s = re.ReplaceAllString(s, " $1 ")
	}
	for _, re := range terKanaRules {
		s = re.ReplaceAllString(s, "$1 ")
	}
	s = terAsianPunctRE.ReplaceAllString(s, " $1 ")
	s = terFullWidthPunctRE.ReplaceAllString(s, " $1 ")
	return s
}
