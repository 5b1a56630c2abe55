package tokenizer

import (
	"strings"
)

// zhRanges are the code point ranges split into single characters.
var zhRanges = [][2]rune{
	{0x3400, 0x4db5},   // CJK Unified Ideographs Extension A
	{0x4e00, 0x9fa5},   // CJK Unified Ideographs
	{0x9fa6, 0x9fbb},   // CJK Unified Ideographs, 4.1
	{0xf900, 0xfa2d},   // CJK Compatibility Ideographs
	{0xfa30, 0xfa6a},   // CJK Compatibility Ideographs, 3.2
	{0xfa70, 0xfad9},   // CJK Compatibility Ideographs, 4.1
	{0x20000, 0x2a6d6}, // CJK Unified Ideographs Extension B
	{0x2f800, 0x2fa1d}, // CJK Compatibility Supplement
	{0xff00, 0xffef},   // full width ASCII and punctuation, half width kana, Hangul
	{0x2e80, 0x2eff},   // CJK Radicals Supplement
	{0x3000, 0x303f},   // CJK punctuation
	{0x31c0, 0x31ef},   // CJK strokes
	{0x2f00, 0x2fdf},   // Kangxi Radicals
	{0x2ff0, 0x2fff},   // ideographic description
	{0x3100, 0x312f},   // Bopomofo
	{0x31a0, 0x31bf},   // Bopomofo extended
	{0xfe10, 0xfe1f},
	{0xfe30, 0xfe4f},
	{0x2600, 0x26ff},
	{0x2700, 0x27bf},
	{0x3200, 0x32ff},
	{0x3300, 0x33ff},
}

func isChineseChar(r rune) bool {
	for _, rg := range zhRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

// Zh segments Chinese by splitting every CJK character and punctuation mark
// into its own token. Runs of other characters stay together.
type Zh struct{}

func NewZh() *Zh { return &Zh{} }

func (z *Zh) Parse(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, r := range strings.TrimSpace(text) {
		if isChineseChar(r) || punctRE.MatchString(string(r)) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return collapse(b.String())
}

func (z *Zh) RawParse(text string) []string {
	return strings.Fields(z.Parse(text))
}
