package stemmer

import (
	"strings"
)

// Porter is the original Porter (1980) suffix-stripping stemmer. It is the
// fallback for languages without a Snowball implementation.
type Porter struct{}

type porterRule struct {
	suffix      string
	replacement string
	cond        func(stem string) bool
}

func anyStem(string) bool           { return true }
func measurePositive(s string) bool { return measure(s) > 0 }
func measureAboveOne(s string) bool { return measure(s) > 1 }

var (
	step1aRules = []porterRule{
		{"sses", "ss", anyStem},
		{"ies", "i", anyStem},
		{"ss", "ss", anyStem},
		{"s", "", anyStem},
	}
	step2Rules = []porterRule{
		{"ational", "ate", measurePositive},
		{"tional", "tion", measurePositive},
		{"enci", "ence", measurePositive},
		{"anci", "ance", measurePositive},
		{"izer", "ize", measurePositive},
		{"abli", "able", measurePositive},
		{"alli", "al", measurePositive},
		{"entli", "ent", measurePositive},
		{"eli", "e", measurePositive},
		{"ousli", "ous", measurePositive},
		{"ization", "ize", measurePositive},
		{"ation", "ate", measurePositive},
		{"ator", "ate", measurePositive},
		{"alism", "al", measurePositive},
		{"iveness", "ive", measurePositive},
		{"fulness", "ful", measurePositive},
		{"ousness", "ous", measurePositive},
		{"aliti", "al", measurePositive},
		{"iviti", "ive", measurePositive},
		{"biliti", "ble", measurePositive},
	}
	step3Rules = []porterRule{
		{"icate", "ic", measurePositive},
		{"ative", "", measurePositive},
		{"alize", "al", measurePositive},
		{"iciti", "ic", measurePositive},
		{"ical", "ic", measurePositive},
		{"ful", "", measurePositive},
		{"ness", "", measurePositive},
	}
	step4Rules = []porterRule{
		{"al", "", measureAboveOne},
		{"ance", "", measureAboveOne},
		{"ence", "", measureAboveOne},
		{"er", "", measureAboveOne},
		{"ic", "", measureAboveOne},
		{"able", "", measureAboveOne},
		{"ible", "", measureAboveOne},
		{"ant", "", measureAboveOne},
		{"ement", "", measureAboveOne},
		{"ment", "", measureAboveOne},
		{"ent", "", measureAboveOne},
		{"ion", "", func(s string) bool {
			return measure(s) > 1 && (strings.HasSuffix(s, "s") || strings.HasSuffix(s, "t"))
		}},
		{"ou", "", measureAboveOne},
		{"ism", "", measureAboveOne},
		{"ate", "", measureAboveOne},
		{"iti", "", measureAboveOne},
		{"ous", "", measureAboveOne},
		{"ive", "", measureAboveOne},
		{"ize", "", measureAboveOne},
	}
)

// Stem returns the Porter stem of the lowercased word.
func (Porter) Stem(word string) string {
	word = strings.ToLower(word)
	if len(word) <= 2 {
		return word
	}
	word = applyLongest(word, step1aRules)
	word = step1b(word)
	if strings.HasSuffix(word, "y") && containsVowel(word[:len(word)-1]) {
		word = word[:len(word)-1] + "i"
	}
	word = applyLongest(word, step2Rules)
	word = applyLongest(word, step3Rules)
	word = applyLongest(word, step4Rules)
	word = step5(word)
	return word
}

// applyLongest fires the rule with the longest matching suffix. When its
// condition fails no shorter rule is tried.
func applyLongest(word string, rules []porterRule) string {
	best := -1
	for i, r := range rules {
		if strings.HasSuffix(word, r.suffix) && (best < 0 || len(r.suffix) > len(rules[best].suffix)) {
			best = i
		}
	}
	if best < 0 {
		return word
	}
	r := rules[best]
	stem := word[:len(word)-len(r.suffix)]
	if !r.cond(stem) {
		return word
	}
	return stem + r.replacement
}

func step1b(word string) string {
	if strings.HasSuffix(word, "eed") {
		if stem := word[:len(word)-3]; measure(stem) > 0 {
			return stem + "ee"
		}
		return word
	}

	var stem string
	switch {
	case strings.HasSuffix(word, "ed") && containsVowel(word[:len(word)-2]):
		stem = word[:len(word)-2]
	case strings.HasSuffix(word, "ing") && containsVowel(word[:len(word)-3]):
		stem = word[:len(word)-3]
	default:
		return word
	}

	switch {
	case strings.HasSuffix(stem, "at"), strings.HasSuffix(stem, "bl"), strings.HasSuffix(stem, "iz"):
		return stem + "e"
	case endsDoubleConsonant(stem) && !strings.ContainsAny(stem[len(stem)-1:], "lsz"):
		return stem[:len(stem)-1]
	case measure(stem) == 1 && endsCVC(stem):
		return stem + "e"
	}
	return stem
}

func step5(word string) string {
	if strings.HasSuffix(word, "e") {
		stem := word[:len(word)-1]
		if m := measure(stem); m > 1 || m == 1 && !endsCVC(stem) {
			word = stem
		}
	}
	if measure(word) > 1 && endsDoubleConsonant(word) && strings.HasSuffix(word, "l") {
		word = word[:len(word)-1]
	}
	return word
}

func isConsonant(w string, i int) bool {
	switch w[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	case 'y':
		return i == 0 || !isConsonant(w, i-1)
	}
	return true
}

// measure counts the VC sequences of s, the m in [C](VC)^m[V].
func measure(s string) int {
	m := 0
	inVowel := false
	for i := 0; i < len(s); i++ {
		if isConsonant(s, i) {
			if inVowel {
				m++
			}
			inVowel = false
		} else {
			inVowel = true
		}
	}
	return m
}

func containsVowel(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isConsonant(s, i) {
			return true
		}
	}
	return false
}

func endsDoubleConsonant(s string) bool {
	n := len(s)
	return n >= 2 && s[n-1] == s[n-2] && isConsonant(s, n-1)
}

// endsCVC reports consonant-vowel-consonant endings whose last letter is not
// w, x or y.
func endsCVC(s string) bool {
	n := len(s)
	if n < 3 || !isConsonant(s, n-3) || isConsonant(s, n-2) || !isConsonant(s, n-1) {
		return false
	}
	return !strings.ContainsAny(s[n-1:], "wxy")
}
