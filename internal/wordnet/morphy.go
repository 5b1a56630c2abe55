package wordnet

import "strings"

type detachment struct {
	suffix, ending string
}

// detachments are WordNet's morphological rules, applied in order.
var detachments = map[POS][]detachment{
	Noun: {
		{"s", ""}, {"ses", "s"}, {"ves", "f"}, {"xes", "x"}, {"zes", "z"},
		{"ches", "ch"}, {"shes", "sh"}, {"men", "man"}, {"ies", "y"},
	},
	Verb: {
		{"s", ""}, {"ies", "y"}, {"es", "e"}, {"es", ""},
		{"ed", "e"}, {"ed", ""}, {"ing", "e"}, {"ing", ""},
	},
	Adjective: {
		{"er", ""}, {"est", ""}, {"er", "e"}, {"est", "e"},
	},
	Adverb: nil,
}

// Morphy returns the base forms of word that exist in the database for pos.
// The exception list wins when it knows the word; otherwise the detachment
// rules are applied repeatedly until some candidate is found.
func (d *Database) Morphy(word string, pos POS) []string {
	form := strings.ToLower(strings.TrimSpace(word))
	if form == "" {
		return nil
	}
	form = strings.ReplaceAll(form, " ", "_")

	if bases, ok := d.exceptions[pos][form]; ok {
		return d.filterForms(append([]string{form}, bases...), pos)
	}

	forms := applyDetachments([]string{form}, pos)
	if found := d.filterForms(append([]string{form}, forms...), pos); len(found) > 0 {
		return found
	}
	for len(forms) > 0 {
		forms = applyDetachments(forms, pos)
		if found := d.filterForms(forms, pos); len(found) > 0 {
			return found
		}
	}
	return nil
}

func applyDetachments(forms []string, pos POS) []string {
	var out []string
	for _, f := range forms {
		for _, r := range detachments[pos] {
			if strings.HasSuffix(f, r.suffix) {
				out = append(out, f[:len(f)-len(r.suffix)]+r.ending)
			}
		}
	}
	return out
}

func (d *Database) filterForms(forms []string, pos POS) []string {
	seen := make(map[string]struct{}, len(forms))
	var out []string
	for _, f := range forms {
		if _, dup := seen[f]; dup || !d.Contains(f, pos) {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
