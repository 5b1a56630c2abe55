// Package wordnet loads a Princeton WordNet 3.x database directory into
// memory and answers the lookups METEOR's synonym stage needs: base forms of
// an inflected word and the lemmas that share a sense with it.
package wordnet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// POS is a WordNet part of speech.
type POS byte

const (
	Noun      POS = 'n'
	Verb      POS = 'v'
	Adjective POS = 'a'
	Adverb    POS = 'r'
)

// AllPOS lists the parts of speech in lookup order.
var AllPOS = []POS{Noun, Verb, Adjective, Adverb}

var posFiles = map[POS]string{
	Noun:      "noun",
	Verb:      "verb",
	Adjective: "adj",
	Adverb:    "adv",
}

func (p POS) String() string { return posFiles[p] }

// Database is an in-memory WordNet. It is read-only after loading and safe
// for concurrent use.
type Database struct {
	// index maps lemma to the offsets of its synsets.
	index map[POS]map[string][]int64
	// synsets maps a synset offset to its lemmas.
	synsets map[POS]map[int64][]string
	// exceptions maps an irregular form to its base forms.
	exceptions map[POS]map[string][]string
}

// Open loads the database files from dir.
func Open(dir string) (*Database, error) {
	return Load(os.DirFS(dir))
}

// Load reads index.<pos>, data.<pos> and <pos>.exc for every part of speech
// from fsys. Exception lists are optional.
func Load(fsys fs.FS) (*Database, error) {
	db := &Database{
		index:      make(map[POS]map[string][]int64, len(AllPOS)),
		synsets:    make(map[POS]map[int64][]string, len(AllPOS)),
		exceptions: make(map[POS]map[string][]string, len(AllPOS)),
	}
	for _, pos := range AllPOS {
		name := posFiles[pos]
		idx, err := readFile(fsys, "index."+name, parseIndex)
		if err != nil {
			return nil, err
		}
		data, err := readFile(fsys, "data."+name, parseData)
		if err != nil {
			return nil, err
		}
		exc, err := readFile(fsys, name+".exc", parseExceptions)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if exc == nil {
			exc = map[string][]string{}
		}
		db.index[pos], db.synsets[pos], db.exceptions[pos] = idx, data, exc
	}
	slog.Default().With("component", "wordnet").Info("wordnet loaded",
		"noun_synsets", len(db.synsets[Noun]),
		"verb_synsets", len(db.synsets[Verb]),
		"adj_synsets", len(db.synsets[Adjective]),
		"adv_synsets", len(db.synsets[Adverb]),
	)
	return db, nil
}

func readFile[T any](fsys fs.FS, name string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := fsys.Open(name)
	if err != nil {
		return zero, fmt.Errorf("open wordnet file %s: %w", name, err)
	}
	defer f.Close()
	v, err := parse(f)
	if err != nil {
		return zero, fmt.Errorf("parse wordnet file %s: %w", name, err)
	}
	return v, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return sc
}

// isLicenseLine reports the indented header lines of the database files.
func isLicenseLine(line string) bool {
	return strings.HasPrefix(line, "  ") || line == ""
}

// parseIndex reads lines of the form
// lemma pos synset_cnt p_cnt [ptr_symbol...] sense_cnt tagsense_cnt offset...
func parseIndex(r io.Reader) (map[string][]int64, error) {
	out := make(map[string][]int64)
	sc := newScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if isLicenseLine(line) {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 4 {
			return nil, fmt.Errorf("short index line %q", line)
		}
		synsetCnt, err := strconv.Atoi(f[2])
		if err != nil {
			return nil, fmt.Errorf("synset count in %q: %w", line, err)
		}
		if len(f) < 6+synsetCnt {
			return nil, fmt.Errorf("truncated index line %q", line)
		}
		offsets := make([]int64, 0, synsetCnt)
		for _, s := range f[len(f)-synsetCnt:] {
			off, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("synset offset in %q: %w", line, err)
			}
			offsets = append(offsets, off)
		}
		out[f[0]] = offsets
	}
	return out, sc.Err()
}

// parseData reads lines of the form
// offset lex_filenum ss_type w_cnt word lex_id [word lex_id...] p_cnt ... | gloss
func parseData(r io.Reader) (map[int64][]string, error) {
	out := make(map[int64][]string)
	sc := newScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if isLicenseLine(line) {
			continue
		}
		if i := strings.Index(line, " | "); i >= 0 {
			line = line[:i]
		}
		f := strings.Fields(line)
		if len(f) < 4 {
			return nil, fmt.Errorf("short data line %q", line)
		}
		off, err := strconv.ParseInt(f[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("synset offset in %q: %w", line, err)
		}
		wCnt, err := strconv.ParseInt(f[3], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("word count in %q: %w", line, err)
		}
		if len(f) < 4+2*int(wCnt) {
			return nil, fmt.Errorf("truncated data line %q", line)
		}
		lemmas := make([]string, 0, wCnt)
		for i := 0; i < int(wCnt); i++ {
			word := f[4+2*i]
			// adjective syntactic markers: word(a), word(p), word(ip)
			if p := strings.IndexByte(word, '('); p > 0 {
				word = word[:p]
			}
			lemmas = append(lemmas, word)
		}
		out[off] = lemmas
	}
	return out, sc.Err()
}

// parseExceptions reads lines of the form "inflected base [base...]".
func parseExceptions(r io.Reader) (map[string][]string, error) {
	out := make(map[string][]string)
	sc := newScanner(r)
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 2 {
			continue
		}
		out[f[0]] = append(out[f[0]], f[1:]...)
	}
	return out, sc.Err()
}

// Contains reports whether lemma has at least one synset with pos.
func (d *Database) Contains(lemma string, pos POS) bool {
	_, ok := d.index[pos][lemma]
	return ok
}

// Synsets returns the lemmas of every synset of the base forms of word.
func (d *Database) Synsets(word string, pos POS) [][]string {
	var out [][]string
	for _, form := range d.Morphy(word, pos) {
		for _, off := range d.index[pos][form] {
			if lemmas, ok := d.synsets[pos][off]; ok {
				out = append(out, lemmas)
			}
		}
	}
	return out
}

// Synonyms returns the single-word lemmas sharing a sense with word in pos.
// Multi-word lemmas, joined with underscores in WordNet, are left out.
func (d *Database) Synonyms(word string, pos POS) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, lemmas := range d.Synsets(word, pos) {
		for _, l := range lemmas {
			if strings.Contains(l, "_") {
				continue
			}
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
