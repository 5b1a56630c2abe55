package ter

import (
	"context"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

// EditRate is the outcome of aligning one hypothesis with one reference.
type EditRate struct {
	Edits     int
	RefLength int
}

// TranslationEditRate returns the number of edits, shifts included, needed
// to turn hyp into ref. The shift search stops when no shift lowers the edit
// distance, when maxShiftCandidates candidates have been tried, or when ctx
// is done.
func TranslationEditRate(ctx context.Context, hyp, ref []string) (EditRate, error) {
	if len(ref) == 0 {
		return EditRate{Edits: len(hyp)}, nil
	}

	ed := newBeamEditDistance(ref)
	shifts, checked := 0, 0
	words := hyp
	for {
		if err := ctx.Err(); err != nil {
			return EditRate{}, err
		}
		delta, shifted, n, err := shift(words, ref, ed, checked)
		if err != nil {
			return EditRate{}, err
		}
		checked = n
		if checked >= maxShiftCandidates || delta <= 0 {
			break
		}
		shifts++
		words = shifted
	}

	cost, _, err := ed.calculate(words)
	if err != nil {
		return EditRate{}, err
	}
	return EditRate{Edits: shifts + cost, RefLength: len(ref)}, nil
}

// ranking orders shift candidates. A candidate is better when it saves more
// edits, then when it moves a longer span, then when it starts earlier in
// the hypothesis, then when it targets an earlier position.
type ranking struct {
	delta  int
	length int
	start  int
	idx    int
	words  []string
}

func (r *ranking) better(o *ranking) bool {
	if o == nil {
		return true
	}
	switch {
	case r.delta != o.delta:
		return r.delta > o.delta
	case r.length != o.length:
		return r.length > o.length
	case r.start != o.start:
		return r.start < o.start
	case r.idx != o.idx:
		return r.idx < o.idx
	}
	return slices.Compare(r.words, o.words) > 0
}

// shift tries every candidate shift of hyp and returns the best one with the
// edit distance it saves. checked counts candidates evaluated so far across
// the whole search.
func shift(hyp, ref []string, ed *beamEditDistance, checked int) (int, []string, int, error) {
	preScore, invTrace, err := ed.calculate(hyp)
	if err != nil {
		return 0, nil, checked, err
	}
	// the alignment is computed as if the reference were rewritten into the
	// hypothesis
	align, refErr, hypErr, err := traceToAlignment(flipTrace(invTrace))
	if err != nil {
		return 0, nil, checked, err
	}

	var best *ranking
	for _, p := range findShiftedPairs(hyp, ref) {
		// shift only when the hypothesis span is wrong and the reference
		// does not already match at the target
		if sum(hypErr[p.startH:p.startH+p.length]) == 0 {
			continue
		}
		if sum(refErr[p.startR:p.startR+p.length]) == 0 {
			continue
		}
		// the span would land inside itself
		if a := align[p.startR]; p.startH <= a && a < p.startH+p.length {
			continue
		}

		prevIdx := -1
		for offset := -1; offset < p.length; offset++ {
			var idx int
			switch pos := p.startR + offset; {
			case pos == -1:
				idx = 0
			case pos < len(align):
				// insert before the aligned position
				idx = align[pos] + 1
			default:
				idx = -1
			}
			if idx < 0 {
				break
			}
			if idx == prevIdx {
				continue
			}
			prevIdx = idx

			shifted := performShift(hyp, p.startH, p.length, idx)
			cost, _, err := ed.calculate(shifted)
			if err != nil {
				return 0, nil, checked, err
			}
			checked++

			candidate := &ranking{
				delta:  preScore - cost,
				length: p.length,
				start:  p.startH,
				idx:    idx,
				words:  shifted,
			}
			if candidate.better(best) {
				best = candidate
			}
		}
		if checked >= maxShiftCandidates {
			break
		}
	}

	if best == nil {
		return 0, hyp, checked, nil
	}
	return best.delta, best.words, checked, nil
}

// performShift moves words[start:start+length] so that it begins before
// position target of the original sequence.
func performShift(words []string, start, length, target int) []string {
	out := make([]string, 0, len(words))
	switch {
	case target < start:
		out = append(out, words[:target]...)
		out = append(out, words[start:start+length]...)
		out = append(out, words[target:start]...)
		out = append(out, words[start+length:]...)
	case target > start+length:
		out = append(out, words[:start]...)
		out = append(out, words[start+length:target]...)
		out = append(out, words[start:start+length]...)
		out = append(out, words[target:]...)
	default:
		// target falls within the moved span
		out = append(out, words[:start]...)
		out = append(out, span(words, start+length, length+target)...)
		out = append(out, words[start:start+length]...)
		out = append(out, span(words, length+target, len(words))...)
	}
	return out
}

// span is words[from:to] with both bounds clamped to the slice.
func span(words []string, from, to int) []string {
	from = min(max(from, 0), len(words))
	to = min(max(to, from), len(words))
	return words[from:to]
}

type shiftedPair struct {
	startH, startR, length int
}

// findShiftedPairs returns every (startH, startR, length) such that
// hyp[startH:startH+length] equals ref[startR:startR+length], for spans up to
// maxShiftSize words whose starts are at most maxShiftDist apart.
func findShiftedPairs(hyp, ref []string) []shiftedPair {
	var pairs []shiftedPair
	for startH := range hyp {
		for startR := range ref {
			if abs(startR-startH) > maxShiftDist {
				continue
			}
			for length := 0; length < maxShiftSize && hyp[startH+length] == ref[startR+length]; {
				length++
				pairs = append(pairs, shiftedPair{startH: startH, startR: startR, length: length})
				if startH+length == len(hyp) || startR+length == len(ref) {
					break
				}
			}
		}
	}
	return pairs
}

// flipTrace swaps insertions and deletions, turning a recipe for a->b into
// one for b->a.
func flipTrace(trace string) string {
	return strings.Map(func(r rune) rune {
		switch byte(r) {
		case opIns:
			return rune(opDel)
		case opDel:
			return rune(opIns)
		}
		return r
	}, trace)
}

// traceToAlignment maps every reference position to the hypothesis position
// it is aligned with and flags the erroneous positions on both sides.
func traceToAlignment(trace string) (align, refErr, hypErr []int, err error) {
	posHyp, posRef := -1, -1
	for i := 0; i < len(trace); i++ {
		switch op := trace[i]; op {
		case opNop, opSub:
			posHyp++
			posRef++
			align = append(align, posHyp)
			e := 0
			if op == opSub {
				e = 1
			}
			hypErr = append(hypErr, e)
			refErr = append(refErr, e)
		case opIns:
			posHyp++
			hypErr = append(hypErr, 1)
		case opDel:
			posRef++
			align = append(align, posHyp)
			refErr = append(refErr, 1)
		default:
			return nil, nil, nil, fmt.Errorf("%w: unknown edit operation %q", apperrors.ErrInternal, op)
		}
	}
	return align, refErr, hypErr, nil
}

func sum(xs []int) int {
	s := 0
	for _, x := range xs {
		s += x
	}
	return s
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
