package ter

import (
	"fmt"
	"math"

	apperrors "github.com/ansonxing23/mt-evaluation/pkg/errors"
)

const (
	costIns = 1
	costDel = 1
	costSub = 1

	// tercom limits
	maxShiftSize = 10
	maxShiftDist = 50
	beamWidth    = 25.0

	maxCacheSize       = 10000
	maxShiftCandidates = 1000
	infinity           = math.MaxInt32 - 10000
)

// Edit operations of a trace.
const (
	opIns   byte = 'i'
	opDel   byte = 'd'
	opNop   byte = ' '
	opSub   byte = 's'
	opUndef byte = 'x'
)

type cell struct {
	cost int
	op   byte
}

type row []cell

type cacheNode struct {
	children map[string]*cacheNode
	row      row
}

func newCacheNode(r row) *cacheNode {
	return &cacheNode{children: make(map[string]*cacheNode), row: r}
}

// beamEditDistance computes edit distances between hypotheses and one fixed
// reference. Rows of the DP matrix are cached in a trie keyed by hypothesis
// words, so a hypothesis sharing a prefix with an earlier one only pays for
// its suffix. Only rows inside a band around the pseudo-diagonal are
// evaluated.
//
// An instance belongs to a single hypothesis/reference shift search and is
// not safe for concurrent use.
type beamEditDistance struct {
	ref        []string
	initialRow row
	emptyRow   row

	root      *cacheNode
	cacheSize int
}

func newBeamEditDistance(ref []string) *beamEditDistance {
	n := len(ref) + 1
	initial := make(row, n)
	empty := make(row, n)
	for j := range n {
		// the first row inserts every reference word
		initial[j] = cell{cost: j * costIns, op: opIns}
		empty[j] = cell{cost: infinity, op: opUndef}
	}
	return &beamEditDistance{
		ref:        ref,
		initialRow: initial,
		emptyRow:   empty,
		root:       newCacheNode(nil),
	}
}

// calculate returns the edit distance of hyp to the reference and the trace
// of operations rewriting hyp into the reference.
func (b *beamEditDistance) calculate(hyp []string) (int, string, error) {
	start, dist := b.findCache(hyp)
	cost, rows, trace, err := b.editDistance(hyp, start, dist)
	if err != nil {
		return 0, "", err
	}
	b.addCache(hyp, rows)
	return cost, trace, nil
}

// editDistance fills the matrix from row start+1 on, seeded with the cached
// rows in cached. It returns the distance, the rows it computed and the
// trace.
func (b *beamEditDistance) editDistance(hyp []string, start int, cached []row) (int, []row, string, error) {
	nHyp, nRef := len(hyp), len(b.ref)

	dist := make([]row, len(cached), nHyp+1)
	copy(dist, cached)
	for range nHyp - start {
		dist = append(dist, append(row(nil), b.emptyRow...))
	}

	ratio := 1.0
	if nHyp > 0 {
		ratio = float64(nRef) / float64(nHyp)
	}
	// very unequal lengths could leave no overlap with the previous row
	beam := beamWidth
	if beamWidth < ratio/2 {
		beam = math.Ceil(ratio/2 + beamWidth)
	}

	for i := start + 1; i <= nHyp; i++ {
		diag := math.Floor(float64(i) * ratio)
		minJ := int(math.Max(0, diag-beam))
		maxJ := int(math.Min(float64(nRef+1), diag+beam))
		if i == nHyp {
			maxJ = nRef + 1
		}

		cur, prev := dist[i], dist[i-1]
		for j := minJ; j < maxJ; j++ {
			if j == 0 {
				cur[j] = cell{cost: prev[j].cost + costDel, op: opDel}
				continue
			}
			sub := cell{cost: prev[j-1].cost + costSub, op: opSub}
			if hyp[i-1] == b.ref[j-1] {
				sub = cell{cost: prev[j-1].cost, op: opNop}
			}
			// deletion is preferred over insertion because the trace is
			// flipped before alignment
			for _, c := range [...]cell{
				sub,
				{cost: prev[j].cost + costDel, op: opDel},
				{cost: cur[j-1].cost + costIns, op: opIns},
			} {
				if c.cost < cur[j].cost {
					cur[j] = c
				}
			}
		}
	}

	trace := make([]byte, 0, nHyp+nRef)
	for i, j := nHyp, nRef; i > 0 || j > 0; {
		op := dist[i][j].op
		trace = append(trace, op)
		switch op {
		case opSub, opNop:
			i--
			j--
		case opIns:
			j--
		case opDel:
			i--
		default:
			return 0, nil, "", fmt.Errorf("%w: unknown edit operation %q at (%d, %d)", apperrors.ErrInternal, op, i, j)
		}
	}
	for l, r := 0, len(trace)-1; l < r; l, r = l+1, r-1 {
		trace[l], trace[r] = trace[r], trace[l]
	}

	return dist[nHyp][nRef].cost, dist[len(cached):], string(trace), nil
}

// findCache walks the trie along hyp and returns how many leading words are
// covered together with the matrix rows for them, row 0 included.
func (b *beamEditDistance) findCache(hyp []string) (int, []row) {
	node := b.root
	rows := []row{b.initialRow}
	for _, w := range hyp {
		next, ok := node.children[w]
		if !ok {
			break
		}
		rows = append(rows, next.row)
		node = next
	}
	return len(rows) - 1, rows
}

// addCache stores the freshly computed rows under the trailing words of hyp.
// The cache never holds more than maxCacheSize rows; a row that does not
// fit is dropped along with the rows after it, leaving a valid prefix path.
func (b *beamEditDistance) addCache(hyp []string, rows []row) {
	skip := len(hyp) - len(rows)
	node := b.root
	for _, w := range hyp[:skip] {
		node = node.children[w]
	}
	for i, w := range hyp[skip:] {
		next, ok := node.children[w]
		if !ok {
			if b.cacheSize >= maxCacheSize {
				return
			}
			next = newCacheNode(rows[i])
			node.children[w] = next
			b.cacheSize++
		}
		node = next
	}
}
