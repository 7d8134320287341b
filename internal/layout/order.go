package layout

import (
	"math"
	"sort"

	"pdf-translator/internal/logger"
)

const (
	// tallAspectRatio marks a block as a vertical-text candidate when
	// height/width exceeds it.
	tallAspectRatio = 2.0
	// tallBlockQuorum is the fraction of tall blocks that flips a page
	// to vertical-rtl.
	tallBlockQuorum = 0.7
)

// OrderResult carries the solved order and any non-fatal findings
type OrderResult struct {
	Direction Direction
	// Ordered holds the blocks in reading order; each block's Order
	// field is set to its index here.
	Ordered []*Block
	// CycleBroken is set when noisy detections produced mutual
	// precedence edges and the solver had to break a cycle by priority.
	CycleBroken bool
}

// SolveOrder assigns a linear reading order to the page's blocks.
//
// Direction comes from the hint when given, otherwise from block shape:
// a quorum of tall blocks means vertical columns read right to left,
// distinct x-clusters with shared y-ranges mean multi-column, anything
// else is plain top-to-bottom.
//
// Precedence edges connect blocks adjacent along the primary axis that
// overlap on the secondary axis; a candidate edge is suppressed when a
// third block lies between its endpoints, so order propagates through
// neighbors instead of skipping over them. Traversal is a priority DFS:
// a block becomes visitable once all its predecessors are visited, and
// among visitable blocks the one nearest the direction's start corner
// (top-left, or top-right for vertical-rtl) goes first. All candidate
// sets are sorted before selection, so identical input always yields
// identical order.
func SolveOrder(blocks []*Block, hint Direction, pageWidth, pageHeight float64) OrderResult {
	res := OrderResult{Direction: detectDirection(blocks, hint)}
	if len(blocks) == 0 {
		return res
	}

	cols := clusterColumns(blocks)
	ncols := 0
	for _, c := range cols {
		if c+1 > ncols {
			ncols = c + 1
		}
	}
	edges := buildEdges(blocks, res.Direction)

	indeg := make(map[*Block]int, len(blocks))
	for _, b := range blocks {
		indeg[b] = 0
	}
	for _, tos := range edges {
		for _, to := range tos {
			indeg[to]++
		}
	}

	prio := func(b *Block) (float64, float64, float64) {
		switch res.Direction {
		case DirVerticalRTL:
			// Rightmost column first, top to bottom within it, then
			// distance from the top-right corner.
			return -float64(cols[b] - (ncols - 1)),
				b.Box.Y1,
				math.Hypot(pageWidth-b.Box.X2, b.Box.Y1)
		case DirMultiColumn:
			return float64(cols[b]), b.Box.Y1, math.Hypot(b.Box.X1, b.Box.Y1)
		default:
			return b.Box.Y1, b.Box.X1, math.Hypot(b.Box.X1, b.Box.Y1)
		}
	}
	less := func(a, b *Block) bool {
		a1, a2, a3 := prio(a)
		b1, b2, b3 := prio(b)
		if a1 != b1 {
			return a1 < b1
		}
		if a2 != b2 {
			return a2 < b2
		}
		if a3 != b3 {
			return a3 < b3
		}
		return a.ID < b.ID
	}

	visited := make(map[*Block]bool, len(blocks))
	for len(res.Ordered) < len(blocks) {
		var visitable []*Block
		for _, b := range blocks {
			if !visited[b] && indeg[b] == 0 {
				visitable = append(visitable, b)
			}
		}
		if len(visitable) == 0 {
			// Mutual precedence edges from noisy detections. Break the
			// cycle at the highest-priority remaining block and surface
			// it to the caller.
			for _, b := range blocks {
				if !visited[b] {
					visitable = append(visitable, b)
				}
			}
			res.CycleBroken = true
			logger.Warn("reading order graph contains a cycle, breaking by corner distance",
				logger.Int("remaining", len(visitable)))
		}
		sort.SliceStable(visitable, func(i, j int) bool { return less(visitable[i], visitable[j]) })

		next := visitable[0]
		next.Order = len(res.Ordered)
		res.Ordered = append(res.Ordered, next)
		visited[next] = true
		for _, to := range edges[next] {
			if indeg[to] > 0 {
				indeg[to]--
			}
		}
	}
	return res
}

// detectDirection resolves the page direction from the hint or, failing
// that, from block geometry.
func detectDirection(blocks []*Block, hint Direction) Direction {
	switch hint {
	case DirHorizontal, DirVerticalRTL, DirMultiColumn:
		return hint
	}
	if len(blocks) == 0 {
		return DirHorizontal
	}

	tall := 0
	for _, b := range blocks {
		if b.IsTall() {
			tall++
		}
	}
	if float64(tall)/float64(len(blocks)) >= tallBlockQuorum {
		return DirVerticalRTL
	}

	cols := clusterColumns(blocks)
	n := 0
	for _, c := range cols {
		if c+1 > n {
			n = c + 1
		}
	}
	if n >= 2 && columnsShareY(blocks, cols) {
		return DirMultiColumn
	}
	return DirHorizontal
}

// clusterColumns groups blocks into x-range clusters and returns each
// block's cluster index, numbered left to right.
func clusterColumns(blocks []*Block) map[*Block]int {
	sorted := append([]*Block(nil), blocks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.X1 != sorted[j].Box.X1 {
			return sorted[i].Box.X1 < sorted[j].Box.X1
		}
		return sorted[i].ID < sorted[j].ID
	})

	cols := make(map[*Block]int, len(blocks))
	idx := -1
	var right float64
	for _, b := range sorted {
		if idx < 0 || b.Box.X1 >= right {
			idx++
			right = b.Box.X2
		} else if b.Box.X2 > right {
			right = b.Box.X2
		}
		cols[b] = idx
	}
	return cols
}

// columnsShareY reports whether at least two distinct clusters contain
// blocks with overlapping y-ranges, which is what makes side-by-side
// clusters columns rather than unrelated regions.
func columnsShareY(blocks []*Block, cols map[*Block]int) bool {
	for i, a := range blocks {
		for _, b := range blocks[i+1:] {
			if cols[a] != cols[b] && a.Box.OverlapsY(b.Box) {
				return true
			}
		}
	}
	return false
}

// buildEdges constructs the precedence graph for the given direction
func buildEdges(blocks []*Block, dir Direction) map[*Block][]*Block {
	precedes := func(a, b *Block) bool {
		if dir == DirVerticalRTL {
			// Right of, reading toward the left, sharing vertical range
			return a.Box.CenterX() > b.Box.CenterX() && a.Box.OverlapsY(b.Box)
		}
		return a.Box.CenterY() < b.Box.CenterY() && a.Box.OverlapsX(b.Box)
	}
	between := func(a, b, c *Block) bool {
		if dir == DirVerticalRTL {
			return c.Box.CenterX() < a.Box.CenterX() && c.Box.CenterX() > b.Box.CenterX() &&
				c.Box.OverlapsY(a.Box) && c.Box.OverlapsY(b.Box)
		}
		return c.Box.CenterY() > a.Box.CenterY() && c.Box.CenterY() < b.Box.CenterY() &&
			c.Box.OverlapsX(a.Box) && c.Box.OverlapsX(b.Box)
	}

	edges := make(map[*Block][]*Block, len(blocks))
	for _, a := range blocks {
		for _, b := range blocks {
			if a == b || !precedes(a, b) {
				continue
			}
			skip := false
			for _, c := range blocks {
				if c != a && c != b && between(a, b, c) {
					skip = true
					break
				}
			}
			if !skip {
				edges[a] = append(edges[a], b)
			}
		}
	}
	return edges
}
