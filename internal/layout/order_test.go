package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/coord"
)

func block(id string, x1, y1, x2, y2 float64) *Block {
	return &Block{
		ID:    id,
		Box:   coord.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Role:  RoleParagraph,
		Order: -1,
	}
}

func orderedIDs(res OrderResult) []string {
	ids := make([]string, len(res.Ordered))
	for i, b := range res.Ordered {
		ids[i] = b.ID
	}
	return ids
}

func TestStackedBlocksTopToBottom(t *testing.T) {
	// A spans the top of the page, B the bottom, same x-range
	a := block("A", 0, 10, 100, 40)
	b := block("B", 0, 200, 100, 240)

	res := SolveOrder([]*Block{b, a}, "", 100, 300)

	assert.Equal(t, DirHorizontal, res.Direction)
	assert.Equal(t, []string{"A", "B"}, orderedIDs(res))
	assert.Equal(t, 0, a.Order)
	assert.Equal(t, 1, b.Order)
	assert.False(t, res.CycleBroken)
}

func TestVerticalColumnsRightToLeft(t *testing.T) {
	// Three columns of vertical text; reading starts at the top of the
	// rightmost column and moves leftward column by column.
	blocks := []*Block{
		block("L1", 0, 0, 50, 100), block("L2", 0, 120, 50, 220),
		block("M1", 60, 0, 100, 100), block("M2", 60, 120, 100, 220),
		block("R1", 110, 0, 150, 100), block("R2", 110, 120, 150, 220),
	}

	res := SolveOrder(blocks, DirVerticalRTL, 150, 240)

	assert.Equal(t, DirVerticalRTL, res.Direction)
	assert.Equal(t, []string{"R1", "R2", "M1", "M2", "L1", "L2"}, orderedIDs(res))
}

func TestVerticalDirectionDetectedFromTallBlocks(t *testing.T) {
	blocks := []*Block{
		block("A", 0, 0, 20, 200),
		block("B", 30, 0, 50, 200),
		block("C", 60, 0, 80, 200),
	}
	res := SolveOrder(blocks, "", 100, 220)
	assert.Equal(t, DirVerticalRTL, res.Direction)
	assert.Equal(t, "C", res.Ordered[0].ID)
}

func TestMultiColumnDetectedAndOrderedColumnMajor(t *testing.T) {
	// Two side-by-side columns of horizontal text. The whole left column
	// is read before the right column even though R1 sits higher than L2.
	l1 := block("L1", 0, 0, 100, 180)
	l2 := block("L2", 0, 200, 100, 380)
	r1 := block("R1", 120, 0, 220, 180)
	r2 := block("R2", 120, 200, 220, 380)

	res := SolveOrder([]*Block{r2, l2, r1, l1}, "", 220, 400)

	assert.Equal(t, DirMultiColumn, res.Direction)
	assert.Equal(t, []string{"L1", "L2", "R1", "R2"}, orderedIDs(res))
}

func TestNoSkipEdgeOverInterveningBlock(t *testing.T) {
	// B lies between A and C; order must pass through it
	a := block("A", 0, 0, 100, 40)
	b := block("B", 0, 60, 100, 100)
	c := block("C", 0, 120, 100, 160)

	res := SolveOrder([]*Block{c, a, b}, DirHorizontal, 100, 200)
	assert.Equal(t, []string{"A", "B", "C"}, orderedIDs(res))
}

func TestOrderIsDeterministic(t *testing.T) {
	mk := func() []*Block {
		return []*Block{
			block("A", 0, 0, 90, 50), block("B", 100, 0, 190, 50),
			block("C", 0, 60, 90, 110), block("D", 100, 60, 190, 110),
			block("E", 0, 120, 190, 170),
		}
	}

	first := SolveOrder(mk(), "", 200, 180)
	for i := 0; i < 20; i++ {
		// Rotate input order; output must not depend on it
		blocks := mk()
		rotated := append(blocks[i%len(blocks):], blocks[:i%len(blocks)]...)
		res := SolveOrder(rotated, "", 200, 180)
		require.Equal(t, orderedIDs(first), orderedIDs(res), "iteration %d", i)
	}
}

func TestEmptyInput(t *testing.T) {
	res := SolveOrder(nil, "", 100, 100)
	assert.Equal(t, DirHorizontal, res.Direction)
	assert.Empty(t, res.Ordered)
}
