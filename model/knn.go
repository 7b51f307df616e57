package model

import (
	"fmt"
	"math"

	"github.com/facebookresearch/StarSpace/matrix"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/utils"
	"gonum.org/v1/gonum/mat"
)

// KNN scans the first maxRows rows of t and returns the k most similar to
// point, best first. Ties keep the lower row id.
func (m *EmbedModel) KNN(t *matrix.SparseLinear, point []float64, k, maxRows int) []utils.Scored {
	maxRows = min(maxRows, t.Rows())
	best := make([]utils.Scored, min(k, maxRows))
	if len(best) == 0 {
		return best
	}
	for i := range best {
		best[i] = utils.Scored{Score: math.Inf(-1), ID: -1}
	}
	var dots *mat.VecDense
	if m.args.SimilarityKind() == params.Dot {
		// One matrix-vector product scores every row.
		dots = mat.NewVecDense(maxRows, nil)
		dots.MulVec(t.M.Slice(0, maxRows, 0, t.Cols()), mat.NewVecDense(len(point), point))
	}
	last := len(best) - 1
	for i := 0; i < maxRows; i++ {
		var sim float64
		if dots != nil {
			sim = dots.AtVec(i)
		} else {
			sim = m.Similarity(point, t.Row(int32(i)))
		}
		if !(sim > best[last].Score) {
			continue
		}
		// Sorted insert: shift worse entries down one slot.
		j := last
		for j > 0 && best[j-1].Score < sim {
			best[j] = best[j-1]
			j--
		}
		best[j] = utils.Scored{Score: sim, ID: i}
	}
	for _, s := range best {
		if s.ID == -1 {
			panic(fmt.Sprintf("EmbedModel.KNN: unfilled slot, %d rows scanned for k=%d", maxRows, k))
		}
	}
	return best
}

// FindLHSLike returns the k dictionary entries whose LHS rows are closest to point.
func (m *EmbedModel) FindLHSLike(point []float64, k int) []utils.Scored {
	return m.KNN(m.LHS, point, k, int(m.dict.Size()))
}

// FindRHSLike is FindLHSLike over the RHS table.
func (m *EmbedModel) FindRHSLike(point []float64, k int) []utils.Scored {
	return m.KNN(m.RHS, point, k, int(m.dict.Size()))
}
