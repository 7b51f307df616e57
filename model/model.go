package model

import (
	"math"

	"github.com/facebookresearch/StarSpace/dict"
	"github.com/facebookresearch/StarSpace/log"
	"github.com/facebookresearch/StarSpace/matrix"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/facebookresearch/StarSpace/utils"
	"gonum.org/v1/gonum/floats"
)

// kMaxLoss leaves headroom so a single triple can never overflow the sums.
const kMaxLoss = 10e7

// EmbedModel owns the LHS and RHS tables and their adagrad accumulators.
// With shareEmb both sides point at one table.
type EmbedModel struct {
	args *params.Args
	dict *dict.Dictionary
	log  log.Logger

	LHS *matrix.SparseLinear
	RHS *matrix.SparseLinear

	lhsUpdates []float64
	rhsUpdates []float64
}

// NumRows is the id space of a dictionary: words, labels and, with ngrams,
// the hash buckets.
func NumRows(args *params.Args, d *dict.Dictionary) int {
	n := int(d.NWords() + d.NLabels())
	if args.Ngrams > 1 {
		n += args.Bucket
	}
	return n
}

// New builds a model with randomly initialised tables.
func New(args *params.Args, d *dict.Dictionary, logger log.Logger) *EmbedModel {
	rows := NumRows(args, d)
	lhs := matrix.NewSparseLinear(rows, args.Dim, args.InitRandSd, utils.NewSource(args.Seed, 0))
	rhs := lhs
	if !args.ShareEmb {
		rhs = matrix.NewSparseLinear(rows, args.Dim, args.InitRandSd, utils.NewSource(args.Seed, 1))
	}
	m := newModel(args, d, logger, lhs, rhs)
	m.log.Info("Initialized model weights. Model size: %d x %d, shared: %v", rows, args.Dim, args.ShareEmb)
	return m
}

func newModel(args *params.Args, d *dict.Dictionary, logger log.Logger, lhs, rhs *matrix.SparseLinear) *EmbedModel {
	m := &EmbedModel{args: args, dict: d, log: log.Or(logger), LHS: lhs, RHS: rhs}
	if args.Adagrad {
		m.lhsUpdates = make([]float64, lhs.Rows())
		m.rhsUpdates = make([]float64, rhs.Rows())
	}
	return m
}

func (m *EmbedModel) Dict() *dict.Dictionary { return m.dict }

func (m *EmbedModel) Shared() bool { return m.LHS == m.RHS }

func (m *EmbedModel) ProjectLHS(ids []parser.Base) []float64 {
	return m.project(m.LHS, ids)
}

func (m *EmbedModel) ProjectRHS(ids []parser.Base) []float64 {
	return m.project(m.RHS, ids)
}

// project sums the rows of ids, then divides by count^p for dot
// similarity or by the L2 norm for cosine.
func (m *EmbedModel) project(t *matrix.SparseLinear, ids []parser.Base) []float64 {
	out := make([]float64, t.Cols())
	t.Forward(ids, out)
	if len(ids) == 0 {
		return out
	}
	if m.args.SimilarityKind() == params.Dot {
		floats.Scale(1/math.Pow(float64(len(ids)), m.args.P), out)
	} else {
		floats.Scale(1/utils.Norm2(out), out)
	}
	return out
}

func (m *EmbedModel) Similarity(a, b []float64) float64 {
	if m.args.SimilarityKind() == params.Dot {
		return utils.Dot(a, b)
	}
	return utils.Cosine(a, b)
}

// TripleLoss is margin - posSim + negSim clamped to [0, kMaxLoss].
func (m *EmbedModel) TripleLoss(posSim, negSim float64) float64 {
	if math.IsNaN(posSim) || math.IsNaN(negSim) || math.IsInf(posSim, 0) || math.IsInf(negSim, 0) {
		panic("TripleLoss: non-finite similarity")
	}
	return utils.Clamp(m.args.Margin-posSim+negSim, 0, kMaxLoss)
}

// truncate scales row back onto the ball of radius maxNorm.
func truncate(row []float64, maxNorm float64) {
	if n := utils.Norm2(row); n > maxNorm {
		floats.Scale(maxNorm/n, row)
	}
}

// Finite reports whether both tables are free of NaN and Inf.
func (m *EmbedModel) Finite() bool {
	if !utils.AllFinite(m.LHS.M.RawMatrix().Data) {
		return false
	}
	return m.Shared() || utils.AllFinite(m.RHS.M.RawMatrix().Data)
}
