package model

import (
	"math/rand/v2"

	"github.com/facebookresearch/StarSpace/data"
	"github.com/facebookresearch/StarSpace/optimizations"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/facebookresearch/StarSpace/utils"
	"gonum.org/v1/gonum/floats"
)

// maxResample bounds the redraws of a negative that equals a true label.
const maxResample = 10

// negative is one entry of the shared pool of a batch.
type negative struct {
	ids  []parser.Base
	proj []float64
}

// drawNegatives fills a pool of n negatives shared by every example of the
// batch. Draws matching a true label of the batch are redrawn a bounded
// number of times and dropped if they still match.
func (m *EmbedModel) drawNegatives(d data.Handler, batch []parser.ParseResults, n int, words bool, rng *rand.Rand) []negative {
	clash := func(ids []parser.Base) bool {
		if len(ids) == 0 {
			return true
		}
		for _, ex := range batch {
			if parser.SameIDs(ids, ex.RHSTokens) {
				return true
			}
		}
		return false
	}
	pool := make([]negative, 0, n)
	for i := 0; i < n; i++ {
		var ids []parser.Base
		for try := 0; try <= maxResample; try++ {
			if words {
				ids = d.RandomWord()
			} else {
				ids = d.RandomRHS(rng)
			}
			if !clash(ids) {
				break
			}
			ids = nil
		}
		if ids == nil {
			continue
		}
		pool = append(pool, negative{ids: ids, proj: m.ProjectRHS(ids)})
	}
	return pool
}

// TrainOneBatch runs the hinge loss over a batch with one shared negative
// pool and returns the summed loss. A rate of zero only measures the loss.
func (m *EmbedModel) TrainOneBatch(d data.Handler, batch []parser.ParseResults, negSearchLimit int, rate0 float64, words bool, rng *rand.Rand) float64 {
	pool := m.drawNegatives(d, batch, negSearchLimit, words, rng)
	total := 0.0
	for _, ex := range batch {
		lhs := m.ProjectLHS(ex.LHSTokens)
		rhsP := m.ProjectRHS(ex.RHSTokens)
		posSim := m.Similarity(lhs, rhsP)

		loss := 0.0
		negMean := make([]float64, len(lhs))
		var violators []negative
		for _, neg := range pool {
			if len(violators) >= m.args.MaxNegSamples {
				break
			}
			if parser.SameIDs(neg.ids, ex.RHSTokens) {
				continue
			}
			l := m.TripleLoss(posSim, m.Similarity(lhs, neg.proj))
			if l > 0 {
				loss += l
				floats.Add(negMean, neg.proj)
				violators = append(violators, neg)
			}
		}
		w := ex.Weight
		total += w * loss / float64(negSearchLimit)
		if len(violators) == 0 || rate0 == 0 {
			continue
		}

		// gradW = mean(t-) - t+
		k := float64(len(violators))
		gradW := negMean
		floats.Scale(1/k, gradW)
		floats.Sub(gradW, rhsP)
		negRates := make([]float64, len(violators))
		for i := range negRates {
			negRates[i] = w * rate0 / k
		}
		m.backward(ex.LHSTokens, ex.RHSTokens, violators, gradW, lhs, w*rate0, -w*rate0, negRates)
	}
	return total
}

// TrainNLLBatch runs the sampled softmax loss: the true label is class 0
// and the pool negatives are the other classes. Logits are raw dot
// products whatever the configured similarity.
func (m *EmbedModel) TrainNLLBatch(d data.Handler, batch []parser.ParseResults, negSearchLimit int, rate0 float64, words bool, rng *rand.Rand) float64 {
	pool := m.drawNegatives(d, batch, negSearchLimit, words, rng)
	total := 0.0
	for _, ex := range batch {
		lhs := m.ProjectLHS(ex.LHSTokens)
		rhsP := m.ProjectRHS(ex.RHSTokens)

		classes := make([]negative, 0, len(pool))
		logits := make([]float64, 1, len(pool)+1)
		logits[0] = utils.Dot(lhs, rhsP)
		for _, neg := range pool {
			if parser.SameIDs(neg.ids, ex.RHSTokens) {
				continue
			}
			classes = append(classes, neg)
			logits = append(logits, utils.Dot(lhs, neg.proj))
		}
		loss, prob := utils.CrossEntropyWithIndex(logits, 0)
		w := ex.Weight
		total += w * loss
		if rate0 == 0 {
			continue
		}

		// dE/dw = t+ (p0 - 1) + sum p_i t_i
		gradW := make([]float64, len(lhs))
		floats.AddScaled(gradW, prob[0]-1, rhsP)
		negRates := make([]float64, len(classes))
		for i, neg := range classes {
			floats.AddScaled(gradW, prob[i+1], neg.proj)
			negRates[i] = w * prob[i+1] * rate0
		}
		m.backward(ex.LHSTokens, ex.RHSTokens, classes, gradW, lhs, w*rate0, w*(prob[0]-1)*rate0, negRates)
	}
	return total
}

// backward applies row -= rate * grad to the input rows, the positive rows
// and every negative's rows. Token weights scale the rates.
func (m *EmbedModel) backward(
	items, labels []parser.Base,
	negs []negative,
	gradW, lhs []float64,
	rateLHS, rateRHSP float64,
	rateRHSN []float64,
) {
	var n1, n2 float64
	if m.args.Adagrad {
		n1 = utils.Dot(gradW, gradW)
		n2 = utils.Dot(lhs, lhs)
	}
	update := func(t []float64, acc []float64, id int32, grad []float64, rate, sq float64) {
		if m.args.Adagrad {
			optimizations.AdagradUpdateInPlace(t, grad, rate, sq, acc, id)
		} else {
			optimizations.SGDUpdateInPlace(t, grad, rate)
		}
	}

	for _, b := range items {
		update(m.LHS.Row(b.ID), m.lhsUpdates, b.ID, gradW, rateLHS*b.Weight, n1)
	}
	for _, b := range labels {
		update(m.RHS.Row(b.ID), m.rhsUpdates, b.ID, lhs, rateRHSP*b.Weight, n2)
	}
	for i, neg := range negs {
		for _, b := range neg.ids {
			update(m.RHS.Row(b.ID), m.rhsUpdates, b.ID, lhs, rateRHSN[i]*b.Weight, n2)
		}
	}
}
