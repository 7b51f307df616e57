package data

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/facebookresearch/StarSpace/parser"
	"github.com/pkg/errors"
)

// LayerDataHandler serves labelDoc examples, whose right-hand entities are
// feature bags. Bags are copied through per-side dropout.
type LayerDataHandler struct {
	store
}

func (h *LayerDataHandler) LoadFromFile(path string, p parser.Parser) error {
	return h.load(path, p)
}

// insert appends src to dst keeping each feature with probability 1-dropout.
func insert(dst, src []parser.Base, dropout float64, rng *rand.Rand) []parser.Base {
	if dropout < 1e-8 {
		return append(dst, src...)
	}
	for _, b := range src {
		if rng.Float64() > dropout {
			dst = append(dst, b)
		}
	}
	return dst
}

func (h *LayerDataHandler) Convert(ex parser.ParseResults, rng *rand.Rand) parser.ParseResults {
	out := parser.ParseResults{Weight: ex.Weight}
	feats := ex.RHSFeatures
	dl, dr := h.args.DropoutLHS, h.args.DropoutRHS
	switch mode := h.args.TrainMode; mode {
	case 0:
		out.LHSTokens = insert(nil, ex.LHSTokens, dl, rng)
		out.RHSTokens = insert(nil, feats[rng.IntN(len(feats))], dr, rng)
	case 5:
		out.LHSTokens = clone(ex.LHSTokens)
		for _, f := range feats {
			out.RHSTokens = append(out.RHSTokens, f...)
		}
	default:
		if len(feats) < 2 {
			panic(fmt.Sprintf("LayerDataHandler.Convert: mode %d needs two feature bags, got %d", mode, len(feats)))
		}
		switch mode {
		case 1:
			idx := rng.IntN(len(feats))
			for i, f := range feats {
				if i == idx {
					out.RHSTokens = insert(out.RHSTokens, f, dr, rng)
				} else {
					out.LHSTokens = insert(out.LHSTokens, f, dl, rng)
				}
			}
		case 2:
			idx := rng.IntN(len(feats))
			for i, f := range feats {
				if i == idx {
					out.LHSTokens = insert(out.LHSTokens, f, dl, rng)
				} else {
					out.RHSTokens = insert(out.RHSTokens, f, dr, rng)
				}
			}
		case 3:
			idx, idx2 := twoDistinct(len(feats), rng)
			out.LHSTokens = insert(nil, feats[idx], dl, rng)
			out.RHSTokens = insert(nil, feats[idx2], dr, rng)
		case 4:
			out.LHSTokens = insert(nil, feats[0], dl, rng)
			out.RHSTokens = insert(nil, feats[1], dr, rng)
		}
	}
	return out
}

func (h *LayerDataHandler) ExampleByID(idx int, rng *rand.Rand) parser.ParseResults {
	return h.Convert(h.examples[idx], rng)
}

func (h *LayerDataHandler) NextExample(rng *rand.Rand) parser.ParseResults {
	return h.Convert(h.next(rng), rng)
}

func (h *LayerDataHandler) RandomExample(rng *rand.Rand) parser.ParseResults {
	return h.Convert(h.random(rng), rng)
}

func (h *LayerDataHandler) NextKExamples(k int, rng *rand.Rand) []parser.ParseResults {
	out := make([]parser.ParseResults, 0, min(k, h.Size()))
	for i := 0; i < min(k, h.Size()); i++ {
		out = append(out, h.Convert(h.next(rng), rng))
	}
	return out
}

func (h *LayerDataHandler) KRandomExamples(k int, rng *rand.Rand) []parser.ParseResults {
	out := make([]parser.ParseResults, 0, min(k, h.Size()))
	for i := 0; i < min(k, h.Size()); i++ {
		out = append(out, h.RandomExample(rng))
	}
	return out
}

// WordExamples trains on the words of one random feature bag.
func (h *LayerDataHandler) WordExamples(idx int, rng *rand.Rand) []parser.ParseResults {
	ex := h.examples[idx]
	if len(ex.RHSFeatures) == 0 {
		return nil
	}
	bag := ex.RHSFeatures[rng.IntN(len(ex.RHSFeatures))]
	return wordExamples(bag, h.args.Ws, ex.Weight)
}

func (h *LayerDataHandler) RandomRHS(rng *rand.Rand) []parser.Base {
	ex := h.random(rng)
	r := rng.IntN(len(ex.RHSFeatures))
	switch h.args.TrainMode {
	case 2:
		var out []parser.Base
		for i, f := range ex.RHSFeatures {
			if i != r {
				out = insert(out, f, h.args.DropoutRHS, rng)
			}
		}
		return out
	case 5:
		bag := ex.RHSFeatures[r]
		return []parser.Base{bag[rng.IntN(len(bag))]}
	}
	return insert(nil, ex.RHSFeatures[r], h.args.DropoutRHS, rng)
}

func (h *LayerDataHandler) genRandomWord(rng *rand.Rand) (parser.Base, bool) {
	ex := h.random(rng)
	if len(ex.RHSFeatures) == 0 {
		return parser.Base{}, false
	}
	bag := ex.RHSFeatures[rng.IntN(len(ex.RHSFeatures))]
	if len(bag) == 0 {
		return parser.Base{}, false
	}
	return bag[rng.IntN(len(bag))], true
}

func (h *LayerDataHandler) InitWordNegatives(rng *rand.Rand) {
	h.initWordNegatives(rng, h.genRandomWord)
}

func (h *LayerDataHandler) Save(w io.Writer) error {
	for _, ex := range h.examples {
		fmt.Fprint(w, "lhs: ")
		writeIDs(w, ex.LHSTokens)
		fmt.Fprint(w, "\nrhs: ")
		for _, f := range ex.RHSFeatures {
			writeIDs(w, f)
			fmt.Fprint(w, "\t")
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return errors.Wrap(err, "saving examples")
		}
	}
	return nil
}
