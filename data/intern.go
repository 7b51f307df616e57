package data

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/facebookresearch/StarSpace/parser"
	"github.com/pkg/errors"
)

// InternDataHandler serves fastText and graph examples, where both sides
// are flat lists of ids.
type InternDataHandler struct {
	store
}

func (h *InternDataHandler) LoadFromFile(path string, p parser.Parser) error {
	return h.load(path, p)
}

func (h *InternDataHandler) Convert(ex parser.ParseResults, rng *rand.Rand) parser.ParseResults {
	out := parser.ParseResults{Weight: ex.Weight, LHSTokens: clone(ex.LHSTokens)}
	rhs := ex.RHSTokens
	mode := h.args.TrainMode
	if mode == 5 {
		out.RHSTokens = clone(rhs)
		return out
	}
	if mode == 0 {
		out.RHSTokens = []parser.Base{rhs[rng.IntN(len(rhs))]}
		return out
	}
	if len(rhs) < 2 {
		panic(fmt.Sprintf("InternDataHandler.Convert: mode %d needs two RHS tokens, got %d", mode, len(rhs)))
	}
	switch mode {
	case 1:
		idx := rng.IntN(len(rhs))
		for i, tok := range rhs {
			if i == idx {
				out.RHSTokens = append(out.RHSTokens, tok)
			} else {
				out.LHSTokens = append(out.LHSTokens, tok)
			}
		}
	case 2:
		idx := rng.IntN(len(rhs))
		for i, tok := range rhs {
			if i == idx {
				out.LHSTokens = append(out.LHSTokens, tok)
			} else {
				out.RHSTokens = append(out.RHSTokens, tok)
			}
		}
	case 3:
		idx, idx2 := twoDistinct(len(rhs), rng)
		out.LHSTokens = append(out.LHSTokens, rhs[idx])
		out.RHSTokens = []parser.Base{rhs[idx2]}
	case 4:
		out.LHSTokens = append(out.LHSTokens, rhs[0])
		out.RHSTokens = []parser.Base{rhs[1]}
	}
	return out
}

// twoDistinct draws two different indices below n uniformly.
func twoDistinct(n int, rng *rand.Rand) (int, int) {
	a := rng.IntN(n)
	b := rng.IntN(n - 1)
	if b >= a {
		b++
	}
	return a, b
}

func (h *InternDataHandler) ExampleByID(idx int, rng *rand.Rand) parser.ParseResults {
	return h.Convert(h.examples[idx], rng)
}

func (h *InternDataHandler) NextExample(rng *rand.Rand) parser.ParseResults {
	return h.Convert(h.next(rng), rng)
}

func (h *InternDataHandler) RandomExample(rng *rand.Rand) parser.ParseResults {
	return h.Convert(h.random(rng), rng)
}

func (h *InternDataHandler) NextKExamples(k int, rng *rand.Rand) []parser.ParseResults {
	out := make([]parser.ParseResults, 0, min(k, h.Size()))
	for i := 0; i < min(k, h.Size()); i++ {
		out = append(out, h.Convert(h.next(rng), rng))
	}
	return out
}

func (h *InternDataHandler) KRandomExamples(k int, rng *rand.Rand) []parser.ParseResults {
	out := make([]parser.ParseResults, 0, min(k, h.Size()))
	for i := 0; i < min(k, h.Size()); i++ {
		out = append(out, h.RandomExample(rng))
	}
	return out
}

func (h *InternDataHandler) WordExamples(idx int, rng *rand.Rand) []parser.ParseResults {
	ex := h.examples[idx]
	return wordExamples(ex.LHSTokens, h.args.Ws, ex.Weight)
}

// RandomRHS returns the RHS of a random example as a negative: one random
// token, all but one in mode 2, one LHS word in mode 5.
func (h *InternDataHandler) RandomRHS(rng *rand.Rand) []parser.Base {
	ex := h.random(rng)
	if h.args.TrainMode == 5 {
		return []parser.Base{ex.LHSTokens[rng.IntN(len(ex.LHSTokens))]}
	}
	r := rng.IntN(len(ex.RHSTokens))
	if h.args.TrainMode != 2 {
		return []parser.Base{ex.RHSTokens[r]}
	}
	out := make([]parser.Base, 0, len(ex.RHSTokens)-1)
	for i, tok := range ex.RHSTokens {
		if i != r {
			out = append(out, tok)
		}
	}
	return out
}

func (h *InternDataHandler) genRandomWord(rng *rand.Rand) (parser.Base, bool) {
	ex := h.random(rng)
	if len(ex.LHSTokens) == 0 {
		return parser.Base{}, false
	}
	return ex.LHSTokens[rng.IntN(len(ex.LHSTokens))], true
}

func (h *InternDataHandler) InitWordNegatives(rng *rand.Rand) {
	h.initWordNegatives(rng, h.genRandomWord)
}

// Save writes a readable dump of the stored examples.
func (h *InternDataHandler) Save(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "data size : %d\n", h.Size()); err != nil {
		return errors.Wrap(err, "saving examples")
	}
	for _, ex := range h.examples {
		fmt.Fprint(w, "lhs : ")
		writeIDs(w, ex.LHSTokens)
		fmt.Fprint(w, "\nrhs : ")
		writeIDs(w, ex.RHSTokens)
		if _, err := fmt.Fprintln(w); err != nil {
			return errors.Wrap(err, "saving examples")
		}
	}
	return nil
}

func writeIDs(w io.Writer, bs []parser.Base) {
	for _, b := range bs {
		fmt.Fprintf(w, "%d ", b.ID)
	}
}
