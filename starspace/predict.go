package starspace

import (
	"fmt"
	"io"
	"strings"

	"github.com/facebookresearch/StarSpace/dict"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/facebookresearch/StarSpace/utils"
	"github.com/pkg/errors"
)

var ErrNoNgrams = errors.New("model was not trained with ngrams")

// Neighbor is one nearest-neighbour answer.
type Neighbor struct {
	Symbol string
	Score  float64
}

// ParseDoc maps a free-text line to known ids, splitting on any rune of sep.
func (s *StarSpace) ParseDoc(line, sep string) []parser.Base {
	return s.parser.ParseDoc(line, sep)
}

// GetDocVector embeds a line of text on the RHS side.
func (s *StarSpace) GetDocVector(line, sep string) []float64 {
	return s.model.ProjectRHS(s.ParseDoc(line, sep))
}

// NearestNeighbor returns the k dictionary entries closest to line.
func (s *StarSpace) NearestNeighbor(line string, k int) []Neighbor {
	vec := s.GetDocVector(line, " ")
	var out []Neighbor
	for _, n := range s.model.FindLHSLike(vec, k) {
		out = append(out, Neighbor{Symbol: s.dict.Symbol(int32(n.ID)), Score: n.Score})
	}
	return out
}

// PredictOne scores every base doc against input and keeps the best k.
// The ID of each prediction indexes the base docs.
func (s *StarSpace) PredictOne(input []parser.Base, k int) ([]utils.Scored, error) {
	if len(s.baseDocs) == 0 {
		if err := s.LoadBaseDocs(); err != nil {
			return nil, err
		}
	}
	lhs := s.model.ProjectLHS(input)
	top := utils.NewTopK(k)
	for i, v := range s.baseDocVectors {
		top.Push(s.model.Similarity(lhs, v), i)
	}
	return top.Sorted(), nil
}

// PredictTags returns the k best base docs for line, keyed by their rendered tokens.
func (s *StarSpace) PredictTags(line string, k int) (map[string]float64, error) {
	preds, err := s.PredictOne(s.ParseDoc(line, " "), k)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(preds))
	for i, toks := range s.RenderTokens(preds) {
		out[strings.Join(toks, " ")] = preds[i].Score
	}
	return out, nil
}

// RenderTokens turns predictions from PredictOne back into symbols.
// Ngram bucket ids have no symbol and are left out.
func (s *StarSpace) RenderTokens(preds []utils.Scored) [][]string {
	out := make([][]string, 0, len(preds))
	for _, p := range preds {
		var cur []string
		for _, t := range s.baseDocs[p.ID] {
			if t.ID < s.dict.Size() {
				cur = append(cur, s.dict.Symbol(t.ID))
			}
		}
		out = append(out, cur)
	}
	return out
}

// PrintDoc writes the symbols of tokens on one line.
func (s *StarSpace) PrintDoc(w io.Writer, tokens []parser.Base) {
	for _, t := range tokens {
		if t.ID < s.dict.Size() {
			fmt.Fprintf(w, "%s ", s.dict.Symbol(t.ID))
		}
	}
	fmt.Fprintln(w)
}

// BaseDoc returns candidate i as loaded by LoadBaseDocs.
func (s *StarSpace) BaseDoc(i int) []parser.Base { return s.baseDocs[i] }

// GetNgramVector embeds a phrase of at most Ngrams space separated tokens.
// A single known token maps to its own row; otherwise the word tokens are
// hashed to the bucket row training used for that window.
func (s *StarSpace) GetNgramVector(phrase string) ([]float64, error) {
	if s.Args.Ngrams <= 1 {
		return nil, ErrNoNgrams
	}
	var tokens []string
	for _, tok := range strings.Split(phrase, " ") {
		if tok == "" {
			continue
		}
		if s.Args.NormalizeText {
			tok = parser.NormalizeText(tok)
		}
		tokens = append(tokens, tok)
	}
	if len(tokens) > s.Args.Ngrams {
		return nil, errors.Errorf("phrase %q has %d tokens, model ngrams is %d", phrase, len(tokens), s.Args.Ngrams)
	}
	if len(tokens) == 1 {
		if id := s.dict.ID(tokens[0]); id >= 0 {
			return s.model.ProjectLHS([]parser.Base{{ID: id, Weight: 1}}), nil
		}
	}
	var words []string
	for _, tok := range tokens {
		if s.dict.TypeOf(tok) == dict.Word {
			words = append(words, tok)
		}
	}
	if len(words) < 2 {
		return nil, errors.Errorf("phrase %q has no ngram of two or more words", phrase)
	}
	id := parser.NgramID(s.dict, s.Args.Bucket, words)
	return s.model.ProjectLHS([]parser.Base{{ID: id, Weight: 1}}), nil
}
