package parser

import (
	"strconv"
	"strings"

	"github.com/facebookresearch/StarSpace/dict"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/pkg/errors"
)

const weightToken = "__weight__"

// Base is a feature id with its weight.
type Base struct {
	ID     int32
	Weight float64
}

// ParseResults is one raw example. RHSFeatures is only filled by the
// labelDoc parser, where each right-hand entity is itself a bag of features.
type ParseResults struct {
	Weight      float64
	LHSTokens   []Base
	RHSTokens   []Base
	RHSFeatures [][]Base
}

// Corpus is a sequence of parsed examples.
type Corpus []ParseResults

// Parser turns raw lines into examples for one file format.
type Parser interface {
	// ParseLine returns the valid examples of line (zero, one, or two for graph triples).
	ParseLine(line string) []ParseResults
	// ParseForDict returns the symbols of line to be counted by the dictionary.
	ParseForDict(line string) []string
	// ParseDoc returns the known ids of a free-text document, split on any rune of sep.
	ParseDoc(line, sep string) []Base
	Check(ex ParseResults) bool
}

// New returns the parser for args.FileFormat.
func New(args *params.Args, d *dict.Dictionary) (Parser, error) {
	base := DataParser{dict: d, args: args}
	switch args.FileFormat {
	case "fastText":
		return &base, nil
	case "labelDoc":
		return &LayerDataParser{DataParser: base}, nil
	case "graph":
		return &GraphParser{DataParser: base}, nil
	}
	return nil, errors.Errorf("unsupported file format %q, expected fastText, labelDoc or graph", args.FileFormat)
}

// SameIDs reports whether a and b hold the same ids in the same order.
func SameIDs(a, b []Base) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// DataParser reads the fastText format: whitespace separated tokens,
// labels recognised by the label prefix.
type DataParser struct {
	dict *dict.Dictionary
	args *params.Args
}

// SetDict points the parser at d, used once the dictionary is rebuilt or loaded.
func (p *DataParser) SetDict(d *dict.Dictionary) { p.dict = d }

func splitAny(s, sep string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(sep, r) })
}

// clean strips an optional ":weight" suffix and normalizes the token.
func (p *DataParser) clean(tok string) (string, float64) {
	w := 1.0
	if p.args.UseWeight {
		if i := strings.IndexByte(tok, p.args.WeightSep); i >= 0 {
			if v, err := strconv.ParseFloat(tok[i+1:], 64); err == nil {
				w = v
			}
			tok = tok[:i]
		}
	}
	if p.args.NormalizeText {
		tok = NormalizeText(tok)
	}
	return tok, w
}

// exampleWeight parses a "__weight__:v" token.
func (p *DataParser) exampleWeight(tok string) (float64, bool) {
	if !strings.Contains(tok, weightToken) {
		return 0, false
	}
	w := 1.0
	if i := strings.IndexByte(tok, p.args.WeightSep); i >= 0 {
		if v, err := strconv.ParseFloat(tok[i+1:], 64); err == nil {
			w = v
		}
	}
	return w, true
}

func (p *DataParser) ParseForDict(line string) []string {
	toks := splitAny(line, "\t ")
	out := toks[:0]
	for _, tok := range toks {
		if strings.Contains(tok, weightToken) {
			continue
		}
		t, _ := p.clean(tok)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseTokens routes known word ids to LHS and label ids to RHS.
// The caller sets the default weight; a __weight__ token overrides it.
func (p *DataParser) ParseTokens(tokens []string, rslt *ParseResults) bool {
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if w, ok := p.exampleWeight(tok); ok {
			rslt.Weight = w
			continue
		}
		t, w := p.clean(tok)
		if t != "" && p.dict.TypeOf(t) == dict.Word {
			words = append(words, t)
		}
		wid := p.dict.ID(t)
		if wid < 0 {
			continue
		}
		switch p.dict.Type(wid) {
		case dict.Word:
			rslt.LHSTokens = append(rslt.LHSTokens, Base{wid, w})
		case dict.Label:
			rslt.RHSTokens = append(rslt.RHSTokens, Base{wid, w})
		}
	}
	if p.args.Ngrams > 1 {
		rslt.LHSTokens = p.addNgrams(words, rslt.LHSTokens)
	}
	return p.Check(*rslt)
}

func (p *DataParser) ParseLine(line string) []ParseResults {
	ex := ParseResults{Weight: 1}
	if !p.ParseTokens(splitAny(line, "\t "), &ex) {
		return nil
	}
	return []ParseResults{ex}
}

// ParseDoc keeps every known id, words and labels alike.
func (p *DataParser) ParseDoc(line, sep string) []Base {
	var out []Base
	var words []string
	for _, tok := range splitAny(line, sep) {
		if _, ok := p.exampleWeight(tok); ok {
			continue
		}
		t, w := p.clean(tok)
		if t != "" && p.dict.TypeOf(t) == dict.Word {
			words = append(words, t)
		}
		wid := p.dict.ID(t)
		if wid < 0 {
			continue
		}
		out = append(out, Base{wid, w})
	}
	if p.args.Ngrams > 1 {
		out = p.addNgrams(words, out)
	}
	return out
}

// Check validates an example for the configured training mode.
func (p *DataParser) Check(ex ParseResults) bool {
	switch p.args.TrainMode {
	case 0:
		return len(ex.LHSTokens) > 0 && len(ex.RHSTokens) > 0
	case 5:
		return len(ex.LHSTokens) > 0
	default:
		return len(ex.RHSTokens) > 1
	}
}

// addNgrams appends the bucket ids of every window of 2..n consecutive
// word-typed tokens, known to the dictionary or not. Hashes chain as h = h*HashC + next.
func (p *DataParser) addNgrams(words []string, dst []Base) []Base {
	if len(words) < 2 || p.args.Bucket <= 0 {
		return dst
	}
	hashes := make([]uint64, len(words))
	for i, w := range words {
		hashes[i] = wordHash(w)
	}
	n := p.args.Ngrams
	for i := range hashes {
		h := hashes[i]
		for j := i + 1; j < len(hashes) && j < i+n; j++ {
			h = h*dict.HashC + hashes[j]
			dst = append(dst, Base{bucketID(p.dict, p.args.Bucket, h), 1})
		}
	}
	return dst
}

// wordHash sign-extends the 32-bit symbol hash before chaining.
func wordHash(w string) uint64 {
	return uint64(int64(int32(dict.Hash(w))))
}

func bucketID(d *dict.Dictionary, bucket int, h uint64) int32 {
	return int32(int64(d.NWords()+d.NLabels()) + int64(h%uint64(bucket)))
}

// NgramID is the bucket row of the ngram made of words: the id addNgrams
// gives the same window of a line.
func NgramID(d *dict.Dictionary, bucket int, words []string) int32 {
	if len(words) == 0 || bucket <= 0 {
		panic("NgramID: needs words and a positive bucket count")
	}
	h := wordHash(words[0])
	for _, w := range words[1:] {
		h = h*dict.HashC + wordHash(w)
	}
	return bucketID(d, bucket, h)
}
