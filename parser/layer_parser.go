package parser

import (
	"strings"

	"github.com/facebookresearch/StarSpace/dict"
)

// LayerDataParser reads the labelDoc format: tab separated fields, each a
// space separated bag of features. In trainMode 0 the first field is the LHS.
type LayerDataParser struct {
	DataParser
}

// parseBag keeps every known id of a space separated field.
func (p *LayerDataParser) parseBag(field string, rslt *ParseResults) []Base {
	var feats []Base
	var words []string
	for _, tok := range splitAny(field, " ") {
		if w, ok := p.exampleWeight(tok); ok {
			rslt.Weight = w
			continue
		}
		t, w := p.clean(tok)
		if t != "" && p.dict.TypeOf(t) == dict.Word {
			words = append(words, t)
		}
		if wid := p.dict.ID(t); wid >= 0 {
			feats = append(feats, Base{wid, w})
		}
	}
	if p.args.Ngrams > 1 {
		feats = p.addNgrams(words, feats)
	}
	return feats
}

func (p *LayerDataParser) ParseLine(line string) []ParseResults {
	ex := ParseResults{Weight: 1}
	parts := strings.Split(line, "\t")
	start := 0
	if p.args.TrainMode == 0 {
		ex.LHSTokens = p.parseBag(parts[0], &ex)
		start = 1
	}
	for _, part := range parts[start:] {
		if feats := p.parseBag(part, &ex); len(feats) > 0 {
			ex.RHSFeatures = append(ex.RHSFeatures, feats)
		}
	}
	if !p.Check(ex) {
		return nil
	}
	return []ParseResults{ex}
}

func (p *LayerDataParser) Check(ex ParseResults) bool {
	switch p.args.TrainMode {
	case 0:
		return len(ex.LHSTokens) > 0 && len(ex.RHSFeatures) > 0
	case 5:
		return len(ex.RHSFeatures) > 0
	default:
		return len(ex.RHSFeatures) > 1
	}
}
