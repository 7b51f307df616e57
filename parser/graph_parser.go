package parser

// ReversePrefix marks the synthesized inverse of a relation.
const ReversePrefix = "_reverse_"

// GraphParser reads "head relation tail" triples. Each triple yields the
// examples (head, relation) -> tail and (tail, reverse relation) -> head.
type GraphParser struct {
	DataParser
}

func Reverse(rel string) string { return ReversePrefix + rel }

func (p *GraphParser) ParseForDict(line string) []string {
	toks := splitAny(line, "\t ")
	if len(toks) != 3 {
		return nil
	}
	return append(toks, Reverse(toks[1]))
}

func (p *GraphParser) ParseLine(line string) []ParseResults {
	toks := splitAny(line, "\t ")
	if len(toks) != 3 {
		return nil
	}
	head := p.dict.ID(toks[0])
	rel := p.dict.ID(toks[1])
	tail := p.dict.ID(toks[2])
	rev := p.dict.ID(Reverse(toks[1]))
	if head < 0 || rel < 0 || tail < 0 || rev < 0 {
		return nil
	}
	return []ParseResults{
		{Weight: 1, LHSTokens: []Base{{head, 1}, {rel, 1}}, RHSTokens: []Base{{tail, 1}}},
		{Weight: 1, LHSTokens: []Base{{tail, 1}, {rev, 1}}, RHSTokens: []Base{{head, 1}}},
	}
}

// Check accepts any example with both sides; graph examples are never split by mode.
func (p *GraphParser) Check(ex ParseResults) bool {
	return len(ex.LHSTokens) > 0 && len(ex.RHSTokens) > 0
}
