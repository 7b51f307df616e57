package data

import (
	"io"
	"math/rand/v2"
	"sync/atomic"

	"github.com/facebookresearch/StarSpace/IO"
	"github.com/facebookresearch/StarSpace/log"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/pkg/errors"
)

var ErrNoExamples = errors.New("no valid examples")

const maxWordNegatives = 10000000

// Handler stores parsed examples and turns them into training pairs.
// Methods taking a *rand.Rand are safe for concurrent use as long as every
// goroutine brings its own generator; the sequential cursor is not.
type Handler interface {
	LoadFromFile(path string, p parser.Parser) error
	AddExample(ex parser.ParseResults)
	// Convert applies the training-mode split policy to a raw example.
	Convert(ex parser.ParseResults, rng *rand.Rand) parser.ParseResults
	ExampleByID(idx int, rng *rand.Rand) parser.ParseResults
	NextExample(rng *rand.Rand) parser.ParseResults
	RandomExample(rng *rand.Rand) parser.ParseResults
	NextKExamples(k int, rng *rand.Rand) []parser.ParseResults
	KRandomExamples(k int, rng *rand.Rand) []parser.ParseResults
	// WordExamples returns one context-window example per token of example idx.
	WordExamples(idx int, rng *rand.Rand) []parser.ParseResults
	RandomRHS(rng *rand.Rand) []parser.Base
	RandomWord() []parser.Base
	InitWordNegatives(rng *rand.Rand)
	Size() int
	Save(w io.Writer) error
}

// New returns the handler matching args.FileFormat.
func New(args *params.Args, logger log.Logger) Handler {
	if args.Format() == params.LabelDoc {
		h := &LayerDataHandler{}
		h.init(args, logger)
		return h
	}
	h := &InternDataHandler{}
	h.init(args, logger)
	return h
}

// store holds what both handlers share: the examples, the cursor and the
// word negative pool. It holds an atomic and must not be copied.
type store struct {
	args     *params.Args
	log      log.Logger
	examples parser.Corpus

	// order is the permutation the cursor walks; idx is its position.
	order []int
	idx   int

	wordNegatives []parser.Base
	wordIter      atomic.Uint64
}

func (s *store) init(args *params.Args, logger log.Logger) {
	s.args = args
	s.log = log.Or(logger)
	s.idx = -1
}

func (s *store) Size() int { return len(s.examples) }

func (s *store) AddExample(ex parser.ParseResults) {
	s.examples = append(s.examples, ex)
}

func (s *store) load(path string, p parser.Parser) error {
	threads := max(s.args.Thread, 1)
	var corpora []parser.Corpus
	var err error
	if s.args.CompressFile == "gzip" {
		s.log.Info("Loading data from compressed shards: %s", path)
		corpora = make([]parser.Corpus, s.args.NumGzFile)
		err = IO.ForEachShard(path, s.args.NumGzFile, threads, func(shard int, line string) {
			corpora[shard] = append(corpora[shard], p.ParseLine(line)...)
		})
	} else {
		s.log.Info("Loading data from file: %s", path)
		corpora = make([]parser.Corpus, threads)
		err = IO.ForEachLine(path, threads, func(worker int, line string) {
			corpora[worker] = append(corpora[worker], p.ParseLine(line)...)
		})
	}
	if err != nil {
		return errors.Wrapf(err, "loading %s", path)
	}
	total := len(s.examples)
	for _, c := range corpora {
		total += len(c)
	}
	merged := make(parser.Corpus, len(s.examples), total)
	copy(merged, s.examples)
	for _, c := range corpora {
		merged = append(merged, c...)
	}
	s.examples = merged
	s.log.Info("Total number of examples loaded: %d", len(s.examples))
	if len(s.examples) == 0 {
		return errors.Wrap(ErrNoExamples, path)
	}
	return nil
}

// next walks a shuffled permutation of the examples round-robin. The
// permutation is drawn on first use and again whenever examples were added.
func (s *store) next(rng *rand.Rand) parser.ParseResults {
	if len(s.examples) == 0 {
		panic("data: next on empty store")
	}
	if len(s.order) != len(s.examples) {
		s.order = rng.Perm(len(s.examples))
		s.idx = -1
	}
	s.idx = (s.idx + 1) % len(s.order)
	return s.examples[s.order[s.idx]]
}

func (s *store) random(rng *rand.Rand) parser.ParseResults {
	return s.examples[rng.IntN(len(s.examples))]
}

// initWordNegatives fills the pool with draws from gen; gen reports false
// when the picked example has no words.
func (s *store) initWordNegatives(rng *rand.Rand, gen func(*rand.Rand) (parser.Base, bool)) {
	tokens := 0
	for _, ex := range s.examples {
		tokens += len(ex.LHSTokens)
		for _, f := range ex.RHSFeatures {
			tokens += len(f)
		}
	}
	size := min(maxWordNegatives, max(1000, tokens))
	s.wordIter.Store(0)
	s.wordNegatives = s.wordNegatives[:0]
	if tokens == 0 {
		return
	}
	for misses := 0; len(s.wordNegatives) < size && misses < 10*size; {
		if b, ok := gen(rng); ok {
			s.wordNegatives = append(s.wordNegatives, b)
		} else {
			misses++
		}
	}
}

// RandomWord cycles through the precomputed pool.
func (s *store) RandomWord() []parser.Base {
	if len(s.wordNegatives) == 0 {
		return nil
	}
	i := (s.wordIter.Add(1) - 1) % uint64(len(s.wordNegatives))
	return []parser.Base{s.wordNegatives[i]}
}

// wordExamples makes one example per position of doc: that token is the
// label and the tokens within ws positions on either side are the input.
func wordExamples(doc []parser.Base, ws int, weight float64) []parser.ParseResults {
	out := make([]parser.ParseResults, 0, len(doc))
	for w := range doc {
		ex := parser.ParseResults{Weight: weight, RHSTokens: []parser.Base{doc[w]}}
		for i := max(w-ws, 0); i <= min(w+ws, len(doc)-1); i++ {
			if i != w {
				ex.LHSTokens = append(ex.LHSTokens, doc[i])
			}
		}
		out = append(out, ex)
	}
	return out
}

func clone(b []parser.Base) []parser.Base {
	return append([]parser.Base(nil), b...)
}
