package starspace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/facebookresearch/StarSpace/IO"
	"github.com/facebookresearch/StarSpace/metrics"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/facebookresearch/StarSpace/utils"
	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Metrics accumulates rank statistics. Hit and Rank fields are sums until
// Average turns them into rates and the mean rank.
type Metrics struct {
	Hit1, Hit10, Hit20, Hit50 float64
	Rank                      float64
	Count                     int

	ranks []float64
}

// Update records one example whose true label came in at rank (1 is best).
func (m *Metrics) Update(rank int) {
	if rank == 1 {
		m.Hit1++
	}
	if rank <= 10 {
		m.Hit10++
	}
	if rank <= 20 {
		m.Hit20++
	}
	if rank <= 50 {
		m.Hit50++
	}
	m.Rank += float64(rank)
	m.Count++
	m.ranks = append(m.ranks, float64(rank))
}

func (m *Metrics) Add(o Metrics) {
	m.Hit1 += o.Hit1
	m.Hit10 += o.Hit10
	m.Hit20 += o.Hit20
	m.Hit50 += o.Hit50
	m.Rank += o.Rank
	m.Count += o.Count
	m.ranks = append(m.ranks, o.ranks...)
}

func (m *Metrics) Average() {
	if m.Count == 0 {
		return
	}
	n := float64(m.Count)
	m.Hit1 /= n
	m.Hit10 /= n
	m.Hit20 /= n
	m.Hit50 /= n
	m.Rank /= n
}

// MedianRank and P90Rank are 0 when nothing was evaluated.
func (m *Metrics) MedianRank() float64 {
	v, err := stats.Median(stats.Float64Data(m.ranks))
	if err != nil {
		return 0
	}
	return v
}

func (m *Metrics) P90Rank() float64 {
	v, err := stats.Percentile(stats.Float64Data(m.ranks), 90)
	if err != nil {
		return 0
	}
	return v
}

// Render prints the averaged metrics as a table.
func (m *Metrics) Render(w io.Writer) {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"hit@1", f(m.Hit1)})
	table.Append([]string{"hit@10", f(m.Hit10)})
	table.Append([]string{"hit@20", f(m.Hit20)})
	table.Append([]string{"hit@50", f(m.Hit50)})
	table.Append([]string{"mean rank", f(m.Rank)})
	table.Append([]string{"median rank", f(m.MedianRank())})
	table.Append([]string{"p90 rank", f(m.P90Rank())})
	table.Append([]string{"examples", strconv.Itoa(m.Count)})
	table.Render()
}

// LoadBaseDocs fills the candidate set: every label when no basedoc file is
// given, otherwise one document per line of the file.
func (s *StarSpace) LoadBaseDocs() error {
	s.baseDocs = s.baseDocs[:0]
	s.baseDocVectors = s.baseDocVectors[:0]
	if s.Args.BaseDoc == "" {
		if s.Args.Format() == params.LabelDoc {
			return errors.New("must provide base labels when label is featured")
		}
		for i := int32(0); i < s.dict.NLabels(); i++ {
			doc := []parser.Base{{ID: i + s.dict.NWords(), Weight: 1}}
			s.baseDocs = append(s.baseDocs, doc)
			s.baseDocVectors = append(s.baseDocVectors, s.model.ProjectRHS(doc))
		}
		return nil
	}
	s.log.Info("Loading base docs from file : %s", s.Args.BaseDoc)
	err := IO.WithReader(s.Args.BaseDoc, false, func(r io.Reader) error {
		scanner := IO.NewLineScanner(r)
		for scanner.Scan() {
			doc := s.parser.ParseDoc(scanner.Text(), "\t ")
			s.baseDocs = append(s.baseDocs, doc)
			s.baseDocVectors = append(s.baseDocVectors, s.model.ProjectRHS(doc))
		}
		return scanner.Err()
	})
	if err != nil {
		return errors.Wrap(err, "base doc file cannot be opened for loading")
	}
	s.log.Info("Finished loading base docs.")
	return nil
}

// evaluateOne ranks the true RHS against the base docs. Predictions carry
// tag 0 for the true RHS and i+1 for base doc i.
func (s *StarSpace) evaluateOne(lhs, rhs []parser.Base) (int, []utils.Scored) {
	lhsV := s.model.ProjectLHS(lhs)
	score := s.model.Similarity(lhsV, s.model.ProjectRHS(rhs))
	top := utils.NewTopK(s.Args.K)
	top.Push(score, 0)
	rank := 1
	for i, v := range s.baseDocVectors {
		// With the label vocabulary as candidates the true label is already tag 0.
		if s.Args.BaseDoc == "" && i == int(rhs[0].ID-s.dict.NWords()) {
			continue
		}
		if s.Args.ExcludeLHS && parser.SameIDs(s.baseDocs[i], lhs) {
			continue
		}
		cur := s.model.Similarity(lhsV, v)
		if cur > score {
			rank++
		}
		top.Push(cur, i+1)
	}
	return rank, top.Sorted()
}

// Evaluate ranks every test example in parallel and returns the averaged
// metrics. Examples with an empty RHS are skipped.
func (s *StarSpace) Evaluate() (*Metrics, error) {
	if s.testData == nil {
		return nil, errors.New("no test data loaded")
	}
	s.Args.DropoutLHS = 0
	s.Args.DropoutRHS = 0
	if err := s.LoadBaseDocs(); err != nil {
		return nil, err
	}

	n := s.testData.Size()
	examples := s.testData.NextKExamples(n, utils.NewRand(s.Args.Seed, 3))
	numThreads := max(s.Args.Thread, 1)
	perThread := (n + numThreads - 1) / numThreads
	partial := make([]Metrics, numThreads)
	predictions := make([][]utils.Scored, n)

	var g errgroup.Group
	for idx := 0; idx < numThreads; idx++ {
		start := min(idx*perThread, n)
		end := min(start+perThread, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				ex := examples[i]
				if len(ex.RHSTokens) == 0 {
					continue
				}
				rank, preds := s.evaluateOne(ex.LHSTokens, ex.RHSTokens)
				partial[idx].Update(rank)
				predictions[i] = preds
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Metrics{}
	for i := range partial {
		if s.Args.Debug {
			s.log.Debug("worker %d: %d examples, rank sum %.0f", i, partial[i].Count, partial[i].Rank)
		}
		result.Add(partial[i])
	}
	result.Average()
	s.log.Info("Evaluation Metrics : hit@1: %f hit@10: %f hit@20: %f hit@50: %f mean ranks : %f Total examples : %d",
		result.Hit1, result.Hit10, result.Hit20, result.Hit50, result.Rank, result.Count)
	metrics.SetHits("1", result.Hit1)
	metrics.SetHits("10", result.Hit10)
	metrics.SetHits("20", result.Hit20)
	metrics.SetHits("50", result.Hit50)

	if s.Args.PredictionFile != "" {
		if err := s.writePredictions(examples, predictions); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *StarSpace) writePredictions(examples []parser.ParseResults, predictions [][]utils.Scored) error {
	f, err := os.Create(s.Args.PredictionFile)
	if err != nil {
		return errors.Wrap(err, "creating prediction file")
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for i, ex := range examples {
		fmt.Fprintf(w, "Example %d:\nLHS:\n", i)
		s.PrintDoc(w, ex.LHSTokens)
		fmt.Fprint(w, "RHS: \n")
		s.PrintDoc(w, ex.RHSTokens)
		fmt.Fprint(w, "Predictions: \n")
		for _, p := range predictions[i] {
			if p.ID == 0 {
				fmt.Fprintf(w, "(++) [%g]\t", p.Score)
				s.PrintDoc(w, ex.RHSTokens)
			} else {
				fmt.Fprintf(w, "(--) [%g]\t", p.Score)
				s.PrintDoc(w, s.baseDocs[p.ID-1])
			}
		}
		fmt.Fprint(w, "\n")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "writing predictions")
	}
	return f.Close()
}
