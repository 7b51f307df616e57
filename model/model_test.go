package model

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/facebookresearch/StarSpace/IO"
	"github.com/facebookresearch/StarSpace/data"
	"github.com/facebookresearch/StarSpace/dict"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/facebookresearch/StarSpace/utils"
	"gonum.org/v1/gonum/floats"
)

var symbols = []string{"a", "b", "c", "__label__x", "__label__y", "__label__z"}

func testArgs() *params.Args {
	a := params.NewArgs()
	a.VocabCapacity = 1 << 10
	a.Dim = 8
	a.Thread = 2
	a.Seed = 42
	a.InitRandSd = 0.1
	a.Norm = 1000
	return a
}

func newTestDict(a *params.Args) *dict.Dictionary {
	d := dict.New(a, nil)
	for _, s := range symbols {
		d.Insert(s)
	}
	d.Threshold(1, 1)
	return d
}

func b(ids ...int32) []parser.Base {
	out := make([]parser.Base, len(ids))
	for i, id := range ids {
		out[i] = parser.Base{ID: id, Weight: 1}
	}
	return out
}

// smallCorpus uses words a,b,c (0..2) and labels x,y,z (3..5).
func smallCorpus(a *params.Args) data.Handler {
	h := data.New(a, nil)
	h.AddExample(parser.ParseResults{Weight: 1, LHSTokens: b(0, 1), RHSTokens: b(3)})
	h.AddExample(parser.ParseResults{Weight: 1, LHSTokens: b(1, 2), RHSTokens: b(4)})
	h.AddExample(parser.ParseResults{Weight: 1, LHSTokens: b(0, 2), RHSTokens: b(5)})
	h.AddExample(parser.ParseResults{Weight: 1, LHSTokens: b(2), RHSTokens: b(3)})
	return h
}

func snapshot(m *EmbedModel) []float64 {
	return append([]float64(nil), m.LHS.M.RawMatrix().Data...)
}

func TestCosineProjectionIsUnitNorm(t *testing.T) {
	a := testArgs()
	m := New(a, newTestDict(a), nil)
	for _, ids := range [][]parser.Base{b(0), b(0, 1), b(0, 1, 2, 3)} {
		got := floats.Norm(m.ProjectLHS(ids), 2)
		if math.Abs(got-1) > 1e-9 {
			t.Fatalf("projection norm mismatch for %v: got=%v want=1", ids, got)
		}
	}
	if got := floats.Norm(m.ProjectRHS(nil), 2); got != 0 {
		t.Fatalf("empty projection mismatch: got=%v want=0", got)
	}
}

func TestDotProjectionDividesByCountPower(t *testing.T) {
	a := testArgs()
	a.Similarity = "dot"
	a.P = 1
	m := New(a, newTestDict(a), nil)
	sum := make([]float64, a.Dim)
	floats.Add(sum, m.LHS.Row(0))
	floats.Add(sum, m.LHS.Row(1))
	got := m.ProjectLHS(b(0, 1))
	for i := range got {
		if math.Abs(got[i]-sum[i]/2) > 1e-12 {
			t.Fatalf("dot projection mismatch at %d: got=%v want=%v", i, got[i], sum[i]/2)
		}
	}
}

func TestTripleLossBounds(t *testing.T) {
	a := testArgs()
	m := New(a, newTestDict(a), nil)
	vals := []float64{-1e12, -5, -1, 0, 0.3, 1, 7, 1e12}
	for _, pos := range vals {
		for _, neg := range vals {
			l := m.TripleLoss(pos, neg)
			if l < 0 || l > kMaxLoss {
				t.Fatalf("loss out of range for pos=%v neg=%v: got=%v", pos, neg, l)
			}
		}
	}
	if got := m.TripleLoss(0.5, 0.6); math.Abs(got-0.15) > 1e-12 {
		t.Fatalf("loss mismatch: got=%v want=0.15", got)
	}
	if got := m.TripleLoss(1, 0.5); got != 0 {
		t.Fatalf("loss mismatch: got=%v want=0", got)
	}
}

func TestNoViolatorsLeavesTablesUntouched(t *testing.T) {
	a := testArgs()
	a.Margin = -100
	m := New(a, newTestDict(a), nil)
	h := smallCorpus(a)
	before := snapshot(m)
	rng := utils.NewRand(1, 1)
	batch := []parser.ParseResults{h.ExampleByID(0, rng), h.ExampleByID(1, rng)}
	if loss := m.TrainOneBatch(h, batch, 4, 0.5, false, rng); loss != 0 {
		t.Fatalf("loss mismatch: got=%v want=0", loss)
	}
	after := snapshot(m)
	for i := range before {
		if math.Float64bits(before[i]) != math.Float64bits(after[i]) {
			t.Fatalf("table changed at %d: before=%v after=%v", i, before[i], after[i])
		}
	}
}

func TestHingeUpdatesOnlyWithRate(t *testing.T) {
	a := testArgs()
	a.Margin = 10
	m := New(a, newTestDict(a), nil)
	h := smallCorpus(a)
	rng := utils.NewRand(2, 2)
	batch := []parser.ParseResults{h.ExampleByID(0, rng)}

	before := snapshot(m)
	loss := m.TrainOneBatch(h, batch, 4, 0, false, rng)
	if loss <= 0 {
		t.Fatalf("expected positive loss with a wide margin, got=%v", loss)
	}
	if !floats.Equal(before, snapshot(m)) {
		t.Fatalf("zero rate must not update the tables")
	}
	m.TrainOneBatch(h, batch, 4, 0.1, false, rng)
	if floats.Equal(before, snapshot(m)) {
		t.Fatalf("positive rate should update the tables")
	}
}

func TestNLLBatch(t *testing.T) {
	a := testArgs()
	a.Loss = "softmax"
	a.Similarity = "dot"
	m := New(a, newTestDict(a), nil)
	h := smallCorpus(a)
	rng := utils.NewRand(3, 3)
	batch := []parser.ParseResults{h.ExampleByID(0, rng), h.ExampleByID(1, rng)}
	before := snapshot(m)
	loss := m.TrainNLLBatch(h, batch, 4, 0, false, rng)
	if loss <= 0 || math.IsNaN(loss) {
		t.Fatalf("nll loss mismatch: got=%v want>0", loss)
	}
	if !floats.Equal(before, snapshot(m)) {
		t.Fatalf("zero rate must not update the tables")
	}
	first := loss
	for i := 0; i < 50; i++ {
		m.TrainNLLBatch(h, batch, 4, 0.5, false, rng)
	}
	if got := m.TrainNLLBatch(h, batch, 4, 0, false, rng); got >= first {
		t.Fatalf("nll loss should drop with training: first=%v last=%v", first, got)
	}
}

func TestKNNMatchesBruteForce(t *testing.T) {
	a := testArgs()
	a.Dim = 2
	a.Similarity = "dot"
	m := NewEmpty(a, newTestDict(a), nil)
	rows := [][]float64{{1, 0}, {0, 1}, {0.9, 0.1}, {-1, 0}, {0.5, 0.5}, {0.2, 0.9}}
	for i, r := range rows {
		copy(m.LHS.Row(int32(i)), r)
	}
	query := []float64{1, 0.2}
	got := m.KNN(m.LHS, query, 3, 5)

	type cand struct {
		id  int
		sim float64
	}
	var ref []cand
	for i := 0; i < 5; i++ {
		ref = append(ref, cand{i, utils.Dot(query, rows[i])})
	}
	sort.SliceStable(ref, func(i, j int) bool { return ref[i].sim > ref[j].sim })
	if len(got) != 3 {
		t.Fatalf("result size mismatch: got=%d want=3", len(got))
	}
	for i := range got {
		if got[i].ID != ref[i].id || math.Abs(got[i].Score-ref[i].sim) > 1e-12 {
			t.Fatalf("rank %d mismatch: got=%+v want=%+v", i, got[i], ref[i])
		}
	}
}

func TestKNNUnfilledSlotPanics(t *testing.T) {
	a := testArgs()
	a.Dim = 2
	m := NewEmpty(a, newTestDict(a), nil)
	copy(m.LHS.Row(0), []float64{math.NaN(), 0})
	copy(m.LHS.Row(1), []float64{1, 0})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for an unfilled slot")
		}
	}()
	m.KNN(m.LHS, []float64{1, 0}, 2, 2)
}

func TestBinaryRoundTrip(t *testing.T) {
	a := testArgs()
	a.ShareEmb = false
	d := newTestDict(a)
	m := New(a, d, nil)
	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(a, d, nil, IO.NewBinaryReader(&buf))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Shared() {
		t.Fatalf("tables should stay separate")
	}
	if !floats.Equal(got.LHS.M.RawMatrix().Data, m.LHS.M.RawMatrix().Data) ||
		!floats.Equal(got.RHS.M.RawMatrix().Data, m.RHS.M.RawMatrix().Data) {
		t.Fatalf("tables differ after round trip")
	}
}

func TestTsvRoundTrip(t *testing.T) {
	a := testArgs()
	d := newTestDict(a)
	m := New(a, d, nil)
	path := filepath.Join(t.TempDir(), "model.tsv")
	var buf bytes.Buffer
	if err := m.SaveTsv(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dim, err := InferTsvDim(path)
	if err != nil || dim != a.Dim {
		t.Fatalf("dim mismatch: got=%d want=%d err=%v", dim, a.Dim, err)
	}
	got := NewEmpty(a, d, nil)
	if err := got.LoadTsv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !floats.Equal(got.LHS.M.RawMatrix().Data, m.LHS.M.RawMatrix().Data) {
		t.Fatalf("tables differ after tsv round trip")
	}
}

func TestTsvTolerantLines(t *testing.T) {
	a := testArgs()
	a.Dim = 3
	d := newTestDict(a)
	m := NewEmpty(a, d, nil)
	lines := []string{
		"a\t1\t2\t3\t4\t5",
		"b\t7",
		"nope\t1\t1\t1",
		"c 0.5 0.25 0.125 ",
	}
	path := filepath.Join(t.TempDir(), "m.tsv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.LoadTsv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string][]float64{"a": {1, 2, 3}, "b": {7, 0, 0}, "c": {0.5, 0.25, 0.125}}
	for sym, row := range want {
		if got := m.LHS.Row(d.ID(sym)); !floats.Equal(got, row) {
			t.Fatalf("row %s mismatch: got=%v want=%v", sym, got, row)
		}
	}
}

func TestTrainKeepsTablesFinite(t *testing.T) {
	a := testArgs()
	a.Norm = 1
	m := New(a, newTestDict(a), nil)
	h := smallCorpus(a)
	for epoch := 0; epoch < 3; epoch++ {
		loss := m.Train(h, 3, time.Now(), epoch, 0.05, 0.01)
		if math.IsNaN(loss) || loss < 0 {
			t.Fatalf("epoch %d loss mismatch: got=%v", epoch, loss)
		}
	}
	if !m.Finite() {
		t.Fatalf("tables contain NaN or Inf")
	}
	before := snapshot(m)
	m.Test(h, 3)
	if !floats.Equal(before, snapshot(m)) {
		t.Fatalf("Test must not update the tables")
	}
}

func TestZeroWeightExampleDoesNotTrain(t *testing.T) {
	a := testArgs()
	a.Margin = 10
	m := New(a, newTestDict(a), nil)
	h := data.New(a, nil)
	h.AddExample(parser.ParseResults{Weight: 0, LHSTokens: b(0, 1), RHSTokens: b(3)})
	h.AddExample(parser.ParseResults{Weight: 1, LHSTokens: b(1, 2), RHSTokens: b(4)})
	rng := utils.NewRand(5, 5)
	batch := []parser.ParseResults{h.ExampleByID(0, rng)}

	before := snapshot(m)
	if loss := m.TrainOneBatch(h, batch, 4, 0.1, false, rng); loss != 0 {
		t.Fatalf("hinge loss mismatch: got=%v want=0", loss)
	}
	if loss := m.TrainNLLBatch(h, batch, 4, 0.1, false, rng); loss != 0 {
		t.Fatalf("nll loss mismatch: got=%v want=0", loss)
	}
	if !floats.Equal(before, snapshot(m)) {
		t.Fatalf("zero weight example must not update the tables")
	}
}
