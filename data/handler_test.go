package data

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/facebookresearch/StarSpace/dict"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/pkg/errors"
)

func toks(ids ...int32) []parser.Base {
	out := make([]parser.Base, len(ids))
	for i, id := range ids {
		out[i] = parser.Base{ID: id, Weight: 1}
	}
	return out
}

func idsOf(bs []parser.Base) []int {
	out := make([]int, len(bs))
	for i, b := range bs {
		out[i] = int(b.ID)
	}
	return out
}

func testArgs(mode int, format string) *params.Args {
	a := params.NewArgs()
	a.TrainMode = mode
	a.FileFormat = format
	a.Thread = 2
	a.VocabCapacity = 1 << 10
	return a
}

func newRng() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

func TestModeZeroPicksOneLabel(t *testing.T) {
	h := New(testArgs(0, "fastText"), nil)
	h.AddExample(parser.ParseResults{Weight: 1, LHSTokens: toks(1, 2), RHSTokens: toks(10, 11, 12)})
	rng := newRng()
	for i := 0; i < 50; i++ {
		ex := h.NextExample(rng)
		if len(ex.RHSTokens) != 1 {
			t.Fatalf("rhs size mismatch: got=%d want=1", len(ex.RHSTokens))
		}
		id := ex.RHSTokens[0].ID
		if id < 10 || id > 12 {
			t.Fatalf("rhs not from labels: got=%d", id)
		}
		if !parser.SameIDs(ex.LHSTokens, toks(1, 2)) {
			t.Fatalf("lhs mismatch: got=%v", ex.LHSTokens)
		}
	}
}

func TestModeOnePartitionsRHS(t *testing.T) {
	h := New(testArgs(1, "fastText"), nil)
	h.AddExample(parser.ParseResults{Weight: 1, RHSTokens: toks(3, 4, 5, 6)})
	rng := newRng()
	for i := 0; i < 50; i++ {
		ex := h.RandomExample(rng)
		if len(ex.RHSTokens) != 1 || len(ex.LHSTokens) != 3 {
			t.Fatalf("split mismatch: lhs=%v rhs=%v", ex.LHSTokens, ex.RHSTokens)
		}
		all := append(idsOf(ex.LHSTokens), idsOf(ex.RHSTokens)...)
		sort.Ints(all)
		for j, want := range []int{3, 4, 5, 6} {
			if all[j] != want {
				t.Fatalf("union mismatch: got=%v", all)
			}
		}
	}
}

func TestModesTwoToFour(t *testing.T) {
	rng := newRng()
	ex := parser.ParseResults{Weight: 1, RHSTokens: toks(3, 4, 5)}

	h := New(testArgs(2, "fastText"), nil)
	got := h.Convert(ex, rng)
	if len(got.LHSTokens) != 1 || len(got.RHSTokens) != 2 {
		t.Fatalf("mode 2 mismatch: lhs=%v rhs=%v", got.LHSTokens, got.RHSTokens)
	}

	h = New(testArgs(3, "fastText"), nil)
	for i := 0; i < 50; i++ {
		got = h.Convert(ex, rng)
		if len(got.LHSTokens) != 1 || len(got.RHSTokens) != 1 || got.LHSTokens[0].ID == got.RHSTokens[0].ID {
			t.Fatalf("mode 3 mismatch: lhs=%v rhs=%v", got.LHSTokens, got.RHSTokens)
		}
	}

	h = New(testArgs(4, "fastText"), nil)
	got = h.Convert(ex, rng)
	if got.LHSTokens[0].ID != 3 || got.RHSTokens[0].ID != 4 {
		t.Fatalf("mode 4 mismatch: lhs=%v rhs=%v", got.LHSTokens, got.RHSTokens)
	}
}

func TestWordExamplesWindow(t *testing.T) {
	a := testArgs(5, "fastText")
	a.Ws = 1
	h := New(a, nil)
	h.AddExample(parser.ParseResults{Weight: 1, LHSTokens: toks(1, 2, 3, 4)})
	exs := h.WordExamples(0, newRng())
	if len(exs) != 4 {
		t.Fatalf("example count mismatch: got=%d want=4", len(exs))
	}
	want := [][]int{{2}, {1, 3}, {2, 4}, {3}}
	for i, ex := range exs {
		if ex.RHSTokens[0].ID != int32(i+1) {
			t.Fatalf("label mismatch at %d: got=%d", i, ex.RHSTokens[0].ID)
		}
		got := idsOf(ex.LHSTokens)
		if len(got) != len(want[i]) {
			t.Fatalf("context mismatch at %d: got=%v want=%v", i, got, want[i])
		}
		for j := range got {
			if got[j] != want[i][j] {
				t.Fatalf("context mismatch at %d: got=%v want=%v", i, got, want[i])
			}
		}
	}
}

func TestRandomWordCycles(t *testing.T) {
	h := New(testArgs(5, "fastText"), nil)
	h.AddExample(parser.ParseResults{Weight: 1, LHSTokens: toks(7, 8)})
	h.InitWordNegatives(newRng())
	for i := 0; i < 2500; i++ {
		w := h.RandomWord()
		if len(w) != 1 || (w[0].ID != 7 && w[0].ID != 8) {
			t.Fatalf("word mismatch: got=%v", w)
		}
	}
}

func TestLayerDropout(t *testing.T) {
	a := testArgs(0, "labelDoc")
	h := New(a, nil)
	ex := parser.ParseResults{
		Weight:      1,
		LHSTokens:   toks(1, 2, 3, 4),
		RHSFeatures: [][]parser.Base{toks(5, 6, 7)},
	}
	got := h.Convert(ex, newRng())
	if len(got.LHSTokens) != 4 || len(got.RHSTokens) != 3 {
		t.Fatalf("zero dropout should keep everything: lhs=%v rhs=%v", got.LHSTokens, got.RHSTokens)
	}

	a.DropoutLHS = 0.5
	rng := newRng()
	kept := 0
	const n = 2000
	for i := 0; i < n; i++ {
		kept += len(h.Convert(ex, rng).LHSTokens)
	}
	frac := float64(kept) / float64(4*n)
	if frac < 0.45 || frac > 0.55 {
		t.Fatalf("dropout rate mismatch: got=%.3f want~0.5", frac)
	}
}

func TestLayerModeOne(t *testing.T) {
	h := New(testArgs(1, "labelDoc"), nil)
	ex := parser.ParseResults{Weight: 1, RHSFeatures: [][]parser.Base{toks(1, 2), toks(3), toks(4, 5)}}
	got := h.Convert(ex, newRng())
	if n := len(got.LHSTokens) + len(got.RHSTokens); n != 5 {
		t.Fatalf("feature count mismatch: got=%d want=5", n)
	}
	if len(got.RHSTokens) == 0 || len(got.LHSTokens) == 0 {
		t.Fatalf("both sides should be filled: %+v", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	a := testArgs(0, "fastText")
	d := dict.New(a, nil)
	for _, s := range []string{"a", "b", "__label__x", "__label__y"} {
		d.Insert(s)
	}
	d.Threshold(1, 1)
	p, err := parser.New(a, d)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	path := filepath.Join(t.TempDir(), "train.txt")
	body := "a b __label__x\nb __label__y\nno labels here\na __label__x\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h := New(a, nil)
	if err := h.LoadFromFile(path, p); err != nil {
		t.Fatalf("load: %v", err)
	}
	if h.Size() != 3 {
		t.Fatalf("size mismatch: got=%d want=3", h.Size())
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("nothing\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err = New(a, nil).LoadFromFile(empty, p)
	if errors.Cause(err) != ErrNoExamples {
		t.Fatalf("error mismatch: got=%v want=%v", err, ErrNoExamples)
	}
}

func TestNextExampleWalksPermutation(t *testing.T) {
	const n = 8
	shuffled := false
	for seed := uint64(1); seed <= 5; seed++ {
		h := New(testArgs(5, "fastText"), nil)
		for i := 0; i < n; i++ {
			h.AddExample(parser.ParseResults{Weight: 1, LHSTokens: toks(int32(i))})
		}
		rng := rand.New(rand.NewPCG(seed, seed))
		first := make([]int, 0, n)
		for i := 0; i < n; i++ {
			first = append(first, int(h.NextExample(rng).LHSTokens[0].ID))
		}
		seen := append([]int(nil), first...)
		sort.Ints(seen)
		for i, id := range seen {
			if id != i {
				t.Fatalf("seed %d: one pass must visit every example once, got=%v", seed, first)
			}
			if first[i] != i {
				shuffled = true
			}
		}
		second := h.NextKExamples(n, rng)
		for i, ex := range second {
			if int(ex.LHSTokens[0].ID) != first[i] {
				t.Fatalf("seed %d: second pass order mismatch at %d: got=%d want=%d", seed, i, ex.LHSTokens[0].ID, first[i])
			}
		}
	}
	if !shuffled {
		t.Fatalf("cursor should walk a shuffled order")
	}
}
