package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/facebookresearch/StarSpace/starspace"
	"github.com/pkg/errors"
)

func trainedModel(t *testing.T) *starspace.StarSpace {
	t.Helper()
	return trainedModelWith(t, nil)
}

func trainedModelWith(t *testing.T, tweak func(*params.Args)) *starspace.StarSpace {
	t.Helper()
	dir := t.TempDir()
	a := params.NewArgs()
	a.VocabCapacity = 1 << 10
	a.TrainFile = filepath.Join(dir, "train.txt")
	a.Model = filepath.Join(dir, "model")
	a.IsTrain = true
	a.Dim = 6
	a.Thread = 2
	a.Epoch = 2
	a.K = 2
	if tweak != nil {
		tweak(a)
	}
	body := "a b __label__x\nb c __label__y\na c __label__x\n"
	if err := os.WriteFile(a.TrainFile, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sp := starspace.New(a, nil)
	if err := sp.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := sp.Train(); err != nil {
		t.Fatalf("train: %v", err)
	}
	return sp
}

func TestQueryModes(t *testing.T) {
	sp := trainedModel(t)

	var out bytes.Buffer
	if err := QueryCLI(sp, "nn", strings.NewReader("a\n"), &out); err != nil {
		t.Fatalf("nn: %v", err)
	}
	if got := strings.Count(out.String(), "\n"); got != 2 {
		t.Fatalf("nn line count mismatch: got=%d want=2\n%s", got, out.String())
	}

	out.Reset()
	if err := QueryCLI(sp, "predict", strings.NewReader("a b\n\n"), &out); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !strings.Contains(out.String(), "0[") || !strings.Contains(out.String(), "__label__") {
		t.Fatalf("predict output mismatch:\n%s", out.String())
	}

	out.Reset()
	if err := QueryCLI(sp, "embed", strings.NewReader("a b"), &out); err != nil {
		t.Fatalf("embed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || len(strings.Fields(lines[1])) != 6 {
		t.Fatalf("embed output mismatch:\n%s", out.String())
	}
}

func TestBindArgs(t *testing.T) {
	a := params.NewArgs()
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	sep := bindArgs(fs, a)
	err := fs.Parse([]string{"-trainFile", "x.txt", "-dim", "32", "-loss", "softmax", "-weightSep", "|", "-shareEmb=false", "-seed", "9"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.TrainFile != "x.txt" || a.Dim != 32 || a.Loss != "softmax" || a.ShareEmb || a.Seed != 9 || *sep != "|" {
		t.Fatalf("args mismatch: %+v sep=%q", *a, *sep)
	}
	if a.Margin != params.Defaults.Margin {
		t.Fatalf("untouched default changed: got=%v want=%v", a.Margin, params.Defaults.Margin)
	}
}

func TestNgramsMode(t *testing.T) {
	var out bytes.Buffer
	err := QueryCLI(trainedModel(t), "ngrams", strings.NewReader("a b\n"), &out)
	if errors.Cause(err) != starspace.ErrNoNgrams {
		t.Fatalf("error mismatch: got=%v want=%v", err, starspace.ErrNoNgrams)
	}

	sp := trainedModelWith(t, func(a *params.Args) {
		a.Ngrams = 2
		a.Bucket = 50
	})
	out.Reset()
	if err := QueryCLI(sp, "ngrams", strings.NewReader("b c\na\n"), &out); err != nil {
		t.Fatalf("ngrams: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("ngrams line count mismatch: got=%d want=2\n%s", len(lines), out.String())
	}
	fields := strings.Split(lines[0], "\t")
	if fields[0] != "b c" || len(fields) != 7 {
		t.Fatalf("ngrams line mismatch: got=%q", lines[0])
	}

	d := sp.Dict()
	id := parser.NgramID(d, 50, []string{"b", "c"})
	if id < d.NWords()+d.NLabels() {
		t.Fatalf("ngram id %d inside the vocabulary range", id)
	}
	want := sp.Model().ProjectLHS([]parser.Base{{ID: id, Weight: 1}})
	got, err := sp.GetNgramVector("b c")
	if err != nil {
		t.Fatalf("GetNgramVector: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ngram vector mismatch at %d: got=%v want=%v", i, got[i], want[i])
		}
	}
	single, err := sp.GetNgramVector("a")
	if err != nil || len(single) != 6 {
		t.Fatalf("single token mismatch: got=%v err=%v", single, err)
	}
	if _, err := sp.GetNgramVector("a b c"); err == nil {
		t.Fatalf("phrase longer than ngrams should fail")
	}
}
