package params

import (
	"io"

	"github.com/facebookresearch/StarSpace/IO"
	"github.com/pkg/errors"
)

type FileFormat int

const (
	FastText FileFormat = iota
	LabelDoc
	Graph
)

type Loss int

const (
	Hinge Loss = iota
	Softmax
)

type Similarity int

const (
	Cosine Similarity = iota
	Dot
)

func (a *Args) Format() FileFormat {
	switch a.FileFormat {
	case "labelDoc":
		return LabelDoc
	case "graph":
		return Graph
	}
	return FastText
}

func (a *Args) LossKind() Loss {
	if a.Loss == "softmax" {
		return Softmax
	}
	return Hinge
}

func (a *Args) SimilarityKind() Similarity {
	if a.Similarity == "dot" {
		return Dot
	}
	return Cosine
}

// Validate checks the option combination for a train (IsTrain) or test run.
func (a *Args) Validate() error {
	if a.IsTrain && a.TrainFile == "" {
		return errors.New("trainFile is required for training")
	}
	if !a.IsTrain && a.TestFile == "" {
		return errors.New("testFile is required for testing")
	}
	if a.Model == "" {
		return errors.New("model path is required")
	}
	switch a.Loss {
	case "hinge", "softmax":
	default:
		return errors.Errorf("unsupported loss %q (hinge|softmax)", a.Loss)
	}
	switch a.Similarity {
	case "cosine", "dot":
	default:
		return errors.Errorf("unsupported similarity %q (cosine|dot)", a.Similarity)
	}
	switch a.FileFormat {
	case "fastText", "labelDoc", "graph":
	default:
		return errors.Errorf("unsupported fileFormat %q (fastText|labelDoc|graph)", a.FileFormat)
	}
	if a.TrainMode < 0 || a.TrainMode > 5 {
		return errors.Errorf("unsupported trainMode %d (0-5)", a.TrainMode)
	}
	if a.FileFormat == "graph" && a.TrainMode != 0 {
		return errors.New("graph input requires trainMode 0")
	}
	if a.Dim <= 0 || a.Epoch <= 0 || a.Thread <= 0 || a.BatchSize <= 0 {
		return errors.New("dim, epoch, thread and batchSize must be positive")
	}
	if a.NegSearchLimit <= 0 || a.MaxNegSamples <= 0 {
		return errors.New("negSearchLimit and maxNegSamples must be positive")
	}
	if a.DropoutLHS < 0 || a.DropoutLHS >= 1 || a.DropoutRHS < 0 || a.DropoutRHS >= 1 {
		return errors.New("dropout must be in [0, 1)")
	}
	if a.CompressFile != "" && a.CompressFile != "gzip" {
		return errors.Errorf("unsupported compressFile %q (gzip)", a.CompressFile)
	}
	return nil
}

// Save writes the configuration block of a binary model.
func (a *Args) Save(w io.Writer) error {
	bw := IO.NewBinaryWriter(w)
	for _, v := range []int{
		a.Dim, a.Epoch, a.MinCount, a.MinCountLabel, a.MaxNegSamples,
		a.NegSearchLimit, a.Ngrams, a.Bucket, a.TrainMode,
	} {
		bw.Write(int32(v))
	}
	bw.Bool(a.ShareEmb)
	bw.Bool(a.UseWeight)
	bw.Write(a.WeightSep)
	bw.String(a.FileFormat)
	bw.String(a.Similarity)
	bw.Write(int32(a.BatchSize))
	return errors.Wrap(bw.Err(), "saving args")
}

// Load reads a configuration block written by Save, overwriting the
// persisted fields and leaving the rest untouched.
func (a *Args) Load(r *IO.BinaryReader) error {
	for _, p := range []*int{
		&a.Dim, &a.Epoch, &a.MinCount, &a.MinCountLabel, &a.MaxNegSamples,
		&a.NegSearchLimit, &a.Ngrams, &a.Bucket, &a.TrainMode,
	} {
		*p = int(r.Int32())
	}
	a.ShareEmb = r.Bool()
	a.UseWeight = r.Bool()
	a.WeightSep = r.Uint8()
	a.FileFormat = r.String()
	a.Similarity = r.String()
	a.BatchSize = int(r.Int32())
	return errors.Wrap(r.Err(), "loading args")
}
