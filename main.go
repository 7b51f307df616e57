package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/facebookresearch/StarSpace/log"
	"github.com/facebookresearch/StarSpace/metrics"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/starspace"
)

const usage = `usage: starspace <command> [flags]

commands:
  train     train a model from -trainFile and save it to -model
  test      evaluate -model on -testFile
  nn        interactive nearest neighbours of a query
  predict   interactive top -K base docs for a query
  embed     print the doc vector of every line read from stdin
  ngrams    print the ngram vector of every phrase read from stdin

run "starspace <command> -h" for the flags.
`

func bindArgs(fs *flag.FlagSet, a *params.Args) *string {
	fs.StringVar(&a.TrainFile, "trainFile", a.TrainFile, "training file path")
	fs.StringVar(&a.ValidationFile, "validationFile", a.ValidationFile, "validation file path")
	fs.StringVar(&a.TestFile, "testFile", a.TestFile, "test file path")
	fs.StringVar(&a.PredictionFile, "predictionFile", a.PredictionFile, "write per-example predictions here when testing")
	fs.StringVar(&a.BaseDoc, "basedoc", a.BaseDoc, "file of candidate docs, one per line; all labels when empty")
	fs.StringVar(&a.Model, "model", a.Model, "model path (binary; a .tsv suffix loads a TSV model)")
	fs.StringVar(&a.InitModel, "initModel", a.InitModel, "warm start training from this model")
	fs.StringVar(&a.TrainLog, "trainLog", a.TrainLog, "per-epoch history, .csv or sqlite .db")
	fs.StringVar(&a.MetricsAddr, "metricsAddr", a.MetricsAddr, "serve prometheus /metrics on this address")

	fs.StringVar(&a.FileFormat, "fileFormat", a.FileFormat, "fastText, labelDoc or graph")
	fs.StringVar(&a.Label, "label", a.Label, "label prefix")
	fs.StringVar(&a.CompressFile, "compressFile", a.CompressFile, `"gzip" reads <file>NN.gz shards`)
	fs.IntVar(&a.NumGzFile, "numGzFile", a.NumGzFile, "number of gzip shards")
	fs.BoolVar(&a.UseWeight, "useWeight", a.UseWeight, "read token weights as token<sep>weight")
	sep := fs.String("weightSep", string(a.WeightSep), "token weight separator")
	fs.BoolVar(&a.NormalizeText, "normalizeText", a.NormalizeText, "lowercase tokens and flatten digits")

	fs.Float64Var(&a.LR, "lr", a.LR, "learning rate")
	fs.Float64Var(&a.TermLR, "termLr", a.TermLR, "learning rate at the end of training")
	fs.Float64Var(&a.Norm, "norm", a.Norm, "max L2 norm of an embedding")
	fs.Float64Var(&a.Margin, "margin", a.Margin, "hinge loss margin")
	fs.Float64Var(&a.InitRandSd, "initRandSd", a.InitRandSd, "sd of the initial embeddings")
	fs.Float64Var(&a.P, "p", a.P, "dot similarity divides a bag by count^p")
	fs.Float64Var(&a.DropoutLHS, "dropoutLHS", a.DropoutLHS, "LHS feature dropout (labelDoc)")
	fs.Float64Var(&a.DropoutRHS, "dropoutRHS", a.DropoutRHS, "RHS feature dropout (labelDoc)")
	fs.Float64Var(&a.WordWeight, "wordWeight", a.WordWeight, "rate multiplier of word-level examples")
	fs.BoolVar(&a.Adagrad, "adagrad", a.Adagrad, "adagrad row rates")
	fs.StringVar(&a.Loss, "loss", a.Loss, "hinge or softmax")
	fs.StringVar(&a.Similarity, "similarity", a.Similarity, "cosine or dot")
	fs.IntVar(&a.Epoch, "epoch", a.Epoch, "number of epochs")
	fs.IntVar(&a.MaxTrainTime, "maxTrainTime", a.MaxTrainTime, "training time budget in seconds")
	fs.IntVar(&a.ValidationPatience, "validationPatience", a.ValidationPatience, "non-improving validation epochs before stopping")
	fs.IntVar(&a.BatchSize, "batchSize", a.BatchSize, "examples per update batch")
	fs.IntVar(&a.MaxNegSamples, "maxNegSamples", a.MaxNegSamples, "max violating negatives per example")
	fs.IntVar(&a.NegSearchLimit, "negSearchLimit", a.NegSearchLimit, "negatives drawn per batch")
	fs.IntVar(&a.Thread, "thread", a.Thread, "number of threads")
	fs.Uint64Var(&a.Seed, "seed", a.Seed, "random seed, 0 seeds from the clock")

	fs.IntVar(&a.Dim, "dim", a.Dim, "embedding size")
	fs.IntVar(&a.Ngrams, "ngrams", a.Ngrams, "max word ngram length")
	fs.IntVar(&a.Bucket, "bucket", a.Bucket, "number of ngram buckets")
	fs.IntVar(&a.MinCount, "minCount", a.MinCount, "min word count")
	fs.IntVar(&a.MinCountLabel, "minCountLabel", a.MinCountLabel, "min label count")
	fs.IntVar(&a.VocabCapacity, "vocabCapacity", a.VocabCapacity, "dictionary hash table size")
	fs.BoolVar(&a.ShareEmb, "shareEmb", a.ShareEmb, "one table for both sides")

	fs.IntVar(&a.TrainMode, "trainMode", a.TrainMode, "0..5, how examples are split into LHS and RHS")
	fs.BoolVar(&a.TrainWord, "trainWord", a.TrainWord, "also train word-level context examples")
	fs.IntVar(&a.Ws, "ws", a.Ws, "context window radius")
	fs.IntVar(&a.K, "K", a.K, "predictions kept per example")
	fs.BoolVar(&a.ExcludeLHS, "excludeLHS", a.ExcludeLHS, "skip candidates equal to the LHS when testing")
	fs.BoolVar(&a.SaveEveryEpoch, "saveEveryEpoch", a.SaveEveryEpoch, "save a snapshot after every epoch")
	fs.BoolVar(&a.SaveTempModel, "saveTempModel", a.SaveTempModel, "also write TSV snapshots")
	fs.BoolVar(&a.Verbose, "verbose", a.Verbose, "log progress")
	fs.BoolVar(&a.Debug, "debug", a.Debug, "log everything")
	return sep
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := params.NewArgs()
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	sep := bindArgs(fs, args)
	fs.Parse(os.Args[2:])
	if len(*sep) > 0 {
		args.WeightSep = (*sep)[0]
	}

	logger := log.New()
	switch {
	case args.Debug:
		logger.SetLevel(string(log.TraceLevel))
	case args.Verbose:
		logger.SetLevel(string(log.DebugLevel))
	}
	sp := starspace.New(args, logger)

	switch cmd {
	case "train":
		args.IsTrain = true
		if err := args.Validate(); err != nil {
			logger.Fatal("%v", err)
		}
		if args.MetricsAddr != "" {
			go func() {
				if err := metrics.Serve(args.MetricsAddr); err != nil {
					logger.Error("metrics server: %v", err)
				}
			}()
		}
		if err := sp.Init(); err != nil {
			logger.Fatal("%v", err)
		}
		if _, err := sp.Train(); err != nil {
			logger.Fatal("%v", err)
		}
		if err := sp.SaveModel(args.Model); err != nil {
			logger.Fatal("%v", err)
		}
		if err := sp.SaveModelTsv(args.Model + ".tsv"); err != nil {
			logger.Fatal("%v", err)
		}
	case "test":
		args.IsTrain = false
		if err := args.Validate(); err != nil {
			logger.Fatal("%v", err)
		}
		if err := loadModel(sp, args.Model); err != nil {
			logger.Fatal("%v", err)
		}
		m, err := sp.Evaluate()
		if err != nil {
			logger.Fatal("%v", err)
		}
		m.Render(os.Stdout)
	case "nn", "predict", "embed", "ngrams":
		args.IsTrain = false
		if args.Model == "" {
			logger.Fatal("-model is required")
		}
		if err := loadModel(sp, args.Model); err != nil {
			logger.Fatal("%v", err)
		}
		if err := QueryCLI(sp, cmd, os.Stdin, os.Stdout); err != nil {
			logger.Fatal("%v", err)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func loadModel(sp *starspace.StarSpace, path string) error {
	if strings.HasSuffix(path, ".tsv") {
		return sp.InitFromTsv(path)
	}
	return sp.InitFromSavedModel(path)
}
