package params

// Args holds every training, evaluation and persistence option.
type Args struct {
	// Files
	TrainFile      string
	ValidationFile string
	TestFile       string
	PredictionFile string
	Model          string // output/input model path (binary); TSV is Model + ".tsv"
	InitModel      string // optional TSV model to warm start from
	BaseDoc        string // candidate docs for evaluation; empty means all labels
	TrainLog       string // per-epoch history, .csv or sqlite (.db/.sqlite)
	MetricsAddr    string // serve /metrics while training, e.g. ":9090"

	// Input format
	FileFormat    string // fastText | labelDoc | graph
	Label         string // label prefix
	CompressFile  string // "gzip" reads <file>NN.gz shards
	NumGzFile     int
	UseWeight     bool
	WeightSep     byte
	NormalizeText bool

	// Optimisation
	LR                 float64
	TermLR             float64
	Norm               float64 // max L2 norm of a row
	Margin             float64
	InitRandSd         float64
	P                  float64 // dot similarity divides by count^P
	DropoutLHS         float64
	DropoutRHS         float64
	WordWeight         float64
	Adagrad            bool
	Loss               string // hinge | softmax
	Similarity         string // cosine | dot
	Epoch              int
	MaxTrainTime       int // seconds
	ValidationPatience int
	BatchSize          int
	MaxNegSamples      int
	NegSearchLimit     int
	Thread             int
	Seed               uint64 // 0 seeds from the clock

	// Model shape
	Dim           int
	Ngrams        int
	Bucket        int
	MinCount      int
	MinCountLabel int
	VocabCapacity int
	ShareEmb      bool

	// Training mode
	TrainMode int
	TrainWord bool
	Ws        int

	// Evaluation
	K          int
	ExcludeLHS bool

	SaveEveryEpoch bool
	SaveTempModel  bool
	Verbose        bool
	Debug          bool
	IsTrain        bool
}

// Defaults mirror the reference trainer.
var Defaults = Args{
	FileFormat:   "fastText",
	Label:        "__label__",
	NumGzFile:    1,
	WeightSep:    ':',
	LR:           0.01,
	TermLR:       1e-9,
	Norm:         1.0,
	Margin:       0.05,
	InitRandSd:   0.001,
	P:            0.5,
	WordWeight:   0.5,
	Adagrad:      true,
	Loss:         "hinge",
	Similarity:   "cosine",
	Epoch:        5,
	MaxTrainTime: 60 * 60 * 24 * 100,

	ValidationPatience: 10,
	BatchSize:          5,
	MaxNegSamples:      10,
	NegSearchLimit:     50,
	Thread:             10,

	Dim:           100,
	Ngrams:        1,
	Bucket:        2000000,
	MinCount:      1,
	MinCountLabel: 1,
	VocabCapacity: 30000000,
	ShareEmb:      true,

	Ws: 5,
	K:  5,
}

// NewArgs returns a copy of Defaults.
func NewArgs() *Args {
	a := Defaults
	return &a
}
