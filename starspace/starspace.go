package starspace

import (
	"bufio"
	"os"
	"strings"

	"github.com/facebookresearch/StarSpace/IO"
	"github.com/facebookresearch/StarSpace/data"
	"github.com/facebookresearch/StarSpace/dict"
	"github.com/facebookresearch/StarSpace/log"
	"github.com/facebookresearch/StarSpace/model"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/facebookresearch/StarSpace/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Magic signs binary model files.
const Magic = "STARSPACE-2018-2"

var ErrBadMagic = errors.New("magic signature does not match")

// StarSpace wires the dictionary, parser, example stores and model together.
type StarSpace struct {
	Args  *params.Args
	RunID string

	log    log.Logger
	dict   *dict.Dictionary
	parser parser.Parser
	model  *model.EmbedModel

	trainData data.Handler
	validData data.Handler
	testData  data.Handler

	baseDocs       [][]parser.Base
	baseDocVectors [][]float64
}

func New(args *params.Args, logger log.Logger) *StarSpace {
	return &StarSpace{Args: args, RunID: uuid.NewString(), log: log.Or(logger)}
}

func (s *StarSpace) Dict() *dict.Dictionary   { return s.dict }
func (s *StarSpace) Model() *model.EmbedModel { return s.model }
func (s *StarSpace) TrainData() data.Handler  { return s.trainData }

// Init builds the dictionary from the training file (or warm starts from
// args.InitModel), creates the model and loads the train and validation data.
func (s *StarSpace) Init() error {
	s.log.Info("Start to initialize starspace model.")
	if s.Args.InitModel != "" {
		var err error
		if strings.HasSuffix(s.Args.InitModel, ".tsv") {
			err = s.loadTsvModel(s.Args.InitModel)
		} else {
			err = s.loadBinaryModel(s.Args.InitModel)
		}
		if err != nil {
			return errors.Wrap(err, "loading initial model")
		}
		if err := s.initParser(); err != nil {
			return err
		}
	} else {
		s.dict = dict.New(s.Args, s.log)
		if err := s.initParser(); err != nil {
			return err
		}
		if err := s.dict.ReadFromFile(s.Args.TrainFile, s.parser); err != nil {
			return err
		}
		if s.Args.Debug {
			s.dict.Dump(os.Stderr)
		}
		s.model = model.New(s.Args, s.dict, s.log)
	}
	return s.initDataHandler()
}

// InitFromSavedModel loads a binary model, then whatever data the mode needs.
func (s *StarSpace) InitFromSavedModel(path string) error {
	s.log.Info("Start to load a trained starspace model.")
	if err := s.loadBinaryModel(path); err != nil {
		return err
	}
	s.log.Info("Model loaded.")
	if err := s.initParser(); err != nil {
		return err
	}
	return s.initDataHandler()
}

// InitFromTsv loads a TSV model; its dimension is taken from the first record.
func (s *StarSpace) InitFromTsv(path string) error {
	s.log.Info("Start to load a trained embedding model in tsv format.")
	if err := s.loadTsvModel(path); err != nil {
		return err
	}
	if err := s.initParser(); err != nil {
		return err
	}
	return s.initDataHandler()
}

func (s *StarSpace) initParser() error {
	p, err := parser.New(s.Args, s.dict)
	if err != nil {
		return err
	}
	s.parser = p
	return nil
}

func (s *StarSpace) loadData(path string) (data.Handler, error) {
	h := data.New(s.Args, s.log)
	if err := h.LoadFromFile(path, s.parser); err != nil {
		return nil, err
	}
	if s.Args.TrainWord || s.Args.TrainMode == 5 {
		h.InitWordNegatives(utils.NewRand(s.Args.Seed, 7))
	}
	return h, nil
}

func (s *StarSpace) initDataHandler() error {
	var err error
	if s.Args.IsTrain {
		if s.trainData, err = s.loadData(s.Args.TrainFile); err != nil {
			return err
		}
		if s.Args.ValidationFile != "" {
			if s.validData, err = s.loadData(s.Args.ValidationFile); err != nil {
				return err
			}
		}
		return nil
	}
	if s.Args.TestFile != "" {
		if s.testData, err = s.loadData(s.Args.TestFile); err != nil {
			return err
		}
	}
	return nil
}

func (s *StarSpace) loadBinaryModel(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "model file cannot be opened for loading")
	}
	defer f.Close()
	r := IO.NewBinaryReader(f)
	magic := r.CString()
	if err := r.Err(); err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if magic != Magic {
		return errors.Wrapf(ErrBadMagic, "%s: found %q", path, magic)
	}
	if err := s.Args.Load(r); err != nil {
		return err
	}
	s.dict = dict.New(s.Args, s.log)
	if err := s.dict.Load(r); err != nil {
		return err
	}
	s.model, err = model.Load(s.Args, s.dict, s.log, r)
	return err
}

func (s *StarSpace) loadTsvModel(path string) error {
	dim, err := model.InferTsvDim(path)
	if err != nil {
		return err
	}
	s.Args.Dim = dim
	s.dict = dict.New(s.Args, s.log)
	if err := s.dict.LoadFromTsv(path); err != nil {
		return err
	}
	if s.Args.Debug {
		s.dict.Dump(os.Stderr)
	}
	s.model = model.NewEmpty(s.Args, s.dict, s.log)
	return s.model.LoadTsv(path)
}

// SaveModel writes the magic, the config block, the dictionary and the tables.
func (s *StarSpace) SaveModel(path string) error {
	s.log.Info("Saving model to file : %s", path)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "model file cannot be opened for saving")
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	bw := IO.NewBinaryWriter(w)
	bw.CString(Magic)
	if err := bw.Err(); err != nil {
		return errors.Wrap(err, "writing magic")
	}
	if err := s.Args.Save(w); err != nil {
		return err
	}
	if err := s.dict.Save(w); err != nil {
		return err
	}
	if err := s.model.Save(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "flushing model")
	}
	return f.Close()
}

// SaveModelTsv writes one symbol<TAB>vector line per dictionary entry.
func (s *StarSpace) SaveModelTsv(path string) error {
	s.log.Info("Saving model in tsv format : %s", path)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "tsv file cannot be opened for saving")
	}
	defer f.Close()
	if err := s.model.SaveTsv(f); err != nil {
		return err
	}
	return f.Close()
}
