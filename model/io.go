package model

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/facebookresearch/StarSpace/IO"
	"github.com/facebookresearch/StarSpace/dict"
	"github.com/facebookresearch/StarSpace/log"
	"github.com/facebookresearch/StarSpace/matrix"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/pkg/errors"
)

// Save writes the LHS table, then the RHS table when it is not shared.
func (m *EmbedModel) Save(w io.Writer) error {
	if err := m.LHS.Write(w); err != nil {
		return err
	}
	if m.Shared() {
		return nil
	}
	return m.RHS.Write(w)
}

// Load reads the tables written by Save. args.ShareEmb decides whether a
// second table follows.
func Load(args *params.Args, d *dict.Dictionary, logger log.Logger, r *IO.BinaryReader) (*EmbedModel, error) {
	lhs, err := matrix.ReadSparseLinear(r)
	if err != nil {
		return nil, errors.Wrap(err, "loading LHS embeddings")
	}
	rhs := lhs
	if !args.ShareEmb {
		if rhs, err = matrix.ReadSparseLinear(r); err != nil {
			return nil, errors.Wrap(err, "loading RHS embeddings")
		}
	}
	if want := NumRows(args, d); lhs.Rows() != want || rhs.Rows() != want {
		return nil, errors.Errorf("embedding rows %d/%d do not match dictionary (%d)", lhs.Rows(), rhs.Rows(), want)
	}
	if lhs.Cols() != args.Dim {
		return nil, errors.Errorf("embedding dim %d does not match config dim %d", lhs.Cols(), args.Dim)
	}
	return newModel(args, d, logger, lhs, rhs), nil
}

// NewEmpty returns a model with zeroed tables, filled afterwards by LoadTsv.
func NewEmpty(args *params.Args, d *dict.Dictionary, logger log.Logger) *EmbedModel {
	rows := NumRows(args, d)
	lhs := matrix.NewZeroSparseLinear(rows, args.Dim)
	rhs := lhs
	if !args.ShareEmb {
		rhs = matrix.NewZeroSparseLinear(rows, args.Dim)
	}
	return newModel(args, d, logger, lhs, rhs)
}

func isTsvSep(r rune) bool { return r == '\t' || r == ' ' }

// InferTsvDim returns the number of values on the first record of a TSV model.
func InferTsvDim(path string) (int, error) {
	dim := 0
	err := IO.WithReader(path, false, func(r io.Reader) error {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		dim = len(strings.FieldsFunc(strings.TrimRight(line, " \t\r\n"), isTsvSep)) - 1
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", path)
	}
	if dim <= 0 {
		return 0, errors.Errorf("%s: first record has no values", path)
	}
	return dim, nil
}

// LoadTsv fills the LHS rows of known symbols from a TSV model, reading the
// file in parallel partitions.
func (m *EmbedModel) LoadTsv(path string) error {
	m.log.Info("Loading model from file %s", path)
	err := IO.ForEachLine(path, max(m.args.Thread, 1), func(_ int, line string) {
		m.loadTsvLine(line)
	})
	if err != nil {
		return errors.Wrapf(err, "loading %s", path)
	}
	m.log.Info("Model loaded.")
	return nil
}

func (m *EmbedModel) loadTsvLine(line string) {
	cols := m.LHS.Cols()
	pieces := strings.FieldsFunc(strings.TrimRight(line, " \t\r"), isTsvSep)
	if len(pieces) == 0 {
		return
	}
	if len(pieces) > cols+1 {
		m.log.Warn("truncating long (%d) record for %q; misformatted file?", len(pieces), pieces[0])
		pieces = pieces[:cols+1]
	}
	if len(pieces) == cols {
		m.log.Warn("missing symbol on record %q; assuming empty string", line)
		pieces = append([]string{""}, pieces...)
	}
	for len(pieces) < cols+1 {
		m.log.Warn("zero-padding short record for %q", pieces[0])
		pieces = append(pieces, "0")
	}
	id := m.dict.ID(pieces[0])
	if id == -1 {
		m.log.Warn("failed to insert record for unknown symbol %q", pieces[0])
		return
	}
	row := m.LHS.Row(id)
	for i := range row {
		v, err := strconv.ParseFloat(pieces[i+1], 64)
		if err != nil {
			m.log.Warn("bad value %q for %q, using 0", pieces[i+1], pieces[0])
			v = 0
		}
		row[i] = v
	}
}

// SaveTsv writes symbol<TAB>values for every word and label, from the LHS table.
func (m *EmbedModel) SaveTsv(w io.Writer) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for id := int32(0); id < m.dict.Size(); id++ {
		bw.WriteString(m.dict.Symbol(id))
		for _, v := range m.LHS.Row(id) {
			bw.WriteByte('\t')
			buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
			bw.Write(buf)
		}
		bw.WriteByte('\n')
	}
	return errors.Wrap(bw.Flush(), "writing tsv model")
}
