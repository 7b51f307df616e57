package matrix

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/facebookresearch/StarSpace/IO"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SparseLinear is an embedding table addressed by feature id. A bag of
// weighted ids maps to the weighted sum of its rows.
type SparseLinear struct {
	M *mat.Dense
}

// NewSparseLinear draws every entry from N(0, sd^2).
func NewSparseLinear(rows, cols int, sd float64, src rand.Source) *SparseLinear {
	normal := distuv.Normal{Mu: 0, Sigma: sd, Src: src}
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = normal.Rand()
	}
	return &SparseLinear{M: mat.NewDense(rows, cols, data)}
}

// NewZeroSparseLinear returns an all-zero table.
func NewZeroSparseLinear(rows, cols int) *SparseLinear {
	return &SparseLinear{M: mat.NewDense(rows, cols, nil)}
}

func (s *SparseLinear) Rows() int { r, _ := s.M.Dims(); return r }
func (s *SparseLinear) Cols() int { _, c := s.M.Dims(); return c }

// Row is a live view of row id; writes go straight into the table.
func (s *SparseLinear) Row(id int32) []float64 {
	return s.M.RawRowView(int(id))
}

// Forward writes sum(w_i * row(id_i)) into out, which must have Cols entries.
func (s *SparseLinear) Forward(ids []parser.Base, out []float64) {
	if len(out) != s.Cols() {
		panic(fmt.Sprintf("SparseLinear.Forward: out has %d entries, table has %d cols", len(out), s.Cols()))
	}
	for i := range out {
		out[i] = 0
	}
	for _, b := range ids {
		floats.AddScaled(out, b.Weight, s.Row(b.ID))
	}
}

// ForwardOne copies row id into out.
func (s *SparseLinear) ForwardOne(id int32, out []float64) {
	copy(out, s.Row(id))
}

// Write stores the table as int64 rows, int64 cols and the row-major values.
func (s *SparseLinear) Write(w io.Writer) error {
	bw := IO.NewBinaryWriter(w)
	rows, cols := s.M.Dims()
	bw.Write(int64(rows))
	bw.Write(int64(cols))
	for i := 0; i < rows; i++ {
		bw.Write(s.M.RawRowView(i))
	}
	return errors.Wrap(bw.Err(), "writing embedding table")
}

// ReadSparseLinear reads a table written by Write.
func ReadSparseLinear(r *IO.BinaryReader) (*SparseLinear, error) {
	rows, cols := r.Int64(), r.Int64()
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "reading embedding table header")
	}
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("bad embedding table shape %dx%d", rows, cols)
	}
	data := make([]float64, rows*cols)
	r.Read(data)
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "reading embedding table")
	}
	return &SparseLinear{M: mat.NewDense(int(rows), int(cols), data)}, nil
}
