package IO

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// BinaryWriter writes little-endian fixed-size values and strings, keeping
// the first error so callers can check once at the end.
type BinaryWriter struct {
	w   io.Writer
	err error
}

func NewBinaryWriter(w io.Writer) *BinaryWriter {
	return &BinaryWriter{w: w}
}

// Write writes a fixed-size value (or slice of them).
func (b *BinaryWriter) Write(v any) {
	if b.err != nil {
		return
	}
	b.err = binary.Write(b.w, binary.LittleEndian, v)
}

func (b *BinaryWriter) Bool(v bool) {
	if v {
		b.Write(uint8(1))
	} else {
		b.Write(uint8(0))
	}
}

// CString writes s followed by a NUL byte.
func (b *BinaryWriter) CString(s string) {
	if b.err != nil {
		return
	}
	if _, err := io.WriteString(b.w, s); err != nil {
		b.err = err
		return
	}
	b.Write(uint8(0))
}

// String writes an int64 length and then the bytes of s.
func (b *BinaryWriter) String(s string) {
	b.Write(int64(len(s)))
	if b.err != nil {
		return
	}
	_, b.err = io.WriteString(b.w, s)
}

func (b *BinaryWriter) Err() error { return b.err }

// BinaryReader is the reading half of BinaryWriter.
type BinaryReader struct {
	r   *bufio.Reader
	err error
}

func NewBinaryReader(r io.Reader) *BinaryReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &BinaryReader{r: br}
	}
	return &BinaryReader{r: bufio.NewReader(r)}
}

func (b *BinaryReader) Read(v any) {
	if b.err != nil {
		return
	}
	b.err = binary.Read(b.r, binary.LittleEndian, v)
}

func (b *BinaryReader) Int32() int32 {
	var v int32
	b.Read(&v)
	return v
}

func (b *BinaryReader) Int64() int64 {
	var v int64
	b.Read(&v)
	return v
}

func (b *BinaryReader) Uint8() uint8 {
	var v uint8
	b.Read(&v)
	return v
}

func (b *BinaryReader) Bool() bool { return b.Uint8() != 0 }

func (b *BinaryReader) CString() string {
	if b.err != nil {
		return ""
	}
	s, err := b.r.ReadString(0)
	if err != nil {
		b.err = errors.Wrap(err, "reading NUL-terminated string")
		return ""
	}
	return s[:len(s)-1]
}

func (b *BinaryReader) String() string {
	n := b.Int64()
	if b.err != nil {
		return ""
	}
	if n < 0 {
		b.err = errors.Errorf("negative string length %d", n)
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(b.r, buf); err != nil {
		b.err = errors.Wrap(err, "reading string")
		return ""
	}
	return string(buf)
}

func (b *BinaryReader) Err() error { return b.err }

// Reader exposes the buffered reader so later blocks continue from the same offset.
func (b *BinaryReader) Reader() *bufio.Reader { return b.r }
