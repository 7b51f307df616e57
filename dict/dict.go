package dict

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/facebookresearch/StarSpace/IO"
	"github.com/facebookresearch/StarSpace/log"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/pkg/errors"
)

const (
	EOS    = "</s>"
	HashC  = 116049371
	fnvOff = 2166136261
	fnvPrm = 16777619
)

var (
	ErrEmptyFile       = errors.New("empty file")
	ErrEmptyVocabulary = errors.New("empty vocabulary, try a smaller -minCount value")
	ErrVocabCapacity   = errors.New("vocabulary does not fit the hash table, raise -vocabCapacity")
)

type EntryType int8

const (
	Word EntryType = iota
	Label
)

type Entry struct {
	Symbol string
	Count  int64
	Type   EntryType
}

// Splitter turns a raw line into the symbols counted by the dictionary.
type Splitter interface {
	ParseForDict(line string) []string
}

// Dictionary maps symbols to dense ids: words take [0, nwords), labels
// [nwords, nwords+nlabels). Lookups go through an open-addressing table.
type Dictionary struct {
	args        *params.Args
	log         log.Logger
	entries     []Entry
	hashToIndex []int32
	size        int32
	nwords      int32
	nlabels     int32
	ntokens     int64
}

func New(args *params.Args, logger log.Logger) *Dictionary {
	capacity := args.VocabCapacity
	if capacity <= 0 {
		capacity = params.Defaults.VocabCapacity
	}
	d := &Dictionary{
		args:        args,
		log:         log.Or(logger),
		hashToIndex: make([]int32, capacity),
	}
	d.clearIndex()
	return d
}

func (d *Dictionary) clearIndex() {
	for i := range d.hashToIndex {
		d.hashToIndex[i] = -1
	}
}

// Hash is 32-bit FNV-1a over the bytes of s, each byte sign-extended.
func Hash(s string) uint32 {
	h := uint32(fnvOff)
	for i := 0; i < len(s); i++ {
		h ^= uint32(int32(int8(s[i])))
		h *= fnvPrm
	}
	return h
}

func (d *Dictionary) find(w string) int {
	n := len(d.hashToIndex)
	h := int(Hash(w) % uint32(n))
	for d.hashToIndex[h] != -1 && d.entries[d.hashToIndex[h]].Symbol != w {
		h = (h + 1) % n
	}
	return h
}

// fits reports whether n entries leave the table at least one free slot;
// find never terminates on a full table.
func (d *Dictionary) fits(n int) bool {
	return n < len(d.hashToIndex)
}

func (d *Dictionary) ID(symbol string) int32 {
	return d.hashToIndex[d.find(symbol)]
}

func (d *Dictionary) Symbol(id int32) string {
	if id < 0 || id >= d.size {
		panic("Dictionary.Symbol: id out of range")
	}
	return d.entries[id].Symbol
}

// Label returns the symbol of the lid-th label.
func (d *Dictionary) Label(lid int32) string {
	if lid < 0 || lid >= d.nlabels {
		panic("Dictionary.Label: label id out of range")
	}
	return d.entries[lid+d.nwords].Symbol
}

func (d *Dictionary) Type(id int32) EntryType {
	if id < 0 || id >= d.size {
		panic("Dictionary.Type: id out of range")
	}
	return d.entries[id].Type
}

// TypeOf classifies a symbol by the configured label prefix.
func (d *Dictionary) TypeOf(symbol string) EntryType {
	if strings.HasPrefix(symbol, d.args.Label) {
		return Label
	}
	return Word
}

func (d *Dictionary) Size() int32    { return d.size }
func (d *Dictionary) NWords() int32  { return d.nwords }
func (d *Dictionary) NLabels() int32 { return d.nlabels }
func (d *Dictionary) NTokens() int64 { return d.ntokens }

// Entries returns the entries in id order. The slice must not be modified.
func (d *Dictionary) Entries() []Entry { return d.entries }

func (d *Dictionary) Insert(symbol string) {
	h := d.find(symbol)
	d.ntokens++
	if d.hashToIndex[h] == -1 {
		d.entries = append(d.entries, Entry{Symbol: symbol, Count: 1, Type: d.TypeOf(symbol)})
		d.hashToIndex[h] = d.size
		d.size++
		return
	}
	d.entries[d.hashToIndex[h]].Count++
}

// Threshold sorts entries by (type, -count), drops words below t and
// labels below tl, then rebuilds the index.
func (d *Dictionary) Threshold(t, tl int64) {
	sort.SliceStable(d.entries, func(i, j int) bool {
		a, b := d.entries[i], d.entries[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Count > b.Count
	})
	kept := d.entries[:0]
	for _, e := range d.entries {
		if (e.Type == Word && e.Count < t) || (e.Type == Label && e.Count < tl) {
			continue
		}
		kept = append(kept, e)
	}
	d.entries = append([]Entry(nil), kept...)
	d.computeCounts()
}

func (d *Dictionary) computeCounts() {
	d.size, d.nwords, d.nlabels = 0, 0, 0
	d.clearIndex()
	for _, e := range d.entries {
		d.hashToIndex[d.find(e.Symbol)] = d.size
		d.size++
		if e.Type == Word {
			d.nwords++
		} else {
			d.nlabels++
		}
	}
}

func (d *Dictionary) insertTokens(tokens []string, minThreshold *int64) {
	limit := int32(0.75 * float64(len(d.hashToIndex)))
	for _, tok := range tokens {
		d.Insert(tok)
		if d.size > limit {
			*minThreshold++
			d.Threshold(*minThreshold, *minThreshold)
		}
	}
}

// ReadFromFile counts every symbol of path (or of its gzip shards) and
// applies the configured thresholds. While counting, the thresholds are
// raised whenever the table goes over 75% capacity.
func (d *Dictionary) ReadFromFile(path string, sp Splitter) error {
	minThreshold := int64(1)
	linesRead := 0
	consume := func(r io.Reader) error {
		scanner := IO.NewLineScanner(r)
		for scanner.Scan() {
			linesRead++
			d.insertTokens(sp.ParseForDict(scanner.Text()), &minThreshold)
		}
		return scanner.Err()
	}

	if d.args.CompressFile == "gzip" {
		d.log.Info("Build dict from compressed input file: %s (%d shards)", path, d.args.NumGzFile)
		for _, shard := range IO.ShardNames(path, d.args.NumGzFile) {
			err := IO.WithReader(shard, true, consume)
			if os.IsNotExist(errors.Cause(err)) {
				continue
			}
			if err != nil {
				return errors.Wrapf(err, "reading %s", shard)
			}
		}
	} else {
		d.log.Info("Build dict from input file: %s", path)
		if err := IO.WithReader(path, false, consume); err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
	}

	d.Threshold(int64(d.args.MinCount), int64(d.args.MinCountLabel))
	d.log.Info("Read %dM words, %d words and %d labels in dictionary",
		d.ntokens/1000000, d.nwords, d.nlabels)
	if linesRead == 0 {
		return errors.Wrap(ErrEmptyFile, path)
	}
	if d.size == 0 {
		return ErrEmptyVocabulary
	}
	return nil
}

// LoadFromTsv builds the dictionary from the first column of a TSV model,
// keeping the file order within each type.
func (d *Dictionary) LoadFromTsv(path string) error {
	d.log.Info("Loading dict from model file: %s", path)
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening tsv model")
	}
	defer f.Close()
	scanner := IO.NewLineScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !d.fits(int(d.size)+1) && d.ID(fields[0]) < 0 {
			return errors.Wrapf(ErrVocabCapacity, "%s: more than %d symbols", path, len(d.hashToIndex)-1)
		}
		d.Insert(fields[0])
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading tsv model")
	}
	sort.SliceStable(d.entries, func(i, j int) bool { return d.entries[i].Type < d.entries[j].Type })
	d.computeCounts()
	d.log.Info("%d words and %d labels in dictionary", d.nwords, d.nlabels)
	if d.size == 0 {
		return ErrEmptyVocabulary
	}
	return nil
}

func (d *Dictionary) Save(w io.Writer) error {
	bw := IO.NewBinaryWriter(w)
	bw.Write(d.size)
	bw.Write(d.nwords)
	bw.Write(d.nlabels)
	bw.Write(d.ntokens)
	for _, e := range d.entries {
		bw.CString(e.Symbol)
		bw.Write(e.Count)
		bw.Write(int8(e.Type))
	}
	return errors.Wrap(bw.Err(), "saving dictionary")
}

func (d *Dictionary) Load(r *IO.BinaryReader) error {
	d.entries = nil
	d.clearIndex()
	d.size = r.Int32()
	d.nwords = r.Int32()
	d.nlabels = r.Int32()
	d.ntokens = r.Int64()
	if err := r.Err(); err != nil {
		return errors.Wrap(err, "loading dictionary header")
	}
	if d.size < 0 || !d.fits(int(d.size)) {
		return errors.Wrapf(ErrVocabCapacity, "model has %d entries, table has %d slots", d.size, len(d.hashToIndex))
	}
	d.entries = make([]Entry, 0, d.size)
	for i := int32(0); i < d.size; i++ {
		var e Entry
		e.Symbol = r.CString()
		e.Count = r.Int64()
		var t int8
		r.Read(&t)
		e.Type = EntryType(t)
		if err := r.Err(); err != nil {
			return errors.Wrapf(err, "loading dictionary entry %d", i)
		}
		d.entries = append(d.entries, e)
		d.hashToIndex[d.find(e.Symbol)] = i
	}
	return nil
}

// Dump writes the entries as text, one "id symbol count type" line each.
func (d *Dictionary) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, e := range d.entries {
		kind := "word"
		if e.Type == Label {
			kind = "label"
		}
		fmt.Fprintf(bw, "%d\t%s\t%d\t%s\n", i, e.Symbol, e.Count, kind)
	}
	return bw.Flush()
}
