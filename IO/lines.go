package IO

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const maxLineBytes = 64 << 20

// NewLineScanner returns a line scanner that accepts very long lines.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return s
}

// ShardNames lists the gzip shard names of prefix: prefix00.gz, prefix01.gz, ...
func ShardNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s%02d.gz", prefix, i)
	}
	return names
}

// WithReader opens path, transparently gunzipping when gz is set, and hands
// the stream to fn.
func WithReader(path string, gz bool, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var r io.Reader = bufio.NewReaderSize(f, 1<<20)
	if gz {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return errors.Wrapf(err, "gzip header of %s", path)
		}
		defer zr.Close()
		r = zr
	}
	return fn(r)
}

// Partitions splits the file into n byte ranges whose boundaries sit on line
// starts. Range i is [p[i], p[i+1]).
func Partitions(path string, n int) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	parts := make([]int64, n+1)
	parts[n] = size
	for i := 1; i < n; i++ {
		off := size / int64(n) * int64(i)
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return nil, err
		}
		skipped, err := bufio.NewReader(f).ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		p := off + int64(len(skipped))
		if p < parts[i-1] {
			p = parts[i-1]
		}
		if p > size {
			p = size
		}
		parts[i] = p
	}
	return parts, nil
}

// ForEachLine calls fn for every line of path, splitting the file into
// numThreads byte ranges read concurrently. fn receives the index of the
// range it runs in; calls within one range are sequential and in file order.
func ForEachLine(path string, numThreads int, fn func(worker int, line string)) error {
	if numThreads < 1 {
		numThreads = 1
	}
	parts, err := Partitions(path, numThreads)
	if err != nil {
		return errors.Wrapf(err, "partitioning %s", path)
	}
	var g errgroup.Group
	for i := 0; i < numThreads; i++ {
		i := i
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := f.Seek(parts[i], io.SeekStart); err != nil {
				return err
			}
			r := bufio.NewReaderSize(f, 1<<20)
			pos := parts[i]
			for pos < parts[i+1] {
				line, err := r.ReadString('\n')
				pos += int64(len(line))
				if len(line) > 0 {
					fn(i, chomp(line))
				}
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return errors.Wrapf(g.Wait(), "reading %s", path)
}

// ForEachShard reads the gzip shards of prefix with at most numThreads
// shards open at once. fn receives the shard index. Missing shards are skipped.
func ForEachShard(prefix string, numShards, numThreads int, fn func(shard int, line string)) error {
	if numThreads < 1 {
		numThreads = 1
	}
	sem := semaphore.NewWeighted(int64(numThreads))
	g, ctx := errgroup.WithContext(context.Background())
	for i, name := range ShardNames(prefix, numShards) {
		i, name := i, name
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			err := WithReader(name, true, func(r io.Reader) error {
				s := NewLineScanner(r)
				for s.Scan() {
					fn(i, s.Text())
				}
				return s.Err()
			})
			if os.IsNotExist(err) {
				return nil
			}
			return errors.Wrapf(err, "reading shard %s", name)
		})
	}
	return g.Wait()
}

func chomp(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
