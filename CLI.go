package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/facebookresearch/StarSpace/starspace"
)

// QueryCLI answers one query per input line until EOF or an empty line.
func QueryCLI(sp *starspace.StarSpace, mode string, in io.Reader, out io.Writer) error {
	sp.Args.DropoutLHS = 0
	sp.Args.DropoutRHS = 0
	switch mode {
	case "predict":
		if err := sp.LoadBaseDocs(); err != nil {
			return err
		}
	case "ngrams":
		if sp.Args.Ngrams <= 1 {
			return starspace.ErrNoNgrams
		}
	}
	reader := bufio.NewReader(in)
	for {
		if mode == "nn" || mode == "predict" {
			fmt.Fprint(out, "Enter some text: ")
		}
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err == nil || err == io.EOF {
				return nil
			}
			return err
		}
		switch mode {
		case "nn":
			for _, n := range sp.NearestNeighbor(line, sp.Args.K) {
				fmt.Fprintf(out, "%s %g\n", n.Symbol, n.Score)
			}
		case "predict":
			preds, perr := sp.PredictOne(sp.ParseDoc(line, " "), sp.Args.K)
			if perr != nil {
				return perr
			}
			for i, p := range preds {
				fmt.Fprintf(out, "%d[%g]: ", i, p.Score)
				sp.PrintDoc(out, sp.BaseDoc(p.ID))
			}
			fmt.Fprintln(out)
		case "embed":
			fmt.Fprintln(out, line)
			vec := sp.GetDocVector(line, " \t")
			parts := make([]string, len(vec))
			for i, v := range vec {
				parts[i] = fmt.Sprintf("%g", v)
			}
			fmt.Fprintln(out, strings.Join(parts, " "))
		case "ngrams":
			vec, verr := sp.GetNgramVector(line)
			if verr != nil {
				return verr
			}
			fmt.Fprint(out, line)
			for _, v := range vec {
				fmt.Fprintf(out, "\t%g", v)
			}
			fmt.Fprintln(out)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
