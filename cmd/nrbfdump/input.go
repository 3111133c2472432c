package main

import (
	"fmt"
	"io"
	"os"

	"github.com/robert-malhotra/go-nrbf/internal/filter"
)

// readInput reads path ("-" for stdin) and runs it through the filter
// pipeline. It returns the stream bytes and the filters that ran.
func readInput(path string, stdin io.Reader, p *filter.Pipeline) ([]byte, []string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Decode(data)
}
