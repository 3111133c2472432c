package filter

import (
	"fmt"
)

// Pipeline applies a sequence of filters to input data.
type Pipeline struct {
	filters []Filter
	detect  bool
	maxSize int64
}

// NewPipeline creates a pipeline from filter names, applied in order.
// When detect is set, compression found after the named filters is
// removed as well.
func NewPipeline(names []string, detect bool, maxSize int64) (*Pipeline, error) {
	p := &Pipeline{
		filters: make([]Filter, 0, len(names)),
		detect:  detect,
		maxSize: maxSize,
	}
	for _, name := range names {
		f, err := New(name, maxSize)
		if err != nil {
			return nil, err
		}
		p.filters = append(p.filters, f)
	}
	return p, nil
}

// Decode runs input through the pipeline. It returns the names of the
// filters that ran, detected ones included.
func (p *Pipeline) Decode(input []byte) ([]byte, []string, error) {
	data := input
	var applied []string
	run := func(f Filter) error {
		var err error
		data, err = f.Decode(data)
		if err != nil {
			return fmt.Errorf("filter %s: %w", f.Name(), err)
		}
		applied = append(applied, f.Name())
		return nil
	}

	for _, f := range p.filters {
		if err := run(f); err != nil {
			return nil, nil, err
		}
	}
	if p.detect {
		if f := Detect(data, p.maxSize); f != nil {
			if err := run(f); err != nil {
				return nil, nil, err
			}
		}
	}
	return data, applied, nil
}

// Empty returns true if the pipeline neither has filters nor detects
// compression.
func (p *Pipeline) Empty() bool {
	return len(p.filters) == 0 && !p.detect
}

// Len returns the number of named filters in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.filters)
}
