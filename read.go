package goodr

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
)

// ReadInputs reads every file of src in parallel and returns them as
// inputs in the source's order. The input whose name equals start is marked
// as the start file; an empty start marks none.
func ReadInputs(ctx context.Context, src Source, start string) ([]Input, error) {
	files, err := src.ListFiles()
	if err != nil {
		return nil, err
	}

	inputs := make([]Input, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.NumCPU())

	for i, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			data, err := src.ReadFile(file)
			if err != nil {
				errs[i] = fmt.Errorf("reading %s: %w", file, err)
				return
			}
			inputs[i] = Input{Name: file, Data: data, Start: start != "" && file == start}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if start != "" && !slices.ContainsFunc(inputs, func(in Input) bool { return in.Start }) {
		return nil, fmt.Errorf("%w: %s is not among the inputs", ErrNoStart, start)
	}
	return inputs, nil
}
