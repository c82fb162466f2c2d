package parallel

import (
	"runtime"
	"sync"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
)

// Workers returns the number of workers used for items jobs: one per CPU
// core, never more than items.
func Workers(items int) int {
	n := runtime.NumCPU()
	if n > items {
		n = items
	}
	return n
}

// ForEach runs fn for every index in [0, items) across Workers(items)
// goroutines. Every job runs even when some fail; the failures are combined
// in index order. A panicking job is reported as an error.
func ForEach(items int, fn func(i int) error) error {
	if items <= 0 {
		return nil
	}

	errs := make([]error, items)
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < Workers(items); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = errors.SafeExecute("parallel.job", func() error { return fn(i) })
			}
		}()
	}
	for i := 0; i < items; i++ {
		jobs <- i
	}
	close(jobs)

	// Wait for all workers to finish processing
	wg.Wait()

	var combined error
	for _, err := range errs {
		if err != nil {
			combined = errors.CombineErrors(combined, err)
		}
	}
	return combined
}

// ForEachWithThreshold runs sequentially when items does not exceed
// threshold, and like ForEach otherwise.
func ForEachWithThreshold(items, threshold int, fn func(i int) error) error {
	if items > threshold {
		return ForEach(items, fn)
	}
	var combined error
	for i := 0; i < items; i++ {
		if err := fn(i); err != nil {
			combined = errors.CombineErrors(combined, err)
		}
	}
	return combined
}
