package dataset

import "sync"

// Batch is one consecutive slice of the dataset.
type Batch struct {
	Index   int
	Samples []Sample
}

// Loader is a pull-based batch iterator. A single producer goroutine
// slices the dataset into batches and prefetches up to the configured
// depth ahead of the consumer; the consumer side stays synchronous.
// A consumer that stops before the last batch must call Close to
// release the producer.
type Loader struct {
	ch      chan Batch
	batches int
	done    chan struct{}
	once    sync.Once
}

// NewLoader builds a batch iterator over d. batchSize values below 1
// are treated as 1; prefetch is the number of batches buffered ahead of
// the consumer (0 means fully synchronous hand-off).
func NewLoader(d *Dataset, batchSize, prefetch int) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	if prefetch < 0 {
		prefetch = 0
	}
	n := len(d.Samples)
	l := &Loader{
		ch:      make(chan Batch, prefetch),
		batches: (n + batchSize - 1) / batchSize,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(l.ch)
		for i, idx := 0, 0; i < n; i, idx = i+batchSize, idx+1 {
			j := i + batchSize
			if j > n {
				j = n
			}
			select {
			case l.ch <- Batch{Index: idx, Samples: d.Samples[i:j]}:
			case <-l.done:
				return
			}
		}
	}()
	return l
}

// Close releases the producer goroutine. Safe to call more than once
// and after the loader is exhausted; Next keeps draining batches
// already buffered.
func (l *Loader) Close() {
	l.once.Do(func() { close(l.done) })
}

// Next returns the next batch; ok is false after the last batch.
func (l *Loader) Next() (b Batch, ok bool) {
	b, ok = <-l.ch
	return b, ok
}

// Batches returns the total number of batches the loader will yield.
func (l *Loader) Batches() int { return l.batches }
