package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkovacic/sale-notifier/pkg/sale"
)

// Notifier delivers a sale summary to a single destination.
// Implementations with no configured destination must treat Notify as an
// immediate no-op success.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, summary sale.Summary) error
	Close() error
}

// Result is the outcome of one sink's delivery attempt.
type Result struct {
	Sink    string
	Elapsed time.Duration
	Err     error
}

// Dispatch delivers the summary to every notifier concurrently and waits
// for all of them to settle. One sink's failure never cancels or blocks a
// sibling; outcomes are returned in registration order.
func Dispatch(ctx context.Context, notifiers []Notifier, summary sale.Summary) []Result {
	results := make([]Result, len(notifiers))

	var wg sync.WaitGroup
	for i, n := range notifiers {
		wg.Add(1)
		go func(i int, n Notifier) {
			defer wg.Done()
			start := time.Now()
			err := notify(ctx, n, summary)
			results[i] = Result{Sink: n.Name(), Elapsed: time.Since(start), Err: err}
		}(i, n)
	}
	wg.Wait()

	return results
}

// notify contains a panicking adapter so it reports as a failed delivery
// instead of taking down its siblings.
func notify(ctx context.Context, n Notifier, summary sale.Summary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s notifier panicked: %v", n.Name(), r)
		}
	}()
	return n.Notify(ctx, summary)
}
