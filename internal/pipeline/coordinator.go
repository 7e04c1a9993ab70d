package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/linkscan/internal/fetch"
	"github.com/jonathan/linkscan/internal/logger"
)

// Policy controls how many URLs are processed at once.
type Policy struct {
	// MaxInFlight bounds concurrent tasks. 0 dispatches every URL at once,
	// 1 processes them one at a time.
	MaxInFlight int
}

// Unbounded dispatches one task per URL with no limit.
func Unbounded() Policy { return Policy{} }

// Sequential processes one URL at a time.
func Sequential() Policy { return Policy{MaxInFlight: 1} }

// Bounded allows at most n tasks in flight.
func Bounded(n int) Policy { return Policy{MaxInFlight: n} }

// Failure records one failed URL.
type Failure struct {
	URL  string
	Kind fetch.Kind
	Err  error
}

// Summary tallies the outcomes of a run. Succeeded+Failed+NoLinks == Total.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	NoLinks   int
	// Links is the number of pairs written across all URLs.
	Links    int
	Failures []Failure
	Elapsed  time.Duration
}

// Options configures a Coordinator.
type Options struct {
	Policy Policy
	Log    logger.Logger
	// OnOutcome, if set, is called once per URL. Calls are serialized.
	OnOutcome func(Outcome)
}

// Coordinator runs a Processor over a set of URLs.
type Coordinator struct {
	processor *Processor
	opts      Options
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(processor *Processor, opts Options) *Coordinator {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	return &Coordinator{processor: processor, opts: opts}
}

// Run processes every URL and waits until each has reached a terminal
// outcome. A failing URL never stops its siblings. If ctx is canceled,
// in-flight fetches are abandoned, URLs not yet started count as failed,
// and ctx.Err() is returned alongside the Summary.
func (c *Coordinator) Run(ctx context.Context, urls []string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Total: len(urls)}

	var mu sync.Mutex
	record := func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()

		switch o.Status {
		case StatusWritten:
			summary.Succeeded++
			summary.Links += o.Links
		case StatusNoLinks:
			summary.NoLinks++
		default:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{URL: o.URL, Kind: fetch.KindOf(o.Err), Err: o.Err})
			c.opts.Log.Warn("url failed", logger.String("url", o.URL), logger.Error(o.Err))
		}
		if c.opts.OnOutcome != nil {
			c.opts.OnOutcome(o)
		}
	}

	var g errgroup.Group
	if c.opts.Policy.MaxInFlight > 0 {
		g.SetLimit(c.opts.Policy.MaxInFlight)
	}

	for _, u := range urls {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(Outcome{URL: u, Status: StatusFailed, Err: &fetch.Error{
					URL: u, Kind: fetch.KindNetwork, Message: "request canceled", Cause: err,
				}})
				return nil
			}
			record(c.processor.Process(ctx, u))
			return nil
		})
	}
	_ = g.Wait()

	summary.Elapsed = time.Since(start)
	c.opts.Log.Info("run finished",
		logger.Int("total", summary.Total),
		logger.Int("succeeded", summary.Succeeded),
		logger.Int("failed", summary.Failed),
		logger.Int("no_links", summary.NoLinks),
		logger.Int("links", summary.Links),
		logger.Duration("elapsed", summary.Elapsed),
	)

	return summary, ctx.Err()
}
