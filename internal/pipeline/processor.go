// Package pipeline fetches every input URL, extracts its links and hands
// them to a sink, isolating per-URL failures.
package pipeline

import (
	"context"
	"errors"

	"github.com/jonathan/linkscan/internal/fetch"
	"github.com/jonathan/linkscan/internal/links"
	"github.com/jonathan/linkscan/internal/logger"
	"github.com/jonathan/linkscan/internal/sink"
)

// Fetcher retrieves the decoded body of one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Status is the terminal state of one URL.
type Status string

const (
	// StatusWritten means at least one pair was written.
	StatusWritten Status = "written"
	// StatusNoLinks means the page had no links and nothing was written.
	StatusNoLinks Status = "no_links"
	// StatusFailed means fetching or writing failed.
	StatusFailed Status = "failed"
)

// Outcome is the result of processing one URL.
type Outcome struct {
	URL    string
	Status Status
	// Links is the number of pairs written.
	Links int
	Err   error
}

// errEmptyURL is the cause reported for blank input lines.
var errEmptyURL = errors.New("empty URL")

// Processor composes a Fetcher, an Extractor and a Sink for one URL.
type Processor struct {
	fetcher   Fetcher
	extractor links.Extractor
	sink      sink.Sink
	log       logger.Logger
}

// NewProcessor creates a Processor. A nil log discards output.
func NewProcessor(fetcher Fetcher, extractor links.Extractor, s sink.Sink, log logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{fetcher: fetcher, extractor: extractor, sink: s, log: log}
}

// Process fetches sourceURL, extracts its links and writes them as one
// group. Errors are reported in the Outcome, never returned.
func (p *Processor) Process(ctx context.Context, sourceURL string) Outcome {
	if sourceURL == "" {
		return Outcome{
			URL:    sourceURL,
			Status: StatusFailed,
			Err:    &fetch.Error{Kind: fetch.KindNetwork, Message: "invalid URL", Cause: errEmptyURL},
		}
	}

	result, err := p.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return Outcome{URL: sourceURL, Status: StatusFailed, Err: err}
	}

	linked := p.extractor.Extract(sourceURL, result.Body)
	if len(linked) == 0 {
		p.log.Debug("no links found", logger.String("url", sourceURL))
		return Outcome{URL: sourceURL, Status: StatusNoLinks}
	}

	pairs := make([]sink.LinkPair, len(linked))
	for i, l := range linked {
		pairs[i] = sink.LinkPair{Source: sourceURL, Linked: l}
	}
	if err := p.sink.WriteGroup(ctx, pairs); err != nil {
		return Outcome{URL: sourceURL, Status: StatusFailed, Err: err}
	}

	p.log.Debug("links written",
		logger.String("url", sourceURL),
		logger.Int("links", len(pairs)),
		logger.Int("status_code", result.StatusCode),
	)
	return Outcome{URL: sourceURL, Status: StatusWritten, Links: len(pairs)}
}
