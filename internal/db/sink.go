package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/linkscan/internal/sink"
)

// groupStore is the part of DB a LinkSink needs.
type groupStore interface {
	SaveLinkGroup(ctx context.Context, runID uuid.UUID, pairs []sink.LinkPair) error
}

// LinkSink adapts the store to sink.Sink for one run.
type LinkSink struct {
	store groupStore
	runID uuid.UUID
}

// Sink returns a sink.Sink that saves groups under runID. Closing it does
// not close the DB.
func (db *DB) Sink(runID uuid.UUID) *LinkSink {
	return &LinkSink{store: db, runID: runID}
}

// WriteGroup implements sink.Sink.
func (s *LinkSink) WriteGroup(ctx context.Context, pairs []sink.LinkPair) error {
	if err := s.store.SaveLinkGroup(ctx, s.runID, pairs); err != nil {
		return &sink.SinkError{Op: "save link group", Cause: err}
	}
	return nil
}

// Close implements sink.Sink.
func (s *LinkSink) Close() error {
	return nil
}
