package sink

import (
	"context"
	"errors"
)

type multiSink struct {
	sinks []Sink
}

// Multi returns a Sink that writes every group to each of sinks in order
// and stops at the first failure.
func Multi(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (m *multiSink) WriteGroup(ctx context.Context, pairs []LinkPair) error {
	for _, s := range m.sinks {
		if err := s.WriteGroup(ctx, pairs); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m *multiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
