// Package eventsink delivers crossing events to their outputs.
package eventsink

import (
	"context"
	"errors"
	"fmt"

	"roadwatch-go/internal/crossing"
)

// Record is one crossing event as seen by the outputs.
type Record struct {
	RunID string `json:"run_id"`
	Video string `json:"video"`
	crossing.Event
}

// Sink receives crossing events in temporal order.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Multi fans a record out to every sink.
type Multi struct {
	sinks []Sink
}

// NewMulti drops nil sinks.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink even when some fail.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrRequired marks the failure of an output the run cannot complete without.
var ErrRequired = errors.New("required output failed")

type required struct {
	Sink
}

// Required wraps s so its write and close errors match ErrRequired and end the run.
func Required(s Sink) Sink {
	return required{Sink: s}
}

func (r required) Write(ctx context.Context, rec Record) error {
	if err := r.Sink.Write(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrRequired, err)
	}
	return nil
}

func (r required) Close() error {
	if err := r.Sink.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrRequired, err)
	}
	return nil
}

// Discard drops every record.
type Discard struct{}

func (Discard) Write(context.Context, Record) error { return nil }
func (Discard) Close() error                        { return nil }
