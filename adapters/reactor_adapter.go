// File: adapters/reactor_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// MeteredReactor decorates an api.Reactor with counters published to a MetricsRegistry.

package adapters

import (
	"time"

	"github.com/momentics/hioload-dcp/api"
	"github.com/momentics/hioload-dcp/control"
)

// Metric keys maintained by MeteredReactor.
const (
	MetricBackend     = "reactor.backend"
	MetricPolls       = "reactor.polls"
	MetricEvents      = "reactor.events"
	MetricRegistered  = "reactor.registered"
	MetricErrors      = "reactor.errors"
	MetricCompletions = "reactor.completions"
)

// MeteredReactor forwards every call to the wrapped reactor and records
// counters. It adds no locking; the usual single-owner rule applies.
type MeteredReactor struct {
	inner   api.Reactor
	metrics *control.MetricsRegistry
}

// NewMeteredReactor wraps r, publishing into m.
func NewMeteredReactor(r api.Reactor, m *control.MetricsRegistry) *MeteredReactor {
	m.Set(MetricBackend, r.Name())
	return &MeteredReactor{inner: r, metrics: m}
}

// Unwrap returns the decorated reactor.
func (m *MeteredReactor) Unwrap() api.Reactor { return m.inner }

func (m *MeteredReactor) fail(err error) error {
	if err != nil {
		m.metrics.Add(MetricErrors, 1)
	}
	return err
}

func (m *MeteredReactor) Poll(timeout time.Duration) ([]api.Event, error) {
	events, err := m.inner.Poll(timeout)
	m.metrics.Add(MetricPolls, 1)
	m.metrics.Add(MetricEvents, int64(len(events)))
	return events, m.fail(err)
}

func (m *MeteredReactor) Register(fd uintptr, interest api.Interest) (api.Token, error) {
	tok, err := m.inner.Register(fd, interest)
	if err == nil {
		m.metrics.Add(MetricRegistered, 1)
	}
	return tok, m.fail(err)
}

func (m *MeteredReactor) Modify(tok api.Token, interest api.Interest) error {
	return m.fail(m.inner.Modify(tok, interest))
}

func (m *MeteredReactor) Deregister(tok api.Token) error {
	err := m.inner.Deregister(tok)
	if err == nil {
		m.metrics.Add(MetricRegistered, -1)
	}
	return m.fail(err)
}

func (m *MeteredReactor) SubmitRead(tok api.Token, buf []byte) (*api.Completion, error) {
	c, err := m.inner.SubmitRead(tok, buf)
	m.countCompletion(c)
	return c, m.fail(err)
}

func (m *MeteredReactor) SubmitWrite(tok api.Token, buf []byte) (*api.Completion, error) {
	c, err := m.inner.SubmitWrite(tok, buf)
	m.countCompletion(c)
	return c, m.fail(err)
}

func (m *MeteredReactor) countCompletion(c *api.Completion) {
	if c != nil {
		m.metrics.Add(MetricCompletions, 1)
	}
}

// Completions drains the wrapped reactor when it is completion-based.
func (m *MeteredReactor) Completions() []api.Completion {
	ar, ok := m.inner.(api.AsyncReactor)
	if !ok {
		return nil
	}
	out := ar.Completions()
	m.metrics.Add(MetricCompletions, int64(len(out)))
	return out
}

func (m *MeteredReactor) SupportsAsyncIO() bool { return m.inner.SupportsAsyncIO() }
func (m *MeteredReactor) Name() string          { return m.inner.Name() }
func (m *MeteredReactor) Close() error          { return m.inner.Close() }

var _ api.AsyncReactor = (*MeteredReactor)(nil)
