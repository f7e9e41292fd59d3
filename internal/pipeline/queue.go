// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package pipeline implements the intelligence processing pipeline: the
// bounded ingestion and post-process queues, the analysis and archival
// workers, the in-flight processing table, the session counters, and the
// startup replay loop.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/osintwire/intelhub/internal/metrics"
)

var (
	// ErrQueueFull is returned when a put could not be accepted within the
	// put timeout; the submission is retriable.
	ErrQueueFull = errors.New("queue full")
	// ErrStopped is returned when the queue's context is cancelled.
	ErrStopped = errors.New("pipeline stopped")
)

// Queue is a bounded multi-producer FIFO over a buffered channel.
type Queue[T any] struct {
	name       string
	ch         chan T
	putTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue with the given capacity. putTimeout bounds how
// long Put blocks when the queue is full.
func NewQueue[T any](name string, capacity int, putTimeout time.Duration) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	if putTimeout <= 0 {
		putTimeout = 3 * time.Second
	}
	return &Queue[T]{
		name:       name,
		ch:         make(chan T, capacity),
		putTimeout: putTimeout,
		done:       make(chan struct{}),
	}
}

// Put enqueues v, blocking up to the put timeout when full. Returns
// ErrQueueFull on timeout and ErrStopped when ctx is cancelled.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	select {
	case <-q.done:
		return ErrStopped
	case q.ch <- v:
		q.observe()
		return nil
	default:
	}

	timer := time.NewTimer(q.putTimeout)
	defer timer.Stop()
	select {
	case q.ch <- v:
		q.observe()
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-q.done:
		return ErrStopped
	case <-ctx.Done():
		return ErrStopped
	}
}

// Get dequeues one item, blocking until one is available or ctx is
// cancelled.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-q.ch:
		q.observe()
		return v, nil
	case <-q.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ErrStopped
	}
}

// Close stops the queue: pending and future Put/Get calls return
// ErrStopped. Idempotent.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

func (q *Queue[T]) observe() {
	metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.ch)))
}

// Len returns the current queue depth.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Name returns the queue's metric label.
func (q *Queue[T]) Name() string { return q.name }
