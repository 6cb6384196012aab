// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package throttle bounds concurrent request handling to a fixed number of
// slots with a FIFO waiting queue of bounded depth (§4.8). A request that
// cannot get a slot waits in the queue; a request that cannot even get a
// queue position is rejected.
package throttle

import (
	"context"
	"sync"

	"objectgw/internal/gwerrors"
)

// Observer receives probe calls for throttle events (§9 design note: "a
// single observer interface" instead of ad-hoc probe emission). Production
// wires these to tracing/metrics; tests record calls.
type Observer interface {
	OnQueueEnter()
	OnQueueLeave()
	OnThrottle()
	OnHandled()
}

// NopObserver implements Observer with no-ops.
type NopObserver struct{}

func (NopObserver) OnQueueEnter() {}
func (NopObserver) OnQueueLeave() {}
func (NopObserver) OnThrottle()   {}
func (NopObserver) OnHandled()    {}

// Throttle bounds concurrency to Slots simultaneous holders, queuing excess
// callers up to QueueDepth and rejecting beyond that with ThrottledError.
type Throttle struct {
	slots    chan struct{}
	queue    chan struct{}
	observer Observer
}

// New builds a Throttle with the given slot count and waiting-queue depth.
// A nil observer is replaced with NopObserver.
func New(slots, queueDepth int, observer Observer) *Throttle {
	if slots <= 0 {
		slots = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Throttle{
		slots:    make(chan struct{}, slots),
		queue:    make(chan struct{}, queueDepth),
		observer: observer,
	}
}

// Release is returned by Acquire to give back the held slot.
type Release func()

// Acquire blocks until a slot is free, the context is canceled, or the
// waiting queue is full (in which case it returns ThrottledError
// immediately rather than blocking at all, per §4.8 "a rejection when the
// queue is also full surfaces as ThrottledError").
func (t *Throttle) Acquire(ctx context.Context) (Release, error) {
	select {
	case t.slots <- struct{}{}:
		t.observer.OnHandled()
		return t.release(), nil
	default:
	}

	select {
	case t.queue <- struct{}{}:
	default:
		t.observer.OnThrottle()
		return nil, gwerrors.ThrottledError.New(nil)
	}
	t.observer.OnQueueEnter()
	defer func() {
		<-t.queue
		t.observer.OnQueueLeave()
	}()

	select {
	case t.slots <- struct{}{}:
		t.observer.OnHandled()
		return t.release(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Throttle) release() Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-t.slots
		})
	}
}
