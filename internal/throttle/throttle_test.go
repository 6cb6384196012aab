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

package throttle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"objectgw/internal/gwerrors"
)

type countingObserver struct {
	queueEnter, queueLeave, throttled, handled atomic.Int64
}

func (o *countingObserver) OnQueueEnter() { o.queueEnter.Add(1) }
func (o *countingObserver) OnQueueLeave() { o.queueLeave.Add(1) }
func (o *countingObserver) OnThrottle()   { o.throttled.Add(1) }
func (o *countingObserver) OnHandled()    { o.handled.Add(1) }

func TestAcquireGrantsUpToSlotCount(t *testing.T) {
	obs := &countingObserver{}
	th := New(2, 0, obs)

	r1, err := th.Acquire(context.Background())
	require.NoError(t, err)
	r2, err := th.Acquire(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, obs.handled.Load())

	r1()
	r2()
}

func TestAcquireRejectsWhenQueueAlsoFull(t *testing.T) {
	obs := &countingObserver{}
	th := New(1, 0, obs)

	release, err := th.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = th.Acquire(context.Background())
	require.Error(t, err)
	ge, ok := gwerrors.As(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.ThrottledError.Code, ge.Code)
	require.EqualValues(t, 1, obs.throttled.Load())
}

func TestAcquireWaitsInQueueThenGetsSlot(t *testing.T) {
	obs := &countingObserver{}
	th := New(1, 1, obs)

	release, err := th.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		r, err := th.Acquire(context.Background())
		require.NoError(t, err)
		r()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // let the second Acquire enter the queue
	require.EqualValues(t, 1, obs.queueEnter.Load())
	release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued acquirer never got a slot")
	}
	require.EqualValues(t, 1, obs.queueLeave.Load())
}

func TestAcquireRespectsContextCancellationWhileQueued(t *testing.T) {
	th := New(1, 1, nil)
	release, err := th.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := th.Acquire(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire never returned after cancellation")
	}
}
