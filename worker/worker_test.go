package worker

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/scheduler/errs"
	"github.com/go-foundations/scheduler/job"
	"github.com/go-foundations/scheduler/queue"
)

type WorkerTestSuite struct {
	suite.Suite
}

func TestWorkerTestSuite(t *testing.T) {
	suite.Run(t, new(WorkerTestSuite))
}

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func (ts *WorkerTestSuite) TestNewStartsCreated() {
	w := New(1, queue.NewMutexQueue(), nil, Hooks{})
	ts.Equal(Created, w.State())
	ts.Equal(1, w.ID())
}

func (ts *WorkerTestSuite) TestStartStopLifecycle() {
	q := queue.NewMutexQueue()
	w := New(1, q, nil, Hooks{})

	ts.NoError(w.Start())
	ts.True(waitUntil(func() bool { return w.State() == Waiting }))

	ts.NoError(w.Stop(false))
	ts.Equal(Stopped, w.State())
}

func (ts *WorkerTestSuite) TestStartTwiceFails() {
	q := queue.NewMutexQueue()
	w := New(1, q, nil, Hooks{})

	ts.NoError(w.Start())
	err := w.Start()
	ts.Error(err)
	ts.Equal(errs.ThreadAlreadyRunning, errs.CodeOf(err))

	ts.NoError(w.Stop(false))
}

func (ts *WorkerTestSuite) TestStopIsIdempotent() {
	q := queue.NewMutexQueue()
	w := New(1, q, nil, Hooks{})

	ts.NoError(w.Start())
	ts.NoError(w.Stop(false))
	ts.NoError(w.Stop(false))
}

func (ts *WorkerTestSuite) TestStopFromOwnGoroutineFails() {
	q := queue.NewMutexQueue()
	var w *Worker
	var errCh = make(chan error, 1)

	ran := make(chan struct{})
	w = New(1, q, nil, Hooks{})
	_ = q.Enqueue(job.New("self-stop", "", func() error {
		errCh <- w.Stop(false)
		close(ran)
		return nil
	}))

	ts.NoError(w.Start())
	<-ran
	err := <-errCh
	ts.Error(err)
	ts.Equal(errs.InvalidArgument, errs.CodeOf(err))

	ts.NoError(w.Stop(false))
}

func (ts *WorkerTestSuite) TestJobDequeuedAndCompletedHooksFireInOrder() {
	q := queue.NewMutexQueue()

	var dequeuedID, completedID atomic.Value
	var completedCalled atomic.Bool
	var dequeueBeforeComplete atomic.Bool

	hooks := Hooks{
		JobDequeued: func(j *job.Job) {
			dequeuedID.Store(j.ID)
			if !completedCalled.Load() {
				dequeueBeforeComplete.Store(true)
			}
		},
		JobCompleted: func(j *job.Job, waitTime, execTime time.Duration, err error) {
			completedCalled.Store(true)
			completedID.Store(j.ID)
		},
	}

	w := New(1, q, nil, hooks)
	_ = q.Enqueue(job.New("job-1", "", func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}))

	ts.NoError(w.Start())
	ts.True(waitUntil(func() bool { return completedCalled.Load() }))
	ts.NoError(w.Stop(false))

	ts.Equal("job-1", dequeuedID.Load())
	ts.Equal("job-1", completedID.Load())
	ts.True(dequeueBeforeComplete.Load())
}

func (ts *WorkerTestSuite) TestJobCompletedReceivesError() {
	q := queue.NewMutexQueue()

	var gotErr atomic.Value
	hooks := Hooks{
		JobCompleted: func(j *job.Job, waitTime, execTime time.Duration, err error) {
			if err != nil {
				gotErr.Store(err.Error())
			} else {
				gotErr.Store("")
			}
		},
	}

	w := New(1, q, nil, hooks)
	_ = q.Enqueue(job.New("job-err", "", func() error {
		return errors.New("boom")
	}))

	ts.NoError(w.Start())
	ts.True(waitUntil(func() bool {
		v, _ := gotErr.Load().(string)
		return v == "boom"
	}))
	ts.NoError(w.Stop(false))
}

func (ts *WorkerTestSuite) TestCancelledJobSkipsRun() {
	q := queue.NewMutexQueue()

	var ran atomic.Bool
	j := job.New("cancelled", "", func() error {
		ran.Store(true)
		return nil
	})
	j.Token.Cancel()
	_ = q.Enqueue(j)

	w := New(1, q, nil, Hooks{})
	ts.NoError(w.Start())
	time.Sleep(20 * time.Millisecond)
	ts.NoError(w.Stop(false))

	ts.False(ran.Load())
}

func (ts *WorkerTestSuite) TestImmediateStopCancelsCurrentJob() {
	q := queue.NewMutexQueue()

	started := make(chan struct{})
	var observedCancel atomic.Bool

	j := job.New("long-job", "", func() error {
		close(started)
		for i := 0; i < 200; i++ {
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	w := New(1, q, nil, Hooks{})
	_ = q.Enqueue(j)
	ts.NoError(w.Start())

	<-started
	go func() {
		for i := 0; i < 200; i++ {
			if j.Token.IsCancelled() {
				observedCancel.Store(true)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	ts.NoError(w.Stop(true))
	ts.True(j.Token.IsCancelled())
}

func (ts *WorkerTestSuite) TestMaxConsecutiveFailuresAborts() {
	q := queue.NewMutexQueue()
	w := New(1, q, nil, Hooks{})
	w.SetMaxConsecutiveFailures(2)

	interval := 2 * time.Millisecond
	w.SetWakeInterval(&interval)

	var attempts atomic.Int32
	for i := 0; i < 5; i++ {
		_ = q.Enqueue(job.New("fail", "", func() error {
			attempts.Add(1)
			return errors.New("always fails")
		}))
	}

	ts.NoError(w.Start())
	ts.True(waitUntil(func() bool { return w.State() == Stopped }))

	ts.GreaterOrEqual(attempts.Load(), int32(2))
}

func (ts *WorkerTestSuite) TestStatsAccumulate() {
	q := queue.NewMutexQueue()
	w := New(1, q, nil, Hooks{})

	for i := 0; i < 3; i++ {
		_ = q.Enqueue(job.New("job", "", func() error { return nil }))
	}

	ts.NoError(w.Start())
	ts.True(waitUntil(func() bool { return w.Stats().JobsProcessed == 3 }))
	ts.NoError(w.Stop(false))

	stats := w.Stats()
	ts.Equal(uint64(3), stats.JobsProcessed)
}
