package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveecobot/ecosensor/internal/worker"
)

type fakeSensor struct {
	id        string
	err       error
	available bool
	delay     time.Duration
	calls     atomic.Int32
	inFlight  *atomic.Int32
	maxSeen   *atomic.Int32
}

func (s *fakeSensor) UniqueID() string { return s.id }

func (s *fakeSensor) Available() bool { return s.available }

func (s *fakeSensor) Update(ctx context.Context) error {
	s.calls.Add(1)
	if s.inFlight != nil {
		n := s.inFlight.Add(1)
		defer s.inFlight.Add(-1)
		for {
			seen := s.maxSeen.Load()
			if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
				break
			}
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func TestDefaultPollConfig(t *testing.T) {
	cfg := worker.DefaultPollConfig()

	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestPollJob_Run(t *testing.T) {
	ok := &fakeSensor{id: "s1_kyiv_pm10", available: true}
	stale := &fakeSensor{id: "s2_kyiv_pm10", available: false}
	broken := &fakeSensor{id: "s3_lviv_pm10", available: true, err: errors.New("update: saveecobot not ready")}

	job := worker.NewPollJob(worker.PollJobConfig{
		Config:  worker.PollConfig{Concurrency: 2, Timeout: time.Second},
		Logger:  zerolog.Nop(),
		Sensors: []worker.Updater{ok, stale, broken},
	})

	result := job.Run(context.Background())

	assert.Equal(t, 3, result.TotalSensors)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Unavailable)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "s3_lviv_pm10", result.Errors[0].Sensor)
	assert.Contains(t, result.Errors[0].Error, "not ready")

	for _, s := range []*fakeSensor{ok, stale, broken} {
		assert.Equal(t, int32(1), s.calls.Load(), s.id)
	}
}

func TestPollJob_Run_NoSensors(t *testing.T) {
	job := worker.NewPollJob(worker.PollJobConfig{Logger: zerolog.Nop()})

	result := job.Run(context.Background())

	assert.Equal(t, 0, result.TotalSensors)
	assert.Empty(t, result.Errors)
}

func TestPollJob_Run_BoundedConcurrency(t *testing.T) {
	var inFlight, maxSeen atomic.Int32
	sensors := make([]worker.Updater, 12)
	for i := range sensors {
		sensors[i] = &fakeSensor{
			id:        fmt.Sprintf("sensor_%d", i),
			available: true,
			delay:     10 * time.Millisecond,
			inFlight:  &inFlight,
			maxSeen:   &maxSeen,
		}
	}

	job := worker.NewPollJob(worker.PollJobConfig{
		Config:  worker.PollConfig{Concurrency: 3, Timeout: time.Second},
		Logger:  zerolog.Nop(),
		Sensors: sensors,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 12, result.Updated)
	assert.LessOrEqual(t, maxSeen.Load(), int32(3))
}

func TestPollJob_Run_Timeout(t *testing.T) {
	slow := &fakeSensor{id: "slow", available: true, delay: time.Second}

	job := worker.NewPollJob(worker.PollJobConfig{
		Config:  worker.PollConfig{Concurrency: 1, Timeout: 20 * time.Millisecond},
		Logger:  zerolog.Nop(),
		Sensors: []worker.Updater{slow},
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, context.DeadlineExceeded.Error(), result.Errors[0].Error)
}

func TestPollJob_Run_ContextCancellation(t *testing.T) {
	sensors := make([]worker.Updater, 50)
	for i := range sensors {
		sensors[i] = &fakeSensor{id: fmt.Sprintf("sensor_%d", i), available: true}
	}

	job := worker.NewPollJob(worker.PollJobConfig{
		Config:  worker.PollConfig{Concurrency: 1},
		Logger:  zerolog.Nop(),
		Sensors: sensors,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)

	assert.NotNil(t, result)
	assert.LessOrEqual(t, result.Updated, 50)
}

func TestPollJob_SetSensors(t *testing.T) {
	job := worker.NewPollJob(worker.PollJobConfig{Logger: zerolog.Nop()})
	job.SetSensors([]worker.Updater{&fakeSensor{id: "a", available: true}})

	result := job.Run(context.Background())
	assert.Equal(t, 1, result.Updated)
}

func TestPollJob_Metrics(t *testing.T) {
	job := worker.NewPollJob(worker.PollJobConfig{
		Logger: zerolog.Nop(),
		Sensors: []worker.Updater{
			&fakeSensor{id: "a", available: true},
			&fakeSensor{id: "b", available: false},
		},
	})

	_ = job.Run(context.Background())
	_ = job.Run(context.Background())

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(2), m.Updated)
	assert.Equal(t, int64(2), m.Unavailable)
	assert.Zero(t, m.Failed)
	assert.NotZero(t, m.LastRunAt)

	snapshot := job.MetricsSnapshot()
	assert.Contains(t, snapshot, "total_runs")
	assert.Contains(t, snapshot, "updated")
	assert.Contains(t, snapshot, "unavailable")
	assert.Contains(t, snapshot, "failed")
	assert.Contains(t, snapshot, "last_run_duration")
}

func TestPollJob_Start(t *testing.T) {
	s := &fakeSensor{id: "a", available: true}
	job := worker.NewPollJob(worker.PollJobConfig{
		Config:  worker.PollConfig{Interval: 10 * time.Millisecond},
		Logger:  zerolog.Nop(),
		Sensors: []worker.Updater{s},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return s.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
