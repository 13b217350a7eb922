package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Updater is a sensor the poll job can refresh.
type Updater interface {
	UniqueID() string
	Update(ctx context.Context) error
	Available() bool
}

// PollJob updates registered sensors on every scan interval.
type PollJob struct {
	config PollConfig
	logger zerolog.Logger

	mu      sync.RWMutex
	sensors []Updater

	// Metrics
	metrics *PollMetrics
}

// PollMetrics tracks poll job statistics.
type PollMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns   int64
	Updated     int64
	Unavailable int64
	Failed      int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// PollJobConfig holds configuration for creating a PollJob.
type PollJobConfig struct {
	Config  PollConfig
	Logger  zerolog.Logger
	Sensors []Updater
}

// NewPollJob creates a new sensor poll job.
func NewPollJob(cfg PollJobConfig) *PollJob {
	return &PollJob{
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger,
		sensors: append([]Updater(nil), cfg.Sensors...),
		metrics: &PollMetrics{},
	}
}

// SetSensors replaces the set of polled sensors.
func (j *PollJob) SetSensors(sensors []Updater) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sensors = append([]Updater(nil), sensors...)
}

func (j *PollJob) snapshot() []Updater {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.sensors
}

// PollResult contains the result of one poll run.
type PollResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalSensors int
	Updated      int
	Unavailable  int
	Failed       int
	Errors       []PollError
}

// PollError represents a failed sensor update.
type PollError struct {
	Sensor string
	Error  string
}

type sensorResult struct {
	id        string
	err       error
	available bool
}

// Run updates every sensor once through a bounded worker pool.
// Sensors share the station cache, so at most one upstream fetch happens per run.
func (j *PollJob) Run(ctx context.Context) *PollResult {
	sensors := j.snapshot()
	startTime := time.Now()
	result := &PollResult{
		StartTime:    startTime,
		TotalSensors: len(sensors),
	}

	j.logger.Debug().
		Int("sensors", result.TotalSensors).
		Int("concurrency", j.config.Concurrency).
		Msg("starting sensor poll")

	work := make(chan Updater, len(sensors))
	results := make(chan sensorResult, len(sensors))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.pollWorker(ctx, work, results)
		}()
	}

	for _, s := range sensors {
		work <- s
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	for sr := range results {
		switch {
		case sr.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, PollError{Sensor: sr.id, Error: sr.err.Error()})
		case !sr.available:
			result.Unavailable++
		default:
			result.Updated++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn().Str("first_error", result.Errors[0].Error)
	}
	event.
		Dur("duration", result.Duration).
		Int("updated", result.Updated).
		Int("unavailable", result.Unavailable).
		Int("failed", result.Failed).
		Msg("sensor poll completed")

	return result
}

func (j *PollJob) pollWorker(ctx context.Context, work <-chan Updater, results chan<- sensorResult) {
	for s := range work {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.pollSensor(ctx, s)
		}
	}
}

func (j *PollJob) pollSensor(ctx context.Context, s Updater) sensorResult {
	sensorCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	err := s.Update(sensorCtx)
	return sensorResult{id: s.UniqueID(), err: err, available: s.Available()}
}

// Start runs the poll job on every interval until ctx is cancelled.
// The first run happens one interval after Start, since setup already refreshed.
func (j *PollJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.config.Interval).Msg("sensor poller started")

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("sensor poller stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *PollJob) updateMetrics(result *PollResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.Updated += int64(result.Updated)
	j.metrics.Unavailable += int64(result.Unavailable)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PollJob) GetMetrics() PollMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PollMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		Updated:         j.metrics.Updated,
		Unavailable:     j.metrics.Unavailable,
		Failed:          j.metrics.Failed,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PollJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"updated":           m.Updated,
		"unavailable":       m.Unavailable,
		"failed":            m.Failed,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
