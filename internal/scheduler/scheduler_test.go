package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string {
	return "counting"
}

func quietScheduler() *Scheduler {
	return New(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := quietScheduler()

	err := s.AddJob("every tuesday", &countingJob{})

	assert.Error(t, err)
	assert.Empty(t, s.cron.Entries())
}

func TestAddJob_SecondsField(t *testing.T) {
	s := quietScheduler()

	require.NoError(t, s.AddJob("0 30 3 * * *", &countingJob{}))
	require.Len(t, s.cron.Entries(), 1)

	next := s.cron.Entries()[0].Schedule.Next(time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local))
	assert.Equal(t, time.Date(2025, 3, 15, 3, 30, 0, 0, time.Local), next)
}

func TestRunNow(t *testing.T) {
	s := quietScheduler()
	job := &countingJob{err: errors.New("boom")}

	err := s.RunNow(job)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestStartRunsScheduledJobs(t *testing.T) {
	s := quietScheduler()
	ok := &countingJob{}
	failing := &countingJob{err: errors.New("boom")}
	require.NoError(t, s.AddJob("@every 1s", ok))
	require.NoError(t, s.AddJob("@every 1s", failing))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return ok.runs.Load() > 0 && failing.runs.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)
}
