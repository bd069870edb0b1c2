package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceover/internal/models"
	"github.com/nikhilbhutani/voiceover/internal/queue"
	"github.com/nikhilbhutani/voiceover/internal/queue/workers"
	"github.com/nikhilbhutani/voiceover/internal/webhook"
)

var errNotFound = errors.New("not found")

type memJobs struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]models.AlignJob
	history []string
	// failOn makes Put reject jobs in this status.
	failOn string
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[uuid.UUID]models.AlignJob)}
}

func (m *memJobs) Put(_ context.Context, job models.AlignJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && job.Status == m.failOn {
		return errors.New("redis down")
	}
	m.jobs[job.ID] = job
	m.history = append(m.history, job.Status)
	return nil
}

func (m *memJobs) Get(_ context.Context, id uuid.UUID) (*models.AlignJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, errNotFound
	}
	return &job, nil
}

func task(t *testing.T, payload queue.AlignBatchPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeAlignBatch, data)
}

func TestAlignWorkerStoresResults(t *testing.T) {
	t.Parallel()

	jobs := newMemJobs()
	w := workers.NewAlignWorker(jobs, nil, nil, 2)

	id := uuid.New()
	require.NoError(t, jobs.Put(context.Background(), models.AlignJob{ID: id, Status: models.JobStatusPending}))

	err := w.ProcessTask(context.Background(), task(t, queue.AlignBatchPayload{
		JobID: id,
		Examples: []models.AlignExample{
			{Scores: [][]float64{{1, 2}, {3, 4}}},
			{Scores: [][]float64{{1, 2}, {3}}},
		},
	}))
	require.NoError(t, err)

	job, err := jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, job.Status)
	assert.Equal(t, 2, job.Examples)
	assert.Equal(t, 1, job.Failed)
	require.Len(t, job.Results, 2)
	assert.Equal(t, []int{1, 1}, job.Results[0].Durations)
	assert.NotEmpty(t, job.Results[1].Error)
	assert.NotNil(t, job.CompletedAt)

	assert.Equal(t, []string{models.JobStatusPending, models.JobStatusRunning, models.JobStatusDone}, jobs.history)
}

func TestAlignWorkerRejectsBadPayload(t *testing.T) {
	t.Parallel()

	w := workers.NewAlignWorker(newMemJobs(), nil, nil, 1)
	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeAlignBatch, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAlignWorkerCancelledWithRetriesLeft(t *testing.T) {
	t.Parallel()

	jobs := newMemJobs()
	w := workers.NewAlignWorker(jobs, nil, nil, 1)
	w.SetAttempt(0, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := uuid.New()
	err := w.ProcessTask(ctx, task(t, queue.AlignBatchPayload{
		JobID:    id,
		Examples: []models.AlignExample{{Scores: [][]float64{{1}}}},
	}))
	assert.ErrorIs(t, err, context.Canceled)

	job, err := jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, job.Status)
}

type recordingNotifier struct {
	targets []string
	events  []string
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, target, event string, _ interface{}) error {
	n.targets = append(n.targets, target)
	n.events = append(n.events, event)
	return n.err
}

func TestAlignWorkerCallsBack(t *testing.T) {
	t.Parallel()

	for _, notifyErr := range []error{nil, errors.New("receiver down")} {
		jobs := newMemJobs()
		n := &recordingNotifier{err: notifyErr}
		w := workers.NewAlignWorker(jobs, n, nil, 1)

		err := w.ProcessTask(context.Background(), task(t, queue.AlignBatchPayload{
			JobID:       uuid.New(),
			Examples:    []models.AlignExample{{Scores: [][]float64{{1}}}},
			CallbackURL: "https://hooks.example.com/done",
		}))
		require.NoError(t, err)
		assert.Equal(t, []string{"https://hooks.example.com/done"}, n.targets)
		assert.Equal(t, []string{webhook.EventAlignJobCompleted}, n.events)
	}
}

func TestAlignWorkerCancelledOnLastAttempt(t *testing.T) {
	t.Parallel()

	jobs := newMemJobs()
	n := &recordingNotifier{}
	w := workers.NewAlignWorker(jobs, n, nil, 1)
	w.SetAttempt(3, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := uuid.New()
	err := w.ProcessTask(ctx, task(t, queue.AlignBatchPayload{
		JobID:       id,
		Examples:    []models.AlignExample{{Scores: [][]float64{{1}}}},
		CallbackURL: "https://hooks.example.com/done",
	}))
	assert.ErrorIs(t, err, context.Canceled)

	job, err := jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, context.Canceled.Error())
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, []string{models.JobStatusRunning, models.JobStatusFailed}, jobs.history)
	assert.Equal(t, []string{webhook.EventAlignJobFailed}, n.events)
}

func TestAlignWorkerStoreFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		retry      int
		wantStatus string
	}{
		{name: "retries left", retry: 0, wantStatus: models.JobStatusRunning},
		{name: "last attempt", retry: 2, wantStatus: models.JobStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			jobs := newMemJobs()
			jobs.failOn = models.JobStatusDone
			w := workers.NewAlignWorker(jobs, nil, nil, 1)
			w.SetAttempt(tt.retry, 2)

			id := uuid.New()
			err := w.ProcessTask(context.Background(), task(t, queue.AlignBatchPayload{
				JobID:    id,
				Examples: []models.AlignExample{{Scores: [][]float64{{1}}}},
			}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "store job results")

			job, err := jobs.Get(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, job.Status)
			if tt.wantStatus == models.JobStatusFailed {
				assert.Contains(t, job.Error, "redis down")
				assert.Empty(t, job.Results)
			}
		})
	}
}
