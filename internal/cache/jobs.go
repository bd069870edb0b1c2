package cache

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceover/internal/models"
)

// JobStore keeps asynchronous alignment job state in Redis. Entries expire
// after the configured TTL whether or not anyone collected them.
type JobStore struct {
	cache *Cache
	ttl   time.Duration
}

func NewJobStore(c *Cache, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JobStore{cache: c, ttl: ttl}
}

func jobKey(id uuid.UUID) string { return "align:job:" + id.String() }

func (s *JobStore) Put(ctx context.Context, job models.AlignJob) error {
	return s.cache.Set(ctx, jobKey(job.ID), job, s.ttl)
}

// Get returns ErrMiss for unknown or expired jobs.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*models.AlignJob, error) {
	var job models.AlignJob
	if err := s.cache.Get(ctx, jobKey(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}
