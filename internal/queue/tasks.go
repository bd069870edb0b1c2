package queue

import (
	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceover/internal/models"
)

const (
	TypeAlignBatch = "align:batch"
)

type AlignBatchPayload struct {
	JobID       uuid.UUID             `json:"job_id"`
	Examples    []models.AlignExample `json:"examples"`
	CallbackURL string                `json:"callback_url,omitempty"`
}
