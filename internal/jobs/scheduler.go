// Package jobs runs quiz pipelines in the background, either in-process or from a Redis queue.
package jobs

import (
	"context"

	"github.com/google/uuid"
)

// Handler runs the pipeline of one quiz.
type Handler func(ctx context.Context, quizID uuid.UUID) error

// Scheduler accepts quiz ids for background processing. Schedule never waits for the job.
type Scheduler interface {
	Schedule(ctx context.Context, quizID uuid.UUID) error
}
