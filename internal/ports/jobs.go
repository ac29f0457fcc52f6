package ports

import "context"

type CheckJob struct {
	CheckID string
}

// JobQueue hands check jobs to workers. Jobs is closed once Close has been
// called and no further jobs will be delivered.
type JobQueue interface {
	Enqueue(ctx context.Context, job CheckJob) error
	Jobs() <-chan CheckJob
	Close()
}
