// Package worker provides the background tasks of the serve command:
// the session journal writer and the periodic janitor.
package worker

import "context"

// Worker is a long-running background task.
type Worker interface {
	// Run blocks until ctx is cancelled or an unrecoverable error occurs.
	Run(ctx context.Context) error
}
