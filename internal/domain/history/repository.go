package history

import (
	"context"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
)

// Repository persists daily run outcomes keyed by contest date. Writes are
// all-or-nothing per date: an interrupted run must never leave a partial
// entry behind.
type Repository interface {
	// HasSubmitted reports whether the date already has a Submitted=true entry.
	HasSubmitted(ctx context.Context, date string) (bool, error)

	// Record stores the day's outcome. Recording over an existing
	// Submitted=true entry is a no-op that fails with ErrDuplicateSubmission;
	// a failed attempt (Submitted=false) may be overwritten by a later retry
	// for the same date.
	Record(ctx context.Context, result contest.SubmissionResult) error

	// Load returns all recorded outcomes ordered by date ascending.
	Load(ctx context.Context) ([]contest.SubmissionResult, error)

	// SaveSnapshot stores the full ranked list behind a pick so past runs can
	// be inspected after the fact.
	SaveSnapshot(ctx context.Context, date string, listIndex int, ranked []contest.RankedPlayer) error
}
