package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

// HistoryRepository is the in-memory history store used by tests and dry
// runs. Nothing survives the process.
type HistoryRepository struct {
	mu        sync.RWMutex
	entries   map[string]contest.SubmissionResult
	snapshots map[string][]contest.RankedPlayer
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{
		entries:   make(map[string]contest.SubmissionResult),
		snapshots: make(map[string][]contest.RankedPlayer),
	}
}

func (r *HistoryRepository) HasSubmitted(ctx context.Context, date string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[date]
	return ok && entry.Submitted, nil
}

func (r *HistoryRepository) Record(ctx context.Context, result contest.SubmissionResult) error {
	if result.Date == "" {
		return fmt.Errorf("%w: result date is empty", usecase.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[result.Date]; ok && existing.Submitted {
		return fmt.Errorf("%w: %s", usecase.ErrDuplicateSubmission, result.Date)
	}
	r.entries[result.Date] = result
	return nil
}

func (r *HistoryRepository) Load(ctx context.Context) ([]contest.SubmissionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contest.SubmissionResult, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *HistoryRepository) SaveSnapshot(ctx context.Context, date string, listIndex int, ranked []contest.RankedPlayer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s/%d", date, listIndex)
	r.snapshots[key] = append([]contest.RankedPlayer(nil), ranked...)
	return nil
}

// Snapshot returns the stored ranked list for a date and list index, if any.
func (r *HistoryRepository) Snapshot(date string, listIndex int) ([]contest.RankedPlayer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ranked, ok := r.snapshots[fmt.Sprintf("%s/%d", date, listIndex)]
	return ranked, ok
}
