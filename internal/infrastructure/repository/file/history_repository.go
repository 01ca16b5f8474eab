package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	sonic "github.com/bytedance/sonic"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

const (
	historyFileName = "history.json"
	snapshotDirName = "snapshots"
)

// HistoryRepository keeps run history in a single JSON file under the data
// directory, plus one snapshot file per date and list. Writes go through a
// temp file and rename so a crash mid-write never corrupts the history.
type HistoryRepository struct {
	mu      sync.Mutex
	dataDir string
}

func NewHistoryRepository(dataDir string) (*HistoryRepository, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("%w: data directory is empty", usecase.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, snapshotDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &HistoryRepository{dataDir: dataDir}, nil
}

func (r *HistoryRepository) HasSubmitted(ctx context.Context, date string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return false, err
	}
	entry, ok := entries[date]
	return ok && entry.Submitted, nil
}

func (r *HistoryRepository) Record(ctx context.Context, result contest.SubmissionResult) error {
	if result.Date == "" {
		return fmt.Errorf("%w: result date is empty", usecase.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return err
	}
	if existing, ok := entries[result.Date]; ok && existing.Submitted {
		return fmt.Errorf("%w: %s", usecase.ErrDuplicateSubmission, result.Date)
	}
	entries[result.Date] = result
	return r.store(entries)
}

func (r *HistoryRepository) Load(ctx context.Context) ([]contest.SubmissionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, err
	}

	out := make([]contest.SubmissionResult, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *HistoryRepository) SaveSnapshot(ctx context.Context, date string, listIndex int, ranked []contest.RankedPlayer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	encoded, err := sonic.MarshalIndent(ranked, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(r.dataDir, snapshotDirName, fmt.Sprintf("%s-list%d.json", date, listIndex))
	return atomicWrite(path, encoded)
}

func (r *HistoryRepository) historyPath() string {
	return filepath.Join(r.dataDir, historyFileName)
}

func (r *HistoryRepository) load() (map[string]contest.SubmissionResult, error) {
	raw, err := os.ReadFile(r.historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]contest.SubmissionResult), nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var entries map[string]contest.SubmissionResult
	if err := sonic.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode history file: %w", err)
	}
	if entries == nil {
		entries = make(map[string]contest.SubmissionResult)
	}
	return entries, nil
}

func (r *HistoryRepository) store(entries map[string]contest.SubmissionResult) error {
	encoded, err := sonic.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return atomicWrite(r.historyPath(), encoded)
}

// atomicWrite lands the payload via a same-directory temp file and rename.
func atomicWrite(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
