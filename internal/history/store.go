// Package history persists per-batch processing outcomes so past runs can
// be inspected after the fact.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// FileOutcome is the terminal result recorded for one file of a batch.
type FileOutcome struct {
	FileName string `msgpack:"file_name"`
	State    string `msgpack:"state"`
	Message  string `msgpack:"message"`
}

// BatchReport summarizes one processed selection batch.
type BatchReport struct {
	ID         string        `msgpack:"id"`
	StartedAt  time.Time     `msgpack:"started_at"`
	FinishedAt time.Time     `msgpack:"finished_at"`
	Files      []FileOutcome `msgpack:"files"`
}

// Succeeded counts files that completed successfully.
func (r BatchReport) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.State == "completed_success" {
			n++
		}
	}
	return n
}

// Store reads and writes batch reports, one msgpack file per batch.
type Store struct {
	dir string
}

// NewStore creates the report directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// NewReport starts a report for a batch beginning now.
func NewReport() BatchReport {
	return BatchReport{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
}

// Append finalizes and persists a report.
func (s *Store) Append(r BatchReport) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	data, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode batch report: %w", err)
	}
	name := fmt.Sprintf("%d-%s.batch", r.StartedAt.UnixMilli(), r.ID)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write batch report: %w", err)
	}
	return nil
}

// List returns all reports, most recent first. Unreadable files are skipped.
func (s *Store) List() ([]BatchReport, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read history directory: %w", err)
	}
	var reports []BatchReport
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".batch") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var r BatchReport
		if err := msgpack.Unmarshal(data, &r); err != nil {
			fmt.Printf("[History] Skipping unreadable report %s: %v\n", e.Name(), err)
			continue
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	return reports, nil
}

// Latest returns the most recent report, if any exist.
func (s *Store) Latest() (*BatchReport, bool, error) {
	reports, err := s.List()
	if err != nil || len(reports) == 0 {
		return nil, false, err
	}
	return &reports[0], true, nil
}
