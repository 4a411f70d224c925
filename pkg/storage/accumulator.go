package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"

	errs "enricher/pkg/errors"
)

// Accumulator persists a growing list of result records to one JSON array
// file. Every Append rewrites the whole file; the workload is hundreds to
// low thousands of records.
type Accumulator[R any] struct {
	path string
	mu   sync.Mutex
}

// NewAccumulator binds an accumulator to path. Nothing is read or created
// until the first call.
func NewAccumulator[R any](path string) *Accumulator[R] {
	return &Accumulator[R]{path: path}
}

// Path returns the output file location.
func (a *Accumulator[R]) Path() string {
	return a.path
}

// Load returns every persisted record. A missing file is an empty list; an
// unreadable one is a parsing error so existing output is never clobbered.
func (a *Accumulator[R]) Load() ([]R, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load()
}

func (a *Accumulator[R]) load() ([]R, error) {
	records := []R{}
	if err := ReadJSON(a.path, &records); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []R{}, nil
		}
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, fmt.Sprintf("output file %s is unreadable", a.path))
	}
	return records, nil
}

// Append loads the full list, appends records and writes the result back.
// It returns the new total.
func (a *Accumulator[R]) Append(records []R) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.load()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return len(existing), nil
	}

	all := append(existing, records...)
	if err := WriteJSON(a.path, all); err != nil {
		return 0, fmt.Errorf("failed to append results: %w", err)
	}
	return len(all), nil
}

// Save overwrites the output with exactly records.
func (a *Accumulator[R]) Save(records []R) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if records == nil {
		records = []R{}
	}
	if err := WriteJSON(a.path, records); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	return nil
}

// Count returns the number of persisted records.
func (a *Accumulator[R]) Count() (int, error) {
	records, err := a.Load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Remove deletes the output file if present.
func (a *Accumulator[R]) Remove() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", a.path, err)
	}
	return nil
}
