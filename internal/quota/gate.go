package quota

import (
	"fmt"
)

// MaxBatchFiles is the maximum number of files accepted in a single batch.
// It is checked before any type or quota verification.
const MaxBatchFiles = 20

type (
	// A Gate admits or rejects a prospective batch of uploads against the
	// quota ceiling. It is advisory capacity control, not a reservation:
	// concurrent writers can race past it and the sweep corrects for it.
	Gate struct {
		counter *Counter
		limit   int64
	}

	// An Admission is the verdict of the gate for a batch.
	Admission struct {
		Allowed    bool
		UsedBytes  int64
		LimitBytes int64
	}

	// A File is the client-declared description of a prospective upload.
	File struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
		Type string `json:"type"`
	}
)

// NewGate returns a new Gate with the given exclusive byte ceiling.
func NewGate(counter *Counter, limit int64) *Gate {
	return &Gate{
		counter: counter,
		limit:   limit,
	}
}

// LimitBytes returns the quota ceiling.
func (g *Gate) LimitBytes() int64 {
	return g.limit
}

// Admit checks the whole batch against the ceiling. Reaching the limit
// rejects: the ceiling is exclusive.
func (g *Gate) Admit(batchBytes int64) (Admission, error) {
	used, err := g.counter.UsedBytes()
	if err != nil {
		return Admission{}, err
	}

	return Admission{
		Allowed:    used+batchBytes < g.limit,
		UsedBytes:  used,
		LimitBytes: g.limit,
	}, nil
}

// ValidateBatch checks the batch ceiling then each declared file type.
// It fails fast: the first offending file rejects the whole batch.
func ValidateBatch(files []File) error {
	if len(files) == 0 {
		return ErrEmptyBatch
	}
	if len(files) > MaxBatchFiles {
		return ErrTooManyFiles
	}

	for _, file := range files {
		if !Allowed(file.Name, file.Type) {
			return &TypeNotAllowedError{Name: file.Name, Type: file.Type}
		}
	}
	return nil
}

// Batch errors.
var (
	ErrEmptyBatch   = fmt.Errorf("no file provided")
	ErrTooManyFiles = fmt.Errorf("too many files, at most %d per batch", MaxBatchFiles)
)

// A TypeNotAllowedError names the file whose declared type failed all the
// allow-list checks.
type TypeNotAllowedError struct {
	Name string
	Type string
}

func (e *TypeNotAllowedError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %s", e.Type, e.Name)
}
