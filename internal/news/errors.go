package news

import (
	"fmt"

	"github.com/TobiSchelling/stocknews/internal/coverage"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
)

// ErrInvalidDate reports a malformed caller date or a start after the end.
var ErrInvalidDate = newsdate.ErrInvalidDate

// ProviderError wraps a search failure for one missing range. Nothing for
// that range was written.
type ProviderError struct {
	Symbol string
	Range  coverage.Range
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("searching news for %s (%s): %v", e.Symbol, e.Range, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError wraps a database failure. The failing transaction was
// rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func errStartAfterEnd(start, end string) error {
	return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidDate, start, end)
}
