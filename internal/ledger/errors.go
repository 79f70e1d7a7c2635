package ledger

import "fmt"

// DataSourceError wraps a failed paginated fetch. It is fatal to the
// current run.
type DataSourceError struct {
	Collection string
	Err        error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("querying %s: %v", e.Collection, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// ValidationError marks a row that is missing a required field. The row
// is skipped and the run continues.
type ValidationError struct {
	Collection string
	Field      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s row missing required field %q", e.Collection, e.Field)
}

// IdempotencyWriteError wraps a failed idempotency-key write. The
// transaction stays eligible for reprocessing on a future run.
type IdempotencyWriteError struct {
	PageID string
	Err    error
}

func (e *IdempotencyWriteError) Error() string {
	return fmt.Sprintf("storing idempotency key on %s: %v", e.PageID, e.Err)
}

func (e *IdempotencyWriteError) Unwrap() error { return e.Err }

// BudgetUpdateError wraps any failure in the budget step. The
// orchestrator logs it without aborting the rest of the run.
type BudgetUpdateError struct {
	Err error
}

func (e *BudgetUpdateError) Error() string {
	return fmt.Sprintf("updating budget: %v", e.Err)
}

func (e *BudgetUpdateError) Unwrap() error { return e.Err }
