package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerRecompute replays running balances for one account or for
	// every account of a company.
	TaskLedgerRecompute = "ledger:recompute"
	// TaskLedgerBackfill synthesises ledger rows for posted journal entries
	// that lost theirs.
	TaskLedgerBackfill = "ledger:backfill"
	// TaskGLIntegrity scans posted activity for debit/credit drift.
	TaskGLIntegrity = "gl:integrity"
)

// LedgerRecomputePayload scopes a recompute run. AccountID zero means every
// account the company has ledger rows for.
type LedgerRecomputePayload struct {
	CompanyID int64 `json:"company_id"`
	AccountID int64 `json:"account_id,omitempty"`
}

// LedgerBackfillPayload scopes a backfill run to one company.
type LedgerBackfillPayload struct {
	CompanyID int64 `json:"company_id"`
}

// GLIntegrityPayload scopes an integrity scan. CompanyID zero means every
// company with posted entries.
type GLIntegrityPayload struct {
	CompanyID int64 `json:"company_id,omitempty"`
}

// NewLedgerRecomputeTask constructs an Asynq task.
func NewLedgerRecomputeTask(payload LedgerRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerRecompute, data), nil
}

// NewLedgerBackfillTask constructs an Asynq task.
func NewLedgerBackfillTask(payload LedgerBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerBackfill, data), nil
}

// NewGLIntegrityTask constructs an Asynq task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data), nil
}
