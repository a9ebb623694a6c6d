package shared

import "fmt"

// RecomputeLockKey builds the redis key guarding a per-account recompute run.
func RecomputeLockKey(companyID, accountID int64) string {
	return fmt.Sprintf("ledger:recompute:%d:%d:lock", companyID, accountID)
}

// BackfillLockKey builds the redis key guarding a per-company backfill run.
func BackfillLockKey(companyID int64) string {
	return fmt.Sprintf("ledger:backfill:%d:lock", companyID)
}
