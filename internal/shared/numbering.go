package shared

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Document types with server-assigned numbers.
const (
	DocTypeJournal = "JE"
	DocTypeInvoice = "INV"
	DocTypeBill    = "BILL"
	DocTypePayment = "PAY"
)

// NextDocumentNumber atomically increments the per-company counter for the
// document type and returns the formatted number, e.g. "JE-000042". It must
// run inside the same transaction as the document insert so concurrent
// creations cannot produce gaps or collisions.
func NextDocumentNumber(ctx context.Context, tx pgx.Tx, companyID int64, docType string) (string, error) {
	var counter int64
	err := tx.QueryRow(ctx, `INSERT INTO document_counters (company_id, doc_type, counter)
VALUES ($1, $2, 1)
ON CONFLICT (company_id, doc_type) DO UPDATE SET counter = document_counters.counter + 1
RETURNING counter`, companyID, docType).Scan(&counter)
	if err != nil {
		return "", fmt.Errorf("shared: next document number: %w", err)
	}
	return FormatDocumentNumber(docType, counter), nil
}

// FormatDocumentNumber renders a counter value in the canonical document format.
func FormatDocumentNumber(docType string, counter int64) string {
	return fmt.Sprintf("%s-%06d", docType, counter)
}
