// Package dedup decides whether a downloaded payload or one of its
// transactions has already been imported.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// Deduper checks statements and transactions against what is already stored
type Deduper struct {
	statements   domain.StatementRepository
	transactions domain.TransactionRepository
}

// NewDeduper creates a deduper over the given repositories
func NewDeduper(statements domain.StatementRepository, transactions domain.TransactionRepository) *Deduper {
	return &Deduper{statements: statements, transactions: transactions}
}

// ContentHash computes the content address of a raw payload
func ContentHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// StatementSeen applies the two-tier statement check: a bank-assigned
// statement id is unique across all connections; without one, the content
// hash is unique per connection.
func (d *Deduper) StatementSeen(connectionID, bankStmtID, contentHash string) (bool, error) {
	if bankStmtID != "" && bankStmtID != "n/a" {
		existing, err := d.statements.FindByBankStatementID(bankStmtID)
		if err != nil {
			return false, fmt.Errorf("looking up bank statement id: %w", err)
		}
		if existing != nil {
			return true, nil
		}
		return false, nil
	}

	existing, err := d.statements.FindByContentHash(connectionID, contentHash)
	if err != nil {
		return false, fmt.Errorf("looking up content hash: %w", err)
	}
	return existing != nil, nil
}

// TransactionSeen reports whether a transaction with the same (unique
// reference, date) already exists under the connection in a different
// statement. This catches banks redelivering the same economic event split
// across differently-chunked payloads.
func (d *Deduper) TransactionSeen(connectionID, uniqueRef string, date time.Time, statementID string) (bool, error) {
	existing, err := d.transactions.FindByUniqueRef(connectionID, uniqueRef, date)
	if err != nil {
		return false, fmt.Errorf("looking up transaction reference: %w", err)
	}
	if existing == nil {
		return false, nil
	}
	return existing.StatementID != statementID, nil
}
