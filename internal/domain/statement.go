package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntrySide represents the direction of a bank movement
type EntrySide string

// Entry sides
const (
	Debit  EntrySide = "DEBIT"  // money leaving the account
	Credit EntrySide = "CREDIT" // money entering the account
)

// StatementStatus is the processing status of a statement
type StatementStatus string

const (
	StatementPending   StatementStatus = "PENDING"
	StatementCompleted StatementStatus = "COMPLETED"
)

// Statement is one bank-delivered reporting unit for one account and day (or range)
type Statement struct {
	ID           string
	ConnectionID string
	AccountID    string // IBAN or bank-local identifier
	Currency     string

	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal

	// BankStatementID is the bank-assigned statement id; empty when the bank
	// does not assign one. When present it is unique across all statements.
	BankStatementID string

	// ContentHash is the hash of the raw payload. (ConnectionID, ContentHash)
	// is unique when BankStatementID is absent.
	ContentHash string

	// Date is derived from the payload and may differ from the requested
	// sync date when the bank returns the nearest available statement.
	Date time.Time

	Status StatementStatus
}

// TxStatus is the reconciliation status of a transaction
type TxStatus string

const (
	TxPending   TxStatus = "PENDING"
	TxCompleted TxStatus = "COMPLETED"
	TxError     TxStatus = "ERROR"
)

// Transaction is one bank-reported movement inside a statement
type Transaction struct {
	ID           string
	StatementID  string
	ConnectionID string

	Date     time.Time
	Amount   decimal.Decimal
	Currency string
	Side     EntrySide

	CounterpartyName    string
	CounterpartyAddress string
	CounterpartyIBAN    string

	// UniqueRef is extracted from the payload via a fallback chain and,
	// together with Date, is unique per connection.
	UniqueRef string

	// FreeText is the remittance information used for document matching.
	FreeText string

	// InstructionID is the payment-instruction identifier, when present.
	InstructionID string

	MatchedPartyID string
	MatchedDocIDs  []string
	MatchedAmount  decimal.Decimal

	Status      TxStatus
	ErrorReason string

	// SettlementID back-references the settlement created for this
	// transaction; set only once the transaction is Completed.
	SettlementID string
}

// Settleable reports whether the transaction may be materialized into a
// settlement: the matched amount covers the full amount exactly and a party
// was resolved. No thresholding.
func (t *Transaction) Settleable() bool {
	return t.MatchedPartyID != "" && t.MatchedAmount.Equal(t.Amount)
}
