package domain

import "time"

// ConnectionRepository defines the interface for accessing connections
type ConnectionRepository interface {
	// GetConnection returns the connection with the given id
	GetConnection(id string) (*Connection, error)

	// UpdateConnection persists a mutated connection
	UpdateConnection(conn *Connection) error
}

// StatementRepository defines the interface for accessing statements
type StatementRepository interface {
	// CreateStatement persists a new statement
	CreateStatement(stmt *Statement) error

	// UpdateStatement persists a mutated statement
	UpdateStatement(stmt *Statement) error

	// GetStatement returns the statement with the given id
	GetStatement(id string) (*Statement, error)

	// FindByBankStatementID returns the statement carrying the given
	// bank-assigned id, for any connection, or nil when none exists
	FindByBankStatementID(bankStmtID string) (*Statement, error)

	// FindByContentHash returns the statement with the given content hash
	// under the given connection, or nil when none exists
	FindByContentHash(connectionID, hash string) (*Statement, error)
}

// TransactionRepository defines the interface for accessing transactions
type TransactionRepository interface {
	// CreateTransaction persists a new transaction
	CreateTransaction(txn *Transaction) error

	// UpdateTransaction persists a mutated transaction
	UpdateTransaction(txn *Transaction) error

	// FindByUniqueRef returns the transaction with the given (unique
	// reference, date) under the given connection, or nil when none exists
	FindByUniqueRef(connectionID, uniqueRef string, date time.Time) (*Transaction, error)

	// FindByStatement returns all transactions belonging to a statement
	FindByStatement(statementID string) ([]*Transaction, error)
}

// PartyRepository defines the interface for accessing known counterparties
type PartyRepository interface {
	// GetParty returns the party with the given id
	GetParty(id string) (*Party, error)

	// FindByKind returns all parties of the given kind
	FindByKind(kind PartyKind) ([]*Party, error)
}

// DocumentRepository defines the interface for accessing open documents
type DocumentRepository interface {
	// FindOpen returns open documents of the given kind, optionally
	// restricted to one party (empty partyID means all parties)
	FindOpen(kind DocumentKind, partyID string) ([]*Document, error)

	// GetDocument returns the document with the given id
	GetDocument(id string) (*Document, error)
}

// PaymentRunRepository defines the interface for accessing payment runs
type PaymentRunRepository interface {
	// GetPaymentRun returns the run with the given id, or nil when unknown
	GetPaymentRun(id string) (*PaymentRun, error)
}

// SettlementRepository defines the interface for accessing settlements
type SettlementRepository interface {
	// GetSettlement returns the settlement with the given id
	GetSettlement(id string) (*Settlement, error)
}
