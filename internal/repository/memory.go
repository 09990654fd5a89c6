// Package repository provides the storage implementations behind the domain
// repository interfaces: mutex-guarded in-memory stores, and CSV-backed
// loaders for data exported from the accounting platform.
package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// MemoryStore implements every domain repository in memory. One store
// backs one process; connections do not share mutable state beyond it.
type MemoryStore struct {
	mu sync.RWMutex

	connections  map[string]*domain.Connection
	statements   map[string]*domain.Statement
	transactions map[string]*domain.Transaction
	parties      map[string]*domain.Party
	documents    map[string]*domain.Document
	paymentRuns  map[string]*domain.PaymentRun
	settlements  map[string]*domain.Settlement
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		connections:  make(map[string]*domain.Connection),
		statements:   make(map[string]*domain.Statement),
		transactions: make(map[string]*domain.Transaction),
		parties:      make(map[string]*domain.Party),
		documents:    make(map[string]*domain.Document),
		paymentRuns:  make(map[string]*domain.PaymentRun),
		settlements:  make(map[string]*domain.Settlement),
	}
}

// AddConnection seeds a connection
func (s *MemoryStore) AddConnection(conn *domain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *conn
	s.connections[conn.ID] = &c
}

// GetConnection implements domain.ConnectionRepository
func (s *MemoryStore) GetConnection(id string) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.connections[id]
	if !ok {
		return nil, fmt.Errorf("connection %s not found", id)
	}
	c := *conn
	return &c, nil
}

// UpdateConnection implements domain.ConnectionRepository
func (s *MemoryStore) UpdateConnection(conn *domain.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[conn.ID]; !ok {
		return fmt.Errorf("connection %s not found", conn.ID)
	}
	c := *conn
	s.connections[conn.ID] = &c
	return nil
}

// CreateStatement implements domain.StatementRepository
func (s *MemoryStore) CreateStatement(stmt *domain.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statements[stmt.ID]; ok {
		return fmt.Errorf("statement %s already exists", stmt.ID)
	}
	c := *stmt
	s.statements[stmt.ID] = &c
	return nil
}

// UpdateStatement implements domain.StatementRepository
func (s *MemoryStore) UpdateStatement(stmt *domain.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statements[stmt.ID]; !ok {
		return fmt.Errorf("statement %s not found", stmt.ID)
	}
	c := *stmt
	s.statements[stmt.ID] = &c
	return nil
}

// GetStatement implements domain.StatementRepository
func (s *MemoryStore) GetStatement(id string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stmt, ok := s.statements[id]
	if !ok {
		return nil, fmt.Errorf("statement %s not found", id)
	}
	c := *stmt
	return &c, nil
}

// FindByBankStatementID implements domain.StatementRepository
func (s *MemoryStore) FindByBankStatementID(bankStmtID string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, stmt := range s.statements {
		if stmt.BankStatementID == bankStmtID {
			c := *stmt
			return &c, nil
		}
	}
	return nil, nil
}

// FindByContentHash implements domain.StatementRepository
func (s *MemoryStore) FindByContentHash(connectionID, hash string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, stmt := range s.statements {
		if stmt.ConnectionID == connectionID && stmt.ContentHash == hash {
			c := *stmt
			return &c, nil
		}
	}
	return nil, nil
}

// CreateTransaction implements domain.TransactionRepository
func (s *MemoryStore) CreateTransaction(txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[txn.ID]; ok {
		return fmt.Errorf("transaction %s already exists", txn.ID)
	}
	c := *txn
	s.transactions[txn.ID] = &c
	return nil
}

// UpdateTransaction implements domain.TransactionRepository
func (s *MemoryStore) UpdateTransaction(txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[txn.ID]; !ok {
		return fmt.Errorf("transaction %s not found", txn.ID)
	}
	c := *txn
	s.transactions[txn.ID] = &c
	return nil
}

// FindByUniqueRef implements domain.TransactionRepository
func (s *MemoryStore) FindByUniqueRef(connectionID, uniqueRef string, date time.Time) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := date.Truncate(24 * time.Hour)
	for _, txn := range s.transactions {
		if txn.ConnectionID == connectionID && txn.UniqueRef == uniqueRef && txn.Date.Truncate(24*time.Hour).Equal(day) {
			c := *txn
			return &c, nil
		}
	}
	return nil, nil
}

// FindByStatement implements domain.TransactionRepository
func (s *MemoryStore) FindByStatement(statementID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var txns []*domain.Transaction
	for _, txn := range s.transactions {
		if txn.StatementID == statementID {
			c := *txn
			txns = append(txns, &c)
		}
	}
	return txns, nil
}

// AddParty seeds a party
func (s *MemoryStore) AddParty(p *domain.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.parties[p.ID] = &c
}

// GetParty implements domain.PartyRepository
func (s *MemoryStore) GetParty(id string) (*domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parties[id]
	if !ok {
		return nil, fmt.Errorf("party %s not found", id)
	}
	c := *p
	return &c, nil
}

// FindByKind implements domain.PartyRepository
func (s *MemoryStore) FindByKind(kind domain.PartyKind) ([]*domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var parties []*domain.Party
	for _, p := range s.parties {
		if p.Kind == kind {
			c := *p
			parties = append(parties, &c)
		}
	}
	return parties, nil
}

// AddDocument seeds a document
func (s *MemoryStore) AddDocument(d *domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *d
	s.documents[d.ID] = &c
}

// FindOpen implements domain.DocumentRepository
func (s *MemoryStore) FindOpen(kind domain.DocumentKind, partyID string) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []*domain.Document
	for _, d := range s.documents {
		if d.Kind != kind || d.Outstanding.IsZero() {
			continue
		}
		if partyID != "" && d.PartyID != partyID {
			continue
		}
		c := *d
		docs = append(docs, &c)
	}
	return docs, nil
}

// GetDocument implements domain.DocumentRepository
func (s *MemoryStore) GetDocument(id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	c := *d
	return &c, nil
}

// AddPaymentRun seeds a payment run
func (s *MemoryStore) AddPaymentRun(run *domain.PaymentRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *run
	s.paymentRuns[run.ID] = &c
}

// GetPaymentRun implements domain.PaymentRunRepository
func (s *MemoryStore) GetPaymentRun(id string) (*domain.PaymentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.paymentRuns[id]
	if !ok {
		return nil, nil
	}
	c := *run
	return &c, nil
}

// PutSettlement stores a settlement record
func (s *MemoryStore) PutSettlement(st *domain.Settlement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *st
	s.settlements[st.ID] = &c
}

// GetSettlement implements domain.SettlementRepository
func (s *MemoryStore) GetSettlement(id string) (*domain.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settlements[id]
	if !ok {
		return nil, fmt.Errorf("settlement %s not found", id)
	}
	c := *st
	return &c, nil
}

// Counts returns the number of stored statements and transactions; sync
// idempotence tests assert on it.
func (s *MemoryStore) Counts() (statements, transactions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.statements), len(s.transactions)
}
