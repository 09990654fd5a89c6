// Package settle materializes settlements for exactly matched transactions.
package settle

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// Accounts names the ledger accounts a settlement posts against
type Accounts struct {
	Bank           string
	Payable        string
	Receivable     string
	PayrollPayable string
}

// Materializer turns settleable transactions into settlement records
type Materializer struct {
	settler      domain.SettlementCreator
	transactions domain.TransactionRepository
	statements   domain.StatementRepository
	parties      domain.PartyRepository
	documents    domain.DocumentRepository
	accounts     Accounts
	autoSubmit   bool
	log          zerolog.Logger
}

// NewMaterializer creates a materializer
func NewMaterializer(
	settler domain.SettlementCreator,
	transactions domain.TransactionRepository,
	statements domain.StatementRepository,
	parties domain.PartyRepository,
	documents domain.DocumentRepository,
	accounts Accounts,
	autoSubmit bool,
	log zerolog.Logger,
) *Materializer {
	return &Materializer{
		settler:      settler,
		transactions: transactions,
		statements:   statements,
		parties:      parties,
		documents:    documents,
		accounts:     accounts,
		autoSubmit:   autoSubmit,
		log:          log.With().Str("component", "settle").Logger(),
	}
}

// MaterializeBatch settles every eligible transaction of a statement. One
// failed settlement marks its transaction Error and the batch continues;
// it never aborts the siblings. When every transaction of the statement
// ends up Completed, the statement does too.
func (m *Materializer) MaterializeBatch(stmt *domain.Statement, txns []*domain.Transaction) error {
	for _, txn := range txns {
		if txn.Status != domain.TxPending || txn.SettlementID != "" || !txn.Settleable() {
			continue
		}

		if err := m.materialize(stmt, txn); err != nil {
			txn.Status = domain.TxError
			txn.ErrorReason = err.Error()
			m.log.Warn().
				Str("transaction", txn.ID).
				Err(err).
				Msg("settlement failed, transaction marked for manual handling")
		}

		if err := m.transactions.UpdateTransaction(txn); err != nil {
			return fmt.Errorf("persisting transaction %s: %w", txn.ID, err)
		}
	}

	return m.rollUpStatement(stmt)
}

// materialize creates one settlement and completes the transaction
func (m *Materializer) materialize(stmt *domain.Statement, txn *domain.Transaction) error {
	party, err := m.parties.GetParty(txn.MatchedPartyID)
	if err != nil {
		return fmt.Errorf("resolving matched party: %w", err)
	}

	controlAccount, err := m.controlAccount(party.Kind, txn.Side)
	if err != nil {
		return err
	}

	allocations := make([]domain.Allocation, 0, len(txn.MatchedDocIDs))
	for _, docID := range txn.MatchedDocIDs {
		doc, err := m.documents.GetDocument(docID)
		if err != nil {
			return fmt.Errorf("resolving matched document: %w", err)
		}
		allocations = append(allocations, domain.Allocation{
			DocumentID: doc.ID,
			Amount:     doc.Outstanding,
		})
	}

	settlementID, err := m.settler.CreateSettlement(domain.SettlementRequest{
		TransactionID:  txn.ID,
		Amount:         txn.Amount,
		Date:           txn.Date,
		Reference:      txn.UniqueRef,
		PartyID:        party.ID,
		PartyKind:      party.Kind,
		BankAccount:    m.accounts.Bank,
		ControlAccount: controlAccount,
		Allocations:    allocations,
		AutoSubmit:     m.autoSubmit,
	})
	if err != nil {
		return fmt.Errorf("creating settlement: %w", err)
	}

	txn.Status = domain.TxCompleted
	txn.SettlementID = settlementID
	return nil
}

// controlAccount selects the control account by party kind and direction
func (m *Materializer) controlAccount(kind domain.PartyKind, side domain.EntrySide) (string, error) {
	switch {
	case side == domain.Debit && kind == domain.PartyVendor:
		return m.accounts.Payable, nil
	case side == domain.Debit && kind == domain.PartyEmployee:
		return m.accounts.PayrollPayable, nil
	case side == domain.Credit && kind == domain.PartyCustomer:
		return m.accounts.Receivable, nil
	default:
		return "", fmt.Errorf("no control account for %s party on %s side", kind, side)
	}
}

// rollUpStatement completes the statement once every child is completed
func (m *Materializer) rollUpStatement(stmt *domain.Statement) error {
	if stmt.Status == domain.StatementCompleted {
		return nil
	}

	txns, err := m.transactions.FindByStatement(stmt.ID)
	if err != nil {
		return fmt.Errorf("loading statement transactions: %w", err)
	}
	for _, txn := range txns {
		if txn.Status != domain.TxCompleted {
			return nil
		}
	}

	stmt.Status = domain.StatementCompleted
	return m.statements.UpdateStatement(stmt)
}
