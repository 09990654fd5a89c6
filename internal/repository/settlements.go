package repository

import (
	"github.com/google/uuid"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// SettlementRecorder implements domain.SettlementCreator over the memory
// store. The production collaborator lives in the accounting platform; this
// one backs local runs and tests.
type SettlementRecorder struct {
	store *MemoryStore
}

// NewSettlementRecorder creates a recorder writing into the given store
func NewSettlementRecorder(store *MemoryStore) *SettlementRecorder {
	return &SettlementRecorder{store: store}
}

// CreateSettlement implements domain.SettlementCreator
func (r *SettlementRecorder) CreateSettlement(req domain.SettlementRequest) (string, error) {
	settlement := &domain.Settlement{
		ID:             uuid.NewString(),
		TransactionID:  req.TransactionID,
		Amount:         req.Amount,
		Date:           req.Date,
		Reference:      req.Reference,
		PartyID:        req.PartyID,
		PartyKind:      req.PartyKind,
		BankAccount:    req.BankAccount,
		ControlAccount: req.ControlAccount,
		Allocations:    req.Allocations,
		Submitted:      req.AutoSubmit,
	}
	r.store.PutSettlement(settlement)
	return settlement.ID, nil
}
