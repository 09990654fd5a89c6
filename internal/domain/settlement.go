package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Allocation assigns part of a settlement to one open document
type Allocation struct {
	DocumentID string
	Amount     decimal.Decimal
}

// Settlement moves funds between the statement's bank account and a party's
// control account, closing the allocated documents.
type Settlement struct {
	ID            string
	TransactionID string

	Amount    decimal.Decimal
	Date      time.Time
	Reference string

	PartyID   string
	PartyKind PartyKind

	BankAccount    string
	ControlAccount string

	Allocations []Allocation
	Submitted   bool
}

// SettlementRequest is the input to the settlement collaborator
type SettlementRequest struct {
	TransactionID  string
	Amount         decimal.Decimal
	Date           time.Time
	Reference      string
	PartyID        string
	PartyKind      PartyKind
	BankAccount    string
	ControlAccount string
	Allocations    []Allocation
	AutoSubmit     bool
}

// SettlementCreator is the boundary to the bookkeeping side that records
// settlements. Implementations live outside the reconciliation core.
type SettlementCreator interface {
	CreateSettlement(req SettlementRequest) (string, error)
}
