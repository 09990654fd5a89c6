package domain

import "github.com/shopspring/decimal"

// PartyKind classifies a counterparty in the accounting platform
type PartyKind string

// Party kinds
const (
	PartyCustomer PartyKind = "CUSTOMER"
	PartyVendor   PartyKind = "VENDOR"
	PartyEmployee PartyKind = "EMPLOYEE"
)

// Party is a known counterparty: a customer we invoice, a vendor we pay,
// or an employee on payroll.
type Party struct {
	ID   string
	Name string
	Kind PartyKind
	IBAN string
}

// DocumentKind classifies an open document
type DocumentKind string

const (
	DocPayable    DocumentKind = "PAYABLE"
	DocReceivable DocumentKind = "RECEIVABLE"
)

// Document is an open payable or receivable awaiting settlement
type Document struct {
	ID      string
	PartyID string
	Kind    DocumentKind

	// Number is the internal document number, e.g. an invoice number.
	Number string

	// ExternalRef is the bill reference assigned by the other side.
	ExternalRef string

	// StructuredRef is a structured payment reference (QRR/SCOR style).
	StructuredRef string

	Outstanding decimal.Decimal
	Currency    string
}

// PaymentRunRow links one executed payment to its party and documents
type PaymentRunRow struct {
	PartyID     string
	DocumentIDs []string
}

// PaymentRun is a batch of payments previously submitted to the bank.
// Transactions carrying an instruction id of the form "<run-id>-<row>" can be
// resolved against it directly.
type PaymentRun struct {
	ID   string
	Rows []PaymentRunRow
}
