// Package recon matches pending bank transactions against open payables and
// receivables. Matching is bounded-confidence: heuristics may accumulate
// candidates, but a settlement requires an exact amount match.
package recon

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// Config holds the matching policies, passed in explicitly rather than read
// from process-wide state.
type Config struct {
	// NumericOnly enables digit-only reference comparison on the
	// receivable path
	NumericOnly bool

	// IgnoreDiacritics enables diacritic/special-character-insensitive
	// reference comparison on the receivable path
	IgnoreDiacritics bool

	// NameDistanceMax bounds fuzzy party-name resolution (0 disables)
	NameDistanceMax int
}

// Engine computes match outcomes for pending transactions
type Engine struct {
	parties   domain.PartyRepository
	documents domain.DocumentRepository
	runs      domain.PaymentRunRepository
	cfg       Config
	log       zerolog.Logger
}

// NewEngine creates a reconciliation engine
func NewEngine(
	parties domain.PartyRepository,
	documents domain.DocumentRepository,
	runs domain.PaymentRunRepository,
	cfg Config,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		parties:   parties,
		documents: documents,
		runs:      runs,
		cfg:       cfg,
		log:       log.With().Str("component", "recon").Logger(),
	}
}

// Reconcile computes the match outcome for one transaction, mutating its
// matched fields. It returns true when the transaction is settleable:
// matched amount equal to the transaction amount and a resolved party.
// Transactions that are not pending, or already settled, are left alone.
func (e *Engine) Reconcile(txn *domain.Transaction) (bool, error) {
	if txn.Status != domain.TxPending || txn.SettlementID != "" {
		return false, nil
	}

	txn.MatchedPartyID = ""
	txn.MatchedDocIDs = nil
	txn.MatchedAmount = decimal.Zero

	var err error
	if txn.Side == domain.Debit {
		err = e.reconcileDebit(txn)
	} else {
		err = e.reconcileCredit(txn)
	}
	if err != nil {
		return false, err
	}

	return txn.Settleable(), nil
}

// reconcileDebit resolves money leaving the account against open payables.
// A decomposable payment-instruction id short-circuits to the originating
// payment run; otherwise payables are matched by reference in the free text.
func (e *Engine) reconcileDebit(txn *domain.Transaction) error {
	if runID, row, ok := decomposeInstructionID(txn.InstructionID); ok {
		run, err := e.runs.GetPaymentRun(runID)
		if err != nil {
			return err
		}
		if run != nil && row < len(run.Rows) {
			return e.matchFromRun(txn, run, row)
		}
	}

	party, err := e.resolveParty(txn.CounterpartyName, domain.PartyVendor, domain.PartyEmployee)
	if err != nil {
		return err
	}
	partyID := ""
	if party != nil {
		partyID = party.ID
		txn.MatchedPartyID = party.ID
	}

	docs, err := e.documents.FindOpen(domain.DocPayable, partyID)
	if err != nil {
		return err
	}

	cmp := e.comparers(false)
	for _, doc := range docs {
		if e.docReferenced(doc, txn.FreeText, cmp, true) {
			e.addMatch(txn, doc)
		}
	}
	e.adoptPartyFromDocs(txn)
	return nil
}

// reconcileCredit resolves money entering the account against open
// receivables, honoring the configured normalization policies.
func (e *Engine) reconcileCredit(txn *domain.Transaction) error {
	party, err := e.resolveParty(txn.CounterpartyName, domain.PartyCustomer)
	if err != nil {
		return err
	}
	partyID := ""
	if party != nil {
		partyID = party.ID
		txn.MatchedPartyID = party.ID
	}

	docs, err := e.documents.FindOpen(domain.DocReceivable, partyID)
	if err != nil {
		return err
	}

	cmp := e.comparers(true)
	for _, doc := range docs {
		if e.docReferenced(doc, txn.FreeText, cmp, false) {
			e.addMatch(txn, doc)
		}
	}
	e.adoptPartyFromDocs(txn)
	return nil
}

// matchFromRun is the exact-match path: party and documents come straight
// from the payment run row the instruction id points at.
func (e *Engine) matchFromRun(txn *domain.Transaction, run *domain.PaymentRun, row int) error {
	r := run.Rows[row]
	txn.MatchedPartyID = r.PartyID
	for _, docID := range r.DocumentIDs {
		doc, err := e.documents.GetDocument(docID)
		if err != nil {
			return err
		}
		e.addMatch(txn, doc)
	}
	return nil
}

// docReferenced reports whether any of the document's references occurs in
// the free text under any of the comparison strategies, first hit wins.
// External bill references only exist on payables.
func (e *Engine) docReferenced(doc *domain.Document, freeText string, cmp []compareFunc, includeExternal bool) bool {
	refs := []string{doc.Number, doc.StructuredRef}
	if includeExternal {
		refs = append(refs, doc.ExternalRef)
	}
	for _, c := range cmp {
		for _, ref := range refs {
			if c(ref, freeText) {
				return true
			}
		}
	}
	return false
}

// addMatch records a candidate document and accumulates its outstanding
// amount into the matched amount.
func (e *Engine) addMatch(txn *domain.Transaction, doc *domain.Document) {
	for _, id := range txn.MatchedDocIDs {
		if id == doc.ID {
			return
		}
	}
	txn.MatchedDocIDs = append(txn.MatchedDocIDs, doc.ID)
	txn.MatchedAmount = txn.MatchedAmount.Add(doc.Outstanding)
}

// adoptPartyFromDocs fills the matched party from the matched documents when
// name resolution found nothing but every candidate belongs to one party.
func (e *Engine) adoptPartyFromDocs(txn *domain.Transaction) {
	if txn.MatchedPartyID != "" || len(txn.MatchedDocIDs) == 0 {
		return
	}
	var partyID string
	for _, docID := range txn.MatchedDocIDs {
		doc, err := e.documents.GetDocument(docID)
		if err != nil {
			return
		}
		if partyID == "" {
			partyID = doc.PartyID
		} else if partyID != doc.PartyID {
			return
		}
	}
	txn.MatchedPartyID = partyID
}

// decomposeInstructionID splits "<run-id>-<row>" instruction ids written by
// our own payment runs. Anything else falls back to the reference path.
func decomposeInstructionID(instrID string) (runID string, row int, ok bool) {
	idx := strings.LastIndex(instrID, "-")
	if idx <= 0 || idx == len(instrID)-1 {
		return "", 0, false
	}
	row, err := strconv.Atoi(instrID[idx+1:])
	if err != nil || row < 0 {
		return "", 0, false
	}
	return instrID[:idx], row, true
}
