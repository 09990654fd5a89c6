package repository

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ardelhq/ebics-sync/internal/domain"
	"github.com/ardelhq/ebics-sync/pkg/fileutil"
)

var partyHeaderFields = []string{"id", "name", "kind", "iban"}

// CSVPartyRepository implements the PartyRepository interface over a CSV
// export from the accounting platform
type CSVPartyRepository struct {
	FilePath string
}

// NewCSVPartyRepository creates a new CSVPartyRepository
func NewCSVPartyRepository(filePath string) *CSVPartyRepository {
	return &CSVPartyRepository{FilePath: filePath}
}

func (r *CSVPartyRepository) load() ([]*domain.Party, error) {
	reader := fileutil.NewCSVReader(r.FilePath)

	header, err := reader.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("reading party header: %w", err)
	}
	columnMap, err := headerMap(header, partyHeaderFields)
	if err != nil {
		return nil, fmt.Errorf("mapping CSV columns: %w", err)
	}

	var parties []*domain.Party
	rowProcessorFn := func(row []string) error {
		if len(row) <= maxIndex(columnMap) {
			return nil
		}
		parties = append(parties, &domain.Party{
			ID:   row[columnMap["id"]],
			Name: row[columnMap["name"]],
			Kind: domain.PartyKind(strings.ToUpper(row[columnMap["kind"]])),
			IBAN: row[columnMap["iban"]],
		})
		return nil
	}

	if err := reader.ReadAndProcessByRow(rowProcessorFn); err != nil {
		return nil, fmt.Errorf("processing parties: %w", err)
	}
	return parties, nil
}

// GetParty implements domain.PartyRepository
func (r *CSVPartyRepository) GetParty(id string) (*domain.Party, error) {
	parties, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, p := range parties {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("party %s not found", id)
}

// FindByKind implements domain.PartyRepository
func (r *CSVPartyRepository) FindByKind(kind domain.PartyKind) ([]*domain.Party, error) {
	parties, err := r.load()
	if err != nil {
		return nil, err
	}
	var filtered []*domain.Party
	for _, p := range parties {
		if p.Kind == kind {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

var documentHeaderFields = []string{"id", "party_id", "kind", "number", "external_ref", "structured_ref", "outstanding", "currency"}

// CSVDocumentRepository implements the DocumentRepository interface over a
// CSV export of open payables and receivables
type CSVDocumentRepository struct {
	FilePath string
}

// NewCSVDocumentRepository creates a new CSVDocumentRepository
func NewCSVDocumentRepository(filePath string) *CSVDocumentRepository {
	return &CSVDocumentRepository{FilePath: filePath}
}

func (r *CSVDocumentRepository) load() ([]*domain.Document, error) {
	reader := fileutil.NewCSVReader(r.FilePath)

	header, err := reader.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("reading document header: %w", err)
	}
	columnMap, err := headerMap(header, documentHeaderFields)
	if err != nil {
		return nil, fmt.Errorf("mapping CSV columns: %w", err)
	}

	var docs []*domain.Document
	rowProcessorFn := func(row []string) error {
		if len(row) <= maxIndex(columnMap) {
			return nil
		}
		outstanding, err := decimal.NewFromString(row[columnMap["outstanding"]])
		if err != nil {
			// Skip unparseable rows, keep loading the rest
			return nil
		}
		docs = append(docs, &domain.Document{
			ID:            row[columnMap["id"]],
			PartyID:       row[columnMap["party_id"]],
			Kind:          domain.DocumentKind(strings.ToUpper(row[columnMap["kind"]])),
			Number:        row[columnMap["number"]],
			ExternalRef:   row[columnMap["external_ref"]],
			StructuredRef: row[columnMap["structured_ref"]],
			Outstanding:   outstanding,
			Currency:      row[columnMap["currency"]],
		})
		return nil
	}

	if err := reader.ReadAndProcessByRow(rowProcessorFn); err != nil {
		return nil, fmt.Errorf("processing documents: %w", err)
	}
	return docs, nil
}

// FindOpen implements domain.DocumentRepository
func (r *CSVDocumentRepository) FindOpen(kind domain.DocumentKind, partyID string) ([]*domain.Document, error) {
	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	var filtered []*domain.Document
	for _, d := range docs {
		if d.Kind != kind || d.Outstanding.IsZero() {
			continue
		}
		if partyID != "" && d.PartyID != partyID {
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered, nil
}

// GetDocument implements domain.DocumentRepository
func (r *CSVDocumentRepository) GetDocument(id string) (*domain.Document, error) {
	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("document %s not found", id)
}

var paymentRunHeaderFields = []string{"run_id", "party_id", "document_ids"}

// CSVPaymentRunRepository implements the PaymentRunRepository interface over
// a CSV export of executed payment runs, one row per payment
type CSVPaymentRunRepository struct {
	FilePath string
}

// NewCSVPaymentRunRepository creates a new CSVPaymentRunRepository
func NewCSVPaymentRunRepository(filePath string) *CSVPaymentRunRepository {
	return &CSVPaymentRunRepository{FilePath: filePath}
}

// GetPaymentRun implements domain.PaymentRunRepository
func (r *CSVPaymentRunRepository) GetPaymentRun(id string) (*domain.PaymentRun, error) {
	reader := fileutil.NewCSVReader(r.FilePath)

	header, err := reader.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("reading payment run header: %w", err)
	}
	columnMap, err := headerMap(header, paymentRunHeaderFields)
	if err != nil {
		return nil, fmt.Errorf("mapping CSV columns: %w", err)
	}

	var run *domain.PaymentRun
	rowProcessorFn := func(row []string) error {
		if len(row) <= maxIndex(columnMap) {
			return nil
		}
		if row[columnMap["run_id"]] != id {
			return nil
		}
		if run == nil {
			run = &domain.PaymentRun{ID: id}
		}
		run.Rows = append(run.Rows, domain.PaymentRunRow{
			PartyID:     row[columnMap["party_id"]],
			DocumentIDs: strings.Split(row[columnMap["document_ids"]], ";"),
		})
		return nil
	}

	if err := reader.ReadAndProcessByRow(rowProcessorFn); err != nil {
		return nil, fmt.Errorf("processing payment runs: %w", err)
	}
	return run, nil
}

// maxIndex returns the highest column index a row must provide
func maxIndex(columnMap map[string]int) int {
	max := -1
	for _, idx := range columnMap {
		if idx > max {
			max = idx
		}
	}
	return max
}
