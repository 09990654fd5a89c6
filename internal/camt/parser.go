package camt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// Meta is the normalized statement header
type Meta struct {
	AccountID   string
	Currency    string
	StatementID string

	// Date is the statement date when the payload carries one
	Date    time.Time
	HasDate bool

	Opening decimal.Decimal
	Closing decimal.Decimal
}

// Counterparty is the other side of a movement
type Counterparty struct {
	Name    string
	Address string
	IBAN    string
}

// TxRecord is one normalized movement
type TxRecord struct {
	Date     time.Time
	Amount   decimal.Decimal
	Currency string
	Side     domain.EntrySide

	// UniqueRef comes from the first non-empty reference in the fallback
	// chain; as a last resort it is a hash of date, amount and name.
	UniqueRef string

	FreeText      string
	InstructionID string
	Counterparty  Counterparty
}

// ParsedStatement is the parser output: header plus ordered transactions
type ParsedStatement struct {
	Meta         Meta
	Transactions []TxRecord
}

// Balance type codes per ISO 20022
const (
	balanceOpening = "OPBD"
	balanceClosing = "CLBD"
)

// Debit/credit indicators
const (
	indicatorDebit  = "DBIT"
	indicatorCredit = "CRDT"
)

// Parse turns a raw camt.053 payload into a normalized statement. Banks omit
// optional fields inconsistently, so every optional field is resolved through
// an ordered fallback chain; only a missing mandatory field (date, amount,
// direction) fails, and then only with MalformedPayloadError.
func Parse(payload []byte, homeCurrency string) (*ParsedStatement, error) {
	var doc Document
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decoding camt.053 payload: %w", err)
	}
	if len(doc.BkToCstmrStmt.Stmt) == 0 {
		return nil, &domain.MalformedPayloadError{Field: "Stmt"}
	}

	stmt := &doc.BkToCstmrStmt.Stmt[0]
	meta := parseMeta(&doc.BkToCstmrStmt.GrpHdr, stmt, homeCurrency)

	var txns []TxRecord
	for i := range stmt.Ntry {
		entry := &stmt.Ntry[i]
		records, err := parseEntry(entry, meta.Currency)
		if err != nil {
			return nil, err
		}
		txns = append(txns, records...)
	}

	return &ParsedStatement{Meta: meta, Transactions: txns}, nil
}

// metaDateSources is the fallback chain for the statement date
var metaDateSources = []func(hdr *GrpHdr, stmt *Stmt) string{
	func(hdr *GrpHdr, stmt *Stmt) string { return stmt.FrToDt.FrDtTm },
	func(hdr *GrpHdr, stmt *Stmt) string { return stmt.FrToDt.ToDtTm },
	func(hdr *GrpHdr, stmt *Stmt) string { return stmt.CreDtTm },
	func(hdr *GrpHdr, stmt *Stmt) string { return hdr.CreDtTm },
}

func parseMeta(hdr *GrpHdr, stmt *Stmt, homeCurrency string) Meta {
	meta := Meta{
		AccountID:   firstNonEmpty(stmt.Acct.ID.IBAN, stmt.Acct.ID.Othr.ID),
		Currency:    firstNonEmpty(stmt.Acct.Ccy, homeCurrency),
		StatementID: firstNonEmpty(stmt.ID, "n/a"),
	}

	for _, source := range metaDateSources {
		if raw := source(hdr, stmt); raw != "" {
			if d, ok := parseISOTime(raw); ok {
				meta.Date = d
				meta.HasDate = true
				break
			}
		}
	}

	for i := range stmt.Bal {
		bal := &stmt.Bal[i]
		amount, err := decimal.NewFromString(strings.TrimSpace(bal.Amt.Text))
		if err != nil {
			continue
		}
		if bal.CdtDbtInd == indicatorDebit {
			amount = amount.Neg()
		}
		switch bal.Tp.CdOrPrtry.Cd {
		case balanceOpening:
			meta.Opening = amount
		case balanceClosing:
			meta.Closing = amount
		}
	}

	return meta
}

// parseEntry expands one entry into transaction records: one per TxDtls
// block, or a single implicit one when the entry has no details.
func parseEntry(entry *Ntry, statementCurrency string) ([]TxRecord, error) {
	date, ok := entryDate(entry)
	if !ok {
		return nil, &domain.MalformedPayloadError{Field: "Ntry/BookgDt"}
	}

	details := entry.NtryDtls.TxDtls
	if len(details) == 0 {
		// Entry with a single implicit transaction
		details = []TxDtls{{}}
	}

	records := make([]TxRecord, 0, len(details))
	for i := range details {
		tx := &details[i]

		amount, currency, ok := amountOf(tx, entry, statementCurrency)
		if !ok {
			return nil, &domain.MalformedPayloadError{Field: "Ntry/Amt"}
		}

		indicator := firstNonEmpty(tx.CdtDbtInd, entry.CdtDbtInd)
		var side domain.EntrySide
		switch indicator {
		case indicatorDebit:
			side = domain.Debit
		case indicatorCredit:
			side = domain.Credit
		default:
			return nil, &domain.MalformedPayloadError{Field: "Ntry/CdtDbtInd"}
		}

		counterparty := counterpartyOf(tx, side)

		record := TxRecord{
			Date:          date,
			Amount:        amount,
			Currency:      currency,
			Side:          side,
			FreeText:      freeTextOf(tx, entry),
			InstructionID: tx.Refs.InstrID,
			Counterparty:  counterparty,
		}
		record.UniqueRef = uniqueRefOf(tx, entry, &record)

		records = append(records, record)
	}

	return records, nil
}

// uniqueRefExtractors is the fallback chain for the unique reference
var uniqueRefExtractors = []func(tx *TxDtls, entry *Ntry) string{
	func(tx *TxDtls, entry *Ntry) string {
		return firstNonEmpty(tx.Refs.AcctSvcrRef, entry.AcctSvcrRef)
	},
	func(tx *TxDtls, entry *Ntry) string { return tx.Refs.TxID },
	func(tx *TxDtls, entry *Ntry) string { return tx.Refs.InstrID },
}

func uniqueRefOf(tx *TxDtls, entry *Ntry, record *TxRecord) string {
	for _, extract := range uniqueRefExtractors {
		if ref := extract(tx, entry); ref != "" {
			return ref
		}
	}
	// Last resort: content-derived reference
	material := fmt.Sprintf("%s|%s|%s",
		record.Date.Format("2006-01-02"), record.Amount.String(), record.Counterparty.Name)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:16])
}

// entryDate resolves the booking date, falling back to the value date
func entryDate(entry *Ntry) (time.Time, bool) {
	for _, raw := range []string{entry.BookgDt.Dt, entry.BookgDt.DtTm, entry.ValDt.Dt, entry.ValDt.DtTm} {
		if raw == "" {
			continue
		}
		if d, ok := parseISOTime(raw); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// amountOf resolves the transaction amount, falling back to the entry-level
// amount for entries with a single implicit transaction
func amountOf(tx *TxDtls, entry *Ntry, statementCurrency string) (decimal.Decimal, string, bool) {
	for _, amt := range []*Amt{&tx.Amt, &entry.Amt} {
		raw := strings.TrimSpace(amt.Text)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		return value, firstNonEmpty(amt.Ccy, statementCurrency), true
	}
	return decimal.Zero, "", false
}

// counterpartyOf picks the related party on the other side of the movement:
// the creditor for debits, the debtor for credits.
func counterpartyOf(tx *TxDtls, side domain.EntrySide) Counterparty {
	party := &tx.RltdPties.Cdtr
	account := &tx.RltdPties.CdtrAcct
	if side == domain.Credit {
		party = &tx.RltdPties.Dbtr
		account = &tx.RltdPties.DbtrAcct
	}

	return Counterparty{
		Name:    party.Nm,
		Address: addressOf(&party.PstlAdr),
		IBAN:    account.ID.IBAN,
	}
}

// addressOf prefers the structured postal fields over plain address lines
func addressOf(adr *PstlAdr) string {
	var parts []string
	for _, p := range []string{adr.StrtNm, adr.BldgNb, adr.PstCd, adr.TwnNm} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return strings.Join(adr.AdrLine, ", ")
}

// freeTextOf collects the remittance information used for matching
func freeTextOf(tx *TxDtls, entry *Ntry) string {
	var parts []string
	parts = append(parts, tx.RmtInf.Ustrd...)
	for i := range tx.RmtInf.Strd {
		if ref := tx.RmtInf.Strd[i].CdtrRefInf.Ref; ref != "" {
			parts = append(parts, ref)
		}
	}
	if len(parts) == 0 && entry.AddtlNtryInf != "" {
		parts = append(parts, entry.AddtlNtryInf)
	}
	return strings.Join(parts, " ")
}

// isoTimeLayouts covers the date and date-time forms banks deliver
var isoTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseISOTime(raw string) (time.Time, bool) {
	for _, layout := range isoTimeLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
