// Package syncer runs the top-level sync loop for one connection: download,
// parse, dedup, persist, reconcile, materialize, advance the watermark.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ardelhq/ebics-sync/internal/camt"
	"github.com/ardelhq/ebics-sync/internal/dedup"
	"github.com/ardelhq/ebics-sync/internal/domain"
	"github.com/ardelhq/ebics-sync/internal/ebics"
	"github.com/ardelhq/ebics-sync/internal/recon"
	"github.com/ardelhq/ebics-sync/internal/settle"
)

// errDateDrift marks a payload whose embedded date falls outside the
// requested unit. Skippable when drift is tolerated by configuration.
var errDateDrift = errors.New("statement date outside the requested range")

// Result summarizes one sync run
type Result struct {
	ConnectionID         string    `json:"connection_id"`
	StatementsImported   int       `json:"statements_imported"`
	TransactionsImported int       `json:"transactions_imported"`
	TransactionsSettled  int       `json:"transactions_settled"`
	SkippedDuplicates    int       `json:"skipped_duplicates"`
	SkippedPayloads      int       `json:"skipped_payloads"`
	SyncedUntil          time.Time `json:"synced_until"`
}

// Syncer drives the statement pipeline for a connection
type Syncer struct {
	client       ebics.Client
	conns        domain.ConnectionRepository
	statements   domain.StatementRepository
	transactions domain.TransactionRepository
	deduper      *dedup.Deduper
	engine       *recon.Engine
	materializer *settle.Materializer

	order          ebics.OrderType
	homeCurrency   string
	allowDateDrift bool
	log            zerolog.Logger
}

// New creates a syncer
func New(
	client ebics.Client,
	conns domain.ConnectionRepository,
	statements domain.StatementRepository,
	transactions domain.TransactionRepository,
	deduper *dedup.Deduper,
	engine *recon.Engine,
	materializer *settle.Materializer,
	order ebics.OrderType,
	homeCurrency string,
	allowDateDrift bool,
	log zerolog.Logger,
) *Syncer {
	return &Syncer{
		client:         client,
		conns:          conns,
		statements:     statements,
		transactions:   transactions,
		deduper:        deduper,
		engine:         engine,
		materializer:   materializer,
		order:          order,
		homeCurrency:   homeCurrency,
		allowDateDrift: allowDateDrift,
		log:            log.With().Str("component", "syncer").Logger(),
	}
}

// dateUnit is one unit of work: a single day, or the whole range when the
// client supports range downloads
type dateUnit struct {
	from, to time.Time
}

// Sync processes the requested date range for a connection. The watermark
// only moves past a unit once that unit is fully processed; on error the
// result reflects the progress made before it.
func (s *Syncer) Sync(ctx context.Context, connectionID string, from, to time.Time) (*Result, error) {
	conn, err := s.conns.GetConnection(connectionID)
	if err != nil {
		return nil, fmt.Errorf("loading connection: %w", err)
	}
	if !conn.Flags.Activated {
		return nil, &domain.StateError{Op: "sync", State: conn.State()}
	}

	from = from.Truncate(24 * time.Hour)
	if to.IsZero() {
		to = from
	}
	to = to.Truncate(24 * time.Hour)

	// Never re-walk what is already synced
	if !conn.SyncedUntil.IsZero() {
		if next := conn.SyncedUntil.AddDate(0, 0, 1); from.Before(next) {
			from = next
		}
	}

	result := &Result{ConnectionID: conn.ID, SyncedUntil: conn.SyncedUntil}
	if from.After(to) {
		s.log.Info().Str("connection", conn.ID).Msg("nothing to sync, range already covered")
		return result, nil
	}

	for _, unit := range s.units(from, to) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := s.syncUnit(ctx, conn, unit, result); err != nil {
			return result, err
		}

		if err := conn.AdvanceSyncedUntil(unit.to); err != nil {
			return result, err
		}
		if err := s.conns.UpdateConnection(conn); err != nil {
			return result, fmt.Errorf("persisting watermark: %w", err)
		}
		result.SyncedUntil = conn.SyncedUntil
	}

	return result, nil
}

// units splits the range into one range-wide unit or per-day steps
func (s *Syncer) units(from, to time.Time) []dateUnit {
	if s.client.SupportsRange(s.order) {
		return []dateUnit{{from: from, to: to}}
	}
	var out []dateUnit
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		out = append(out, dateUnit{from: day, to: day})
	}
	return out
}

// syncUnit downloads and processes one unit of work
func (s *Syncer) syncUnit(ctx context.Context, conn *domain.Connection, unit dateUnit, result *Result) error {
	payloads, err := s.client.Download(ctx, s.order, unit.from, unit.to)
	if err != nil {
		if ebics.IsNoData(err) {
			// Zero-result success. Advancing past empty days prevents
			// livelock on accounts with sparse activity.
			s.log.Info().
				Str("connection", conn.ID).
				Str("until", unit.to.Format("2006-01-02")).
				Msg("no download data, advancing watermark")
			return nil
		}
		return err
	}

	for _, account := range sortedKeys(payloads) {
		if err := s.processPayload(conn, unit, account, payloads[account], result); err != nil {
			var malformed *domain.MalformedPayloadError
			if errors.As(err, &malformed) || errors.Is(err, errDateDrift) {
				result.SkippedPayloads++
				s.log.Warn().
					Str("connection", conn.ID).
					Str("account", account).
					Err(err).
					Msg("skipping payload")
				continue
			}
			return err
		}
	}

	if err := s.client.ConfirmDownload(ctx); err != nil {
		return fmt.Errorf("confirming download: %w", err)
	}
	return nil
}

// processPayload runs one payload through the full pipeline
func (s *Syncer) processPayload(conn *domain.Connection, unit dateUnit, account string, payload []byte, result *Result) error {
	parsed, err := camt.Parse(payload, s.homeCurrency)
	if err != nil {
		return err
	}

	hash := dedup.ContentHash(payload)
	seen, err := s.deduper.StatementSeen(conn.ID, parsed.Meta.StatementID, hash)
	if err != nil {
		return err
	}
	if seen {
		result.SkippedDuplicates++
		s.log.Debug().
			Str("connection", conn.ID).
			Str("statement", parsed.Meta.StatementID).
			Msg("statement already imported")
		return nil
	}

	stmtDate := unit.to
	if parsed.Meta.HasDate {
		if parsed.Meta.Date.Before(unit.from) || parsed.Meta.Date.After(unit.to) {
			if !s.allowDateDrift {
				return fmt.Errorf("%w: have %s, requested %s..%s", errDateDrift,
					parsed.Meta.Date.Format("2006-01-02"),
					unit.from.Format("2006-01-02"), unit.to.Format("2006-01-02"))
			}
			s.log.Warn().
				Str("connection", conn.ID).
				Str("statement_date", parsed.Meta.Date.Format("2006-01-02")).
				Str("requested", unit.to.Format("2006-01-02")).
				Msg("bank returned a statement for a different date")
		}
		stmtDate = parsed.Meta.Date
	}

	stmt := &domain.Statement{
		ID:              uuid.NewString(),
		ConnectionID:    conn.ID,
		AccountID:       firstNonEmpty(parsed.Meta.AccountID, account),
		Currency:        parsed.Meta.Currency,
		OpeningBalance:  parsed.Meta.Opening,
		ClosingBalance:  parsed.Meta.Closing,
		BankStatementID: bankStatementID(parsed.Meta.StatementID),
		ContentHash:     hash,
		Date:            stmtDate,
		Status:          domain.StatementPending,
	}
	if err := s.statements.CreateStatement(stmt); err != nil {
		return fmt.Errorf("persisting statement: %w", err)
	}
	result.StatementsImported++

	txns, err := s.importTransactions(conn, stmt, parsed.Transactions, result)
	if err != nil {
		return err
	}

	for _, txn := range txns {
		// One transaction failing to match must not take down its siblings
		if _, err := s.engine.Reconcile(txn); err != nil {
			txn.Status = domain.TxError
			txn.ErrorReason = err.Error()
			s.log.Warn().
				Str("transaction", txn.ID).
				Err(err).
				Msg("matching failed, transaction marked for manual handling")
		}
		if err := s.transactions.UpdateTransaction(txn); err != nil {
			return fmt.Errorf("persisting match result: %w", err)
		}
	}

	if err := s.materializer.MaterializeBatch(stmt, txns); err != nil {
		return err
	}
	for _, txn := range txns {
		if txn.Status == domain.TxCompleted {
			result.TransactionsSettled++
		}
	}
	return nil
}

// importTransactions persists the parsed records, skipping redeliveries
func (s *Syncer) importTransactions(conn *domain.Connection, stmt *domain.Statement, records []camt.TxRecord, result *Result) ([]*domain.Transaction, error) {
	txns := make([]*domain.Transaction, 0, len(records))
	for i := range records {
		record := &records[i]

		seen, err := s.deduper.TransactionSeen(conn.ID, record.UniqueRef, record.Date, stmt.ID)
		if err != nil {
			return nil, err
		}
		if seen {
			result.SkippedDuplicates++
			continue
		}

		txn := &domain.Transaction{
			ID:                  uuid.NewString(),
			StatementID:         stmt.ID,
			ConnectionID:        conn.ID,
			Date:                record.Date,
			Amount:              record.Amount,
			Currency:            record.Currency,
			Side:                record.Side,
			CounterpartyName:    record.Counterparty.Name,
			CounterpartyAddress: record.Counterparty.Address,
			CounterpartyIBAN:    record.Counterparty.IBAN,
			UniqueRef:           record.UniqueRef,
			FreeText:            record.FreeText,
			InstructionID:       record.InstructionID,
			Status:              domain.TxPending,
		}
		if err := s.transactions.CreateTransaction(txn); err != nil {
			return nil, fmt.Errorf("persisting transaction: %w", err)
		}
		result.TransactionsImported++
		txns = append(txns, txn)
	}
	return txns, nil
}

// bankStatementID normalizes the parser's "n/a" placeholder to absent
func bankStatementID(id string) string {
	if id == "n/a" {
		return ""
	}
	return id
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
