package ebics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ardelhq/ebics-sync/internal/domain"
	"github.com/ardelhq/ebics-sync/internal/keystore"
)

// KeyManager is the slice of the key store the state machine needs
type KeyManager interface {
	// GenerateKeys creates the connection's key material if absent
	GenerateKeys(conn *domain.Connection) error

	// HasKeys reports whether key material exists for the connection
	HasKeys(connectionID string) bool

	// PublicDigests returns the public key digests for the letter
	PublicDigests(connectionID string) (keystore.Digests, error)
}

// Outcome is what a send operation reports back to the caller
type Outcome struct {
	Code string

	// AwaitingActivation is set when the bank accepted the order but has
	// not yet recognized the user (the benign 091002 case on sends).
	AwaitingActivation bool
}

// Machine drives the activation handshake of one connection:
// keys -> INI -> HIA -> letter -> await activation -> HPB -> activated.
// All flag mutations are persisted through the connection repository.
type Machine struct {
	client Client
	keys   KeyManager
	conns  domain.ConnectionRepository
	log    zerolog.Logger
}

// NewMachine creates a state machine over the given collaborators
func NewMachine(client Client, keys KeyManager, conns domain.ConnectionRepository, log zerolog.Logger) *Machine {
	return &Machine{
		client: client,
		keys:   keys,
		conns:  conns,
		log:    log.With().Str("component", "ebics").Logger(),
	}
}

// GenerateKeys creates the connection's key material. Idempotent: existing
// material is left alone and the operation still succeeds.
func (m *Machine) GenerateKeys(conn *domain.Connection) error {
	if err := m.keys.GenerateKeys(conn); err != nil {
		return err
	}
	if conn.Flags.KeysCreated {
		return nil
	}
	conn.Flags.KeysCreated = true
	m.log.Info().Str("connection", conn.ID).Msg("key material created")
	return m.conns.UpdateConnection(conn)
}

// SendINI transmits the signature key to the bank
func (m *Machine) SendINI(ctx context.Context, conn *domain.Connection) (Outcome, error) {
	return m.sendKeyOrder(ctx, conn, OrderINI, "send_ini", &conn.Flags.INISent)
}

// SendHIA transmits the authentication and encryption keys to the bank
func (m *Machine) SendHIA(ctx context.Context, conn *domain.Connection) (Outcome, error) {
	return m.sendKeyOrder(ctx, conn, OrderHIA, "send_hia", &conn.Flags.HIASent)
}

// sendKeyOrder runs one key-exchange send. A "user not yet recognized" code
// still marks the order as sent: the bank accepted the transmission, it just
// has not activated the user. Any other non-OK code fails without a state
// change.
func (m *Machine) sendKeyOrder(ctx context.Context, conn *domain.Connection, order OrderType, op string, sentFlag *bool) (Outcome, error) {
	if !conn.Flags.KeysCreated {
		return Outcome{}, &domain.StateError{Op: op, State: conn.State()}
	}

	res, err := m.client.Send(ctx, order)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case IsOK(res.TechnicalCode) || res.OK:
		*sentFlag = true
	case IsUserStatePending(res.TechnicalCode):
		*sentFlag = true
		m.log.Info().
			Str("connection", conn.ID).
			Str("order", string(order)).
			Str("code", res.TechnicalCode).
			Msg("order transmitted, awaiting bank activation")
	default:
		return Outcome{Code: res.TechnicalCode}, NewFunctionalError(res.TechnicalCode)
	}

	if err := m.conns.UpdateConnection(conn); err != nil {
		return Outcome{}, fmt.Errorf("persisting %s flag: %w", op, err)
	}

	return Outcome{
		Code:               res.TechnicalCode,
		AwaitingActivation: IsUserStatePending(res.TechnicalCode),
	}, nil
}

// GenerateLetter renders the initialization letter for the bank. Requires
// both key orders to have been sent.
func (m *Machine) GenerateLetter(conn *domain.Connection, identity Identity) (string, error) {
	if !conn.Flags.INISent || !conn.Flags.HIASent {
		return "", &domain.StateError{Op: "generate_letter", State: conn.State()}
	}

	digests, err := m.keys.PublicDigests(conn.ID)
	if err != nil {
		return "", fmt.Errorf("reading key digests: %w", err)
	}

	letter := RenderLetter(conn, identity, digests)

	conn.Flags.LetterCreated = true
	if err := m.conns.UpdateConnection(conn); err != nil {
		return "", fmt.Errorf("persisting letter flag: %w", err)
	}

	return letter, nil
}

// DownloadHPB retrieves the bank's public keys. Unlike the sends, a "user
// not recognized" here is a hard authentication failure: no state transition
// may happen on a failed read.
func (m *Machine) DownloadHPB(ctx context.Context, conn *domain.Connection) error {
	if !conn.Flags.INISent || !conn.Flags.HIASent {
		return &domain.StateError{Op: "download_hpb", State: conn.State()}
	}

	if _, err := m.client.Download(ctx, OrderHPB, zeroTime, zeroTime); err != nil {
		return fmt.Errorf("download_hpb: %w", err)
	}

	conn.Flags.HPBDownloaded = true
	if conn.Flags.BankActivationConfirmed {
		conn.Flags.Activated = true
	}
	if err := m.conns.UpdateConnection(conn); err != nil {
		return fmt.Errorf("persisting hpb flag: %w", err)
	}

	m.log.Info().Str("connection", conn.ID).Str("state", string(conn.State())).Msg("bank keys downloaded")
	return nil
}

// ConfirmBankActivation records the manual confirmation that the bank has
// activated the user. No precondition: this is an operator override.
func (m *Machine) ConfirmBankActivation(conn *domain.Connection) error {
	conn.Flags.BankActivationConfirmed = true
	if conn.Flags.HPBDownloaded {
		conn.Flags.Activated = true
	}
	return m.conns.UpdateConnection(conn)
}

// Reset clears the whole workflow, flags and watermark together
func (m *Machine) Reset(conn *domain.Connection) error {
	conn.ResetWorkflow()
	m.log.Warn().Str("connection", conn.ID).Msg("workflow reset")
	return m.conns.UpdateConnection(conn)
}
