package domain

import (
	"fmt"
	"time"
)

// ConnectionState is the derived position of a connection in the activation workflow
type ConnectionState string

// Activation workflow states, in order
const (
	StateNew                ConnectionState = "NEW"
	StateKeysCreated        ConnectionState = "KEYS_CREATED"
	StateINISent            ConnectionState = "INI_SENT"
	StateHIASent            ConnectionState = "HIA_SENT"
	StateLetterCreated      ConnectionState = "LETTER_CREATED"
	StateAwaitingActivation ConnectionState = "AWAITING_BANK_ACTIVATION"
	StateHPBDownloaded      ConnectionState = "HPB_DOWNLOADED"
	StateActivated          ConnectionState = "ACTIVATED"
)

// WorkflowFlags tracks the activation handshake. Flags are monotonic: once set
// they are only cleared by ResetWorkflow, which clears all of them together.
type WorkflowFlags struct {
	KeysCreated             bool
	INISent                 bool
	HIASent                 bool
	LetterCreated           bool
	BankActivationConfirmed bool
	HPBDownloaded           bool
	Activated               bool
}

// Connection is the identity and workflow state of one bank relationship
type Connection struct {
	ID        string
	HostID    string
	PartnerID string
	UserID    string
	URL       string
	Version   string // protocol version tag, e.g. "H005"

	// KeyRef and PassphraseRef are opaque handles into the key store.
	// Raw key material never appears on this struct.
	KeyRef        string
	PassphraseRef string

	Flags WorkflowFlags

	// SyncedUntil is the highest date for which sync has fully completed.
	// Zero means the connection has never synced.
	SyncedUntil time.Time
}

// State derives the workflow state from the flags
func (c *Connection) State() ConnectionState {
	f := c.Flags
	switch {
	case f.Activated:
		return StateActivated
	case f.HPBDownloaded:
		return StateHPBDownloaded
	case f.LetterCreated && !f.BankActivationConfirmed:
		return StateAwaitingActivation
	case f.LetterCreated:
		return StateLetterCreated
	case f.HIASent:
		return StateHIASent
	case f.INISent:
		return StateINISent
	case f.KeysCreated:
		return StateKeysCreated
	default:
		return StateNew
	}
}

// AdvanceSyncedUntil moves the watermark forward. Moving it backward is a
// programming error and is rejected.
func (c *Connection) AdvanceSyncedUntil(d time.Time) error {
	day := d.Truncate(24 * time.Hour)
	if !c.SyncedUntil.IsZero() && day.Before(c.SyncedUntil) {
		return fmt.Errorf("watermark may not move backward: have %s, got %s",
			c.SyncedUntil.Format("2006-01-02"), day.Format("2006-01-02"))
	}
	c.SyncedUntil = day
	return nil
}

// ResetWorkflow clears every workflow flag and the watermark. Clearing a
// single flag in isolation is invalid, so this is the only way back.
func (c *Connection) ResetWorkflow() {
	c.Flags = WorkflowFlags{}
	c.SyncedUntil = time.Time{}
}
