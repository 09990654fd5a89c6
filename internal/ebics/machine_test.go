package ebics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ardelhq/ebics-sync/internal/domain"
	"github.com/ardelhq/ebics-sync/internal/ebics"
	"github.com/ardelhq/ebics-sync/internal/keystore"
	"github.com/ardelhq/ebics-sync/internal/logging"
)

// fakeClient lets tests script the bank's answers
type fakeClient struct {
	sendCode    string
	downloadErr error
}

func (c *fakeClient) Send(ctx context.Context, order ebics.OrderType) (ebics.SendResult, error) {
	return ebics.SendResult{OK: c.sendCode == ebics.CodeOK, TechnicalCode: c.sendCode}, nil
}

func (c *fakeClient) Download(ctx context.Context, order ebics.OrderType, from, to time.Time) (map[string][]byte, error) {
	if c.downloadErr != nil {
		return nil, c.downloadErr
	}
	return map[string][]byte{"bank": []byte("HPB")}, nil
}

func (c *fakeClient) Upload(ctx context.Context, order ebics.OrderType, payload []byte) (string, error) {
	return "tx-1", nil
}

func (c *fakeClient) ConfirmDownload(ctx context.Context) error { return nil }

func (c *fakeClient) SupportsRange(order ebics.OrderType) bool { return false }

// fakeConns records every persisted connection state
type fakeConns struct {
	updates int
}

func (r *fakeConns) GetConnection(id string) (*domain.Connection, error) { return nil, nil }

func (r *fakeConns) UpdateConnection(conn *domain.Connection) error {
	r.updates++
	return nil
}

type fakeKeys struct {
	generated map[string]bool
}

func (k *fakeKeys) GenerateKeys(conn *domain.Connection) error {
	if k.generated == nil {
		k.generated = make(map[string]bool)
	}
	k.generated[conn.ID] = true
	return nil
}

func (k *fakeKeys) HasKeys(connectionID string) bool { return k.generated[connectionID] }

func (k *fakeKeys) PublicDigests(connectionID string) (keystore.Digests, error) {
	return keystore.Digests{
		Signature:      "aaaa1111",
		Authentication: "bbbb2222",
		Encryption:     "cccc3333",
	}, nil
}

func newMachine(client *fakeClient) (*ebics.Machine, *fakeConns, *domain.Connection) {
	conns := &fakeConns{}
	conn := &domain.Connection{
		ID:        "conn-1",
		HostID:    "HOST01",
		PartnerID: "PARTNER01",
		UserID:    "USER01",
		Version:   "H005",
	}
	m := ebics.NewMachine(client, &fakeKeys{}, conns, logging.Nop())
	return m, conns, conn
}

// The full activation walk with a bank that has not yet recognized the user:
// sends still progress, HPB does not.
func TestActivationHandshakePendingUser(t *testing.T) {
	client := &fakeClient{
		sendCode:    ebics.CodeInvalidUserState,
		downloadErr: ebics.NewFunctionalError(ebics.CodeInvalidUserState),
	}
	m, _, conn := newMachine(client)
	ctx := context.Background()

	if err := m.GenerateKeys(conn); err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	if got := conn.State(); got != domain.StateKeysCreated {
		t.Fatalf("Expected state KEYS_CREATED, got %s", got)
	}

	out, err := m.SendINI(ctx, conn)
	if err != nil {
		t.Fatalf("SendINI: %v", err)
	}
	if !out.AwaitingActivation {
		t.Error("Expected SendINI outcome to report awaiting activation")
	}
	if got := conn.State(); got != domain.StateINISent {
		t.Errorf("Expected state INI_SENT after benign send, got %s", got)
	}

	out, err = m.SendHIA(ctx, conn)
	if err != nil {
		t.Fatalf("SendHIA: %v", err)
	}
	if !out.AwaitingActivation {
		t.Error("Expected SendHIA outcome to report awaiting activation")
	}
	if got := conn.State(); got != domain.StateHIASent {
		t.Errorf("Expected state HIA_SENT, got %s", got)
	}

	// Before the bank confirms, HPB must hard-fail without a transition
	err = m.DownloadHPB(ctx, conn)
	var fe *domain.FunctionalError
	if !errors.As(err, &fe) || fe.Code != ebics.CodeInvalidUserState {
		t.Fatalf("Expected functional error %s, got %v", ebics.CodeInvalidUserState, err)
	}
	if conn.Flags.HPBDownloaded {
		t.Error("Expected HPBDownloaded to stay false after failed download")
	}
	if got := conn.State(); got != domain.StateHIASent {
		t.Errorf("Expected state to remain HIA_SENT, got %s", got)
	}
}

func TestActivationCompletesAfterConfirmation(t *testing.T) {
	client := &fakeClient{sendCode: ebics.CodeOK}
	m, _, conn := newMachine(client)
	ctx := context.Background()

	if err := m.GenerateKeys(conn); err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	if _, err := m.SendINI(ctx, conn); err != nil {
		t.Fatalf("SendINI: %v", err)
	}
	if _, err := m.SendHIA(ctx, conn); err != nil {
		t.Fatalf("SendHIA: %v", err)
	}

	letter, err := m.GenerateLetter(conn, ebics.Identity{Name: "Jane Example", Organization: "Example AG"})
	if err != nil {
		t.Fatalf("GenerateLetter: %v", err)
	}
	if letter == "" {
		t.Fatal("Expected a rendered letter")
	}
	if !conn.Flags.LetterCreated {
		t.Error("Expected LetterCreated flag to be set")
	}

	if err := m.ConfirmBankActivation(conn); err != nil {
		t.Fatalf("ConfirmBankActivation: %v", err)
	}
	if conn.Flags.Activated {
		t.Error("Activated must not be set before HPB was downloaded")
	}

	if err := m.DownloadHPB(ctx, conn); err != nil {
		t.Fatalf("DownloadHPB: %v", err)
	}
	if got := conn.State(); got != domain.StateActivated {
		t.Errorf("Expected state ACTIVATED, got %s", got)
	}
}

func TestDownloadHPBRejectedWithoutSends(t *testing.T) {
	client := &fakeClient{sendCode: ebics.CodeOK}
	m, conns, conn := newMachine(client)
	conn.Flags.KeysCreated = true

	err := m.DownloadHPB(context.Background(), conn)
	var se *domain.StateError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StateError, got %v", err)
	}
	if conn.Flags.HPBDownloaded || conn.Flags.Activated {
		t.Error("Expected no side effects from rejected download_hpb")
	}
	if conns.updates != 0 {
		t.Errorf("Expected no persisted updates, got %d", conns.updates)
	}
}

func TestSendINIRequiresKeys(t *testing.T) {
	client := &fakeClient{sendCode: ebics.CodeOK}
	m, _, conn := newMachine(client)

	_, err := m.SendINI(context.Background(), conn)
	var se *domain.StateError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StateError, got %v", err)
	}
	if conn.Flags.INISent {
		t.Error("Expected INISent to stay false")
	}
}

func TestHardSendCodeDoesNotProgress(t *testing.T) {
	client := &fakeClient{sendCode: ebics.CodeAuthenticationFail}
	m, _, conn := newMachine(client)
	conn.Flags.KeysCreated = true

	_, err := m.SendINI(context.Background(), conn)
	var fe *domain.FunctionalError
	if !errors.As(err, &fe) || fe.Code != ebics.CodeAuthenticationFail {
		t.Fatalf("Expected functional error %s, got %v", ebics.CodeAuthenticationFail, err)
	}
	if conn.Flags.INISent {
		t.Error("Expected INISent to stay false on hard functional error")
	}
}

func TestResetClearsFlagsAndWatermark(t *testing.T) {
	client := &fakeClient{sendCode: ebics.CodeOK}
	m, _, conn := newMachine(client)
	conn.Flags = domain.WorkflowFlags{KeysCreated: true, INISent: true, HIASent: true}
	conn.SyncedUntil = time.Now()

	if err := m.Reset(conn); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if conn.State() != domain.StateNew {
		t.Errorf("Expected state NEW after reset, got %s", conn.State())
	}
	if !conn.SyncedUntil.IsZero() {
		t.Error("Expected watermark cleared by reset")
	}
}
