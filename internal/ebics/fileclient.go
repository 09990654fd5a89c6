package ebics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

const dateLayout = "2006-01-02"

// userStateFile marks a sandbox directory whose user the bank has not yet
// activated; its presence makes sends return 091002 and HPB fail.
const userStateFile = "user_state_pending"

// FileClient is a payload-directory transport: statement payloads are files
// named <account>_<YYYY-MM-DD>.xml. It backs local runs and sandbox setups
// where the bank delivers files out of band.
type FileClient struct {
	dir string
}

// NewFileClient creates a client over a payload directory
func NewFileClient(dir string) *FileClient {
	return &FileClient{dir: dir}
}

var _ Client = (*FileClient)(nil)

// Send implements Client
func (c *FileClient) Send(ctx context.Context, order OrderType) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, &domain.TransportError{Op: string(order), Err: err}
	}
	if c.userPending() {
		return SendResult{OK: false, TechnicalCode: CodeInvalidUserState}, nil
	}
	return SendResult{OK: true, TechnicalCode: CodeOK}, nil
}

// Download implements Client
func (c *FileClient) Download(ctx context.Context, order OrderType, from, to time.Time) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TransportError{Op: string(order), Err: err}
	}

	if order == OrderHPB {
		if c.userPending() {
			return nil, NewFunctionalError(CodeInvalidUserState)
		}
		return map[string][]byte{"bank": []byte("HPB")}, nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, &domain.TransportError{Op: string(order), Err: err}
	}

	payloads := make(map[string][]byte)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".xml") {
			continue
		}
		account, day, ok := splitPayloadName(entry.Name())
		if !ok {
			continue
		}
		if !from.IsZero() && day.Before(from.Truncate(24*time.Hour)) {
			continue
		}
		if !to.IsZero() && day.After(to.Truncate(24*time.Hour)) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(c.dir, entry.Name()))
		if err != nil {
			return nil, &domain.TransportError{Op: string(order), Err: err}
		}
		payloads[account] = raw
	}

	if len(payloads) == 0 {
		return nil, NewFunctionalError(CodeNoDownloadData)
	}
	return payloads, nil
}

// Upload implements Client: the payment file lands in an outbox directory
func (c *FileClient) Upload(ctx context.Context, order OrderType, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.TransportError{Op: string(order), Err: err}
	}

	outbox := filepath.Join(c.dir, "outbox")
	if err := os.MkdirAll(outbox, 0o755); err != nil {
		return "", &domain.TransportError{Op: string(order), Err: err}
	}

	txID := uuid.NewString()
	name := fmt.Sprintf("%s_%s.xml", strings.ToLower(string(order)), txID)
	if err := os.WriteFile(filepath.Join(outbox, name), payload, 0o644); err != nil {
		return "", &domain.TransportError{Op: string(order), Err: err}
	}
	return txID, nil
}

// ConfirmDownload implements Client. Files stay in place so a re-sync can
// exercise the deduplication path.
func (c *FileClient) ConfirmDownload(ctx context.Context) error {
	return ctx.Err()
}

// SupportsRange implements Client: file payloads are per-day
func (c *FileClient) SupportsRange(order OrderType) bool {
	return false
}

func (c *FileClient) userPending() bool {
	_, err := os.Stat(filepath.Join(c.dir, userStateFile))
	return err == nil
}

// splitPayloadName parses "<account>_<YYYY-MM-DD>.xml"
func splitPayloadName(name string) (account string, day time.Time, ok bool) {
	base := strings.TrimSuffix(name, ".xml")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return "", time.Time{}, false
	}
	day, err := time.Parse(dateLayout, base[idx+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return base[:idx], day, true
}
