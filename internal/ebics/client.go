// Package ebics implements the protocol side of a bank connection: order
// types, return-code classification and the activation state machine.
package ebics

import (
	"context"
	"time"
)

// zeroTime requests "whatever is pending" on date-less downloads
var zeroTime time.Time

// OrderType identifies an EBICS order
type OrderType string

// Order types used by this service
const (
	OrderINI OrderType = "INI" // transmit signature key
	OrderHIA OrderType = "HIA" // transmit authentication and encryption keys
	OrderHPB OrderType = "HPB" // download bank public keys
	OrderC53 OrderType = "C53" // camt.053 end-of-day statements
	OrderZ53 OrderType = "Z53" // camt.053, Swiss flavor
	OrderCCT OrderType = "CCT" // credit transfer upload
)

// SendResult is the outcome of transmitting an order
type SendResult struct {
	OK            bool
	TechnicalCode string
	RawResponse   []byte
}

// Client is the opaque transport to the bank. Implementations own the wire
// format; the core never sees it. Transport failures surface as
// *domain.TransportError, bank return codes on data retrieval as
// *domain.FunctionalError.
type Client interface {
	// Send transmits a key-exchange order. Functional return codes come
	// back in the result, not as an error: transport acceptance of a send
	// is distinct from functional recognition of the user.
	Send(ctx context.Context, order OrderType) (SendResult, error)

	// Download retrieves payloads keyed by account identifier for the
	// given date range. Zero times request whatever is pending.
	Download(ctx context.Context, order OrderType, from, to time.Time) (map[string][]byte, error)

	// Upload submits a payment file and returns the bank's transaction id
	Upload(ctx context.Context, order OrderType, payload []byte) (string, error)

	// ConfirmDownload acknowledges receipt so the bank does not redeliver
	ConfirmDownload(ctx context.Context) error

	// SupportsRange reports whether one download call may cover a whole
	// date range for the given order type
	SupportsRange(order OrderType) bool
}
