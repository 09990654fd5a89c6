package ebics

import (
	"fmt"
	"strings"
	"time"

	"github.com/ardelhq/ebics-sync/internal/domain"
	"github.com/ardelhq/ebics-sync/internal/keystore"
)

// Identity holds the tenant-supplied fields printed on the initialization
// letter and embedded in the self-signed certificate.
type Identity struct {
	Name         string
	Organization string
	Country      string
	Locality     string
}

// RenderLetter builds the plain-text initialization letter the customer
// signs and mails to the bank. It carries the SHA-256 digests of the three
// public keys so the bank can verify the INI/HIA orders.
func RenderLetter(conn *domain.Connection, identity Identity, digests keystore.Digests) string {
	var b strings.Builder

	fmt.Fprintf(&b, "EBICS Initialization Letter\n")
	fmt.Fprintf(&b, "Date: %s\n\n", time.Now().Format("2006-01-02"))

	fmt.Fprintf(&b, "Host ID:    %s\n", conn.HostID)
	fmt.Fprintf(&b, "Partner ID: %s\n", conn.PartnerID)
	fmt.Fprintf(&b, "User ID:    %s\n", conn.UserID)
	fmt.Fprintf(&b, "Version:    %s\n\n", conn.Version)

	fmt.Fprintf(&b, "Name:         %s\n", identity.Name)
	fmt.Fprintf(&b, "Organization: %s\n", identity.Organization)
	fmt.Fprintf(&b, "Locality:     %s, %s\n\n", identity.Locality, identity.Country)

	fmt.Fprintf(&b, "Signature key (A006), SHA-256:\n%s\n\n", formatDigest(digests.Signature))
	fmt.Fprintf(&b, "Authentication key (X002), SHA-256:\n%s\n\n", formatDigest(digests.Authentication))
	fmt.Fprintf(&b, "Encryption key (E002), SHA-256:\n%s\n\n", formatDigest(digests.Encryption))

	fmt.Fprintf(&b, "Date, signature: ______________________\n")

	return b.String()
}

// formatDigest groups a hex digest into the 2-byte blocks banks print
func formatDigest(hexDigest string) string {
	var blocks []string
	for i := 0; i+4 <= len(hexDigest); i += 4 {
		blocks = append(blocks, strings.ToUpper(hexDigest[i:i+4]))
	}
	return strings.Join(blocks, " ")
}
