package ebics

import (
	"errors"

	"github.com/ardelhq/ebics-sync/internal/domain"
)

// EBICS technical and business return codes
const (
	CodeOK                  = "000000" // EBICS_OK
	CodeDownloadDone        = "011000" // EBICS_DOWNLOAD_POSTPROCESS_DONE
	CodeDownloadSkipped     = "011001" // EBICS_DOWNLOAD_POSTPROCESS_SKIPPED
	CodeAuthenticationFail  = "061001" // EBICS_AUTHENTICATION_FAILED
	CodeNoDownloadData      = "090005" // EBICS_NO_DOWNLOAD_DATA_AVAILABLE
	CodeInvalidUserState    = "091002" // EBICS_INVALID_USER_OR_USER_STATE
	CodeInvalidOrderType    = "091005" // EBICS_INVALID_ORDER_TYPE
	CodeBankPubkeyUpdate    = "091008" // EBICS_BANK_PUBKEY_UPDATE_REQUIRED
	CodeInvalidOrderParams  = "091116" // EBICS_INVALID_ORDER_PARAMS
	CodeSignatureVerifyFail = "091301" // EBICS_SIGNATURE_VERIFICATION_FAILED
)

var codeMessages = map[string]string{
	CodeOK:                  "ok",
	CodeDownloadDone:        "download postprocess done",
	CodeDownloadSkipped:     "download postprocess skipped",
	CodeAuthenticationFail:  "authentication failed",
	CodeNoDownloadData:      "no download data available",
	CodeInvalidUserState:    "user unknown or user state inadmissible",
	CodeInvalidOrderType:    "invalid order type",
	CodeBankPubkeyUpdate:    "bank public key update required",
	CodeInvalidOrderParams:  "invalid order parameters",
	CodeSignatureVerifyFail: "signature verification failed",
}

// CodeMessage returns the human-readable text for a return code
func CodeMessage(code string) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "unknown return code"
}

// NewFunctionalError builds a FunctionalError for a return code
func NewFunctionalError(code string) *domain.FunctionalError {
	return &domain.FunctionalError{Code: code, Message: CodeMessage(code)}
}

// IsOK reports whether a code means success
func IsOK(code string) bool {
	return code == CodeOK || code == CodeDownloadDone
}

// IsUserStatePending reports whether a code means the bank has not yet
// recognized the user. On a send this is benign (the order was transmitted);
// on a data retrieval it is a hard authentication-class failure.
func IsUserStatePending(code string) bool {
	return code == CodeInvalidUserState
}

// IsNoData reports whether an error is the benign "no data available for
// this period" condition.
func IsNoData(err error) bool {
	var fe *domain.FunctionalError
	if errors.As(err, &fe) {
		return fe.Code == CodeNoDownloadData
	}
	return false
}
