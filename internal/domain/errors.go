package domain

import "fmt"

// ConfigurationError reports a missing or invalid required setting.
// Fatal: surfaced immediately, never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// TransportError reports a network-level failure or timeout of a protocol
// call. It does not advance watermark or workflow state and is not retried
// automatically.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FunctionalError carries a bank-defined return code. Whether the code is
// benign depends on the operation it came back from; the protocol package
// owns that classification.
type FunctionalError struct {
	Code    string
	Message string
}

func (e *FunctionalError) Error() string {
	return fmt.Sprintf("bank returned %s: %s", e.Code, e.Message)
}

// MalformedPayloadError reports a statement payload missing a mandatory
// field. The affected statement is skipped; the batch continues.
type MalformedPayloadError struct {
	Field string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed statement payload: missing mandatory field %q", e.Field)
}

// StateError reports a workflow operation attempted from the wrong state.
// The operation has no side effects.
type StateError struct {
	Op    string
	State ConnectionState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("operation %s not allowed in state %s", e.Op, e.State)
}

// KeyStateError reports a key-store operation whose key-material
// precondition does not hold.
type KeyStateError struct {
	ConnectionID string
	Reason       string
}

func (e *KeyStateError) Error() string {
	return fmt.Sprintf("key state error for connection %s: %s", e.ConnectionID, e.Reason)
}
