// Package protocol defines the error taxonomy shared by the ring connectivity packages.
//
// Every failure surfaced by the connection orchestrator falls into one of a small number of
// categories (radio off, scan failure, handshake failure, registration failure, cancelled), and
// every category is recoverable: the orchestrator returns to a stable rest state and the caller
// decides whether to retry. Errors are never retried automatically.
package protocol

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the category of a ring connectivity failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindRadioUnavailable indicates the local Bluetooth adapter is off. The user must enable
	// it before scanning or pairing can proceed.
	KindRadioUnavailable
	// KindScanFailure indicates discovery could not run (permissions, hardware fault).
	KindScanFailure
	// KindHandshakeFailure indicates the ring was unreachable or rejected the hardware
	// handshake. The same discovered ring may be retried.
	KindHandshakeFailure
	// KindRegistrationFailure indicates the hardware handshake succeeded but the backend
	// rejected or failed to record the account binding. The orchestrator must not report the
	// ring as paired.
	KindRegistrationFailure
	// KindCancelled indicates the operation was superseded by a newer command. Cancellations
	// are silent: they are not shown to the user.
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindRadioUnavailable:    "radio unavailable",
	KindScanFailure:         "scan failure",
	KindHandshakeFailure:    "handshake failure",
	KindRegistrationFailure: "registration failure",
	KindCancelled:           "cancelled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unrecognized error kind %d", int(k))
}

// Error exposes methods useful for categorizing ring connectivity errors.
type Error interface {
	error

	// Kind returns the taxonomy category of the error.
	Kind() Kind

	// Silent returns true if the error should not be surfaced to the user. Only
	// cancellations are silent.
	Silent() bool
}

var (
	// ErrRadioOff indicates the Bluetooth adapter is turned off.
	ErrRadioOff = NewError(KindRadioUnavailable, "bluetooth is turned off")
	// ErrCancelled indicates a command was superseded by a newer one.
	ErrCancelled = NewError(KindCancelled, "superseded by a newer command")
	// ErrNotConnected indicates there is no live hardware connection to the ring.
	ErrNotConnected = NewError(KindHandshakeFailure, "ring not connected")
)

// RingError is the concrete Error implementation used throughout the repository.
type RingError struct {
	Category Kind
	Message  string // Human-readable, free of wrapper context.
	Err      error  // Underlying cause; may be nil.
}

// NewError returns an error of the given Kind with a fixed user-facing message.
func NewError(kind Kind, message string) error {
	return &RingError{Category: kind, Message: message}
}

// WrapError attaches a Kind and user-facing message to an underlying cause.
func WrapError(kind Kind, message string, cause error) error {
	return &RingError{Category: kind, Message: message, Err: cause}
}

func (e *RingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

func (e *RingError) Unwrap() error {
	return e.Err
}

func (e *RingError) Kind() Kind {
	return e.Category
}

func (e *RingError) Silent() bool {
	return e.Category == KindCancelled
}

// GetKind returns the taxonomy category of err, or KindUnknown if err does not carry one.
// Context cancellation maps to KindCancelled.
func GetKind(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var categorized Error
	if errors.As(err, &categorized) {
		return categorized.Kind()
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindUnknown
}

// IsCancelled returns true if err indicates the operation was superseded rather than failed.
func IsCancelled(err error) bool {
	return GetKind(err) == KindCancelled
}

// UserMessage extracts the display message from err, stripped of wrapped cause chains and
// other context intended for logs. Returns "" for nil and for silent errors.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ringErr *RingError
	if errors.As(err, &ringErr) {
		if ringErr.Silent() {
			return ""
		}
		return ringErr.Message
	}
	return err.Error()
}
