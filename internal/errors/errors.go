// Package errors defines the error taxonomy shared by the billing core,
// the ledger store and the RPC layer. Import it as ierr.
package errors

import (
	"github.com/cockroachdb/errors"
)

// Sentinels. Build concrete errors with NewError/WithError and Mark them
// with one or more of these so callers can match with errors.Is.
var (
	ErrInvalidIDFormat  = errors.New("invalid id format")
	ErrDocumentNotFound = errors.New("document not found")
	ErrDuplicateReturn  = errors.New("return already exists for invoice")
	ErrValidation       = errors.New("validation error")
	ErrOverflow         = errors.New("amount overflow")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrRequestInFlight  = errors.New("request already in flight")
	ErrStaleResponse    = errors.New("stale response discarded")

	// Validation reasons. Errors carrying one of these are also marked
	// with ErrValidation.
	ErrEmptyItemSet        = errors.New("empty item set")
	ErrNonPositiveQuantity = errors.New("non-positive quantity")
	ErrInvalidItem         = errors.New("invalid item")
)

// Machine-readable codes, surfaced to RPC clients as error metadata.
const (
	CodeInvalidIDFormat     = "invalid_id_format"
	CodeDocumentNotFound    = "document_not_found"
	CodeDuplicateReturn     = "duplicate_return"
	CodeValidation          = "validation_error"
	CodeEmptyItemSet        = "empty_item_set"
	CodeNonPositiveQuantity = "non_positive_quantity"
	CodeInvalidItem         = "invalid_item"
	CodeOverflow            = "overflow"
	CodeStoreUnavailable    = "store_unavailable"
	CodeInvalidOperation    = "invalid_operation"
	CodeRequestInFlight     = "request_in_flight"
	CodeStaleResponse       = "stale_response"
	CodeInternal            = "internal_error"
)

// CodeHeader is the RPC metadata key carrying Code(err) to clients.
const CodeHeader = "Error-Code"

// codes is ordered most specific first.
var codes = []struct {
	ref  error
	code string
}{
	{ErrEmptyItemSet, CodeEmptyItemSet},
	{ErrNonPositiveQuantity, CodeNonPositiveQuantity},
	{ErrInvalidItem, CodeInvalidItem},
	{ErrValidation, CodeValidation},
	{ErrInvalidIDFormat, CodeInvalidIDFormat},
	{ErrDocumentNotFound, CodeDocumentNotFound},
	{ErrDuplicateReturn, CodeDuplicateReturn},
	{ErrOverflow, CodeOverflow},
	{ErrStoreUnavailable, CodeStoreUnavailable},
	{ErrRequestInFlight, CodeRequestInFlight},
	{ErrStaleResponse, CodeStaleResponse},
	{ErrInvalidOperation, CodeInvalidOperation},
}

// Code returns the machine-readable code of err.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.ref) {
			return c.code
		}
	}
	return CodeInternal
}

// Hint returns the user-facing hints attached to err, joined by newlines.
func Hint(err error) string {
	return errors.FlattenHints(err)
}

// NewValidation builds a validation error for the given reason.
func NewValidation(reason error, hint string) error {
	return WithError(reason).WithHint(hint).Mark(ErrValidation)
}

// ValidationReason returns the validation reason carried by err, or nil.
func ValidationReason(err error) error {
	for _, reason := range []error{ErrEmptyItemSet, ErrNonPositiveQuantity, ErrInvalidItem} {
		if errors.Is(err, reason) {
			return reason
		}
	}
	return nil
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a document-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}

func IsInvalidIDFormat(err error) bool {
	return errors.Is(err, ErrInvalidIDFormat)
}

func IsDuplicateReturn(err error) bool {
	return errors.Is(err, ErrDuplicateReturn)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsOverflow(err error) bool {
	return errors.Is(err, ErrOverflow)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

func IsRequestInFlight(err error) bool {
	return errors.Is(err, ErrRequestInFlight)
}

func IsStaleResponse(err error) bool {
	return errors.Is(err, ErrStaleResponse)
}

// IsDomain reports whether err carries one of the taxonomy sentinels.
func IsDomain(err error) bool {
	return Code(err) != CodeInternal
}

// Unavailable marks err as ErrStoreUnavailable unless it already carries
// one of the taxonomy sentinels.
func Unavailable(err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	return WithError(err).
		WithHint("Could not reach the ledger. Please try again.").
		Mark(ErrStoreUnavailable)
}
