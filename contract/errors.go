/*
errors.go - Error types for the contract book

PURPOSE:
  All error types in one place. The API maps them onto status codes with
  IsClientError, IsNotFound and IsConflict.

ERROR CATEGORIES:
  1. Validation errors - A draft or edit breaks a rule; carries every
     violation found, not just the first
  2. Conflict errors - Duplicate keys and referential guards
  3. Lookup errors - Unknown work order, item, invoice or milestone

USAGE:
  Validation errors answer errors.Is for the sentinel of each violation
  code, so callers can test for one rule without unpacking:

    if errors.Is(err, contract.ErrCeilingExceeded) { ... }

SEE ALSO:
  - workorder.go, invoice.go: Produce ValidationError
  - book.go: Produces conflict and lookup errors
*/
package contract

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrCeilingExceeded is matched when payable or a release order exceeds
	// the admissible amount, or an invoice quantity exceeds the item quantity.
	ErrCeilingExceeded = errors.New("ceiling exceeded")

	// ErrDuplicateWorkOrder is returned when an item repeats the six-part
	// key of an existing work-order line.
	ErrDuplicateWorkOrder = errors.New("duplicate work order item")

	// ErrDuplicateInvoice is returned when an invoice number is reused.
	ErrDuplicateInvoice = errors.New("duplicate invoice number")

	// ErrWorkOrderReferenced blocks deleting a work order that invoices use.
	ErrWorkOrderReferenced = errors.New("work order is referenced by invoices")

	ErrWorkOrderNotFound = errors.New("work order not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrMilestoneNotFound = errors.New("milestone not claimed on invoice")

	// ErrUnknownCategory is returned by ParseCategory.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrIndexOutOfRange is returned by Store collections.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// =============================================================================
// VALIDATION
// =============================================================================

// Violation codes. Each code maps to at most one sentinel in codeSentinels.
const (
	CodeRequired        = "required"
	CodeInvalid         = "invalid"
	CodeOutOfRange      = "out_of_range"
	CodeDuplicate       = "duplicate"
	CodeCeiling         = "exceeds_ceiling"
	CodeMismatch        = "mismatch"
	CodeNoMilestones    = "no_milestones"
	CodeUnknownLabel    = "unknown_milestone"
	CodeDateOrder       = "date_order"
	CodeReasonRequired  = "reason_required"
	CodeBasisNotAllowed = "basis_not_allowed"
)

var codeSentinels = map[string]error{
	CodeCeiling: ErrCeilingExceeded,
}

// Violation is one broken rule on one field.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError lists every violation found on a submit.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Is matches the sentinel of any contained violation code.
func (e *ValidationError) Is(target error) bool {
	for _, v := range e.Violations {
		if s, ok := codeSentinels[v.Code]; ok && s == target {
			return true
		}
	}
	return false
}

// Has reports whether field carries a violation.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// HasCode reports whether any violation carries code.
func (e *ValidationError) HasCode(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// violations collects failures while a draft is checked.
type violations []Violation

func (vs *violations) add(field, code, format string, args ...any) {
	*vs = append(*vs, Violation{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (vs violations) err() error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: append([]Violation(nil), vs...)}
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateItemError names the existing line an item collides with.
type DuplicateItemError struct {
	Key         ItemKey
	WorkOrderID string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("duplicate work order item %s (existing work order %s)", e.Key, e.WorkOrderID)
}

func (e *DuplicateItemError) Unwrap() error {
	return ErrDuplicateWorkOrder
}

// DuplicateInvoiceError names the reused invoice number.
type DuplicateInvoiceError struct {
	InvoiceNumber string
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("invoice number %q already exists", e.InvoiceNumber)
}

func (e *DuplicateInvoiceError) Unwrap() error {
	return ErrDuplicateInvoice
}

// ReferentialIntegrityError lists the invoices blocking a work-order delete.
type ReferentialIntegrityError struct {
	Key            WorkOrderKey
	InvoiceNumbers []string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("work order %s is referenced by invoices: %s",
		e.Key, strings.Join(e.InvoiceNumbers, ", "))
}

func (e *ReferentialIntegrityError) Unwrap() error {
	return ErrWorkOrderReferenced
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnknownCategory)
}

// IsConflict returns true if the error is a uniqueness or reference guard.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateWorkOrder) ||
		errors.Is(err, ErrDuplicateInvoice) ||
		errors.Is(err, ErrWorkOrderReferenced)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkOrderNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrMilestoneNotFound) ||
		errors.Is(err, ErrIndexOutOfRange)
}
