// Package errors provides the error taxonomy of the guest boundary.
// All error types support error unwrapping via errors.As() and errors.Is().
//
// Only AllocationError is fatal. Every other error is recovered at the
// boundary and turned into an error-shaped response or an error string.
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/ledger-guest/domain/entities"
)

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// AllocationError reports that an allocation would exceed the arena limit.
// It is raised as a panic value: allocation failure has no recovery path.
type AllocationError struct {
	Requested int
	Current   int
	Limit     int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("memory allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
		e.Requested, e.Current, e.Limit)
}

// ToErrorDetail implements DetailedError.
func (e *AllocationError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "allocation"}
}

// UnknownAddressError reports an access to or release of an address the arena
// does not currently hold. A double release produces this error.
type UnknownAddressError struct {
	Op   string
	Addr uint32
}

func (e *UnknownAddressError) Error() string {
	return fmt.Sprintf("%s: address 0x%x is not a live allocation", e.Op, e.Addr)
}

// ToErrorDetail implements DetailedError.
func (e *UnknownAddressError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("malformed_buffer", e.Error()).WithCode(e.Op)
}

// EncodingError reports bytes that are not valid UTF-8, or a string that
// cannot be represented in the requested encoding.
type EncodingError struct {
	Reason string
	Offset int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error at byte %d: %s", e.Offset, e.Reason)
}

// ToErrorDetail implements DetailedError.
func (e *EncodingError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("encoding", e.Error()).WithDetails(map[string]any{"offset": e.Offset})
}

// MalformedBufferError reports a buffer that is truncated, out of bounds or
// lacks its terminator within the scan limit.
type MalformedBufferError struct {
	Err    error
	Reason string
	Addr   uint32
}

func (e *MalformedBufferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed buffer at 0x%x: %s: %v", e.Addr, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed buffer at 0x%x: %s", e.Addr, e.Reason)
}

func (e *MalformedBufferError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *MalformedBufferError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "malformed_buffer"}
}

// ParseError reports structured input that could not be parsed.
type ParseError struct {
	Err  error
	What string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ParseError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("parse", e.Error()).WithCode(e.What)
}

// MissingBalanceError reports a query result without a usable
// results[0].balance field.
type MissingBalanceError struct {
	Err error
}

func (e *MissingBalanceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to extract balance from result: %v", e.Err)
	}
	return "failed to extract balance from result"
}

func (e *MissingBalanceError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *MissingBalanceError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "missing_balance"}
}

// InvalidAmountError reports an amount that is not a decimal number.
type InvalidAmountError struct {
	Err    error
	Amount string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("failed to parse amount %q as decimal: %v", e.Amount, e.Err)
}

func (e *InvalidAmountError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *InvalidAmountError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "invalid_amount"}
}

// InvalidAccountError reports an account identifier rejected before it is
// substituted into a query template.
type InvalidAccountError struct {
	Err     error
	Account string
}

func (e *InvalidAccountError) Error() string {
	return fmt.Sprintf("invalid account identifier %q: %v", e.Account, e.Err)
}

func (e *InvalidAccountError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *InvalidAccountError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "invalid_account"}
}
