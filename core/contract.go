package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Runtime errors that can be returned to programs and transaction senders
var (
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrAccountNotFound         = errors.New("account not found")
	ErrAccountAlreadyInUse     = errors.New("account already in use")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientFundsForFee = errors.New("insufficient funds for fee")
	ErrInvalidFeePayer         = errors.New("fee payer is not a system account")
	ErrMissingSignature        = errors.New("missing required signature")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrMissingAccount          = errors.New("account not in instruction")
	ErrReadonlyModified        = errors.New("read-only account modified")
	ErrExternalDataModified    = errors.New("account not owned by program modified")
	ErrUnbalancedInstruction   = errors.New("sum of account balances changed")
	ErrProgramNotFound         = errors.New("program not found")
	ErrProgramPanicked         = errors.New("program panicked")
	ErrInvalidAccountData      = errors.New("invalid account data length")
	ErrArithmeticOverflow      = errors.New("lamport arithmetic overflow")
	ErrDuplicateTransaction    = errors.New("transaction already processed")
	ErrReceiptNotFound         = errors.New("receipt not found")
)

// ProgramError is a program-defined failure with a stable numeric code.
// Two ProgramErrors match under errors.Is when their codes are equal,
// so a wrapped instance still matches the package-level sentinel.
type ProgramError struct {
	Code    uint32
	Name    string
	Message string

	cause error
}

// NewProgramError declares a program error.
func NewProgramError(code uint32, name, message string) *ProgramError {
	return &ProgramError{Code: code, Name: name, Message: message}
}

func (e *ProgramError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Name, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

// Is matches any ProgramError with the same code.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *ProgramError) Unwrap() error {
	return e.cause
}

// Wrap returns a copy of e carrying cause.
func (e *ProgramError) Wrap(cause error) error {
	return &ProgramError{Code: e.Code, Name: e.Name, Message: e.Message, cause: cause}
}
