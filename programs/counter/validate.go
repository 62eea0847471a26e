package counter

import (
	"github.com/govm-net/counter/core"
)

// Validation is the outcome of checking the accounts handed to an instruction.
type Validation int

const (
	Valid Validation = iota
	ShapeMismatch
	Unauthorized
	NotInitialized
)

func (v Validation) String() string {
	switch v {
	case Valid:
		return "valid"
	case ShapeMismatch:
		return "shape mismatch"
	case Unauthorized:
		return "unauthorized"
	case NotInitialized:
		return "not initialized"
	}
	return "unknown"
}

// Err maps the outcome to the program error reported to the caller.
func (v Validation) Err() error {
	switch v {
	case Valid:
		return nil
	case ShapeMismatch:
		return ErrAccountShapeMismatch
	case Unauthorized:
		return ErrAuthorization
	case NotInitialized:
		return ErrAccountNotInitialized
	}
	return ErrAccountShapeMismatch
}

// ValidateRecord checks that record holds a counter record of program.
func ValidateRecord(program core.Address, record *core.AccountInfo) Validation {
	if !record.Exists() {
		return NotInitialized
	}
	if record.Owner != program {
		return ShapeMismatch
	}
	if _, err := DecodeRecord(record.Data); err != nil {
		return ShapeMismatch
	}
	return Valid
}

// ValidateClose additionally requires payer to be the signing authority of record.
func ValidateClose(program core.Address, payer, record *core.AccountInfo) Validation {
	if v := ValidateRecord(program, record); v != Valid {
		return v
	}
	if !payer.IsSigner || payer.Address != record.Authority {
		return Unauthorized
	}
	return Valid
}
