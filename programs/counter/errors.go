package counter

import "github.com/govm-net/counter/core"

// Errors returned by the counter program. Codes start at 6000.
var (
	ErrAllocation                   = core.NewProgramError(6000, "AllocationError", "counter record could not be allocated")
	ErrArithmeticOverflow           = core.NewProgramError(6001, "ArithmeticOverflow", "count would exceed 255")
	ErrArithmeticUnderflow          = core.NewProgramError(6002, "ArithmeticUnderflow", "count would drop below 0")
	ErrAuthorization                = core.NewProgramError(6003, "AuthorizationError", "caller is not the record authority")
	ErrAccountNotInitialized        = core.NewProgramError(6004, "AccountNotInitialized", "counter record does not exist")
	ErrAccountShapeMismatch         = core.NewProgramError(6005, "AccountShapeMismatch", "account is not a counter record")
	ErrInstructionNotFound          = core.NewProgramError(6006, "InstructionNotFound", "unknown instruction")
	ErrInstructionDidNotDeserialize = core.NewProgramError(6007, "InstructionDidNotDeserialize", "instruction arguments could not be decoded")
)
