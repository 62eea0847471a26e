package counter

import (
	"github.com/near/borsh-go"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

// Instruction names
const (
	Initialize = "initialize"
	Increment  = "increment"
	Decrement  = "decrement"
	Set        = "set"
	Close      = "close"
)

// SetArgs is the argument list of set.
type SetArgs struct {
	Value uint8
}

// InstructionDiscriminator returns the tag that selects the named instruction.
func InstructionDiscriminator(name string) [DiscriminatorLen]byte {
	return discriminator("global", name)
}

func instructionData(name string, args any) []byte {
	d := InstructionDiscriminator(name)
	data := append([]byte(nil), d[:]...)
	if args != nil {
		body, err := borsh.Serialize(args)
		if err != nil {
			// Only fixed-size argument structs are encoded here
			panic(err)
		}
		data = append(data, body...)
	}
	return data
}

func writable(addr core.Address, signer bool) types.AccountMeta {
	return types.AccountMeta{Address: addr, IsSigner: signer, IsWritable: true}
}

// NewInitializeInstruction allocates a counter record at record, paid by payer.
// Both must sign the transaction.
func NewInitializeInstruction(payer, record core.Address) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			writable(payer, true),
			writable(record, true),
			{Address: core.SystemProgramID},
		},
		Data: instructionData(Initialize, nil),
	}
}

// NewIncrementInstruction adds one to the count.
func NewIncrementInstruction(record core.Address) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{writable(record, false)},
		Data:      instructionData(Increment, nil),
	}
}

// NewDecrementInstruction subtracts one from the count.
func NewDecrementInstruction(record core.Address) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{writable(record, false)},
		Data:      instructionData(Decrement, nil),
	}
}

// NewSetInstruction overwrites the count.
func NewSetInstruction(record core.Address, value uint8) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{writable(record, false)},
		Data:      instructionData(Set, SetArgs{Value: value}),
	}
}

// NewCloseInstruction destroys the record and returns its lamports to payer,
// which must be the party that initialized it.
func NewCloseInstruction(payer, record core.Address) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			writable(payer, true),
			writable(record, false),
		},
		Data: instructionData(Close, nil),
	}
}
