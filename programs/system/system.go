// Package system is the built-in program that owns wallet accounts and moves
// lamports between them.
package system

import (
	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

// TransferTag selects the transfer instruction. Data is the borsh encoding of
// TransferArgs: a little endian u32 tag followed by a u64 amount.
const TransferTag uint32 = 2

const transferDataLen = 4 + 8

// ErrInvalidInstruction is returned for data that is not a system instruction
var ErrInvalidInstruction = errors.New("invalid system instruction")

// TransferArgs is the payload of a transfer instruction
type TransferArgs struct {
	Tag      uint32
	Lamports uint64
}

// NewTransferInstruction moves lamports from a signing wallet to any account.
func NewTransferInstruction(from, to core.Address, lamports uint64) types.Instruction {
	data, err := borsh.Serialize(TransferArgs{Tag: TransferTag, Lamports: lamports})
	if err != nil {
		// Fixed size integers always encode
		panic(err)
	}
	return types.Instruction{
		ProgramID: core.SystemProgramID,
		Accounts: []types.AccountMeta{
			{Address: from, IsSigner: true, IsWritable: true},
			{Address: to, IsWritable: true},
		},
		Data: data,
	}
}

// DecodeTransfer parses transfer instruction data.
func DecodeTransfer(data []byte) (TransferArgs, error) {
	var args TransferArgs
	if len(data) != transferDataLen {
		return args, errors.Wrapf(ErrInvalidInstruction, "%d bytes", len(data))
	}
	if err := borsh.Deserialize(&args, data); err != nil {
		return args, errors.Wrap(ErrInvalidInstruction, err.Error())
	}
	if args.Tag != TransferTag {
		return args, errors.Wrapf(ErrInvalidInstruction, "unknown tag %d", args.Tag)
	}
	return args, nil
}

// Program implements core.Program for the system program id.
type Program struct{}

func (Program) ID() core.Address { return core.SystemProgramID }

func (Program) Name() string { return "system" }

func (Program) Execute(ctx core.Context, accounts []*core.AccountInfo, data []byte) error {
	args, err := DecodeTransfer(data)
	if err != nil {
		return err
	}
	if len(accounts) < 2 {
		return errors.Wrapf(core.ErrMissingAccount, "transfer needs 2 accounts, got %d", len(accounts))
	}
	from, to := accounts[0].Address, accounts[1].Address
	if !ctx.IsSigner(from) {
		return errors.Wrapf(core.ErrMissingSignature, "%s", from)
	}
	ctx.Msg("Instruction: Transfer")
	return ctx.Transfer(from, to, args.Lamports)
}
