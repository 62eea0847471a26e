// Package core defines the interfaces a program uses to interact with the ledger runtime.
// Program authors only need the types in this package to write a program.
package core

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/pkg/errors"
)

// AddressLen is the byte length of an account address (an ed25519 public key).
const AddressLen = 32

// Address identifies an account on the ledger
type Address [AddressLen]byte

// Hash identifies a transaction
type Hash [32]byte

var (
	ZeroAddress = Address{}
	ZeroHash    = Hash{}

	// SystemProgramID owns every plain wallet account and performs allocation.
	SystemProgramID = Address{}
)

func (addr Address) String() string {
	return base58.Encode(addr[:])
}

// AddressFromString decodes a base58 address.
func AddressFromString(str string) (Address, error) {
	var addr Address
	raw := base58.Decode(str)
	if len(raw) != AddressLen {
		return addr, errors.Wrapf(ErrInvalidArgument, "address %q decodes to %d bytes", str, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// MustAddressFromString is AddressFromString for constants; it panics on bad input.
func MustAddressFromString(str string) Address {
	addr, err := AddressFromString(str)
	if err != nil {
		panic(err)
	}
	return addr
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromString decodes a hex transaction hash.
func HashFromString(str string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(str)
	if err != nil {
		return h, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	if len(raw) != len(h) {
		return h, errors.Wrapf(ErrInvalidArgument, "hash %q has %d bytes", str, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// GetHash returns the sha256 digest of data.
func GetHash(data []byte) Hash {
	return sha256.Sum256(data)
}

// Context is the program's view of the runtime while one instruction executes.
// It must not be retained after Execute returns.
type Context interface {
	// Block information
	ProgramID() Address  // Address of the executing program
	BlockHeight() uint64 // Height of the block being produced
	BlockTime() int64    // Unix timestamp of the block being produced

	// IsSigner reports whether addr signed the enclosing transaction
	IsSigner(addr Address) bool

	// System services. Accounts must be part of the instruction's account list.
	CreateAccount(payer, addr Address, space uint64, authority Address) error // Allocate and fund rent-exempt storage
	CloseAccount(addr, recipient Address) error                               // Destroy storage, reclaim lamports
	Transfer(from, to Address, lamports uint64) error                         // Move lamports

	// ConsumeCompute charges units against the transaction's compute budget
	ConsumeCompute(units uint64) error

	// Logs and events
	Msg(message string)                     // Append a line to the transaction log
	Log(eventName string, keyValues ...any) // Emit a structured event
}

// AccountInfo is a loaded account handed to a program.
// The program mutates Data in place; the runtime persists writable accounts after a successful run.
type AccountInfo struct {
	Address    Address
	IsSigner   bool
	IsWritable bool

	Lamports  uint64
	Owner     Address
	Authority Address
	Data      []byte
}

// Exists reports whether the account holds lamports or data.
func (a *AccountInfo) Exists() bool {
	return a.Lamports > 0 || len(a.Data) > 0
}

// Program is a native program hosted by the runtime.
type Program interface {
	ID() Address
	Name() string
	Execute(ctx Context, accounts []*AccountInfo, data []byte) error
}
