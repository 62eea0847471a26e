// Package types contains the host-side definitions shared by the runtime
// and the ledger backends that persist its state.
package types

import (
	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/govm-net/counter/core"
)

// Rent parameters. An account is exempt from rent while it holds two years of
// rent for its data plus the fixed per-account overhead.
const (
	AccountStorageOverhead uint64 = 128
	LamportsPerByteYear    uint64 = 3480
	ExemptionThreshold     uint64 = 2

	// MaxPermittedDataLength bounds a single allocation
	MaxPermittedDataLength uint64 = 10 * 1024 * 1024
)

// RentExemptMinimum returns the lamports an account of space bytes must hold.
func RentExemptMinimum(space uint64) uint64 {
	return (AccountStorageOverhead + space) * LamportsPerByteYear * ExemptionThreshold
}

// Account is the persisted state of one ledger address.
type Account struct {
	Lamports  uint64
	Owner     core.Address // Program allowed to change Data
	Authority core.Address // Party that allocated the account and may close it
	Data      []byte
}

// Exists reports whether the account holds lamports or data.
func (a *Account) Exists() bool {
	return a != nil && (a.Lamports > 0 || len(a.Data) > 0)
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.Data != nil {
		out.Data = append([]byte(nil), a.Data...)
	}
	return &out
}

// Encode serializes the account with borsh.
func (a *Account) Encode() ([]byte, error) {
	return borsh.Serialize(*a)
}

// DecodeAccount parses an account serialized by Encode.
func DecodeAccount(data []byte) (*Account, error) {
	var a Account
	if err := borsh.Deserialize(&a, data); err != nil {
		return nil, errors.Wrap(err, "failed to decode account")
	}
	if len(a.Data) == 0 {
		a.Data = nil
	}
	return &a, nil
}

// KeyedAccount pairs an account with its address.
type KeyedAccount struct {
	Address core.Address
	Account *Account
}

// BlockInfo is the head of the ledger.
type BlockInfo struct {
	Height uint64
	Time   int64
}

// Ledger is the storage backend of the runtime.
// Writes only happen through a Batch, which commits atomically.
type Ledger interface {
	// Begin opens a batch. Reads through the batch observe its own writes.
	Begin() (Batch, error)

	// Account returns committed state, or core.ErrAccountNotFound
	Account(addr core.Address) (*Account, error)
	// AccountsByOwner lists committed accounts owned by owner, ordered by address
	AccountsByOwner(owner core.Address) ([]KeyedAccount, error)
	// Receipt returns a committed receipt, or core.ErrReceiptNotFound
	Receipt(id core.Hash) (*Receipt, error)
	// Head returns the last committed block, the zero value before the first one
	Head() (BlockInfo, error)

	Close() error
}

// Batch is a set of writes applied to the ledger as a unit.
type Batch interface {
	GetAccount(addr core.Address) (*Account, error) // core.ErrAccountNotFound when absent
	PutAccount(addr core.Address, account *Account) error
	DeleteAccount(addr core.Address) error
	PutReceipt(receipt *Receipt) error
	PutHead(head BlockInfo) error

	// Commit applies every write; Rollback discards them. Either closes the batch.
	Commit() error
	Rollback() error
}

// ErrBatchClosed is returned when a batch is used after Commit or Rollback.
var ErrBatchClosed = errors.New("batch already closed")
