package counter

import (
	"github.com/pkg/errors"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

// AccountReader reads committed accounts. Both types.Ledger and the runtime
// engine implement it.
type AccountReader interface {
	Account(addr core.Address) (*types.Account, error)
}

// Fetch returns the counter record stored at addr.
func Fetch(reader AccountReader, addr core.Address) (Record, error) {
	acct, err := reader.Account(addr)
	if errors.Is(err, core.ErrAccountNotFound) {
		return Record{}, ErrAccountNotInitialized.Wrap(err)
	}
	if err != nil {
		return Record{}, err
	}
	if acct.Owner != ProgramID {
		return Record{}, ErrAccountShapeMismatch.Wrap(errors.Errorf("%s is owned by %s", addr, acct.Owner))
	}
	return DecodeRecord(acct.Data)
}

// FetchNullable is Fetch that reports an absent record as nil.
func FetchNullable(reader AccountReader, addr core.Address) (*Record, error) {
	r, err := Fetch(reader, addr)
	if errors.Is(err, ErrAccountNotInitialized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AccountLister lists committed accounts by owner. Both types.Ledger and the
// runtime engine implement it.
type AccountLister interface {
	AccountsByOwner(owner core.Address) ([]types.KeyedAccount, error)
}

// Entry is a counter record together with the account holding it.
type Entry struct {
	Address   core.Address
	Authority core.Address
	Lamports  uint64
	Record    Record
}

// All returns every counter record, ordered by address. Accounts of the
// program that do not hold a record are skipped.
func All(lister AccountLister) ([]Entry, error) {
	accounts, err := lister.AccountsByOwner(ProgramID)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(accounts))
	for _, ka := range accounts {
		r, err := DecodeRecord(ka.Account.Data)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Address:   ka.Address,
			Authority: ka.Account.Authority,
			Lamports:  ka.Account.Lamports,
			Record:    r,
		})
	}
	return entries, nil
}
