// Package pebble implements a ledger on a pebble key-value store.
package pebble

import (
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/govm-net/counter/context"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

const defaultDir = "./pebble"

var keys KeyGenerator

// Context implements types.Ledger on pebble
type Context struct {
	db *pebble.DB

	closeOnce sync.Once
}

func init() {
	context.Register(context.PebbleContextType, NewContext)
}

// NewContext opens the store in params["dir"]
func NewContext(params map[string]any) (types.Ledger, error) {
	dir := defaultDir
	if d, ok := params["dir"].(string); ok && d != "" {
		dir = d
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pebble at %s", dir)
	}
	return &Context{db: db}, nil
}

// Begin returns an indexed batch so reads see pending writes
func (c *Context) Begin() (types.Batch, error) {
	return &batch{b: c.db.NewIndexedBatch()}, nil
}

func (c *Context) Account(addr core.Address) (*types.Account, error) {
	return getAccount(c.db, addr)
}

// AccountsByOwner scans the account keyspace, which is already in address order
func (c *Context) AccountsByOwner(owner core.Address) ([]types.KeyedAccount, error) {
	lower, upper := keys.AccountRange()
	iter, err := c.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open iterator")
	}
	defer iter.Close()

	var out []types.KeyedAccount
	for iter.First(); iter.Valid(); iter.Next() {
		addr, ok := keys.ExtractAddressFromKey(iter.Key())
		if !ok {
			continue
		}
		acct, err := types.DecodeAccount(iter.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "account %s", addr)
		}
		if acct.Owner == owner {
			out = append(out, types.KeyedAccount{Address: addr, Account: acct})
		}
	}
	return out, errors.Wrap(iter.Error(), "failed to scan accounts")
}

func (c *Context) Receipt(id core.Hash) (*types.Receipt, error) {
	data, err := get(c.db, keys.ReceiptKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, core.ErrReceiptNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get receipt")
	}
	return types.DecodeReceipt(data)
}

func (c *Context) Head() (types.BlockInfo, error) {
	var head types.BlockInfo
	data, err := get(c.db, keys.HeadKey())
	if errors.Is(err, pebble.ErrNotFound) {
		return head, nil
	}
	if err != nil {
		return head, errors.Wrap(err, "failed to get head")
	}
	if err := borsh.Deserialize(&head, data); err != nil {
		return head, errors.Wrap(err, "failed to decode head")
	}
	return head, nil
}

func (c *Context) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.db.Close()
	})
	return err
}

type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

// get copies the value out before releasing it
func get(r reader, key []byte) ([]byte, error) {
	value, closer, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

func getAccount(r reader, addr core.Address) (*types.Account, error) {
	data, err := get(r, keys.AccountKey(addr))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, core.ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}
	return types.DecodeAccount(data)
}

type batch struct {
	b      *pebble.Batch
	closed bool
}

func (b *batch) GetAccount(addr core.Address) (*types.Account, error) {
	if b.closed {
		return nil, types.ErrBatchClosed
	}
	return getAccount(b.b, addr)
}

func (b *batch) PutAccount(addr core.Address, account *types.Account) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	data, err := account.Encode()
	if err != nil {
		return errors.Wrap(err, "failed to encode account")
	}
	return b.b.Set(keys.AccountKey(addr), data, nil)
}

func (b *batch) DeleteAccount(addr core.Address) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	return b.b.Delete(keys.AccountKey(addr), nil)
}

func (b *batch) PutReceipt(receipt *types.Receipt) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	data, err := receipt.Encode()
	if err != nil {
		return errors.Wrap(err, "failed to encode receipt")
	}
	return b.b.Set(keys.ReceiptKey(receipt.ID), data, nil)
}

func (b *batch) PutHead(head types.BlockInfo) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	data, err := borsh.Serialize(head)
	if err != nil {
		return errors.Wrap(err, "failed to encode head")
	}
	return b.b.Set(keys.HeadKey(), data, nil)
}

func (b *batch) Commit() error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.closed = true
	if err := b.b.Commit(pebble.Sync); err != nil {
		_ = b.b.Close()
		return errors.Wrap(err, "failed to commit batch")
	}
	return b.b.Close()
}

func (b *batch) Rollback() error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.closed = true
	return b.b.Close()
}
