// Package memory implements a ledger held entirely in process memory.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/govm-net/counter/context"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

// Ledger keeps committed state in maps guarded by a single lock
type Ledger struct {
	mu sync.RWMutex

	accounts map[core.Address]*types.Account
	receipts map[core.Hash]*types.Receipt
	head     types.BlockInfo
}

func init() {
	context.Register(context.MemoryContextType, NewContext)
}

// NewContext is the registry constructor; the memory ledger takes no parameters
func NewContext(params map[string]any) (types.Ledger, error) {
	return NewLedger(), nil
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[core.Address]*types.Account),
		receipts: make(map[core.Hash]*types.Receipt),
	}
}

// Begin opens an overlay batch
func (l *Ledger) Begin() (types.Batch, error) {
	return &batch{
		ledger:   l,
		accounts: make(map[core.Address]*types.Account),
	}, nil
}

// Account returns a copy of committed state
func (l *Ledger) Account(addr core.Address) (*types.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[addr]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return acct.Clone(), nil
}

// AccountsByOwner returns copies of every account owned by owner
func (l *Ledger) AccountsByOwner(owner core.Address) ([]types.KeyedAccount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []types.KeyedAccount
	for addr, acct := range l.accounts {
		if acct.Owner == owner {
			out = append(out, types.KeyedAccount{Address: addr, Account: acct.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

// Receipt returns a committed receipt
func (l *Ledger) Receipt(id core.Hash) (*types.Receipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.receipts[id]
	if !ok {
		return nil, core.ErrReceiptNotFound
	}
	return cloneReceipt(r), nil
}

// Head returns the last committed block
func (l *Ledger) Head() (types.BlockInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head, nil
}

func (l *Ledger) Close() error {
	return nil
}

// batch buffers writes; a nil account marks a deletion
type batch struct {
	ledger   *Ledger
	accounts map[core.Address]*types.Account
	receipts []*types.Receipt
	head     *types.BlockInfo
	closed   bool
}

func (b *batch) GetAccount(addr core.Address) (*types.Account, error) {
	if b.closed {
		return nil, types.ErrBatchClosed
	}
	if acct, ok := b.accounts[addr]; ok {
		if acct == nil {
			return nil, core.ErrAccountNotFound
		}
		return acct.Clone(), nil
	}
	return b.ledger.Account(addr)
}

func (b *batch) PutAccount(addr core.Address, account *types.Account) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.accounts[addr] = account.Clone()
	return nil
}

func (b *batch) DeleteAccount(addr core.Address) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.accounts[addr] = nil
	return nil
}

func (b *batch) PutReceipt(receipt *types.Receipt) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.receipts = append(b.receipts, cloneReceipt(receipt))
	return nil
}

func (b *batch) PutHead(head types.BlockInfo) error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.head = &head
	return nil
}

// Commit applies all buffered writes under the ledger lock
func (b *batch) Commit() error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.closed = true

	l := b.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	for addr, acct := range b.accounts {
		if acct == nil {
			delete(l.accounts, addr)
			continue
		}
		l.accounts[addr] = acct
	}
	for _, r := range b.receipts {
		l.receipts[r.ID] = r
	}
	if b.head != nil {
		l.head = *b.head
	}
	return nil
}

func (b *batch) Rollback() error {
	if b.closed {
		return types.ErrBatchClosed
	}
	b.closed = true
	b.accounts = nil
	b.receipts = nil
	return nil
}

func cloneReceipt(r *types.Receipt) *types.Receipt {
	out := *r
	out.Logs = append([]string(nil), r.Logs...)
	out.Events = make([]types.Event, len(r.Events))
	for i, ev := range r.Events {
		ev.Attributes = append([]types.Attribute(nil), ev.Attributes...)
		out.Events[i] = ev
	}
	return &out
}
