// Package ledgertest holds the behavior every ledger backend must share.
package ledgertest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

// Run exercises a backend; newLedger must return an empty ledger.
func Run(t *testing.T, newLedger func(t *testing.T) types.Ledger) {
	tests := []struct {
		name string
		fn   func(t *testing.T, l types.Ledger)
	}{
		{"EmptyLedger", testEmptyLedger},
		{"CommitAccount", testCommitAccount},
		{"ReadOwnWrites", testReadOwnWrites},
		{"Rollback", testRollback},
		{"DeleteAccount", testDeleteAccount},
		{"Receipts", testReceipts},
		{"Head", testHead},
		{"ClosedBatch", testClosedBatch},
		{"MaxLamports", testMaxLamports},
		{"AccountsByOwner", testAccountsByOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			t.Cleanup(func() { _ = l.Close() })
			tt.fn(t, l)
		})
	}
}

var (
	alice = core.Address{0xa1}
	bob   = core.Address{0xb0}
)

func sampleAccount() *types.Account {
	return &types.Account{
		Lamports:  953520,
		Owner:     core.Address{0xcc},
		Authority: alice,
		Data:      []byte{1, 2, 3, 4, 5, 6, 7, 8, 0},
	}
}

func testEmptyLedger(t *testing.T, l types.Ledger) {
	_, err := l.Account(alice)
	require.ErrorIs(t, err, core.ErrAccountNotFound)

	_, err = l.Receipt(core.Hash{1})
	require.ErrorIs(t, err, core.ErrReceiptNotFound)

	head, err := l.Head()
	require.NoError(t, err)
	assert.Equal(t, types.BlockInfo{}, head)
}

func testCommitAccount(t *testing.T, l types.Ledger) {
	b, err := l.Begin()
	require.NoError(t, err)
	require.NoError(t, b.PutAccount(alice, sampleAccount()))
	require.NoError(t, b.PutAccount(bob, &types.Account{Lamports: 10}))

	// Nothing is visible before commit
	_, err = l.Account(alice)
	require.ErrorIs(t, err, core.ErrAccountNotFound)

	require.NoError(t, b.Commit())

	got, err := l.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, sampleAccount(), got)

	got, err = l.Account(bob)
	require.NoError(t, err)
	assert.Equal(t, &types.Account{Lamports: 10}, got)

	// Overwrite in a second batch
	b, err = l.Begin()
	require.NoError(t, err)
	updated := sampleAccount()
	updated.Data[8] = 42
	require.NoError(t, b.PutAccount(alice, updated))
	require.NoError(t, b.Commit())

	got, err = l.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, byte(42), got.Data[8])
}

func testReadOwnWrites(t *testing.T, l types.Ledger) {
	b, err := l.Begin()
	require.NoError(t, err)
	defer func() { _ = b.Rollback() }()

	_, err = b.GetAccount(alice)
	require.ErrorIs(t, err, core.ErrAccountNotFound)

	require.NoError(t, b.PutAccount(alice, sampleAccount()))
	got, err := b.GetAccount(alice)
	require.NoError(t, err)
	assert.Equal(t, sampleAccount(), got)

	require.NoError(t, b.DeleteAccount(alice))
	_, err = b.GetAccount(alice)
	require.ErrorIs(t, err, core.ErrAccountNotFound)
}

func testRollback(t *testing.T, l types.Ledger) {
	b, err := l.Begin()
	require.NoError(t, err)
	require.NoError(t, b.PutAccount(alice, sampleAccount()))
	require.NoError(t, b.Commit())

	b, err = l.Begin()
	require.NoError(t, err)
	changed := sampleAccount()
	changed.Lamports = 1
	require.NoError(t, b.PutAccount(alice, changed))
	require.NoError(t, b.PutAccount(bob, &types.Account{Lamports: 7}))
	require.NoError(t, b.PutHead(types.BlockInfo{Height: 9, Time: 9}))
	require.NoError(t, b.Rollback())

	got, err := l.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, sampleAccount(), got)

	_, err = l.Account(bob)
	require.ErrorIs(t, err, core.ErrAccountNotFound)

	head, err := l.Head()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), head.Height)
}

func testDeleteAccount(t *testing.T, l types.Ledger) {
	b, err := l.Begin()
	require.NoError(t, err)
	require.NoError(t, b.PutAccount(alice, sampleAccount()))
	require.NoError(t, b.Commit())

	b, err = l.Begin()
	require.NoError(t, err)
	require.NoError(t, b.DeleteAccount(alice))
	// Deleting an absent account is not an error
	require.NoError(t, b.DeleteAccount(bob))
	require.NoError(t, b.Commit())

	_, err = l.Account(alice)
	require.ErrorIs(t, err, core.ErrAccountNotFound)

	// The address can be reused
	b, err = l.Begin()
	require.NoError(t, err)
	require.NoError(t, b.PutAccount(alice, &types.Account{Lamports: 3}))
	require.NoError(t, b.Commit())
	got, err := l.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Lamports)
}

func testReceipts(t *testing.T, l types.Ledger) {
	r := &types.Receipt{
		ID:          core.GetHash([]byte("tx-1")),
		BlockHeight: 1,
		BlockTime:   1700000000,
		FeePayer:    alice,
		Fee:         5000,
		Success:     true,
		ComputeUsed: 300,
		Logs:        []string{"Program log: Instruction: Initialize"},
		Events: []types.Event{{
			Program:    core.Address{0xcc},
			Name:       "Initialized",
			Attributes: []types.Attribute{{Key: "count", Value: "0"}},
		}},
	}

	b, err := l.Begin()
	require.NoError(t, err)
	require.NoError(t, b.PutReceipt(r))
	require.NoError(t, b.Commit())

	got, err := l.Receipt(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.True(t, got.Success)
	assert.Equal(t, r.Fee, got.Fee)
	assert.Equal(t, r.Logs, got.Logs)
	assert.Equal(t, r.Events, got.Events)
}

func testHead(t *testing.T, l types.Ledger) {
	for h := uint64(1); h <= 3; h++ {
		b, err := l.Begin()
		require.NoError(t, err)
		require.NoError(t, b.PutHead(types.BlockInfo{Height: h, Time: int64(100 + h)}))
		require.NoError(t, b.Commit())
	}
	head, err := l.Head()
	require.NoError(t, err)
	assert.Equal(t, types.BlockInfo{Height: 3, Time: 103}, head)
}

func testClosedBatch(t *testing.T, l types.Ledger) {
	b, err := l.Begin()
	require.NoError(t, err)
	require.NoError(t, b.Commit())

	require.ErrorIs(t, b.Commit(), types.ErrBatchClosed)
	require.ErrorIs(t, b.Rollback(), types.ErrBatchClosed)
	require.ErrorIs(t, b.PutAccount(alice, sampleAccount()), types.ErrBatchClosed)
	_, err = b.GetAccount(alice)
	require.ErrorIs(t, err, types.ErrBatchClosed)
}

func testMaxLamports(t *testing.T, l types.Ledger) {
	for _, lamports := range []uint64{math.MaxInt64 + 1, math.MaxUint64} {
		b, err := l.Begin()
		require.NoError(t, err)
		require.NoError(t, b.PutAccount(alice, &types.Account{Lamports: lamports}))

		got, err := b.GetAccount(alice)
		require.NoError(t, err)
		assert.Equal(t, lamports, got.Lamports)
		require.NoError(t, b.Commit())

		got, err = l.Account(alice)
		require.NoError(t, err)
		assert.Equal(t, lamports, got.Lamports)
	}
}

func testAccountsByOwner(t *testing.T, l types.Ledger) {
	program := core.Address{0xcc}
	first, second, gone := core.Address{0x01}, core.Address{0xf0}, core.Address{0x02}

	b, err := l.Begin()
	require.NoError(t, err)
	// Inserted out of address order
	require.NoError(t, b.PutAccount(second, &types.Account{Lamports: 2, Owner: program, Data: []byte{2}}))
	require.NoError(t, b.PutAccount(first, &types.Account{Lamports: 1, Owner: program, Data: []byte{1}}))
	require.NoError(t, b.PutAccount(gone, &types.Account{Lamports: 3, Owner: program}))
	require.NoError(t, b.PutAccount(alice, &types.Account{Lamports: 10}))
	require.NoError(t, b.Commit())

	b, err = l.Begin()
	require.NoError(t, err)
	require.NoError(t, b.DeleteAccount(gone))
	// Uncommitted writes are not listed
	require.NoError(t, b.PutAccount(bob, &types.Account{Lamports: 4, Owner: program}))

	got, err := l.AccountsByOwner(program)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.NoError(t, b.Commit())

	got, err = l.AccountsByOwner(program)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, first, got[0].Address)
	assert.Equal(t, []byte{1}, got[0].Account.Data)
	assert.Equal(t, bob, got[1].Address)
	assert.Equal(t, second, got[2].Address)
	assert.Equal(t, uint64(2), got[2].Account.Lamports)

	system, err := l.AccountsByOwner(core.SystemProgramID)
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, alice, system[0].Address)

	none, err := l.AccountsByOwner(core.Address{0xdd})
	require.NoError(t, err)
	assert.Empty(t, none)
}
