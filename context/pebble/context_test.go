package pebble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/counter/context/ledgertest"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

func newTestLedger(t *testing.T) types.Ledger {
	ledger, err := NewContext(map[string]any{"dir": t.TempDir()})
	require.NoError(t, err)
	return ledger
}

func TestLedger(t *testing.T) {
	ledgertest.Run(t, newTestLedger)
}

func TestKeys(t *testing.T) {
	addr := core.Address{1, 2, 3}
	key := keys.AccountKey(addr)
	require.Len(t, key, 1+core.AddressLen)
	assert.Equal(t, accountPrefix, key[0])

	got, ok := keys.ExtractAddressFromKey(key)
	require.True(t, ok)
	assert.Equal(t, addr, got)

	_, ok = keys.ExtractAddressFromKey(keys.ReceiptKey(core.Hash{1}))
	assert.False(t, ok)
	assert.Equal(t, []byte{'h'}, keys.HeadKey())
}

func TestReopenKeepsState(t *testing.T) {
	dir := t.TempDir()
	ledger, err := NewContext(map[string]any{"dir": dir})
	require.NoError(t, err)

	addr := core.Address{9}
	b, err := ledger.Begin()
	require.NoError(t, err)
	require.NoError(t, b.PutAccount(addr, &types.Account{Lamports: 11}))
	require.NoError(t, b.Commit())
	require.NoError(t, ledger.Close())

	ledger, err = NewContext(map[string]any{"dir": dir})
	require.NoError(t, err)
	defer ledger.Close()

	acct, err := ledger.Account(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), acct.Lamports)
}
