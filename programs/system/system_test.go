package system_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/crypto/ed25519"
	"github.com/govm-net/counter/programs/system"
	"github.com/govm-net/counter/runtime"
	"github.com/govm-net/counter/types"
)

func TestTransferInstructionLayout(t *testing.T) {
	from, to := core.Address{1}, core.Address{2}
	ix := system.NewTransferInstruction(from, to, 100_000_000)

	assert.Equal(t, core.SystemProgramID, ix.ProgramID)
	assert.Equal(t, []byte{2, 0, 0, 0, 0x00, 0xe1, 0xf5, 0x05, 0, 0, 0, 0}, ix.Data)
	require.Len(t, ix.Accounts, 2)
	assert.True(t, ix.Accounts[0].IsSigner)
	assert.False(t, ix.Accounts[1].IsSigner)

	args, err := system.DecodeTransfer(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), args.Lamports)

	for name, data := range map[string][]byte{
		"empty":       nil,
		"short":       ix.Data[:8],
		"unknown tag": {0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := system.DecodeTransfer(data)
			require.ErrorIs(t, err, system.ErrInvalidInstruction)
		})
	}
}

type env struct {
	engine *runtime.Engine
	alice  ed25519.PrivateKey
	nonce  uint64
}

func newEnv(t *testing.T) *env {
	e, err := runtime.NewEngine(runtime.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	alice, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, e.Airdrop(alice.Address(), 1_000_000))
	return &env{engine: e, alice: alice}
}

func (v *env) send(t *testing.T, ixs ...types.Instruction) (*types.Receipt, error) {
	v.nonce++
	tx := types.NewTransaction(v.alice.Address(), v.nonce, ixs...)
	require.NoError(t, tx.Sign(v.alice))
	return v.engine.Execute(context.Background(), tx)
}

func (v *env) balance(t *testing.T, addr core.Address) uint64 {
	b, err := v.engine.Balance(addr)
	require.NoError(t, err)
	return b
}

func TestTransfer(t *testing.T) {
	v := newEnv(t)
	bob := core.Address{0xb0}

	receipt, err := v.send(t, system.NewTransferInstruction(v.alice.Address(), bob, 250_000))
	require.NoError(t, err)
	assert.Contains(t, receipt.Logs, "Program log: Instruction: Transfer")

	assert.Equal(t, uint64(1_000_000-5000-250_000), v.balance(t, v.alice.Address()))
	acct, err := v.engine.Account(bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000), acct.Lamports)
	assert.Equal(t, core.SystemProgramID, acct.Owner)
}

func TestTransferFailures(t *testing.T) {
	bob := core.Address{0xb0}

	t.Run("overdraft", func(t *testing.T) {
		v := newEnv(t)
		receipt, err := v.send(t, system.NewTransferInstruction(v.alice.Address(), bob, 1_000_000))
		require.ErrorIs(t, err, core.ErrInsufficientFunds)
		assert.False(t, receipt.Success)
		assert.Equal(t, uint64(1_000_000-5000), v.balance(t, v.alice.Address()))
		assert.Zero(t, v.balance(t, bob))
	})

	t.Run("source did not sign", func(t *testing.T) {
		v := newEnv(t)
		carol, err := ed25519.GeneratePrivateKey()
		require.NoError(t, err)
		require.NoError(t, v.engine.Airdrop(carol.Address(), 500))

		ix := system.NewTransferInstruction(carol.Address(), bob, 500)
		ix.Accounts[0].IsSigner = false
		_, err = v.send(t, ix)
		require.ErrorIs(t, err, core.ErrMissingSignature)
		assert.Equal(t, uint64(500), v.balance(t, carol.Address()))
	})

	t.Run("malformed data", func(t *testing.T) {
		v := newEnv(t)
		ix := system.NewTransferInstruction(v.alice.Address(), bob, 1)
		ix.Data = ix.Data[:4]
		_, err := v.send(t, ix)
		require.ErrorIs(t, err, system.ErrInvalidInstruction)
	})
}
