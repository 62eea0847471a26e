package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/counter/api"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/programs/counter"
	"github.com/govm-net/counter/types"
)

func run(t *testing.T, home, backend string, args ...string) (string, error) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--home", home, "--backend", backend, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCounterWorkflow(t *testing.T) {
	for _, backend := range []string{"db", "pebble"} {
		t.Run(backend, func(t *testing.T) {
			home := t.TempDir()
			mustRun := func(args ...string) string {
				out, err := run(t, home, backend, args...)
				require.NoError(t, err, out)
				return out
			}

			mustRun("keys", "generate", "payer")
			out := mustRun("airdrop", "payer", "1000000000")
			assert.Contains(t, out, "1000000000 lamports")

			out = mustRun("initialize", "c1")
			assert.Contains(t, out, "status:  success")
			assert.Contains(t, out, "Program log: Instruction: Initialize")

			mustRun("increment", "c1")
			mustRun("increment", "c1")
			mustRun("decrement", "c1")
			out = mustRun("show", "c1")
			assert.Contains(t, out, "count=1")

			mustRun("set", "c1", "42")
			out = mustRun("--output", "json", "show", "c1")
			var view recordView
			require.NoError(t, json.Unmarshal([]byte(out), &view))
			assert.Equal(t, uint8(42), view.Count)
			assert.Equal(t, types.RentExemptMinimum(counter.Space), view.Lamports)

			mustRun("initialize", "c2")
			out = mustRun("--output", "json", "list")
			var records []recordView
			require.NoError(t, json.Unmarshal([]byte(out), &records))
			require.Len(t, records, 2)
			counts := map[uint8]bool{records[0].Count: true, records[1].Count: true}
			assert.Equal(t, map[uint8]bool{0: true, 42: true}, counts)

			out = mustRun("keys", "list")
			assert.Contains(t, out, "c1")
			assert.Contains(t, out, "payer")

			mustRun("close", "c1")
			_, err := run(t, home, backend, "show", "c1")
			require.ErrorIs(t, err, counter.ErrAccountNotInitialized)
			out = mustRun("list")
			assert.NotContains(t, out, "count=42")

			mustRun("keys", "generate", "friend")
			out, err = run(t, home, backend, "transfer", "friend", "9223372036854775808")
			require.ErrorIs(t, err, core.ErrInsufficientFunds)
			assert.Contains(t, out, "status:  failed")
			mustRun("airdrop", "payer", "9223372036854775808")
			mustRun("transfer", "friend", "9223372036854775808")
			out = mustRun("balance", "friend")
			assert.Contains(t, out, "9223372036854775808 lamports")
		})
	}
}

func TestFailedTransactionPrintsReceipt(t *testing.T) {
	home := t.TempDir()
	_, err := run(t, home, "pebble", "keys", "generate", "payer")
	require.NoError(t, err)
	_, err = run(t, home, "pebble", "airdrop", "payer", "1000000000")
	require.NoError(t, err)
	_, err = run(t, home, "pebble", "initialize", "c1")
	require.NoError(t, err)

	out, err := run(t, home, "pebble", "--output", "json", "decrement", "c1")
	require.ErrorIs(t, err, counter.ErrArithmeticUnderflow)

	var view receiptView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.False(t, view.Success)
	assert.Equal(t, uint32(6002), view.ErrorCode)
	assert.Equal(t, "ArithmeticUnderflow", view.ErrorName)

	out, err = run(t, home, "pebble", "receipt", view.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "status:  failed")
}

func TestArgumentErrors(t *testing.T) {
	home := t.TempDir()
	_, err := run(t, home, "memory", "set", "c1", "256")
	require.Error(t, err)

	_, err = run(t, home, "memory", "balance", "not-a-key")
	require.Error(t, err)

	_, err = run(t, home, "memory", "--log-level", "loud", "keys", "list")
	require.Error(t, err)

	_, err = run(t, home, "nope", "balance", "11111111111111111111111111111111")
	require.Error(t, err)
}

func TestActionsSign(t *testing.T) {
	home := t.TempDir()
	mustRun := func(args ...string) string {
		out, err := run(t, home, "pebble", args...)
		require.NoError(t, err, out)
		return out
	}
	mustRun("keys", "generate", "payer")
	mustRun("keys", "generate", "shop")
	mustRun("airdrop", "payer", "1000000000")

	var payer, shop keyView
	require.NoError(t, json.Unmarshal([]byte(mustRun("-o", "json", "keys", "show", "payer")), &payer))
	require.NoError(t, json.Unmarshal([]byte(mustRun("-o", "json", "keys", "show", "shop")), &shop))
	shopAddr, err := core.AddressFromString(shop.Address)
	require.NoError(t, err)

	handler := api.NewServer(api.DefaultConfig(shopAddr), nil)
	req := httptest.NewRequest(http.MethodPost, api.ActionPath+"?amount=0.25",
		strings.NewReader(`{"account":"`+payer.Address+`"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var action api.ActionPostResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &action))

	// Only the fee payer named by the action may sign it
	_, err = run(t, home, "pebble", "actions", "sign", "--payer", "shop", action.Transaction)
	require.Error(t, err)

	out := mustRun("actions", "sign", action.Transaction)
	assert.Contains(t, out, "status:  success")
	out = mustRun("balance", "shop")
	assert.Contains(t, out, "250000000 lamports")
}
