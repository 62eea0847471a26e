package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/crypto/ed25519"
	"github.com/govm-net/counter/programs/system"
	"github.com/govm-net/counter/runtime"
	"github.com/govm-net/counter/types"
)

var recipient = core.Address{0x7e}

func newTestServer(t *testing.T) *httptest.Server {
	clock := func() time.Time { return time.Unix(1700000000, 42) }
	srv := httptest.NewServer(NewServer(DefaultConfig(recipient), zaptest.NewLogger(t), WithClock(clock)))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestGetAction(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + ActionPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var meta ActionGetResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	assert.Equal(t, "Support the counter", meta.Title)
	require.NotNil(t, meta.Links)
	require.Len(t, meta.Links.Actions, 1)
	assert.Equal(t, ActionPath+"?amount=0.1", meta.Links.Actions[0].Href)
	assert.Equal(t, "transaction", meta.Links.Actions[0].Type)
}

func TestPreflight(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+ActionPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestPostActionBuildsTransfer(t *testing.T) {
	tests := []struct {
		query    string
		lamports uint64
	}{
		{"", 100_000_000},
		{"?amount=0", 100_000_000},
		{"?amount=0.1", 100_000_000},
		{"?amount=2.5", 2_500_000_000},
		{"?amount=0.000000001", 1},
	}

	sender, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	body := `{"account":"` + sender.Address().String() + `"}`

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			srv := newTestServer(t)
			resp := post(t, srv.URL+ActionPath+tt.query, body)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var out ActionPostResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, "transaction", out.Type)

			data, err := base64.StdEncoding.DecodeString(out.Transaction)
			require.NoError(t, err)
			tx, err := types.DecodeTransaction(data)
			require.NoError(t, err)

			assert.Empty(t, tx.Signatures)
			assert.Equal(t, sender.Address(), tx.Message.FeePayer)
			assert.Equal(t, uint64(time.Unix(1700000000, 42).UnixNano()), tx.Message.Nonce)
			require.Len(t, tx.Message.Instructions, 1)
			ix := tx.Message.Instructions[0]
			assert.Equal(t, core.SystemProgramID, ix.ProgramID)
			assert.Equal(t, sender.Address(), ix.Accounts[0].Address)
			assert.Equal(t, recipient, ix.Accounts[1].Address)

			args, err := system.DecodeTransfer(ix.Data)
			require.NoError(t, err)
			assert.Equal(t, tt.lamports, args.Lamports)
		})
	}
}

func TestPostActionRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	valid := `{"account":"` + core.Address{1}.String() + `"}`

	tests := []struct {
		name  string
		query string
		body  string
	}{
		{"not json", "", "account"},
		{"invalid account", "", `{"account":"not-an-address"}`},
		{"missing account", "", `{}`},
		{"negative amount", "?amount=-1", valid},
		{"non numeric amount", "?amount=lots", valid},
		{"below one lamport", "?amount=0.0000000001", valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+ActionPath+tt.query, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

			var out actionError
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.NotEmpty(t, out.Message)
		})
	}
}

// The returned transaction executes once the sender signs it.
func TestActionTransactionExecutes(t *testing.T) {
	e, err := runtime.NewEngine(runtime.DefaultConfig())
	require.NoError(t, err)
	defer e.Close()

	sender, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, e.Airdrop(sender.Address(), 3*LamportsPerUnit))

	srv := newTestServer(t)
	resp := post(t, srv.URL+ActionPath+"?amount=1", `{"account":"`+sender.Address().String()+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out ActionPostResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	data, err := base64.StdEncoding.DecodeString(out.Transaction)
	require.NoError(t, err)
	tx, err := types.DecodeTransaction(data)
	require.NoError(t, err)
	require.NoError(t, tx.Sign(sender))

	receipt, err := e.Execute(context.Background(), tx)
	require.NoError(t, err)
	assert.True(t, receipt.Success)

	got, err := e.Balance(recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(LamportsPerUnit), got)
	left, err := e.Balance(sender.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(2*LamportsPerUnit-5000), left)
}
