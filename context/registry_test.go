package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/counter/types"
)

type nopLedger struct {
	types.Ledger
	params map[string]any
}

func TestRegistry(t *testing.T) {
	r := &registry{contexts: make(map[ContextType]ContextConstructor)}

	assert.Equal(t, DBContextType, r.DefaultContextType())
	_, err := r.GetDefault(nil)
	require.Error(t, err)

	ctor := func(params map[string]any) (types.Ledger, error) {
		return &nopLedger{params: params}, nil
	}
	require.NoError(t, r.Register(MemoryContextType, ctor))
	require.Error(t, r.Register(MemoryContextType, ctor))
	require.NoError(t, r.Register(PebbleContextType, ctor))

	require.Error(t, r.SetDefault("unknown"))
	require.NoError(t, r.SetDefault(MemoryContextType))
	assert.Equal(t, MemoryContextType, r.DefaultContextType())

	ledger, err := r.GetDefault(map[string]any{"dir": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", ledger.(*nopLedger).params["dir"])

	_, err = r.Get("unknown", nil)
	require.Error(t, err)

	assert.Equal(t, []ContextType{MemoryContextType, PebbleContextType}, r.ListRegistered())
}
