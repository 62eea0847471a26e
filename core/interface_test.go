package core

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressString(t *testing.T) {
	var addr Address
	for i := range addr {
		addr[i] = byte(i + 1)
	}

	parsed, err := AddressFromString(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	// The all-zero key is the system program and encodes as 32 ones
	assert.Equal(t, "11111111111111111111111111111111", SystemProgramID.String())
}

func TestAddressFromStringRejectsBadInput(t *testing.T) {
	_, err := AddressFromString("abc")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = AddressFromString("0OIl")
	require.ErrorIs(t, err, ErrInvalidArgument)

	assert.Panics(t, func() { MustAddressFromString("nope") })
}

func TestHashFromString(t *testing.T) {
	h := GetHash([]byte("counter"))
	parsed, err := HashFromString(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = HashFromString("zz")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = HashFromString("abcd")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestProgramErrorMatching(t *testing.T) {
	sentinel := NewProgramError(6000, "AllocationError", "allocation failed")
	other := NewProgramError(6001, "ArithmeticOverflow", "overflow")

	wrapped := sentinel.Wrap(ErrAccountAlreadyInUse)
	assert.ErrorIs(t, wrapped, sentinel)
	assert.ErrorIs(t, wrapped, ErrAccountAlreadyInUse)
	assert.NotErrorIs(t, wrapped, other)

	outer := errors.Wrap(wrapped, "instruction 0")
	assert.ErrorIs(t, outer, sentinel)

	var pe *ProgramError
	require.True(t, errors.As(outer, &pe))
	assert.Equal(t, uint32(6000), pe.Code)
	assert.Equal(t, "AllocationError", pe.Name)
	assert.Contains(t, outer.Error(), "account already in use")
	assert.Equal(t, "ArithmeticOverflow (6001): overflow", fmt.Sprint(other))
}

func TestAccountInfoExists(t *testing.T) {
	assert.False(t, (&AccountInfo{}).Exists())
	assert.True(t, (&AccountInfo{Lamports: 1}).Exists())
	assert.True(t, (&AccountInfo{Data: []byte{0}}).Exists())
}
