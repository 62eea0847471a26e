package pebble

import (
	"github.com/govm-net/counter/core"
)

// Key prefixes
const (
	accountPrefix byte = 'a'
	receiptPrefix byte = 'r'
	headPrefix    byte = 'h'
)

// KeyGenerator lays out the ledger in the flat pebble keyspace.
type KeyGenerator struct{}

// AccountKey generates a key for storing an account.
// Format: 'a' + address
func (KeyGenerator) AccountKey(addr core.Address) []byte {
	key := make([]byte, 0, 1+core.AddressLen)
	key = append(key, accountPrefix)
	return append(key, addr[:]...)
}

// AccountRange returns the bounds covering every account key.
func (KeyGenerator) AccountRange() (lower, upper []byte) {
	return []byte{accountPrefix}, []byte{accountPrefix + 1}
}

// ReceiptKey generates a key for storing a transaction receipt.
// Format: 'r' + transaction id
func (KeyGenerator) ReceiptKey(id core.Hash) []byte {
	key := make([]byte, 0, 1+len(id))
	key = append(key, receiptPrefix)
	return append(key, id[:]...)
}

// HeadKey is the single key holding the last block.
func (KeyGenerator) HeadKey() []byte {
	return []byte{headPrefix}
}

// ExtractAddressFromKey extracts the address from an account key.
func (KeyGenerator) ExtractAddressFromKey(key []byte) (core.Address, bool) {
	var addr core.Address
	if len(key) != 1+core.AddressLen || key[0] != accountPrefix {
		return addr, false
	}
	copy(addr[:], key[1:])
	return addr, true
}
