// Package ed25519 provides the keys and signatures used to authorize transactions.
package ed25519

import (
	"crypto/ed25519"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/hdevalence/ed25519consensus"
	"github.com/pkg/errors"

	"github.com/govm-net/counter/core"
)

type (
	PublicKey  [ed25519.PublicKeySize]byte
	PrivateKey [ed25519.PrivateKeySize]byte
	Signature  [ed25519.SignatureSize]byte
)

// Verification follows ZIP-215 (https://zips.z.cash/zip-0215), which gives an
// explicit validity criteria that every node agrees on.
const (
	PublicKeyLen  = ed25519.PublicKeySize
	PrivateKeyLen = ed25519.PrivateKeySize
	// PrivateKeySeedLen is the seed prefix of a private key; the public key follows it.
	PrivateKeySeedLen = ed25519.SeedSize
	SignatureLen      = ed25519.SignatureSize
)

var (
	EmptyPublicKey  = PublicKey{}
	EmptyPrivateKey = PrivateKey{}
	EmptySignature  = Signature{}

	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// GeneratePrivateKey returns a new random PrivateKey.
func GeneratePrivateKey() (PrivateKey, error) {
	_, k, err := ed25519.GenerateKey(nil)
	if err != nil {
		return EmptyPrivateKey, err
	}
	return PrivateKey(k), nil
}

// PrivateKeyFromString decodes a base58 private key.
func PrivateKeyFromString(s string) (PrivateKey, error) {
	raw := base58.Decode(s)
	if len(raw) != PrivateKeyLen {
		return EmptyPrivateKey, ErrInvalidPrivateKey
	}
	return PrivateKey(raw), nil
}

func (p PrivateKey) String() string {
	return base58.Encode(p[:])
}

// PublicKey returns the last 32 bytes of p.
func (p PrivateKey) PublicKey() PublicKey {
	return PublicKey(p[PrivateKeySeedLen:])
}

// Address returns the ledger address controlled by p.
func (p PrivateKey) Address() core.Address {
	return core.Address(p.PublicKey())
}

// Sign returns a signature of msg by p.
func Sign(msg []byte, p PrivateKey) Signature {
	return Signature(ed25519.Sign(p[:], msg))
}

// Verify returns whether s is a valid signature of msg by p.
func Verify(msg []byte, p PublicKey, s Signature) bool {
	return ed25519consensus.Verify(p[:], msg, s[:])
}
