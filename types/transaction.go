package types

import (
	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/crypto/ed25519"
)

// AccountMeta references an account from an instruction.
type AccountMeta struct {
	Address    core.Address
	IsSigner   bool
	IsWritable bool
}

// Instruction invokes one program entry point.
type Instruction struct {
	ProgramID core.Address
	Accounts  []AccountMeta
	Data      []byte
}

// Message is the signed part of a transaction.
type Message struct {
	FeePayer     core.Address
	Nonce        uint64 // Distinguishes otherwise identical messages
	Instructions []Instruction
}

// Bytes returns the borsh encoding that signers sign.
func (m *Message) Bytes() ([]byte, error) {
	return borsh.Serialize(*m)
}

// SignaturePair binds a signature to the key that produced it.
type SignaturePair struct {
	PublicKey core.Address
	Signature ed25519.Signature
}

// Transaction is a message plus the signatures authorizing it.
type Transaction struct {
	Message    Message
	Signatures []SignaturePair
}

// NewTransaction builds an unsigned transaction.
func NewTransaction(feePayer core.Address, nonce uint64, instructions ...Instruction) *Transaction {
	return &Transaction{
		Message: Message{
			FeePayer:     feePayer,
			Nonce:        nonce,
			Instructions: instructions,
		},
	}
}

// ID is the hash of the message.
func (tx *Transaction) ID() (core.Hash, error) {
	msg, err := tx.Message.Bytes()
	if err != nil {
		return core.ZeroHash, errors.Wrap(err, "failed to encode message")
	}
	return core.GetHash(msg), nil
}

// Encode serializes the transaction, signed or not, with borsh.
func (tx *Transaction) Encode() ([]byte, error) {
	return borsh.Serialize(*tx)
}

// DecodeTransaction parses a transaction serialized by Encode.
func DecodeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := borsh.Deserialize(&tx, data); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction")
	}
	return &tx, nil
}

// Sign adds a signature for each key, replacing an earlier signature by the same key.
func (tx *Transaction) Sign(keys ...ed25519.PrivateKey) error {
	msg, err := tx.Message.Bytes()
	if err != nil {
		return errors.Wrap(err, "failed to encode message")
	}
	for _, key := range keys {
		pair := SignaturePair{
			PublicKey: key.Address(),
			Signature: ed25519.Sign(msg, key),
		}
		replaced := false
		for i := range tx.Signatures {
			if tx.Signatures[i].PublicKey == pair.PublicKey {
				tx.Signatures[i] = pair
				replaced = true
			}
		}
		if !replaced {
			tx.Signatures = append(tx.Signatures, pair)
		}
	}
	return nil
}

// Attribute is one key/value pair of an event.
type Attribute struct {
	Key   string
	Value string
}

// Event is emitted by a program during a successful instruction.
type Event struct {
	Program    core.Address
	Name       string
	Attributes []Attribute
}

// Receipt is the recorded outcome of a transaction.
type Receipt struct {
	ID          core.Hash
	BlockHeight uint64
	BlockTime   int64
	FeePayer    core.Address
	Fee         uint64
	Success     bool
	ErrorCode   uint32 // ProgramError code, 0 for runtime errors
	ErrorName   string
	Error       string
	ComputeUsed uint64
	Logs        []string
	Events      []Event
}

// Encode serializes the receipt with borsh.
func (r *Receipt) Encode() ([]byte, error) {
	return borsh.Serialize(*r)
}

// DecodeReceipt parses a receipt serialized by Encode.
func DecodeReceipt(data []byte) (*Receipt, error) {
	var r Receipt
	if err := borsh.Deserialize(&r, data); err != nil {
		return nil, errors.Wrap(err, "failed to decode receipt")
	}
	return &r, nil
}

// Attr returns the value of the named attribute, or "".
func (e Event) Attr(key string) string {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}
