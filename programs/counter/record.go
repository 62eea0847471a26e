package counter

import (
	"bytes"

	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/govm-net/counter/core"
)

// DiscriminatorLen is the length of the account and instruction tags.
const DiscriminatorLen = 8

// Space is the size of a counter record: the account tag and one count byte.
const Space = DiscriminatorLen + 1

// RecordDiscriminator tags the data of every counter record.
var RecordDiscriminator = discriminator("account", "CounterRecord")

func discriminator(namespace, name string) [DiscriminatorLen]byte {
	var d [DiscriminatorLen]byte
	h := core.GetHash([]byte(namespace + ":" + name))
	copy(d[:], h[:DiscriminatorLen])
	return d
}

// Record is the state held by a counter account.
type Record struct {
	Count uint8
}

// Encode returns the account data of r.
func (r Record) Encode() ([]byte, error) {
	body, err := borsh.Serialize(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode record")
	}
	out := make([]byte, 0, Space)
	out = append(out, RecordDiscriminator[:]...)
	return append(out, body...), nil
}

// DecodeRecord parses counter account data. Data of the wrong size or with
// a foreign tag is an ErrAccountShapeMismatch.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if len(data) != Space {
		return r, ErrAccountShapeMismatch.Wrap(errors.Errorf("data is %d bytes, want %d", len(data), Space))
	}
	if !bytes.Equal(data[:DiscriminatorLen], RecordDiscriminator[:]) {
		return r, ErrAccountShapeMismatch.Wrap(errors.New("discriminator mismatch"))
	}
	if err := borsh.Deserialize(&r, data[DiscriminatorLen:]); err != nil {
		return r, ErrAccountShapeMismatch.Wrap(err)
	}
	return r, nil
}
