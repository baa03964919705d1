package serializer

import (
	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/fxamacker/cbor/v2"
)

// NewCBORSerializer creates a new serializer using CBOR (RFC 8949) with integer map keys
func NewCBORSerializer() IRPCSerializer {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return &cborSerializerImpl{enc: enc, dec: dec}
}

// cborSerializerImpl implements the IRPCSerializer interface using cbor encoding
type cborSerializerImpl struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c cborSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return c.enc.Marshal(msg)
}

func (c cborSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	return c.dec.Unmarshal(b, msg)
}
